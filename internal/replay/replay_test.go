package replay

import (
	"context"
	"errors"
	"io"
	"log"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/DavidYu75/intreview/internal/analysis"
	"github.com/DavidYu75/intreview/internal/session"
	"github.com/DavidYu75/intreview/internal/store"
)

type fakeSource struct {
	chunks []store.Chunk
	err    error
}

func (f fakeSource) GetChunks(_ context.Context, _ string, _ *store.ChunkKind) ([]store.Chunk, error) {
	return f.chunks, f.err
}

// jitterDecoder sleeps a random amount so workers finish out of order.
type jitterDecoder struct{}

func (jitterDecoder) DecodeFrame(_ context.Context, image []byte) (analysis.FaceLandmarks, error) {
	time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
	lm := analysis.FaceLandmarks{
		FaceDetected: true,
		FrameWidth:   640,
		FrameHeight:  480,
		NoseTip:      analysis.Point{X: 0.5, Y: 0.5},
		MouthLeft:    analysis.Point{Y: 0.70},
		MouthRight:   analysis.Point{Y: 0.70},
		UpperLip:     analysis.Point{Y: 0.69},
		LowerLip:     analysis.Point{Y: 0.71},
	}
	if string(image) == "smile" {
		lm.MouthLeft.Y, lm.MouthRight.Y = 0.68, 0.68
	}
	return lm, nil
}

type jitterTranscriber struct{}

func (jitterTranscriber) Transcribe(_ context.Context, audio []byte) (analysis.Transcript, error) {
	time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
	var tr analysis.Transcript
	for i, w := range strings.Fields(string(audio)) {
		start := float64(i)
		tr.Words = append(tr.Words, analysis.WordObservation{Text: w, Start: start, End: start + 1, Confidence: 0.9})
	}
	tr.DurationSeconds = float64(len(tr.Words))
	return tr, nil
}

func newTestProcessor(src ChunkSource) *Processor {
	logger := log.New(io.Discard, "", 0)
	engine := session.NewEngine(session.Config{
		Decoder:     jitterDecoder{},
		Transcriber: jitterTranscriber{},
	}, logger)
	return NewProcessor(engine, src, 8, logger)
}

func TestRebuildPreservesArrivalOrder(t *testing.T) {
	labels := []string{"plain", "plain", "smile", "smile", "smile", "plain"}
	var chunks []store.Chunk
	for i, l := range labels {
		chunks = append(chunks, store.Chunk{ID: int64(i), Kind: store.ChunkVideo, Payload: []byte(l)})
	}
	chunks = append(chunks,
		store.Chunk{ID: 10, Kind: store.ChunkAudio, Payload: []byte("first second")},
		store.Chunk{ID: 11, Kind: store.ChunkAudio, Payload: []byte("third")},
	)

	p := newTestProcessor(fakeSource{chunks: chunks})

	// repeat so a lucky schedule cannot hide reordering
	for run := 0; run < 5; run++ {
		report, err := p.Rebuild(context.Background(), "s-replay")
		if err != nil {
			t.Fatalf("Rebuild: %v", err)
		}

		want := []analysis.Segment{
			{Sentiment: analysis.SentimentNeutral, StartFrame: 0, EndFrame: 1, DurationFrames: 2},
			{Sentiment: analysis.SentimentPositive, StartFrame: 2, EndFrame: 4, DurationFrames: 3},
			{Sentiment: analysis.SentimentNeutral, StartFrame: 5, EndFrame: 5, DurationFrames: 1},
		}
		got := report.Visual.SentimentTimeline
		if len(got) != len(want) {
			t.Fatalf("run %d: timeline = %+v, want %+v", run, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("run %d: segment %d = %+v, want %+v", run, i, got[i], want[i])
			}
		}
		if report.Speech.RawTranscript != "first second third" {
			t.Errorf("run %d: transcript = %q, want %q", run, report.Speech.RawTranscript, "first second third")
		}
		if report.SessionID != "s-replay" {
			t.Errorf("session id = %q, want s-replay", report.SessionID)
		}
	}
}

func TestRebuildUndecodableFrameMarker(t *testing.T) {
	// an empty video chunk is what the live stream archives for a frame it
	// could not decode; it must replay to the same degraded frame
	chunks := []store.Chunk{
		{ID: 1, Kind: store.ChunkVideo, Payload: []byte("plain")},
		{ID: 2, Kind: store.ChunkVideo, Payload: []byte{}},
	}
	report, err := newTestProcessor(fakeSource{chunks: chunks}).Rebuild(context.Background(), "s-marker")
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if report.Visual.FrameCount != 2 {
		t.Errorf("FrameCount = %d, want 2", report.Visual.FrameCount)
	}
	if report.Visual.PostureScore != 100 {
		t.Errorf("PostureScore = %v, want 100", report.Visual.PostureScore)
	}
	if report.Visual.EyeContactPercentage != 50 {
		t.Errorf("EyeContactPercentage = %v, want 50", report.Visual.EyeContactPercentage)
	}
	if report.Visual.Status != analysis.StatusFinal {
		t.Errorf("Visual.Status = %q, want final", report.Visual.Status)
	}
}

func TestRebuildErrors(t *testing.T) {
	t.Run("no chunks", func(t *testing.T) {
		_, err := newTestProcessor(fakeSource{}).Rebuild(context.Background(), "empty")
		if !errors.Is(err, ErrNoChunks) {
			t.Errorf("err = %v, want ErrNoChunks", err)
		}
	})

	t.Run("source failure", func(t *testing.T) {
		boom := errors.New("db down")
		_, err := newTestProcessor(fakeSource{err: boom}).Rebuild(context.Background(), "s")
		if !errors.Is(err, boom) {
			t.Errorf("err = %v, want wrapped db error", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		chunks := []store.Chunk{{Kind: store.ChunkVideo, Payload: []byte("plain")}}
		_, err := newTestProcessor(fakeSource{chunks: chunks}).Rebuild(ctx, "s")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}
