// Package replay rebuilds session reports from recorded chunks.
package replay

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/DavidYu75/intreview/internal/analysis"
	"github.com/DavidYu75/intreview/internal/metrics"
	"github.com/DavidYu75/intreview/internal/session"
	"github.com/DavidYu75/intreview/internal/store"
)

// ErrNoChunks is returned when a session has nothing recorded.
var ErrNoChunks = errors.New("replay: no recorded chunks")

// ChunkSource reads a recording's chunks in arrival order.
type ChunkSource interface {
	GetChunks(ctx context.Context, recordingID string, kind *store.ChunkKind) ([]store.Chunk, error)
}

// Processor decodes recorded chunks on a bounded worker pool and folds the
// results back into a fresh session in their original order.
type Processor struct {
	engine  *session.Engine
	chunks  ChunkSource
	workers int
	logger  *log.Logger
}

func NewProcessor(engine *session.Engine, chunks ChunkSource, workers int, logger *log.Logger) *Processor {
	if workers <= 0 {
		workers = 4
	}
	return &Processor{engine: engine, chunks: chunks, workers: workers, logger: logger}
}

// Rebuild recomputes the report for sessionID from its recording.
func (p *Processor) Rebuild(ctx context.Context, sessionID string) (*analysis.Report, error) {
	chunks, err := p.chunks.GetChunks(ctx, sessionID, nil)
	if err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	var video, audio []store.Chunk
	for _, c := range chunks {
		switch c.Kind {
		case store.ChunkVideo:
			video = append(video, c)
		case store.ChunkAudio:
			audio = append(audio, c)
		}
	}

	// each result lands at its chunk's index, so completion order does not matter
	frames := make([]session.FrameResult, len(video))
	fragments := make([]session.AudioResult, len(audio))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, c := range video {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			frames[i] = p.engine.ClassifyFrame(gctx, sessionID, c.Payload)
			metrics.ReplayChunks.WithLabelValues(string(store.ChunkVideo)).Inc()
			return nil
		})
	}
	for i, c := range audio {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fragments[i] = p.engine.TranscribeAudio(gctx, sessionID, c.Payload)
			metrics.ReplayChunks.WithLabelValues(string(store.ChunkAudio)).Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("decoding chunks: %w", err)
	}

	s := p.engine.NewSession(sessionID, "")
	s.FoldFrames(frames)
	s.FoldAudio(fragments)

	report, err := s.Finalize(ctx)
	if err != nil {
		return nil, err
	}
	p.logger.Printf("replay: rebuilt %s from %d frames and %d audio fragments", sessionID, len(video), len(audio))
	return report, nil
}
