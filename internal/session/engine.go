// Package session owns the lifecycle of interview sessions: it folds
// decoded observations into per-session state in arrival order and
// produces exactly one report per session.
package session

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/DavidYu75/intreview/internal/analysis"
	"github.com/DavidYu75/intreview/internal/eventlog"
	"github.com/DavidYu75/intreview/internal/media"
	"github.com/DavidYu75/intreview/internal/metrics"
)

// FrameDecoder turns an encoded image into face landmarks.
type FrameDecoder interface {
	DecodeFrame(ctx context.Context, image []byte) (analysis.FaceLandmarks, error)
}

// Transcriber turns an audio fragment into recognized words.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (analysis.Transcript, error)
}

// EventLogger records session lifecycle events.
type EventLogger interface {
	LogAsync(sessionID string, eventType eventlog.EventType, data map[string]any)
}

type Config struct {
	Scorer      *analysis.Scorer
	Classifier  *analysis.Classifier
	Decoder     FrameDecoder
	Transcriber Transcriber
	Events      EventLogger

	// OnFinalized runs once per session after a report is produced.
	OnFinalized func(ctx context.Context, s *Session, report *analysis.Report)
	// OnFailed runs once per session when finalize fails.
	OnFailed func(ctx context.Context, s *Session, err error)
	// OnBackendDown runs on the first backend failure per session and
	// modality. It is called with the session lock held and must not block.
	OnBackendDown func(sessionID, modality string)
}

// Engine holds the stateless collaborators shared by every session.
type Engine struct {
	cfg    Config
	logger *log.Logger
	now    func() time.Time
}

type nopEvents struct{}

func (nopEvents) LogAsync(string, eventlog.EventType, map[string]any) {}

func NewEngine(cfg Config, logger *log.Logger) *Engine {
	if cfg.Scorer == nil {
		cfg.Scorer = analysis.NewScorer(analysis.DefaultScorerConfig(), nil)
	}
	if cfg.Classifier == nil {
		cfg.Classifier = analysis.NewClassifier(analysis.DefaultClassifierConfig())
	}
	if cfg.Decoder == nil {
		cfg.Decoder = media.Unavailable{}
	}
	if cfg.Transcriber == nil {
		cfg.Transcriber = media.Unavailable{}
	}
	if cfg.Events == nil {
		cfg.Events = nopEvents{}
	}
	return &Engine{cfg: cfg, logger: logger, now: time.Now}
}

// FrameResult is one decoded and classified video frame, ready to fold.
type FrameResult struct {
	Frame         analysis.ClassifiedFrame
	BackendFailed bool
}

// AudioResult is one transcribed audio fragment, ready to fold.
type AudioResult struct {
	Transcript    analysis.Transcript
	Skipped       bool
	BackendFailed bool
}

// ClassifyFrame decodes and classifies one frame. It never fails: decode
// problems come back as a degraded frame. Safe for concurrent use.
func (e *Engine) ClassifyFrame(ctx context.Context, sessionID string, image []byte) FrameResult {
	var (
		lm  analysis.FaceLandmarks
		err error
	)
	if len(image) == 0 {
		err = media.ErrUndecodable
	} else {
		start := time.Now()
		lm, err = e.cfg.Decoder.DecodeFrame(ctx, image)
		metrics.DecodeDuration.WithLabelValues("video").Observe(time.Since(start).Seconds())
	}

	if err != nil {
		backend := !errors.Is(err, media.ErrUndecodable)
		e.logger.Printf("session: frame degraded for %s: %v", sessionID, err)
		metrics.BackendErrors.WithLabelValues("video", errorKind(backend)).Inc()
		e.cfg.Events.LogAsync(sessionID, eventlog.EventFrameDegraded, map[string]any{
			"error":   err.Error(),
			"backend": backend,
		})
		return FrameResult{Frame: analysis.DegradedFrame(), BackendFailed: backend}
	}
	return FrameResult{Frame: e.cfg.Classifier.Classify(lm)}
}

// TranscribeAudio transcribes one fragment. Failures skip the fragment.
// Safe for concurrent use.
func (e *Engine) TranscribeAudio(ctx context.Context, sessionID string, audio []byte) AudioResult {
	if len(audio) == 0 {
		return AudioResult{Skipped: true}
	}

	start := time.Now()
	tr, err := e.cfg.Transcriber.Transcribe(ctx, audio)
	metrics.DecodeDuration.WithLabelValues("audio").Observe(time.Since(start).Seconds())

	if err != nil {
		backend := !errors.Is(err, media.ErrUndecodable)
		e.logger.Printf("session: audio skipped for %s: %v", sessionID, err)
		metrics.BackendErrors.WithLabelValues("audio", errorKind(backend)).Inc()
		e.cfg.Events.LogAsync(sessionID, eventlog.EventAudioDegraded, map[string]any{
			"error":   err.Error(),
			"backend": backend,
		})
		return AudioResult{Skipped: true, BackendFailed: backend}
	}
	return AudioResult{Transcript: tr}
}

func errorKind(backend bool) string {
	if backend {
		return "unavailable"
	}
	return "undecodable"
}

// NewSession creates an Active session that no registry tracks. Offline
// rebuilds use it to fold stored observations under the original id.
func (e *Engine) NewSession(id, owner string) *Session {
	metrics.SessionsActive.Inc()
	return newSession(id, owner, e)
}
