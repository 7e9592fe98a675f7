package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DavidYu75/intreview/internal/analysis"
	"github.com/DavidYu75/intreview/internal/eventlog"
	"github.com/DavidYu75/intreview/internal/metrics"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnding Status = "ending"
	StatusEnded  Status = "ended"
	StatusFailed Status = "failed"
)

// Info is a point-in-time view of a session for listing and lookup.
type Info struct {
	ID         string     `json:"session_id"`
	Owner      string     `json:"owner,omitempty"`
	Status     Status     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	FrameCount int        `json:"frame_count"`
	WordCount  int        `json:"word_count"`
	Connected  bool       `json:"connected"`
}

// Session is the mutable state of one interview. All appends and the
// finalize transition are serialized by mu, so observations fold in the
// order they are handed in.
type Session struct {
	id        string
	owner     string
	engine    *Engine
	startedAt time.Time

	mu         sync.Mutex
	status     Status
	endedAt    time.Time
	counters   analysis.VisualCounters
	labels     []analysis.Sentiment
	words      []analysis.WordObservation
	frameCount int
	wordCount  int
	audioClock float64
	lastFrame  *analysis.ClassifiedFrame
	report     *analysis.Report
	err        error

	// visual metrics folded before a failed finalize
	failedVisual analysis.VisualMetrics

	videoOK, videoFailed int
	audioOK, audioFailed int

	// read without mu by the registry sweep
	terminal     atomic.Bool
	lastActivity atomic.Int64
	endedAtNano  atomic.Int64
	connected    atomic.Bool
}

func newSession(id, owner string, engine *Engine) *Session {
	now := engine.now()
	s := &Session{
		id:        id,
		owner:     owner,
		engine:    engine,
		startedAt: now,
		status:    StatusActive,
	}
	s.lastActivity.Store(now.UnixNano())
	return s
}

func (s *Session) ID() string    { return s.id }
func (s *Session) Owner() string { return s.owner }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LastActivity is the time of the last observation, or the start time.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{
		ID:         s.id,
		Owner:      s.owner,
		Status:     s.status,
		StartedAt:  s.startedAt,
		FrameCount: s.frameCount,
		WordCount:  s.wordCount,
		Connected:  s.connected.Load(),
	}
	if !s.endedAt.IsZero() {
		ended := s.endedAt
		info.EndedAt = &ended
	}
	return info
}

// Attach claims the session's single live connection slot.
func (s *Session) Attach() bool {
	return s.connected.CompareAndSwap(false, true)
}

func (s *Session) Detach() {
	s.connected.Store(false)
}

// IngestFrame decodes, classifies and folds one frame. Once the session
// has left Active it returns the last known frame and false.
func (s *Session) IngestFrame(ctx context.Context, image []byte) (analysis.ClassifiedFrame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return s.lastFrameLocked(), false
	}
	r := s.engine.ClassifyFrame(ctx, s.id, image)
	s.foldFrameLocked(r)
	return r.Frame, true
}

// IngestAudio transcribes and folds one audio fragment, returning the number
// of words appended. Once the session has left Active it returns 0 and false.
func (s *Session) IngestAudio(ctx context.Context, audio []byte) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return 0, false
	}
	r := s.engine.TranscribeAudio(ctx, s.id, audio)
	return s.foldAudioLocked(r), true
}

// FoldFrames folds frames classified elsewhere, in slice order.
func (s *Session) FoldFrames(results []FrameResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return false
	}
	for _, r := range results {
		s.foldFrameLocked(r)
	}
	return true
}

// FoldAudio folds transcribed fragments, in slice order.
func (s *Session) FoldAudio(results []AudioResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return false
	}
	for _, r := range results {
		s.foldAudioLocked(r)
	}
	return true
}

func (s *Session) foldFrameLocked(r FrameResult) {
	s.counters.Fold(r.Frame)
	s.labels = append(s.labels, r.Frame.Observation.Sentiment)
	s.frameCount++
	if r.BackendFailed {
		s.videoFailed++
		if s.videoFailed == 1 && s.engine.cfg.OnBackendDown != nil {
			s.engine.cfg.OnBackendDown(s.id, "video")
		}
	} else {
		s.videoOK++
	}
	f := r.Frame
	s.lastFrame = &f
	s.touch()
	metrics.FramesProcessed.WithLabelValues(string(r.Frame.Attention)).Inc()
}

// foldAudioLocked appends the fragment's words shifted onto the session
// audio clock. The clock advances by the fragment duration, or by the last
// word end when the transcriber reports a shorter duration.
func (s *Session) foldAudioLocked(r AudioResult) int {
	s.touch()
	if r.BackendFailed {
		s.audioFailed++
		if s.audioFailed == 1 && s.engine.cfg.OnBackendDown != nil {
			s.engine.cfg.OnBackendDown(s.id, "audio")
		}
	}
	if r.Skipped {
		return 0
	}
	s.audioOK++

	span := r.Transcript.DurationSeconds
	for _, w := range r.Transcript.Words {
		if w.End > span {
			span = w.End
		}
		w.Confidence = clampConfidence(w.Confidence)
		w.Start += s.audioClock
		w.End += s.audioClock
		s.words = append(s.words, w)
	}
	s.audioClock += span
	s.wordCount += len(r.Transcript.Words)
	metrics.WordsIngested.Add(float64(len(r.Transcript.Words)))
	return len(r.Transcript.Words)
}

// clampConfidence bounds a transcriber confidence to [0, 1]. NaN passes
// through so report validation can reject it.
func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

func (s *Session) touch() {
	s.lastActivity.Store(s.engine.now().UnixNano())
}

// LastFrame returns the most recently folded frame, or a degraded frame
// when none has been folded yet.
func (s *Session) LastFrame() analysis.ClassifiedFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFrameLocked()
}

func (s *Session) lastFrameLocked() analysis.ClassifiedFrame {
	if s.lastFrame == nil {
		return analysis.DegradedFrame()
	}
	return *s.lastFrame
}

// VisualSnapshot returns the visual metrics accumulated so far, tagged
// pending while the session is still Active and partial once it failed.
func (s *Session) VisualSnapshot() analysis.VisualMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.report != nil:
		return s.report.Visual
	case s.status == StatusFailed:
		return s.failedVisual
	}
	m := analysis.BuildVisualMetrics(s.counters, s.labels)
	m.Status = analysis.StatusPending
	return m
}

// Report returns the final report once the session has ended.
func (s *Session) Report() (*analysis.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusEnded:
		return s.report, nil
	case StatusFailed:
		return nil, s.err
	default:
		return nil, ErrSessionActive
	}
}

// Finalize moves the session out of Active and computes its report from
// whatever has been folded so far. Only the first call computes anything;
// later calls return the same report or the same error.
func (s *Session) Finalize(ctx context.Context) (*analysis.Report, error) {
	s.mu.Lock()
	switch s.status {
	case StatusEnded:
		defer s.mu.Unlock()
		return s.report, nil
	case StatusFailed:
		defer s.mu.Unlock()
		return nil, s.err
	}

	s.status = StatusEnding
	start := time.Now()
	report, err := s.buildReportLocked()

	s.endedAt = s.engine.now()
	if err != nil {
		s.status = StatusFailed
		s.err = fmt.Errorf("%w: %v", ErrSessionFailed, err)
		s.failedVisual = s.snapshotVisualLocked()
		err = s.err
	} else {
		s.status = StatusEnded
		s.report = report
	}
	// the report is immutable from here; the raw sequences are no longer needed
	s.words = nil
	s.labels = nil
	frames, words := s.frameCount, s.wordCount
	s.endedAtNano.Store(s.endedAt.UnixNano())
	s.terminal.Store(true)
	s.mu.Unlock()

	metrics.SessionsActive.Dec()
	metrics.FinalizeDuration.Observe(time.Since(start).Seconds())

	hookCtx := context.WithoutCancel(ctx)
	cfg := s.engine.cfg
	if err != nil {
		metrics.SessionsFinalized.WithLabelValues(string(StatusFailed)).Inc()
		s.engine.logger.Printf("session: finalize failed for %s: %v", s.id, err)
		cfg.Events.LogAsync(s.id, eventlog.EventSessionFailed, map[string]any{"error": err.Error()})
		if cfg.OnFailed != nil {
			cfg.OnFailed(hookCtx, s, err)
		}
		return nil, err
	}

	metrics.SessionsFinalized.WithLabelValues(string(StatusEnded)).Inc()
	s.engine.logger.Printf("session: finalized %s (frames=%d words=%d)", s.id, frames, words)
	cfg.Events.LogAsync(s.id, eventlog.EventSessionFinalized, map[string]any{
		"frame_count":   frames,
		"word_count":    words,
		"speech_status": string(report.Speech.Status),
		"visual_status": string(report.Visual.Status),
	})
	if cfg.OnFinalized != nil {
		cfg.OnFinalized(hookCtx, s, report)
	}
	return report, nil
}

// snapshotVisualLocked freezes the visual metrics of a session whose report
// could not be built, before the raw labels are released.
func (s *Session) snapshotVisualLocked() (m analysis.VisualMetrics) {
	defer func() {
		if r := recover(); r != nil {
			m = analysis.EmptyVisualMetrics(analysis.StatusPartial)
		}
	}()
	if s.videoOK == 0 {
		return analysis.EmptyVisualMetrics(analysis.StatusPartial)
	}
	m = analysis.BuildVisualMetrics(s.counters, s.labels)
	m.Status = analysis.StatusPartial
	return m
}

func (s *Session) buildReportLocked() (report *analysis.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			report, err = nil, fmt.Errorf("computing report: %v", r)
		}
	}()

	var speech analysis.SpeechMetrics
	switch {
	case s.audioFailed > 0 && s.audioOK == 0:
		speech = analysis.EmptySpeechMetrics(analysis.StatusPartial)
	default:
		speech = s.engine.cfg.Scorer.Score(s.words, s.audioClock)
		if s.audioFailed > 0 {
			speech.Status = analysis.StatusPartial
		}
	}

	var visual analysis.VisualMetrics
	switch {
	case s.videoFailed > 0 && s.videoOK == 0:
		visual = analysis.EmptyVisualMetrics(analysis.StatusPartial)
	default:
		visual = analysis.BuildVisualMetrics(s.counters, s.labels)
		if s.videoFailed > 0 {
			visual.Status = analysis.StatusPartial
		}
	}

	report = &analysis.Report{
		SessionID:   s.id,
		GeneratedAt: s.engine.now().UTC(),
		Speech:      speech,
		Visual:      visual,
		Composite:   analysis.Fuse(speech, visual),
	}
	if err := report.Validate(); err != nil {
		return nil, err
	}
	return report, nil
}
