package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DavidYu75/intreview/internal/analysis"
	"github.com/DavidYu75/intreview/internal/eventlog"
	"github.com/DavidYu75/intreview/internal/httpapi"
	"github.com/DavidYu75/intreview/internal/jobs"
	"github.com/DavidYu75/intreview/internal/media"
	"github.com/DavidYu75/intreview/internal/notifications"
	"github.com/DavidYu75/intreview/internal/replay"
	"github.com/DavidYu75/intreview/internal/session"
	"github.com/DavidYu75/intreview/internal/store"
)

type App struct {
	cfg      Config
	logger   *log.Logger
	db       *pgxpool.Pool
	store    *store.Store
	eventLog *eventlog.Logger
	lexicon  *analysis.Lexicon
	apns     *notifications.APNsClient
	discord  *notifications.Discord
	sessions *session.Registry
	idleJob  *jobs.IdleSessionJob
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	lexicon := analysis.DefaultLexicon()
	if cfg.FillerLexiconPath != "" {
		l, err := analysis.LoadLexicon(cfg.FillerLexiconPath)
		if err != nil {
			return nil, fmt.Errorf("load filler lexicon: %w", err)
		}
		lexicon = l
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// Migrations are applied externally (psql -f migrations/*.sql).
	// No automatic migration runner at startup.

	apnsClient, err := notifications.NewAPNsClient(notifications.APNsConfig{
		KeyPath:    cfg.APNsKeyPath,
		KeyID:      cfg.APNsKeyID,
		TeamID:     cfg.APNsTeamID,
		BundleID:   cfg.APNsBundleID,
		Production: cfg.APNsProduction,
	}, logger)
	if err != nil {
		logger.Printf("Warning: APNs client initialization failed: %v", err)
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		store:    store.New(db),
		eventLog: eventlog.New(db),
		lexicon:  lexicon,
		apns:     apnsClient,
		discord:  notifications.NewDiscord(cfg.DiscordWebhookURL, logger),
	}

	if cfg.JWTSecret == "" {
		logger.Printf("Warning: JWT_SECRET not set, session endpoints are unauthenticated")
	}
	if cfg.LandmarkServiceURL == "" {
		logger.Printf("Warning: LANDMARK_SERVICE_URL not set, every frame will be degraded")
	}
	if cfg.TranscribeServiceURL == "" {
		logger.Printf("Warning: TRANSCRIBE_SERVICE_URL not set, audio will be skipped")
	}

	a.sessions = session.NewRegistry(a.newEngine(true), cfg.MaxConcurrentSessions, logger)
	a.idleJob = jobs.NewIdleSessionJob(a.sessions, logger, cfg.SweepInterval, cfg.SessionIdleTimeout, cfg.SessionRetention)
	return a, nil
}

// newEngine builds the shared analysis engine.
func (a *App) newEngine(live bool) *session.Engine {
	return session.NewEngine(a.engineConfig(live), a.logger)
}

// engineConfig wires the engine collaborators. Live sessions get the event
// log and the persistence and notification hooks. Offline replays reuse the
// live session id, so they get neither.
func (a *App) engineConfig(live bool) session.Config {
	cfg := session.Config{
		Scorer: analysis.NewScorer(analysis.ScorerConfig{
			LowConfidenceThreshold: a.cfg.LowConfidenceThreshold,
			PenaltyDampening:       a.cfg.PenaltyDampening,
		}, a.lexicon),
		Classifier: analysis.NewClassifier(analysis.ClassifierConfig{
			GazeThreshold:    a.cfg.GazeThreshold,
			PostureThreshold: a.cfg.PostureThreshold,
			SmileThreshold:   a.cfg.SmileThreshold,
		}),
	}

	httpClient := media.NewPooledHTTPClient(a.cfg.MediaPoolSize, a.cfg.MediaTimeout)
	if a.cfg.LandmarkServiceURL != "" {
		cfg.Decoder = media.NewLandmarkClient(a.cfg.LandmarkServiceURL).WithHTTPClient(httpClient)
	}
	if a.cfg.TranscribeServiceURL != "" {
		cfg.Transcriber = media.NewTranscriptionClient(a.cfg.TranscribeServiceURL).WithHTTPClient(httpClient)
	}

	if live {
		cfg.Events = a.eventLog
		cfg.OnFinalized = a.onFinalized
		cfg.OnFailed = a.onFailed
		cfg.OnBackendDown = a.onBackendDown
	}
	return cfg
}

func (a *App) onFinalized(ctx context.Context, s *session.Session, report *analysis.Report) {
	a.persistSession(ctx, s)
	if err := a.store.SaveReport(ctx, report); err != nil {
		a.logger.Printf("app: failed to save report for %s: %v", s.ID(), err)
		sentry.CaptureException(fmt.Errorf("save report %s: %w", s.ID(), err))
	}

	if s.Owner() == "" || a.apns == nil {
		return
	}
	go a.notifyReportReady(ctx, s.Owner(), report)
}

func (a *App) notifyReportReady(ctx context.Context, owner string, report *analysis.Report) {
	tokens, err := a.store.GetUserPushTokens(ctx, owner, "ios")
	if err != nil {
		a.logger.Printf("app: failed to load push tokens for %s: %v", owner, err)
		return
	}
	n := notifications.ReportNotification{
		SessionID:          report.SessionID,
		CommunicationScore: report.Composite.CommunicationScore,
		FillerCount:        report.Speech.FillerCount,
	}
	for _, t := range tokens {
		_ = a.apns.SendReportReady(t.Token, n)
	}
}

func (a *App) onFailed(ctx context.Context, s *session.Session, err error) {
	a.persistSession(ctx, s)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("session_id", s.ID())
		sentry.CaptureException(err)
	})
	a.discord.NotifySessionFailed(ctx, s.ID(), err)
}

func (a *App) onBackendDown(sessionID, modality string) {
	a.discord.NotifyBackendDown(context.Background(), modality, sessionID)
}

func (a *App) persistSession(ctx context.Context, s *session.Session) {
	info := s.Info()
	err := a.store.UpsertSession(ctx, store.SessionRecord{
		ID:        info.ID,
		OwnerID:   info.Owner,
		Status:    string(info.Status),
		StartedAt: info.StartedAt,
		EndedAt:   info.EndedAt,
	})
	if err != nil {
		a.logger.Printf("app: failed to persist session %s: %v", info.ID, err)
	}
}

func (a *App) Router() http.Handler {
	routerCfg := httpapi.RouterConfig{
		JWTSecret:       a.cfg.JWTSecret,
		MaxMessageBytes: int64(a.cfg.MaxMessageBytes),
	}
	return httpapi.NewRouter(routerCfg, a.logger, a.store, a.eventLog, a.sessions)
}

// Replayer returns a processor that rebuilds reports from stored chunks
// without triggering live-session hooks.
func (a *App) Replayer() *replay.Processor {
	return replay.NewProcessor(a.newEngine(false), a.store, a.cfg.ReplayWorkers, a.logger)
}

// SaveReplayedReport stores a rebuilt report and records the replay.
func (a *App) SaveReplayedReport(ctx context.Context, report *analysis.Report) error {
	if err := a.store.SaveReport(ctx, report); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return a.eventLog.Log(ctx, report.SessionID, eventlog.EventReportReplayed, map[string]any{
		"word_count":  report.Speech.WordCount,
		"frame_count": report.Visual.FrameCount,
	})
}

// StartJobs starts background jobs.
func (a *App) StartJobs() {
	a.idleJob.Start()
}

// Shutdown stops accepting sessions and streams, waits for open streams to
// close until ctx expires, then finalizes whatever is still active.
func (a *App) Shutdown(ctx context.Context) {
	a.sessions.StartDraining()

	done := make(chan struct{})
	go func() {
		a.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Printf("app: shutdown deadline reached with %d streams open", a.sessions.ActiveConns())
	}

	if n := a.sessions.Shutdown(ctx); n > 0 {
		a.logger.Printf("app: finalized %d active sessions on shutdown", n)
	}
	a.idleJob.Stop()
}

func (a *App) Close() error {
	if a.db != nil {
		a.db.Close()
	}
	return nil
}
