package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "interview_sessions_active",
		Help: "Sessions currently accepting observations",
	})

	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_sessions_started_total",
		Help: "Total sessions started",
	})

	SessionsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_sessions_finalized_total",
		Help: "Finalized sessions by outcome",
	}, []string{"outcome"})

	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "interview_ws_connections_active",
		Help: "Open streaming connections",
	})

	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_frames_processed_total",
		Help: "Classified video frames by attention status",
	}, []string{"attention"})

	WordsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_words_ingested_total",
		Help: "Recognized words appended to sessions",
	})

	BackendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_backend_errors_total",
		Help: "Media collaborator failures by modality and kind",
	}, []string{"modality", "error_type"})

	DecodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "interview_decode_duration_seconds",
		Help:    "Latency of landmark and transcription calls",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
	}, []string{"modality"})

	FinalizeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_finalize_duration_seconds",
		Help:    "Time spent computing the final report",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
	})

	ReplayChunks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_replay_chunks_total",
		Help: "Stored chunks reprocessed by replay, by kind",
	}, []string{"kind"})
)
