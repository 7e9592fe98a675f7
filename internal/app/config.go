package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string
	LogLevel    string
	SentryDSN   string

	// JWT Authentication (empty disables auth)
	JWTSecret string

	// Media sidecars. Empty URLs mark the modality as unavailable.
	LandmarkServiceURL   string
	TranscribeServiceURL string
	MediaTimeout         time.Duration
	MediaPoolSize        int

	// Sessions
	MaxConcurrentSessions int
	MaxMessageBytes       int
	SessionIdleTimeout    time.Duration // 0 disables idle expiry
	SessionRetention      time.Duration
	SweepInterval         time.Duration
	ReplayWorkers         int

	// Scoring
	LowConfidenceThreshold float64
	PenaltyDampening       float64
	GazeThreshold          float64
	PostureThreshold       float64
	SmileThreshold         float64
	FillerLexiconPath      string

	// Notifications
	DiscordWebhookURL string

	// APNs Push Notifications
	APNsKeyPath    string // Path to .p8 key file
	APNsKeyID      string // Key ID from Apple Developer Portal
	APNsTeamID     string // Team ID from Apple Developer Portal
	APNsBundleID   string
	APNsProduction bool
}

func LoadConfigFromEnv() Config {
	return Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		DatabaseURL: getenv("DATABASE_URL", ""),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		SentryDSN:   getenv("SENTRY_DSN", ""),

		JWTSecret: os.Getenv("JWT_SECRET"),

		LandmarkServiceURL:   getenv("LANDMARK_SERVICE_URL", ""),
		TranscribeServiceURL: getenv("TRANSCRIBE_SERVICE_URL", ""),
		MediaTimeout:         getenvDuration("MEDIA_TIMEOUT", 10*time.Second),
		MediaPoolSize:        getenvIntClamped("MEDIA_POOL_SIZE", 16, 1, 256),

		MaxConcurrentSessions: getenvIntClamped("MAX_CONCURRENT_SESSIONS", 200, 0, 100000),
		MaxMessageBytes:       getenvIntClamped("MAX_MESSAGE_BYTES", 8<<20, 64<<10, 64<<20),
		SessionIdleTimeout:    getenvDuration("SESSION_IDLE_TIMEOUT", 0),
		SessionRetention:      getenvDuration("SESSION_RETENTION", time.Hour),
		SweepInterval:         getenvDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		ReplayWorkers:         getenvIntClamped("REPLAY_WORKERS", 4, 1, 64),

		LowConfidenceThreshold: getenvFloatClamped("LOW_CONFIDENCE_THRESHOLD", 0.6, 0.0, 1.0),
		PenaltyDampening:       getenvFloatClamped("PENALTY_DAMPENING", 0.5, 0.0, 1.0),
		GazeThreshold:          getenvFloatClamped("GAZE_THRESHOLD", 0.2, 0.05, 0.5),
		PostureThreshold:       getenvFloatClamped("POSTURE_THRESHOLD", 0.2, 0.05, 0.5),
		SmileThreshold:         getenvFloatClamped("SMILE_THRESHOLD", -0.005, -0.1, 0.0),
		FillerLexiconPath:      getenv("FILLER_LEXICON_PATH", ""),

		DiscordWebhookURL: getenv("DISCORD_WEBHOOK_URL", ""),

		APNsKeyPath:    getenv("APNS_KEY_PATH", ""),
		APNsKeyID:      getenv("APNS_KEY_ID", ""),
		APNsTeamID:     getenv("APNS_TEAM_ID", ""),
		APNsBundleID:   getenv("APNS_BUNDLE_ID", ""),
		APNsProduction: getenv("APNS_PRODUCTION", "") == "true",
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getenvIntClamped parses an int env var, falling back to def when unset or
// invalid, and clamps the result to [min, max].
func getenvIntClamped(k string, def, min, max int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// getenvFloatClamped is getenvIntClamped for floats.
func getenvFloatClamped(k string, def, min, max float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(k), 64)
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// getenvDuration parses a Go duration such as "90s" or "15m". Negative
// values are treated as zero.
func getenvDuration(k string, def time.Duration) time.Duration {
	raw := os.Getenv(k)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	if d < 0 {
		return 0
	}
	return d
}
