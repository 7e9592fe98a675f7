package app

import (
	"os"
	"testing"
	"time"
)

func TestGetenv(t *testing.T) {
	tests := []struct {
		name     string
		envKey   string
		envValue string
		defValue string
		want     string
	}{
		{
			name:     "env set",
			envKey:   "TEST_ENV_VAR",
			envValue: "custom_value",
			defValue: "default",
			want:     "custom_value",
		},
		{
			name:     "env not set",
			envKey:   "TEST_ENV_VAR_NOTSET",
			envValue: "",
			defValue: "default",
			want:     "default",
		},
		{
			name:     "empty default",
			envKey:   "TEST_ENV_VAR_EMPTY",
			envValue: "",
			defValue: "",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.envKey, tt.envValue)
				defer os.Unsetenv(tt.envKey)
			}

			got := getenv(tt.envKey, tt.defValue)
			if got != tt.want {
				t.Errorf("getenv(%q, %q) = %q, want %q", tt.envKey, tt.defValue, got, tt.want)
			}
		})
	}
}

func TestGetenvIntClamped(t *testing.T) {
	tests := []struct {
		name     string
		envKey   string
		envValue string
		def      int
		min      int
		max      int
		want     int
	}{
		{
			name:     "value within range",
			envKey:   "TEST_INT_NORMAL",
			envValue: "500",
			def:      100,
			min:      0,
			max:      1000,
			want:     500,
		},
		{
			name:     "value below min - clamp to min",
			envKey:   "TEST_INT_LOW",
			envValue: "-100",
			def:      100,
			min:      0,
			max:      1000,
			want:     0,
		},
		{
			name:     "value above max - clamp to max",
			envKey:   "TEST_INT_HIGH",
			envValue: "2000",
			def:      100,
			min:      0,
			max:      1000,
			want:     1000,
		},
		{
			name:     "env not set - use default",
			envKey:   "TEST_INT_NOTSET",
			envValue: "",
			def:      100,
			min:      0,
			max:      1000,
			want:     100,
		},
		{
			name:     "invalid value - use default",
			envKey:   "TEST_INT_INVALID",
			envValue: "not_a_number",
			def:      100,
			min:      0,
			max:      1000,
			want:     100,
		},
		{
			name:     "boundary: exactly min",
			envKey:   "TEST_INT_MIN",
			envValue: "200",
			def:      500,
			min:      200,
			max:      800,
			want:     200,
		},
		{
			name:     "boundary: exactly max",
			envKey:   "TEST_INT_MAX",
			envValue: "800",
			def:      500,
			min:      200,
			max:      800,
			want:     800,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.envKey, tt.envValue)
				defer os.Unsetenv(tt.envKey)
			}

			got := getenvIntClamped(tt.envKey, tt.def, tt.min, tt.max)
			if got != tt.want {
				t.Errorf("getenvIntClamped(%q, %d, %d, %d) = %d, want %d",
					tt.envKey, tt.def, tt.min, tt.max, got, tt.want)
			}
		})
	}
}

func TestGetenvFloatClamped(t *testing.T) {
	tests := []struct {
		name     string
		envKey   string
		envValue string
		def      float64
		min      float64
		max      float64
		want     float64
	}{
		{
			name:     "value within range",
			envKey:   "TEST_FLOAT_NORMAL",
			envValue: "0.5",
			def:      0.3,
			min:      0.0,
			max:      1.0,
			want:     0.5,
		},
		{
			name:     "value below min - clamp to min",
			envKey:   "TEST_FLOAT_LOW",
			envValue: "-0.5",
			def:      0.3,
			min:      0.0,
			max:      1.0,
			want:     0.0,
		},
		{
			name:     "value above max - clamp to max",
			envKey:   "TEST_FLOAT_HIGH",
			envValue: "1.5",
			def:      0.3,
			min:      0.0,
			max:      1.0,
			want:     1.0,
		},
		{
			name:     "env not set - use default",
			envKey:   "TEST_FLOAT_NOTSET",
			envValue: "",
			def:      0.75,
			min:      0.0,
			max:      1.0,
			want:     0.75,
		},
		{
			name:     "invalid value - use default",
			envKey:   "TEST_FLOAT_INVALID",
			envValue: "not_a_float",
			def:      0.5,
			min:      0.0,
			max:      1.0,
			want:     0.5,
		},
		{
			name:     "boundary: exactly min",
			envKey:   "TEST_FLOAT_MIN",
			envValue: "0.0",
			def:      0.5,
			min:      0.0,
			max:      1.0,
			want:     0.0,
		},
		{
			name:     "boundary: exactly max",
			envKey:   "TEST_FLOAT_MAX",
			envValue: "1.0",
			def:      0.5,
			min:      0.0,
			max:      1.0,
			want:     1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.envKey, tt.envValue)
				defer os.Unsetenv(tt.envKey)
			}

			got := getenvFloatClamped(tt.envKey, tt.def, tt.min, tt.max)
			if got != tt.want {
				t.Errorf("getenvFloatClamped(%q, %f, %f, %f) = %f, want %f",
					tt.envKey, tt.def, tt.min, tt.max, got, tt.want)
			}
		})
	}
}

func TestGetenvDuration(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      time.Duration
		want     time.Duration
	}{
		{name: "valid duration", envValue: "15m", def: time.Minute, want: 15 * time.Minute},
		{name: "not set", envValue: "", def: time.Minute, want: time.Minute},
		{name: "invalid", envValue: "soon", def: time.Minute, want: time.Minute},
		{name: "zero disables", envValue: "0s", def: time.Minute, want: 0},
		{name: "negative clamps to zero", envValue: "-5s", def: time.Minute, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv("TEST_DURATION", tt.envValue)
				defer os.Unsetenv("TEST_DURATION")
			}

			if got := getenvDuration("TEST_DURATION", tt.def); got != tt.want {
				t.Errorf("getenvDuration(%q) = %v, want %v", tt.envValue, got, tt.want)
			}
		})
	}
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	// Clear any existing env vars that might interfere
	keysToClean := []string{
		"HTTP_ADDR", "DATABASE_URL", "LOG_LEVEL",
		"LOW_CONFIDENCE_THRESHOLD", "PENALTY_DAMPENING", "POSTURE_THRESHOLD", "GAZE_THRESHOLD",
		"SESSION_IDLE_TIMEOUT", "SESSION_RETENTION", "REPLAY_WORKERS", "MAX_CONCURRENT_SESSIONS",
	}
	for _, key := range keysToClean {
		os.Unsetenv(key)
	}

	cfg := LoadConfigFromEnv()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}

	// Scoring defaults
	if cfg.LowConfidenceThreshold != 0.6 {
		t.Errorf("LowConfidenceThreshold = %f, want %f", cfg.LowConfidenceThreshold, 0.6)
	}

	if cfg.PenaltyDampening != 0.5 {
		t.Errorf("PenaltyDampening = %f, want %f", cfg.PenaltyDampening, 0.5)
	}

	if cfg.PostureThreshold != 0.2 {
		t.Errorf("PostureThreshold = %f, want %f", cfg.PostureThreshold, 0.2)
	}

	if cfg.GazeThreshold != 0.2 {
		t.Errorf("GazeThreshold = %f, want %f", cfg.GazeThreshold, 0.2)
	}

	// Session defaults: idle expiry is off unless configured
	if cfg.SessionIdleTimeout != 0 {
		t.Errorf("SessionIdleTimeout = %v, want 0", cfg.SessionIdleTimeout)
	}

	if cfg.SessionRetention != time.Hour {
		t.Errorf("SessionRetention = %v, want %v", cfg.SessionRetention, time.Hour)
	}

	if cfg.ReplayWorkers != 4 {
		t.Errorf("ReplayWorkers = %d, want %d", cfg.ReplayWorkers, 4)
	}
}

func TestLoadConfigFromEnvCustomValues(t *testing.T) {
	// Set custom values
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("POSTURE_THRESHOLD", "0.45")
	os.Setenv("GAZE_THRESHOLD", "0.9")
	os.Setenv("SESSION_IDLE_TIMEOUT", "10m")
	os.Setenv("REPLAY_WORKERS", "16")
	os.Setenv("LANDMARK_SERVICE_URL", "http://landmarks:8000")
	os.Setenv("APNS_PRODUCTION", "true")

	defer func() {
		os.Unsetenv("HTTP_ADDR")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("POSTURE_THRESHOLD")
		os.Unsetenv("GAZE_THRESHOLD")
		os.Unsetenv("SESSION_IDLE_TIMEOUT")
		os.Unsetenv("REPLAY_WORKERS")
		os.Unsetenv("LANDMARK_SERVICE_URL")
		os.Unsetenv("APNS_PRODUCTION")
	}()

	cfg := LoadConfigFromEnv()

	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}

	if cfg.PostureThreshold != 0.45 {
		t.Errorf("PostureThreshold = %f, want %f", cfg.PostureThreshold, 0.45)
	}

	// clamped to the upper bound
	if cfg.GazeThreshold != 0.5 {
		t.Errorf("GazeThreshold = %f, want %f", cfg.GazeThreshold, 0.5)
	}

	if cfg.SessionIdleTimeout != 10*time.Minute {
		t.Errorf("SessionIdleTimeout = %v, want %v", cfg.SessionIdleTimeout, 10*time.Minute)
	}

	if cfg.ReplayWorkers != 16 {
		t.Errorf("ReplayWorkers = %d, want %d", cfg.ReplayWorkers, 16)
	}

	if cfg.LandmarkServiceURL != "http://landmarks:8000" {
		t.Errorf("LandmarkServiceURL = %q", cfg.LandmarkServiceURL)
	}

	if !cfg.APNsProduction {
		t.Error("APNsProduction should be true")
	}
}
