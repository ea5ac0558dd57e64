// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the composition root needs to wire the service.
type Config struct {
	Addr string

	FirebaseProjectID     string
	GoogleCredentialsFile string

	WhisperAPIKey  string
	WhisperModel   string
	WhisperBaseURL string

	TempDir        string
	MaxUploadBytes int64

	SecondsPerCredit   int
	MaxDurationSeconds int
	StartingCredits    int
	Workers            int
	// QueueSize bounds the pending-job queue; zero derives it from the
	// worker count.
	QueueSize       int
	HistoryPageSize int

	SubtitleRetention time.Duration
	JanitorInterval   time.Duration
	JanitorTTL        time.Duration
}

// Load reads the environment. A missing .env file is not an error; real
// deployments set variables directly.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr: envOrDefault("APP_ADDR", ":8080"),

		FirebaseProjectID:     os.Getenv("FIREBASE_PROJECT_ID"),
		GoogleCredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),

		WhisperAPIKey:  os.Getenv("WHISPER_API_KEY"),
		WhisperModel:   envOrDefault("WHISPER_MODEL", "whisper-1"),
		WhisperBaseURL: os.Getenv("WHISPER_BASE_URL"),

		TempDir:        envOrDefault("TEMP_DIR", os.TempDir()),
		MaxUploadBytes: envInt64OrDefault("MAX_UPLOAD_BYTES", 500*1024*1024),

		SecondsPerCredit:   envIntOrDefault("SECONDS_PER_CREDIT", 300),
		MaxDurationSeconds: envIntOrDefault("MAX_DURATION_SECONDS", 600),
		StartingCredits:    envIntOrDefault("STARTING_CREDITS", 5),
		Workers:            envIntOrDefault("WORKERS", 4),
		QueueSize:          envIntOrDefault("QUEUE_SIZE", 0),
		HistoryPageSize:    envIntOrDefault("HISTORY_PAGE_SIZE", 100),

		SubtitleRetention: envDurationOrDefault("SUBTITLE_RETENTION", 10*24*time.Hour),
		JanitorInterval:   envDurationOrDefault("JANITOR_INTERVAL", 30*time.Minute),
		JanitorTTL:        envDurationOrDefault("JANITOR_TTL", 24*time.Hour),
	}
}

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt64OrDefault(key string, fallback int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDurationOrDefault(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
