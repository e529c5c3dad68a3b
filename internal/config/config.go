package config

import (
	"fmt"
	"log"
	"os"
	"time"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env             string
	HTTPPort        string
	StoreBackend    string
	StorePath       string
	RedisAddr       string
	QueueBackend    string
	LocationURL     string
	LocationTimeout time.Duration
	AnnotatorURL    string
	AnnotatorSkip   bool
	RecorderURL     string
	RecorderDelay   time.Duration
	RateLimitPerMin int
}

// Load returns application config populated from environment variables with sensible defaults.
func Load() App {
	return App{
		Env:             getEnv("APP_ENV", "dev"),
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		StoreBackend:    getEnv("STORE_BACKEND", "file"),
		StorePath:       getEnv("STORE_PATH", "data/checkin.json"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		QueueBackend:    getEnv("QUEUE_BACKEND", "memory"),
		LocationURL:     getEnv("LOCATION_AGENT_URL", ""),
		LocationTimeout: durationEnv("LOCATION_TIMEOUT", 10*time.Second),
		AnnotatorURL:    getEnv("ANNOTATOR_URL", ""),
		AnnotatorSkip:   boolEnv("ANNOTATOR_SKIP", true),
		RecorderURL:     getEnv("RECORDER_URL", ""),
		RecorderDelay:   durationEnv("RECORDER_DELAY", 1500*time.Millisecond),
		RateLimitPerMin: intEnv("RATE_LIMIT_PER_MIN", 120),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if val == "1" || val == "true" || val == "TRUE" {
			return true
		}
		if val == "0" || val == "false" || val == "FALSE" {
			return false
		}
		log.Printf("invalid bool for %s, using fallback %v", key, fallback)
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}
