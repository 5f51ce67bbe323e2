// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ServiceConfig holds process-level settings.
type ServiceConfig struct {
	Principal         string
	HTTPPort          string
	ObservabilityPort string
}

// RealtimeConfig holds settings for the remote realtime model endpoint.
type RealtimeConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	ConnectTimeout time.Duration
}

// InterviewConfig holds the interview policy handed to each session.
type InterviewConfig struct {
	TimeLimit       time.Duration
	TargetQuestions int
	Voice           string
}

// AnalysisConfig holds settings for the post-interview scoring call.
type AnalysisConfig struct {
	Model       string
	MaxAttempts int
	Backoff     time.Duration
}

// DatabaseConfig holds assessment storage settings.
type DatabaseConfig struct {
	Path string
}

// KafkaConfig holds event publishing settings.
type KafkaConfig struct {
	Enabled        bool
	Brokers        []string
	TopicFinal     string
	TopicLifecycle string
	Principal      string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Configuration is the root configuration for the service.
type Configuration struct {
	Service   ServiceConfig
	Realtime  RealtimeConfig
	Interview InterviewConfig
	Analysis  AnalysisConfig
	Database  DatabaseConfig
	Kafka     KafkaConfig
	Log       LogConfig
}

// Load reads configuration from the environment, applying defaults for
// anything unset.
func Load() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Principal:         envOrDefault("SERVICE_PRINCIPAL", "svc-interview-session"),
			HTTPPort:          envOrDefault("HTTP_PORT", "8080"),
			ObservabilityPort: envOrDefault("OBSERVABILITY_PORT", "9090"),
		},
		Realtime: RealtimeConfig{
			BaseURL:        envOrDefault("REALTIME_BASE_URL", "wss://api.openai.com/v1/realtime"),
			APIKey:         os.Getenv("OPENAI_API_KEY"),
			Model:          envOrDefault("REALTIME_MODEL", "gpt-realtime-mini"),
			ConnectTimeout: envDurationOrDefault("REALTIME_CONNECT_TIMEOUT", 15*time.Second),
		},
		Interview: InterviewConfig{
			TimeLimit:       envDurationOrDefault("INTERVIEW_TIME_LIMIT", 120*time.Second),
			TargetQuestions: envIntOrDefault("INTERVIEW_TARGET_QUESTIONS", 3),
			Voice:           envOrDefault("INTERVIEW_VOICE", "cedar"),
		},
		Analysis: AnalysisConfig{
			Model:       envOrDefault("ANALYSIS_MODEL", "gpt-5-nano"),
			MaxAttempts: envIntOrDefault("ANALYSIS_MAX_ATTEMPTS", 3),
			Backoff:     envDurationOrDefault("ANALYSIS_BACKOFF", time.Second),
		},
		Database: DatabaseConfig{
			Path: envOrDefault("DATABASE_PATH", "interview.db"),
		},
		Kafka: KafkaConfig{
			Enabled:        envBoolOrDefault("KAFKA_ENABLED", false),
			Brokers:        envListOrDefault("KAFKA_BROKERS", nil),
			TopicFinal:     envOrDefault("KAFKA_TOPIC_TRANSCRIPT_FINAL", "interview.transcript.final"),
			TopicLifecycle: envOrDefault("KAFKA_TOPIC_LIFECYCLE", "interview.session.lifecycle"),
			Principal:      envOrDefault("SERVICE_PRINCIPAL", "svc-interview-session"),
		},
		Log: LogConfig{
			Level:  envOrDefault("LOG_LEVEL", "info"),
			Format: envOrDefault("LOG_FORMAT", "json"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBoolOrDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDurationOrDefault(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envListOrDefault(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
