package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every externally tunable setting for the submission
// pipeline. It is built once in main via Load and handed to the
// components that need it; nothing reads the environment after startup.
type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers        []string
	SubmissionTopic     string
	NotificationEnabled bool

	// Object storage
	StorageBucket    string
	StorageKeyPrefix string

	// Search index
	SearchEndpoint   string
	SearchAPIKey     string
	SearchCollection string

	// Virus scan
	ClamAVHost    string
	ClamAVPort    string
	ClamAVEnabled bool

	// EML stylesheets
	StylesheetKeyPrefix string
	StylesheetCacheTTL  time.Duration

	// Security classification
	ServiceClientIDs  []string
	SecurityRulesPath string

	// Validation
	ValidationRulesPath string
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 50*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "biohub"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "biohub123"),
		PostgresDB:       getEnv("POSTGRES_DB", "biohub"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:        getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		SubmissionTopic:     getEnv("SUBMISSION_EVENTS_TOPIC", "biohub-submission-events"),
		NotificationEnabled: getBoolEnv("NOTIFICATIONS_ENABLED", true),

		StorageBucket:    getEnv("STORAGE_BUCKET", "biohub-submissions"),
		StorageKeyPrefix: getEnv("STORAGE_KEY_PREFIX", "biohub"),

		SearchEndpoint:   getEnv("SEARCH_ENDPOINT", ""),
		SearchAPIKey:     getEnv("SEARCH_API_KEY", ""),
		SearchCollection: getEnv("SEARCH_COLLECTION", "biohub_datasets"),

		ClamAVHost:    getEnv("CLAMAV_HOST", "localhost"),
		ClamAVPort:    getEnv("CLAMAV_PORT", "3310"),
		ClamAVEnabled: getBoolEnv("CLAMAV_ENABLED", false),

		StylesheetKeyPrefix: getEnv("STYLESHEET_KEY_PREFIX", "stylesheets"),
		StylesheetCacheTTL:  getDuration("STYLESHEET_CACHE_TTL", 15*time.Minute),

		ServiceClientIDs:  getStringSliceEnv("SERVICE_CLIENT_IDS", nil),
		SecurityRulesPath: getEnv("SECURITY_RULES_PATH", ""),

		ValidationRulesPath: getEnv("VALIDATION_RULES_PATH", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getStringSliceEnv(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
