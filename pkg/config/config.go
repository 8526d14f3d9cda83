package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort     string
	Environment    string
	LogLevel       string
	AllowedOrigins []string
	PingInterval   time.Duration
	PingTimeout    time.Duration

	AuthProvider      string
	JWTSecret         string
	TrustDeclaredRole bool

	FirebaseProject            string
	FirebaseServiceAccountJSON string
	FirebaseServiceAccountPath string

	DatabaseDriver string
	DatabaseURL    string

	PresenceBackend string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	PresenceTTL     time.Duration

	NATSURL    string
	NATSStream string

	TracingEnabled  bool
	TracingEndpoint string

	HTTPRateLimit   int
	HTTPRateWindow  time.Duration
	EventRateBurst  int
	EventRateRefill time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:     getEnv("SOCKET_PORT", "3002"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		PingInterval:   time.Duration(getEnvAsInt64("PING_INTERVAL_MS", 25000)) * time.Millisecond,
		PingTimeout:    time.Duration(getEnvAsInt64("PING_TIMEOUT_MS", 60000)) * time.Millisecond,

		AuthProvider:      getEnv("AUTH_PROVIDER", "jwt"),
		JWTSecret:         getEnv("NEXTAUTH_SECRET", getEnv("JWT_SECRET", "")),
		TrustDeclaredRole: getEnvAsBool("TRUST_DECLARED_ROLE", true),

		FirebaseProject:            getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseServiceAccountJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		FirebaseServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),

		DatabaseDriver: getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:    getEnv("DATABASE_URL", "file:agrolink.db"),

		PresenceBackend: getEnv("PRESENCE_BACKEND", "memory"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         int(getEnvAsInt64("REDIS_DB", 0)),
		PresenceTTL:     time.Duration(getEnvAsInt64("PRESENCE_TTL_SECONDS", 120)) * time.Second,

		NATSURL:    getEnv("NATS_URL", ""),
		NATSStream: getEnv("NATS_STREAM", "SUPPORT_EVENTS"),

		TracingEnabled:  getEnvAsBool("TRACING_ENABLED", false),
		TracingEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),

		HTTPRateLimit:   int(getEnvAsInt64("HTTP_RATE_LIMIT", 100)),
		HTTPRateWindow:  time.Duration(getEnvAsInt64("HTTP_RATE_WINDOW_SECONDS", 60)) * time.Second,
		EventRateBurst:  int(getEnvAsInt64("EVENT_RATE_BURST", 30)),
		EventRateRefill: time.Duration(getEnvAsInt64("EVENT_RATE_REFILL_MS", 100)) * time.Millisecond,
	}

	return config, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
