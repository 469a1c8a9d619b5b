package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort     string
	AppMode     string
	LogMode     string
	ServiceName string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Scheme A: legacy server-side sessions keyed by an opaque cookie.
	SessionCookie string
	SessionTTL    time.Duration
	// Scheme B: signed access tokens, read from a cookie or the bearer header.
	TokenCookie string
	JWTSecret   string

	FanoutBroker string
	NATSURL      string
	NATSSubject  string

	S3Region     string
	S3Bucket     string
	S3AccessKey  string
	S3SecretKey  string
	S3Endpoint   string
	S3PublicBase string
	S3PresignTTL time.Duration
	MaxFileSize  int64

	CORSAllowedOrigins []string
	HTTPRateLimit      int
	HTTPRateWindow     time.Duration
	MessageRateLimit   int
	MessageRateWindow  time.Duration

	OTLPEndpoint string

	WSPingInterval time.Duration
	WSPongTimeout  time.Duration
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:     getEnv("APP_PORT", "8080"),
		AppMode:     getEnv("APP_MODE", "debug"),
		LogMode:     getEnv("LOG_MODE", "development"),
		ServiceName: getEnv("SERVICE_NAME", "marketplace-chat"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "marketplace"),
		DBPort:     getEnv("DB_PORT", "5432"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		SessionCookie: getEnv("SESSION_COOKIE", "sid"),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		TokenCookie:   getEnv("TOKEN_COOKIE", "access_token"),
		JWTSecret:     getEnv("JWT_SECRET", "change-me"),

		FanoutBroker: getEnv("FANOUT_BROKER", "local"),
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject:  getEnv("NATS_SUBJECT", ""),

		S3Region:     getEnv("S3_REGION", ""),
		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3AccessKey:  getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:  getEnv("S3_SECRET_KEY", ""),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		S3PublicBase: getEnv("S3_PUBLIC_BASE", ""),
		S3PresignTTL: getEnvAsDuration("S3_PRESIGN_TTL", 15*time.Minute),
		MaxFileSize:  int64(getEnvAsInt("MAX_FILE_SIZE_MB", 25)) * 1024 * 1024,

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		HTTPRateLimit:      getEnvAsInt("RATE_LIMIT_REQUESTS", 300),
		HTTPRateWindow:     getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		MessageRateLimit:   getEnvAsInt("RATE_LIMIT_MESSAGES", 60),
		MessageRateWindow:  getEnvAsDuration("RATE_LIMIT_MESSAGES_WINDOW", time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		WSPingInterval: getEnvAsDuration("WS_PING_INTERVAL", 25*time.Second),
		WSPongTimeout:  getEnvAsDuration("WS_PONG_TIMEOUT", 60*time.Second),
	}
}

// S3Enabled reports whether attachment uploads can be presigned.
func (c *Config) S3Enabled() bool {
	return c.S3Region != "" && c.S3Bucket != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
