package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	CartStoreFile     = "file"
	CartStorePostgres = "postgres"
)

type Config struct {
	Env                 string
	HTTPAddr            string
	APIBaseURL          string
	APITimeout          time.Duration
	CartStore           string
	CartStorageDir      string
	CartStorageKey      string
	DatabaseURL         string
	StatusPollInterval  time.Duration
	AdminPollInterval   time.Duration
	PollInitialDelay    time.Duration
	MerchantDisplayName string
	JWTSecret           string
	JWTExpirySeconds    int64
	RabbitMQURL         string
	EventsExchange      string
	CorsAllowedOrigins  []string
	WSHeartbeatInterval time.Duration

	ObjectStoreEndpoint        string
	ObjectStoreRegion          string
	ObjectStoreAccessKeyID     string
	ObjectStoreSecretAccessKey string
	ObjectStoreBucket          string
	ObjectStorePublicBaseURL   string
	ObjectStoreStorageClass    string
	ObjectStoreRetain          int
}

func Load() Config {
	cfg := Config{
		Env:                 getEnv("APP_ENV", "development"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8087"),
		APIBaseURL:          strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:5000"), "/"),
		APITimeout:          getEnvDuration("API_TIMEOUT", 0),
		CartStore:           strings.ToLower(getEnv("CART_STORE", CartStoreFile)),
		CartStorageDir:      getEnv("CART_STORAGE_DIR", ".momo"),
		CartStorageKey:      getEnv("CART_STORAGE_KEY", "momo_cart"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		StatusPollInterval:  getEnvDuration("STATUS_POLL_INTERVAL", 10*time.Second),
		AdminPollInterval:   getEnvDuration("ADMIN_POLL_INTERVAL", 5*time.Second),
		PollInitialDelay:    getEnvDuration("POLL_INITIAL_DELAY", 100*time.Millisecond),
		MerchantDisplayName: getEnv("MERCHANT_DISPLAY_NAME", "Momo Stall"),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		JWTExpirySeconds:    getEnvInt64("JWT_EXPIRY", 8*3600),
		RabbitMQURL:         getEnv("RABBITMQ_URL", ""),
		EventsExchange:      getEnv("RABBITMQ_EVENTS_EXCHANGE", "momo.events"),
		CorsAllowedOrigins:  splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		WSHeartbeatInterval: getEnvDuration("WS_HEARTBEAT_INTERVAL", 30*time.Second),

		// Export archive (Cloudflare R2 / S3-compatible)
		ObjectStoreEndpoint:        getEnvFirst([]string{"OBJECT_STORE_ENDPOINT", "R2_S3_ENDPOINT"}, ""),
		ObjectStoreRegion:          getEnvFirst([]string{"OBJECT_STORE_REGION", "R2_REGION"}, "auto"),
		ObjectStoreAccessKeyID:     getEnvFirst([]string{"OBJECT_STORE_ACCESS_KEY_ID", "R2_ACCESS_KEY_ID"}, ""),
		ObjectStoreSecretAccessKey: getEnvFirst([]string{"OBJECT_STORE_SECRET_ACCESS_KEY", "R2_SECRET_ACCESS_KEY"}, ""),
		ObjectStoreBucket:          getEnvFirst([]string{"OBJECT_STORE_BUCKET", "R2_BUCKET"}, ""),
		ObjectStorePublicBaseURL:   getEnvFirst([]string{"OBJECT_STORE_PUBLIC_BASE_URL", "R2_PUBLIC_BASE_URL"}, ""),
		ObjectStoreStorageClass:    getEnvFirst([]string{"OBJECT_STORE_STORAGE_CLASS", "R2_STORAGE_CLASS"}, "STANDARD"),
		ObjectStoreRetain:          int(getEnvInt64("OBJECT_STORE_RETAIN", 30)),
	}

	if cfg.StatusPollInterval <= 0 {
		cfg.StatusPollInterval = 10 * time.Second
	}
	if cfg.AdminPollInterval <= 0 {
		cfg.AdminPollInterval = 5 * time.Second
	}
	if cfg.JWTExpirySeconds <= 0 {
		cfg.JWTExpirySeconds = 8 * 3600
	}

	// Back-compat: allow R2_ACCOUNT_ID -> endpoint
	if strings.TrimSpace(cfg.ObjectStoreEndpoint) == "" {
		accountID := strings.TrimSpace(os.Getenv("R2_ACCOUNT_ID"))
		if accountID != "" {
			cfg.ObjectStoreEndpoint = "https://" + accountID + ".r2.cloudflarestorage.com"
		}
	}

	return cfg
}

// Validate reports configuration that would make the daemon unusable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return errors.New("API_BASE_URL is required")
	}
	switch c.CartStore {
	case CartStoreFile:
	case CartStorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required when CART_STORE=postgres")
		}
	default:
		return errors.New("CART_STORE must be file or postgres")
	}
	if c.JWTSecret == "" && !c.IsDevelopment() {
		return errors.New("JWT_SECRET is required outside development")
	}
	return nil
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "local"
}

// ObjectStoreEnabled is true when enough settings exist to archive exports. Without a
// public base URL archived exports are handed out as presigned links.
func (c Config) ObjectStoreEnabled() bool {
	return c.ObjectStoreEndpoint != "" && c.ObjectStoreBucket != ""
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvFirst(keys []string, fallback string) string {
	for _, k := range keys {
		value := strings.TrimSpace(os.Getenv(k))
		if value != "" {
			return value
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
