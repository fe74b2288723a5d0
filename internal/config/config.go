package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	DBFile      string
	APIAddr     string
	BaseURL     string
	UploadsPath string
	TokenExpiry time.Duration

	// RedisAddr selects the Redis cache backend; empty falls back to the
	// in-process TTL cache.
	RedisAddr string
	CacheTTL  time.Duration
	// CachePolicy is "ttl" (default, no invalidation on writes) or
	// "write-through".
	CachePolicy string

	AIProvider string
	AIModel    string
	AIAPIKey   string
	AIBaseURL  string

	PushSubscriber  string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
}

func Load() (*Config, error) {
	tokenExpiry, err := time.ParseDuration(getEnv("TOKEN_EXPIRY", "24h"))
	if err != nil {
		return nil, err
	}
	cacheTTL, err := time.ParseDuration(getEnv("CACHE_TTL", "60s"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DBFile:          getEnv("MOLVA_DB", "molva.db"),
		APIAddr:         getEnv("API_ADDR", ":8080"),
		BaseURL:         getEnv("BASE_URL", "http://localhost:8080"),
		UploadsPath:     getEnv("UPLOADS_PATH", "uploads"),
		TokenExpiry:     tokenExpiry,
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		CacheTTL:        cacheTTL,
		CachePolicy:     getEnv("CACHE_POLICY", "ttl"),
		AIProvider:      os.Getenv("AI_PROVIDER"),
		AIModel:         getEnv("AI_MODEL", "gpt-4o-mini"),
		AIAPIKey:        os.Getenv("AI_API_KEY"),
		AIBaseURL:       getEnv("AI_BASE_URL", "http://localhost:11434"),
		PushSubscriber:  getEnv("PUSH_SUBSCRIBER", "mailto:admin@localhost"),
		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.TokenExpiry <= 0 {
		return fmt.Errorf("TOKEN_EXPIRY must be greater than 0")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be greater than 0")
	}
	if c.CachePolicy != "ttl" && c.CachePolicy != "write-through" {
		return fmt.Errorf("CACHE_POLICY must be \"ttl\" or \"write-through\"")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
