package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cache backends accepted by CACHE_BACKEND.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

type Config struct {
	Addr     string
	DBPath   string
	LogLevel  string
	LogFormat string

	CacheBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LLMAPIURL       string
	LLMAPIKey       string
	LLMModel        string
	LLMTimeout      time.Duration
	GenerateTimeout time.Duration
	EvaluateTimeout time.Duration

	PrefetchWorkerCount int
	PrefetchQueueSize   int
	CacheTTL            time.Duration
	CacheSweepInterval  time.Duration
	WarmupDelay         time.Duration
	WarmupLanguages     []string
	WarmupCronTime      string

	RateLimitHourly int
	RateLimitDaily  int

	PoolSeedFile string
}

// Load reads configuration from a .env file (if present) and environment variables,
// applying sensible defaults when values are missing or invalid.
func Load() Config {
	// Ignore error so the app still starts when .env is absent in production.
	_ = godotenv.Load()

	return Config{
		Addr:     envOr("ADDR", ":8080"),
		DBPath:   envOr("DB_PATH", "file:lingorun.db"),
		LogLevel:  envOr("LOG_LEVEL", "INFO"),
		LogFormat: envOr("LOG_FORMAT", "text"),

		CacheBackend:  strings.ToLower(envOr("CACHE_BACKEND", CacheBackendMemory)),
		RedisAddr:     envOr("REDIS_ADDR", ""),
		RedisPassword: envOr("REDIS_PASSWORD", ""),
		RedisDB:       envIntOr("REDIS_DB", 0),

		LLMAPIURL:       envOr("LLM_API_URL", "https://api.groq.com/openai/v1/chat/completions"),
		LLMAPIKey:       envOr("LLM_API_KEY", ""),
		LLMModel:        envOr("LLM_MODEL", "llama-3.3-70b-versatile"),
		LLMTimeout:      envDurationOr("LLM_TIMEOUT", 30*time.Second),
		GenerateTimeout: envDurationOr("GENERATE_TIMEOUT", 20*time.Second),
		EvaluateTimeout: envDurationOr("EVALUATE_TIMEOUT", 15*time.Second),

		PrefetchWorkerCount: envIntOr("PREFETCH_WORKER_COUNT", 2),
		PrefetchQueueSize:   envIntOr("PREFETCH_QUEUE_SIZE", 32),
		CacheTTL:            envDurationOr("CACHE_TTL", 24*time.Hour),
		CacheSweepInterval:  envDurationOr("CACHE_SWEEP_INTERVAL", 10*time.Minute),
		WarmupDelay:         envDurationOr("WARMUP_DELAY", time.Second),
		WarmupLanguages:     envListOr("WARMUP_LANGUAGES", []string{"en"}),
		WarmupCronTime:      envOr("WARMUP_CRON_TIME", "03:00"),

		RateLimitHourly: envIntOr("RATE_LIMIT_HOURLY", 100),
		RateLimitDaily:  envIntOr("RATE_LIMIT_DAILY", 50),

		PoolSeedFile: envOr("POOL_SEED_FILE", ""),
	}
}

// Validate checks that the configuration can be used to start the server.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("ADDR cannot be empty")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	switch c.CacheBackend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("REDIS_ADDR is required when CACHE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", CacheBackendMemory, CacheBackendRedis, c.CacheBackend)
	}
	if c.PrefetchWorkerCount < 1 {
		return fmt.Errorf("PREFETCH_WORKER_COUNT must be at least 1, got %d", c.PrefetchWorkerCount)
	}
	if c.PrefetchQueueSize < 1 {
		return fmt.Errorf("PREFETCH_QUEUE_SIZE must be at least 1, got %d", c.PrefetchQueueSize)
	}
	if c.RateLimitHourly < 1 {
		return fmt.Errorf("RATE_LIMIT_HOURLY must be at least 1, got %d", c.RateLimitHourly)
	}
	if c.RateLimitDaily < 1 {
		return fmt.Errorf("RATE_LIMIT_DAILY must be at least 1, got %d", c.RateLimitDaily)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.CacheSweepInterval <= 0 {
		return fmt.Errorf("CACHE_SWEEP_INTERVAL must be positive, got %s", c.CacheSweepInterval)
	}
	if c.WarmupDelay < 0 {
		return fmt.Errorf("WARMUP_DELAY cannot be negative, got %s", c.WarmupDelay)
	}
	if c.GenerateTimeout <= 0 || c.EvaluateTimeout <= 0 || c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT, GENERATE_TIMEOUT and EVALUATE_TIMEOUT must be positive")
	}
	if _, err := time.Parse("15:04", c.WarmupCronTime); err != nil {
		return fmt.Errorf("WARMUP_CRON_TIME must be HH:MM, got %q", c.WarmupCronTime)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Printf("invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}

func envDurationOr(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("invalid value for %s=%q, using default %s", key, v, def)
	}
	return def
}

func envListOr(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
