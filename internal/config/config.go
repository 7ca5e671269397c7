package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	JWTAccessSecret  string
	JWTRefreshSecret string
	JWTAccessTTL     time.Duration
	JWTRefreshTTL    time.Duration
	BcryptCost       int
	HashConcurrency  int
	PasswordStrict   bool

	MaxLoginAttempts int
	AccountLockout   time.Duration

	BruteForceMaxAttempts int
	BruteForceWindow      time.Duration
	BruteForceLockout     time.Duration

	RateLimitWindow  time.Duration
	RateLimitLogin   int
	RateLimitUpload  int
	RateLimitDefault int
	RateLimitBlock   time.Duration
	PruneInterval    time.Duration

	AllowedHosts []string
	CORSOrigins  []string

	UploadDir              string
	MaxUploadSize          int64
	AllowedPhotoExtensions []string
	ThumbnailSize          int

	RedisURL       string
	AuditAMQPURL   string
	AuditAMQPQueue string

	MetricsEnabled bool
	LogLevel       string
	LogFormat      string

	SeedAdminEmail    string
	SeedAdminPassword string
	SeedDemoUsers     bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("PORT", "8000"),
		ServerReadHeaderTimeout: getDuration("READ_TIMEOUT", 15*time.Second),
		ServerWriteTimeout:      getDuration("WRITE_TIMEOUT", 60*time.Second),
		ServerIdleTimeout:       getDuration("IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),

		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 2)),

		JWTAccessSecret:  strings.TrimSpace(os.Getenv("JWT_ACCESS_SECRET")),
		JWTRefreshSecret: strings.TrimSpace(os.Getenv("JWT_REFRESH_SECRET")),
		JWTAccessTTL:     getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		JWTRefreshTTL:    getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		BcryptCost:       getInt("BCRYPT_COST", 12),
		HashConcurrency:  getInt("HASH_CONCURRENCY", 4),
		PasswordStrict:   getBool("PASSWORD_STRICT", false),

		MaxLoginAttempts: getInt("MAX_LOGIN_ATTEMPTS", 5),
		AccountLockout:   getDuration("ACCOUNT_LOCKOUT", 30*time.Minute),

		BruteForceMaxAttempts: getInt("BRUTEFORCE_MAX_ATTEMPTS", 10),
		BruteForceWindow:      getDuration("BRUTEFORCE_WINDOW", 300*time.Second),
		BruteForceLockout:     getDuration("BRUTEFORCE_LOCKOUT", 600*time.Second),

		RateLimitWindow:  getDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		RateLimitLogin:   getInt("RATE_LIMIT_LOGIN", 5),
		RateLimitUpload:  getInt("RATE_LIMIT_UPLOAD", 10),
		RateLimitDefault: getInt("RATE_LIMIT_DEFAULT", 100),
		RateLimitBlock:   getDuration("RATE_LIMIT_BLOCK", 300*time.Second),
		PruneInterval:    getDuration("PRUNE_INTERVAL", 60*time.Second),

		AllowedHosts: splitCSV(getEnv("ALLOWED_HOSTS", "*")),
		CORSOrigins:  splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		UploadDir:              getEnv("UPLOAD_DIR", "./uploads"),
		MaxUploadSize:          getInt64("MAX_UPLOAD_SIZE", 10*1024*1024),
		AllowedPhotoExtensions: splitCSV(getEnv("ALLOWED_PHOTO_EXTENSIONS", "jpg,jpeg,png,webp")),
		ThumbnailSize:          getInt("THUMBNAIL_SIZE", 320),

		RedisURL:       strings.TrimSpace(os.Getenv("REDIS_URL")),
		AuditAMQPURL:   strings.TrimSpace(os.Getenv("AUDIT_AMQP_URL")),
		AuditAMQPQueue: getEnv("AUDIT_AMQP_QUEUE", "audit.entries"),

		MetricsEnabled: getBool("METRICS_ENABLED", true),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),

		SeedAdminEmail:    getEnv("SEED_ADMIN_EMAIL", "admin@busstops.local"),
		SeedAdminPassword: strings.TrimSpace(os.Getenv("SEED_ADMIN_PASSWORD")),
		SeedDemoUsers:     getBool("SEED_DEMO_USERS", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}

	if c.JWTRefreshSecret == "" {
		return fmt.Errorf("JWT_REFRESH_SECRET is required")
	}

	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	if port, err := strconv.Atoi(c.ServerPort); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("PORT must be a valid TCP port")
	}

	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MAX_CONNS must be positive and not below DB_MIN_CONNS")
	}

	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}

	if c.MaxLoginAttempts <= 0 || c.BruteForceMaxAttempts <= 0 {
		return fmt.Errorf("login attempt thresholds must be positive")
	}

	if c.RateLimitWindow <= 0 || c.RateLimitLogin <= 0 || c.RateLimitUpload <= 0 || c.RateLimitDefault <= 0 {
		return fmt.Errorf("rate limit window and quotas must be positive")
	}

	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if strings.TrimSpace(c.UploadDir) == "" {
		return fmt.Errorf("UPLOAD_DIR cannot be empty")
	}

	if len(c.AllowedHosts) == 0 {
		return fmt.Errorf("ALLOWED_HOSTS cannot be empty")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getInt64(key string, fallback int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

// getDuration accepts Go duration strings ("15m") or bare seconds ("300").
func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
