package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // report timezone must resolve in minimal containers

	xstrings "casedesk/pkg/platform/strings"
)

// Server captures process level configuration shared by cmd/server, cmd/worker and cmd/casectl.
type Server struct {
	Addr          string
	DatabaseURL   string
	JWTSigningKey string
	LogLevel      string
	LogFormat     string

	Redis     RedisConfig
	Numbering NumberingConfig
	Retention RetentionConfig
	Audit     AuditConfig

	RestoreMaxSuffix int
	ReportTimezone   string
	RequestTimeout   time.Duration
}

// RedisConfig configures the shared Redis client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NumberingConfig holds per-type starting sequences and the allocation lock toggle.
type NumberingConfig struct {
	InitialPreventive int
	InitialCorrective int
	AllocationLock    bool
}

// RetentionConfig controls archive and audit expiry.
type RetentionConfig struct {
	Archive       time.Duration
	Audit         time.Duration
	SweepInterval time.Duration
}

// AuditConfig configures audit recording and the optional Kafka sink.
// BufferSize 0 writes history on the request goroutine.
type AuditConfig struct {
	KafkaBrokers []string
	Topic        string
	BufferSize   int
}

const defaultJWTSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:          getEnv("CASEDESK_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSigningKey: getEnv("JWT_SIGNING_KEY", defaultJWTSigningKey),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		ReportTimezone: getEnv("REPORT_TIMEZONE", "America/Bogota"),
		Audit: AuditConfig{
			KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:        getEnv("AUDIT_TOPIC", "casedesk.audit"),
		},
	}

	var err error
	if cfg.Redis.PoolSize, err = getInt("REDIS_POOL_SIZE", 10); err != nil {
		return Server{}, err
	}
	if cfg.Redis.MinIdleConns, err = getInt("REDIS_MIN_IDLE_CONNS", 2); err != nil {
		return Server{}, err
	}
	if cfg.Redis.DialTimeout, err = getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Redis.ReadTimeout, err = getDuration("REDIS_READ_TIMEOUT", 3*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Redis.WriteTimeout, err = getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Numbering.InitialPreventive, err = getInt("CASE_INITIAL_SEQ_PREVENTIVE", 1); err != nil {
		return Server{}, err
	}
	if cfg.Numbering.InitialCorrective, err = getInt("CASE_INITIAL_SEQ_CORRECTIVE", 1); err != nil {
		return Server{}, err
	}
	if cfg.Numbering.AllocationLock, err = getBool("CASE_ALLOCATION_LOCK", false); err != nil {
		return Server{}, err
	}
	if cfg.Retention.Archive, err = getDuration("ARCHIVE_RETENTION", 30*24*time.Hour); err != nil {
		return Server{}, err
	}
	if cfg.Retention.Audit, err = getDuration("AUDIT_RETENTION", 30*24*time.Hour); err != nil {
		return Server{}, err
	}
	if cfg.Retention.SweepInterval, err = getDuration("RETENTION_SWEEP_INTERVAL", time.Hour); err != nil {
		return Server{}, err
	}
	if cfg.RestoreMaxSuffix, err = getInt("RESTORE_MAX_SUFFIX", 100); err != nil {
		return Server{}, err
	}
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Audit.BufferSize, err = getInt("AUDIT_BUFFER_SIZE", 0); err != nil {
		return Server{}, err
	}

	if err := cfg.validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (c Server) validate() error {
	if c.Numbering.InitialPreventive < 1 || c.Numbering.InitialPreventive > 9999 {
		return fmt.Errorf("CASE_INITIAL_SEQ_PREVENTIVE must be between 1 and 9999")
	}
	if c.Numbering.InitialCorrective < 1 || c.Numbering.InitialCorrective > 9999 {
		return fmt.Errorf("CASE_INITIAL_SEQ_CORRECTIVE must be between 1 and 9999")
	}
	if c.RestoreMaxSuffix < 1 {
		return fmt.Errorf("RESTORE_MAX_SUFFIX must be positive")
	}
	if c.Audit.BufferSize < 0 {
		return fmt.Errorf("AUDIT_BUFFER_SIZE must not be negative")
	}
	if c.Numbering.AllocationLock && c.Redis.URL == "" {
		return fmt.Errorf("CASE_ALLOCATION_LOCK requires REDIS_URL")
	}
	if _, err := time.LoadLocation(c.ReportTimezone); err != nil {
		return fmt.Errorf("REPORT_TIMEZONE: %w", err)
	}
	return nil
}

// ReportLocation resolves ReportTimezone. validate guarantees it loads.
func (c Server) ReportLocation() *time.Location {
	loc, err := time.LoadLocation(c.ReportTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	out := xstrings.DedupeAndTrim(strings.Split(v, ","))
	if len(out) == 0 {
		return nil
	}
	return out
}
