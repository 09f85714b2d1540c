// Package app assembles the stores, audit pipeline and lifecycle service from
// configuration. cmd/server, cmd/worker and cmd/casectl share it so every
// process sees the same backends.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"casedesk/internal/cases/archive"
	"casedesk/internal/cases/metrics"
	"casedesk/internal/cases/models"
	"casedesk/internal/cases/numbering"
	"casedesk/internal/cases/retention"
	"casedesk/internal/cases/service"
	"casedesk/internal/cases/store"
	"casedesk/internal/platform/config"
	"casedesk/internal/platform/postgres"
	"casedesk/internal/platform/redis"
	"casedesk/internal/principal"
	"casedesk/pkg/platform/audit"
	"casedesk/pkg/platform/audit/publisher"
	"casedesk/pkg/platform/audit/publishers/kafka"
	auditmemory "casedesk/pkg/platform/audit/store/memory"
	auditpostgres "casedesk/pkg/platform/audit/store/postgres"
)

const (
	// lockTTL bounds how long a crashed holder can block allocation for a (type, year).
	lockTTL = 10 * time.Second

	sinkFailureThreshold = 5
	sinkCooldown         = 30 * time.Second
)

// Backends holds every long-lived dependency built from config.
type Backends struct {
	Cases    *store.CaseStore
	Archive  *archive.Manager
	Audit    *publisher.Publisher
	Sessions principal.SessionStore
	Metrics  *metrics.Metrics
	Redis    *redis.Client

	// emitter is Audit, fanned out to Kafka when brokers are configured.
	emitter audit.Emitter
	cfg     config.Server
	logger  *slog.Logger
	closers []func()
}

// Open connects to the configured backends. An empty DATABASE_URL selects
// in-memory stores; an empty REDIS_URL selects in-memory sessions.
func Open(ctx context.Context, cfg config.Server, logger *slog.Logger, reg prometheus.Registerer) (_ *Backends, err error) {
	b := &Backends{
		cfg:     cfg,
		logger:  logger,
		Metrics: metrics.New(reg),
	}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	if b.Redis, err = redis.New(ctx, cfg.Redis); err != nil {
		return nil, err
	}
	if b.Redis != nil {
		b.closers = append(b.closers, func() { _ = b.Redis.Close() })
		b.Sessions = principal.NewRedisSessionStore(b.Redis.Client)
	} else {
		b.Sessions = principal.NewInMemorySessionStore()
	}

	storeOpts := []store.Option{store.WithLogger(logger.With("component", "case_store"))}
	if cfg.Numbering.AllocationLock {
		storeOpts = append(storeOpts, store.WithAllocationLock(
			numbering.NewRedisLocker(redislock.New(b.Redis.Client), lockTTL)))
	}
	numberingCfg := numbering.Config{InitialSequence: map[models.CaseType]int{
		models.CaseTypePreventive: cfg.Numbering.InitialPreventive,
		models.CaseTypeCorrective: cfg.Numbering.InitialCorrective,
	}}

	var archiveStore archive.Store
	var auditStore audit.Store
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; using in-memory stores")
		b.Cases = store.NewInMemory(numberingCfg, storeOpts...)
		archiveStore = archive.NewInMemoryStore()
		auditStore = auditmemory.NewInMemoryStore()
	} else {
		pool, db, err := openPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close, func() { _ = db.Close() })
		b.Cases = store.NewPostgres(pool, numberingCfg, storeOpts...)
		archiveStore = archive.NewPostgresStore(pool)
		auditStore = auditpostgres.New(db)
	}

	b.Archive = archive.New(b.Cases, archiveStore,
		archive.WithLogger(logger.With("component", "archive")),
		archive.WithMetrics(b.Metrics),
		archive.WithRetention(cfg.Retention.Archive),
		archive.WithMaxRestoreSuffix(cfg.RestoreMaxSuffix),
	)

	b.Audit = publisher.NewPublisher(auditStore,
		publisher.WithRetention(cfg.Retention.Audit),
		publisher.WithLogger(logger.With("component", "audit")),
		publisher.WithAsyncBuffer(cfg.Audit.BufferSize),
	)
	b.closers = append(b.closers, b.Audit.Close)
	b.emitter = b.Audit

	if len(cfg.Audit.KafkaBrokers) > 0 {
		sink, err := kafka.New(cfg.Audit.KafkaBrokers, cfg.Audit.Topic)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, sink.Close)
		guarded := publisher.NewBreaker(sink, sinkFailureThreshold, sinkCooldown)
		b.emitter = publisher.NewMulti(logger.With("component", "audit"), b.Audit, guarded)
	}
	return b, nil
}

func openPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, *sql.DB, error) {
	pool, err := postgres.Connect(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	db, err := postgres.OpenSQL(ctx, dsn)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, db, nil
}

// Service builds the lifecycle service over the backends.
func (b *Backends) Service() *service.Service {
	return service.New(b.Cases, b.Archive,
		service.WithLogger(b.logger.With("component", "cases")),
		service.WithMetrics(b.Metrics),
		service.WithAuditPublisher(b.emitter),
		service.WithHistory(b.Audit),
		service.WithReportLocation(b.cfg.ReportLocation()),
	)
}

// Retention builds the purge processor over the archive and audit stores.
func (b *Backends) Retention() *retention.Processor {
	return retention.NewProcessor(b.Archive, b.Audit,
		retention.WithMetrics(b.Metrics),
		retention.WithLogger(b.logger.With("component", "retention")),
	)
}

// Health pings the backends that can fail independently of the process.
func (b *Backends) Health(ctx context.Context) error {
	if b.Redis == nil {
		return nil
	}
	if err := b.Redis.Health(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// Close releases backends in reverse order of acquisition.
func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// ErrRedisRequired is returned by processes that cannot run without Redis.
var ErrRedisRequired = errors.New("REDIS_URL is required")
