package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// DB wraps the connection pool to the hosted Postgres instance that backs
// profiles, journal entries and AI usage.
type DB struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string, maxConns int32, minConns int32) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	cfg.MaxConns = maxConns
	cfg.MinConns = minConns
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("database connected",
		"host", cfg.ConnConfig.Host,
		"database", cfg.ConnConfig.Database,
		"max_conns", maxConns,
		"min_conns", minConns,
	)
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Health backs the readiness probe.
func (db *DB) Health(ctx context.Context) error {
	if db == nil || db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	return db.Pool.Ping(ctx)
}

// Collectors exposes pool saturation as gauges read at scrape time.
func (db *DB) Collectors() []prometheus.Collector {
	gauge := func(name string, help string, read func(*pgxpool.Stat) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "sotto",
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 {
			return read(db.Pool.Stat())
		})
	}

	return []prometheus.Collector{
		gauge("acquired_conns", "Connections currently checked out.", func(s *pgxpool.Stat) float64 {
			return float64(s.AcquiredConns())
		}),
		gauge("idle_conns", "Idle connections in the pool.", func(s *pgxpool.Stat) float64 {
			return float64(s.IdleConns())
		}),
		gauge("max_conns", "Configured pool size.", func(s *pgxpool.Stat) float64 {
			return float64(s.MaxConns())
		}),
	}
}
