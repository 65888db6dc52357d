package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/access-control/internal/config"
)

const (
	pgConnectTimeout      = 5 * time.Second
	pgHealthCheckInterval = 30 * time.Second
)

// Postgres holds the pool backing the credential store.
type Postgres struct {
	Pool *pgxpool.Pool
}

// PoolConfig maps the store settings onto a pgx pool configuration. The
// application name is reported to the server so sessions show up in
// pg_stat_activity.
func PoolConfig(cfg config.PostgresConfig, appName string) (*pgxpool.Config, error) {
	if cfg.DSN == "" {
		return nil, errors.New("POSTGRES_DSN is required for the postgres store")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse POSTGRES_DSN: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = min(cfg.MinConns, poolCfg.MaxConns)
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}
	poolCfg.HealthCheckPeriod = pgHealthCheckInterval
	if poolCfg.ConnConfig.ConnectTimeout == 0 {
		poolCfg.ConnConfig.ConnectTimeout = pgConnectTimeout
	}
	if appName != "" {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = appName
	}
	return poolCfg, nil
}

// NewPostgres opens the pool and fails unless the server answers a ping.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig, appName string, logger *zap.Logger) (*Postgres, error) {
	poolCfg, err := PoolConfig(cfg, appName)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pgConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger.Info("connected to postgres",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database),
		zap.Int32("max_conns", poolCfg.MaxConns))
	return &Postgres{Pool: pool}, nil
}

// Ping is used by the readiness probe.
func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return errors.New("postgres pool not configured")
	}
	return p.Pool.Ping(ctx)
}

func (p *Postgres) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}
