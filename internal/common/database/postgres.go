package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/config"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// PostgresClient owns the pool shared by the alert store and the roster tool.
type PostgresClient struct {
	DB     *sql.DB
	dbName string
}

// NewPostgres opens the pool without dialing; call Ping to verify it.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres %s@%s: %w", cfg.Database, cfg.Host, err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	return &PostgresClient{DB: db, dbName: cfg.Database}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

// RegisterMetrics exports the pool statistics (open, in use, wait time).
func (c *PostgresClient) RegisterMetrics(reg prometheus.Registerer) error {
	return reg.Register(collectors.NewDBStatsCollector(c.DB, c.dbName))
}

func (c *PostgresClient) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
