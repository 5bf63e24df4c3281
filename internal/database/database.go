// Package database opens and manages the source and target connection pools
// of a migration run.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dbsmedya/gomigrate/internal/config"
	"github.com/dbsmedya/gomigrate/internal/dialect"
)

// Handle binds a connection pool to the dialect of its engine. The migration
// engine borrows handles and never closes them.
type Handle struct {
	DB      *sql.DB
	Dialect dialect.Dialect
	Schema  string
}

// NewHandle wraps an open pool.
func NewHandle(db *sql.DB, d dialect.Dialect, schema string) (*Handle, error) {
	if db == nil {
		return nil, errors.New("database is nil")
	}
	if d == nil {
		return nil, errors.New("dialect is nil")
	}
	return &Handle{DB: db, Dialect: d, Schema: schema}, nil
}

// Table returns the quoted, schema-qualified name of table.
func (h *Handle) Table(table string) string {
	return h.Dialect.QualifiedTable(h.Schema, table)
}

// Manager handles the source and target connections.
type Manager struct {
	Source *Handle
	Target *Handle
	config *config.Config

	open       func(driverName, dsn string) (*sql.DB, error)
	maxRetries int
	backoff    time.Duration
}

// NewManager creates a new database manager from configuration.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		config:     cfg,
		open:       sql.Open,
		maxRetries: 3,
		backoff:    time.Second,
	}
}

// Connect opens the target and, when one is configured, the source.
func (m *Manager) Connect(ctx context.Context) error {
	if err := m.ConnectTarget(ctx); err != nil {
		return err
	}

	if !m.config.Source.IsConfigured() {
		return nil
	}
	if err := m.ConnectSource(ctx); err != nil {
		m.Target.DB.Close()
		m.Target = nil
		return err
	}
	return nil
}

// ConnectSource establishes the source connection only.
func (m *Manager) ConnectSource(ctx context.Context) error {
	h, err := m.connectWithRetry(ctx, "source", &m.config.Source)
	if err != nil {
		return fmt.Errorf("failed to connect to source database: %w", err)
	}
	m.Source = h
	return nil
}

// ConnectTarget establishes the target connection only.
func (m *Manager) ConnectTarget(ctx context.Context) error {
	h, err := m.connectWithRetry(ctx, "target", &m.config.Target)
	if err != nil {
		return fmt.Errorf("failed to connect to target database: %w", err)
	}
	m.Target = h
	return nil
}

// connectWithRetry attempts to connect with exponential backoff.
func (m *Manager) connectWithRetry(ctx context.Context, name string, cfg *config.DatabaseConfig) (*Handle, error) {
	d, err := dialect.For(cfg.Engine)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	backoff := m.backoff
	for i := 0; i < m.maxRetries; i++ {
		var db *sql.DB
		db, err = m.connect(d, dsn, cfg)
		if err == nil {
			if err = db.PingContext(ctx); err == nil {
				return NewHandle(db, d, cfg.Schema)
			}
			db.Close()
		}

		if i < m.maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}

	return nil, fmt.Errorf("%s (%s) failed after %d retries: %w", name, cfg.Redacted(), m.maxRetries, err)
}

// connect opens a pool without touching the network.
func (m *Manager) connect(d dialect.Dialect, dsn string, cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := m.open(d.DriverName(), dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConnections)
	}
	db.SetConnMaxLifetime(10 * time.Minute)

	return db, nil
}

// Close closes all database connections gracefully.
func (m *Manager) Close() error {
	var errs []error

	if m.Target != nil {
		if err := m.Target.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("target close: %w", err))
		}
	}

	if m.Source != nil {
		if err := m.Source.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("source close: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Ping verifies all open connections are alive.
func (m *Manager) Ping(ctx context.Context) error {
	if m.Source != nil {
		if err := m.Source.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("source ping failed: %w", err)
		}
	}

	if m.Target != nil {
		if err := m.Target.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("target ping failed: %w", err)
		}
	}

	return nil
}
