package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// PostgresConfig sizes the pool shared by the registry and the settlement store
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// LockTimeout bounds how long a settlement waits on a locked payout or
	// account row. Postgres aborts the wait with 55P03, which the settlement
	// store reports as a storage failure with nothing applied.
	LockTimeout time.Duration
}

// NewPostgres opens the pool and verifies it with a ping
func NewPostgres(cfg PostgresConfig) (*sqlx.DB, error) {
	dsn, err := withLockTimeout(cfg.URL, cfg.LockTimeout)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 50
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 || maxIdle > maxOpen {
		maxIdle = maxOpen / 2
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)
	db.SetConnMaxIdleTime(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().
		Int("max_open_conns", maxOpen).
		Int("max_idle_conns", maxIdle).
		Dur("lock_timeout", cfg.LockTimeout).
		Msg("Connected to PostgreSQL")
	return db, nil
}

// withLockTimeout adds lock_timeout as a run-time parameter; lib/pq forwards
// unrecognised connection settings to the server at session start.
// Both URL and key=value connection strings are accepted.
func withLockTimeout(dsn string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		return dsn, nil
	}
	ms := fmt.Sprintf("%d", timeout.Milliseconds())

	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return dsn + " lock_timeout=" + ms, nil
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}
	q := u.Query()
	q.Set("lock_timeout", ms)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ClosePostgres closes the pool
func ClosePostgres(db *sqlx.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing PostgreSQL connection")
		return
	}
	log.Info().Msg("PostgreSQL connection closed")
}
