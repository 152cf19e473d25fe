package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wallet-alerts/internal/config"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("session: pool not configured")

const (
	createSessionTableSQL = `CREATE TABLE IF NOT EXISTS session_state (
        key        TEXT PRIMARY KEY,
        value      BYTEA NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	getSessionValueSQL = `SELECT value FROM session_state WHERE key = $1;`

	setSessionValueSQL = `INSERT INTO session_state (key, value, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (key) DO UPDATE
    SET value = EXCLUDED.value, updated_at = now();`

	deleteSessionValueSQL = `DELETE FROM session_state WHERE key = $1;`

	clearSessionSQL = `TRUNCATE session_state;`
)

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// Postgres persists session state in a single key/value table so the engine
// survives process reloads that share a database session.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wires a pgx pool into a session store, creating the backing
// table if it does not exist.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	if pool == nil {
		return nil, ErrNotConfigured
	}
	if _, err := pool.Exec(ctx, createSessionTableSQL); err != nil {
		return nil, fmt.Errorf("create session table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (p *Postgres) Close() {
	if p == nil || p.pool == nil {
		return
	}
	p.pool.Close()
}

// Get returns the value stored under key, if any.
func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	pool, err := p.getPool()
	if err != nil {
		return nil, false, err
	}

	var value []byte
	if scanErr := pool.QueryRow(ctx, getSessionValueSQL, key).Scan(&value); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get session value: %w", scanErr)
	}
	return value, true, nil
}

// Set stores value under key, overwriting any previous value.
func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	pool, err := p.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, setSessionValueSQL, key, value); execErr != nil {
		return fmt.Errorf("set session value: %w", execErr)
	}
	return nil
}

// Delete removes key.
func (p *Postgres) Delete(ctx context.Context, key string) error {
	pool, err := p.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteSessionValueSQL, key); execErr != nil {
		return fmt.Errorf("delete session value: %w", execErr)
	}
	return nil
}

// Clear removes all session state, ending the session.
func (p *Postgres) Clear(ctx context.Context) error {
	pool, err := p.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, clearSessionSQL); execErr != nil {
		return fmt.Errorf("clear session: %w", execErr)
	}
	return nil
}

func (p *Postgres) getPool() (*pgxpool.Pool, error) {
	if p == nil || p.pool == nil {
		return nil, ErrNotConfigured
	}
	return p.pool, nil
}

var _ Store = (*Postgres)(nil)
