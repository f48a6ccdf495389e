package gateway

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when no location is stored for a connection.
var ErrNotFound = errors.New("location not found")

// LocationStore keeps named locations per display connection.
type LocationStore interface {
	Save(ctx context.Context, connectionID, name, location string) error
	Load(ctx context.Context, connectionID, name string) (string, error)
	Forget(ctx context.Context, connectionID string) error
	Close()
}

// MemoryLocationStore keeps locations in process memory.
type MemoryLocationStore struct {
	mu        sync.RWMutex
	locations map[string]map[string]string
}

// NewMemoryLocationStore creates an empty in-memory store.
func NewMemoryLocationStore() *MemoryLocationStore {
	return &MemoryLocationStore{locations: make(map[string]map[string]string)}
}

func (s *MemoryLocationStore) Save(_ context.Context, connectionID, name, location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locations[connectionID] == nil {
		s.locations[connectionID] = make(map[string]string)
	}
	s.locations[connectionID][name] = location
	return nil
}

func (s *MemoryLocationStore) Load(_ context.Context, connectionID, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	location, ok := s.locations[connectionID][name]
	if !ok {
		return "", ErrNotFound
	}
	return location, nil
}

func (s *MemoryLocationStore) Forget(_ context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locations, connectionID)
	return nil
}

func (s *MemoryLocationStore) Close() {}

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PostgresLocationStore keeps locations in a Postgres table shared by every
// gateway replica.
type PostgresLocationStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresLocationStore connects to dsn and makes sure the table exists.
func NewPostgresLocationStore(ctx context.Context, dsn, table string) (*PostgresLocationStore, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresLocationStore{pool: pool, table: table}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().Str("table", table).Msg("postgres location store ready")
	return s, nil
}

func (s *PostgresLocationStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+s.table+` (
			connection_id TEXT NOT NULL,
			name          TEXT NOT NULL,
			location      TEXT NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (connection_id, name)
		)`)
	if err != nil {
		return fmt.Errorf("create %s table: %w", s.table, err)
	}
	return nil
}

func (s *PostgresLocationStore) Save(ctx context.Context, connectionID, name, location string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.table+` (connection_id, name, location)
		VALUES ($1, $2, $3)
		ON CONFLICT (connection_id, name)
		DO UPDATE SET location = EXCLUDED.location, updated_at = now()`,
		connectionID, name, location)
	if err != nil {
		return fmt.Errorf("save location: %w", err)
	}
	return nil
}

func (s *PostgresLocationStore) Load(ctx context.Context, connectionID, name string) (string, error) {
	var location string
	err := s.pool.QueryRow(ctx,
		`SELECT location FROM `+s.table+` WHERE connection_id = $1 AND name = $2`,
		connectionID, name).Scan(&location)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load location: %w", err)
	}
	return location, nil
}

func (s *PostgresLocationStore) Forget(ctx context.Context, connectionID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE connection_id = $1`, connectionID); err != nil {
		return fmt.Errorf("forget locations: %w", err)
	}
	return nil
}

func (s *PostgresLocationStore) Close() {
	s.pool.Close()
}
