package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yegors/flightbrief/internal/briefcache"
	"github.com/yegors/flightbrief/pkg/logger"
)

// FlightCacheStorage persists cached briefings in the flight_cache table
type FlightCacheStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewFlightCacheStorage creates the storage and its table
func NewFlightCacheStorage(db *sql.DB, logger *logger.Logger) (*FlightCacheStorage, error) {
	storage := &FlightCacheStorage{
		db:     db,
		logger: logger.Named("sqlite-cache"),
	}

	if err := storage.initDB(); err != nil {
		return nil, err
	}
	return storage, nil
}

func (s *FlightCacheStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS flight_cache (
			key TEXT PRIMARY KEY,
			icao TEXT NOT NULL,
			category TEXT NOT NULL,
			created_at TEXT NOT NULL,
			ttl_seconds INTEGER NOT NULL,
			data TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create flight_cache table: %w", err)
	}
	return nil
}

// Load returns the entry for key, or nil when absent
func (s *FlightCacheStorage) Load(ctx context.Context, key briefcache.Key) (*briefcache.Entry, error) {
	var (
		createdAt string
		ttl       int64
		data      string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, ttl_seconds, data FROM flight_cache WHERE key = ?`,
		key.String(),
	).Scan(&createdAt, &ttl, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query flight cache: %w", err)
	}

	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	return &briefcache.Entry{
		Key:       key,
		Payload:   []byte(data),
		CreatedAt: created,
		TTL:       time.Duration(ttl) * time.Second,
	}, nil
}

// Save upserts the entry
func (s *FlightCacheStorage) Save(ctx context.Context, entry *briefcache.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO flight_cache (key, icao, category, created_at, ttl_seconds, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			created_at = excluded.created_at,
			ttl_seconds = excluded.ttl_seconds,
			data = excluded.data`,
		entry.Key.String(),
		entry.Key.ICAO,
		string(entry.Key.Category),
		formatTime(entry.CreatedAt),
		int64(entry.TTL/time.Second),
		string(entry.Payload),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert flight cache: %w", err)
	}
	return nil
}

// count returns the number of rows, expired ones included
func (s *FlightCacheStorage) count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flight_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count flight cache: %w", err)
	}
	return n, nil
}
