package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/yegors/flightbrief/internal/briefing"
	"github.com/yegors/flightbrief/pkg/logger"
)

// AttemptStorage is the request log
type AttemptStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// Breakdown counts attempts by outcome group
type Breakdown struct {
	Success int `json:"success"`
	Cache   int `json:"cache"`
	Limit   int `json:"limit"`
	Paused  int `json:"paused"`
	Fail    int `json:"fail"`
}

// WindowStats aggregates the log over one time window
type WindowStats struct {
	Total      int       `json:"total"`
	AvgLatency float64   `json:"avg_latency"`
	Breakdown  Breakdown `json:"breakdown"`
	TopAirport string    `json:"top_airport"`
	TopIP      string    `json:"top_ip"`
	TopBlocked string    `json:"top_blocked"`
}

// StatsWindow names a look-back period. A zero Span covers the whole log.
type StatsWindow struct {
	Label string
	Span  time.Duration
}

// DefaultStatsWindows are the windows reported by Stats
var DefaultStatsWindows = []StatsWindow{
	{Label: "24h", Span: 24 * time.Hour},
	{Label: "7d", Span: 7 * 24 * time.Hour},
	{Label: "30d", Span: 30 * 24 * time.Hour},
	{Label: "All"},
}

// NewAttemptStorage creates the storage and its table
func NewAttemptStorage(db *sql.DB, logger *logger.Logger) (*AttemptStorage, error) {
	storage := &AttemptStorage{
		db:     db,
		logger: logger.Named("sqlite-log"),
	}

	if err := storage.initDB(); err != nil {
		return nil, err
	}
	return storage, nil
}

func (s *AttemptStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			client_id TEXT,
			ip_address TEXT,
			input_icao TEXT,
			resolved_icao TEXT,
			plane_profile TEXT,
			duration_seconds REAL,
			status TEXT NOT NULL,
			error_message TEXT,
			model_used TEXT,
			tokens_used INTEGER DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create logs table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp)`)
	if err != nil {
		return fmt.Errorf("failed to create timestamp index: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_logs_status ON logs(status)`)
	if err != nil {
		return fmt.Errorf("failed to create status index: %w", err)
	}

	return nil
}

// Record stores an attempt and sets its ID
func (s *AttemptStorage) Record(ctx context.Context, a *briefing.Attempt) error {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO logs
		(timestamp, client_id, ip_address, input_icao, resolved_icao, plane_profile,
		 duration_seconds, status, error_message, model_used, tokens_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(a.Timestamp),
		a.ClientID,
		a.IP,
		a.InputCode,
		a.ResolvedCode,
		a.Aircraft,
		a.DurationSeconds,
		string(a.Outcome),
		nullString(a.ErrorMessage),
		nullString(a.Model),
		a.Tokens,
	)
	if err != nil {
		return fmt.Errorf("failed to insert attempt: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	a.ID = id
	return nil
}

// Recent returns the newest attempts first
func (s *AttemptStorage) Recent(ctx context.Context, limit int) ([]*briefing.Attempt, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, client_id, ip_address, input_icao, resolved_icao, plane_profile,
			duration_seconds, status, error_message, model_used, tokens_used
		FROM logs
		ORDER BY id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*briefing.Attempt
	for rows.Next() {
		var (
			a                                                   briefing.Attempt
			ts, status                                          string
			clientID, ip, input, resolved, plane, errMsg, model sql.NullString
			duration                                            sql.NullFloat64
			tokens                                              sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &ts, &clientID, &ip, &input, &resolved, &plane,
			&duration, &status, &errMsg, &model, &tokens); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}

		a.Timestamp, err = parseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp: %w", err)
		}
		a.ClientID = clientID.String
		a.IP = ip.String
		a.InputCode = input.String
		a.ResolvedCode = resolved.String
		a.Aircraft = plane.String
		a.DurationSeconds = duration.Float64
		a.Outcome = briefing.Outcome(status)
		a.ErrorMessage = errMsg.String
		a.Model = model.String
		a.Tokens = int(tokens.Int64)

		attempts = append(attempts, &a)
	}

	return attempts, rows.Err()
}

// Stats aggregates the log for each of DefaultStatsWindows, keyed by label
func (s *AttemptStorage) Stats(ctx context.Context, now time.Time) (map[string]*WindowStats, error) {
	stats := make(map[string]*WindowStats, len(DefaultStatsWindows))
	for _, w := range DefaultStatsWindows {
		since := time.Time{}
		if w.Span > 0 {
			since = now.Add(-w.Span)
		}
		ws, err := s.windowStats(ctx, since)
		if err != nil {
			return nil, fmt.Errorf("stats for %s: %w", w.Label, err)
		}
		stats[w.Label] = ws
	}
	return stats, nil
}

func (s *AttemptStorage) windowStats(ctx context.Context, since time.Time) (*WindowStats, error) {
	from := formatTime(since)
	ws := &WindowStats{}

	var avg sql.NullFloat64
	var success, cache, limit, paused, fail sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT
			COUNT(*),
			AVG(duration_seconds),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN status IN (?, ?) THEN 1 ELSE 0 END)
		FROM logs WHERE timestamp > ?`,
		string(briefing.OutcomeSuccess),
		string(briefing.OutcomeCacheHit),
		string(briefing.OutcomeRateLimited),
		string(briefing.OutcomePaused),
		string(briefing.OutcomeNoData), string(briefing.OutcomeError),
		from,
	).Scan(&ws.Total, &avg, &success, &cache, &limit, &paused, &fail)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate attempts: %w", err)
	}

	ws.AvgLatency = math.Round(avg.Float64*100) / 100
	ws.Breakdown = Breakdown{
		Success: int(success.Int64),
		Cache:   int(cache.Int64),
		Limit:   int(limit.Int64),
		Paused:  int(paused.Int64),
		Fail:    int(fail.Int64),
	}

	if ws.TopAirport, err = s.top(ctx, "input_icao", from, ""); err != nil {
		return nil, err
	}
	if ws.TopIP, err = s.top(ctx, "ip_address", from, ""); err != nil {
		return nil, err
	}
	if ws.TopBlocked, err = s.top(ctx, "ip_address", from, briefing.OutcomeRateLimited); err != nil {
		return nil, err
	}
	return ws, nil
}

// top returns "<value> (<count>)" for the most frequent value of column, or "-"
func (s *AttemptStorage) top(ctx context.Context, column, from string, outcome briefing.Outcome) (string, error) {
	query := `SELECT ` + column + `, COUNT(*) AS c FROM logs WHERE timestamp > ?`
	args := []any{from}
	if outcome != "" {
		query += ` AND status = ?`
		args = append(args, string(outcome))
	}
	query += ` GROUP BY ` + column + ` ORDER BY c DESC, ` + column + ` ASC LIMIT 1`

	var value sql.NullString
	var count int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&value, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return "-", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query top %s: %w", column, err)
	}
	return fmt.Sprintf("%s (%d)", value.String, count), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
