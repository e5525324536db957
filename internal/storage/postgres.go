package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// DB wraps a PostgreSQL connection pool for the violation log.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, dsn string) (*DB, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database DSN: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	log.Info().Msg("connected to PostgreSQL")
	return &DB{pool: pool}, nil
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Healthy checks database connectivity.
func (db *DB) Healthy(ctx context.Context) bool {
	return db.pool.Ping(ctx) == nil
}

// EnsureSchema creates the violation log table if it does not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS violations (
			id           UUID PRIMARY KEY,
			session_id   TEXT NOT NULL,
			user_id      TEXT NOT NULL,
			exam_id      TEXT NOT NULL,
			types        TEXT[] NOT NULL,
			descriptions TEXT[] NOT NULL,
			face_count   INT NOT NULL DEFAULT 0,
			snapshot_key TEXT,
			created_at   TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS violations_exam_user_idx ON violations (exam_id, user_id);
		CREATE INDEX IF NOT EXISTS violations_created_idx ON violations (created_at)`)
	if err != nil {
		return fmt.Errorf("ensuring violations schema: %w", err)
	}
	return nil
}

// InsertViolation appends one aggregated violation record.
func (db *DB) InsertViolation(ctx context.Context, rec *ViolationRecord) error {
	query := `
		INSERT INTO violations (id, session_id, user_id, exam_id, types, descriptions,
			face_count, snapshot_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := db.pool.Exec(ctx, query,
		rec.ID, rec.SessionID, rec.UserID, rec.ExamID,
		rec.Types, rec.Descriptions,
		rec.FaceCount, nullIfEmpty(rec.SnapshotKey), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting violation: %w", err)
	}
	return nil
}

// ListViolations queries the violation log with optional filters.
func (db *DB) ListViolations(ctx context.Context, filter ViolationFilter) ([]ViolationRecord, error) {
	query := `
		SELECT id, session_id, user_id, exam_id, types, descriptions,
			face_count, COALESCE(snapshot_key, ''), created_at
		FROM violations
		WHERE ($1 = '' OR exam_id = $1)
		  AND ($2 = '' OR user_id = $2)
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := db.pool.Query(ctx, query,
		filter.ExamID, filter.UserID, filter.Since, limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("querying violations: %w", err)
	}
	defer rows.Close()

	var results []ViolationRecord
	for rows.Next() {
		var rec ViolationRecord
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.UserID, &rec.ExamID,
			&rec.Types, &rec.Descriptions,
			&rec.FaceCount, &rec.SnapshotKey, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning violation row: %w", err)
		}
		results = append(results, rec)
	}

	return results, rows.Err()
}

// ViolationStats aggregates violation counts by individual type over a
// trailing window. Rows store one aggregated type list per analysis, so the
// query unnests the array to produce per-type counts.
func (db *DB) ViolationStats(ctx context.Context, window time.Duration) ([]TypeCount, error) {
	query := `
		SELECT t.type, COUNT(*)
		FROM violations v, unnest(v.types) AS t(type)
		WHERE v.created_at >= now() - $1::interval
		GROUP BY t.type
		ORDER BY COUNT(*) DESC`

	rows, err := db.pool.Query(ctx, query, window.String())
	if err != nil {
		return nil, fmt.Errorf("querying violation stats: %w", err)
	}
	defer rows.Close()

	var results []TypeCount
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, fmt.Errorf("scanning stats row: %w", err)
		}
		results = append(results, tc)
	}

	return results, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
