package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/trackmeet/core/pkg/models"
)

// LogStore reads and prunes the logs table over database/sql. It runs on its
// own connection so retention deletes never queue behind the roster sync pool.
type LogStore struct {
	db *sql.DB
}

// OpenLogStore opens a lib/pq connection to databaseURL and verifies it
func OpenLogStore(ctx context.Context, databaseURL string) (*LogStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open log database: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping log database: %w", err)
	}

	return NewLogStore(db), nil
}

func NewLogStore(db *sql.DB) *LogStore {
	return &LogStore{db: db}
}

func (s *LogStore) Close() error {
	return s.db.Close()
}

const createLog = `
INSERT INTO logs (level, message, context)
VALUES ($1, $2, $3)
RETURNING id, created_at
`

func (s *LogStore) CreateLog(ctx context.Context, entry *models.LogEntry) (*models.LogEntry, error) {
	created := *entry
	var logContext interface{}
	if len(entry.Context) > 0 {
		logContext = entry.Context
	}
	err := s.db.QueryRowContext(ctx, createLog, entry.Level, entry.Message, logContext).
		Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert log: %w", err)
	}
	return &created, nil
}

const deleteLogsBefore = `DELETE FROM logs WHERE created_at < $1`

// DeleteLogsBefore removes every log row strictly older than cutoff
func (s *LogStore) DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, deleteLogsBefore, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete logs: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted row count: %w", err)
	}
	return deleted, nil
}

const countLogs = `SELECT count(*) FROM logs`

func (s *LogStore) CountLogs(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, countLogs).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count logs: %w", err)
	}
	return count, nil
}
