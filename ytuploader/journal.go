package ytuploader

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver
)

// Attempt is one journal row: what happened to one video in one run.
type Attempt struct {
	RunID       string
	VideoPath   string
	Status      UploadStatus
	VideoID     string
	Reason      string
	AttemptedAt time.Time
}

// Journal - SQLite log of every upload attempt, kept alongside the ledger for
// auditing. The ledger stays the only source of truth for dedup.
type Journal struct {
	db   *sql.DB
	lock *sync.Mutex
}

// OpenJournal opens (creating if needed) the journal database at path.
func OpenJournal(ctx context.Context, path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j := &Journal{db: conn, lock: new(sync.Mutex)}
	if err := j.init(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) init(ctx context.Context) error {
	j.lock.Lock()
	defer j.lock.Unlock()
	const createTable = `CREATE TABLE IF NOT EXISTS attempts (
		run_id TEXT(36) NOT NULL,
		video_path TEXT(1000) NOT NULL,
		status TEXT(10) NOT NULL,
		video_id TEXT(64) DEFAULT '' NOT NULL,
		reason TEXT DEFAULT '' NOT NULL,
		attempted_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS attempts_run_IDX ON attempts (run_id, attempted_at);
	CREATE INDEX IF NOT EXISTS attempts_path_IDX ON attempts (video_path, attempted_at DESC);`
	if _, err := j.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create journal schema: %w", err)
	}
	return nil
}

// Add appends an attempt.
func (j *Journal) Add(ctx context.Context, a Attempt) error {
	j.lock.Lock()
	defer j.lock.Unlock()
	const insert = `INSERT INTO attempts
		(run_id, video_path, status, video_id, reason, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6);`
	_, err := j.db.ExecContext(ctx, insert, a.RunID, a.VideoPath, a.Status.String(), a.VideoID, a.Reason, a.AttemptedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// RunAttempts returns the attempts of one run in the order they were made.
func (j *Journal) RunAttempts(ctx context.Context, runID string) ([]Attempt, error) {
	const query = `SELECT run_id, video_path, status, video_id, reason, attempted_at
		FROM attempts WHERE run_id = $1 ORDER BY attempted_at, rowid`
	return j.query(ctx, query, runID)
}

// PathAttempts returns every attempt for a video, newest first.
func (j *Journal) PathAttempts(ctx context.Context, path string) ([]Attempt, error) {
	const query = `SELECT run_id, video_path, status, video_id, reason, attempted_at
		FROM attempts WHERE video_path = $1 ORDER BY attempted_at DESC, rowid DESC`
	return j.query(ctx, query, path)
}

func (j *Journal) query(ctx context.Context, query string, arg string) ([]Attempt, error) {
	rows, err := j.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var (
			a      Attempt
			status string
			at     int64
		)
		if err := rows.Scan(&a.RunID, &a.VideoPath, &status, &a.VideoID, &a.Reason, &at); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Status = parseUploadStatus(status)
		a.AttemptedAt = time.Unix(0, at).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
