// File path: internal/vector/sync/tracker.go
package sync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Tracker persists the fingerprint recorded for each indexed order so
// incremental sync survives restarts. Backed by a small SQLite database.
type Tracker struct {
	db *sqlx.DB
}

const trackerSchema = `
CREATE TABLE IF NOT EXISTS order_fingerprints (
    job_number  TEXT PRIMARY KEY,
    fingerprint TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);`

func OpenTracker(path string) (*Tracker, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("tracker path required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve tracker path: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", abs)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping tracker db: %w", err)
	}
	if _, err := db.ExecContext(ctx, trackerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}
	return &Tracker{db: db}, nil
}

func (t *Tracker) Close() error {
	if t == nil || t.db == nil {
		return nil
	}
	return t.db.Close()
}

// Fingerprints returns the full job number to fingerprint table.
func (t *Tracker) Fingerprints(ctx context.Context) (map[string]string, error) {
	if t == nil || t.db == nil {
		return nil, errors.New("tracker not initialized")
	}
	rows := []struct {
		JobNumber   string `db:"job_number"`
		Fingerprint string `db:"fingerprint"`
	}{}
	if err := t.db.SelectContext(ctx, &rows, `SELECT job_number, fingerprint FROM order_fingerprints`); err != nil {
		return nil, fmt.Errorf("load fingerprints: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.JobNumber] = row.Fingerprint
	}
	return out, nil
}

// Record upserts the fingerprint for one order. Callers invoke this only
// after the corresponding vector write has been confirmed.
func (t *Tracker) Record(ctx context.Context, jobNumber, fingerprint string) error {
	if t == nil || t.db == nil {
		return errors.New("tracker not initialized")
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO order_fingerprints (job_number, fingerprint, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(job_number) DO UPDATE SET fingerprint = excluded.fingerprint, updated_at = excluded.updated_at`,
		jobNumber, fingerprint, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record fingerprint: %w", err)
	}
	return nil
}

func (t *Tracker) Forget(ctx context.Context, jobNumber string) error {
	if t == nil || t.db == nil {
		return errors.New("tracker not initialized")
	}
	if _, err := t.db.ExecContext(ctx, `DELETE FROM order_fingerprints WHERE job_number = ?`, jobNumber); err != nil {
		return fmt.Errorf("forget fingerprint: %w", err)
	}
	return nil
}

// Reset clears the fingerprint table. Running it twice is a no-op the second
// time.
func (t *Tracker) Reset(ctx context.Context) error {
	if t == nil || t.db == nil {
		return errors.New("tracker not initialized")
	}
	if _, err := t.db.ExecContext(ctx, `DELETE FROM order_fingerprints`); err != nil {
		return fmt.Errorf("reset tracker: %w", err)
	}
	return nil
}

func (t *Tracker) Count(ctx context.Context) (int, error) {
	if t == nil || t.db == nil {
		return 0, errors.New("tracker not initialized")
	}
	var count int
	if err := t.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM order_fingerprints`); err != nil {
		return 0, fmt.Errorf("count fingerprints: %w", err)
	}
	return count, nil
}
