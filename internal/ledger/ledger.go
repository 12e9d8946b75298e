// Package ledger keeps a local history of upload attempts in SQLite. The
// ledger is advisory: the cloud is the source of truth, and a failed write
// here never fails an upload.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Entry statuses.
const (
	StatusUploaded = "uploaded"
	StatusFailed   = "failed"
)

// DefaultLimit is the number of entries Recent returns for a non-positive limit.
const DefaultLimit = 20

const dirPermissions = 0o700

const (
	sqlInsertUpload = `INSERT INTO uploads
		(id, document_id, device, local_path, visible_name, size, sha256,
		 status, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlRecentUploads = `SELECT id, document_id, device, local_path, visible_name,
		size, sha256, status, error, started_at, finished_at
		FROM uploads
		ORDER BY finished_at DESC, started_at DESC
		LIMIT ?`
)

// ErrInvalidEntry is returned by Record for entries missing required fields.
var ErrInvalidEntry = errors.New("ledger: invalid entry")

// Entry is one upload attempt.
type Entry struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"document_id,omitempty"`
	Device      string    `json:"device"`
	LocalPath   string    `json:"local_path"`
	VisibleName string    `json:"visible_name,omitempty"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256,omitempty"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Ledger is the sole writer to the history database.
type Ledger struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time // injectable for deterministic tests
}

// Open opens (creating if needed) the database at path and runs migrations.
// The database uses WAL mode with a single connection.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return nil, fmt.Errorf("ledger: creating directory for %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("ledger: resolving %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", dsn(abs))
	if err != nil {
		return nil, fmt.Errorf("ledger: opening database %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("ledger opened", slog.String("db_path", path))

	return &Ledger{
		db:      db,
		logger:  logger,
		nowFunc: time.Now,
	}, nil
}

// dsn builds the connection URI for the absolute path. The path is escaped so characters
// such as '?' and '#' stay part of the file name. DSN parameters ensure
// pragmas apply to every connection from the pool.
func dsn(path string) string {
	u := url.URL{
		Scheme: "file",
		Path:   path,
		RawQuery: "_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)" +
			"&_pragma=busy_timeout(5000)",
	}

	return u.String()
}

// Record inserts an entry. A missing ID is generated and missing timestamps
// default to now. The stored entry is returned.
func (l *Ledger) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.Device == "" || e.LocalPath == "" {
		return Entry{}, fmt.Errorf("%w: device and local path are required", ErrInvalidEntry)
	}

	if e.Status != StatusUploaded && e.Status != StatusFailed {
		return Entry{}, fmt.Errorf("%w: unknown status %q", ErrInvalidEntry, e.Status)
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	now := l.nowFunc()
	if e.FinishedAt.IsZero() {
		e.FinishedAt = now
	}

	if e.StartedAt.IsZero() {
		e.StartedAt = e.FinishedAt
	}

	_, err := l.db.ExecContext(ctx, sqlInsertUpload,
		e.ID, e.DocumentID, e.Device, e.LocalPath, e.VisibleName, e.Size, e.SHA256,
		e.Status, e.Error, e.StartedAt.UnixNano(), e.FinishedAt.UnixNano(),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("ledger: recording upload %s: %w", e.ID, err)
	}

	l.logger.Debug("upload recorded",
		slog.String("id", e.ID),
		slog.String("status", e.Status),
		slog.String("document_id", e.DocumentID),
	)

	return e, nil
}

// Recent returns up to limit entries, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := l.db.QueryContext(ctx, sqlRecentUploads, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: querying uploads: %w", err)
	}
	defer rows.Close()

	var out []Entry

	for rows.Next() {
		var e Entry

		var started, finished int64

		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Device, &e.LocalPath, &e.VisibleName,
			&e.Size, &e.SHA256, &e.Status, &e.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("ledger: scanning upload row: %w", err)
		}

		e.StartedAt = time.Unix(0, started)
		e.FinishedAt = time.Unix(0, finished)
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterating upload rows: %w", err)
	}

	return out, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
