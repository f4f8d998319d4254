package nlm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// NotebookRef identifies a server-side notebook plus the one content source
// this system created (or discovered) for a given input URL.
type NotebookRef struct {
	NotebookID string `json:"notebook_id"`
	SourceID   string `json:"source_id"`
}

// NotebookStore is the durable URL → NotebookRef cache. Entries are written
// once per distinct input URL and reused indefinitely; an entry is replaced
// whole, never partially updated. The store also keeps a last-created
// notebook id so callers can recover a run that died mid-generation.
type NotebookStore struct {
	db *sql.DB
}

// OpenNotebookStore opens (or creates) the SQLite cache at path.
func OpenNotebookStore(path string) (*NotebookStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("notebook store: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("notebook store: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if err := initNotebookSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("notebook store: init schema: %w", err)
	}
	return &NotebookStore{db: db}, nil
}

func initNotebookSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS notebooks (
		url         TEXT PRIMARY KEY,
		notebook_id TEXT NOT NULL,
		source_id   TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS state (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	return err
}

// Get returns the cached ref for url, if any.
func (s *NotebookStore) Get(ctx context.Context, url string) (NotebookRef, bool, error) {
	if s == nil {
		return NotebookRef{}, false, nil
	}
	var ref NotebookRef
	err := s.db.QueryRowContext(ctx,
		`SELECT notebook_id, source_id FROM notebooks WHERE url = ?`, url,
	).Scan(&ref.NotebookID, &ref.SourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return NotebookRef{}, false, nil
	}
	if err != nil {
		return NotebookRef{}, false, fmt.Errorf("notebook store: get: %w", err)
	}
	return ref, true, nil
}

// Put stores (or replaces) the ref for url. Both ids must be set — a source
// id from one notebook must never be paired with another notebook's id.
func (s *NotebookStore) Put(ctx context.Context, url string, ref NotebookRef) error {
	if s == nil {
		return nil
	}
	if ref.NotebookID == "" || ref.SourceID == "" {
		return fmt.Errorf("notebook store: refusing partial ref for %s", url)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notebooks (url, notebook_id, source_id, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET notebook_id = excluded.notebook_id, source_id = excluded.source_id`,
		url, ref.NotebookID, ref.SourceID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("notebook store: put: %w", err)
	}
	return nil
}

// Delete removes the entry for url (used after deleting a notebook upstream).
func (s *NotebookStore) Delete(ctx context.Context, url string) error {
	if s == nil {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM notebooks WHERE url = ?`, url); err != nil {
		return fmt.Errorf("notebook store: delete: %w", err)
	}
	return nil
}

// SetLastNotebook records the most recently created notebook id.
func (s *NotebookStore) SetLastNotebook(ctx context.Context, notebookID string) error {
	if s == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO state (key, value, updated_at) VALUES ('last_notebook', ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		notebookID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("notebook store: set last notebook: %w", err)
	}
	return nil
}

// LastNotebook returns the most recently created notebook id, or "".
func (s *NotebookStore) LastNotebook(ctx context.Context) (string, error) {
	if s == nil {
		return "", nil
	}
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = 'last_notebook'`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("notebook store: last notebook: %w", err)
	}
	return id, nil
}

func (s *NotebookStore) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}
