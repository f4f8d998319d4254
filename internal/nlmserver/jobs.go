package nlmserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// JobStatus is the lifecycle state of an infographic job. Transitions are
// monotonic: pending → processing → (completed | failed), never backward.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// InfographicJob is one asynchronous generation request. A job is never
// observable as completed without its image payload: completion and the
// image land in a single write.
type InfographicJob struct {
	ID          string    `json:"id"`
	VideoURL    string    `json:"video_url"`
	Status      JobStatus `json:"status"`
	ImageURL    string    `json:"image_url,omitempty"`
	ImageData   []byte    `json:"-"`
	MIMEType    string    `json:"mime_type,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

// JobStore is the durable infographic job ledger.
type JobStore struct {
	db *sql.DB
}

// OpenJobStore opens (or creates) the SQLite job database at path.
func OpenJobStore(path string) (*JobStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("job store: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("job store: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if err := initJobSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("job store: init schema: %w", err)
	}
	return &JobStore{db: db}, nil
}

func initJobSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS infographic_jobs (
		id           TEXT PRIMARY KEY,
		video_url    TEXT NOT NULL,
		status       TEXT NOT NULL,
		image_url    TEXT,
		image_data   BLOB,
		mime_type    TEXT,
		error        TEXT,
		created_at   TEXT NOT NULL,
		completed_at TEXT
	)`)
	return err
}

// Create inserts a new pending job for videoURL.
func (s *JobStore) Create(ctx context.Context, videoURL string) (InfographicJob, error) {
	job := InfographicJob{
		ID:        uuid.NewString(),
		VideoURL:  videoURL,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO infographic_jobs (id, video_url, status, created_at) VALUES (?, ?, ?, ?)`,
		job.ID, job.VideoURL, job.Status, job.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return InfographicJob{}, fmt.Errorf("job store: create: %w", err)
	}
	return job, nil
}

// transition applies one guarded status update; the WHERE clause rejects any
// non-monotonic move.
func (s *JobStore) transition(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("job store: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("job store: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("job store: invalid status transition")
	}
	return nil
}

// MarkProcessing moves a pending job to processing.
func (s *JobStore) MarkProcessing(ctx context.Context, id string) error {
	return s.transition(ctx,
		`UPDATE infographic_jobs SET status = ? WHERE id = ? AND status = ?`,
		StatusProcessing, id, StatusPending)
}

// Complete marks a processing job completed, writing status and image
// payload in one statement so no reader can observe completed without the
// image.
func (s *JobStore) Complete(ctx context.Context, id, imageURL string, imageData []byte, mimeType string) error {
	if len(imageData) == 0 {
		return fmt.Errorf("job store: refusing completion without image data")
	}
	return s.transition(ctx,
		`UPDATE infographic_jobs
		 SET status = ?, image_url = ?, image_data = ?, mime_type = ?, completed_at = ?
		 WHERE id = ? AND status = ?`,
		StatusCompleted, imageURL, imageData, mimeType,
		time.Now().UTC().Format(time.RFC3339), id, StatusProcessing)
}

// Fail marks a pending or processing job failed with a user-facing message.
func (s *JobStore) Fail(ctx context.Context, id, errMsg string) error {
	return s.transition(ctx,
		`UPDATE infographic_jobs
		 SET status = ?, error = ?, completed_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		StatusFailed, errMsg, time.Now().UTC().Format(time.RFC3339),
		id, StatusPending, StatusProcessing)
}

// Get returns the job by id.
func (s *JobStore) Get(ctx context.Context, id string) (InfographicJob, bool, error) {
	var (
		job                    InfographicJob
		imageURL, mime, errMsg sql.NullString
		createdAt              string
		completedAt            sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, video_url, status, image_url, image_data, mime_type, error, created_at, completed_at
		 FROM infographic_jobs WHERE id = ?`, id,
	).Scan(&job.ID, &job.VideoURL, &job.Status, &imageURL, &job.ImageData, &mime, &errMsg, &createdAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return InfographicJob{}, false, nil
	}
	if err != nil {
		return InfographicJob{}, false, fmt.Errorf("job store: get: %w", err)
	}
	job.ImageURL = imageURL.String
	job.MIMEType = mime.String
	job.Error = errMsg.String
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		job.CreatedAt = t
	}
	if completedAt.Valid {
		if t, err := time.Parse(time.RFC3339, completedAt.String); err == nil {
			job.CompletedAt = t
		}
	}
	return job, true, nil
}

func (s *JobStore) Close() error {
	return s.db.Close()
}
