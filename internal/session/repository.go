package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clipsmith/clipsmith-agent/internal/assets"
	"github.com/clipsmith/clipsmith-agent/internal/audioplan"
	"github.com/clipsmith/clipsmith-agent/internal/edl"
	"github.com/clipsmith/clipsmith-agent/internal/interval"
	"github.com/clipsmith/clipsmith-agent/internal/timecode"
)

type Repository interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context) ([]*Session, error)
	DeleteSession(ctx context.Context, id string) error
	UpdateSessionAudio(ctx context.Context, id string, opts audioplan.Options) error

	CreateOperation(ctx context.Context, op *StoredOperation) error
	ListOperations(ctx context.Context, sessionID string) ([]*StoredOperation, error)
	DeleteOperation(ctx context.Context, id string) error

	CreateAsset(ctx context.Context, a *StoredAsset) error
	ListAssets(ctx context.Context, sessionID string) ([]*StoredAsset, error)
	DeleteAsset(ctx context.Context, id string) error

	CreateRenderJob(ctx context.Context, job *RenderJob) error
	GetRenderJob(ctx context.Context, id string) (*RenderJob, error)
	ListRenderJobs(ctx context.Context, limit int) ([]*RenderJob, error)
	ListPendingRenderJobs(ctx context.Context) ([]*RenderJob, error)
	UpdateRenderJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateRenderJobProgress(ctx context.Context, id string, progress int) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, s *Session) error {
	audioJSON, err := json.Marshal(s.Audio)
	if err != nil {
		return fmt.Errorf("failed to encode audio options: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, video_path, duration_ms, audio_options, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Name, s.VideoPath, int64(s.Duration), string(audioJSON),
		s.CreatedAt.Format(time.RFC3339), s.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, video_path, duration_ms, audio_options, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id)
	return scanSession(row)
}

func scanSession(row *sql.Row) (*Session, error) {
	var s Session
	var durationMs int64
	var audioJSON, createdAt, updatedAt string

	err := row.Scan(&s.ID, &s.Name, &s.VideoPath, &durationMs, &audioJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.Duration = timecode.Timecode(durationMs)
	if err := json.Unmarshal([]byte(audioJSON), &s.Audio); err != nil {
		return nil, fmt.Errorf("failed to decode audio options: %w", err)
	}
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &s, nil
}

func (r *SQLiteRepository) ListSessions(ctx context.Context) ([]*Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, video_path, duration_ms, audio_options, created_at, updated_at
		FROM sessions ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var s Session
		var durationMs int64
		var audioJSON, createdAt, updatedAt string

		if err := rows.Scan(&s.ID, &s.Name, &s.VideoPath, &durationMs, &audioJSON, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		s.Duration = timecode.Timecode(durationMs)
		if err := json.Unmarshal([]byte(audioJSON), &s.Audio); err != nil {
			return nil, fmt.Errorf("failed to decode audio options: %w", err)
		}
		s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		sessions = append(sessions, &s)
	}
	return sessions, rows.Err()
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

func (r *SQLiteRepository) UpdateSessionAudio(ctx context.Context, id string, opts audioplan.Options) error {
	audioJSON, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("failed to encode audio options: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE sessions SET audio_options = ?, updated_at = ? WHERE id = ?
	`, string(audioJSON), time.Now().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) CreateOperation(ctx context.Context, op *StoredOperation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO operations (id, session_id, action, origin, start_ms, end_ms, source_row, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, op.ID, op.SessionID, string(op.Op.Action), string(op.Op.Origin),
		int64(op.Op.Range.Start), int64(op.Op.Range.End), op.Op.Row,
		op.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) ListOperations(ctx context.Context, sessionID string) ([]*StoredOperation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, action, origin, start_ms, end_ms, source_row, created_at
		FROM operations WHERE session_id = ? ORDER BY created_at, id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []*StoredOperation
	for rows.Next() {
		var op StoredOperation
		var action, origin, createdAt string
		var startMs, endMs int64
		var sourceRow int

		if err := rows.Scan(&op.ID, &op.SessionID, &action, &origin, &startMs, &endMs, &sourceRow, &createdAt); err != nil {
			return nil, err
		}
		op.Op = edl.Operation{
			Action: edl.Action(action),
			Origin: edl.Origin(origin),
			Range:  interval.Interval{Start: timecode.Timecode(startMs), End: timecode.Timecode(endMs)},
			Row:    sourceRow,
		}
		op.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		ops = append(ops, &op)
	}
	return ops, rows.Err()
}

func (r *SQLiteRepository) DeleteOperation(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM operations WHERE id = ?`, id)
	return err
}

func (r *SQLiteRepository) CreateAsset(ctx context.Context, a *StoredAsset) error {
	anchorJSON, err := json.Marshal(a.Anchor)
	if err != nil {
		return fmt.Errorf("failed to encode anchor: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO assets (id, session_id, kind, anchor, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, a.ID, a.SessionID, string(a.Anchor.Kind), string(anchorJSON), a.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) ListAssets(ctx context.Context, sessionID string) ([]*StoredAsset, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, anchor, created_at
		FROM assets WHERE session_id = ? ORDER BY created_at, id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*StoredAsset
	for rows.Next() {
		var a StoredAsset
		var anchorJSON, createdAt string

		if err := rows.Scan(&a.ID, &a.SessionID, &anchorJSON, &createdAt); err != nil {
			return nil, err
		}
		var anchor assets.Anchor
		if err := json.Unmarshal([]byte(anchorJSON), &anchor); err != nil {
			return nil, fmt.Errorf("failed to decode anchor: %w", err)
		}
		a.Anchor = anchor
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteAsset(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, id)
	return err
}

func (r *SQLiteRepository) CreateRenderJob(ctx context.Context, job *RenderJob) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO render_jobs (id, session_id, status, output_path, progress, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.SessionID, job.Status, job.OutputPath, job.Progress, job.Error,
		job.CreatedAt.Format(time.RFC3339), job.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetRenderJob(ctx context.Context, id string) (*RenderJob, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, status, output_path, progress, error, created_at, updated_at
		FROM render_jobs WHERE id = ?
	`, id)

	job, err := scanRenderJob(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

func scanRenderJob(scan func(...any) error) (*RenderJob, error) {
	var j RenderJob
	var createdAt, updatedAt string
	if err := scan(&j.ID, &j.SessionID, &j.Status, &j.OutputPath, &j.Progress, &j.Error, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &j, nil
}

func (r *SQLiteRepository) ListRenderJobs(ctx context.Context, limit int) ([]*RenderJob, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, status, output_path, progress, error, created_at, updated_at
		FROM render_jobs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRenderJobs(rows)
}

func (r *SQLiteRepository) ListPendingRenderJobs(ctx context.Context) ([]*RenderJob, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, status, output_path, progress, error, created_at, updated_at
		FROM render_jobs WHERE status = ? ORDER BY created_at
	`, JobStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRenderJobs(rows)
}

func collectRenderJobs(rows *sql.Rows) ([]*RenderJob, error) {
	var jobs []*RenderJob
	for rows.Next() {
		job, err := scanRenderJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *SQLiteRepository) UpdateRenderJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE render_jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, errorMsg, time.Now().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) UpdateRenderJobProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE render_jobs SET progress = ?, updated_at = ? WHERE id = ?
	`, progress, time.Now().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
