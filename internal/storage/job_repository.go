package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"unvocal/internal/models"
)

const jobColumns = `id, youtube_url, youtube_id, status, progress, filename, output_path,
	error_message, created_at, started_at, completed_at`

// JobRepository はジョブのデータアクセス層
type JobRepository struct {
	db  *DB
	now func() time.Time
}

// NewJobRepository は新しいJobRepositoryを作成
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db, now: time.Now}
}

// Create は新しいジョブを作成
func (r *JobRepository) Create(ctx context.Context, job *models.VocalJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.CreatedAt = r.now()
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	if job.Progress == "" {
		job.Progress = models.ProgressQueued
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vocal_jobs (id, youtube_url, status, progress, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		job.ID, job.YouTubeURL, job.Status, job.Progress, toMillis(job.CreatedAt),
	)
	return err
}

// GetByID はIDでジョブを取得
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.VocalJob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM vocal_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetNextQueued は次に処理すべきジョブを取得（古い順）
func (r *JobRepository) GetNextQueued(ctx context.Context) (*models.VocalJob, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM vocal_jobs
		WHERE status = ?
		ORDER BY created_at ASC, id ASC
		LIMIT 1`, models.JobStatusPending)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Start はジョブを開始状態にする
func (r *JobRepository) Start(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE vocal_jobs SET status = ?, started_at = ? WHERE id = ?`,
		models.JobStatusRunning, toMillis(r.now()), id,
	)
	return err
}

// UpdateProgress はジョブの進捗を更新
// 終了済みのジョブは更新しない
func (r *JobRepository) UpdateProgress(ctx context.Context, id, progress string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE vocal_jobs SET progress = ? WHERE id = ? AND status NOT IN (?, ?)`,
		progress, id, models.JobStatusSuccess, models.JobStatusError,
	)
	return err
}

// SetYouTubeID は解決した動画IDを記録
func (r *JobRepository) SetYouTubeID(ctx context.Context, id, youtubeID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE vocal_jobs SET youtube_id = ? WHERE id = ?`, youtubeID, id)
	return err
}

// Complete はジョブを成功状態にする
func (r *JobRepository) Complete(ctx context.Context, id, filename, outputPath string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE vocal_jobs
		SET status = ?, filename = ?, output_path = ?, completed_at = ?
		WHERE id = ?`,
		models.JobStatusSuccess, filename, outputPath, toMillis(r.now()), id,
	)
	return err
}

// Fail はジョブを失敗状態にする
func (r *JobRepository) Fail(ctx context.Context, id, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE vocal_jobs
		SET status = ?, error_message = ?, completed_at = ?
		WHERE id = ?`,
		models.JobStatusError, errorMsg, toMillis(r.now()), id,
	)
	return err
}

// FailRunning は実行中のまま残っているジョブをすべて失敗状態にする
// 起動時に、前回のプロセスが中断したジョブを片付けるために使う
func (r *JobRepository) FailRunning(ctx context.Context, errorMsg string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE vocal_jobs
		SET status = ?, error_message = ?, completed_at = ?
		WHERE status = ?`,
		models.JobStatusError, errorMsg, toMillis(r.now()), models.JobStatusRunning,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountCreatedSince は指定時刻以降に作成されたジョブ数を返す
func (r *JobRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vocal_jobs WHERE created_at >= ?`, toMillis(since),
	).Scan(&n)
	return n, err
}

// ListRecent は最近のジョブ一覧を取得
func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]models.VocalJob, error) {
	if limit == 0 {
		limit = 50
	}
	return r.list(ctx, `SELECT `+jobColumns+` FROM vocal_jobs ORDER BY created_at DESC LIMIT ?`, limit)
}

// ListByStatus はステータスでジョブ一覧を取得
func (r *JobRepository) ListByStatus(ctx context.Context, status string, limit int) ([]models.VocalJob, error) {
	if limit == 0 {
		limit = 50
	}
	return r.list(ctx, `SELECT `+jobColumns+` FROM vocal_jobs WHERE status = ? ORDER BY created_at DESC LIMIT ?`, status, limit)
}

// CountByStatus はステータスごとのジョブ数を取得
func (r *JobRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM vocal_jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// DeleteCreatedBefore は指定時刻より前に作成されたジョブを削除
func (r *JobRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vocal_jobs WHERE created_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *JobRepository) list(ctx context.Context, query string, args ...any) ([]models.VocalJob, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []models.VocalJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*models.VocalJob, error) {
	var (
		job         models.VocalJob
		createdAt   int64
		startedAt   sql.NullInt64
		completedAt sql.NullInt64
	)
	err := s.Scan(
		&job.ID, &job.YouTubeURL, &job.YouTubeID, &job.Status, &job.Progress,
		&job.Filename, &job.OutputPath, &job.ErrorMessage,
		&createdAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	job.CreatedAt = fromMillis(createdAt)
	job.StartedAt = fromNullMillis(startedAt)
	job.CompletedAt = fromNullMillis(completedAt)
	return &job, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}
