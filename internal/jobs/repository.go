package jobs

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/ihavenoenemy/mathcast/internal/db"
)

const defaultListLimit = 50

// Repository persists jobs.
type Repository interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, f Filter) ([]*Job, error)
	Finish(ctx context.Context, id, status, outputPath, errorMsg string, duration time.Duration) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const jobColumns = `id, type, status, attempt, quality, input_path, output_path, error, duration_ms, created_at, updated_at`

func (r *SQLiteRepository) Create(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Type, j.Status, j.Attempt, nullString(j.Quality), nullString(j.InputPath),
		nullString(j.OutputPath), nullString(j.Error), j.DurationMs,
		db.Timestamp(j.CreatedAt), db.Timestamp(j.UpdatedAt))
	return err
}

// Get returns nil, nil when no job has id.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return j, err
}

// List returns the newest jobs first.
func (r *SQLiteRepository) List(ctx context.Context, f Filter) ([]*Job, error) {
	var where []string
	var args []any
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Finish(ctx context.Context, id, status, outputPath, errorMsg string, duration time.Duration) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, output_path = ?, error = ?, duration_ms = ?, updated_at = ? WHERE id = ?
	`, status, nullString(outputPath), nullString(errorMsg), duration.Milliseconds(),
		db.Timestamp(time.Now()), id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*Job, error) {
	var j Job
	var quality, inputPath, outputPath, errMsg sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&j.ID, &j.Type, &j.Status, &j.Attempt, &quality, &inputPath, &outputPath,
		&errMsg, &j.DurationMs, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	j.Quality = quality.String
	j.InputPath = inputPath.String
	j.OutputPath = outputPath.String
	j.Error = errMsg.String
	j.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &j, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// GetConfig returns the stored value for key, or "" when unset.
func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
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
