package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dunamismax/bioconvert/internal/domain"
	_ "github.com/lib/pq"
)

const jobSchemaSQL = `
CREATE TABLE IF NOT EXISTS conversion_jobs (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	source_format TEXT NOT NULL,
	target_format TEXT NOT NULL,
	webhook_url TEXT NOT NULL DEFAULT '',
	input_key TEXT NOT NULL,
	result_key TEXT NOT NULL DEFAULT '',
	error_code TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	entries INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

const jobColumns = `id, status, source_format, target_format, webhook_url, input_key, result_key,
	error_code, error_message, entries, created_at, updated_at`

type PostgresJobStore struct {
	db *sql.DB
}

func NewPostgresJobStore(ctx context.Context, dsn string) (*PostgresJobStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresJobStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresJobStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, jobSchemaSQL); err != nil {
		return fmt.Errorf("ensure conversion_jobs schema: %w", err)
	}
	return nil
}

func (s *PostgresJobStore) Close() error {
	return s.db.Close()
}

func (s *PostgresJobStore) Create(ctx context.Context, job domain.Job) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO conversion_jobs (`+jobColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		job.ID,
		job.Status,
		job.SourceFormat,
		job.TargetFormat,
		job.WebhookURL,
		job.InputKey,
		job.ResultKey,
		job.ErrorCode,
		job.ErrorMessage,
		job.Entries,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	return nil
}

func (s *PostgresJobStore) Get(ctx context.Context, id string) (domain.Job, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+`
		 FROM conversion_jobs
		 WHERE id = $1`,
		id,
	)

	var job domain.Job
	if err := row.Scan(
		&job.ID,
		&job.Status,
		&job.SourceFormat,
		&job.TargetFormat,
		&job.WebhookURL,
		&job.InputKey,
		&job.ResultKey,
		&job.ErrorCode,
		&job.ErrorMessage,
		&job.Entries,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Job{}, false, nil
		}
		return domain.Job{}, false, fmt.Errorf("query job: %w", err)
	}

	return job, true, nil
}

func (s *PostgresJobStore) UpdateStatus(ctx context.Context, id, status string) (domain.Job, error) {
	return s.update(ctx, id,
		`UPDATE conversion_jobs SET status = $2, updated_at = $3 WHERE id = $1`,
		status,
	)
}

func (s *PostgresJobStore) Complete(ctx context.Context, id, resultKey string) (domain.Job, error) {
	return s.update(ctx, id,
		`UPDATE conversion_jobs
		 SET status = $2, updated_at = $3, result_key = $4, error_code = '', error_message = ''
		 WHERE id = $1`,
		domain.JobStatusSucceeded, resultKey,
	)
}

func (s *PostgresJobStore) Fail(ctx context.Context, id, errorCode, errorMessage string) (domain.Job, error) {
	return s.update(ctx, id,
		`UPDATE conversion_jobs
		 SET status = $2, updated_at = $3, error_code = $4, error_message = $5
		 WHERE id = $1`,
		domain.JobStatusFailed, errorCode, errorMessage,
	)
}

// update runs query with id as $1, the first arg as $2, the current time as $3 and
// any remaining args after that.
func (s *PostgresJobStore) update(ctx context.Context, id, query string, status string, args ...any) (domain.Job, error) {
	params := append([]any{id, status, time.Now().UTC()}, args...)
	res, err := s.db.ExecContext(ctx, query, params...)
	if err != nil {
		return domain.Job{}, fmt.Errorf("update job %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.Job{}, ErrJobNotFound
	}

	job, ok, err := s.Get(ctx, id)
	if err != nil {
		return domain.Job{}, err
	}
	if !ok {
		return domain.Job{}, ErrJobNotFound
	}

	return job, nil
}
