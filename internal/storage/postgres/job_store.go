// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Bai-ee/Agent-cy/internal/scrape"
)

// JobStoreConfig controls the Postgres connection pool used for job rows.
type JobStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// JobStore persists jobs and page results in Postgres.
type JobStore struct {
	pool querier
}

// NewJobStore creates a Postgres-backed JobStore using the provided config.
func NewJobStore(ctx context.Context, cfg JobStoreConfig) (*JobStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &JobStore{pool: pool}, nil
}

// NewJobStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewJobStoreWithPool(pool querier) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &JobStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateJob inserts a new job row.
func (s *JobStore) CreateJob(ctx context.Context, job scrape.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	urlsJSON, err := json.Marshal(job.URLs)
	if err != nil {
		return fmt.Errorf("marshal urls: %w", err)
	}
	keywordsJSON, err := json.Marshal(job.Keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}
	query := `
INSERT INTO scrape_jobs (
	id,
	task_id,
	urls,
	keywords,
	status,
	submitted_at
) VALUES ($1, $2, $3, $4, $5, $6);`
	_, err = s.pool.Exec(ctx, query,
		job.ID,
		job.TaskID,
		urlsJSON,
		keywordsJSON,
		string(job.Status),
		job.Submitted,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJobStatus transitions a job and stamps started/finished timestamps.
func (s *JobStore) UpdateJobStatus(
	ctx context.Context,
	jobID string,
	status scrape.JobStatus,
	errText string,
	counters scrape.JobCounters,
) error {
	query := `
UPDATE scrape_jobs
SET status = $1,
	error_text = NULLIF($2, ''),
	result_count = $3,
	success_count = $4,
	started_at = CASE WHEN $1 = 'running' AND started_at IS NULL THEN now() ELSE started_at END,
	finished_at = CASE WHEN $1 IN ('completed', 'failed') THEN now() ELSE finished_at END
WHERE id = $5;`
	tag, err := s.pool.Exec(ctx, query,
		string(status),
		errText,
		counters.Results,
		counters.Succeeded,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s not found", jobID)
	}
	return nil
}

// RecordResult inserts one page result row.
func (s *JobStore) RecordResult(ctx context.Context, result scrape.PageResult) error {
	headingsJSON, err := json.Marshal(result.Headings)
	if err != nil {
		return fmt.Errorf("marshal headings: %w", err)
	}
	linksJSON, err := json.Marshal(result.Links)
	if err != nil {
		return fmt.Errorf("marshal links: %w", err)
	}
	countsJSON, err := json.Marshal(result.KeywordCounts)
	if err != nil {
		return fmt.Errorf("marshal keyword counts: %w", err)
	}
	var summaryJSON []byte
	if result.Summary != nil {
		summaryJSON, err = json.Marshal(result.Summary)
		if err != nil {
			return fmt.Errorf("marshal summary: %w", err)
		}
	}
	query := `
INSERT INTO page_results (
	id,
	job_id,
	url_index,
	url,
	success,
	method,
	title,
	description,
	page_text,
	text_length,
	headings,
	links,
	keyword_counts,
	total_matches,
	summary,
	screenshot_uri,
	raw_html_uri,
	fetched_at,
	duration_ms,
	error_text
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, NULLIF($20, ''));`
	_, err = s.pool.Exec(ctx, query,
		result.ID,
		result.JobID,
		result.Index,
		result.URL,
		result.Success,
		string(result.Method),
		result.Title,
		result.Description,
		result.Text,
		result.TextLength,
		headingsJSON,
		linksJSON,
		countsJSON,
		result.TotalMatches,
		summaryJSON,
		result.ScreenshotURI,
		result.RawHTMLURI,
		result.FetchedAt,
		result.DurationMs,
		result.ErrorText,
	)
	if err != nil {
		return fmt.Errorf("insert page result: %w", err)
	}
	return nil
}

// GetJob retrieves one job by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (scrape.Job, error) {
	query := `
SELECT id, task_id, urls, keywords, status, error_text, result_count, success_count,
	submitted_at, started_at, finished_at
FROM scrape_jobs
WHERE id = $1;`
	var (
		job          scrape.Job
		urlsJSON     []byte
		keywordsJSON []byte
		status       string
		errText      *string
	)
	err := s.pool.QueryRow(ctx, query, jobID).Scan(
		&job.ID,
		&job.TaskID,
		&urlsJSON,
		&keywordsJSON,
		&status,
		&errText,
		&job.Counters.Results,
		&job.Counters.Succeeded,
		&job.Submitted,
		&job.Started,
		&job.Finished,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scrape.Job{}, fmt.Errorf("job %s not found", jobID)
		}
		return scrape.Job{}, fmt.Errorf("get job: %w", err)
	}
	job.Status = scrape.JobStatus(status)
	if errText != nil {
		job.ErrorText = *errText
	}
	if err := json.Unmarshal(urlsJSON, &job.URLs); err != nil {
		return scrape.Job{}, fmt.Errorf("unmarshal urls: %w", err)
	}
	if len(keywordsJSON) > 0 {
		if err := json.Unmarshal(keywordsJSON, &job.Keywords); err != nil {
			return scrape.Job{}, fmt.Errorf("unmarshal keywords: %w", err)
		}
	}
	return job, nil
}

// ListResults returns a job's page results ordered by their URL index.
func (s *JobStore) ListResults(ctx context.Context, jobID string) ([]scrape.PageResult, error) {
	query := `
SELECT id, job_id, url_index, url, success, method, title, description, page_text,
	text_length, headings, links, keyword_counts, total_matches, summary,
	screenshot_uri, raw_html_uri, fetched_at, duration_ms, error_text
FROM page_results
WHERE job_id = $1
ORDER BY url_index ASC;`
	rows, err := s.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []scrape.PageResult
	for rows.Next() {
		var (
			result       scrape.PageResult
			method       string
			headingsJSON []byte
			linksJSON    []byte
			countsJSON   []byte
			summaryJSON  []byte
			errText      *string
		)
		err := rows.Scan(
			&result.ID,
			&result.JobID,
			&result.Index,
			&result.URL,
			&result.Success,
			&method,
			&result.Title,
			&result.Description,
			&result.Text,
			&result.TextLength,
			&headingsJSON,
			&linksJSON,
			&countsJSON,
			&result.TotalMatches,
			&summaryJSON,
			&result.ScreenshotURI,
			&result.RawHTMLURI,
			&result.FetchedAt,
			&result.DurationMs,
			&errText,
		)
		if err != nil {
			return nil, fmt.Errorf("scan page result: %w", err)
		}
		result.Method = scrape.Strategy(method)
		if errText != nil {
			result.ErrorText = *errText
		}
		if len(headingsJSON) > 0 {
			if err := json.Unmarshal(headingsJSON, &result.Headings); err != nil {
				return nil, fmt.Errorf("unmarshal headings: %w", err)
			}
		}
		if len(linksJSON) > 0 {
			if err := json.Unmarshal(linksJSON, &result.Links); err != nil {
				return nil, fmt.Errorf("unmarshal links: %w", err)
			}
		}
		if len(countsJSON) > 0 {
			if err := json.Unmarshal(countsJSON, &result.KeywordCounts); err != nil {
				return nil, fmt.Errorf("unmarshal keyword counts: %w", err)
			}
		}
		if len(summaryJSON) > 0 {
			var summary scrape.Summary
			if err := json.Unmarshal(summaryJSON, &summary); err != nil {
				return nil, fmt.Errorf("unmarshal summary: %w", err)
			}
			result.Summary = &summary
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate page results: %w", err)
	}
	return results, nil
}
