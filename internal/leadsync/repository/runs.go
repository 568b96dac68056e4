// Package repository stores the history of sync, resync and backfill runs.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("sync run not found")

// Run is one recorded run.
type Run struct {
	ID             uuid.UUID
	CampaignID     *uuid.UUID
	ClientID       *uuid.UUID
	Kind           string
	Mode           string
	Imported       int
	Updated        int
	Failed         int
	NotFound       int
	Skipped        int
	Aborted        bool
	Errors         []string
	BeforeTotal    int
	BeforeReplied  int
	BeforePositive int
	AfterTotal     int
	AfterReplied   int
	AfterPositive  int
	ReportKey      *string
	StartedAt      time.Time
	FinishedAt     time.Time
}

// ListParams filters the run history.
type ListParams struct {
	CampaignID *uuid.UUID
	ClientID   *uuid.UUID
	Kind       string
	Limit      int
	Offset     int
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const runColumns = `id, campaign_id, client_id, kind, mode, imported, updated, failed, not_found, skipped,
	aborted, errors, before_total, before_replied, before_positive, after_total, after_replied,
	after_positive, report_key, started_at, finished_at`

// Insert records a finished run. Recording the same run twice is a no-op.
func (r *Repository) Insert(ctx context.Context, run Run) error {
	errs := run.Errors
	if errs == nil {
		errs = []string{}
	}
	encoded, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("encode run errors: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO sync_runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (id) DO NOTHING
	`,
		run.ID, run.CampaignID, run.ClientID, run.Kind, run.Mode,
		run.Imported, run.Updated, run.Failed, run.NotFound, run.Skipped,
		run.Aborted, encoded,
		run.BeforeTotal, run.BeforeReplied, run.BeforePositive,
		run.AfterTotal, run.AfterReplied, run.AfterPositive,
		run.ReportKey, run.StartedAt, run.FinishedAt,
	)
	return err
}

// Get returns one run.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Run, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM sync_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return run, err
}

// List returns runs newest first together with the total matching count.
func (r *Repository) List(ctx context.Context, params ListParams) ([]Run, int, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := max(params.Offset, 0)

	var kind *string
	if params.Kind != "" {
		kind = &params.Kind
	}

	const filter = `
		WHERE ($1::uuid IS NULL OR campaign_id = $1)
			AND ($2::uuid IS NULL OR client_id = $2)
			AND ($3::text IS NULL OR kind = $3)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sync_runs`+filter,
		params.CampaignID, params.ClientID, kind,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT `+runColumns+` FROM sync_runs`+filter+`
		ORDER BY started_at DESC
		LIMIT $4 OFFSET $5`,
		params.CampaignID, params.ClientID, kind, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

func scanRun(row pgx.Row) (Run, error) {
	var (
		run     Run
		encoded []byte
	)
	err := row.Scan(
		&run.ID, &run.CampaignID, &run.ClientID, &run.Kind, &run.Mode,
		&run.Imported, &run.Updated, &run.Failed, &run.NotFound, &run.Skipped,
		&run.Aborted, &encoded,
		&run.BeforeTotal, &run.BeforeReplied, &run.BeforePositive,
		&run.AfterTotal, &run.AfterReplied, &run.AfterPositive,
		&run.ReportKey, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return Run{}, err
	}
	run.Errors = []string{}
	if len(encoded) > 0 {
		if err := json.Unmarshal(encoded, &run.Errors); err != nil {
			return Run{}, fmt.Errorf("decode run errors: %w", err)
		}
	}
	return run, nil
}

// DeleteFinishedBefore removes runs that finished before cutoff. Archived
// reports are left in the bucket.
func (r *Repository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sync_runs WHERE finished_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
