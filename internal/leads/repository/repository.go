package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"bluereach_backend/internal/reconcile"
	"bluereach_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

// Repository is the canonical lead store.
type Repository struct {
	pool *pgxpool.Pool
	q    db.Querier
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, q: pool}
}

// WithTx returns a repository whose statements run inside tx.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{pool: r.pool, q: tx}
}

// InTx runs fn against a transaction-bound repository.
func (r *Repository) InTx(ctx context.Context, fn func(tx *Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(r.WithTx(tx))
	})
}

const leadColumns = `id, campaign_id, client_id, campaign_name, client_name, email, first_name, last_name,
	company_name, company_domain, phone, provider_lead_id, status, is_positive_reply, has_replied,
	email_open_count, email_click_count, email_reply_count, created_at, last_contacted_at, responded_at,
	updated_at, notes, deal_value, next_action, metadata`

func scanLead(row pgx.Row) (reconcile.Lead, error) {
	var (
		lead       reconcile.Lead
		campaignID *uuid.UUID
		clientID   *uuid.UUID
		status     string
		metadata   []byte
	)
	err := row.Scan(
		&lead.ID, &campaignID, &clientID, &lead.CampaignName, &lead.ClientName, &lead.Email,
		&lead.FirstName, &lead.LastName, &lead.CompanyName, &lead.CompanyDomain, &lead.Phone,
		&lead.ProviderLeadID, &status, &lead.IsPositiveReply, &lead.HasReplied,
		&lead.OpenCount, &lead.ClickCount, &lead.ReplyCount, &lead.CreatedAt, &lead.LastContactedAt,
		&lead.RespondedAt, &lead.UpdatedAt, &lead.Notes, &lead.DealValue, &lead.NextAction, &metadata,
	)
	if err != nil {
		return reconcile.Lead{}, err
	}
	if campaignID != nil {
		lead.CampaignID = *campaignID
	}
	if clientID != nil {
		lead.ClientID = *clientID
	}
	lead.Status = reconcile.Status(status)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &lead.Metadata); err != nil {
			return reconcile.Lead{}, fmt.Errorf("decode lead metadata: %w", err)
		}
	}
	return lead, nil
}

func collectLeads(rows pgx.Rows) ([]reconcile.Lead, error) {
	defer rows.Close()

	items := make([]reconcile.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func (r *Repository) findOne(ctx context.Context, query string, args ...any) (*reconcile.Lead, error) {
	lead, err := scanLead(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// FindByProviderID returns the campaign's lead with exactly that provider id,
// or nil.
func (r *Repository) FindByProviderID(ctx context.Context, campaignID uuid.UUID, providerLeadID string) (*reconcile.Lead, error) {
	return r.findOne(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE campaign_id = $1 AND provider_lead_id = $2
	`, campaignID, providerLeadID)
}

// FindByEmail returns the campaign's lead with a case-insensitively equal
// email, or nil.
func (r *Repository) FindByEmail(ctx context.Context, campaignID uuid.UUID, email string) (*reconcile.Lead, error) {
	return r.findOne(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE campaign_id = $1 AND lower(email) = $2
		ORDER BY created_at ASC
		LIMIT 1
	`, campaignID, reconcile.NormalizeEmail(email))
}

var _ reconcile.Finder = (*Repository)(nil)

// LoadIdentities returns every lead of the campaign matching any of the
// provider ids or normalized emails. The sync uses it to resolve a whole page
// with one query.
func (r *Repository) LoadIdentities(ctx context.Context, campaignID uuid.UUID, providerLeadIDs, emails []string) ([]reconcile.Lead, error) {
	if len(providerLeadIDs) == 0 && len(emails) == 0 {
		return []reconcile.Lead{}, nil
	}
	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		if n := reconcile.NormalizeEmail(e); n != "" {
			normalized = append(normalized, n)
		}
	}

	rows, err := r.q.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE campaign_id = $1
			AND (provider_lead_id = ANY($2::text[]) OR lower(email) = ANY($3::text[]))
		ORDER BY created_at ASC
	`, campaignID, providerLeadIDs, normalized)
	if err != nil {
		return nil, err
	}
	return collectLeads(rows)
}

// GetByID returns a lead by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (reconcile.Lead, error) {
	lead, err := r.findOne(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	if err != nil {
		return reconcile.Lead{}, err
	}
	if lead == nil {
		return reconcile.Lead{}, ErrNotFound
	}
	return *lead, nil
}

// ListParams filters a campaign lead listing.
type ListParams struct {
	CampaignID   uuid.UUID
	Status       *reconcile.Status
	PositiveOnly bool
	Search       string
	Limit        int
	Offset       int
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern matches term literally anywhere in a lower-cased column.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}

func listWhere(params ListParams) (string, []any) {
	where := []string{"campaign_id = $1"}
	args := []any{params.CampaignID}

	if params.Status != nil {
		args = append(args, string(*params.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.PositiveOnly {
		where = append(where, "is_positive_reply")
	}
	if search := strings.TrimSpace(params.Search); search != "" {
		args = append(args, containsPattern(search))
		where = append(where, fmt.Sprintf(
			`(lower(email) LIKE $%[1]d ESCAPE '\' OR lower(first_name || ' ' || last_name) LIKE $%[1]d ESCAPE '\' OR lower(company_name) LIKE $%[1]d ESCAPE '\')`,
			len(args)))
	}
	return strings.Join(where, " AND "), args
}

// ListByCampaign returns one page of a campaign's leads and the total match
// count.
func (r *Repository) ListByCampaign(ctx context.Context, params ListParams) ([]reconcile.Lead, int, error) {
	clause, args := listWhere(params)

	var total int
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM leads WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := params.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	args = append(args, limit, max(params.Offset, 0))
	rows, err := r.q.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM leads
		WHERE %s
		ORDER BY updated_at DESC, id
		LIMIT $%d OFFSET $%d
	`, leadColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectLeads(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// OperatorFields are the fields only operators edit. Nil leaves a field
// unchanged.
type OperatorFields struct {
	Notes          *string
	DealValue      *float64
	ClearDealValue bool
	NextAction     *string
}

// UpdateOperatorFields writes operator-owned fields. No sync path calls it.
func (r *Repository) UpdateOperatorFields(ctx context.Context, id uuid.UUID, fields OperatorFields) (reconcile.Lead, error) {
	lead, err := r.findOne(ctx, `
		UPDATE leads SET
			notes = COALESCE($2, notes),
			deal_value = CASE WHEN $4 THEN NULL ELSE COALESCE($3, deal_value) END,
			next_action = COALESCE($5, next_action),
			updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns,
		id, fields.Notes, fields.DealValue, fields.ClearDealValue, fields.NextAction)
	if err != nil {
		return reconcile.Lead{}, err
	}
	if lead == nil {
		return reconcile.Lead{}, ErrNotFound
	}
	return *lead, nil
}

// SetStatusManual sets a status unconditionally. It is the operator override
// and the only way out of a terminal status.
func (r *Repository) SetStatusManual(ctx context.Context, id uuid.UUID, status reconcile.Status) (reconcile.Lead, error) {
	lead, err := r.findOne(ctx, `
		UPDATE leads SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns,
		id, string(status))
	if err != nil {
		return reconcile.Lead{}, err
	}
	if lead == nil {
		return reconcile.Lead{}, ErrNotFound
	}
	return *lead, nil
}
