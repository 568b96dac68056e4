package repository

import (
	"context"
	"errors"
	"fmt"

	"bluereach_backend/internal/reconcile"
	"bluereach_backend/platform/apperr"
	"bluereach_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	campaignNotFoundMessage = "campaign not found"
	clientNotFoundMessage   = "client not found"

	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new campaigns repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

const campaignSelect = `
	SELECT c.id, c.client_id, cl.name, c.name, c.provider, c.provider_campaign_id, c.api_key, c.created_at, c.updated_at
	FROM campaigns c
	JOIN clients cl ON cl.id = c.client_id`

func scanCampaign(row pgx.Row) (Campaign, error) {
	var c Campaign
	var provider string
	err := row.Scan(&c.ID, &c.ClientID, &c.ClientName, &c.Name, &provider, &c.ProviderCampaignID, &c.APIKey, &c.CreatedAt, &c.UpdatedAt)
	c.Provider = reconcile.Provider(provider)
	return c, err
}

func collectCampaigns(rows pgx.Rows) ([]Campaign, error) {
	defer rows.Close()

	items := make([]Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// GetCampaign retrieves a campaign with its client name.
func (r *Repo) GetCampaign(ctx context.Context, id uuid.UUID) (Campaign, error) {
	c, err := scanCampaign(r.pool.QueryRow(ctx, campaignSelect+` WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Campaign{}, apperr.NotFound(campaignNotFoundMessage)
		}
		return Campaign{}, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

// FindByProviderCampaign returns the campaign linked to a provider campaign id,
// or nil when none is linked.
func (r *Repo) FindByProviderCampaign(ctx context.Context, provider reconcile.Provider, providerCampaignID string) (*Campaign, error) {
	c, err := scanCampaign(r.pool.QueryRow(ctx,
		campaignSelect+` WHERE c.provider = $1 AND c.provider_campaign_id = $2`,
		string(provider), providerCampaignID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find campaign by provider id: %w", err)
	}
	return &c, nil
}

// ListByClient lists a client's campaigns by name.
func (r *Repo) ListByClient(ctx context.Context, clientID uuid.UUID) ([]Campaign, error) {
	rows, err := r.pool.Query(ctx, campaignSelect+` WHERE c.client_id = $1 ORDER BY c.name, c.id`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return collectCampaigns(rows)
}

// ListAll lists every campaign.
func (r *Repo) ListAll(ctx context.Context) ([]Campaign, error) {
	rows, err := r.pool.Query(ctx, campaignSelect+` ORDER BY cl.name, c.name, c.id`)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return collectCampaigns(rows)
}

// GetClient retrieves a client by ID.
func (r *Repo) GetClient(ctx context.Context, id uuid.UUID) (Client, error) {
	var cl Client
	err := r.pool.QueryRow(ctx, `
		SELECT cl.id, cl.name, (SELECT COUNT(*) FROM campaigns c WHERE c.client_id = cl.id), cl.created_at, cl.updated_at
		FROM clients cl
		WHERE cl.id = $1`, id).Scan(&cl.ID, &cl.Name, &cl.CampaignCount, &cl.CreatedAt, &cl.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, apperr.NotFound(clientNotFoundMessage)
		}
		return Client{}, fmt.Errorf("get client: %w", err)
	}
	return cl, nil
}

// ListClients lists every client with its campaign count.
func (r *Repo) ListClients(ctx context.Context) ([]Client, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT cl.id, cl.name, COUNT(c.id), cl.created_at, cl.updated_at
		FROM clients cl
		LEFT JOIN campaigns c ON c.client_id = cl.id
		GROUP BY cl.id
		ORDER BY cl.name, cl.id`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	items := make([]Client, 0)
	for rows.Next() {
		var cl Client
		if err := rows.Scan(&cl.ID, &cl.Name, &cl.CampaignCount, &cl.CreatedAt, &cl.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		items = append(items, cl)
	}
	return items, rows.Err()
}

// CreateClient creates a new client.
func (r *Repo) CreateClient(ctx context.Context, name string) (Client, error) {
	var cl Client
	err := r.pool.QueryRow(ctx, `
		INSERT INTO clients (name) VALUES ($1)
		RETURNING id, name, created_at, updated_at`, name).Scan(&cl.ID, &cl.Name, &cl.CreatedAt, &cl.UpdatedAt)
	if err != nil {
		return Client{}, fmt.Errorf("create client: %w", err)
	}
	return cl, nil
}

// CreateCampaign links a provider campaign to a client.
func (r *Repo) CreateCampaign(ctx context.Context, params CreateCampaignParams) (Campaign, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO campaigns (client_id, name, provider, provider_campaign_id, api_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		params.ClientID, params.Name, string(params.Provider), params.ProviderCampaignID, params.APIKey,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return Campaign{}, apperr.Conflict("provider campaign is already linked")
			case pgForeignKeyViolation:
				return Campaign{}, apperr.NotFound(clientNotFoundMessage)
			}
		}
		return Campaign{}, fmt.Errorf("create campaign: %w", err)
	}
	return r.GetCampaign(ctx, id)
}

// SetAPIKey replaces or clears the campaign's provider key.
func (r *Repo) SetAPIKey(ctx context.Context, id uuid.UUID, apiKey *string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE campaigns SET api_key = $2, updated_at = now() WHERE id = $1`, id, apiKey)
	if err != nil {
		return fmt.Errorf("set campaign api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(campaignNotFoundMessage)
	}
	return nil
}

const denormalizeLeadsQuery = `
	UPDATE leads l SET
		campaign_name = c.name,
		client_id = c.client_id,
		client_name = cl.name,
		updated_at = now()
	FROM campaigns c
	JOIN clients cl ON cl.id = c.client_id
	WHERE c.id = $1 AND l.campaign_id = c.id`

// DeleteCampaign copies the campaign and client names onto the campaign's
// leads and removes the campaign in one transaction. The leads survive with a
// null campaign_id. It returns the number of leads kept as history.
func (r *Repo) DeleteCampaign(ctx context.Context, id uuid.UUID) (int64, error) {
	var kept int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, denormalizeLeadsQuery, id)
		if err != nil {
			return fmt.Errorf("denormalize leads: %w", err)
		}
		kept = tag.RowsAffected()

		tag, err = tx.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete campaign: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound(campaignNotFoundMessage)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return kept, nil
}
