package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DuplicateGroup is a set of leads sharing (campaign, lower(email)). IDs are
// ordered oldest first.
type DuplicateGroup struct {
	CampaignID *uuid.UUID
	Email      string
	IDs        []uuid.UUID
}

// ProviderIDCollision is a provider lead id carried by several leads of one
// client across campaigns.
type ProviderIDCollision struct {
	ClientID       uuid.UUID
	ProviderLeadID string
	LeadIDs        []uuid.UUID
}

// Anomalies counts rows that break a lead invariant without being duplicates.
type Anomalies struct {
	PositiveTerminal   int
	RepliesNotReplied  int
	OrphanedByCampaign int
}

const findDuplicatesQuery = `
	SELECT campaign_id, lower(email), array_agg(id ORDER BY created_at, id)
	FROM leads
	WHERE %s
	GROUP BY campaign_id, lower(email)
	HAVING COUNT(*) > 1
	ORDER BY lower(email)
`

// FindDuplicates returns duplicate groups in scope. The unique index keeps
// them out of live campaigns; they appear in rows orphaned by a deleted
// campaign and in data loaded before the index existed.
func (r *Repository) FindDuplicates(ctx context.Context, scope Scope) ([]DuplicateGroup, error) {
	clause, args := scope.where(nil)

	rows, err := r.q.Query(ctx, fmt.Sprintf(findDuplicatesQuery, clause), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := make([]DuplicateGroup, 0)
	for rows.Next() {
		var g DuplicateGroup
		if err := rows.Scan(&g.CampaignID, &g.Email, &g.IDs); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// FindProviderIDCollisions reports provider ids shared across campaigns of
// one client.
func (r *Repository) FindProviderIDCollisions(ctx context.Context, scope Scope) ([]ProviderIDCollision, error) {
	clause, args := scope.where(nil)

	rows, err := r.q.Query(ctx, `
		SELECT client_id, provider_lead_id, array_agg(id ORDER BY created_at, id)
		FROM leads
		WHERE provider_lead_id IS NOT NULL AND client_id IS NOT NULL AND `+clause+`
		GROUP BY client_id, provider_lead_id
		HAVING COUNT(*) > 1
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]ProviderIDCollision, 0)
	for rows.Next() {
		var c ProviderIDCollision
		if err := rows.Scan(&c.ClientID, &c.ProviderLeadID, &c.LeadIDs); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// CountAnomalies counts invariant violations in scope.
func (r *Repository) CountAnomalies(ctx context.Context, scope Scope) (Anomalies, error) {
	clause, args := scope.where(nil)

	var a Anomalies
	err := r.q.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE is_positive_reply AND status IN ('lost', 'not_interested')),
			COUNT(*) FILTER (WHERE email_reply_count > 0 AND NOT has_replied),
			COUNT(*) FILTER (WHERE campaign_id IS NULL)
		FROM leads
		WHERE `+clause, args...).Scan(&a.PositiveTerminal, &a.RepliesNotReplied, &a.OrphanedByCampaign)
	if err != nil {
		return Anomalies{}, err
	}
	return a, nil
}

// FixRepliedFlags sets has_replied on leads with a reply count.
func (r *Repository) FixRepliedFlags(ctx context.Context, scope Scope) (int64, error) {
	clause, args := scope.where(nil)

	tag, err := r.q.Exec(ctx, `
		UPDATE leads SET has_replied = true, updated_at = now()
		WHERE email_reply_count > 0 AND NOT has_replied AND `+clause, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const mergeDuplicateQuery = `
	UPDATE leads AS k SET
		first_name = COALESCE(NULLIF(k.first_name, ''), d.first_name),
		last_name = COALESCE(NULLIF(k.last_name, ''), d.last_name),
		company_name = COALESCE(NULLIF(k.company_name, ''), d.company_name),
		company_domain = COALESCE(NULLIF(k.company_domain, ''), d.company_domain),
		phone = COALESCE(NULLIF(k.phone, ''), d.phone),
		email_open_count = GREATEST(k.email_open_count, d.email_open_count),
		email_click_count = GREATEST(k.email_click_count, d.email_click_count),
		email_reply_count = GREATEST(k.email_reply_count, d.email_reply_count),
		is_positive_reply = k.is_positive_reply OR d.is_positive_reply,
		has_replied = k.has_replied OR d.has_replied,
		last_contacted_at = GREATEST(k.last_contacted_at, d.last_contacted_at),
		responded_at = LEAST(k.responded_at, d.responded_at),
		notes = COALESCE(NULLIF(k.notes, ''), d.notes),
		deal_value = COALESCE(k.deal_value, d.deal_value),
		next_action = COALESCE(NULLIF(k.next_action, ''), d.next_action),
		metadata = d.metadata || k.metadata,
		updated_at = now()
	FROM leads AS d
	WHERE k.id = $1 AND d.id = $2
`

// MergeDuplicate folds dropID into keepID and deletes dropID. Run it on a
// transaction-bound repository.
func (r *Repository) MergeDuplicate(ctx context.Context, keepID, dropID uuid.UUID) error {
	if keepID == dropID {
		return errors.New("cannot merge a lead into itself")
	}
	var dropProviderID *string
	err := r.q.QueryRow(ctx, `SELECT provider_lead_id FROM leads WHERE id = $1`, dropID).Scan(&dropProviderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load duplicate %s: %w", dropID, err)
	}
	// Detach first so the id can move without tripping the partial unique index.
	if dropProviderID != nil {
		if _, err := r.q.Exec(ctx, `UPDATE leads SET provider_lead_id = NULL WHERE id = $1`, dropID); err != nil {
			return fmt.Errorf("detach duplicate %s: %w", dropID, err)
		}
	}

	tag, err := r.q.Exec(ctx, mergeDuplicateQuery, keepID, dropID)
	if err != nil {
		return fmt.Errorf("merge duplicate %s into %s: %w", dropID, keepID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if dropProviderID != nil {
		if _, err := r.q.Exec(ctx, `
			UPDATE leads SET provider_lead_id = $2 WHERE id = $1 AND provider_lead_id IS NULL
		`, keepID, *dropProviderID); err != nil {
			return fmt.Errorf("move provider id: %w", err)
		}
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM leads WHERE id = $1`, dropID); err != nil {
		return fmt.Errorf("delete duplicate %s: %w", dropID, err)
	}
	return nil
}
