package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListPositiveIDs returns the ids of every lead flagged positive in scope.
func (r *Repository) ListPositiveIDs(ctx context.Context, scope Scope) ([]uuid.UUID, error) {
	clause, args := scope.where(nil)

	rows, err := r.q.Query(ctx, `
		SELECT id FROM leads
		WHERE is_positive_reply AND `+clause+`
		ORDER BY id
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ResetPositive clears is_positive_reply for every lead in scope. Callers run
// it together with MarkPositive inside one transaction.
func (r *Repository) ResetPositive(ctx context.Context, scope Scope) (int64, error) {
	clause, args := scope.where(nil)

	tag, err := r.q.Exec(ctx, `
		UPDATE leads SET is_positive_reply = false, updated_at = now()
		WHERE is_positive_reply AND `+clause, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkPositive flags the given leads as positive replies. A positive reply is
// a reply, so has_replied is set as well.
func (r *Repository) MarkPositive(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE leads SET is_positive_reply = true, has_replied = true, updated_at = now()
		WHERE id = ANY($1::uuid[])
	`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListMissingRespondedAt returns campaign leads that have replied but carry no
// responded_at timestamp.
func (r *Repository) ListMissingRespondedAt(ctx context.Context, campaignID uuid.UUID) ([]BackfillCandidate, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, email, COALESCE(provider_lead_id, '')
		FROM leads
		WHERE campaign_id = $1 AND responded_at IS NULL
			AND (has_replied OR email_reply_count > 0)
		ORDER BY created_at
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]BackfillCandidate, 0)
	for rows.Next() {
		var c BackfillCandidate
		if err := rows.Scan(&c.ID, &c.Email, &c.ProviderLeadID); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// BackfillCandidate is a replied lead without a responded_at timestamp.
type BackfillCandidate struct {
	ID             uuid.UUID
	Email          string
	ProviderLeadID string
}

// SetRespondedAt fills responded_at when it is still empty. It reports
// whether the row changed.
func (r *Repository) SetRespondedAt(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE leads SET responded_at = $2, has_replied = true, updated_at = now()
		WHERE id = $1 AND responded_at IS NULL
	`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
