package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Scope narrows a query to one campaign, one client, or both. A client-only
// scope skips leads whose campaign was deleted. An empty scope covers every
// lead.
type Scope struct {
	CampaignID *uuid.UUID
	ClientID   *uuid.UUID
}

func (s Scope) where(args []any) (string, []any) {
	clause := "TRUE"
	if s.CampaignID != nil {
		args = append(args, *s.CampaignID)
		clause += fmt.Sprintf(" AND campaign_id = $%d", len(args))
	}
	if s.ClientID != nil {
		args = append(args, *s.ClientID)
		clause += fmt.Sprintf(" AND client_id = $%d", len(args))
		if s.CampaignID == nil {
			clause += " AND campaign_id IS NOT NULL"
		}
	}
	return clause, args
}

// Aggregates are the verification counts taken before and after a run.
type Aggregates struct {
	Total    int
	Replied  int
	Positive int
}

// CountAggregates counts the leads in scope.
func (r *Repository) CountAggregates(ctx context.Context, scope Scope) (Aggregates, error) {
	clause, args := scope.where(nil)

	var agg Aggregates
	err := r.q.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE has_replied),
			COUNT(*) FILTER (WHERE is_positive_reply)
		FROM leads
		WHERE `+clause, args...).Scan(&agg.Total, &agg.Replied, &agg.Positive)
	if err != nil {
		return Aggregates{}, err
	}
	return agg, nil
}

// StatusCounts returns the number of leads per status in scope.
func (r *Repository) StatusCounts(ctx context.Context, scope Scope) (map[string]int, error) {
	clause, args := scope.where(nil)

	rows, err := r.q.Query(ctx, `
		SELECT status, COUNT(*)
		FROM leads
		WHERE `+clause+`
		GROUP BY status
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
