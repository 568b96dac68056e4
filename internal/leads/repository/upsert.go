package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"bluereach_backend/internal/reconcile"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MaxBatchSize bounds the statements sent in one pgx batch.
const MaxBatchSize = 100

// Upsert is one queued lead write. LeadID targets an existing row matched by
// provider id; nil writes through the (campaign, lower(email)) conflict key.
type Upsert struct {
	CampaignID uuid.UUID
	LeadID     *uuid.UUID
	Payload    reconcile.UpdatePayload
}

// UpsertResult reports the outcome of one Upsert.
type UpsertResult struct {
	ID       uuid.UUID
	Inserted bool
	Err      error
}

type writeColumn struct {
	name string
	cast string
}

// writeColumns is the parameter order of the email upsert ($1..$20).
var writeColumns = []writeColumn{
	{"campaign_id", "uuid"},
	{"client_id", "uuid"},
	{"campaign_name", "text"},
	{"client_name", "text"},
	{"email", "text"},
	{"first_name", "text"},
	{"last_name", "text"},
	{"company_name", "text"},
	{"company_domain", "text"},
	{"phone", "text"},
	{"provider_lead_id", "text"},
	{"status", "text"},
	{"is_positive_reply", "boolean"},
	{"has_replied", "boolean"},
	{"email_open_count", "integer"},
	{"email_click_count", "integer"},
	{"email_reply_count", "integer"},
	{"last_contacted_at", "timestamptz"},
	{"responded_at", "timestamptz"},
	{"metadata", "jsonb"},
}

// updateColumns is the parameter order of the update by id. Email is the
// conflict key of the insert path and is never rewritten on an id match.
var updateColumns = withoutColumn(writeColumns, "email")

func withoutColumn(cols []writeColumn, name string) []writeColumn {
	out := make([]writeColumn, 0, len(cols))
	for _, c := range cols {
		if c.name != name {
			out = append(out, c)
		}
	}
	return out
}

func paramIn(cols []writeColumn) func(name string) string {
	return func(name string) string {
		for i, c := range cols {
			if c.name == name {
				return fmt.Sprintf("$%d::%s", i+1, c.cast)
			}
		}
		panic("unknown write column " + name)
	}
}

var (
	param       = paramIn(writeColumns)
	updateParam = paramIn(updateColumns)
)

func excluded(name string) string { return "EXCLUDED." + name }

func quoted(statuses []reconcile.Status) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = "'" + string(s) + "'"
	}
	return strings.Join(parts, ", ")
}

// priorityCase renders reconcile.Status.Priority as SQL.
func priorityCase(expr string) string {
	var b strings.Builder
	b.WriteString("(CASE " + expr)
	for _, s := range reconcile.Ordered {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", s, s.Priority())
	}
	b.WriteString(" ELSE -1 END)")
	return b.String()
}

// statusAssignment renders reconcile.ResolveStatus(leads.status, in) as SQL.
func statusAssignment(in string) string {
	terminal := quoted([]reconcile.Status{reconcile.StatusLost, reconcile.StatusNotInterested})
	valid := quoted(append([]reconcile.Status{reconcile.StatusLost, reconcile.StatusNotInterested}, reconcile.Ordered...))
	return fmt.Sprintf(`status = CASE
			WHEN %[1]s IS NULL OR %[1]s NOT IN (%[2]s) THEN leads.status
			WHEN leads.status IN (%[3]s) THEN leads.status
			WHEN %[1]s IN (%[3]s) THEN %[1]s
			WHEN leads.status = '%[4]s' OR %[5]s > %[6]s THEN %[1]s
			ELSE leads.status
		END`, in, valid, terminal, reconcile.StatusContacted, priorityCase(in), priorityCase("leads.status"))
}

// mergeAssignments renders the SET list shared by the email upsert and the
// update by id. in maps a column to the expression carrying its incoming value.
func mergeAssignments(in func(name string) string) string {
	sets := make([]string, 0, len(writeColumns))
	for _, col := range []string{"first_name", "last_name", "company_name", "company_domain", "phone", "campaign_name", "client_name"} {
		sets = append(sets, fmt.Sprintf("%[1]s = COALESCE(NULLIF(%[2]s, ''), leads.%[1]s)", col, in(col)))
	}
	sets = append(sets,
		fmt.Sprintf("client_id = COALESCE(%s, leads.client_id)", in("client_id")),
		fmt.Sprintf("provider_lead_id = COALESCE(leads.provider_lead_id, NULLIF(%s, ''))", in("provider_lead_id")),
	)
	for _, col := range []string{"email_open_count", "email_click_count", "email_reply_count"} {
		sets = append(sets, fmt.Sprintf("%[1]s = GREATEST(leads.%[1]s, %[2]s)", col, in(col)))
	}
	sets = append(sets,
		statusAssignment(in("status")),
		fmt.Sprintf("is_positive_reply = leads.is_positive_reply OR %s", in("is_positive_reply")),
		fmt.Sprintf("has_replied = leads.has_replied OR %s", in("has_replied")),
		fmt.Sprintf("last_contacted_at = GREATEST(leads.last_contacted_at, %s)", in("last_contacted_at")),
		fmt.Sprintf("responded_at = COALESCE(leads.responded_at, %s)", in("responded_at")),
		fmt.Sprintf("metadata = leads.metadata || COALESCE(%s, '{}'::jsonb)", in("metadata")),
		"updated_at = now()",
	)
	return strings.Join(sets, ",\n\t\t")
}

func insertValues() string {
	values := make([]string, len(writeColumns))
	for i, c := range writeColumns {
		p := param(c.name)
		switch c.name {
		case "provider_lead_id":
			p = "NULLIF(" + p + ", '')"
		case "metadata":
			p = "COALESCE(" + p + ", '{}'::jsonb)"
		}
		values[i] = p
	}
	return strings.Join(values, ", ")
}

func columnNames() string {
	names := make([]string, len(writeColumns))
	for i, c := range writeColumns {
		names[i] = c.name
	}
	return strings.Join(names, ", ")
}

var (
	upsertQuery = fmt.Sprintf(`
		INSERT INTO leads (%s)
		VALUES (%s)
		ON CONFLICT (campaign_id, lower(email)) DO UPDATE SET
		%s
		RETURNING id, (xmax = 0) AS inserted
	`, columnNames(), insertValues(), mergeAssignments(excluded))

	updateByIDQuery = fmt.Sprintf(`
		UPDATE leads SET
		%s
		WHERE id = $%d AND campaign_id = $1
		RETURNING id, false AS inserted
	`, mergeAssignments(updateParam), len(updateColumns)+1)
)

func writeArgs(u Upsert) ([]any, error) {
	p := u.Payload
	var clientID *uuid.UUID
	if p.ClientID != uuid.Nil {
		id := p.ClientID
		clientID = &id
	}
	var metadata []byte
	if len(p.Metadata) > 0 {
		raw, err := json.Marshal(p.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode lead metadata: %w", err)
		}
		metadata = raw
	}
	status := p.Status
	if status == "" {
		status = reconcile.StatusContacted
	}

	values := map[string]any{
		"campaign_id":       u.CampaignID,
		"client_id":         clientID,
		"campaign_name":     p.CampaignName,
		"client_name":       p.ClientName,
		"email":             strings.TrimSpace(p.Email),
		"first_name":        p.FirstName,
		"last_name":         p.LastName,
		"company_name":      p.CompanyName,
		"company_domain":    p.CompanyDomain,
		"phone":             p.Phone,
		"provider_lead_id":  p.ProviderLeadID,
		"status":            string(status),
		"is_positive_reply": p.IsPositiveReply,
		"has_replied":       p.HasReplied,
		"email_open_count":  p.OpenCount,
		"email_click_count": p.ClickCount,
		"email_reply_count": p.ReplyCount,
		"last_contacted_at": p.LastContactedAt,
		"responded_at":      p.RespondedAt,
		"metadata":          metadata,
	}

	cols := writeColumns
	if u.LeadID != nil {
		cols = updateColumns
	}
	args := make([]any, 0, len(cols)+1)
	for _, c := range cols {
		args = append(args, values[c.name])
	}
	if u.LeadID != nil {
		args = append(args, *u.LeadID)
	}
	return args, nil
}

func statementFor(u Upsert) string {
	if u.LeadID != nil {
		return updateByIDQuery
	}
	return upsertQuery
}

func scanResult(row pgx.Row, u Upsert) UpsertResult {
	var res UpsertResult
	err := row.Scan(&res.ID, &res.Inserted)
	if errors.Is(err, pgx.ErrNoRows) && u.LeadID != nil {
		err = ErrNotFound
	}
	res.Err = err
	return res
}

// UpsertBatch writes items in batches of at most MaxBatchSize. Results line
// up with items. A batch runs as one implicit transaction, so when any row in
// it fails the batch is replayed row by row to isolate the failure; every
// write is an idempotent merge so the replay is safe.
func (r *Repository) UpsertBatch(ctx context.Context, items []Upsert) ([]UpsertResult, error) {
	results := make([]UpsertResult, 0, len(items))
	for start := 0; start < len(items); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(items))
		chunk, err := r.upsertChunk(ctx, items[start:end])
		if err != nil {
			return results, err
		}
		results = append(results, chunk...)
	}
	return results, nil
}

func (r *Repository) upsertChunk(ctx context.Context, items []Upsert) ([]UpsertResult, error) {
	results := make([]UpsertResult, len(items))
	batch := &pgx.Batch{}
	queued := make([]int, 0, len(items))
	for i, u := range items {
		args, err := writeArgs(u)
		if err != nil {
			results[i].Err = err
			continue
		}
		batch.Queue(statementFor(u), args...)
		queued = append(queued, i)
	}
	if len(queued) == 0 {
		return results, nil
	}

	br := r.q.SendBatch(ctx, batch)
	failed := false
	for _, i := range queued {
		results[i] = scanResult(br.QueryRow(), items[i])
		if results[i].Err != nil {
			failed = true
		}
	}
	closeErr := br.Close()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !failed && closeErr == nil {
		return results, nil
	}

	for _, i := range queued {
		results[i] = r.upsertOne(ctx, items[i])
	}
	return results, nil
}

func (r *Repository) upsertOne(ctx context.Context, u Upsert) UpsertResult {
	args, err := writeArgs(u)
	if err != nil {
		return UpsertResult{Err: err}
	}
	return scanResult(r.q.QueryRow(ctx, statementFor(u), args...), u)
}

// Upsert writes a single lead.
func (r *Repository) Upsert(ctx context.Context, u Upsert) (UpsertResult, error) {
	res := r.upsertOne(ctx, u)
	return res, res.Err
}

// UpdateExisting merges payload into the lead with id. It never inserts and
// returns ErrNotFound when the row is gone.
func (r *Repository) UpdateExisting(ctx context.Context, campaignID, id uuid.UUID, payload reconcile.UpdatePayload) error {
	_, err := r.Upsert(ctx, Upsert{CampaignID: campaignID, LeadID: &id, Payload: payload})
	return err
}
