package leadsync

import (
	"context"
	"fmt"
	"testing"
	"time"

	leadsrepo "bluereach_backend/internal/leads/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backfillCandidates(n int) []leadsrepo.BackfillCandidate {
	out := make([]leadsrepo.BackfillCandidate, n)
	for i := range out {
		out[i] = leadsrepo.BackfillCandidate{
			ID:             uuid.New(),
			Email:          fmt.Sprintf("r%02d@example.com", i),
			ProviderLeadID: fmt.Sprintf("pl-%02d", i),
		}
	}
	return out
}

func TestBackfillFillsInChunks(t *testing.T) {
	h := newHarness(t)
	h.store.missing = backfillCandidates(12)
	at := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	h.source.replies = map[string]time.Time{}
	for i, c := range h.store.missing {
		if i%4 != 0 {
			h.source.replies[c.Email] = at
		}
	}
	h.source.replyErrs = map[string]error{"r04@example.com": unauthorizedErr()}

	res, err := h.orch.BackfillReplyTimestamps(context.Background(), h.campaign.ID, live)
	require.NoError(t, err)

	assert.Equal(t, 12, res.Candidates)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, 9, res.Filled)
	assert.Equal(t, 2, res.NoReply)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "r04@example.com")
	assert.Len(t, h.store.respondedAt, 9)
	assert.Equal(t, at, h.store.respondedAt[h.store.missing[1].ID])

	chunkDelay := DefaultSettings().BackfillChunkDelay
	assert.Equal(t, []time.Duration{chunkDelay, chunkDelay}, h.sleeps)
}

func TestBackfillDryRunWritesNothing(t *testing.T) {
	h := newHarness(t)
	h.store.missing = backfillCandidates(3)
	h.source.replies = map[string]time.Time{"r00@example.com": time.Now()}

	res, err := h.orch.BackfillReplyTimestamps(context.Background(), h.campaign.ID, Options{Mode: ModeDryRun})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Filled)
	assert.Equal(t, 2, res.NoReply)
	assert.Empty(t, h.store.respondedAt)
}

func TestBackfillRecordsRun(t *testing.T) {
	h := newHarness(t)
	h.store.missing = backfillCandidates(1)

	res, err := h.orch.BackfillReplyTimestamps(context.Background(), h.campaign.ID, live)
	require.NoError(t, err)

	completed := h.bus.completed()
	require.Len(t, completed, 1)
	assert.Equal(t, KindReplyBackfill, completed[0].Kind)
	assert.Equal(t, res.RunID, completed[0].RunID)
	assert.Empty(t, h.sleeps)
}

func TestBackfillStopsAfterCancellation(t *testing.T) {
	h := newHarness(t)
	h.store.missing = backfillCandidates(12)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.source.onReply = cancel

	res, err := h.orch.BackfillReplyTimestamps(ctx, h.campaign.ID, live)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Chunks)
	assert.LessOrEqual(t, res.NoReply, DefaultSettings().BackfillConcurrency)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[len(res.Errors)-1], "stopped after 5 leads")
}
