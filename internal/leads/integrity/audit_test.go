package integrity

import (
	"context"
	"errors"
	"testing"

	"bluereach_backend/internal/leads/repository"
	"bluereach_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	dups      []repository.DuplicateGroup
	anomalies repository.Anomalies
	merges    [][2]uuid.UUID
	failFor   uuid.UUID
	fixed     int64
	txs       int
}

func (f *fakeStore) FindDuplicates(context.Context, repository.Scope) ([]repository.DuplicateGroup, error) {
	return f.dups, nil
}

func (f *fakeStore) FindProviderIDCollisions(context.Context, repository.Scope) ([]repository.ProviderIDCollision, error) {
	return []repository.ProviderIDCollision{{ProviderLeadID: "p-1", LeadIDs: []uuid.UUID{uuid.New(), uuid.New()}}}, nil
}

func (f *fakeStore) CountAnomalies(context.Context, repository.Scope) (repository.Anomalies, error) {
	return f.anomalies, nil
}

func (f *fakeStore) WithinTx(_ context.Context, fn func(Fixer) error) error {
	f.txs++
	return fn(f)
}

func (f *fakeStore) MergeDuplicate(_ context.Context, keep, drop uuid.UUID) error {
	if drop == f.failFor {
		return errors.New("constraint violation")
	}
	f.merges = append(f.merges, [2]uuid.UUID{keep, drop})
	return nil
}

func (f *fakeStore) FixRepliedFlags(context.Context, repository.Scope) (int64, error) {
	f.fixed = int64(f.anomalies.RepliesNotReplied)
	return f.fixed, nil
}

func TestAuditDryRunWritesNothing(t *testing.T) {
	store := &fakeStore{
		dups:      []repository.DuplicateGroup{{Email: "a@x.co", IDs: []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}}},
		anomalies: repository.Anomalies{RepliesNotReplied: 2},
	}
	rep, err := NewAuditor(store, logger.New("test")).Run(context.Background(), repository.Scope{}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.txs != 0 || len(store.merges) != 0 {
		t.Fatalf("dry run wrote: txs=%d merges=%d", store.txs, len(store.merges))
	}
	if rep.DuplicateRows() != 2 || len(rep.Collisions) != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestAuditMergesIntoOldestRow(t *testing.T) {
	oldest, mid, newest := uuid.New(), uuid.New(), uuid.New()
	store := &fakeStore{
		dups:      []repository.DuplicateGroup{{Email: "a@x.co", IDs: []uuid.UUID{oldest, mid, newest}}},
		anomalies: repository.Anomalies{RepliesNotReplied: 3},
	}
	rep, err := NewAuditor(store, logger.New("test")).Run(context.Background(), repository.Scope{}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Merged != 2 || rep.FlagsFixed != 3 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	for _, m := range store.merges {
		if m[0] != oldest {
			t.Fatalf("expected merges into oldest row, got %v", m)
		}
	}
}

func TestAuditContinuesAfterFailedGroup(t *testing.T) {
	bad := uuid.New()
	store := &fakeStore{
		failFor: bad,
		dups: []repository.DuplicateGroup{
			{Email: "bad@x.co", IDs: []uuid.UUID{uuid.New(), bad}},
			{Email: "ok@x.co", IDs: []uuid.UUID{uuid.New(), uuid.New()}},
		},
	}
	rep, err := NewAuditor(store, logger.New("test")).Run(context.Background(), repository.Scope{}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.MergeFailed != 1 || rep.Merged != 1 || len(rep.MergeErrors) != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if store.fixed != 0 {
		t.Fatalf("expected no flag fix without anomalies, got %d", store.fixed)
	}
}
