// Package integrity audits the lead table for duplicates and flag drift and
// repairs them on request.
package integrity

import (
	"context"
	"fmt"

	"bluereach_backend/internal/leads/repository"
	"bluereach_backend/platform/logger"

	"github.com/google/uuid"
)

// Reader finds integrity problems.
type Reader interface {
	FindDuplicates(ctx context.Context, scope repository.Scope) ([]repository.DuplicateGroup, error)
	FindProviderIDCollisions(ctx context.Context, scope repository.Scope) ([]repository.ProviderIDCollision, error)
	CountAnomalies(ctx context.Context, scope repository.Scope) (repository.Anomalies, error)
}

// Fixer repairs problems inside one transaction.
type Fixer interface {
	MergeDuplicate(ctx context.Context, keepID, dropID uuid.UUID) error
	FixRepliedFlags(ctx context.Context, scope repository.Scope) (int64, error)
}

// Store is the storage surface of the audit.
type Store interface {
	Reader
	// WithinTx runs fn against a fixer bound to one transaction.
	WithinTx(ctx context.Context, fn func(f Fixer) error) error
}

// Report is the outcome of one audit.
type Report struct {
	Live        bool
	Duplicates  []repository.DuplicateGroup
	Collisions  []repository.ProviderIDCollision
	Anomalies   repository.Anomalies
	Merged      int
	FlagsFixed  int64
	MergeFailed int
	MergeErrors []string
}

// DuplicateRows counts the rows a merge would remove.
func (r Report) DuplicateRows() int {
	n := 0
	for _, g := range r.Duplicates {
		if len(g.IDs) > 1 {
			n += len(g.IDs) - 1
		}
	}
	return n
}

type Auditor struct {
	store Store
	log   *logger.Logger
}

func NewAuditor(store Store, log *logger.Logger) *Auditor {
	return &Auditor{store: store, log: log}
}

// Run reports problems in scope. When live, every duplicate group is folded
// into its oldest row, each group in its own transaction, and has_replied is
// repaired. Provider id collisions across campaigns are reported only.
func (a *Auditor) Run(ctx context.Context, scope repository.Scope, live bool) (Report, error) {
	rep := Report{Live: live}

	dups, err := a.store.FindDuplicates(ctx, scope)
	if err != nil {
		return rep, fmt.Errorf("find duplicates: %w", err)
	}
	rep.Duplicates = dups

	collisions, err := a.store.FindProviderIDCollisions(ctx, scope)
	if err != nil {
		return rep, fmt.Errorf("find provider id collisions: %w", err)
	}
	rep.Collisions = collisions

	anomalies, err := a.store.CountAnomalies(ctx, scope)
	if err != nil {
		return rep, fmt.Errorf("count anomalies: %w", err)
	}
	rep.Anomalies = anomalies

	if !live {
		return rep, nil
	}

	for _, g := range dups {
		if len(g.IDs) < 2 {
			continue
		}
		keep := g.IDs[0]
		err := a.store.WithinTx(ctx, func(f Fixer) error {
			for _, drop := range g.IDs[1:] {
				if err := f.MergeDuplicate(ctx, keep, drop); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			rep.MergeFailed++
			rep.MergeErrors = append(rep.MergeErrors, fmt.Sprintf("%s: %v", g.Email, err))
			a.log.Warn("duplicate merge failed", "email", g.Email, "keepId", keep.String(), "error", err)
			continue
		}
		rep.Merged += len(g.IDs) - 1
	}

	if anomalies.RepliesNotReplied > 0 {
		err := a.store.WithinTx(ctx, func(f Fixer) error {
			n, err := f.FixRepliedFlags(ctx, scope)
			rep.FlagsFixed = n
			return err
		})
		if err != nil {
			return rep, fmt.Errorf("fix replied flags: %w", err)
		}
	}

	a.log.Info("integrity audit applied",
		"merged", rep.Merged,
		"mergeFailed", rep.MergeFailed,
		"flagsFixed", rep.FlagsFixed,
	)
	return rep, nil
}

type pgStore struct {
	*repository.Repository
}

// NewStore adapts the leads repository to Store.
func NewStore(repo *repository.Repository) Store {
	return pgStore{Repository: repo}
}

func (s pgStore) WithinTx(ctx context.Context, fn func(f Fixer) error) error {
	return s.InTx(ctx, func(tx *repository.Repository) error {
		return fn(tx)
	})
}
