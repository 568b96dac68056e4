package leadsync

import (
	"context"

	"bluereach_backend/internal/reconcile"

	"github.com/google/uuid"
)

// runFinder resolves identities for one campaign run from memory. Each page
// is prefetched from the store in one query, and every lead the run has
// written or projected replaces the stored copy, so a record seen twice in a
// run matches the first one even in a dry run.
type runFinder struct {
	byID    map[string]*reconcile.Lead
	byEmail map[string]*reconcile.Lead
}

func newRunFinder() *runFinder {
	return &runFinder{
		byID:    make(map[string]*reconcile.Lead),
		byEmail: make(map[string]*reconcile.Lead),
	}
}

func (f *runFinder) FindByProviderID(_ context.Context, _ uuid.UUID, providerLeadID string) (*reconcile.Lead, error) {
	return f.byID[providerLeadID], nil
}

func (f *runFinder) FindByEmail(_ context.Context, _ uuid.UUID, email string) (*reconcile.Lead, error) {
	return f.byEmail[reconcile.NormalizeEmail(email)], nil
}

// prefetch loads the stored leads a page refers to. Leads already known to
// the run are kept.
func (f *runFinder) prefetch(ctx context.Context, store LeadStore, campaignID uuid.UUID, page []reconcile.ProviderLead) error {
	ids := make([]string, 0, len(page))
	emails := make([]string, 0, len(page))
	for _, in := range page {
		if in.ProviderLeadID != "" {
			if _, ok := f.byID[in.ProviderLeadID]; !ok {
				ids = append(ids, in.ProviderLeadID)
			}
		}
		if email := reconcile.NormalizeEmail(in.Email); email != "" {
			if _, ok := f.byEmail[email]; !ok {
				emails = append(emails, email)
			}
		}
	}
	if len(ids) == 0 && len(emails) == 0 {
		return nil
	}

	stored, err := store.LoadIdentities(ctx, campaignID, ids, emails)
	if err != nil {
		return err
	}
	for i := range stored {
		lead := stored[i]
		email := reconcile.NormalizeEmail(lead.Email)
		if _, known := f.byEmail[email]; known {
			continue
		}
		f.remember(&lead)
	}
	return nil
}

// remember indexes lead under its provider id and email.
func (f *runFinder) remember(lead *reconcile.Lead) {
	if lead.ProviderLeadID != nil && *lead.ProviderLeadID != "" {
		f.byID[*lead.ProviderLeadID] = lead
	}
	if email := reconcile.NormalizeEmail(lead.Email); email != "" {
		f.byEmail[email] = lead
	}
}

var _ reconcile.Finder = (*runFinder)(nil)
