package leadsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	campaignsrepo "bluereach_backend/internal/campaigns/repository"
	"bluereach_backend/internal/events"
	leadsrepo "bluereach_backend/internal/leads/repository"
	"bluereach_backend/internal/provider"
	"bluereach_backend/internal/reconcile"

	"github.com/google/uuid"
)

// resyncPlan is the phase-one outcome for one campaign.
type resyncPlan struct {
	campaign campaignsrepo.Campaign
	summary  int
	plan     reconcile.ResyncPlan
	added    []reconcile.Lead
}

// ResyncPositive rebuilds is_positive_reply from the providers' own positive
// lists. Every list in scope is fetched before anything is written; the
// reset and remark then run in one transaction so no reader sees a scope
// with its positives cleared. Campaigns whose list could not be fetched keep
// their current flags.
func (o *Orchestrator) ResyncPositive(ctx context.Context, scope ResyncScope, opts Options) (ResyncResult, error) {
	campaigns, countScope, err := o.resyncCampaigns(ctx, scope)
	if err != nil {
		return ResyncResult{}, err
	}

	res := ResyncResult{
		RunID:      uuid.New(),
		Mode:       opts.mode(),
		CampaignID: scope.CampaignID,
		ClientID:   scope.ClientID,
		Campaigns:  make([]ResyncCampaign, 0, len(campaigns)),
		Errors:     []string{},
		StartedAt:  o.now(),
	}
	errs := newErrorList(o.settings.ErrorLimit)
	log := o.log.With("runId", res.RunID.String())

	if res.Before, err = o.counts(ctx, countScope); err != nil {
		return res, fmt.Errorf("count leads before resync: %w", err)
	}

	plans := make([]*resyncPlan, 0, len(campaigns))
	for _, campaign := range campaigns {
		summary := ResyncCampaign{CampaignID: campaign.ID, CampaignName: campaign.Name}

		plan, err := o.planResync(ctx, campaign, &summary)
		switch {
		case errors.Is(err, provider.ErrNotConfigured), errors.Is(err, provider.ErrUnknownProvider):
			res.Misconfigured++
			summary.Error = err.Error()
		case err != nil:
			res.Failed++
			summary.Error = err.Error()
			errs.add(fmt.Sprintf("campaign %s: %v", campaign.Name, err))
			log.Warn("positive list fetch failed", "campaignId", campaign.ID, "error", err)
		default:
			plan.summary = len(res.Campaigns)
			plans = append(plans, plan)
		}
		res.Campaigns = append(res.Campaigns, summary)
	}

	fetched := len(plans)
	var writeErr error
	if opts.Live() && len(plans) > 0 {
		plans, writeErr = o.applyResync(ctx, plans, &res, errs)
	}

	after := res.Before
	for _, p := range plans {
		res.Reset += len(p.plan.Reset)
		res.Remarked += len(p.plan.Remark)
		after.Positive += p.plan.Added - p.plan.Retracted
		for _, lead := range p.added {
			if !lead.HasReplied {
				after.Replied++
			}
		}
		if opts.Live() {
			for _, lead := range p.added {
				o.publishPositive(ctx, lead, events.SourceResync)
			}
		}
	}

	if opts.Live() {
		if counted, err := o.counts(context.WithoutCancel(ctx), countScope); err != nil {
			errs.add(fmt.Sprintf("count leads after resync: %v", err))
		} else {
			after = counted
		}
	}
	res.After = after
	res.Errors = errs.items
	res.FinishedAt = o.now()
	o.metrics.observe(KindPositiveResync, res.Mode, res.StartedAt)

	log.Info("positive resync finished",
		"mode", string(res.Mode),
		"campaigns", len(res.Campaigns),
		"reset", res.Reset,
		"remarked", res.Remarked,
		"failed", res.Failed,
		"positiveBefore", res.Before.Positive,
		"positiveAfter", res.After.Positive,
	)

	o.publishCompleted(ctx, events.SyncCompleted{
		RunID:      res.RunID,
		Kind:       KindPositiveResync,
		Mode:       string(res.Mode),
		CampaignID: scope.CampaignID,
		ClientID:   scope.ClientID,
		Updated:    res.Remarked,
		Failed:     res.Failed,
		Errors:     res.Errors,
		Before:     res.Before,
		After:      res.After,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}, res)

	if writeErr != nil {
		return res, fmt.Errorf("write positive flags: %w", writeErr)
	}
	if fetched == 0 && res.Failed > 0 {
		return res, fmt.Errorf("%w: no positive list could be read", ErrFetchFailed)
	}
	return res, nil
}

func (o *Orchestrator) resyncCampaigns(ctx context.Context, scope ResyncScope) ([]campaignsrepo.Campaign, leadsrepo.Scope, error) {
	switch {
	case scope.CampaignID != nil:
		campaign, err := o.campaigns.GetCampaign(ctx, *scope.CampaignID)
		if err != nil {
			return nil, leadsrepo.Scope{}, err
		}
		return []campaignsrepo.Campaign{campaign}, campaignScope(campaign.ID), nil
	case scope.ClientID != nil:
		if _, err := o.campaigns.GetClient(ctx, *scope.ClientID); err != nil {
			return nil, leadsrepo.Scope{}, err
		}
		campaigns, err := o.campaigns.ListByClient(ctx, *scope.ClientID)
		if err != nil {
			return nil, leadsrepo.Scope{}, err
		}
		return campaigns, leadsrepo.Scope{ClientID: scope.ClientID}, nil
	default:
		return nil, leadsrepo.Scope{}, ErrScopeRequired
	}
}

// planResync fetches the provider's positive list for a campaign, resolves it
// to stored leads and projects the reset-then-remark pass.
func (o *Orchestrator) planResync(ctx context.Context, campaign campaignsrepo.Campaign, summary *ResyncCampaign) (*resyncPlan, error) {
	if !campaign.HasAPIKey() {
		return nil, provider.ErrNotConfigured
	}
	target := targetFor(campaign)
	source, err := o.sources.For(target)
	if err != nil {
		return nil, err
	}

	var positives []reconcile.ProviderLead
	err = o.retry(ctx, string(campaign.Provider), func() error {
		var err error
		positives, err = source.ListPositiveLeads(ctx, target)
		return err
	}, func(attempt int, delay time.Duration, err error) {
		o.log.Warn("positive list fetch failed, retrying",
			"campaignId", campaign.ID,
			"attempt", attempt,
			"delay", delay.String(),
			"error", err,
		)
	})
	if err != nil {
		return nil, err
	}
	summary.Fetched = len(positives)

	finder := newRunFinder()
	if err := finder.prefetch(ctx, o.store, campaign.ID, positives); err != nil {
		return nil, fmt.Errorf("load stored identities: %w", err)
	}

	resolved := make(map[uuid.UUID]reconcile.Lead, len(positives))
	remark := make([]uuid.UUID, 0, len(positives))
	for _, in := range positives {
		if reconcile.Validate(in) != nil {
			summary.Unresolved++
			continue
		}
		resolution, err := reconcile.Resolve(ctx, finder, campaign.ID, in.ProviderLeadID, in.Email)
		if err != nil {
			return nil, err
		}
		if !resolution.Found() || resolution.Lead.ID == uuid.Nil {
			summary.Unresolved++
			continue
		}
		resolved[resolution.Lead.ID] = *resolution.Lead
		remark = append(remark, resolution.Lead.ID)
	}

	current, err := o.store.ListPositiveIDs(ctx, campaignScope(campaign.ID))
	if err != nil {
		return nil, fmt.Errorf("list positive leads: %w", err)
	}

	plan := reconcile.PlanPositiveResync(current, remark)
	wasPositive := make(map[uuid.UUID]struct{}, len(current))
	for _, id := range current {
		wasPositive[id] = struct{}{}
	}
	added := make([]reconcile.Lead, 0, plan.Added)
	for _, id := range plan.Remark {
		if _, ok := wasPositive[id]; !ok {
			lead := resolved[id]
			lead.CampaignID = campaign.ID
			added = append(added, lead)
		}
	}

	summary.Reset = len(plan.Reset)
	summary.Remarked = len(plan.Remark)
	summary.Retained = plan.Retained
	summary.Retracted = plan.Retracted
	summary.Added = plan.Added
	summary.ExpectedPositive = plan.ExpectedPositive

	return &resyncPlan{campaign: campaign, plan: plan, added: added}, nil
}

// applyResync locks the planned campaigns and writes every plan in one
// transaction. It returns the plans that were written.
func (o *Orchestrator) applyResync(ctx context.Context, plans []*resyncPlan, res *ResyncResult, errs *errorList) ([]*resyncPlan, error) {
	locked := make([]*resyncPlan, 0, len(plans))
	for _, p := range plans {
		release, err := o.locker.Acquire(ctx, campaignLockKey(p.campaign.ID), o.settings.LockTTL)
		if err != nil {
			res.Failed++
			res.Campaigns[p.summary].Error = err.Error()
			errs.add(fmt.Sprintf("campaign %s: %v", p.campaign.Name, err))
			continue
		}
		defer release()
		locked = append(locked, p)
	}
	if len(locked) == 0 {
		return nil, nil
	}

	err := o.store.WithinTx(ctx, func(w PositiveWriter) error {
		for _, p := range locked {
			if _, err := w.ResetPositive(ctx, campaignScope(p.campaign.ID)); err != nil {
				return fmt.Errorf("reset campaign %s: %w", p.campaign.ID, err)
			}
			if _, err := w.MarkPositive(ctx, p.plan.Remark); err != nil {
				return fmt.Errorf("mark campaign %s: %w", p.campaign.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		for _, p := range locked {
			res.Campaigns[p.summary].Error = err.Error()
		}
		res.Failed += len(locked)
		errs.add(fmt.Sprintf("write positive flags: %v", err))
		o.log.DatabaseError("positive resync", err)
		return nil, err
	}
	return locked, nil
}
