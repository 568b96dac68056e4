package leadsync

import (
	"context"
	"fmt"
	"sync"

	"bluereach_backend/internal/events"
	leadsrepo "bluereach_backend/internal/leads/repository"
	"bluereach_backend/internal/provider"
	"bluereach_backend/internal/reconcile"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// BackfillReplyTimestamps fills responded_at for replied leads that lack it
// by reading each lead's reply thread. Leads are handled in chunks of
// BackfillConcurrency; a chunk finishes before the next one starts.
func (o *Orchestrator) BackfillReplyTimestamps(ctx context.Context, campaignID uuid.UUID, opts Options) (BackfillResult, error) {
	campaign, err := o.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return BackfillResult{}, err
	}
	target := targetFor(campaign)
	source, err := o.sources.For(target)
	if err != nil {
		return BackfillResult{}, err
	}

	release, err := o.locker.Acquire(ctx, campaignLockKey(campaign.ID), o.settings.LockTTL)
	if err != nil {
		return BackfillResult{}, err
	}
	defer release()

	res := BackfillResult{
		RunID:      uuid.New(),
		Mode:       opts.mode(),
		CampaignID: campaign.ID,
		Errors:     []string{},
		StartedAt:  o.now(),
	}

	candidates, err := o.store.ListMissingRespondedAt(ctx, campaign.ID)
	if err != nil {
		return res, fmt.Errorf("list leads missing responded_at: %w", err)
	}
	res.Candidates = len(candidates)

	var (
		mu   sync.Mutex
		errs = newErrorList(o.settings.ErrorLimit)
	)
	record := func(fn func()) {
		mu.Lock()
		defer mu.Unlock()
		fn()
	}

	chunkSize := max(o.settings.BackfillConcurrency, 1)
	for start := 0; start < len(candidates); start += chunkSize {
		if start > 0 {
			if err := o.sleep(ctx, o.settings.BackfillChunkDelay); err != nil {
				errs.add(fmt.Sprintf("stopped after %d leads: %v", start, err))
				break
			}
		}
		chunk := candidates[start:min(start+chunkSize, len(candidates))]
		res.Chunks++

		var g errgroup.Group
		g.SetLimit(chunkSize)
		for _, lead := range chunk {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				o.backfillOne(ctx, source, target, lead, opts, &res, errs, record)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			errs.add(fmt.Sprintf("stopped after %d leads: %v", start+len(chunk), err))
			break
		}
	}

	res.Errors = errs.items
	res.FinishedAt = o.now()
	o.metrics.observe(KindReplyBackfill, res.Mode, res.StartedAt)

	o.log.Info("reply backfill finished",
		"runId", res.RunID.String(),
		"campaignId", campaign.ID,
		"mode", string(res.Mode),
		"candidates", res.Candidates,
		"filled", res.Filled,
		"noReply", res.NoReply,
		"failed", res.Failed,
	)

	clientID := campaign.ClientID
	o.publishCompleted(ctx, events.SyncCompleted{
		RunID:      res.RunID,
		Kind:       KindReplyBackfill,
		Mode:       string(res.Mode),
		CampaignID: &res.CampaignID,
		ClientID:   &clientID,
		Updated:    res.Filled,
		Failed:     res.Failed,
		NotFound:   res.NoReply,
		Errors:     res.Errors,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}, res)

	return res, nil
}

func (o *Orchestrator) backfillOne(
	ctx context.Context,
	source provider.Source,
	target provider.Target,
	lead leadsrepo.BackfillCandidate,
	opts Options,
	res *BackfillResult,
	errs *errorList,
	record func(func()),
) {
	in := reconcile.ProviderLead{ProviderLeadID: lead.ProviderLeadID, Email: lead.Email}
	at, err := source.LastReplyAt(ctx, target, in)
	if err != nil {
		record(func() {
			res.Failed++
			errs.add(fmt.Sprintf("%s: %v", recordLabel(in), err))
		})
		return
	}
	if at == nil {
		record(func() { res.NoReply++ })
		return
	}
	if !opts.Live() {
		record(func() { res.Filled++ })
		return
	}

	written, err := o.store.SetRespondedAt(ctx, lead.ID, *at)
	record(func() {
		switch {
		case err != nil:
			res.Failed++
			errs.add(fmt.Sprintf("%s: %v", recordLabel(in), err))
		case written:
			res.Filled++
		}
	})
}
