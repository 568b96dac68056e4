package leadsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	campaignsrepo "bluereach_backend/internal/campaigns/repository"
	"bluereach_backend/internal/events"
	leadsrepo "bluereach_backend/internal/leads/repository"
	"bluereach_backend/internal/provider"
	"bluereach_backend/internal/provider/httpclient"
	"bluereach_backend/internal/reconcile"
	"bluereach_backend/platform/logger"

	"github.com/google/uuid"
)

// Orchestrator runs provider syncs against the canonical lead store.
type Orchestrator struct {
	store     LeadStore
	campaigns CampaignReader
	sources   SourceResolver
	locker    Locker
	bus       events.Bus
	metrics   *Metrics
	settings  Settings
	log       *logger.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewOrchestrator wires an orchestrator. bus and metrics may be nil.
func NewOrchestrator(
	store LeadStore,
	campaigns CampaignReader,
	sources SourceResolver,
	locker Locker,
	bus events.Bus,
	metrics *Metrics,
	settings Settings,
	log *logger.Logger,
) *Orchestrator {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Orchestrator{
		store:     store,
		campaigns: campaigns,
		sources:   sources,
		locker:    locker,
		bus:       bus,
		metrics:   metrics,
		settings:  settings,
		log:       log,
		sleep:     sleepCtx,
		now:       time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// campaignRun is the state of one campaign sync.
type campaignRun struct {
	campaign  campaignsrepo.Campaign
	target    provider.Target
	source    provider.Source
	names     reconcile.Denormalized
	opts      Options
	result    *Result
	errs      *errorList
	finder    *runFinder
	projected events.Counts
	log       *logger.Logger
}

// pendingWrite is a queued upsert and the projection it was computed from.
type pendingWrite struct {
	upsert     leadsrepo.Upsert
	projection *reconcile.Lead
	email      string
	positive   bool
}

// SyncCampaign pulls every lead of the campaign from its provider and folds
// them into the store. Dry runs compute the same counts without writing.
func (o *Orchestrator) SyncCampaign(ctx context.Context, campaignID uuid.UUID, opts Options) (Result, error) {
	campaign, err := o.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return Result{}, err
	}
	return o.syncCampaign(ctx, campaign, opts)
}

func (o *Orchestrator) syncCampaign(ctx context.Context, campaign campaignsrepo.Campaign, opts Options) (Result, error) {
	res := &Result{
		RunID:        uuid.New(),
		Mode:         opts.mode(),
		Targeted:     opts.Targeted,
		CampaignID:   campaign.ID,
		CampaignName: campaign.Name,
		ClientID:     campaign.ClientID,
		Errors:       []string{},
		StartedAt:    o.now(),
	}

	target := targetFor(campaign)
	source, err := o.sources.For(target)
	if err != nil {
		return *res, err
	}

	release, err := o.locker.Acquire(ctx, campaignLockKey(campaign.ID), o.settings.LockTTL)
	if err != nil {
		return *res, err
	}
	defer release()

	scope := campaignScope(campaign.ID)
	before, err := o.counts(ctx, scope)
	if err != nil {
		return *res, fmt.Errorf("count leads before sync: %w", err)
	}
	res.Before = before

	run := &campaignRun{
		campaign:  campaign,
		target:    target,
		source:    source,
		names:     namesFor(campaign),
		opts:      opts,
		result:    res,
		errs:      newErrorList(o.settings.ErrorLimit),
		finder:    newRunFinder(),
		projected: before,
		log:       o.log.WithContext(context.WithValue(ctx, logger.RunIDKey, res.RunID.String())),
	}

	o.pageLoop(ctx, run)

	if opts.Live() {
		after, err := o.counts(context.WithoutCancel(ctx), scope)
		if err != nil {
			run.errs.add(fmt.Sprintf("count leads after sync: %v", err))
			after = before
		}
		res.After = after
	} else {
		res.After = run.projected
	}

	res.Errors = run.errs.items
	res.ErrorCount = run.errs.count
	res.FinishedAt = o.now()

	providerName := string(campaign.Provider)
	o.metrics.countLeads(providerName, res.Mode, outcomeImported, res.Imported)
	o.metrics.countLeads(providerName, res.Mode, outcomeUpdated, res.Updated)
	o.metrics.countLeads(providerName, res.Mode, outcomeFailed, res.Failed)
	o.metrics.countLeads(providerName, res.Mode, outcomeNotFound, res.NotFound)
	o.metrics.countLeads(providerName, res.Mode, outcomeSkipped, res.Skipped)
	o.metrics.observe(KindCampaign, res.Mode, res.StartedAt)
	if res.Aborted {
		o.metrics.aborted(providerName, KindCampaign)
	}

	run.log.SyncSummary(campaign.ID.String(), string(res.Mode), res.Imported, res.Updated, res.Failed, res.Skipped)

	campaignID := campaign.ID
	clientID := campaign.ClientID
	o.publishCompleted(ctx, events.SyncCompleted{
		RunID:      res.RunID,
		Kind:       KindCampaign,
		Mode:       string(res.Mode),
		CampaignID: &campaignID,
		ClientID:   &clientID,
		Imported:   res.Imported,
		Updated:    res.Updated,
		Failed:     res.Failed,
		NotFound:   res.NotFound,
		Skipped:    res.Skipped,
		Aborted:    res.Aborted,
		Errors:     res.Errors,
		Before:     res.Before,
		After:      res.After,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}, res)

	if res.Aborted && res.Pages == 0 {
		return *res, fmt.Errorf("%w: %s", ErrFetchFailed, res.AbortReason)
	}
	return *res, nil
}

func (o *Orchestrator) pageLoop(ctx context.Context, run *campaignRun) {
	res := run.result
	pageSize := o.settings.PageSize

	for skip := 0; ; skip += pageSize {
		page, err := o.fetchPage(ctx, run, skip)
		if err != nil {
			res.Aborted = true
			res.AbortReason = err.Error()
			run.errs.add(fmt.Sprintf("fetch page at offset %d: %v", skip, err))
			run.log.Error("sync aborted", "campaignId", run.campaign.ID, "skip", skip, "error", err)
			return
		}
		res.Pages++
		res.Fetched += len(page)

		if err := o.processPage(ctx, run, page); err != nil {
			res.Aborted = true
			res.AbortReason = err.Error()
			run.errs.add(err.Error())
			run.log.Error("sync aborted", "campaignId", run.campaign.ID, "skip", skip, "error", err)
			return
		}
		run.log.SyncProgress(run.campaign.ID.String(), res.Pages, res.Fetched, res.Processed())

		if len(page) < pageSize {
			return
		}
		if err := o.sleep(ctx, o.settings.PageDelay); err != nil {
			res.Aborted = true
			res.AbortReason = err.Error()
			return
		}
	}
}

// fetchPage reads one page, retrying transient failures.
func (o *Orchestrator) fetchPage(ctx context.Context, run *campaignRun, skip int) ([]reconcile.ProviderLead, error) {
	var page []reconcile.ProviderLead
	err := o.retry(ctx, string(run.campaign.Provider), func() error {
		var err error
		page, err = run.source.ListLeads(ctx, run.target, o.settings.PageSize, skip)
		return err
	}, func(attempt int, delay time.Duration, err error) {
		run.result.PageRetries++
		run.log.Warn("provider page fetch failed, retrying",
			"campaignId", run.campaign.ID,
			"skip", skip,
			"attempt", attempt,
			"delay", delay.String(),
			"error", err,
		)
	})
	return page, err
}

// retry runs fn until it succeeds, fails with a non-transient error or has
// failed MaxConsecutiveFailures times. Attempt n waits n² times the base
// delay before the next one.
func (o *Orchestrator) retry(ctx context.Context, providerName string, fn func() error, onRetry func(attempt int, delay time.Duration, err error)) error {
	maxAttempts := max(o.settings.MaxConsecutiveFailures, 1)
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !httpclient.IsTransient(err) {
			return err
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}

		delay := time.Duration(attempt*attempt) * o.settings.RetryBaseDelay
		o.metrics.pageRetry(providerName)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
		if err := o.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%d consecutive failures: %w", maxAttempts, lastErr)
}

// processPage resolves and merges every record of a page. Live runs write the
// page in batches; dry runs only project.
func (o *Orchestrator) processPage(ctx context.Context, run *campaignRun, page []reconcile.ProviderLead) error {
	if err := run.finder.prefetch(ctx, o.store, run.campaign.ID, page); err != nil {
		return fmt.Errorf("load stored identities: %w", err)
	}

	res := run.result
	pending := make([]pendingWrite, 0, len(page))
	for _, in := range page {
		if err := reconcile.Validate(in); err != nil {
			res.Skipped++
			continue
		}

		resolution, err := reconcile.Resolve(ctx, run.finder, run.campaign.ID, in.ProviderLeadID, in.Email)
		if err != nil {
			res.Failed++
			run.errs.add(fmt.Sprintf("%s: %v", recordLabel(in), err))
			continue
		}
		if !resolution.Found() {
			if run.opts.Targeted {
				res.NotFound++
				continue
			}
			// A new lead needs an address; a provider id alone cannot create one.
			if reconcile.NormalizeEmail(in.Email) == "" {
				res.Skipped++
				continue
			}
		}

		existing := resolution.Lead
		payload := reconcile.Merge(existing, in, run.names)
		projection := payload.Apply(existing)
		projection.CampaignID = run.campaign.ID
		becamePositive := projection.IsPositiveReply && (existing == nil || !existing.IsPositiveReply)
		run.finder.remember(&projection)

		if !run.opts.Live() {
			if existing == nil {
				res.Imported++
			} else {
				res.Updated++
			}
			if becamePositive {
				res.PositiveDetected++
			}
			run.project(existing, projection)
			continue
		}

		upsert := leadsrepo.Upsert{CampaignID: run.campaign.ID, Payload: payload}
		if resolution.MatchedBy == reconcile.MatchedByID && existing.ID != uuid.Nil {
			id := existing.ID
			upsert.LeadID = &id
		}
		pending = append(pending, pendingWrite{
			upsert:     upsert,
			projection: &projection,
			email:      reconcile.NormalizeEmail(projection.Email),
			positive:   becamePositive,
		})
	}

	if len(pending) > 0 {
		o.flush(ctx, run, pending)
	}
	return nil
}

// flush writes queued upserts in batches and tallies their outcomes.
func (o *Orchestrator) flush(ctx context.Context, run *campaignRun, pending []pendingWrite) {
	res := run.result
	batchSize := o.settings.BatchSize
	if batchSize <= 0 || batchSize > leadsrepo.MaxBatchSize {
		batchSize = leadsrepo.MaxBatchSize
	}

	for start := 0; start < len(pending); start += batchSize {
		end := min(start+batchSize, len(pending))
		chunk := pending[start:end]

		items := make([]leadsrepo.Upsert, len(chunk))
		for i, p := range chunk {
			items[i] = p.upsert
		}

		results, err := o.store.UpsertBatch(ctx, items)
		if err != nil {
			res.Failed += len(chunk)
			run.errs.add(fmt.Sprintf("write batch of %d leads: %v", len(chunk), err))
			run.log.DatabaseError("upsert lead batch", err)
			continue
		}

		for i, r := range results {
			p := chunk[i]
			switch {
			case errors.Is(r.Err, leadsrepo.ErrNotFound):
				res.NotFound++
			case r.Err != nil:
				res.Failed++
				run.errs.add(fmt.Sprintf("%s: %v", p.email, r.Err))
				run.log.LeadWriteFailed(run.campaign.ID.String(), p.email, r.Err)
			default:
				p.projection.ID = r.ID
				if r.Inserted {
					res.Imported++
				} else {
					res.Updated++
				}
				if p.positive {
					res.PositiveDetected++
					o.publishPositive(ctx, *p.projection, events.SourceSync)
				}
			}
		}
	}
}

// project folds a dry-run projection into the expected after counts.
func (r *campaignRun) project(existing *reconcile.Lead, next reconcile.Lead) {
	if existing == nil {
		r.projected.Total++
		if next.HasReplied {
			r.projected.Replied++
		}
		if next.IsPositiveReply {
			r.projected.Positive++
		}
		return
	}
	if !existing.HasReplied && next.HasReplied {
		r.projected.Replied++
	}
	if !existing.IsPositiveReply && next.IsPositiveReply {
		r.projected.Positive++
	}
}

func recordLabel(in reconcile.ProviderLead) string {
	if email := reconcile.NormalizeEmail(in.Email); email != "" {
		return email
	}
	return "provider lead " + in.ProviderLeadID
}

// SyncClient syncs every campaign of a client one after another. Campaigns
// without credentials are counted as misconfigured and skipped.
func (o *Orchestrator) SyncClient(ctx context.Context, clientID uuid.UUID, opts Options) (ClientResult, error) {
	client, err := o.campaigns.GetClient(ctx, clientID)
	if err != nil {
		return ClientResult{}, err
	}
	campaigns, err := o.campaigns.ListByClient(ctx, clientID)
	if err != nil {
		return ClientResult{}, err
	}

	res := ClientResult{
		RunID:        uuid.New(),
		Mode:         opts.mode(),
		ClientID:     client.ID,
		ClientName:   client.Name,
		Campaigns:    make([]Result, 0, len(campaigns)),
		Unconfigured: make([]uuid.UUID, 0),
		Errors:       []string{},
		StartedAt:    o.now(),
	}
	errs := newErrorList(o.settings.ErrorLimit)

	scope := leadsrepo.Scope{ClientID: &clientID}
	if res.Before, err = o.counts(ctx, scope); err != nil {
		return res, fmt.Errorf("count leads before sync: %w", err)
	}
	projected := res.Before

	for _, campaign := range campaigns {
		if ctx.Err() != nil {
			errs.add(fmt.Sprintf("stopped before campaign %s: %v", campaign.Name, ctx.Err()))
			break
		}
		if !campaign.HasAPIKey() {
			res.Misconfigured++
			res.Unconfigured = append(res.Unconfigured, campaign.ID)
			continue
		}

		r, err := o.syncCampaign(ctx, campaign, opts)
		if err != nil {
			if errors.Is(err, provider.ErrNotConfigured) || errors.Is(err, provider.ErrUnknownProvider) {
				res.Misconfigured++
				res.Unconfigured = append(res.Unconfigured, campaign.ID)
				continue
			}
			res.FailedRuns++
			errs.add(fmt.Sprintf("campaign %s: %v", campaign.Name, err))
			o.log.Warn("campaign sync failed", "clientId", clientID, "campaignId", campaign.ID, "error", err)
			if r.Pages == 0 {
				continue
			}
		} else {
			res.Processed++
		}

		res.Campaigns = append(res.Campaigns, r)
		res.Imported += r.Imported
		res.Updated += r.Updated
		res.Failed += r.Failed
		res.NotFound += r.NotFound
		res.Skipped += r.Skipped
		projected.Total += r.After.Total - r.Before.Total
		projected.Replied += r.After.Replied - r.Before.Replied
		projected.Positive += r.After.Positive - r.Before.Positive
	}

	if opts.Live() {
		after, err := o.counts(context.WithoutCancel(ctx), scope)
		if err != nil {
			errs.add(fmt.Sprintf("count leads after sync: %v", err))
			after = projected
		}
		res.After = after
	} else {
		res.After = projected
	}
	res.Errors = errs.items
	res.FinishedAt = o.now()
	o.metrics.observe(KindClient, res.Mode, res.StartedAt)

	o.log.Info("client sync finished",
		"clientId", clientID,
		"mode", string(res.Mode),
		"processed", res.Processed,
		"misconfigured", res.Misconfigured,
		"failedRuns", res.FailedRuns,
	)

	o.publishCompleted(ctx, events.SyncCompleted{
		RunID:      res.RunID,
		Kind:       KindClient,
		Mode:       string(res.Mode),
		ClientID:   &clientID,
		Imported:   res.Imported,
		Updated:    res.Updated,
		Failed:     res.Failed,
		NotFound:   res.NotFound,
		Skipped:    res.Skipped,
		Errors:     res.Errors,
		Before:     res.Before,
		After:      res.After,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}, res)

	return res, nil
}

func (o *Orchestrator) counts(ctx context.Context, scope leadsrepo.Scope) (events.Counts, error) {
	agg, err := o.store.CountAggregates(ctx, scope)
	if err != nil {
		return events.Counts{}, err
	}
	return events.Counts{Total: agg.Total, Replied: agg.Replied, Positive: agg.Positive}, nil
}

// publishCompleted attaches the JSON report and publishes the run event.
func (o *Orchestrator) publishCompleted(ctx context.Context, evt events.SyncCompleted, report any) {
	if o.bus == nil {
		return
	}
	body, err := json.Marshal(report)
	if err != nil {
		o.log.Warn("encode run report failed", "runId", evt.RunID, "error", err)
	}
	evt.BaseEvent = events.BaseEventAt(evt.FinishedAt)
	evt.Report = body
	o.bus.Publish(context.WithoutCancel(ctx), evt)
}

func (o *Orchestrator) publishPositive(ctx context.Context, lead reconcile.Lead, source string) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(context.WithoutCancel(ctx), events.LeadPositiveReplyDetected{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     lead.ID,
		CampaignID: lead.CampaignID,
		ClientID:   lead.ClientID,
		Email:      lead.Email,
		Source:     source,
	})
}
