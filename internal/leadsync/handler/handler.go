// Package handler exposes the sync orchestrator and the run history over
// HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bluereach_backend/internal/leadsync"
	runsrepo "bluereach_backend/internal/leadsync/repository"
	"bluereach_backend/internal/leadsync/transport"
	"bluereach_backend/internal/provider"
	"bluereach_backend/platform/apperr"
	"bluereach_backend/platform/httpkit"
	"bluereach_backend/platform/validator"
)

// Runner is the orchestrator surface used by the handlers.
type Runner interface {
	SyncCampaign(ctx context.Context, campaignID uuid.UUID, opts leadsync.Options) (leadsync.Result, error)
	SyncClient(ctx context.Context, clientID uuid.UUID, opts leadsync.Options) (leadsync.ClientResult, error)
	ResyncPositive(ctx context.Context, scope leadsync.ResyncScope, opts leadsync.Options) (leadsync.ResyncResult, error)
	BackfillReplyTimestamps(ctx context.Context, campaignID uuid.UUID, opts leadsync.Options) (leadsync.BackfillResult, error)
}

// RunReader reads the run history.
type RunReader interface {
	Get(ctx context.Context, id uuid.UUID) (runsrepo.Run, error)
	List(ctx context.Context, params runsrepo.ListParams) ([]runsrepo.Run, int, error)
}

// ReportLinker presigns archived report downloads.
type ReportLinker interface {
	DownloadURL(ctx context.Context, key string) (string, error)
}

// Handler handles sync trigger and run history requests.
type Handler struct {
	runner   Runner
	runs     RunReader
	enqueuer leadsync.Enqueuer
	reports  ReportLinker
	val      *validator.Validator
}

const (
	msgInvalidQuery      = "invalid query"
	msgValidationFailed  = "validation failed"
	msgInvalidCampaignID = "invalid campaign ID"
	msgInvalidClientID   = "invalid client ID"
	msgInvalidRunID      = "invalid run ID"
	msgAsyncUnavailable  = "background worker is not configured"
)

// New creates a sync handler. enqueuer and reports may be nil.
func New(runner Runner, runs RunReader, enqueuer leadsync.Enqueuer, reports ReportLinker, val *validator.Validator) *Handler {
	return &Handler{runner: runner, runs: runs, enqueuer: enqueuer, reports: reports, val: val}
}

// SyncCampaign runs or queues a campaign sync.
// POST /api/v1/admin/campaigns/:id/sync?execute=true&targeted=true&async=true
func (h *Handler) SyncCampaign(c *gin.Context) {
	campaignID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidCampaignID, nil)
		return
	}
	query, ok := bindRunQuery(c)
	if !ok {
		return
	}
	opts := optionsFrom(query)

	if query.Async {
		h.enqueue(c, func(ctx context.Context) (string, error) {
			return h.enqueuer.EnqueueCampaignSync(ctx, campaignID, opts)
		}, transport.QueuedResponse{Mode: string(opts.Mode), CampaignID: &campaignID})
		return
	}

	result, err := h.runner.SyncCampaign(c.Request.Context(), campaignID, opts)
	if httpkit.HandleError(c, mapRunError(err, result)) {
		return
	}
	httpkit.OK(c, result)
}

// SyncClient runs or queues a sync over every campaign of a client.
// POST /api/v1/admin/clients/:id/sync
func (h *Handler) SyncClient(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidClientID, nil)
		return
	}
	query, ok := bindRunQuery(c)
	if !ok {
		return
	}
	opts := optionsFrom(query)

	if query.Async {
		h.enqueue(c, func(ctx context.Context) (string, error) {
			return h.enqueuer.EnqueueClientSync(ctx, clientID, opts)
		}, transport.QueuedResponse{Mode: string(opts.Mode), ClientID: &clientID})
		return
	}

	result, err := h.runner.SyncClient(c.Request.Context(), clientID, opts)
	if httpkit.HandleError(c, mapRunError(err, result)) {
		return
	}
	httpkit.OK(c, result)
}

// ResyncClientPositive rebuilds the positive flags of a client.
// POST /api/v1/admin/clients/:id/positive-resync
func (h *Handler) ResyncClientPositive(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidClientID, nil)
		return
	}
	h.resync(c, leadsync.ResyncScope{ClientID: &clientID})
}

// ResyncCampaignPositive rebuilds the positive flags of a campaign.
// POST /api/v1/admin/campaigns/:id/positive-resync
func (h *Handler) ResyncCampaignPositive(c *gin.Context) {
	campaignID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidCampaignID, nil)
		return
	}
	h.resync(c, leadsync.ResyncScope{CampaignID: &campaignID})
}

func (h *Handler) resync(c *gin.Context, scope leadsync.ResyncScope) {
	query, ok := bindRunQuery(c)
	if !ok {
		return
	}
	opts := optionsFrom(query)

	if query.Async {
		h.enqueue(c, func(ctx context.Context) (string, error) {
			return h.enqueuer.EnqueuePositiveResync(ctx, scope, opts)
		}, transport.QueuedResponse{Mode: string(opts.Mode), CampaignID: scope.CampaignID, ClientID: scope.ClientID})
		return
	}

	result, err := h.runner.ResyncPositive(c.Request.Context(), scope, opts)
	if httpkit.HandleError(c, mapRunError(err, result)) {
		return
	}
	httpkit.OK(c, result)
}

// BackfillReplies fills missing responded_at timestamps for a campaign.
// POST /api/v1/admin/campaigns/:id/reply-backfill
func (h *Handler) BackfillReplies(c *gin.Context) {
	campaignID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidCampaignID, nil)
		return
	}
	query, ok := bindRunQuery(c)
	if !ok {
		return
	}

	result, err := h.runner.BackfillReplyTimestamps(c.Request.Context(), campaignID, optionsFrom(query))
	if httpkit.HandleError(c, mapRunError(err, result)) {
		return
	}
	httpkit.OK(c, result)
}

// ListRuns lists recorded runs, newest first.
// GET /api/v1/admin/sync-runs
func (h *Handler) ListRuns(c *gin.Context) {
	var query transport.ListRunsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidQuery, nil)
		return
	}
	if err := h.val.Struct(query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Describe(err))
		return
	}

	params := runsrepo.ListParams{Kind: query.Kind, Limit: query.Limit, Offset: query.Offset}
	if query.CampaignID != "" {
		id := uuid.MustParse(query.CampaignID)
		params.CampaignID = &id
	}
	if query.ClientID != "" {
		id := uuid.MustParse(query.ClientID)
		params.ClientID = &id
	}

	runs, total, err := h.runs.List(c.Request.Context(), params)
	if httpkit.HandleError(c, wrapInternal(err)) {
		return
	}

	items := make([]transport.RunResponse, 0, len(runs))
	for _, run := range runs {
		items = append(items, toRunResponse(run))
	}
	limit := query.Limit
	if limit == 0 {
		limit = 50
	}
	httpkit.OK(c, transport.RunListResponse{Items: items, Total: total, Limit: limit, Offset: query.Offset})
}

// GetRun returns one recorded run with a download link for its report.
// GET /api/v1/admin/sync-runs/:id
func (h *Handler) GetRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRunID, nil)
		return
	}

	run, err := h.runs.Get(c.Request.Context(), runID)
	if errors.Is(err, runsrepo.ErrNotFound) {
		httpkit.HandleError(c, apperr.NotFound("sync run not found"))
		return
	}
	if httpkit.HandleError(c, wrapInternal(err)) {
		return
	}

	resp := toRunResponse(run)
	if h.reports != nil && run.ReportKey != nil {
		if url, err := h.reports.DownloadURL(c.Request.Context(), *run.ReportKey); err == nil {
			resp.ReportURL = &url
		}
	}
	httpkit.OK(c, resp)
}

func (h *Handler) enqueue(c *gin.Context, fn func(ctx context.Context) (string, error), resp transport.QueuedResponse) {
	if h.enqueuer == nil {
		httpkit.HandleError(c, apperr.Unprocessable(msgAsyncUnavailable))
		return
	}
	taskID, err := fn(c.Request.Context())
	if errors.Is(err, leadsync.ErrAlreadyQueued) {
		httpkit.HandleError(c, apperr.Conflict(err.Error()))
		return
	}
	if httpkit.HandleError(c, wrapInternal(err)) {
		return
	}
	resp.TaskID = taskID
	httpkit.Accepted(c, resp)
}

func bindRunQuery(c *gin.Context) (transport.RunQuery, bool) {
	var query transport.RunQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidQuery, nil)
		return query, false
	}
	return query, true
}

func optionsFrom(query transport.RunQuery) leadsync.Options {
	opts := leadsync.Options{Mode: leadsync.ModeDryRun, Targeted: query.Targeted}
	if query.Execute {
		opts.Mode = leadsync.ModeLive
	}
	return opts
}

// mapRunError converts orchestrator errors into HTTP-facing kinds. A run
// that read nothing carries its partial result in the error details.
func mapRunError(err error, result any) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, provider.ErrNotConfigured), errors.Is(err, provider.ErrUnknownProvider):
		return apperr.Wrap(apperr.KindUnprocessable, err.Error(), err)
	case errors.Is(err, leadsync.ErrLocked):
		return apperr.Wrap(apperr.KindConflict, err.Error(), err)
	case errors.Is(err, leadsync.ErrScopeRequired):
		return apperr.Wrap(apperr.KindBadRequest, err.Error(), err)
	case errors.Is(err, leadsync.ErrFetchFailed):
		return apperr.Unavailable("provider could not be read", err).WithDetails(result)
	default:
		return apperr.Wrap(apperr.KindInternal, "internal error", err)
	}
}

func wrapInternal(err error) error {
	if err == nil {
		return nil
	}
	return apperr.Wrap(apperr.KindInternal, "internal error", err)
}

func toRunResponse(run runsrepo.Run) transport.RunResponse {
	return transport.RunResponse{
		ID:         run.ID,
		CampaignID: run.CampaignID,
		ClientID:   run.ClientID,
		Kind:       run.Kind,
		Mode:       run.Mode,
		Imported:   run.Imported,
		Updated:    run.Updated,
		Failed:     run.Failed,
		NotFound:   run.NotFound,
		Skipped:    run.Skipped,
		Aborted:    run.Aborted,
		Errors:     run.Errors,
		Before:     transport.CountsResponse{Total: run.BeforeTotal, Replied: run.BeforeReplied, Positive: run.BeforePositive},
		After:      transport.CountsResponse{Total: run.AfterTotal, Replied: run.AfterReplied, Positive: run.AfterPositive},
		ReportKey:  run.ReportKey,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
}
