package scheduler

import (
	"encoding/json"
	"fmt"

	"bluereach_backend/internal/leadsync"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TaskCampaignSync = "leadsync.campaign"

const TaskClientSync = "leadsync.client"

const TaskPositiveResync = "leadsync.positive_resync"

const TaskNightlySync = "leadsync.nightly"

// SyncPayload is shared by every sync task. Unset ids are omitted so the
// payload hash used for uniqueness only covers the fields in play.
type SyncPayload struct {
	CampaignID string `json:"campaignId,omitempty"`
	ClientID   string `json:"clientId,omitempty"`
	Mode       string `json:"mode"`
	Targeted   bool   `json:"targeted,omitempty"`
}

func newSyncPayload(opts leadsync.Options) SyncPayload {
	mode := leadsync.ModeDryRun
	if opts.Live() {
		mode = leadsync.ModeLive
	}
	return SyncPayload{Mode: string(mode), Targeted: opts.Targeted}
}

// Options converts the payload back into run options.
func (p SyncPayload) Options() leadsync.Options {
	opts := leadsync.Options{Mode: leadsync.ModeDryRun, Targeted: p.Targeted}
	if p.Mode == string(leadsync.ModeLive) {
		opts.Mode = leadsync.ModeLive
	}
	return opts
}

func (p SyncPayload) campaignID() (*uuid.UUID, error) {
	return optionalUUID("campaignId", p.CampaignID)
}

func (p SyncPayload) clientID() (*uuid.UUID, error) {
	return optionalUUID("clientId", p.ClientID)
}

func optionalUUID(field, value string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &id, nil
}

func NewCampaignSyncTask(campaignID uuid.UUID, opts leadsync.Options) (*asynq.Task, error) {
	payload := newSyncPayload(opts)
	payload.CampaignID = campaignID.String()
	return newTask(TaskCampaignSync, payload)
}

func NewClientSyncTask(clientID uuid.UUID, opts leadsync.Options) (*asynq.Task, error) {
	payload := newSyncPayload(opts)
	payload.ClientID = clientID.String()
	return newTask(TaskClientSync, payload)
}

func NewPositiveResyncTask(scope leadsync.ResyncScope, opts leadsync.Options) (*asynq.Task, error) {
	if scope.CampaignID == nil && scope.ClientID == nil {
		return nil, leadsync.ErrScopeRequired
	}
	payload := newSyncPayload(opts)
	if scope.CampaignID != nil {
		payload.CampaignID = scope.CampaignID.String()
	}
	if scope.ClientID != nil {
		payload.ClientID = scope.ClientID.String()
	}
	return newTask(TaskPositiveResync, payload)
}

func NewNightlySyncTask(opts leadsync.Options) (*asynq.Task, error) {
	return newTask(TaskNightlySync, newSyncPayload(opts))
}

func newTask(taskType string, payload SyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

func ParseSyncPayload(task *asynq.Task) (SyncPayload, error) {
	var payload SyncPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SyncPayload{}, err
	}
	return payload, nil
}
