package transport

import (
	"time"

	"github.com/google/uuid"
)

// RunQuery is bound from the query string of the sync trigger routes.
type RunQuery struct {
	Execute  bool `form:"execute"`
	Targeted bool `form:"targeted"`
	Async    bool `form:"async"`
}

// ListRunsQuery filters the run history.
type ListRunsQuery struct {
	CampaignID string `form:"campaignId" validate:"omitempty,uuid"`
	ClientID   string `form:"clientId" validate:"omitempty,uuid"`
	Kind       string `form:"kind" validate:"omitempty,oneof=campaign client positive_resync reply_backfill"`
	Limit      int    `form:"limit" validate:"omitempty,min=1,max=200"`
	Offset     int    `form:"offset" validate:"omitempty,min=0"`
}

// QueuedResponse is returned when a run is handed to the worker.
type QueuedResponse struct {
	TaskID     string     `json:"taskId"`
	Mode       string     `json:"mode"`
	CampaignID *uuid.UUID `json:"campaignId,omitempty"`
	ClientID   *uuid.UUID `json:"clientId,omitempty"`
}

// CountsResponse mirrors the aggregate counts of a run.
type CountsResponse struct {
	Total    int `json:"total"`
	Replied  int `json:"replied"`
	Positive int `json:"positive"`
}

// RunResponse is one recorded run.
type RunResponse struct {
	ID         uuid.UUID      `json:"id"`
	CampaignID *uuid.UUID     `json:"campaignId,omitempty"`
	ClientID   *uuid.UUID     `json:"clientId,omitempty"`
	Kind       string         `json:"kind"`
	Mode       string         `json:"mode"`
	Imported   int            `json:"imported"`
	Updated    int            `json:"updated"`
	Failed     int            `json:"failed"`
	NotFound   int            `json:"notFound"`
	Skipped    int            `json:"skipped"`
	Aborted    bool           `json:"aborted"`
	Errors     []string       `json:"errors"`
	Before     CountsResponse `json:"before"`
	After      CountsResponse `json:"after"`
	ReportKey  *string        `json:"reportKey,omitempty"`
	ReportURL  *string        `json:"reportUrl,omitempty"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
}

// RunListResponse is a page of run history.
type RunListResponse struct {
	Items  []RunResponse `json:"items"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}
