package transport

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs
type ListLeadsRequest struct {
	Status   string `form:"status" validate:"omitempty,oneof=contacted opened clicked replied booked won lost not_interested"`
	Positive bool   `form:"positive"`
	Search   string `form:"search" validate:"max=100"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=200"`
}

// UpdateLeadRequest edits operator-owned fields. Absent fields are left as
// they are; dealValue null clears the deal value.
type UpdateLeadRequest struct {
	Notes      *string       `json:"notes" validate:"omitempty,max=10000"`
	DealValue  OptionalFloat `json:"dealValue"`
	NextAction *string       `json:"nextAction" validate:"omitempty,max=500"`
}

type UpdateLeadStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=contacted opened clicked replied booked won lost not_interested"`
}

// Response DTOs
type LeadResponse struct {
	ID              uuid.UUID      `json:"id"`
	CampaignID      *uuid.UUID     `json:"campaignId,omitempty"`
	ClientID        *uuid.UUID     `json:"clientId,omitempty"`
	CampaignName    string         `json:"campaignName,omitempty"`
	ClientName      string         `json:"clientName,omitempty"`
	Email           string         `json:"email"`
	FirstName       string         `json:"firstName"`
	LastName        string         `json:"lastName"`
	CompanyName     string         `json:"companyName"`
	CompanyDomain   string         `json:"companyDomain"`
	Phone           string         `json:"phone"`
	ProviderLeadID  *string        `json:"providerLeadId,omitempty"`
	Status          string         `json:"status"`
	IsPositiveReply bool           `json:"isPositiveReply"`
	HasReplied      bool           `json:"hasReplied"`
	OpenCount       int            `json:"emailOpenCount"`
	ClickCount      int            `json:"emailClickCount"`
	ReplyCount      int            `json:"emailReplyCount"`
	LastContactedAt *time.Time     `json:"lastContactedAt,omitempty"`
	RespondedAt     *time.Time     `json:"respondedAt,omitempty"`
	Notes           string         `json:"notes"`
	DealValue       *float64       `json:"dealValue,omitempty"`
	NextAction      string         `json:"nextAction"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

type LeadListResponse struct {
	Items      []LeadResponse `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}

// CampaignStatsResponse is the aggregate view of one campaign's leads.
type CampaignStatsResponse struct {
	CampaignID   uuid.UUID      `json:"campaignId"`
	Total        int            `json:"total"`
	Replied      int            `json:"replied"`
	Positive     int            `json:"positive"`
	ReplyRate    float64        `json:"replyRate"`
	PositiveRate float64        `json:"positiveRate"`
	ByStatus     map[string]int `json:"byStatus"`
}
