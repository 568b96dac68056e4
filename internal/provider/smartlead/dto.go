package smartlead

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

type listLeadsResponse struct {
	TotalLeads flexString     `json:"total_leads"`
	Data       []campaignLead `json:"data"`
	Offset     int            `json:"offset"`
	Limit      int            `json:"limit"`
}

// campaignLead is one row of the campaign leads listing.
type campaignLead struct {
	CampaignLeadMapID flexString `json:"campaign_lead_map_id"`
	LeadCategory      string     `json:"lead_category"`
	Status            string     `json:"status"`
	OpenCount         int        `json:"open_count"`
	ClickCount        int        `json:"click_count"`
	ReplyCount        int        `json:"reply_count"`
	LastSentTime      *time.Time `json:"last_sent_time"`
	LastReplyTime     *time.Time `json:"last_reply_time"`
	Lead              leadDTO    `json:"lead"`
}

type leadDTO struct {
	ID           flexString        `json:"id"`
	FirstName    string            `json:"first_name"`
	LastName     string            `json:"last_name"`
	Email        string            `json:"email"`
	PhoneNumber  string            `json:"phone_number"`
	CompanyName  string            `json:"company_name"`
	Website      string            `json:"website"`
	CustomFields map[string]string `json:"custom_fields"`
}

type messageHistoryResponse struct {
	History []messageDTO `json:"history"`
}

type messageDTO struct {
	Type string     `json:"type"`
	Time *time.Time `json:"time"`
}

// flexString accepts ids sent either as JSON numbers or strings.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
