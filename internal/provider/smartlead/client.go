// Package smartlead reads campaign leads from the Smartlead API.
package smartlead

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bluereach_backend/internal/provider"
	"bluereach_backend/internal/provider/httpclient"
	"bluereach_backend/internal/reconcile"
)

// Client implements provider.Source for Smartlead.
type Client struct {
	http     *httpclient.Client
	interest *provider.InterestMap
}

var _ provider.Source = (*Client)(nil)

// New creates a Smartlead client on top of a shared transport.
func New(transport *httpclient.Client, interest *provider.InterestMap) *Client {
	return &Client{http: transport, interest: interest}
}

// ListLeads returns one page of campaign leads.
func (c *Client) ListLeads(ctx context.Context, t provider.Target, limit, skip int) ([]reconcile.ProviderLead, error) {
	query := url.Values{}
	query.Set("api_key", t.APIKey)
	query.Set("offset", strconv.Itoa(skip))
	query.Set("limit", strconv.Itoa(limit))

	var resp listLeadsResponse
	err := c.http.Do(ctx, httpclient.Request{
		Method:  http.MethodGet,
		Path:    fmt.Sprintf("/api/v1/campaigns/%s/leads", url.PathEscape(t.ProviderCampaignID)),
		Query:   query,
		Account: t.APIKey,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("smartlead list leads: %w", err)
	}

	leads := make([]reconcile.ProviderLead, 0, len(resp.Data))
	for _, row := range resp.Data {
		leads = append(leads, c.toCanonical(row))
	}
	return leads, nil
}

// ListPositiveLeads collects every lead Smartlead classifies as positive.
func (c *Client) ListPositiveLeads(ctx context.Context, t provider.Target) ([]reconcile.ProviderLead, error) {
	return provider.CollectPositive(ctx, c, t)
}

// LastReplyAt reads the lead's message history and returns the newest reply.
func (c *Client) LastReplyAt(ctx context.Context, t provider.Target, lead reconcile.ProviderLead) (*time.Time, error) {
	if lead.ProviderLeadID == "" {
		return nil, nil
	}

	query := url.Values{}
	query.Set("api_key", t.APIKey)

	var resp messageHistoryResponse
	err := c.http.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		Path: fmt.Sprintf("/api/v1/campaigns/%s/leads/%s/message-history",
			url.PathEscape(t.ProviderCampaignID), url.PathEscape(lead.ProviderLeadID)),
		Query:   query,
		Account: t.APIKey,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("smartlead message history: %w", err)
	}

	var latest *time.Time
	for _, msg := range resp.History {
		if !strings.EqualFold(msg.Type, "REPLY") || msg.Time == nil {
			continue
		}
		if latest == nil || msg.Time.After(*latest) {
			ts := msg.Time.UTC()
			latest = &ts
		}
	}
	return latest, nil
}

func (c *Client) toCanonical(row campaignLead) reconcile.ProviderLead {
	lead := reconcile.ProviderLead{
		ProviderLeadID:  string(row.Lead.ID),
		Email:           strings.TrimSpace(row.Lead.Email),
		FirstName:       row.Lead.FirstName,
		LastName:        row.Lead.LastName,
		CompanyName:     row.Lead.CompanyName,
		CompanyDomain:   row.Lead.Website,
		Phone:           row.Lead.PhoneNumber,
		Interest:        c.interest.Lookup(reconcile.ProviderSmartlead, row.LeadCategory),
		ReplyCount:      row.ReplyCount,
		OpenCount:       row.OpenCount,
		ClickCount:      row.ClickCount,
		LastContactedAt: utc(row.LastSentTime),
		RespondedAt:     utc(row.LastReplyTime),
	}
	if lead.ReplyCount == 0 && lead.RespondedAt != nil {
		lead.ReplyCount = 1
	}
	if len(row.Lead.CustomFields) > 0 || row.Status != "" {
		meta := map[string]any{}
		if row.Status != "" {
			meta["status"] = row.Status
		}
		if len(row.Lead.CustomFields) > 0 {
			meta["custom_fields"] = row.Lead.CustomFields
		}
		lead.Metadata = map[string]any{"smartlead": meta}
	}
	return lead
}

func utc(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
