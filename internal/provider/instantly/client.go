// Package instantly reads campaign leads from the Instantly v2 API.
package instantly

import (
	"context"
	"encoding/json"
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

const (
	listLeadsPath  = "/api/v2/leads/list"
	listEmailsPath = "/api/v2/emails"
)

// Client implements provider.Source for Instantly.
type Client struct {
	http     *httpclient.Client
	interest *provider.InterestMap
}

var _ provider.Source = (*Client)(nil)

// New creates an Instantly client on top of a shared transport.
func New(transport *httpclient.Client, interest *provider.InterestMap) *Client {
	return &Client{http: transport, interest: interest}
}

// ListLeads returns one page of campaign leads.
func (c *Client) ListLeads(ctx context.Context, t provider.Target, limit, skip int) ([]reconcile.ProviderLead, error) {
	var resp listLeadsResponse
	err := c.http.Do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		Path:    listLeadsPath,
		Headers: authHeader(t),
		Account: t.APIKey,
		Body: listLeadsRequest{
			Campaign: t.ProviderCampaignID,
			Limit:    limit,
			Skip:     skip,
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("instantly list leads: %w", err)
	}

	leads := make([]reconcile.ProviderLead, 0, len(resp.Items))
	for _, item := range resp.Items {
		leads = append(leads, c.toCanonical(item))
	}
	return leads, nil
}

// ListPositiveLeads collects every lead Instantly classifies as positive.
func (c *Client) ListPositiveLeads(ctx context.Context, t provider.Target) ([]reconcile.ProviderLead, error) {
	return provider.CollectPositive(ctx, c, t)
}

// LastReplyAt reads the newest received email in the lead's thread.
func (c *Client) LastReplyAt(ctx context.Context, t provider.Target, lead reconcile.ProviderLead) (*time.Time, error) {
	email := reconcile.NormalizeEmail(lead.Email)
	if email == "" {
		return nil, nil
	}

	query := url.Values{}
	query.Set("campaign_id", t.ProviderCampaignID)
	query.Set("lead", email)
	query.Set("email_type", "received")
	query.Set("limit", "1")

	var resp listEmailsResponse
	err := c.http.Do(ctx, httpclient.Request{
		Method:  http.MethodGet,
		Path:    listEmailsPath,
		Query:   query,
		Headers: authHeader(t),
		Account: t.APIKey,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("instantly list emails: %w", err)
	}

	for _, item := range resp.Items {
		if item.TimestampEmail != nil {
			ts := item.TimestampEmail.UTC()
			return &ts, nil
		}
		if item.TimestampCreated != nil {
			ts := item.TimestampCreated.UTC()
			return &ts, nil
		}
	}
	return nil, nil
}

func (c *Client) toCanonical(item leadDTO) reconcile.ProviderLead {
	lead := reconcile.ProviderLead{
		ProviderLeadID:  strings.TrimSpace(item.ID),
		Email:           strings.TrimSpace(item.Email),
		FirstName:       item.FirstName,
		LastName:        item.LastName,
		CompanyName:     item.CompanyName,
		CompanyDomain:   item.CompanyDomain,
		Phone:           item.Phone,
		ReplyCount:      item.EmailReplyCount,
		OpenCount:       item.EmailOpenCount,
		ClickCount:      item.EmailClickCount,
		LastContactedAt: utc(item.TimestampLastContact),
		RespondedAt:     utc(item.TimestampLastReply),
	}
	if lead.CompanyDomain == "" {
		lead.CompanyDomain = item.Website
	}
	if item.InterestStatus != nil {
		raw := strconv.Itoa(int(*item.InterestStatus))
		lead.Interest = c.interest.Lookup(reconcile.ProviderInstantly, raw)
	}
	if len(item.Payload) > 0 && string(item.Payload) != "null" {
		var custom map[string]any
		if err := json.Unmarshal(item.Payload, &custom); err == nil && len(custom) > 0 {
			lead.Metadata = map[string]any{"instantly": custom}
		}
	}
	return lead
}

func authHeader(t provider.Target) map[string]string {
	return map[string]string{"Authorization": "Bearer " + t.APIKey}
}

func utc(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
