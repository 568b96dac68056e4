package instantly

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

type listLeadsRequest struct {
	Campaign string `json:"campaign"`
	Limit    int    `json:"limit"`
	Skip     int    `json:"skip"`
}

type listLeadsResponse struct {
	Items []leadDTO `json:"items"`
}

// leadDTO is the subset of an Instantly v2 lead the sync consumes.
type leadDTO struct {
	ID                   string          `json:"id"`
	Email                string          `json:"email"`
	FirstName            string          `json:"first_name"`
	LastName             string          `json:"last_name"`
	CompanyName          string          `json:"company_name"`
	CompanyDomain        string          `json:"company_domain"`
	Website              string          `json:"website"`
	Phone                string          `json:"phone"`
	InterestStatus       *flexInt        `json:"lt_interest_status"`
	EmailOpenCount       int             `json:"email_open_count"`
	EmailClickCount      int             `json:"email_click_count"`
	EmailReplyCount      int             `json:"email_reply_count"`
	TimestampLastContact *time.Time      `json:"timestamp_last_contact"`
	TimestampLastReply   *time.Time      `json:"timestamp_last_reply"`
	Payload              json.RawMessage `json:"payload"`
}

type listEmailsResponse struct {
	Items []emailDTO `json:"items"`
}

type emailDTO struct {
	ID               string     `json:"id"`
	TimestampEmail   *time.Time `json:"timestamp_email"`
	TimestampCreated *time.Time `json:"timestamp_created"`
}

// flexInt accepts interest values sent either as numbers or numeric strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}
