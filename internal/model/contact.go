// internal/model/contact.go
package model

import (
	"strings"
	"time"
)

// Contact is a row of the contact database. The email column may hold several
// comma separated addresses.
type Contact struct {
	ID           int64             `db:"id" json:"id"`
	Email        string            `db:"email" json:"email"`
	Name         string            `db:"name" json:"name"`
	Company      string            `db:"company" json:"company"`
	Role         string            `db:"role" json:"role"`
	Location     string            `db:"location" json:"location"`
	Source       string            `db:"source" json:"source"`
	ContactTypes []string          `db:"contact_types" json:"contact_types"`
	Details      map[string]string `db:"details" json:"details,omitempty"`
	Unsubscribed bool              `db:"unsubscribed" json:"unsubscribed"`
	Bounced      bool              `db:"bounced" json:"bounced"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`

	// Display enrichment from the campaign-recipient join.
	CampaignCount   int        `db:"campaign_count" json:"campaign_count"`
	LastContactedAt *time.Time `db:"last_contacted_at" json:"last_contacted_at,omitempty"`
}

// Addresses splits the email field into its individual addresses.
func (c Contact) Addresses() []string {
	return SplitEmails(c.Email)
}

// HasMultipleEmails reports whether the operator must pick an address.
func (c Contact) HasMultipleEmails() bool {
	return len(c.Addresses()) > 1
}

// SplitEmails splits on commas and semicolons, dropping blanks.
func SplitEmails(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// WebsiteEvent is a tracked visitor action attributed to a contact.
type WebsiteEvent struct {
	ContactID  int64     `db:"contact_id" json:"contact_id"`
	EventType  string    `db:"event_type" json:"event_type"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
}

// ContactPage is one page of a segmentation query. TotalCount counts every
// match of the filter, not just this page.
type ContactPage struct {
	Rows       []Contact `json:"rows"`
	TotalCount int       `json:"total_count"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalPages int       `json:"total_pages"`
}

// Recipient is a contact reduced to the single address a campaign will use.
type Recipient struct {
	ContactID int64  `json:"contact_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
}
