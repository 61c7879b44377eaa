// internal/model/campaign.go
package model

import "time"

type Campaign struct {
	ID              int64      `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	Channel         string     `db:"channel" json:"channel"` // email, linkedin
	Status          string     `db:"status" json:"status"`   // draft, scheduled, sending, completed
	SubjectTemplate string     `db:"subject_template" json:"subject_template"`
	ScheduledAt     *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// CampaignRecipient links a contact to a campaign it was sent.
type CampaignRecipient struct {
	CampaignID int64      `db:"campaign_id" json:"campaign_id"`
	ContactID  int64      `db:"contact_id" json:"contact_id"`
	Status     string     `db:"status" json:"status"`
	SentAt     *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	OpenedAt   *time.Time `db:"opened_at" json:"opened_at,omitempty"`
	ClickedAt  *time.Time `db:"clicked_at" json:"clicked_at,omitempty"`
	RepliedAt  *time.Time `db:"replied_at" json:"replied_at,omitempty"`
	BouncedAt  *time.Time `db:"bounced_at" json:"bounced_at,omitempty"`
}
