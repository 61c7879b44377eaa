// internal/model/scheduled_message.go
package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	MessageQueued  = "queued"
	MessageSending = "sending"
	MessageSent    = "sent"
	MessageFailed  = "failed"
)

// SendingIdentity is one rotation slot. Its index in the configured list is
// the rotation key.
type SendingIdentity struct {
	Domain    string `json:"domain"`
	LocalPart string `json:"local_part"`
}

func (s SendingIdentity) FromAddress() string {
	return s.LocalPart + "@" + s.Domain
}

// ScheduledMessage is one outbound email with its send slot. ScheduledFor is
// computed once at launch and never recomputed.
type ScheduledMessage struct {
	ID                int64             `db:"id" json:"id"`
	CampaignID        int64             `db:"campaign_id" json:"campaign_id"`
	BatchID           uuid.UUID         `db:"batch_id" json:"batch_id"`
	Recipient         string            `db:"recipient_email" json:"recipient"`
	FromIdentityIndex int               `db:"from_identity_index" json:"from_identity_index"`
	FromAddress       string            `db:"from_address" json:"from_address"`
	ScheduledFor      time.Time         `db:"scheduled_for" json:"scheduled_for"`
	Subject           string            `db:"subject" json:"subject"`
	Body              string            `db:"body" json:"body"`
	Metadata          map[string]string `db:"metadata" json:"metadata,omitempty"`
	Status            string            `db:"status" json:"status"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
}
