package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/query"
)

// Campaign responses a recipient lookup understands.
const (
	ResponseReplied = "replied"
	ResponseOpened  = "opened"
	ResponseClicked = "clicked"
	ResponseBounced = "bounced"
	ResponseNoReply = "no_reply"
)

// ContactStore runs segmentation queries.
type ContactStore interface {
	// FindContacts returns one page of q plus the number of rows matching
	// q without paging.
	FindContacts(ctx context.Context, q query.Select) ([]model.Contact, int, error)
}

// RecipientResolver turns campaign-recipient facts into contact id sets.
type RecipientResolver interface {
	ContactsInCampaigns(ctx context.Context, campaignIDs []int64) ([]int64, error)
	ContactsWithResponse(ctx context.Context, campaignID int64, response string) ([]int64, error)
}

type ContactRepository struct {
	DB *sql.DB
}

func (r *ContactRepository) FindContacts(ctx context.Context, q query.Select) ([]model.Contact, int, error) {
	countSQL, countArgs, err := q.CountSQL()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.DB.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}
	if total == 0 || q.Offset >= total {
		return []model.Contact{}, total, nil
	}

	pageSQL, args, err := q.SQL()
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx, pageSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]model.Contact, 0, q.Limit)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		contacts = append(contacts, c)
	}
	return contacts, total, rows.Err()
}

func scanContact(row rowScanner) (model.Contact, error) {
	var c model.Contact
	var details []byte
	var lastContacted sql.NullTime
	var name, company, role, location, source sql.NullString
	err := row.Scan(
		&c.ID, &c.Email, &name, &company, &role, &location, &source,
		pq.Array(&c.ContactTypes), &details, &c.Unsubscribed, &c.Bounced, &c.CreatedAt,
		&c.CampaignCount, &lastContacted,
	)
	if err != nil {
		return c, err
	}
	c.Name, c.Company, c.Role, c.Location, c.Source = name.String, company.String, role.String, location.String, source.String
	if lastContacted.Valid {
		c.LastContactedAt = &lastContacted.Time
	}
	if c.Details, err = decodeDetails(details); err != nil {
		return c, fmt.Errorf("contact %d details: %w", c.ID, err)
	}
	return c, nil
}

// decodeDetails flattens the jsonb details object to strings. Non-string
// values keep their JSON text.
func decodeDetails(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		if string(v) == "null" {
			continue
		}
		out[k] = string(v)
	}
	return out, nil
}

// CampaignRecipientRepository resolves id sets from campaign_recipients.
type CampaignRecipientRepository struct {
	DB *sql.DB
}

func (r *CampaignRecipientRepository) ContactsInCampaigns(ctx context.Context, campaignIDs []int64) ([]int64, error) {
	if len(campaignIDs) == 0 {
		return nil, nil
	}
	return r.ids(ctx, `SELECT DISTINCT contact_id FROM campaign_recipients WHERE campaign_id = ANY($1)`, pq.Array(campaignIDs))
}

func (r *CampaignRecipientRepository) ContactsWithResponse(ctx context.Context, campaignID int64, response string) ([]int64, error) {
	cond, err := responseCondition(response)
	if err != nil {
		return nil, err
	}
	return r.ids(ctx, `SELECT DISTINCT contact_id FROM campaign_recipients WHERE campaign_id = $1 AND `+cond, campaignID)
}

func responseCondition(response string) (string, error) {
	switch response {
	case ResponseReplied:
		return "replied_at IS NOT NULL", nil
	case ResponseOpened:
		return "opened_at IS NOT NULL", nil
	case ResponseClicked:
		return "clicked_at IS NOT NULL", nil
	case ResponseBounced:
		return "bounced_at IS NOT NULL", nil
	case ResponseNoReply:
		return "sent_at IS NOT NULL AND replied_at IS NULL", nil
	}
	return "", fmt.Errorf("unknown campaign response %q", response)
}

func (r *CampaignRecipientRepository) ids(ctx context.Context, q string, args ...any) ([]int64, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var (
	_ ContactStore      = (*ContactRepository)(nil)
	_ RecipientResolver = (*CampaignRecipientRepository)(nil)
)
