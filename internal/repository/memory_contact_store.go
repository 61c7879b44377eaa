package repository

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/query"
)

// MemoryContactStore evaluates segmentation queries in process. It backs
// STORE_DRIVER=memory and the service tests.
type MemoryContactStore struct {
	mu         sync.RWMutex
	contacts   []model.Contact
	recipients []model.CampaignRecipient
	events     map[int64][]string
	nextID     int64
}

func NewMemoryContactStore() *MemoryContactStore {
	return &MemoryContactStore{events: map[int64][]string{}}
}

// AddContact stores c, assigning an id and created_at when unset.
func (m *MemoryContactStore) AddContact(c model.Contact) model.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		m.nextID++
		c.ID = m.nextID
	} else if c.ID > m.nextID {
		m.nextID = c.ID
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m.contacts = append(m.contacts, c)
	return c
}

func (m *MemoryContactStore) AddRecipient(r model.CampaignRecipient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recipients = append(m.recipients, r)
}

func (m *MemoryContactStore) AddEvent(e model.WebsiteEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ContactID] = append(m.events[e.ContactID], e.EventType)
}

type history struct {
	campaigns map[int64]struct{}
	lastSent  *time.Time
}

func (m *MemoryContactStore) histories(shape query.Shape) map[int64]*history {
	out := map[int64]*history{}
	for _, r := range m.recipients {
		if shape.Join == query.InnerJoin && len(shape.CampaignIDs) > 0 && !slices.Contains(shape.CampaignIDs, r.CampaignID) {
			continue
		}
		h, ok := out[r.ContactID]
		if !ok {
			h = &history{campaigns: map[int64]struct{}{}}
			out[r.ContactID] = h
		}
		h.campaigns[r.CampaignID] = struct{}{}
		if r.SentAt != nil && (h.lastSent == nil || r.SentAt.After(*h.lastSent)) {
			t := *r.SentAt
			h.lastSent = &t
		}
	}
	return out
}

func (m *MemoryContactStore) FindContacts(ctx context.Context, q query.Select) ([]model.Contact, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	hist := m.histories(q.Shape)
	matched := []model.Contact{}
	for _, c := range m.contacts {
		h, contacted := hist[c.ID]
		switch q.Shape.Join {
		case query.AntiJoin:
			if contacted {
				continue
			}
		case query.InnerJoin:
			if !contacted {
				continue
			}
		}
		if !q.Where.MatchesAll(contactSubject{c: c, events: m.events[c.ID]}) {
			continue
		}
		if contacted {
			c.CampaignCount = len(h.campaigns)
			c.LastContactedAt = h.lastSent
		}
		matched = append(matched, c)
	}

	slices.SortFunc(matched, func(a, b model.Contact) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})

	total := len(matched)
	if q.Offset >= total {
		return []model.Contact{}, total, nil
	}
	end := total
	if q.Limit > 0 && q.Offset+q.Limit < end {
		end = q.Offset + q.Limit
	}
	return matched[q.Offset:end], total, nil
}

func (m *MemoryContactStore) ContactsInCampaigns(ctx context.Context, campaignIDs []int64) ([]int64, error) {
	return m.collect(ctx, func(r model.CampaignRecipient) bool {
		return slices.Contains(campaignIDs, r.CampaignID)
	})
}

func (m *MemoryContactStore) ContactsWithResponse(ctx context.Context, campaignID int64, response string) ([]int64, error) {
	var pred func(model.CampaignRecipient) bool
	switch response {
	case ResponseReplied:
		pred = func(r model.CampaignRecipient) bool { return r.RepliedAt != nil }
	case ResponseOpened:
		pred = func(r model.CampaignRecipient) bool { return r.OpenedAt != nil }
	case ResponseClicked:
		pred = func(r model.CampaignRecipient) bool { return r.ClickedAt != nil }
	case ResponseBounced:
		pred = func(r model.CampaignRecipient) bool { return r.BouncedAt != nil }
	case ResponseNoReply:
		pred = func(r model.CampaignRecipient) bool { return r.SentAt != nil && r.RepliedAt == nil }
	default:
		return nil, fmt.Errorf("unknown campaign response %q", response)
	}
	return m.collect(ctx, func(r model.CampaignRecipient) bool {
		return r.CampaignID == campaignID && pred(r)
	})
}

func (m *MemoryContactStore) collect(ctx context.Context, keep func(model.CampaignRecipient) bool) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []int64
	for _, r := range m.recipients {
		if keep(r) && !slices.Contains(ids, r.ContactID) {
			ids = append(ids, r.ContactID)
		}
	}
	return ids, nil
}

// contactSubject exposes a contact to query.Matches.
type contactSubject struct {
	c      model.Contact
	events []string
}

func (s contactSubject) ID() int64 { return s.c.ID }

func (s contactSubject) Text(field string) (string, bool) {
	switch field {
	case query.FieldName:
		return s.c.Name, true
	case query.FieldCompany:
		return s.c.Company, true
	case query.FieldEmail:
		return s.c.Email, true
	case query.FieldLocation:
		return s.c.Location, true
	case query.FieldRole:
		return s.c.Role, true
	case query.FieldSource:
		return s.c.Source, true
	case query.FieldUnsubscribed:
		return strconv.FormatBool(s.c.Unsubscribed), true
	case query.FieldBounced:
		return strconv.FormatBool(s.c.Bounced), true
	case query.FieldSearch:
		return strings.Join([]string{s.c.Name, s.c.Company, s.c.Email, s.c.Role, s.c.Location}, " "), true
	}
	if key, ok := strings.CutPrefix(field, "details."); ok {
		v, ok := s.c.Details[key]
		return v, ok
	}
	return "", false
}

func (s contactSubject) List(field string) []string {
	if field == query.FieldContactTypes {
		return s.c.ContactTypes
	}
	return nil
}

func (s contactSubject) EventTypes() []string { return s.events }

var (
	_ ContactStore      = (*MemoryContactStore)(nil)
	_ RecipientResolver = (*MemoryContactStore)(nil)
)
