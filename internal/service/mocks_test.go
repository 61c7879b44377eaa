package service_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/query"
	"github.com/unclebandit/outreach-backend/internal/repository"
)

var errDatabaseDown = errors.New("connection refused")

// MockCampaignRepo keeps campaigns in a map.
type MockCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[int64]*model.Campaign
	stats     map[string]int
	nextID    int64
}

func NewMockCampaignRepo(campaigns ...*model.Campaign) *MockCampaignRepo {
	m := &MockCampaignRepo{campaigns: map[int64]*model.Campaign{}}
	for _, c := range campaigns {
		m.campaigns[c.ID] = c
		if c.ID > m.nextID {
			m.nextID = c.ID
		}
	}
	return m
}

func (m *MockCampaignRepo) Create(_ context.Context, c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ID = m.nextID
	c.CreatedAt = time.Now()
	m.campaigns[c.ID] = c
	return nil
}

func (m *MockCampaignRepo) GetByID(_ context.Context, id int64) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (m *MockCampaignRepo) ListCampaigns(_ context.Context, offset, limit int, channel, status string) ([]*model.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := []*model.Campaign{}
	for _, c := range m.campaigns {
		if (channel == "" || c.Channel == channel) && (status == "" || c.Status == status) {
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if offset >= len(all) {
		return []*model.Campaign{}, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *MockCampaignRepo) UpdateStatus(_ context.Context, id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	c.Status = status
	return nil
}

func (m *MockCampaignRepo) GetCampaignStats(_ context.Context, _ int64) (map[string]int, error) {
	if m.stats == nil {
		return map[string]int{"total": 0}, nil
	}
	return m.stats, nil
}

func (m *MockCampaignRepo) status(id int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.campaigns[id].Status
}

// MockMessageRepo stores scheduled messages in a slice.
type MockMessageRepo struct {
	mu        sync.Mutex
	msgs      []model.ScheduledMessage
	lastByAdr map[string]time.Time
	insertErr error
	requeued  []int64
}

func (m *MockMessageRepo) LastQueuedByAddress(context.Context) (map[string]time.Time, error) {
	if m.lastByAdr == nil {
		return map[string]time.Time{}, nil
	}
	return m.lastByAdr, nil
}

func (m *MockMessageRepo) InsertBatch(_ context.Context, msgs []model.ScheduledMessage) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range msgs {
		msgs[i].ID = int64(len(m.msgs) + 1)
		m.msgs = append(m.msgs, msgs[i])
	}
	return nil
}

func (m *MockMessageRepo) ClaimDue(_ context.Context, now time.Time, limit int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for i := range m.msgs {
		if len(ids) == limit {
			break
		}
		if m.msgs[i].Status == model.MessageQueued && !m.msgs[i].ScheduledFor.After(now) {
			m.msgs[i].Status = model.MessageSending
			ids = append(ids, m.msgs[i].ID)
		}
	}
	return ids, nil
}

func (m *MockMessageRepo) Requeue(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requeued = append(m.requeued, ids...)
	for _, id := range ids {
		m.msgs[id-1].Status = model.MessageQueued
	}
	return nil
}

func (m *MockMessageRepo) MarkResult(_ context.Context, id int64, status, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs[id-1].Status = status
	return m.msgs[id-1].CampaignID, nil
}

func (m *MockMessageRepo) CountUnfinished(_ context.Context, campaignID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.msgs {
		if msg.CampaignID == campaignID && (msg.Status == model.MessageQueued || msg.Status == model.MessageSending) {
			n++
		}
	}
	return n, nil
}

func (m *MockMessageRepo) statuses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.msgs))
	for i, msg := range m.msgs {
		out[i] = msg.Status
	}
	return out
}

// countingStore wraps a store and records how often it was queried.
type countingStore struct {
	repository.ContactStore
	calls int
	last  query.Select
	err   error
}

func (s *countingStore) FindContacts(ctx context.Context, q query.Select) ([]model.Contact, int, error) {
	s.calls++
	s.last = q
	if s.err != nil {
		return nil, 0, s.err
	}
	return s.ContactStore.FindContacts(ctx, q)
}

type failingResolver struct{}

func (failingResolver) ContactsInCampaigns(context.Context, []int64) ([]int64, error) {
	return nil, errDatabaseDown
}

func (failingResolver) ContactsWithResponse(context.Context, int64, string) ([]int64, error) {
	return nil, errDatabaseDown
}

var (
	_ repository.CampaignRepositoryInterface         = (*MockCampaignRepo)(nil)
	_ repository.ScheduledMessageRepositoryInterface = (*MockMessageRepo)(nil)
)
