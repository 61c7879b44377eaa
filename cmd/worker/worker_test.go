package main

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/queue"
	"github.com/unclebandit/outreach-backend/internal/service"
)

// MockMessageRepo stores messages in memory
type MockMessageRepo struct {
	mu   sync.Mutex
	msgs map[int64]*model.ScheduledMessage
}

func (m *MockMessageRepo) LastQueuedByAddress(context.Context) (map[string]time.Time, error) {
	return map[string]time.Time{}, nil
}

func (m *MockMessageRepo) InsertBatch(context.Context, []model.ScheduledMessage) error { return nil }

func (m *MockMessageRepo) ClaimDue(_ context.Context, now time.Time, limit int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, msg := range m.msgs {
		if len(ids) < limit && msg.Status == model.MessageQueued && !msg.ScheduledFor.After(now) {
			msg.Status = model.MessageSending
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *MockMessageRepo) Requeue(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.msgs[id].Status = model.MessageQueued
	}
	return nil
}

func (m *MockMessageRepo) MarkResult(_ context.Context, id int64, status, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs[id].Status = status
	return m.msgs[id].CampaignID, nil
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

func (m *MockMessageRepo) status(id int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.msgs[id].Status
}

type MockCampaignRepo struct {
	mu     sync.Mutex
	status map[int64]string
}

func (m *MockCampaignRepo) Create(context.Context, *model.Campaign) error { return nil }
func (m *MockCampaignRepo) GetByID(_ context.Context, id int64) (*model.Campaign, error) {
	return nil, appErrors.NewCampaignNotFound(id)
}
func (m *MockCampaignRepo) ListCampaigns(context.Context, int, int, string, string) ([]*model.Campaign, int, error) {
	return nil, 0, nil
}
func (m *MockCampaignRepo) UpdateStatus(_ context.Context, id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[id] = status
	return nil
}
func (m *MockCampaignRepo) GetCampaignStats(context.Context, int64) (map[string]int, error) {
	return map[string]int{}, nil
}
func (m *MockCampaignRepo) get(id int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status[id]
}

func TestWorker(t *testing.T) {
	now := time.Now()
	msgs := &MockMessageRepo{msgs: map[int64]*model.ScheduledMessage{
		1: {ID: 1, CampaignID: 7, Status: model.MessageQueued, ScheduledFor: now.Add(-time.Minute)},
		2: {ID: 2, CampaignID: 7, Status: model.MessageQueued, ScheduledFor: now.Add(-time.Second)},
		3: {ID: 3, CampaignID: 8, Status: model.MessageQueued, ScheduledFor: now.Add(time.Hour)},
	}}
	campaigns := &MockCampaignRepo{status: map[int64]string{7: "scheduled", 8: "scheduled"}}

	q := queue.NewInMemoryQueue(zerolog.Nop())
	q.Backoff = time.Millisecond

	// The sender: message 2 fails, everything else is delivered.
	require.NoError(t, q.Subscribe("sends", func(body []byte) error {
		var job queue.SendJob
		if err := json.Unmarshal(body, &job); err != nil {
			return err
		}
		res := queue.SendResult{ScheduledEmailID: job.ScheduledEmailID, Status: model.MessageSent}
		if job.ScheduledEmailID == 2 {
			res = queue.SendResult{ScheduledEmailID: 2, Status: model.MessageFailed, Error: "mailbox full"}
		}
		return q.Publish(context.Background(), "results", res)
	}))

	d := &service.Dispatcher{
		Messages:  msgs,
		Campaigns: campaigns,
		Queue:     q,
		Topic:     "sends",
		Batch:     10,
		Log:       zerolog.Nop(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, start(ctx, d, q, "results", 10*time.Millisecond, zerolog.Nop()))

	require.Eventually(t, func() bool {
		return campaigns.get(7) == "completed"
	}, 2*time.Second, 5*time.Millisecond)

	if got := msgs.status(1); got != model.MessageSent {
		t.Errorf("expected sent, got %s", got)
	}
	if got := msgs.status(2); got != model.MessageFailed {
		t.Errorf("expected failed, got %s", got)
	}
	if got := msgs.status(3); got != model.MessageQueued {
		t.Errorf("future message should stay queued, got %s", got)
	}
	if got := campaigns.get(8); got != "scheduled" {
		t.Errorf("expected campaign 8 still scheduled, got %s", got)
	}
}
