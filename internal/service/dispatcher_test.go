package service_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/queue"
	"github.com/unclebandit/outreach-backend/internal/service"
)

type brokenQueue struct{}

func (brokenQueue) Publish(context.Context, string, any) error { return errDatabaseDown }
func (brokenQueue) Subscribe(string, func([]byte) error) error { return nil }

func queuedMessages(campaignID int64, times ...time.Time) *MockMessageRepo {
	repo := &MockMessageRepo{}
	msgs := make([]model.ScheduledMessage, len(times))
	for i, at := range times {
		msgs[i] = model.ScheduledMessage{CampaignID: campaignID, ScheduledFor: at, Status: model.MessageQueued}
	}
	_ = repo.InsertBatch(context.Background(), msgs)
	return repo
}

func TestDispatchDuePublishesClaimedMessages(t *testing.T) {
	now := time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC)
	repo := queuedMessages(1, now.Add(-time.Minute), now, now.Add(time.Minute))

	q := queue.NewInMemoryQueue(zerolog.Nop())
	var mu sync.Mutex
	var got []int64
	require.NoError(t, q.Subscribe("campaign_sends", func(body []byte) error {
		var job queue.SendJob
		if err := json.Unmarshal(body, &job); err != nil {
			return err
		}
		mu.Lock()
		got = append(got, job.ScheduledEmailID)
		mu.Unlock()
		return nil
	}))

	d := &service.Dispatcher{
		Messages: repo, Queue: q, Topic: "campaign_sends", Batch: 10,
		Log: zerolog.Nop(), Now: func() time.Time { return now },
	}
	n, err := d.DispatchDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{model.MessageSending, model.MessageSending, model.MessageQueued}, repo.statuses())

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.ElementsMatch(t, []int64{1, 2}, got)
	mu.Unlock()
}

func TestDispatchDueRequeuesFailedPublishes(t *testing.T) {
	now := time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC)
	repo := queuedMessages(1, now, now)

	d := &service.Dispatcher{
		Messages: repo, Queue: brokenQueue{}, Topic: "campaign_sends", Batch: 10,
		Log: zerolog.Nop(), Now: func() time.Time { return now },
	}
	n, err := d.DispatchDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []int64{1, 2}, repo.requeued)
	assert.Equal(t, []string{model.MessageQueued, model.MessageQueued}, repo.statuses())
}

func TestHandleResultCompletesCampaign(t *testing.T) {
	now := time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC)
	repo := queuedMessages(5, now, now)
	campaigns := NewMockCampaignRepo(&model.Campaign{ID: 5, Status: "scheduled"})
	d := &service.Dispatcher{Messages: repo, Campaigns: campaigns, Log: zerolog.Nop()}
	ctx := context.Background()

	require.NoError(t, d.HandleResult(ctx, queue.SendResult{ScheduledEmailID: 1, Status: model.MessageSent}))
	assert.Equal(t, "scheduled", campaigns.status(5))

	require.NoError(t, d.HandleResult(ctx, queue.SendResult{ScheduledEmailID: 2, Status: model.MessageFailed, Error: "bounced"}))
	assert.Equal(t, "completed", campaigns.status(5))

	// Unknown statuses are ignored.
	require.NoError(t, d.HandleResult(ctx, queue.SendResult{ScheduledEmailID: 1, Status: "teleported"}))
	assert.Equal(t, []string{model.MessageSent, model.MessageFailed}, repo.statuses())
}
