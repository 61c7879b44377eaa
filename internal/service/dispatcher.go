package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/outreach-backend/internal/metrics"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/queue"
	"github.com/unclebandit/outreach-backend/internal/repository"
)

// Dispatcher hands due scheduled emails to the send queue. Delivery itself
// belongs to the external sender.
type Dispatcher struct {
	Messages  repository.ScheduledMessageRepositoryInterface
	Campaigns repository.CampaignRepositoryInterface
	Queue     queue.Queue
	Topic     string
	Batch     int
	Log       zerolog.Logger
	Now       func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// DispatchDue claims one batch of due messages and publishes a job for each.
// Jobs that fail to publish go back to queued.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	ids, err := d.Messages.ClaimDue(ctx, d.now(), d.Batch)
	if err != nil {
		return 0, fmt.Errorf("claim due messages: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var failed []int64
	for _, id := range ids {
		if err := d.Queue.Publish(ctx, d.Topic, queue.SendJob{ScheduledEmailID: id}); err != nil {
			d.Log.Warn().Err(err).Int64("scheduled_email_id", id).Msg("publish failed")
			failed = append(failed, id)
			continue
		}
	}
	published := len(ids) - len(failed)
	metrics.DispatchedMessages.WithLabelValues("published").Add(float64(published))

	if len(failed) > 0 {
		metrics.DispatchedMessages.WithLabelValues("requeued").Add(float64(len(failed)))
		if err := d.Messages.Requeue(ctx, failed); err != nil {
			return published, fmt.Errorf("requeue %d messages: %w", len(failed), err)
		}
	}
	d.Log.Info().Int("claimed", len(ids)).Int("published", published).Msg("dispatched due messages")
	return published, nil
}

// Run dispatches every interval until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := d.DispatchDue(ctx); err != nil {
			d.Log.Error().Err(err).Msg("dispatch round failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// HandleResult records a sender report and completes the campaign once none
// of its messages are queued or sending.
func (d *Dispatcher) HandleResult(ctx context.Context, res queue.SendResult) error {
	switch res.Status {
	case model.MessageSent, model.MessageFailed:
	default:
		d.Log.Warn().Str("status", res.Status).Int64("scheduled_email_id", res.ScheduledEmailID).Msg("ignoring unknown send status")
		return nil
	}

	campaignID, err := d.Messages.MarkResult(ctx, res.ScheduledEmailID, res.Status, res.Error)
	if err != nil {
		return fmt.Errorf("mark result: %w", err)
	}
	metrics.DispatchedMessages.WithLabelValues(res.Status).Inc()

	left, err := d.Messages.CountUnfinished(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("count unfinished: %w", err)
	}
	if left == 0 {
		if err := d.Campaigns.UpdateStatus(ctx, campaignID, "completed"); err != nil {
			return fmt.Errorf("complete campaign %d: %w", campaignID, err)
		}
		d.Log.Info().Int64("campaign_id", campaignID).Msg("campaign completed")
	}
	return nil
}
