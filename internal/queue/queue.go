package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Queue moves JSON payloads between the dispatcher and the external sender.
type Queue interface {
	Publish(ctx context.Context, topic string, payload any) error
	Subscribe(topic string, handler func(body []byte) error) error
}

// SendJob asks the sender to deliver one scheduled email.
type SendJob struct {
	ScheduledEmailID int64 `json:"scheduled_email_id"`
}

// SendResult is the sender's report for one scheduled email.
type SendResult struct {
	ScheduledEmailID int64  `json:"scheduled_email_id"`
	Status           string `json:"status"` // sent, failed
	Error            string `json:"error,omitempty"`
}

// InMemoryQueue delivers to in-process subscribers with retry.
type InMemoryQueue struct {
	mu         sync.Mutex
	handlers   map[string][]func(body []byte) error
	MaxRetries int
	Backoff    time.Duration
	Log        zerolog.Logger
}

func NewInMemoryQueue(log zerolog.Logger) *InMemoryQueue {
	return &InMemoryQueue{
		handlers:   make(map[string][]func(body []byte) error),
		MaxRetries: 3,
		Backoff:    500 * time.Millisecond,
		Log:        log,
	}
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(ctx context.Context, topic string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}
	for _, handler := range handlers {
		go q.process(topic, handler, body)
	}
	return nil
}

// process retries a failing handler with linear backoff, then drops the job.
func (q *InMemoryQueue) process(topic string, handler func([]byte) error, body []byte) {
	for attempt := 0; ; attempt++ {
		err := handler(body)
		if err == nil {
			return
		}
		if attempt >= q.MaxRetries {
			q.Log.Error().Err(err).Str("topic", topic).Int("attempts", attempt+1).Msg("job permanently failed")
			return
		}
		q.Log.Warn().Err(err).Str("topic", topic).Int("attempt", attempt+1).Msg("job failed, retrying")
		time.Sleep(time.Duration(attempt+1) * q.Backoff)
	}
}

func (q *InMemoryQueue) Subscribe(topic string, handler func(body []byte) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// StartSendResultSubscriber applies sender reports from topic with handle.
// Malformed payloads are logged and dropped, not retried.
func StartSendResultSubscriber(q Queue, topic string, handle func(context.Context, SendResult) error, log zerolog.Logger) error {
	return q.Subscribe(topic, func(body []byte) error {
		var res SendResult
		if err := json.Unmarshal(body, &res); err != nil || res.ScheduledEmailID == 0 {
			log.Warn().Err(err).Bytes("body", body).Msg("invalid send result")
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := handle(ctx, res); err != nil {
			log.Error().Err(err).Int64("scheduled_email_id", res.ScheduledEmailID).Msg("apply send result")
			return err
		}
		return nil
	})
}

var _ Queue = (*InMemoryQueue)(nil)
