package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/unclebandit/outreach-backend/internal/model"
)

type ScheduledMessageRepositoryInterface interface {
	// LastQueuedByAddress returns, per from address, the latest send time
	// among messages that are still queued.
	LastQueuedByAddress(ctx context.Context) (map[string]time.Time, error)
	InsertBatch(ctx context.Context, msgs []model.ScheduledMessage) error
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]int64, error)
	Requeue(ctx context.Context, ids []int64) error
	MarkResult(ctx context.Context, id int64, status, lastError string) (campaignID int64, err error)
	CountUnfinished(ctx context.Context, campaignID int64) (int, error)
}

type ScheduledMessageRepository struct {
	DB *sql.DB
}

func (r *ScheduledMessageRepository) LastQueuedByAddress(ctx context.Context) (map[string]time.Time, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT from_address, MAX(scheduled_for)
        FROM scheduled_emails
        WHERE status = 'queued'
        GROUP BY from_address
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]time.Time{}
	for rows.Next() {
		var addr string
		var last time.Time
		if err := rows.Scan(&addr, &last); err != nil {
			return nil, err
		}
		out[addr] = last.UTC()
	}
	return out, rows.Err()
}

// InsertBatch writes every message in one transaction and fills in the ids.
// Nothing is written when any insert fails.
func (r *ScheduledMessageRepository) InsertBatch(ctx context.Context, msgs []model.ScheduledMessage) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO scheduled_emails
            (campaign_id, batch_id, recipient_email, from_identity_index, from_address,
             subject, body, metadata, status, scheduled_for, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id
    `)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range msgs {
		m := &msgs[i]
		meta, err := json.Marshal(m.Metadata)
		if err != nil {
			return fmt.Errorf("metadata for %s: %w", m.Recipient, err)
		}
		if m.Status == "" {
			m.Status = model.MessageQueued
		}
		m.CreatedAt = now
		err = stmt.QueryRowContext(ctx,
			m.CampaignID, m.BatchID.String(), m.Recipient, m.FromIdentityIndex, m.FromAddress,
			m.Subject, m.Body, meta, m.Status, m.ScheduledFor.UTC(), m.CreatedAt,
		).Scan(&m.ID)
		if err != nil {
			return fmt.Errorf("insert %s: %w", m.Recipient, err)
		}
	}
	return tx.Commit()
}

// ClaimDue moves up to limit due queued messages to sending. Concurrent
// dispatchers never claim the same row.
func (r *ScheduledMessageRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	rows, err := r.DB.QueryContext(ctx, `
        UPDATE scheduled_emails SET status = 'sending', updated_at = NOW()
        WHERE id IN (
            SELECT id FROM scheduled_emails
            WHERE status = 'queued' AND scheduled_for <= $1
            ORDER BY scheduled_for
            LIMIT $2
            FOR UPDATE SKIP LOCKED
        )
        RETURNING id
    `, now.UTC(), limit)
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

func (r *ScheduledMessageRepository) Requeue(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.DB.ExecContext(ctx, `
        UPDATE scheduled_emails SET status = 'queued', updated_at = NOW()
        WHERE id = ANY($1) AND status = 'sending'
    `, pq.Array(ids))
	return err
}

// MarkResult records the sender's outcome for one message.
func (r *ScheduledMessageRepository) MarkResult(ctx context.Context, id int64, status, lastError string) (int64, error) {
	var campaignID int64
	err := r.DB.QueryRowContext(ctx, `
        UPDATE scheduled_emails SET status = $1, last_error = NULLIF($2, ''), updated_at = NOW()
        WHERE id = $3
        RETURNING campaign_id
    `, status, lastError, id).Scan(&campaignID)
	if err != nil {
		return 0, err
	}
	return campaignID, nil
}

func (r *ScheduledMessageRepository) CountUnfinished(ctx context.Context, campaignID int64) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM scheduled_emails
        WHERE campaign_id = $1 AND status IN ('queued', 'sending')
    `, campaignID).Scan(&n)
	return n, err
}

var _ ScheduledMessageRepositoryInterface = (*ScheduledMessageRepository)(nil)
