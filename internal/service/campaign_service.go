// internal/service/campaign_service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/metrics"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/repository"
	"github.com/unclebandit/outreach-backend/internal/schedule"
)

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	MessageRepo  repository.ScheduledMessageRepositoryInterface
	Scheduler    *schedule.Scheduler
	Log          zerolog.Logger

	// NewBatchID defaults to uuid.New.
	NewBatchID func() uuid.UUID
}

type CampaignDetails struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	Channel         string         `json:"channel"`
	Status          string         `json:"status"`
	SubjectTemplate string         `json:"subject_template"`
	ScheduledAt     *time.Time     `json:"scheduled_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       *time.Time     `json:"updated_at"`
	Stats           map[string]int `json:"stats"`
}

// LaunchResult is what a launch persisted.
type LaunchResult struct {
	CampaignID int64                    `json:"campaign_id"`
	BatchID    uuid.UUID                `json:"batch_id"`
	Messages   []model.ScheduledMessage `json:"messages"`
	Summary    schedule.Summary         `json:"summary"`
}

var launchableStatuses = map[string]bool{"draft": true, "scheduled": true, "sending": true}

func (s *CampaignService) CreateCampaign(ctx context.Context, name, channel, subjectTemplate string, scheduledAt *string) (*model.Campaign, error) {
	if strings.TrimSpace(name) == "" {
		return nil, appErrors.NewConfigError("name", "required")
	}
	switch channel {
	case "":
		channel = "email"
	case "email", "linkedin":
	default:
		return nil, appErrors.NewConfigError("channel", fmt.Sprintf("unsupported channel %q", channel))
	}

	c := &model.Campaign{
		Name:            name,
		Channel:         channel,
		SubjectTemplate: subjectTemplate,
		Status:          "draft",
	}
	if scheduledAt != nil {
		t, err := time.Parse(time.RFC3339, *scheduledAt)
		if err != nil {
			return nil, appErrors.NewConfigError("scheduled_at", "must be RFC3339")
		}
		c.ScheduledAt = &t
	}

	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, appErrors.NewQueryError("create campaign", err)
	}
	s.Log.Info().Int64("campaign_id", c.ID).Str("channel", c.Channel).Msg("campaign created")
	return c, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int, channel, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(ctx, offset, pageSize, channel, status)
	if err != nil {
		return nil, nil, appErrors.NewQueryError("list campaigns", err)
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": (total + pageSize - 1) / pageSize,
	}
	return campaigns, pagination, nil
}

func (s *CampaignService) getCampaign(ctx context.Context, id int64) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		if appErrors.IsNotFound(err) {
			return nil, err
		}
		return nil, appErrors.NewQueryError("get campaign", err)
	}
	return c, nil
}

func (s *CampaignService) GetCampaignDetailsWithStats(ctx context.Context, campaignID int64) (*CampaignDetails, error) {
	campaign, err := s.getCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	stats, err := s.CampaignRepo.GetCampaignStats(ctx, campaignID)
	if err != nil {
		return nil, appErrors.NewQueryError("campaign stats", err)
	}
	return &CampaignDetails{
		ID:              campaign.ID,
		Name:            campaign.Name,
		Channel:         campaign.Channel,
		Status:          campaign.Status,
		SubjectTemplate: campaign.SubjectTemplate,
		ScheduledAt:     campaign.ScheduledAt,
		CreatedAt:       campaign.CreatedAt,
		UpdatedAt:       campaign.UpdatedAt,
		Stats:           stats,
	}, nil
}

// priorByIndex maps still-queued send times from earlier launches onto the
// current rotation order by from address.
func (s *CampaignService) priorByIndex(ctx context.Context) (map[int]time.Time, error) {
	byAddress, err := s.MessageRepo.LastQueuedByAddress(ctx)
	if err != nil {
		return nil, err
	}
	prior := map[int]time.Time{}
	for i, id := range s.Scheduler.Identities() {
		if t, ok := byAddress[id.FromAddress()]; ok {
			prior[i] = t
		}
	}
	return prior, nil
}

// LaunchCampaign schedules raw rows across the sending identities and
// persists them as queued. Concurrent launches are not serialized: two of
// them can read the same prior queue and overlap.
func (s *CampaignService) LaunchCampaign(ctx context.Context, campaignID int64, raw []map[string]string) (result *LaunchResult, err error) {
	defer func() {
		status := "success"
		if err != nil {
			status = "failed"
		}
		metrics.CampaignLaunches.WithLabelValues(status).Inc()
	}()

	if len(raw) == 0 {
		return nil, appErrors.NewConfigError("rows", "at least one recipient row is required")
	}
	rows, err := schedule.ParseRows(raw)
	if err != nil {
		return nil, err
	}

	campaign, err := s.getCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !launchableStatuses[campaign.Status] {
		return nil, appErrors.NewConfigError("status", fmt.Sprintf("campaign cannot be launched in status %s", campaign.Status))
	}

	prior, err := s.priorByIndex(ctx)
	if err != nil {
		return nil, appErrors.NewQueryError("load queued send times", err)
	}

	plan, err := s.Scheduler.Schedule(rows, prior)
	if err != nil {
		return nil, err
	}

	newID := s.NewBatchID
	if newID == nil {
		newID = uuid.New
	}
	batchID := newID()
	for i := range plan.Messages {
		m := &plan.Messages[i]
		m.CampaignID = campaign.ID
		m.BatchID = batchID
		personalize(m, campaign.SubjectTemplate)
	}

	if err := s.MessageRepo.InsertBatch(ctx, plan.Messages); err != nil {
		return nil, appErrors.NewQueryError("insert scheduled emails", err)
	}
	if campaign.Status != "sending" {
		if err := s.CampaignRepo.UpdateStatus(ctx, campaign.ID, "scheduled"); err != nil {
			return nil, appErrors.NewQueryError("mark campaign scheduled", err)
		}
	}

	for _, m := range plan.Messages {
		metrics.ScheduledMessages.WithLabelValues(m.FromAddress).Inc()
	}
	s.Log.Info().
		Int64("campaign_id", campaign.ID).
		Str("batch_id", batchID.String()).
		Int("messages", len(plan.Messages)).
		Int("total_days", plan.Summary.TotalDays).
		Time("window_start", plan.Summary.WindowStartUTC).
		Msg("campaign launched")

	return &LaunchResult{
		CampaignID: campaign.ID,
		BatchID:    batchID,
		Messages:   plan.Messages,
		Summary:    plan.Summary,
	}, nil
}

// personalize fills {Column} placeholders from the row's metadata and falls
// back to the campaign subject when the row has none.
func personalize(m *model.ScheduledMessage, subjectTemplate string) {
	if strings.TrimSpace(m.Subject) == "" {
		m.Subject = subjectTemplate
	}
	data := make(map[string]string, len(m.Metadata)+1)
	for k, v := range m.Metadata {
		data[k] = v
	}
	data["Email"] = m.Recipient
	m.Subject = RenderTemplate(m.Subject, data)
	m.Body = RenderTemplate(m.Body, data)
}
