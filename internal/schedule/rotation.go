package schedule

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
)

// Deliverability floor and jitter ceiling for one sending identity.
const (
	MinInterval = 3*time.Minute + 30*time.Second
	JitterMax   = 30 * time.Second
)

// Row is one recipient line of a launch.
type Row struct {
	Recipient string
	Subject   string
	Body      string
	Metadata  map[string]string
}

// ParseRows splits parsed CSV rows into the three required columns and
// metadata. A row missing Email, Subject or Body rejects the whole batch.
func ParseRows(raw []map[string]string) ([]Row, error) {
	rows := make([]Row, 0, len(raw))
	for i, r := range raw {
		row := Row{Metadata: map[string]string{}}
		for k, v := range r {
			switch k {
			case "Email":
				row.Recipient = strings.TrimSpace(v)
			case "Subject":
				row.Subject = v
			case "Body":
				row.Body = v
			default:
				row.Metadata[k] = v
			}
		}
		if row.Recipient == "" {
			return nil, appErrors.NewConfigError(fmt.Sprintf("row %d", i), "missing Email")
		}
		if _, ok := r["Subject"]; !ok {
			return nil, appErrors.NewConfigError(fmt.Sprintf("row %d", i), "missing Subject")
		}
		if _, ok := r["Body"]; !ok {
			return nil, appErrors.NewConfigError(fmt.Sprintf("row %d", i), "missing Body")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type Config struct {
	Identities  []model.SendingIdentity
	MinInterval time.Duration
	JitterMax   time.Duration
}

// DefaultConfig uses the business constants for spacing and jitter.
func DefaultConfig(identities []model.SendingIdentity) Config {
	return Config{Identities: identities, MinInterval: MinInterval, JitterMax: JitterMax}
}

// Summary describes how a plan spreads over the calendar.
type Summary struct {
	Timezone                   string         `json:"timezone"`
	IntervalMinutes            float64        `json:"interval_minutes"`
	MessagesPerIdentityPerHour int            `json:"messages_per_identity_per_hour"`
	WindowStartUTC             time.Time      `json:"window_start_utc"`
	EstimatedEndUTC            time.Time      `json:"estimated_end_utc"`
	CountsByLocalDay           map[string]int `json:"counts_by_local_day"`
	TotalDays                  int            `json:"total_days"`
}

type Plan struct {
	Messages []model.ScheduledMessage
	Summary  Summary
}

// Scheduler assigns rows round-robin to sending identities and gives each a
// send time inside the working window.
type Scheduler struct {
	cfg Config
	cal *Calendar

	// Jitter returns a duration in [0, max]. Defaults to uniform random at
	// millisecond resolution.
	Jitter func(max time.Duration) time.Duration
}

func NewScheduler(cal *Calendar, cfg Config) (*Scheduler, error) {
	if cal == nil {
		return nil, appErrors.NewConfigError("calendar", "missing")
	}
	if len(cfg.Identities) == 0 {
		return nil, appErrors.NewConfigError("identities", "at least one sending identity is required")
	}
	if cfg.MinInterval <= 0 {
		return nil, appErrors.NewConfigError("min interval", "must be positive")
	}
	if cfg.JitterMax < 0 {
		return nil, appErrors.NewConfigError("jitter", "must not be negative")
	}
	return &Scheduler{cfg: cfg, cal: cal, Jitter: randomJitter}, nil
}

func randomJitter(max time.Duration) time.Duration {
	ms := int64(max / time.Millisecond)
	if ms <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(ms+1)) * time.Millisecond
}

func (s *Scheduler) jitter() time.Duration {
	if s.cfg.JitterMax == 0 {
		return 0
	}
	j := s.Jitter(s.cfg.JitterMax)
	if j < 0 {
		return 0
	}
	if j > s.cfg.JitterMax {
		return s.cfg.JitterMax
	}
	return j
}

// Schedule processes rows strictly in order. prior holds, per identity index,
// the latest send time still queued from earlier launches. Two launches that
// read the same prior concurrently can overlap; nothing here guards that.
func (s *Scheduler) Schedule(rows []Row, prior map[int]time.Time) (*Plan, error) {
	n := len(s.cfg.Identities)
	window := s.cal.StartOfWindow()

	cursor := make(map[int]time.Time, n)
	for idx, t := range prior {
		if idx >= 0 && idx < n && !t.IsZero() {
			cursor[idx] = t.UTC()
		}
	}

	plan := &Plan{Messages: make([]model.ScheduledMessage, 0, len(rows))}
	var last time.Time
	counts := map[string]int{}

	for i, row := range rows {
		idx := i % n
		var candidate time.Time
		if prev, ok := cursor[idx]; ok {
			candidate = prev.Add(s.cfg.MinInterval + s.jitter())
			if candidate.Before(window.Instant) {
				candidate = window.Instant
			}
		} else {
			candidate = window.Instant
		}

		at := s.cal.Clamp(candidate)
		cursor[idx] = at

		identity := s.cfg.Identities[idx]
		plan.Messages = append(plan.Messages, model.ScheduledMessage{
			Recipient:         row.Recipient,
			FromIdentityIndex: idx,
			FromAddress:       identity.FromAddress(),
			ScheduledFor:      at,
			Subject:           row.Subject,
			Body:              row.Body,
			Metadata:          row.Metadata,
			Status:            model.MessageQueued,
		})

		counts[s.cal.LocalDate(at)]++
		if at.After(last) {
			last = at
		}
	}

	plan.Summary = s.summarize(window, len(rows), counts, last)
	return plan, nil
}

// Identities returns the rotation order.
func (s *Scheduler) Identities() []model.SendingIdentity {
	return s.cfg.Identities
}

// PerIdentityPerHour is floor(60 / interval minutes), at least one.
func (s *Scheduler) PerIdentityPerHour() int {
	perHour := int(math.Floor(float64(time.Hour) / float64(s.cfg.MinInterval)))
	if perHour < 1 {
		perHour = 1
	}
	return perHour
}

func (s *Scheduler) summarize(window Window, total int, counts map[string]int, last time.Time) Summary {
	perHour := s.PerIdentityPerHour()
	identities := len(s.cfg.Identities)
	perDay := perHour * s.cal.WorkdayHours() * identities
	today := perHour * int(window.RemainingHoursToday) * identities

	days := 0
	if total > 0 {
		remaining := total
		if window.IsToday && today > 0 {
			days = 1
			remaining -= today
		}
		if remaining > 0 {
			days += (remaining + perDay - 1) / perDay
		}
	}

	end := last
	if end.IsZero() {
		end = window.Instant
	}
	return Summary{
		Timezone:                   s.cal.Location().String(),
		IntervalMinutes:            s.cfg.MinInterval.Minutes(),
		MessagesPerIdentityPerHour: perHour,
		WindowStartUTC:             window.Instant,
		EstimatedEndUTC:            end,
		CountsByLocalDay:           counts,
		TotalDays:                  days,
	}
}
