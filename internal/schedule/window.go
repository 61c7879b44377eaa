package schedule

import (
	"fmt"
	"time"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
)

const (
	DefaultTimezone  = "America/New_York"
	DefaultWorkStart = 9
	DefaultWorkEnd   = 17
)

// LocalTime is a wall-clock reading in the calendar's zone.
type LocalTime struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
	Second int
}

// Window describes where a launch begins relative to today's working hours.
type Window struct {
	Instant             time.Time
	IsToday             bool
	RemainingHoursToday float64
}

// Calendar does all working-hour arithmetic for one business timezone.
// Every instant it returns is in UTC.
type Calendar struct {
	loc       *time.Location
	startHour int
	endHour   int

	// Now defaults to time.Now.
	Now func() time.Time
}

// NewCalendar validates the zone and hours. An empty tz uses DefaultTimezone.
func NewCalendar(tz string, startHour, endHour int) (*Calendar, error) {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, appErrors.NewConfigError("timezone", fmt.Sprintf("unknown IANA zone %q", tz))
	}
	if startHour < 0 || endHour > 24 || startHour >= endHour {
		return nil, appErrors.NewConfigError("working hours", fmt.Sprintf("need 0 <= start < end <= 24, got %d-%d", startHour, endHour))
	}
	return &Calendar{loc: loc, startHour: startHour, endHour: endHour, Now: time.Now}, nil
}

func (c *Calendar) Location() *time.Location { return c.loc }
func (c *Calendar) StartHour() int           { return c.startHour }
func (c *Calendar) EndHour() int             { return c.endHour }

// WorkdayHours is the length of one working window in hours.
func (c *Calendar) WorkdayHours() int { return c.endHour - c.startHour }

// NowInZone returns the current instant as local wall-clock fields.
func (c *Calendar) NowInZone() LocalTime {
	n := c.Now().In(c.loc)
	return LocalTime{
		Year: n.Year(), Month: n.Month(), Day: n.Day(),
		Hour: n.Hour(), Minute: n.Minute(), Second: n.Second(),
	}
}

// LocalToUTC interprets the fields as local time in the calendar's zone.
// Skipped and repeated DST wall times follow time.Date's normalization.
func (c *Calendar) LocalToUTC(year int, month time.Month, day, hour, minute, second int) time.Time {
	return time.Date(year, month, day, hour, minute, second, 0, c.loc).UTC()
}

// StartOfWindow returns where sending can begin, measured from Now.
func (c *Calendar) StartOfWindow() Window {
	now := c.Now()
	local := c.NowInZone()

	switch {
	case local.Hour < c.startHour:
		return Window{
			Instant:             c.LocalToUTC(local.Year, local.Month, local.Day, c.startHour, 0, 0),
			IsToday:             true,
			RemainingHoursToday: float64(c.WorkdayHours()),
		}
	case local.Hour >= c.endHour:
		return Window{
			Instant:             c.LocalToUTC(local.Year, local.Month, local.Day+1, c.startHour, 0, 0),
			IsToday:             false,
			RemainingHoursToday: 0,
		}
	default:
		return Window{
			Instant:             now.UTC(),
			IsToday:             true,
			RemainingHoursToday: float64(c.endHour - local.Hour),
		}
	}
}

// EndOfWindow is the end-hour instant on t's local calendar day.
func (c *Calendar) EndOfWindow(t time.Time) time.Time {
	l := t.In(c.loc)
	return c.LocalToUTC(l.Year(), l.Month(), l.Day(), c.endHour, 0, 0)
}

// NextWindowStart is the start-hour instant on the local day after t's.
func (c *Calendar) NextWindowStart(t time.Time) time.Time {
	l := t.In(c.loc)
	return c.LocalToUTC(l.Year(), l.Month(), l.Day()+1, c.startHour, 0, 0)
}

func (c *Calendar) startOfDay(t time.Time) time.Time {
	l := t.In(c.loc)
	return c.LocalToUTC(l.Year(), l.Month(), l.Day(), c.startHour, 0, 0)
}

// Clamp moves candidate into a working window. The end hour itself is outside
// the window and the start hour is inside it. It loops because a candidate may
// be more than a day past the window.
func (c *Calendar) Clamp(candidate time.Time) time.Time {
	t := candidate.UTC()
	for {
		if !t.Before(c.EndOfWindow(t)) {
			t = c.NextWindowStart(t)
			continue
		}
		if start := c.startOfDay(t); t.Before(start) {
			t = start
			continue
		}
		return t
	}
}

// LocalDate formats t as its YYYY-MM-DD calendar day in the zone.
func (c *Calendar) LocalDate(t time.Time) string {
	return t.In(c.loc).Format("2006-01-02")
}
