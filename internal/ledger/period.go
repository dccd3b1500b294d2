package ledger

import (
	"fmt"
	"time"

	"github.com/sheikh-saqib/household-ledger/internal/models"
)

// Window is the half-open interval [Start, End) a limit period covers.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// WindowResolver decides which concrete window a limit period maps to at a
// given instant. The guard only compares amounts; anchoring lives here.
type WindowResolver interface {
	Window(p models.Period, now time.Time) (Window, error)
}

// CalendarWindows anchors weeks on WeekStart at midnight and months on the
// first day of the month, both in Location.
type CalendarWindows struct {
	Location  *time.Location
	WeekStart time.Weekday
}

func (c CalendarWindows) Window(p models.Period, now time.Time) (Window, error) {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	switch p {
	case models.Weekly:
		back := (int(local.Weekday()) - int(c.WeekStart) + 7) % 7
		start := midnight.AddDate(0, 0, -back)
		return Window{Start: start, End: start.AddDate(0, 0, 7)}, nil
	case models.Monthly:
		start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
		return Window{Start: start, End: start.AddDate(0, 1, 0)}, nil
	default:
		return Window{}, fmt.Errorf("no calendar window for %v", p)
	}
}

// RollingWindows covers the last 7 or 30 days up to and including now.
type RollingWindows struct{}

func (RollingWindows) Window(p models.Period, now time.Time) (Window, error) {
	end := now.Add(time.Nanosecond)
	switch p {
	case models.Weekly:
		return Window{Start: end.AddDate(0, 0, -7), End: end}, nil
	case models.Monthly:
		return Window{Start: end.AddDate(0, 0, -30), End: end}, nil
	default:
		return Window{}, fmt.Errorf("no rolling window for %v", p)
	}
}
