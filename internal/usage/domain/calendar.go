package domain

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Calendar cuts days and months in the deployment's reference zone. All
// instants it returns are in UTC.
type Calendar struct {
	loc *time.Location
}

func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{loc: loc}
}

func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// StartOfDay truncates t to 00:00 of its day in the reference zone.
func (c Calendar) StartOfDay(t time.Time) time.Time {
	local := t.In(c.Location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.Location()).UTC()
}

// DayWindow returns the half-open interval [start, next) covering t's day.
func (c Calendar) DayWindow(t time.Time) (time.Time, time.Time) {
	local := t.In(c.Location())
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.Location())
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

// PreviousDay returns 00:00 of the calendar day before t's day. It steps by
// calendar date, so 23 and 25 hour days are handled.
func (c Calendar) PreviousDay(t time.Time) time.Time {
	local := t.In(c.Location())
	return time.Date(local.Year(), local.Month(), local.Day()-1, 0, 0, 0, 0, c.Location()).UTC()
}

func (c Calendar) StartOfMonth(t time.Time) time.Time {
	local := t.In(c.Location())
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, c.Location()).UTC()
}

// ParseDate accepts YYYY-MM-DD, read as midnight in the reference zone, or
// an RFC3339 instant.
func (c Calendar) ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrInvalidDate
	}
	if t, err := time.ParseInLocation(dateLayout, value, c.Location()); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return t.UTC(), nil
}

// FormatDate renders t as YYYY-MM-DD in the reference zone.
func (c Calendar) FormatDate(t time.Time) string {
	return t.In(c.Location()).Format(dateLayout)
}
