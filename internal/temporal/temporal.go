// Package temporal turns the oracle's date-time strings into absolute
// instants and renders them back as timezone-local text.
package temporal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/telhawk-systems/announcer/internal/models"
)

const (
	dayLayout      = "Mon Jan 2"
	clockLayout    = "3:04 PM"
	dayClockLayout = dayLayout + ", " + clockLayout

	// LongSpanThreshold is the span above which an event is flagged for audit.
	LongSpanThreshold = 24 * time.Hour
)

// ErrEndBeforeStart is returned when an end instant still precedes the
// start after the one-day rollover.
var ErrEndBeforeStart = errors.New("end precedes start by more than one day")

// TemporalError reports a date-time that could not be parsed or reconciled.
type TemporalError struct {
	Field string
	Value string
	Err   error
}

func (e *TemporalError) Error() string {
	return fmt.Sprintf("invalid %s time %q: %v", e.Field, e.Value, e.Err)
}

func (e *TemporalError) Unwrap() error {
	return e.Err
}

// Layouts carrying an explicit UTC offset.
var offsetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04Z07:00",
}

// Layouts without an offset; the configured timezone is assumed.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Parse reads an ISO-8601 date-time. Values without an offset are
// interpreted in loc.
func Parse(value string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, errors.New("empty date-time")
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date-time format")
}

// Normalize converts a validated candidate into the canonical event.
//
// When the end is not after the start in loc's wall clock, the end is moved
// forward by one calendar day (an overnight range such as 10 PM to 1 AM).
// On the repeated hour of a DST fall-back an end that reads earlier on the
// clock is rolled even if it is a later instant. Ranges that still end
// before they start are rejected; spans longer than LongSpanThreshold are
// accepted and flagged.
func Normalize(c *models.CandidateEvent, raw json.RawMessage, loc *time.Location) (*models.NormalizedEvent, error) {
	if loc == nil {
		loc = time.UTC
	}

	start, err := Parse(c.Start, loc)
	if err != nil {
		return nil, &TemporalError{Field: "start", Value: c.Start, Err: err}
	}
	startLocal := start.In(loc)

	var (
		endLocal *time.Time
		audit    models.AuditFlags
	)
	if c.End != nil {
		end, err := Parse(*c.End, loc)
		if err != nil {
			return nil, &TemporalError{Field: "end", Value: *c.End, Err: err}
		}
		e := end.In(loc)
		if !wallClock(e).After(wallClock(startLocal)) {
			e = e.AddDate(0, 0, 1)
			audit.RolledOver = true
		}
		if !e.After(startLocal) {
			return nil, &TemporalError{Field: "end", Value: *c.End, Err: ErrEndBeforeStart}
		}
		audit.LongSpan = e.Sub(startLocal) > LongSpanThreshold
		endLocal = &e
	}

	event := &models.NormalizedEvent{
		Title:       strings.TrimSpace(c.Title),
		StartUTC:    startLocal.UTC(),
		Location:    c.Location,
		Capacity:    c.Capacity,
		Description: c.Description,
		Notes:       c.Notes,
		Raw:         append(json.RawMessage(nil), raw...),
		Display: models.Display{
			Start: startLocal.Format(dayClockLayout),
			When:  FormatWhen(startLocal, endLocal, loc),
		},
		Audit: audit,
	}
	if endLocal != nil {
		endUTC := endLocal.UTC()
		event.EndUTC = &endUTC
		event.Display.End = endLocal.Format(dayClockLayout)
	}

	return event, nil
}

// wallClock drops the zone of t, keeping the clock reading.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// FormatWhen renders the time span of an event in loc:
//
//	Mon Aug 11 • 5:00 PM–7:00 PM               same local date
//	Mon Aug 11, 10:00 PM → Tue Aug 12, 1:00 AM  different local dates
//	Mon Aug 11 • 5:00 PM                       no end
func FormatWhen(start time.Time, end *time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	s := start.In(loc)
	if end == nil {
		return s.Format(dayLayout) + " • " + s.Format(clockLayout)
	}
	e := end.In(loc)
	if SameDate(s, e) {
		return fmt.Sprintf("%s • %s–%s", s.Format(dayLayout), s.Format(clockLayout), e.Format(clockLayout))
	}
	return fmt.Sprintf("%s → %s", s.Format(dayClockLayout), e.Format(dayClockLayout))
}

// SameDate reports whether a and b fall on the same calendar date in a's location.
func SameDate(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ParseDate reads a YYYY-MM-DD reference date in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid reference date %q: %w", value, err)
	}
	return d, nil
}
