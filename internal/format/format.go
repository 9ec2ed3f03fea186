// Package format renders events as timezone-local text for chat replies and
// the CLI. Every function here is pure.
package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/telhawk-systems/announcer/internal/models"
	"github.com/telhawk-systems/announcer/internal/temporal"
)

const (
	// MaxFieldLength caps description and notes in listings.
	MaxFieldLength = 140
	Ellipsis       = "..."

	NoLocation  = "—"
	EmptyList   = "No upcoming events found."
	EmptyRows   = "No events found."
	rowTimeForm = "Mon Jan 2, 3:04 PM"
)

type Formatter struct {
	loc *time.Location
}

// New returns a Formatter rendering in loc (UTC when nil).
func New(loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{loc: loc}
}

func (f *Formatter) Location() *time.Location {
	return f.loc
}

// Truncate shortens s to at most limit characters, ending in "..." when cut.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	keep := limit - utf8.RuneCountInString(Ellipsis)
	if keep <= 0 {
		return string([]rune(Ellipsis)[:limit])
	}
	return string([]rune(s)[:keep]) + Ellipsis
}

// FormatList renders stored events as blank-line separated blocks.
func (f *Formatter) FormatList(events []*models.StoredEvent) string {
	if len(events) == 0 {
		return EmptyList
	}

	blocks := make([]string, 0, len(events))
	for _, e := range events {
		lines := []string{
			e.Title,
			temporal.FormatWhen(e.StartUTC, e.EndUTC, f.loc),
			locationOrDash(e.Location),
		}
		if d := trimmed(e.Description); d != "" {
			lines = append(lines, Truncate(d, MaxFieldLength))
		}
		if n := trimmed(e.Notes); n != "" {
			lines = append(lines, Truncate(n, MaxFieldLength))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// FormatConfirmation renders the reply sent after an event is saved.
func (f *Formatter) FormatConfirmation(event *models.NormalizedEvent, id int64) string {
	title := strings.TrimSpace(event.Title)
	if title == "" {
		title = "Untitled event"
	}
	lines := []string{
		fmt.Sprintf("Saved (id %d):", id),
		title,
		temporal.FormatWhen(event.StartUTC, event.EndUTC, f.loc),
		locationOrDash(event.Location),
	}
	if d := trimmed(event.Description); d != "" {
		lines = append(lines, Truncate(d, MaxFieldLength))
	}
	return strings.Join(lines, "\n")
}

// FormatRows renders partial rows one per line, fields in column order.
func (f *Formatter) FormatRows(rows []*models.EventRow, columns []string) string {
	if len(rows) == 0 {
		return EmptyRows
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, strings.Join(f.RowFields(r, columns), " | "))
	}
	return strings.Join(lines, "\n")
}

// RowFields renders each requested column of r as display text.
func (f *Formatter) RowFields(r *models.EventRow, columns []string) []string {
	fields := make([]string, 0, len(columns))
	for _, c := range columns {
		fields = append(fields, f.cell(r, c))
	}
	return fields
}

func (f *Formatter) cell(r *models.EventRow, column string) string {
	switch column {
	case "id":
		if r.ID != nil {
			return "#" + strconv.FormatInt(*r.ID, 10)
		}
	case "title":
		return deref(r.Title)
	case "start_ts", "start_utc":
		return f.timestamp(r.StartUTC)
	case "end_ts", "end_utc":
		return f.timestamp(r.EndUTC)
	case "location":
		return locationOrDash(r.Location)
	case "capacity":
		if r.Capacity != nil {
			return strconv.Itoa(*r.Capacity)
		}
	case "description":
		return Truncate(deref(r.Description), MaxFieldLength)
	case "notes":
		return Truncate(deref(r.Notes), MaxFieldLength)
	case "created_at":
		return f.timestamp(r.CreatedAt)
	case "updated_at":
		return f.timestamp(r.UpdatedAt)
	}
	return ""
}

func (f *Formatter) timestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.In(f.loc).Format(rowTimeForm)
}

func locationOrDash(loc *string) string {
	if l := trimmed(loc); l != "" {
		return l
	}
	return NoLocation
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
