// Package ical renders stored events as an iCalendar feed.
package ical

import (
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/telhawk-systems/announcer/internal/models"
)

const (
	ProductID = "-//telhawk-systems//announcer//EN"
	// DefaultDuration is used for events that were announced without an end.
	DefaultDuration = time.Hour
)

// FeedOptions controls calendar-level properties.
type FeedOptions struct {
	Name string
	// Domain qualifies event UIDs.
	Domain string
	// Timezone is advertised as X-WR-TIMEZONE; timestamps stay in UTC.
	Timezone string
}

// NewCalendar builds a PUBLISH calendar with one VEVENT per event.
func NewCalendar(events []*models.StoredEvent, opts FeedOptions) *ics.Calendar {
	if opts.Domain == "" {
		opts.Domain = "announcer.local"
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(ProductID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	if opts.Timezone != "" {
		cal.SetXWRTimezone(opts.Timezone)
	}

	for _, e := range events {
		addEvent(cal, e, opts.Domain)
	}
	return cal
}

func addEvent(cal *ics.Calendar, e *models.StoredEvent, domain string) {
	ev := cal.AddEvent(UID(e.ID, domain))
	ev.SetDtStampTime(e.UpdatedAt.UTC())
	ev.SetCreatedTime(e.CreatedAt.UTC())
	ev.SetModifiedAt(e.UpdatedAt.UTC())
	ev.SetSummary(e.Title)

	start := e.StartUTC.UTC()
	ev.SetStartAt(start)
	if e.EndUTC != nil {
		ev.SetEndAt(e.EndUTC.UTC())
	} else {
		ev.SetEndAt(start.Add(DefaultDuration))
	}

	if e.Location != nil && strings.TrimSpace(*e.Location) != "" {
		ev.SetLocation(strings.TrimSpace(*e.Location))
	}
	if d := description(e); d != "" {
		ev.SetDescription(d)
	}
}

// description joins description, notes and capacity into one text.
func description(e *models.StoredEvent) string {
	var parts []string
	if e.Description != nil && strings.TrimSpace(*e.Description) != "" {
		parts = append(parts, strings.TrimSpace(*e.Description))
	}
	if e.Notes != nil && strings.TrimSpace(*e.Notes) != "" {
		parts = append(parts, strings.TrimSpace(*e.Notes))
	}
	if e.Capacity != nil {
		parts = append(parts, fmt.Sprintf("Capacity: %d", *e.Capacity))
	}
	return strings.Join(parts, "\n\n")
}

// UID returns the stable identifier of an event in the feed.
func UID(id int64, domain string) string {
	return fmt.Sprintf("event-%d@%s", id, domain)
}

// Write serializes the feed to w.
func Write(w io.Writer, events []*models.StoredEvent, opts FeedOptions) error {
	return NewCalendar(events, opts).SerializeTo(w)
}
