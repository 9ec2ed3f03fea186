// Package seeder generates plausible announcements for development stores.
package seeder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/telhawk-systems/announcer/internal/models"
	"github.com/telhawk-systems/announcer/internal/temporal"
)

var kinds = []string{"Dance Night", "Open Mic", "Book Club", "Trivia", "Potluck", "Film Screening", "Craft Fair", "Karaoke"}

// Store is the part of the event store the seeder writes to.
type Store interface {
	Upsert(ctx context.Context, event *models.NormalizedEvent) (int64, error)
}

// Config controls event generation.
type Config struct {
	Count int
	// Seed makes runs reproducible; zero picks a random seed.
	Seed int64
	// Days bounds how far ahead start dates are spread.
	Days     int
	Location *time.Location
}

// Generator builds normalized events from fake candidates.
type Generator struct {
	faker *gofakeit.Faker
	cfg   Config
}

func NewGenerator(cfg Config) *Generator {
	if cfg.Days <= 0 {
		cfg.Days = 30
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Generator{faker: gofakeit.New(cfg.Seed), cfg: cfg}
}

// Candidate fabricates an oracle reply for a day relative to from. Evening
// events often end after midnight on the same written date, so the
// normalizer's rollover applies to them as it would to a real reply.
func (g *Generator) Candidate(from time.Time) *models.CandidateEvent {
	f := g.faker
	day := from.In(g.cfg.Location).AddDate(0, 0, f.IntRange(1, g.cfg.Days))
	startHour := f.IntRange(10, 22)
	start := time.Date(day.Year(), day.Month(), day.Day(), startHour, f.RandomInt([]int{0, 15, 30, 45}), 0, 0, g.cfg.Location)

	c := &models.CandidateEvent{
		Title: fmt.Sprintf("%s %s", f.Adjective(), f.RandomString(kinds)),
		Start: start.Format(time.RFC3339),
	}
	if f.Bool() {
		endHour := (startHour + f.IntRange(1, 4)) % 24
		end := time.Date(day.Year(), day.Month(), day.Day(), endHour, start.Minute(), 0, 0, g.cfg.Location)
		c.End = models.StringPtr(end.Format(time.RFC3339))
	}
	if f.Bool() {
		c.Location = models.StringPtr(fmt.Sprintf("%s, %s", f.Street(), f.City()))
	}
	if f.Bool() {
		c.Capacity = models.IntPtr(f.IntRange(10, 300))
	}
	if f.Bool() {
		c.Description = models.StringPtr(f.Sentence(f.IntRange(6, 40)))
	}
	if f.Number(0, 3) == 0 {
		c.Notes = models.StringPtr(f.Sentence(8))
	}
	return c
}

// Events returns cfg.Count normalized events starting after from.
func (g *Generator) Events(from time.Time) ([]*models.NormalizedEvent, error) {
	events := make([]*models.NormalizedEvent, 0, g.cfg.Count)
	for range g.cfg.Count {
		c := g.Candidate(from)
		raw, err := json.Marshal(candidateJSON(c))
		if err != nil {
			return nil, fmt.Errorf("marshal candidate: %w", err)
		}
		event, err := temporal.Normalize(c, raw, g.cfg.Location)
		if err != nil {
			return nil, fmt.Errorf("normalize %q: %w", c.Title, err)
		}
		events = append(events, event)
	}
	return events, nil
}

// Seed generates events and upserts them into store. It returns the
// number of events written.
func Seed(ctx context.Context, store Store, g *Generator, from time.Time) (int, error) {
	events, err := g.Events(from)
	if err != nil {
		return 0, err
	}
	for i, e := range events {
		if _, err := store.Upsert(ctx, e); err != nil {
			return i, fmt.Errorf("failed to seed event %q: %w", e.Title, err)
		}
	}
	return len(events), nil
}

func candidateJSON(c *models.CandidateEvent) map[string]any {
	return map[string]any{
		"title":       c.Title,
		"start":       c.Start,
		"end":         c.End,
		"location":    c.Location,
		"capacity":    c.Capacity,
		"description": c.Description,
		"notes":       c.Notes,
	}
}
