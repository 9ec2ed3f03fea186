package models

import (
	"encoding/json"
	"time"
)

// CandidateEvent is the oracle's reply after schema validation. It is still
// untrusted: timestamps are unparsed strings and optional fields are nil when
// the oracle omitted them or returned null.
type CandidateEvent struct {
	Title       string
	Start       string
	End         *string
	Location    *string
	Capacity    *int
	Description *string
	Notes       *string
}

// NormalizedEvent is the canonical record produced by one extraction.
// It is never mutated after construction.
type NormalizedEvent struct {
	Title       string          `json:"title"`
	StartUTC    time.Time       `json:"start_utc"`
	EndUTC      *time.Time      `json:"end_utc,omitempty"`
	Location    *string         `json:"location,omitempty"`
	Capacity    *int            `json:"capacity,omitempty"`
	Description *string         `json:"description,omitempty"`
	Notes       *string         `json:"notes,omitempty"`
	Raw         json.RawMessage `json:"raw"`

	Display Display    `json:"display"`
	Audit   AuditFlags `json:"audit"`
}

// Display holds the timezone-local rendering computed at normalization time.
type Display struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
	When  string `json:"when"`
}

// AuditFlags records heuristics applied during normalization.
type AuditFlags struct {
	// RolledOver is set when the end instant was advanced by one day.
	RolledOver bool `json:"rolled_over"`
	// LongSpan is set when the end lies more than 24h after the start.
	LongSpan bool `json:"long_span"`
}

// StoredEvent is a persisted row of the events relation.
type StoredEvent struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	StartUTC    time.Time       `json:"start_utc"`
	EndUTC      *time.Time      `json:"end_utc,omitempty"`
	Location    *string         `json:"location,omitempty"`
	Capacity    *int            `json:"capacity,omitempty"`
	Description *string         `json:"description,omitempty"`
	Notes       *string         `json:"notes,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// EventRow is a partial row returned by sorted listings. Only the columns
// requested by the caller are populated; the rest stay nil.
type EventRow struct {
	ID          *int64     `json:"id,omitempty" yaml:"id,omitempty"`
	Title       *string    `json:"title,omitempty" yaml:"title,omitempty"`
	StartUTC    *time.Time `json:"start_ts,omitempty" yaml:"start_ts,omitempty"`
	EndUTC      *time.Time `json:"end_ts,omitempty" yaml:"end_ts,omitempty"`
	Location    *string    `json:"location,omitempty" yaml:"location,omitempty"`
	Capacity    *int       `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	Description *string    `json:"description,omitempty" yaml:"description,omitempty"`
	Notes       *string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// SortedQuery selects columns and ordering for a sorted listing.
type SortedQuery struct {
	Columns   []string `json:"columns"`
	SortBy    string   `json:"sort_by"`
	Ascending bool     `json:"ascending"`
	Limit     int      `json:"limit"`
	Page      int      `json:"page"` // zero-based
}

// ExtractionRequest is the API request for turning an announcement into an event
type ExtractionRequest struct {
	Text          string `json:"text"`
	ReferenceDate string `json:"reference_date,omitempty"` // YYYY-MM-DD
}

// ExtractionResponse is returned once an announcement has been extracted and saved
type ExtractionResponse struct {
	ID    int64            `json:"id"`
	Event *NormalizedEvent `json:"event"`
	Text  string           `json:"text"`
}

// UpcomingResponse contains the next events and their rendered listing
type UpcomingResponse struct {
	Events []*StoredEvent `json:"events"`
	Text   string         `json:"text"`
}

// SortedResponse contains one page of a sorted listing
type SortedResponse struct {
	Rows  []*EventRow `json:"rows"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// MessageRequest carries one chat message for a buffered conversation
type MessageRequest struct {
	Text string `json:"text"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// IntPtr returns a pointer to i.
func IntPtr(i int) *int {
	return &i
}
