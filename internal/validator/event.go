// Package validator checks the oracle's raw JSON reply against the event
// schema and converts it into a typed candidate.
package validator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/telhawk-systems/announcer/internal/models"
	"github.com/telhawk-systems/announcer/internal/temporal"
)

// FieldError describes one violation of the event schema.
type FieldError struct {
	Field   string `json:"field"`
	Problem string `json:"problem"`
}

// SchemaError is returned when the reply does not satisfy the event schema.
type SchemaError struct {
	Problems []FieldError
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Field+": "+p.Problem)
	}
	return "reply violates event schema: " + strings.Join(parts, "; ")
}

// Fields returns the names of the offending fields.
func (e *SchemaError) Fields() []string {
	fields := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		fields = append(fields, p.Field)
	}
	return fields
}

type collector struct {
	problems []FieldError
}

func (c *collector) add(field, format string, args ...any) {
	c.problems = append(c.problems, FieldError{Field: field, Problem: fmt.Sprintf(format, args...)})
}

// Validate decodes raw and checks it against the event schema.
//
// title and start are required strings; start and end must be ISO-8601
// date-times (an offset may be omitted). capacity must be a non-negative
// integer. Optional fields that are missing or null come back as nil;
// unknown keys are ignored.
func Validate(raw []byte) (*models.CandidateEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &SchemaError{Problems: []FieldError{{Field: "$", Problem: "not a JSON document"}}}
	}
	if dec.More() {
		return nil, &SchemaError{Problems: []FieldError{{Field: "$", Problem: "trailing data after JSON object"}}}
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, &SchemaError{Problems: []FieldError{{Field: "$", Problem: fmt.Sprintf("expected object, got %s", kindOf(doc))}}}
	}

	c := &collector{}
	event := &models.CandidateEvent{}

	if title, ok := requiredString(c, obj, "title"); ok {
		if strings.TrimSpace(title) == "" {
			c.add("title", "must not be blank")
		}
		event.Title = title
	}

	if start, ok := requiredString(c, obj, "start"); ok {
		if _, err := temporal.Parse(start, time.UTC); err != nil {
			c.add("start", "not an ISO-8601 date-time: %q", start)
		}
		event.Start = start
	}

	// An empty end string carries no end.
	if end := optionalString(c, obj, "end"); end != nil && strings.TrimSpace(*end) != "" {
		if _, err := temporal.Parse(*end, time.UTC); err != nil {
			c.add("end", "not an ISO-8601 date-time: %q", *end)
		}
		event.End = end
	}

	event.Location = optionalString(c, obj, "location")
	event.Description = optionalString(c, obj, "description")
	event.Notes = optionalString(c, obj, "notes")
	event.Capacity = optionalCapacity(c, obj)

	if len(c.problems) > 0 {
		return nil, &SchemaError{Problems: c.problems}
	}
	return event, nil
}

func requiredString(c *collector, obj map[string]any, field string) (string, bool) {
	v, present := obj[field]
	if !present || v == nil {
		c.add(field, "required")
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		c.add(field, "expected string, got %s", kindOf(v))
		return "", false
	}
	return s, true
}

func optionalString(c *collector, obj map[string]any, field string) *string {
	v, present := obj[field]
	if !present || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		c.add(field, "expected string, got %s", kindOf(v))
		return nil
	}
	return &s
}

func optionalCapacity(c *collector, obj map[string]any) *int {
	v, present := obj["capacity"]
	if !present || v == nil {
		return nil
	}
	n, ok := v.(json.Number)
	if !ok {
		c.add("capacity", "expected integer, got %s", kindOf(v))
		return nil
	}
	i, err := n.Int64()
	if err != nil {
		c.add("capacity", "expected integer, got %s", n.String())
		return nil
	}
	if i < 0 {
		c.add("capacity", "must not be negative")
		return nil
	}
	if i > math.MaxInt32 {
		c.add("capacity", "out of range")
		return nil
	}
	capacity := int(i)
	return &capacity
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
