package logging

import (
	"log/slog"
	"time"
)

// Common field names for consistent logging across the service.
const (
	FieldService       = "service"
	FieldRequestID     = "request_id"
	FieldConversation  = "conversation_id"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldStatus        = "status"
	FieldDuration      = "duration_ms"
	FieldError         = "error"
	FieldEventID       = "event_id"
	FieldTitle         = "title"
	FieldStart         = "start_utc"
	FieldEnd           = "end_utc"
	FieldKind          = "kind"
	FieldTimezone      = "timezone"
	FieldReferenceDate = "reference_date"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// EventID returns a slog attribute for a stored event ID.
func EventID(id int64) slog.Attr {
	return slog.Int64(FieldEventID, id)
}

// Title returns a slog attribute for an event title.
func Title(title string) slog.Attr {
	return slog.String(FieldTitle, title)
}

// Start returns a slog attribute for an event start instant.
func Start(t time.Time) slog.Attr {
	return slog.String(FieldStart, t.UTC().Format(time.RFC3339))
}

// End returns a slog attribute for an event end instant.
func End(t time.Time) slog.Attr {
	return slog.String(FieldEnd, t.UTC().Format(time.RFC3339))
}

// Kind returns a slog attribute for an error kind.
func Kind(kind string) slog.Attr {
	return slog.String(FieldKind, kind)
}

// Timezone returns a slog attribute for a timezone name.
func Timezone(name string) slog.Attr {
	return slog.String(FieldTimezone, name)
}

// ReferenceDate returns a slog attribute for an extraction reference date.
func ReferenceDate(d time.Time) slog.Attr {
	return slog.String(FieldReferenceDate, d.Format("2006-01-02"))
}

// Conversation returns a slog attribute for a conversation ID.
func Conversation(id string) slog.Attr {
	return slog.String(FieldConversation, id)
}
