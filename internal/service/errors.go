package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/telhawk-systems/announcer/internal/extractor"
	"github.com/telhawk-systems/announcer/internal/models"
	"github.com/telhawk-systems/announcer/internal/repository"
	"github.com/telhawk-systems/announcer/internal/temporal"
	"github.com/telhawk-systems/announcer/internal/validator"
)

// PersistError reports an extraction that succeeded but could not be saved.
// Resubmitting the same text is safe: the upsert is idempotent.
type PersistError struct {
	Event *models.NormalizedEvent
	Err   error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("event extracted but not saved: %v", e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Error kinds reported to callers.
const (
	KindEmpty             = "empty"
	KindSchema            = "schema"
	KindTemporal          = "temporal"
	KindOracleUnavailable = "oracle_unavailable"
	KindExtraction        = "extraction"
	KindInvalidSort       = "invalid_sort"
	KindPersistFailed     = "persist_failed"
	KindStorage           = "storage"
	KindNotFound          = "not_found"
	KindCancelled         = "cancelled"
	KindInternal          = "internal"
)

// ErrorKind classifies err using the most specific cause available.
func ErrorKind(err error) string {
	var (
		persistErr    *PersistError
		schemaErr     *validator.SchemaError
		temporalErr   *temporal.TemporalError
		extractionErr *extractor.ExtractionError
		sortErr       *repository.InvalidSortError
		storageErr    *repository.StorageError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.As(err, &persistErr):
		return KindPersistFailed
	case errors.Is(err, extractor.ErrEmptyAnnouncement):
		return KindEmpty
	case errors.As(err, &schemaErr):
		return KindSchema
	case errors.As(err, &temporalErr):
		return KindTemporal
	case errors.As(err, &extractionErr):
		if extractionErr.Kind == extractor.KindOracleUnavailable {
			return KindOracleUnavailable
		}
		return KindExtraction
	case errors.As(err, &sortErr):
		return KindInvalidSort
	case errors.Is(err, repository.ErrEventNotFound):
		return KindNotFound
	case errors.As(err, &storageErr):
		return KindStorage
	}
	return KindInternal
}

// UserMessage renders err as text an operator can act on.
func UserMessage(err error) string {
	var (
		schemaErr   *validator.SchemaError
		temporalErr *temporal.TemporalError
		sortErr     *repository.InvalidSortError
	)
	switch ErrorKind(err) {
	case KindCancelled:
		return "Cancelled."
	case KindEmpty:
		return "I didn't receive any text. Try again or /cancel."
	case KindPersistFailed:
		return "The event was read but saving it failed. Resubmit the same text to retry:\n" + err.Error()
	case KindSchema:
		errors.As(err, &schemaErr)
		return "Parse failed, the announcement is missing or has a malformed " +
			strings.Join(schemaErr.Fields(), ", ") + ". Rewrite it and try again."
	case KindTemporal:
		errors.As(err, &temporalErr)
		return "Parse failed, could not work out when the event happens:\n" + temporalErr.Error()
	case KindOracleUnavailable:
		return "The extraction service is unavailable. Try again later."
	case KindExtraction:
		return "Parse failed, the extraction service returned an unreadable reply. Try again."
	case KindInvalidSort:
		errors.As(err, &sortErr)
		return "Cannot list events: " + sortErr.Error() + "."
	case KindNotFound:
		return "Event not found."
	case KindStorage:
		return "The event store is unavailable. Try again later."
	}
	return "Something went wrong: " + err.Error()
}
