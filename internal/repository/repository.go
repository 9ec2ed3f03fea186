package repository

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/telhawk-systems/announcer/internal/metrics"
	"github.com/telhawk-systems/announcer/internal/models"
)

var ErrEventNotFound = errors.New("event not found")

// queryTimeout bounds a single store round trip.
const queryTimeout = 5 * time.Second

type Repository interface {
	// Upsert inserts event or updates the row sharing its identity key
	// (lower(title), start) and returns the row id.
	Upsert(ctx context.Context, event *models.NormalizedEvent) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.StoredEvent, error)
	// ListUpcoming yields at most limit events starting at or after now,
	// earliest first. Every range over the sequence runs a fresh query.
	ListUpcoming(ctx context.Context, limit int) iter.Seq2[*models.StoredEvent, error]
	ListSorted(ctx context.Context, q models.SortedQuery) ([]*models.EventRow, error)
	// DeleteAll removes every event and restarts id assignment.
	DeleteAll(ctx context.Context) error
	Close()
}

// StorageError reports a store failure other than the expected identity
// conflict handled by Upsert.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Collect drains seq into a slice, stopping at the first error.
func Collect(seq iter.Seq2[*models.StoredEvent, error]) ([]*models.StoredEvent, error) {
	var events []*models.StoredEvent
	for event, err := range seq {
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func observe(op string, started time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StoreOperations.WithLabelValues(op, status).Inc()
	metrics.StoreDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
