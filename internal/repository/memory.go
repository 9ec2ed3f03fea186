package repository

import (
	"cmp"
	"context"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/telhawk-systems/announcer/internal/models"
)

type identityKey struct {
	title string
	start int64
}

// MemoryRepository is an in-process event store for development and tests.
// A single mutex serializes writers, which gives Upsert the same
// one-row-per-identity guarantee as the unique index in Postgres.
type MemoryRepository struct {
	mu     sync.RWMutex
	events map[int64]*models.StoredEvent
	index  map[identityKey]int64
	nextID int64
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return NewMemoryRepositoryWithClock(time.Now)
}

// NewMemoryRepositoryWithClock uses now for timestamps and the upcoming cutoff.
func NewMemoryRepositoryWithClock(now func() time.Time) *MemoryRepository {
	return &MemoryRepository{
		events: make(map[int64]*models.StoredEvent),
		index:  make(map[identityKey]int64),
		nextID: 1,
		now:    now,
	}
}

func (r *MemoryRepository) Close() {}

func keyOf(title string, start time.Time) identityKey {
	return identityKey{title: strings.ToLower(title), start: start.UTC().UnixNano()}
}

func (r *MemoryRepository) Upsert(ctx context.Context, event *models.NormalizedEvent) (id int64, err error) {
	defer func(started time.Time) { observe("upsert", started, err) }(time.Now())

	if err := ctx.Err(); err != nil {
		return 0, &StorageError{Op: "upsert", Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	key := keyOf(event.Title, event.StartUTC)

	if id, ok := r.index[key]; ok {
		stored := r.events[id]
		// updated_at strictly advances even when the clock has not.
		if !now.After(stored.UpdatedAt) {
			now = stored.UpdatedAt.Add(time.Microsecond)
		}
		stored.EndUTC = utcPtr(event.EndUTC)
		stored.Location = copyPtr(event.Location)
		stored.Capacity = copyPtr(event.Capacity)
		stored.Description = copyPtr(event.Description)
		stored.Notes = copyPtr(event.Notes)
		stored.Raw = slices.Clone(event.Raw)
		stored.UpdatedAt = now
		return id, nil
	}

	id = r.nextID
	r.nextID++
	r.events[id] = &models.StoredEvent{
		ID:          id,
		Title:       event.Title,
		StartUTC:    event.StartUTC.UTC(),
		EndUTC:      utcPtr(event.EndUTC),
		Location:    copyPtr(event.Location),
		Capacity:    copyPtr(event.Capacity),
		Description: copyPtr(event.Description),
		Notes:       copyPtr(event.Notes),
		Raw:         slices.Clone(event.Raw),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.index[key] = id
	return id, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id int64) (*models.StoredEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	event, ok := r.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return cloneEvent(event), nil
}

func (r *MemoryRepository) ListUpcoming(ctx context.Context, limit int) iter.Seq2[*models.StoredEvent, error] {
	limit = normalizeLimit(limit)
	return func(yield func(*models.StoredEvent, error) bool) {
		started := time.Now()
		if err := ctx.Err(); err != nil {
			observe("list_upcoming", started, err)
			yield(nil, &StorageError{Op: "list upcoming", Err: err})
			return
		}

		cutoff := r.now().UTC()
		r.mu.RLock()
		var upcoming []*models.StoredEvent
		for _, e := range r.events {
			if !e.StartUTC.Before(cutoff) {
				upcoming = append(upcoming, cloneEvent(e))
			}
		}
		r.mu.RUnlock()
		observe("list_upcoming", started, nil)

		slices.SortFunc(upcoming, func(a, b *models.StoredEvent) int {
			return cmp.Or(a.StartUTC.Compare(b.StartUTC), cmp.Compare(a.ID, b.ID))
		})
		if len(upcoming) > limit {
			upcoming = upcoming[:limit]
		}

		for _, e := range upcoming {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (r *MemoryRepository) ListSorted(ctx context.Context, q models.SortedQuery) (result []*models.EventRow, err error) {
	rq, err := resolveSortedQuery(q)
	if err != nil {
		return nil, err
	}
	defer func(started time.Time) { observe("list_sorted", started, err) }(time.Now())

	r.mu.RLock()
	all := make([]*models.StoredEvent, 0, len(r.events))
	for _, e := range r.events {
		all = append(all, cloneEvent(e))
	}
	r.mu.RUnlock()

	slices.SortFunc(all, func(a, b *models.StoredEvent) int {
		c := cmp.Or(compareBy(a, b, rq.sortBy), cmp.Compare(a.ID, b.ID))
		if !rq.ascending {
			return -c
		}
		return c
	})

	if rq.offset >= len(all) {
		return []*models.EventRow{}, nil
	}
	page := all[rq.offset:min(rq.offset+rq.limit, len(all))]

	result = make([]*models.EventRow, 0, len(page))
	for _, e := range page {
		result = append(result, project(e, rq.columns))
	}
	return result, nil
}

func compareBy(a, b *models.StoredEvent, key string) int {
	switch key {
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return a.StartUTC.Compare(b.StartUTC)
	}
}

func (r *MemoryRepository) DeleteAll(ctx context.Context) (err error) {
	defer func(started time.Time) { observe("delete_all", started, err) }(time.Now())

	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = make(map[int64]*models.StoredEvent)
	r.index = make(map[identityKey]int64)
	r.nextID = 1
	return nil
}

func cloneEvent(e *models.StoredEvent) *models.StoredEvent {
	c := *e
	c.EndUTC = copyPtr(e.EndUTC)
	c.Location = copyPtr(e.Location)
	c.Capacity = copyPtr(e.Capacity)
	c.Description = copyPtr(e.Description)
	c.Notes = copyPtr(e.Notes)
	c.Raw = slices.Clone(e.Raw)
	return &c
}
