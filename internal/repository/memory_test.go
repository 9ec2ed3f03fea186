package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/announcer/internal/models"
)

// fakeClock hands out a fixed instant that tests advance by hand.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newEvent(title string, start time.Time) *models.NormalizedEvent {
	end := start.Add(2 * time.Hour)
	return &models.NormalizedEvent{
		Title:       title,
		StartUTC:    start.UTC(),
		EndUTC:      &end,
		Location:    models.StringPtr("The Hall, Victoria, British Columbia, Canada"),
		Capacity:    models.IntPtr(80),
		Description: models.StringPtr("Queer dance party."),
		Raw:         json.RawMessage(`{"title":"` + title + `"}`),
	}
}

func TestMemoryRepository_UpsertIdempotent(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)}
	repo := NewMemoryRepositoryWithClock(clock.Now)
	ctx := context.Background()
	start := time.Date(2025, 8, 12, 5, 0, 0, 0, time.UTC)

	id1, err := repo.Upsert(ctx, newEvent("Dance Night", start))
	require.NoError(t, err)
	first, err := repo.GetByID(ctx, id1)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	updated := newEvent("Dance Night", start)
	updated.Notes = models.StringPtr("19+")
	id2, err := repo.Upsert(ctx, updated)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	second, err := repo.GetByID(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.Equal(t, "19+", *second.Notes)

	all, err := repo.ListSorted(ctx, models.SortedQuery{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoryRepository_UpdatedAtAdvancesWithFrozenClock(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)}
	repo := NewMemoryRepositoryWithClock(clock.Now)
	ctx := context.Background()
	event := newEvent("Dance Night", time.Date(2025, 8, 12, 5, 0, 0, 0, time.UTC))

	id, err := repo.Upsert(ctx, event)
	require.NoError(t, err)
	before, _ := repo.GetByID(ctx, id)

	_, err = repo.Upsert(ctx, event)
	require.NoError(t, err)
	after, _ := repo.GetByID(ctx, id)

	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
}

func TestMemoryRepository_IdentityIsCaseInsensitive(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	start := time.Now().Add(24 * time.Hour)

	id1, err := repo.Upsert(ctx, newEvent("Dance Night", start))
	require.NoError(t, err)
	id2, err := repo.Upsert(ctx, newEvent("dance night", start))
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	stored, err := repo.GetByID(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "Dance Night", stored.Title)

	// Same title at a different instant is a different event.
	id3, err := repo.Upsert(ctx, newEvent("Dance Night", start.Add(time.Hour)))
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)
}

func TestMemoryRepository_ListUpcoming(t *testing.T) {
	now := time.Date(2025, 8, 11, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: now}
	repo := NewMemoryRepositoryWithClock(clock.Now)
	ctx := context.Background()

	for i, title := range []string{"Third", "First", "Second"} {
		offsets := []time.Duration{3 * time.Hour, time.Hour, 2 * time.Hour}
		_, err := repo.Upsert(ctx, newEvent(title, now.Add(offsets[i])))
		require.NoError(t, err)
	}
	_, err := repo.Upsert(ctx, newEvent("Past", now.Add(-time.Hour)))
	require.NoError(t, err)

	seq := repo.ListUpcoming(ctx, 2)
	events, err := Collect(seq)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "First", events[0].Title)
	assert.Equal(t, "Second", events[1].Title)

	// The sequence is restartable and re-reads the store.
	_, err = repo.Upsert(ctx, newEvent("Sooner", now.Add(30*time.Minute)))
	require.NoError(t, err)
	again, err := Collect(seq)
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.Equal(t, "Sooner", again[0].Title)
	assert.Equal(t, "First", again[1].Title)

	// Stopping early is fine.
	count := 0
	for range seq {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestMemoryRepository_ListUpcomingEmpty(t *testing.T) {
	repo := NewMemoryRepository()
	events, err := Collect(repo.ListUpcoming(context.Background(), 5))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMemoryRepository_ListSorted(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)}
	repo := NewMemoryRepositoryWithClock(clock.Now)
	ctx := context.Background()
	base := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	// Created in reverse start order.
	for i := 5; i >= 1; i-- {
		_, err := repo.Upsert(ctx, newEvent(fmt.Sprintf("Event %d", i), base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	rows, err := repo.ListSorted(ctx, models.SortedQuery{SortBy: "start_utc", Ascending: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Event 1", *rows[0].Title)
	assert.Equal(t, "Event 2", *rows[1].Title)
	assert.NotNil(t, rows[0].ID)
	assert.Nil(t, rows[0].StartUTC, "unrequested columns stay empty")

	rows, err = repo.ListSorted(ctx, models.SortedQuery{SortBy: "start_ts", Ascending: true, Limit: 2, Page: 2})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Event 5", *rows[0].Title)

	rows, err = repo.ListSorted(ctx, models.SortedQuery{
		Columns: []string{"title", "created_at", "capacity"},
		SortBy:  "created_at",
		Limit:   5,
	})
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Event 1", *rows[0].Title, "descending created_at puts the newest first")
	assert.Equal(t, 80, *rows[0].Capacity)
	assert.Nil(t, rows[0].ID)

	rows, err = repo.ListSorted(ctx, models.SortedQuery{Limit: 5, Page: 10})
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = repo.ListSorted(ctx, models.SortedQuery{Limit: MaxLimit, Page: MaxPage})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMemoryRepository_ListSortedRejectsDisallowedIdentifiers(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	tests := []struct {
		name  string
		query models.SortedQuery
		field string
	}{
		{"injection in sort key", models.SortedQuery{SortBy: "drop table events"}, "sort key"},
		{"non-sortable column", models.SortedQuery{SortBy: "title"}, "sort key"},
		{"unknown column", models.SortedQuery{Columns: []string{"id", "raw"}}, "column"},
		{"injection in column", models.SortedQuery{Columns: []string{"id; DELETE FROM events"}}, "column"},
		{"page past the offset bound", models.SortedQuery{Limit: MaxLimit, Page: math.MaxInt / 64}, "page"},
		{"page just past MaxPage", models.SortedQuery{Limit: 1, Page: MaxPage + 1}, "page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := repo.ListSorted(ctx, tt.query)
			assert.Nil(t, rows)

			var serr *InvalidSortError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, tt.field, serr.Field)
		})
	}
}

func TestMemoryRepository_DeleteAllResetsIDs(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	start := time.Now().Add(time.Hour)

	_, err := repo.Upsert(ctx, newEvent("A", start))
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, newEvent("B", start))
	require.NoError(t, err)

	require.NoError(t, repo.DeleteAll(ctx))

	events, err := Collect(repo.ListUpcoming(ctx, 10))
	require.NoError(t, err)
	assert.Empty(t, events)

	id, err := repo.Upsert(ctx, newEvent("C", start))
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestMemoryRepository_ConcurrentUpsertsSameIdentity(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	start := time.Now().Add(time.Hour)

	const workers = 20
	ids := make([]int64, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			event := newEvent("Dance Night", start)
			event.Capacity = models.IntPtr(i)
			id, err := repo.Upsert(ctx, event)
			assert.NoError(t, err)
			ids[i] = id
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	events, err := Collect(repo.ListUpcoming(ctx, 10))
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestMemoryRepository_GetByIDNotFound(t *testing.T) {
	repo := NewMemoryRepository()
	_, err := repo.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestMemoryRepository_StoredCopiesAreIndependent(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	event := newEvent("A", time.Now().Add(time.Hour))

	id, err := repo.Upsert(ctx, event)
	require.NoError(t, err)
	*event.Location = "changed"

	stored, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "The Hall, Victoria, British Columbia, Canada", *stored.Location)
}
