package repository

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/telhawk-systems/announcer/internal/models"
)

const (
	DefaultLimit = 5
	MaxLimit     = 100
	// MaxPage keeps page*limit far from overflowing an offset.
	MaxPage = 1_000_000
)

// Columns lists every column a sorted listing may select.
var Columns = []string{
	"id", "title", "start_ts", "end_ts", "location",
	"capacity", "description", "notes", "created_at", "updated_at",
}

// SortKeys lists the columns a sorted listing may order by.
var SortKeys = []string{"start_ts", "created_at", "updated_at"}

var DefaultColumns = []string{"id", "title"}

var columnAliases = map[string]string{
	"start_utc": "start_ts",
	"end_utc":   "end_ts",
}

// InvalidSortError is returned when a listing names a column or sort key
// outside the allow-list.
type InvalidSortError struct {
	Field string
	Value string
}

func (e *InvalidSortError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

// resolvedQuery is a SortedQuery whose identifiers all passed the allow-list.
type resolvedQuery struct {
	columns   []string
	sortBy    string
	ascending bool
	limit     int
	offset    int
}

func canonicalColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := columnAliases[name]; ok {
		return alias
	}
	return name
}

// resolveSortedQuery checks q against the allow-list. No identifier reaches a
// query unless it comes out of here.
func resolveSortedQuery(q models.SortedQuery) (*resolvedQuery, error) {
	sortBy := canonicalColumn(q.SortBy)
	if sortBy == "" {
		sortBy = "start_ts"
	}
	if !slices.Contains(SortKeys, sortBy) {
		return nil, &InvalidSortError{Field: "sort key", Value: q.SortBy}
	}

	requested := q.Columns
	if len(requested) == 0 {
		requested = DefaultColumns
	}
	columns := make([]string, 0, len(requested))
	for _, c := range requested {
		col := canonicalColumn(c)
		if !slices.Contains(Columns, col) {
			return nil, &InvalidSortError{Field: "column", Value: c}
		}
		if !slices.Contains(columns, col) {
			columns = append(columns, col)
		}
	}

	if q.Page > MaxPage {
		return nil, &InvalidSortError{Field: "page", Value: strconv.Itoa(q.Page)}
	}
	limit := normalizeLimit(q.Limit)
	page := max(q.Page, 0)

	return &resolvedQuery{
		columns:   columns,
		sortBy:    sortBy,
		ascending: q.Ascending,
		limit:     limit,
		offset:    page * limit,
	}, nil
}

// scanTarget returns the field of row that holds column.
func scanTarget(row *models.EventRow, column string) any {
	switch column {
	case "id":
		return &row.ID
	case "title":
		return &row.Title
	case "start_ts":
		return &row.StartUTC
	case "end_ts":
		return &row.EndUTC
	case "location":
		return &row.Location
	case "capacity":
		return &row.Capacity
	case "description":
		return &row.Description
	case "notes":
		return &row.Notes
	case "created_at":
		return &row.CreatedAt
	case "updated_at":
		return &row.UpdatedAt
	}
	return nil
}

// project copies the requested columns of event into a partial row.
func project(event *models.StoredEvent, columns []string) *models.EventRow {
	row := &models.EventRow{}
	for _, c := range columns {
		switch c {
		case "id":
			id := event.ID
			row.ID = &id
		case "title":
			title := event.Title
			row.Title = &title
		case "start_ts":
			start := event.StartUTC
			row.StartUTC = &start
		case "end_ts":
			row.EndUTC = copyPtr(event.EndUTC)
		case "location":
			row.Location = copyPtr(event.Location)
		case "capacity":
			row.Capacity = copyPtr(event.Capacity)
		case "description":
			row.Description = copyPtr(event.Description)
		case "notes":
			row.Notes = copyPtr(event.Notes)
		case "created_at":
			created := event.CreatedAt
			row.CreatedAt = &created
		case "updated_at":
			updated := event.UpdatedAt
			row.UpdatedAt = &updated
		}
	}
	return row
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
