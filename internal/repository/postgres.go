package repository

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/telhawk-systems/announcer/internal/models"
)

const eventColumns = `id, title, start_ts, end_ts, location, capacity, description, notes, raw, created_at, updated_at`

type PostgresRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Connection pool configuration
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool, now: time.Now}, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// Ping checks that the database is reachable.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Upsert is a single INSERT ... ON CONFLICT statement, so concurrent callers
// racing on one identity key serialize on the unique index and exactly one
// row survives. The stored title keeps the casing of the first insert.
func (r *PostgresRepository) Upsert(ctx context.Context, event *models.NormalizedEvent) (id int64, err error) {
	defer func(started time.Time) { observe("upsert", started, err) }(time.Now())

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var raw []byte
	if len(event.Raw) > 0 {
		raw = event.Raw
	}

	query := `
		INSERT INTO events (title, start_ts, end_ts, location, capacity, description, notes, raw, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, clock_timestamp(), clock_timestamp())
		ON CONFLICT (lower(title), start_ts)
		DO UPDATE SET
			end_ts      = EXCLUDED.end_ts,
			location    = EXCLUDED.location,
			capacity    = EXCLUDED.capacity,
			description = EXCLUDED.description,
			notes       = EXCLUDED.notes,
			raw         = EXCLUDED.raw,
			updated_at  = clock_timestamp()
		RETURNING id
	`

	err = r.pool.QueryRow(ctx, query,
		event.Title,
		event.StartUTC.UTC(),
		utcPtr(event.EndUTC),
		event.Location,
		event.Capacity,
		event.Description,
		event.Notes,
		raw,
	).Scan(&id)
	if err != nil {
		return 0, &StorageError{Op: "upsert", Err: err}
	}

	return id, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.StoredEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, &StorageError{Op: "get", Err: err}
	}
	return event, nil
}

func (r *PostgresRepository) ListUpcoming(ctx context.Context, limit int) iter.Seq2[*models.StoredEvent, error] {
	limit = normalizeLimit(limit)
	return func(yield func(*models.StoredEvent, error) bool) {
		started := time.Now()

		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()

		query := `
			SELECT ` + eventColumns + `
			FROM events
			WHERE start_ts >= $1
			ORDER BY start_ts ASC, id ASC
			LIMIT $2
		`

		rows, err := r.pool.Query(ctx, query, r.now().UTC(), limit)
		if err != nil {
			observe("list_upcoming", started, err)
			yield(nil, &StorageError{Op: "list upcoming", Err: err})
			return
		}
		defer rows.Close()

		for rows.Next() {
			event, err := scanEvent(rows)
			if err != nil {
				observe("list_upcoming", started, err)
				yield(nil, &StorageError{Op: "list upcoming", Err: err})
				return
			}
			if !yield(event, nil) {
				observe("list_upcoming", started, nil)
				return
			}
		}
		err = rows.Err()
		observe("list_upcoming", started, err)
		if err != nil {
			yield(nil, &StorageError{Op: "list upcoming", Err: err})
		}
	}
}

func (r *PostgresRepository) ListSorted(ctx context.Context, q models.SortedQuery) (result []*models.EventRow, err error) {
	// Allow-list check happens before any round trip.
	rq, err := resolveSortedQuery(q)
	if err != nil {
		return nil, err
	}
	defer func(started time.Time) { observe("list_sorted", started, err) }(time.Now())

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	idents := make([]string, len(rq.columns))
	for i, c := range rq.columns {
		idents[i] = pgx.Identifier{c}.Sanitize()
	}
	order := "ASC"
	if !rq.ascending {
		order = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM events
		ORDER BY %s %s, id %s
		LIMIT $1 OFFSET $2
	`, strings.Join(idents, ", "), pgx.Identifier{rq.sortBy}.Sanitize(), order, order)

	rows, err := r.pool.Query(ctx, query, rq.limit, rq.offset)
	if err != nil {
		return nil, &StorageError{Op: "list sorted", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		row := &models.EventRow{}
		targets := make([]any, len(rq.columns))
		for i, c := range rq.columns {
			targets[i] = scanTarget(row, c)
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, &StorageError{Op: "list sorted", Err: err}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list sorted", Err: err}
	}

	return result, nil
}

// DeleteAll truncates the table and restarts the id sequence.
func (r *PostgresRepository) DeleteAll(ctx context.Context) (err error) {
	defer func(started time.Time) { observe("delete_all", started, err) }(time.Now())

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err = r.pool.Exec(ctx, `TRUNCATE events RESTART IDENTITY`); err != nil {
		return &StorageError{Op: "delete all", Err: err}
	}
	return nil
}

func scanEvent(row pgx.Row) (*models.StoredEvent, error) {
	var e models.StoredEvent
	var raw []byte
	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.StartUTC,
		&e.EndUTC,
		&e.Location,
		&e.Capacity,
		&e.Description,
		&e.Notes,
		&raw,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.StartUTC = e.StartUTC.UTC()
	e.EndUTC = utcPtr(e.EndUTC)
	e.Raw = raw
	return &e, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
