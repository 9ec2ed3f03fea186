package service

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/telhawk-systems/announcer/internal/cache"
	"github.com/telhawk-systems/announcer/internal/format"
	"github.com/telhawk-systems/announcer/internal/logging"
	"github.com/telhawk-systems/announcer/internal/messaging"
	"github.com/telhawk-systems/announcer/internal/metrics"
	"github.com/telhawk-systems/announcer/internal/middleware"
	"github.com/telhawk-systems/announcer/internal/models"
	"github.com/telhawk-systems/announcer/internal/repository"
)

// Extractor turns announcement text into a normalized event.
type Extractor interface {
	Extract(ctx context.Context, announcement string, referenceDate time.Time, loc *time.Location) (*models.NormalizedEvent, error)
}

type Config struct {
	// Location is assumed for announcement times without an offset.
	Location *time.Location
	// ReferenceDate returns the default reference date at now.
	ReferenceDate func(now time.Time) time.Time
	// Model names the oracle model; it is part of the cache key.
	Model     string
	ListLimit int
}

type Service struct {
	extractor Extractor
	repo      repository.Repository
	formatter *format.Formatter
	cache     *cache.ExtractionCache
	publisher messaging.Publisher
	subjects  messaging.Subjects
	cfg       Config
	logger    *logging.Logger
	now       func() time.Time
}

type Option func(*Service)

// WithCache enables the extraction cache.
func WithCache(c *cache.ExtractionCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithPublisher publishes conversation results on subjects.
func WithPublisher(p messaging.Publisher, subjects messaging.Subjects) Option {
	return func(s *Service) {
		s.publisher = p
		s.subjects = subjects
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(ex Extractor, repo repository.Repository, formatter *format.Formatter, cfg Config, logger *logging.Logger, opts ...Option) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = repository.DefaultLimit
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		extractor: ex,
		repo:      repo,
		formatter: formatter,
		publisher: messaging.NoopPublisher{},
		subjects:  messaging.NewSubjects(""),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReferenceDate returns the reference date used when a caller gives none.
func (s *Service) ReferenceDate() time.Time {
	now := s.now()
	if s.cfg.ReferenceDate != nil {
		return s.cfg.ReferenceDate(now)
	}
	y, m, d := now.In(s.cfg.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.cfg.Location)
}

// Location returns the extraction timezone.
func (s *Service) Location() *time.Location {
	return s.cfg.Location
}

// BeginExtraction extracts an event from text and saves it. A zero
// referenceDate selects the configured one.
//
// Extraction failures are returned as they come from the extractor.
// A storage failure after a successful extraction is a *PersistError.
// Nothing is written once ctx is cancelled.
func (s *Service) BeginExtraction(ctx context.Context, text string, referenceDate time.Time) (*models.ExtractionResponse, error) {
	if referenceDate.IsZero() {
		referenceDate = s.ReferenceDate()
	}
	loc := s.cfg.Location
	logger := s.logger.With(logging.Timezone(loc.String()), logging.ReferenceDate(referenceDate))

	key := cache.Key(s.cfg.Model, loc.String(), referenceDate, text)
	event, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.WarnContext(ctx, "extraction cache lookup failed", logging.Error(err))
	}

	if !hit {
		event, err = s.extractor.Extract(ctx, text, referenceDate, loc)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, key, event); err != nil {
			logger.WarnContext(ctx, "failed to cache extraction", logging.Error(err))
		}
	} else {
		logger.DebugContext(ctx, "extraction cache hit", logging.Title(event.Title))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id, err := s.repo.Upsert(ctx, event)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		logger.ErrorContext(ctx, "failed to save extracted event", logging.Title(event.Title), logging.Error(err))
		return nil, &PersistError{Event: event, Err: err}
	}

	logger.InfoContext(ctx, "event saved",
		logging.EventID(id),
		logging.Title(event.Title),
		logging.Start(event.StartUTC),
	)

	return &models.ExtractionResponse{
		ID:    id,
		Event: event,
		Text:  s.formatter.FormatConfirmation(event, id),
	}, nil
}

// UpcomingEvents returns the lazy upcoming sequence of the store.
func (s *Service) UpcomingEvents(ctx context.Context, limit int) iter.Seq2[*models.StoredEvent, error] {
	if limit <= 0 {
		limit = s.cfg.ListLimit
	}
	return s.repo.ListUpcoming(ctx, limit)
}

// ListUpcoming returns the next events and their rendered listing.
func (s *Service) ListUpcoming(ctx context.Context, limit int) (*models.UpcomingResponse, error) {
	events, err := repository.Collect(s.UpcomingEvents(ctx, limit))
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*models.StoredEvent{}
	}
	return &models.UpcomingResponse{
		Events: events,
		Text:   s.formatter.FormatList(events),
	}, nil
}

// ListSorted returns one page of partial rows. Disallowed columns or sort
// keys fail with *repository.InvalidSortError before the store is queried.
func (s *Service) ListSorted(ctx context.Context, q models.SortedQuery) (*models.SortedResponse, error) {
	if q.Limit <= 0 {
		q.Limit = s.cfg.ListLimit
	}
	rows, err := s.repo.ListSorted(ctx, q)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []*models.EventRow{}
	}
	return &models.SortedResponse{
		Rows:  rows,
		Page:  max(q.Page, 0),
		Limit: min(q.Limit, repository.MaxLimit),
	}, nil
}

func (s *Service) GetEvent(ctx context.Context, id int64) (*models.StoredEvent, error) {
	return s.repo.GetByID(ctx, id)
}

// DeleteAll clears the store and the extraction cache.
func (s *Service) DeleteAll(ctx context.Context) error {
	if err := s.repo.DeleteAll(ctx); err != nil {
		return err
	}
	if err := s.cache.Purge(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to purge extraction cache", logging.Error(err))
	}
	s.logger.WarnContext(ctx, "all events deleted")
	return nil
}

// HandleConversation processes the flushed messages of a conversation and
// publishes the outcome. It is the flush function of the debouncer.
func (s *Service) HandleConversation(ctx context.Context, conversationID, text string) {
	if middleware.GetConversationID(ctx) == "" {
		ctx = middleware.WithConversationID(ctx, conversationID)
	}
	logger := s.logger

	resp, err := s.BeginExtraction(ctx, text, time.Time{})
	if err != nil && ctx.Err() != nil {
		logger.InfoContext(ctx, "conversation cancelled before completion")
		return
	}

	result := messaging.ExtractionResult{
		ConversationID: conversationID,
		Timestamp:      s.now().UTC(),
	}
	if err != nil {
		result.Status = messaging.StatusFailed
		result.Kind = ErrorKind(err)
		result.Text = UserMessage(err)
		logger.WarnContext(ctx, "conversation extraction failed", logging.Kind(result.Kind), logging.Error(err))
	} else {
		result.Status = messaging.StatusSaved
		result.EventID = resp.ID
		result.Text = resp.Text
	}

	subject := s.subjects.ResultSubject(result.Status)
	if err := s.publisher.PublishJSON(context.WithoutCancel(ctx), subject, result); err != nil {
		metrics.PublishedMessages.WithLabelValues(subject, "error").Inc()
		logger.ErrorContext(ctx, "failed to publish extraction result", "subject", subject, logging.Error(err))
		return
	}
	metrics.PublishedMessages.WithLabelValues(subject, "success").Inc()
}
