// Package extractor turns a free-text announcement into a normalized event
// by asking the oracle for structured JSON, validating the reply and
// reconciling its timestamps.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/telhawk-systems/announcer/internal/logging"
	"github.com/telhawk-systems/announcer/internal/metrics"
	"github.com/telhawk-systems/announcer/internal/models"
	"github.com/telhawk-systems/announcer/internal/oracle"
	"github.com/telhawk-systems/announcer/internal/temporal"
	"github.com/telhawk-systems/announcer/internal/validator"
)

// ErrEmptyAnnouncement is returned when there is no text to extract from.
var ErrEmptyAnnouncement = errors.New("announcement text is empty")

// Kind classifies an extraction failure.
type Kind string

const (
	KindOracleUnavailable Kind = "oracle_unavailable"
	KindUnparsableReply   Kind = "unparsable_reply"
	KindSchema            Kind = "schema"
	KindTemporal          Kind = "temporal"
)

// ExtractionError reports why an announcement could not be turned into an event.
// Err is a *validator.SchemaError for KindSchema and a *temporal.TemporalError
// for KindTemporal.
type ExtractionError struct {
	Kind Kind
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed (%s): %v", e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Config holds the fixed parameters of every oracle request.
type Config struct {
	DefaultLocation string
	MaxTokens       int
	// Timeout bounds a single oracle call.
	Timeout time.Duration
}

// Orchestrator runs one extraction per call and keeps no state between calls.
type Orchestrator struct {
	oracle oracle.Oracle
	cfg    Config
	logger *logging.Logger
}

func New(o oracle.Oracle, cfg Config, logger *logging.Logger) *Orchestrator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{oracle: o, cfg: cfg, logger: logger}
}

// BuildRequest assembles the oracle request for an announcement.
func (o *Orchestrator) BuildRequest(announcement string, referenceDate time.Time, loc *time.Location) oracle.Request {
	return oracle.Request{
		Instructions: Instructions(loc.String(), referenceDate, o.cfg.DefaultLocation),
		Schema:       EventSchema,
		Input:        announcement,
		Temperature:  0,
		MaxTokens:    o.cfg.MaxTokens,
	}
}

// Extract asks the oracle to structure announcement and returns the
// normalized event. Nothing is persisted.
//
// If ctx is cancelled by the caller, ctx.Err() is returned unwrapped.
func (o *Orchestrator) Extract(ctx context.Context, announcement string, referenceDate time.Time, loc *time.Location) (*models.NormalizedEvent, error) {
	announcement = strings.TrimSpace(announcement)
	if announcement == "" {
		return nil, ErrEmptyAnnouncement
	}
	if loc == nil {
		loc = time.UTC
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	started := time.Now()
	raw, err := o.oracle.Infer(callCtx, o.BuildRequest(announcement, referenceDate, loc))
	metrics.OracleDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.ExtractionsTotal.WithLabelValues("cancelled").Inc()
			return nil, ctxErr
		}
		return nil, o.fail(ctx, KindOracleUnavailable, err)
	}

	if !json.Valid(raw) {
		return nil, o.fail(ctx, KindUnparsableReply, fmt.Errorf("reply is not valid JSON: %.120q", raw))
	}

	candidate, err := validator.Validate(raw)
	if err != nil {
		return nil, o.fail(ctx, KindSchema, err)
	}

	event, err := temporal.Normalize(candidate, raw, loc)
	if err != nil {
		return nil, o.fail(ctx, KindTemporal, err)
	}

	o.audit(ctx, event)
	metrics.ExtractionsTotal.WithLabelValues("success").Inc()
	return event, nil
}

func (o *Orchestrator) fail(ctx context.Context, kind Kind, err error) error {
	metrics.ExtractionsTotal.WithLabelValues(string(kind)).Inc()
	o.logger.WarnContext(ctx, "extraction failed", logging.Kind(string(kind)), logging.Error(err))
	return &ExtractionError{Kind: kind, Err: err}
}

func (o *Orchestrator) audit(ctx context.Context, event *models.NormalizedEvent) {
	if event.EndUTC == nil {
		return
	}
	attrs := []any{logging.Title(event.Title), logging.Start(event.StartUTC), logging.End(*event.EndUTC)}
	if event.Audit.RolledOver {
		metrics.TemporalFlags.WithLabelValues("rolled_over").Inc()
		o.logger.InfoContext(ctx, "end time rolled over to the next day", attrs...)
	}
	if event.Audit.LongSpan {
		metrics.TemporalFlags.WithLabelValues("long_span").Inc()
		o.logger.WarnContext(ctx, "event spans more than 24h, check for a mis-parsed clock time", attrs...)
	}
}
