// Package engine applies changes to an innings and recomputes its derived
// state under optimistic concurrency.
//
// Every mutation is a read-modify-write: read the document and its version,
// change it, rerun the aggregator over the whole history, and write back on
// condition that the version is unchanged. A lost race is retried from a
// fresh read, a bounded number of times.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/aggregator"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/retry"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/store"
	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

// Operation names used in logs and metrics
const (
	opStart     = "start"
	opAppend    = "append"
	opRecompute = "recompute"
	opSetTarget = "set_target"
	opArchive   = "archive"
)

// Store is the versioned document store the engine serializes through
type Store interface {
	Create(ctx context.Context, doc store.Document) error
	Read(ctx context.Context, key models.InningsKey) (store.Document, error)
	Write(ctx context.Context, doc store.Document, expectedVersion int64) error
	ListInnings(ctx context.Context, matchID string) ([]int, error)
}

// Publisher receives every committed state
type Publisher interface {
	Publish(state models.DerivedInningsState)
}

// Archiver keeps closed innings beyond the live store. LoadInnings returns
// store.ErrNotFound for an innings it never archived.
type Archiver interface {
	ArchiveInnings(ctx context.Context, doc store.Document) error
	LoadInnings(ctx context.Context, key models.InningsKey) (models.DerivedInningsState, error)
}

// Engine is the recalculation engine
type Engine struct {
	store     Store
	publisher Publisher
	archiver  Archiver
	logger    *slog.Logger
	metrics   *metrics.Metrics
	policy    *retry.Policy
	agg       aggregator.Context
}

// New creates an engine over s
func New(s Store, opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return &Engine{
		store:     s,
		publisher: o.publisher,
		archiver:  o.archiver,
		logger:    o.logger,
		metrics:   o.metrics,
		policy: retry.NewPolicy(o.maxAttempts, o.backoff, func(err error) bool {
			return errors.Is(err, store.ErrVersionConflict)
		}),
		agg: aggregator.Context{
			RecentOvers: o.recentOvers,
			Rules:       o.rules,
		},
	}
}

// StartInnings creates an empty innings with its match settings
func (e *Engine) StartInnings(ctx context.Context, key models.InningsKey, ictx models.InningsContext) (models.DerivedInningsState, error) {
	if err := key.Validate(); err != nil {
		return models.DerivedInningsState{}, err
	}
	if err := ictx.Validate(); err != nil {
		return models.DerivedInningsState{}, err
	}

	start := time.Now()
	doc := store.Document{
		Key:        key,
		Version:    1,
		Status:     models.InningsLive,
		Context:    ictx,
		Deliveries: []models.Delivery{},
	}
	state := e.aggregate(doc)
	doc.State = &state

	if err := e.store.Create(ctx, doc); err != nil {
		if errors.Is(err, store.ErrExists) {
			err = fmt.Errorf("%w: %s", ErrInningsExists, key)
		}
		e.metrics.ObserveMutation(opStart, resultOf(err), 1, time.Since(start))
		return models.DerivedInningsState{}, err
	}

	e.metrics.ObserveMutation(opStart, "committed", 1, time.Since(start))
	e.logger.Info("innings started", "innings", key.String(), "overs_limit", ictx.OversLimit)
	e.publish(state)
	return state, nil
}

// Recalculate appends newDelivery, when given, and recomputes the innings.
// With a nil delivery it recomputes the stored history only. The delivery's
// sequence number is assigned from its position in the history.
func (e *Engine) Recalculate(ctx context.Context, key models.InningsKey, newDelivery *models.Delivery) (models.DerivedInningsState, error) {
	if err := key.Validate(); err != nil {
		return models.DerivedInningsState{}, err
	}

	op := opRecompute
	var d models.Delivery
	if newDelivery != nil {
		if err := newDelivery.Validate(); err != nil {
			e.metrics.ObserveMutation(opAppend, "invalid", 0, 0)
			return models.DerivedInningsState{}, err
		}
		op = opAppend
		d = *newDelivery
		if d.Extras.Kind == "" {
			d.Extras.Kind = models.ExtraNone
		}
	}

	doc, err := e.mutate(ctx, op, key, func(doc *store.Document) error {
		if doc.Archived() {
			return fmt.Errorf("%w: %s", ErrInningsArchived, key)
		}
		if newDelivery == nil {
			return nil
		}
		if err := checkOrdering(doc.Deliveries, d); err != nil {
			return err
		}
		next := d
		next.SequenceNumber = len(doc.Deliveries)
		doc.Deliveries = append(doc.Deliveries, next)
		return nil
	})
	if err != nil {
		return models.DerivedInningsState{}, err
	}
	return *doc.State, nil
}

// SetTarget records the chase target and recomputes the innings
func (e *Engine) SetTarget(ctx context.Context, key models.InningsKey, target int) (models.DerivedInningsState, error) {
	if err := key.Validate(); err != nil {
		return models.DerivedInningsState{}, err
	}
	if err := (models.InningsContext{Target: &target}).Validate(); err != nil {
		return models.DerivedInningsState{}, err
	}

	doc, err := e.mutate(ctx, opSetTarget, key, func(doc *store.Document) error {
		if doc.Archived() {
			return fmt.Errorf("%w: %s", ErrInningsArchived, key)
		}
		t := target
		doc.Context.Target = &t
		return nil
	})
	if err != nil {
		return models.DerivedInningsState{}, err
	}
	return *doc.State, nil
}

// Archive closes the innings to further changes and copies it to the
// archive. Archiving an archived innings repeats only the copy.
func (e *Engine) Archive(ctx context.Context, key models.InningsKey) (models.DerivedInningsState, error) {
	if e.archiver == nil {
		return models.DerivedInningsState{}, ErrArchiveDisabled
	}
	if err := key.Validate(); err != nil {
		return models.DerivedInningsState{}, err
	}

	doc, err := e.read(ctx, key)
	if err != nil {
		return models.DerivedInningsState{}, err
	}
	if !doc.Archived() {
		doc, err = e.mutate(ctx, opArchive, key, func(doc *store.Document) error {
			doc.Status = models.InningsArchived
			return nil
		})
		if err != nil {
			return models.DerivedInningsState{}, err
		}
	}
	if doc.State == nil {
		state := e.aggregate(doc)
		doc.State = &state
	}

	err = e.archiver.ArchiveInnings(ctx, doc)
	e.metrics.ObserveArchive(err)
	if err != nil {
		e.logger.Error("archive failed", "innings", key.String(), "version", doc.Version, "error", err)
		return models.DerivedInningsState{}, fmt.Errorf("archiving innings %s: %w", key, err)
	}

	e.logger.Info("innings archived", "innings", key.String(), "version", doc.Version, "deliveries", len(doc.Deliveries))
	return *doc.State, nil
}

// State returns the last committed state, falling back to the archive for
// innings no longer held by the live store
func (e *Engine) State(ctx context.Context, key models.InningsKey) (models.DerivedInningsState, error) {
	if err := key.Validate(); err != nil {
		return models.DerivedInningsState{}, err
	}

	doc, err := e.store.Read(ctx, key)
	if err == nil {
		if doc.State != nil {
			return *doc.State, nil
		}
		return e.aggregate(doc), nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return models.DerivedInningsState{}, err
	}

	if e.archiver != nil {
		state, aerr := e.archiver.LoadInnings(ctx, key)
		if aerr == nil {
			return state, nil
		}
		if !errors.Is(aerr, store.ErrNotFound) {
			return models.DerivedInningsState{}, aerr
		}
	}
	return models.DerivedInningsState{}, fmt.Errorf("%w: %s", ErrInningsNotFound, key)
}

// Deliveries returns the stored delivery history in sequence order
func (e *Engine) Deliveries(ctx context.Context, key models.InningsKey) ([]models.Delivery, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	doc, err := e.read(ctx, key)
	if err != nil {
		return nil, err
	}
	return doc.Deliveries, nil
}

// Innings lists the innings numbers started for a match
func (e *Engine) Innings(ctx context.Context, matchID string) ([]int, error) {
	return e.store.ListInnings(ctx, matchID)
}

// mutate runs change inside the bounded optimistic transaction loop and
// returns the committed document
func (e *Engine) mutate(ctx context.Context, op string, key models.InningsKey, change func(doc *store.Document) error) (store.Document, error) {
	start := time.Now()
	var committed store.Document

	attempts, err := e.policy.Execute(ctx, func(attempt int) error {
		doc, err := e.read(ctx, key)
		if err != nil {
			return err
		}

		expected := doc.Version
		if err := change(&doc); err != nil {
			return err
		}

		doc.Version = expected + 1
		state := e.aggregate(doc)
		doc.State = &state

		if err := e.store.Write(ctx, doc, expected); err != nil {
			switch {
			case errors.Is(err, store.ErrVersionConflict):
				e.metrics.IncConflict(op)
				e.logger.Debug("version conflict",
					"op", op,
					"innings", key.String(),
					"expected_version", expected,
					"attempt", attempt,
				)
			case errors.Is(err, store.ErrNotFound):
				return fmt.Errorf("%w: %s", ErrInningsNotFound, key)
			}
			return err
		}

		committed = doc
		return nil
	})

	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, retry.ErrExhausted) {
			err = fmt.Errorf("%w: %s after %d attempts", ErrConflictExhausted, key, attempts)
		}
		e.metrics.ObserveMutation(op, resultOf(err), attempts, elapsed)
		e.logFailure(op, key, attempts, err)
		return store.Document{}, err
	}

	e.metrics.ObserveMutation(op, "committed", attempts, elapsed)
	e.logger.Debug("innings committed",
		"op", op,
		"innings", key.String(),
		"version", committed.Version,
		"attempts", attempts,
		"duration_ms", elapsed.Milliseconds(),
	)
	e.publish(*committed.State)
	return committed, nil
}

func (e *Engine) read(ctx context.Context, key models.InningsKey) (store.Document, error) {
	doc, err := e.store.Read(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Document{}, fmt.Errorf("%w: %s", ErrInningsNotFound, key)
		}
		return store.Document{}, err
	}
	return doc, nil
}

// aggregate rebuilds the state of doc and stamps its identity and version
func (e *Engine) aggregate(doc store.Document) models.DerivedInningsState {
	ctx := e.agg
	ctx.OversLimit = doc.Context.OversLimit
	ctx.Target = doc.Context.Target

	state := aggregator.Aggregate(doc.Deliveries, ctx)
	state.MatchID = doc.Key.MatchID
	state.Inning = doc.Key.Inning
	state.Version = doc.Version
	return state
}

func (e *Engine) publish(state models.DerivedInningsState) {
	if e.publisher == nil {
		return
	}
	e.publisher.Publish(state)
}

func (e *Engine) logFailure(op string, key models.InningsKey, attempts int, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, ErrInningsArchived),
		errors.Is(err, ErrInningsNotFound):
		e.logger.Info("innings change rejected", "op", op, "innings", key.String(), "reason", err)
	case errors.Is(err, ErrConflictExhausted):
		e.logger.Warn("innings change gave up", "op", op, "innings", key.String(), "attempts", attempts)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		e.logger.Info("innings change cancelled", "op", op, "innings", key.String(), "attempts", attempts)
	default:
		e.logger.Error("innings change failed", "op", op, "innings", key.String(), "error", err)
	}
}

// resultOf names the metric outcome of a failed operation
func resultOf(err error) string {
	var verr *models.ValidationError
	switch {
	case err == nil:
		return "committed"
	case errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, ErrConflictExhausted):
		return "conflict_exhausted"
	case errors.Is(err, ErrInningsArchived):
		return "archived"
	case errors.Is(err, ErrInningsNotFound):
		return "not_found"
	case errors.Is(err, ErrInningsExists):
		return "exists"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "store_error"
}
