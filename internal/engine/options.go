package engine

import (
	"log/slog"
	"time"

	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/aggregator"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/retry"
)

// Defaults used when the matching option is not given
const (
	DefaultMaxAttempts = 8
	DefaultBackoffBase = 10 * time.Millisecond
	DefaultBackoffMax  = 500 * time.Millisecond
	DefaultRecentOvers = 12
)

type options struct {
	publisher   Publisher
	archiver    Archiver
	logger      *slog.Logger
	metrics     *metrics.Metrics
	maxAttempts int
	backoff     retry.BackoffFunc
	rules       aggregator.Rules
	recentOvers int
}

// Option configures an Engine
type Option func(*options)

// WithPublisher sets where committed states are announced
func WithPublisher(p Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithArchiver enables Archive and the archived-state fallback of State
func WithArchiver(a Archiver) Option {
	return func(o *options) { o.archiver = a }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithMaxAttempts bounds the transaction attempts per operation
func WithMaxAttempts(n int) Option {
	return func(o *options) { o.maxAttempts = n }
}

// WithBackoff sets the wait between conflicting attempts
func WithBackoff(b retry.BackoffFunc) Option {
	return func(o *options) { o.backoff = b }
}

// WithRules sets which extras are charged to the bowler
func WithRules(r aggregator.Rules) Option {
	return func(o *options) { o.rules = r }
}

// WithRecentOvers caps the overs kept in the state; 0 keeps all
func WithRecentOvers(n int) Option {
	return func(o *options) { o.recentOvers = n }
}

func defaultOptions() options {
	return options{
		logger:      slog.Default(),
		maxAttempts: DefaultMaxAttempts,
		backoff:     retry.ExponentialBackoff(DefaultBackoffBase, 2, DefaultBackoffMax, 0.2),
		rules:       aggregator.DefaultRules(),
		recentOvers: DefaultRecentOvers,
	}
}
