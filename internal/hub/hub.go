// Package hub fans committed innings states out to subscribers.
//
// Each subscription owns a one-slot mailbox drained by its own goroutine. A
// newer state replaces an undelivered older one, so a slow listener sees the
// latest snapshot rather than a backlog, and a listener never sees a version
// lower than one it already received.
package hub

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

// Listener receives committed states for one innings
type Listener func(state models.DerivedInningsState)

// Hub maintains the subscriptions per innings and delivers published states
type Hub struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	// Registered subscriptions by innings
	subs   map[models.InningsKey]map[string]*subscription
	latest map[models.InningsKey]models.DerivedInningsState
	closed bool
	mu     sync.RWMutex

	// Counters
	totalSubscriptions int64
	totalPublished     int64
	totalDelivered     int64
	totalCoalesced     int64
	metricsMu          sync.Mutex
}

// New creates a new Hub instance
func New(logger *slog.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger,
		metrics: m,
		subs:    make(map[models.InningsKey]map[string]*subscription),
		latest:  make(map[models.InningsKey]models.DerivedInningsState),
	}
}

// Run reports hub metrics until ctx is done, then closes every subscription
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("hub started")

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.Close()
			return
		case <-ticker.C:
			stats := h.GetMetrics()
			h.logger.Info("hub metrics",
				"innings", stats["innings"],
				"subscriptions", stats["active_subscriptions"],
				"published", stats["total_published"],
				"delivered", stats["total_delivered"],
				"coalesced", stats["total_coalesced"],
			)
		}
	}
}

// Subscribe registers listener for key and returns its unsubscribe function.
// If a state for key was already published the listener receives it first.
// Unsubscribe is idempotent, never blocks, and may be called from inside the
// listener.
func (h *Hub) Subscribe(key models.InningsKey, listener Listener) func() {
	s := &subscription{
		id:       uuid.NewString(),
		key:      key,
		listener: listener,
		hub:      h,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.stop()
		return s.unsubscribe
	}
	set, ok := h.subs[key]
	if !ok {
		set = make(map[string]*subscription)
		h.subs[key] = set
	}
	set[s.id] = s
	latest, hasLatest := h.latest[key]
	h.mu.Unlock()

	h.metricsMu.Lock()
	h.totalSubscriptions++
	h.metricsMu.Unlock()
	h.metrics.AddSubscriptions(1)

	go s.run()
	if hasLatest {
		s.offer(latest)
	}

	h.logger.Debug("subscribed", "innings", key.String(), "subscription", s.id)
	return s.unsubscribe
}

// Publish hands state to every subscriber of its innings. It never blocks on
// a listener.
func (h *Hub) Publish(state models.DerivedInningsState) {
	key := state.Key()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	if prev, ok := h.latest[key]; !ok || state.Version > prev.Version {
		h.latest[key] = state
	}
	targets := make([]*subscription, 0, len(h.subs[key]))
	for _, s := range h.subs[key] {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	h.metricsMu.Lock()
	h.totalPublished++
	h.metricsMu.Unlock()

	for _, s := range targets {
		s.offer(state)
	}
}

// Forget drops the cached latest state of key
func (h *Hub) Forget(key models.InningsKey) {
	h.mu.Lock()
	delete(h.latest, key)
	h.mu.Unlock()
}

// Close stops every subscription; later Subscribe and Publish calls are no-ops
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var all []*subscription
	for key, set := range h.subs {
		for _, s := range set {
			all = append(all, s)
		}
		delete(h.subs, key)
	}
	h.mu.Unlock()

	h.logger.Info("shutting down hub", "subscriptions", len(all))
	for _, s := range all {
		s.stop()
	}
	h.metrics.AddSubscriptions(-len(all))
}

// SubscriberCount returns the number of active subscriptions for key
func (h *Hub) SubscriberCount(key models.InningsKey) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key])
}

// Innings lists the innings that currently have subscribers
func (h *Hub) Innings() []models.InningsKey {
	h.mu.RLock()
	keys := make([]models.InningsKey, 0, len(h.subs))
	for key := range h.subs {
		keys = append(keys, key)
	}
	h.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].MatchID != keys[j].MatchID {
			return keys[i].MatchID < keys[j].MatchID
		}
		return keys[i].Inning < keys[j].Inning
	})
	return keys
}

// GetMetrics returns hub metrics
func (h *Hub) GetMetrics() map[string]interface{} {
	h.mu.RLock()
	innings := len(h.subs)
	active := 0
	for _, set := range h.subs {
		active += len(set)
	}
	h.mu.RUnlock()

	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()

	return map[string]interface{}{
		"innings":              innings,
		"active_subscriptions": active,
		"total_subscriptions":  h.totalSubscriptions,
		"total_published":      h.totalPublished,
		"total_delivered":      h.totalDelivered,
		"total_coalesced":      h.totalCoalesced,
	}
}

// remove detaches s from the registry; it reports whether s was still registered
func (h *Hub) remove(s *subscription) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[s.key]
	if !ok {
		return false
	}
	if _, ok := set[s.id]; !ok {
		return false
	}
	delete(set, s.id)
	if len(set) == 0 {
		delete(h.subs, s.key)
	}
	return true
}

func (h *Hub) countDelivered() {
	h.metricsMu.Lock()
	h.totalDelivered++
	h.metricsMu.Unlock()
	h.metrics.IncDelivered()
}

func (h *Hub) countCoalesced() {
	h.metricsMu.Lock()
	h.totalCoalesced++
	h.metricsMu.Unlock()
	h.metrics.IncCoalesced()
}
