package hub

import (
	"sync"

	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

type subscription struct {
	id       string
	key      models.InningsKey
	listener Listener
	hub      *Hub

	mu      sync.Mutex
	pending *models.DerivedInningsState
	// highest version accepted into the mailbox
	seen int64

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// offer places state in the mailbox unless the subscriber already holds an
// equal or newer version
func (s *subscription) offer(state models.DerivedInningsState) {
	s.mu.Lock()
	if state.Version <= s.seen {
		s.mu.Unlock()
		s.hub.metrics.IncStaleDropped()
		return
	}
	replaced := s.pending != nil
	s.pending = &state
	s.seen = state.Version
	s.mu.Unlock()

	if replaced {
		s.hub.countCoalesced()
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// take empties the mailbox
func (s *subscription) take() *models.DerivedInningsState {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pending
	s.pending = nil
	return p
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
			state := s.take()
			if state == nil {
				continue
			}
			select {
			case <-s.done:
				return
			default:
			}
			s.hub.countDelivered()
			s.deliver(*state)
		}
	}
}

func (s *subscription) deliver(state models.DerivedInningsState) {
	defer func() {
		if r := recover(); r != nil {
			s.hub.logger.Error("listener panicked",
				"innings", s.key.String(),
				"subscription", s.id,
				"version", state.Version,
				"panic", r,
			)
		}
	}()
	s.listener(state)
}

func (s *subscription) unsubscribe() {
	if s.hub.remove(s) {
		s.hub.metrics.AddSubscriptions(-1)
		s.hub.logger.Debug("unsubscribed", "innings", s.key.String(), "subscription", s.id)
	}
	s.stop()
}

// stop ends the delivery goroutine; it reports whether this call stopped it
func (s *subscription) stop() bool {
	stopped := false
	s.stopOnce.Do(func() {
		close(s.done)
		stopped = true
	})
	return stopped
}
