package client

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/hub"
	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

var testKey = models.InningsKey{MatchID: "m1", Inning: 1}

// gatedHub holds its first Subscribe call until release is closed
type gatedHub struct {
	mu        sync.Mutex
	calls     int
	listeners map[int]hub.Listener
	active    map[int]bool
	entered   chan struct{}
	release   chan struct{}
}

func newGatedHub() *gatedHub {
	return &gatedHub{
		listeners: make(map[int]hub.Listener),
		active:    make(map[int]bool),
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (h *gatedHub) Subscribe(key models.InningsKey, listener hub.Listener) func() {
	h.mu.Lock()
	h.calls++
	id := h.calls
	h.listeners[id] = listener
	h.active[id] = true
	h.mu.Unlock()

	if id == 1 {
		h.entered <- struct{}{}
		<-h.release
	}
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.active, id)
	}
}

func (h *gatedHub) activeIDs() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	var ids []int
	for id := range h.active {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (h *gatedHub) listener(id int) hub.Listener {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.listeners[id]
}

func TestClient_SubscribeIsIdempotent(t *testing.T) {
	h := newGatedHub()
	close(h.release)
	go func() { <-h.entered }()

	c := NewClient("c1", nil, h, 4, nil, nil)
	require.NoError(t, c.Subscribe(testKey))
	require.NoError(t, c.Subscribe(testKey))
	assert.Equal(t, []int{1}, h.activeIDs())
	assert.Equal(t, []string{"m1/1"}, c.Subscriptions())

	c.Unsubscribe(testKey)
	assert.Empty(t, h.activeIDs())
	assert.Empty(t, c.Subscriptions())
}

func TestClient_SubscribeRejectsBadKey(t *testing.T) {
	c := NewClient("c1", nil, newGatedHub(), 4, nil, nil)
	assert.Error(t, c.Subscribe(models.InningsKey{}))
}

func TestClient_ResubscribeWhileRegistering(t *testing.T) {
	h := newGatedHub()
	c := NewClient("c1", nil, h, 4, nil, nil)

	first := make(chan error, 1)
	go func() { first <- c.Subscribe(testKey) }()
	<-h.entered

	// the first registration is still in flight
	c.Unsubscribe(testKey)
	require.NoError(t, c.Subscribe(testKey))

	close(h.release)
	require.NoError(t, <-first)

	assert.Equal(t, []int{2}, h.activeIDs())
	assert.Equal(t, []string{"m1/1"}, c.Subscriptions())

	state := models.DerivedInningsState{MatchID: "m1", Inning: 1, Version: 2}
	h.listener(1)(state)
	assert.Empty(t, c.send)
	h.listener(2)(state)
	assert.Len(t, c.send, 1)

	c.Unsubscribe(testKey)
	assert.Empty(t, h.activeIDs())
}

func TestClient_UnsubscribeAll(t *testing.T) {
	h := newGatedHub()
	close(h.release)
	go func() { <-h.entered }()

	c := NewClient("c1", nil, h, 4, nil, nil)
	require.NoError(t, c.Subscribe(testKey))
	require.NoError(t, c.Subscribe(models.InningsKey{MatchID: "m1", Inning: 2}))
	assert.Len(t, h.activeIDs(), 2)

	c.unsubscribeAll()
	assert.Empty(t, h.activeIDs())
	assert.Empty(t, c.Subscriptions())
}
