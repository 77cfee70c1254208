package consumer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/store"
	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

type collector struct {
	mu     sync.Mutex
	states []models.DerivedInningsState
}

func (c *collector) Publish(s models.DerivedInningsState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = append(c.states, s)
}

func (c *collector) versions() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var v []int64
	for _, s := range c.states {
		v = append(v, s.Version)
	}
	return v
}

func setup(t *testing.T) (*redis.Client, *store.RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, store.NewRedisStore(client, store.RedisOptions{ChangeStream: "innings.updates"})
}

func doc(version int64, runs int) store.Document {
	key := models.InningsKey{MatchID: "m1", Inning: 1}
	return store.Document{
		Key:     key,
		Version: version,
		Status:  models.InningsLive,
		State:   &models.DerivedInningsState{MatchID: "m1", Inning: 1, Version: version, TotalRuns: runs},
	}
}

func TestStreamConsumer_RepublishesNewCommits(t *testing.T) {
	client, s := setup(t)
	ctx := context.Background()

	// committed before the consumer starts: not replayed
	require.NoError(t, s.Create(ctx, doc(1, 0)))

	hub := &collector{}
	sc := NewStreamConsumer(client, hub, "innings.updates", nil, nil)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- sc.Start(runCtx) }()

	// wait until the consumer has positioned itself
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Write(ctx, doc(2, 4), 1))
	require.NoError(t, s.Write(ctx, doc(3, 10), 2))

	require.Eventually(t, func() bool { return len(hub.versions()) == 2 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []int64{2, 3}, hub.versions())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestStreamConsumer_SkipsMalformedEntries(t *testing.T) {
	client, s := setup(t)
	ctx := context.Background()

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: "innings.updates",
		Values: map[string]interface{}{"key": "m1/1", "version": 1},
	}).Err())
	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: "innings.updates",
		Values: map[string]interface{}{"data": "{not json"},
	}).Err())
	require.NoError(t, s.Create(ctx, doc(1, 0)))

	hub := &collector{}
	sc := NewStreamConsumer(client, hub, "innings.updates", nil, nil)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go sc.Changes(runCtx, "0-0", hub.Publish)

	require.Eventually(t, func() bool { return len(hub.versions()) == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []int64{1}, hub.versions())
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]interface{}
		version int64
		wantErr bool
	}{
		{
			name:    "state with version",
			values:  map[string]interface{}{"data": `{"matchId":"m1","inning":1,"version":4}`, "version": "4"},
			version: 4,
		},
		{
			name:    "version from envelope",
			values:  map[string]interface{}{"data": `{"matchId":"m1","inning":1}`, "version": "7"},
			version: 7,
		},
		{name: "missing data", values: map[string]interface{}{"version": "1"}, wantErr: true},
		{name: "missing key", values: map[string]interface{}{"data": `{"version":1}`}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := decode(redis.XMessage{ID: "1-0", Values: tt.values})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.version, state.Version)
		})
	}
}
