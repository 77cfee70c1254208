// Package consumer tails the innings change stream and republishes each
// committed state to the local hub, so subscribers connected to any instance
// see commits made by every instance.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

const (
	// Batch size for reading messages
	batchSize = 100

	// Block duration when waiting for new messages
	blockDuration = 1 * time.Second

	// Pause after a failed read
	errorBackoff = 1 * time.Second
)

// Publisher receives decoded states
type Publisher interface {
	Publish(state models.DerivedInningsState)
}

// StreamConsumer reads the change stream without a consumer group: every
// instance needs every entry, not a share of them.
type StreamConsumer struct {
	redis   *redis.Client
	hub     Publisher
	stream  string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewStreamConsumer creates a new stream consumer
func NewStreamConsumer(redisClient *redis.Client, hub Publisher, stream string, logger *slog.Logger, m *metrics.Metrics) *StreamConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamConsumer{
		redis:   redisClient,
		hub:     hub,
		stream:  stream,
		logger:  logger,
		metrics: m,
	}
}

// Start consumes entries added after the call until ctx is done
func (sc *StreamConsumer) Start(ctx context.Context) error {
	lastID, err := sc.tail(ctx)
	if err != nil {
		return err
	}
	sc.logger.Info("stream consumer started", "stream", sc.stream, "from", lastID)
	return sc.Changes(ctx, lastID, func(state models.DerivedInningsState) {
		sc.hub.Publish(state)
	})
}

// Changes calls handler for every entry after fromID until ctx is done.
// Malformed entries are logged and skipped.
func (sc *StreamConsumer) Changes(ctx context.Context, fromID string, handler func(models.DerivedInningsState)) error {
	lastID := fromID
	for {
		if ctx.Err() != nil {
			return nil
		}

		streams, err := sc.redis.XRead(ctx, &redis.XReadArgs{
			Streams: []string{sc.stream, lastID},
			Count:   batchSize,
			Block:   blockDuration,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// No new messages
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			sc.logger.Warn("stream read error", "stream", sc.stream, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(errorBackoff):
			}
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				lastID = msg.ID
				state, err := decode(msg)
				if err != nil {
					sc.metrics.IncStreamMessage("invalid")
					sc.logger.Warn("invalid change entry", "stream", sc.stream, "id", msg.ID, "error", err)
					continue
				}
				sc.metrics.IncStreamMessage("published")
				handler(state)
			}
		}
	}
}

// tail returns the id of the newest entry, or "0-0" for an empty stream, so
// the first read neither replays history nor misses entries added meanwhile
func (sc *StreamConsumer) tail(ctx context.Context) (string, error) {
	msgs, err := sc.redis.XRevRangeN(ctx, sc.stream, "+", "-", 1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	if len(msgs) == 0 {
		return "0-0", nil
	}
	return msgs[0].ID, nil
}

var errMalformed = errors.New("malformed change entry")

func decode(msg redis.XMessage) (models.DerivedInningsState, error) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		return models.DerivedInningsState{}, errMalformed
	}

	var state models.DerivedInningsState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return models.DerivedInningsState{}, err
	}

	// the envelope version wins over a state that omits it
	if raw, ok := msg.Values["version"].(string); ok && state.Version == 0 {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			state.Version = v
		}
	}
	if err := state.Key().Validate(); err != nil {
		return models.DerivedInningsState{}, err
	}
	return state, nil
}
