package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
	"github.com/redis/go-redis/v9"
)

// Hash fields of an innings document
const (
	fieldVersion  = "version"
	fieldStatus   = "status"
	fieldDocument = "document"
)

// DefaultChangeStream is the Redis stream commits are announced on
const DefaultChangeStream = "innings.updates"

// RedisOptions tunes the Redis store
type RedisOptions struct {
	// ChangeStream receives one entry per committed state
	ChangeStream string

	// ChangeStreamMaxLen trims the stream approximately; 0 disables trimming
	ChangeStreamMaxLen int64

	// ArchivedTTL expires archived documents; 0 keeps them forever
	ArchivedTTL time.Duration
}

// RedisStore keeps innings documents in Redis hashes and uses WATCH/MULTI
// for the conditional write
type RedisStore struct {
	client *redis.Client
	opts   RedisOptions
}

// NewRedisStore creates a new Redis-backed store
func NewRedisStore(client *redis.Client, opts RedisOptions) *RedisStore {
	if opts.ChangeStream == "" {
		opts.ChangeStream = DefaultChangeStream
	}
	return &RedisStore{
		client: client,
		opts:   opts,
	}
}

// ChangeStream returns the name of the stream commits are announced on
func (s *RedisStore) ChangeStream() string {
	return s.opts.ChangeStream
}

// Create stores the first version of an innings and registers it under its match
func (s *RedisStore) Create(ctx context.Context, doc Document) error {
	key := documentKey(doc.Key)
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling innings: %w", err)
	}
	change, err := s.announcement(doc)
	if err != nil {
		return err
	}

	txf := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return ErrExists
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldVersion, doc.Version,
				fieldStatus, string(doc.Status),
				fieldDocument, data,
			)
			pipe.SAdd(ctx, matchKey(doc.Key.MatchID), doc.Key.Inning)
			if change != nil {
				pipe.XAdd(ctx, change)
			}
			return nil
		})
		return err
	}

	err = s.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrExists
	}
	return err
}

// Read returns the current document for key
func (s *RedisStore) Read(ctx context.Context, key models.InningsKey) (Document, error) {
	data, err := s.client.HGet(ctx, documentKey(key), fieldDocument).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("unmarshaling innings %s: %w", key, err)
	}
	return doc, nil
}

// Write replaces the document if the stored version still equals expectedVersion.
// The change stream entry is written in the same MULTI, so a commit and its
// announcement are never separated.
func (s *RedisStore) Write(ctx context.Context, doc Document, expectedVersion int64) error {
	key := documentKey(doc.Key)
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling innings: %w", err)
	}
	change, err := s.announcement(doc)
	if err != nil {
		return err
	}

	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, fieldVersion).Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}
		if current != expectedVersion {
			return ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldVersion, doc.Version,
				fieldStatus, string(doc.Status),
				fieldDocument, data,
			)
			if doc.Archived() && s.opts.ArchivedTTL > 0 {
				pipe.Expire(ctx, key, s.opts.ArchivedTTL)
			}
			if change != nil {
				pipe.XAdd(ctx, change)
			}
			return nil
		})
		return err
	}

	err = s.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	return err
}

// ListInnings returns the innings numbers registered for a match
func (s *RedisStore) ListInnings(ctx context.Context, matchID string) ([]int, error) {
	members, err := s.client.SMembers(ctx, matchKey(matchID)).Result()
	if err != nil {
		return nil, err
	}

	innings := make([]int, 0, len(members))
	for _, m := range members {
		n, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		innings = append(innings, n)
	}
	sort.Ints(innings)
	return innings, nil
}

// Ping checks Redis connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// announcement builds the change stream entry for a document about to be
// committed. A document without derived state has none.
func (s *RedisStore) announcement(doc Document) (*redis.XAddArgs, error) {
	if doc.State == nil {
		return nil, nil
	}
	state, err := json.Marshal(doc.State)
	if err != nil {
		return nil, fmt.Errorf("marshaling change for %s: %w", doc.Key, err)
	}

	args := &redis.XAddArgs{
		Stream: s.opts.ChangeStream,
		Values: map[string]interface{}{
			"key":     doc.Key.String(),
			"version": doc.Version,
			"data":    string(state),
		},
	}
	if s.opts.ChangeStreamMaxLen > 0 {
		args.MaxLen = s.opts.ChangeStreamMaxLen
		args.Approx = true
	}
	return args, nil
}

func documentKey(key models.InningsKey) string {
	return fmt.Sprintf("innings:%s:%d", key.MatchID, key.Inning)
}

func matchKey(matchID string) string {
	return fmt.Sprintf("match:%s:innings", matchID)
}
