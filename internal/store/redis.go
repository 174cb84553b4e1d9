package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yourorg/referraldesk/internal/domain"
)

// RedisStore implements Store on Redis. Documents live at doc:<collection>:<id>
// as JSON strings; each collection keeps an insertion-ordered id list at
// idx:<collection>. Transactions map directly onto WATCH/MULTI/EXEC: every key
// read through the Tx handle is WATCHed, writes are staged into the EXEC
// pipeline, and a concurrent write to any watched key fails the EXEC.
type RedisStore struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewRedisStore creates a store backed by the given Redis client
func NewRedisStore(rdb *redis.Client, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{rdb: rdb, logger: logger}
}

func docKey(collection, id string) string { return "doc:" + collection + ":" + id }
func idxKey(collection string) string     { return "idx:" + collection }

// Get reads a document by id
func (s *RedisStore) Get(ctx context.Context, collection, id string, dest any) error {
	data, err := s.rdb.Get(ctx, docKey(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%w: get %s/%s: %v", domain.ErrStoreUnavailable, collection, id, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
	}
	return nil
}

// List returns all documents in insertion order
func (s *RedisStore) List(ctx context.Context, collection string) ([]json.RawMessage, error) {
	raw, err := s.rdb.LRange(ctx, idxKey(collection), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", domain.ErrStoreUnavailable, collection, err)
	}
	// Rewrites push their id again; keep the first occurrence so the scan
	// stays in original insertion order
	seen := make(map[string]bool, len(raw))
	ids := raw[:0]
	for _, id := range raw {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(collection, id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", domain.ErrStoreUnavailable, collection, err)
	}
	docs := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		// Index entries can briefly outlive their document; skip the holes
		if str, ok := v.(string); ok {
			docs = append(docs, json.RawMessage(str))
		}
	}
	return docs, nil
}

// Query returns documents whose top-level field equals value
func (s *RedisStore) Query(ctx context.Context, collection, field, value string) ([]json.RawMessage, error) {
	docs, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	matched := docs[:0]
	for _, raw := range docs {
		if matchField(raw, field, value) {
			matched = append(matched, raw)
		}
	}
	return matched, nil
}

// Insert stores doc under a fresh uuid and returns it
func (s *RedisStore) Insert(ctx context.Context, collection string, doc any) (string, error) {
	id := uuid.NewString()
	data, err := withID(doc, id)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, docKey(collection, id), data, 0)
		pipe.RPush(ctx, idxKey(collection), id)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: insert %s: %v", domain.ErrStoreUnavailable, collection, err)
	}
	return id, nil
}

// Update replaces an existing document
func (s *RedisStore) Update(ctx context.Context, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	ok, err := s.rdb.SetXX(ctx, docKey(collection, id), data, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: update %s/%s: %v", domain.ErrStoreUnavailable, collection, id, err)
	}
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	return nil
}

// Delete removes a document; absent documents are not an error
func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, docKey(collection, id))
		pipe.LRem(ctx, idxKey(collection), 0, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: delete %s/%s: %v", domain.ErrStoreUnavailable, collection, id, err)
	}
	return nil
}

// Transact runs fn under WATCH/MULTI/EXEC
func (s *RedisStore) Transact(ctx context.Context, fn func(tx Tx) error) error {
	err := s.rdb.Watch(ctx, func(rtx *redis.Tx) error {
		t := &redisTx{ctx: ctx, tx: rtx}
		if err := fn(t); err != nil {
			return err
		}
		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, apply := range t.writes {
				apply(pipe)
			}
			return nil
		})
		return err
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return domain.ErrTransactionAborted
	case isDomainError(err):
		return err
	default:
		return fmt.Errorf("%w: transaction: %v", domain.ErrStoreUnavailable, err)
	}
}

// Ping checks connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func isDomainError(err error) bool {
	for _, sentinel := range []error{
		domain.ErrNotFound,
		domain.ErrDuplicateCode,
		domain.ErrLinksExist,
		domain.ErrTransactionAborted,
		domain.ErrValidation,
		domain.ErrStoreUnavailable,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// redisTx stages writes against a watched connection
type redisTx struct {
	ctx    context.Context
	tx     *redis.Tx
	writes []func(redis.Pipeliner)
}

func (t *redisTx) Get(collection, id string, dest any) error {
	key := docKey(collection, id)
	// Watch before reading so a concurrent write (or creation of a key we saw
	// as absent) fails the commit
	if err := t.tx.Watch(t.ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: watch %s: %v", domain.ErrStoreUnavailable, key, err)
	}
	data, err := t.tx.Get(t.ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%w: get %s/%s: %v", domain.ErrStoreUnavailable, collection, id, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
	}
	return nil
}

func (t *redisTx) Put(collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}
	ctx := t.ctx
	t.writes = append(t.writes, func(pipe redis.Pipeliner) {
		pipe.Set(ctx, docKey(collection, id), data, 0)
		// Unconditional push; List dedupes keeping the first occurrence
		pipe.RPush(ctx, idxKey(collection), id)
	})
	return nil
}

func (t *redisTx) Delete(collection, id string) {
	ctx := t.ctx
	t.writes = append(t.writes, func(pipe redis.Pipeliner) {
		pipe.Del(ctx, docKey(collection, id))
		pipe.LRem(ctx, idxKey(collection), 0, id)
	})
}
