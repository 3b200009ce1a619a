package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// maxTxRetries bounds optimistic retries when a watched key changes under us.
const maxTxRetries = 16

// RedisStore keeps every tree node in its own Redis key under
// "ansr:{environment}:". Transactions use WATCH/MULTI.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, environment string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: fmt.Sprintf("ansr:%s:", environment),
	}
}

func (s *RedisStore) key(path string) string {
	return s.prefix + path
}

func (s *RedisStore) Get(ctx context.Context, path string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store get %s: %w", path, err)
	}
	return val, nil
}

func (s *RedisStore) Put(ctx context.Context, path string, value any) error {
	if value == nil {
		if err := s.client.Del(ctx, s.key(path)).Err(); err != nil {
			return fmt.Errorf("store delete %s: %w", path, err)
		}
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store encode %s: %w", path, err)
	}
	if err := s.client.Set(ctx, s.key(path), data, 0).Err(); err != nil {
		return fmt.Errorf("store put %s: %w", path, err)
	}
	return nil
}

func (s *RedisStore) PutIfAbsent(ctx context.Context, path string, value any) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("store encode %s: %w", path, err)
	}
	ok, err := s.client.SetNX(ctx, s.key(path), data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("store put-if-absent %s: %w", path, err)
	}
	return ok, nil
}

func (s *RedisStore) Children(ctx context.Context, path string) (map[string][]byte, error) {
	childPrefix := s.key(path) + "/"
	children := map[string][]byte{}

	iter := s.client.Scan(ctx, 0, childPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		key := iter.Val()
		rest := strings.TrimPrefix(key, childPrefix)
		if strings.Contains(rest, "/") {
			continue // grandchild
		}
		keys = append(keys, key)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("store children %s: %w", path, err)
	}
	if len(keys) == 0 {
		return children, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("store children %s: %w", path, err)
	}
	for i, key := range keys {
		str, ok := vals[i].(string)
		if !ok {
			continue // deleted between SCAN and MGET
		}
		children[strings.TrimPrefix(key, childPrefix)] = []byte(str)
	}
	return children, nil
}

func (s *RedisStore) Transaction(ctx context.Context, path string, fn TxFunc) ([]byte, error) {
	key := s.key(path)
	var final []byte

	txn := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			current = nil
		} else if err != nil {
			return err
		}

		next, commit := fn(current)
		if !commit {
			final = current
			return nil
		}

		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, key)
			} else {
				pipe.Set(ctx, key, data, 0)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if next == nil {
			final = nil
		} else {
			final = data
		}
		return nil
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue // watched key changed, retry
		}
		if err != nil {
			return nil, fmt.Errorf("store transaction %s: %w", path, err)
		}
		return final, nil
	}
	return nil, fmt.Errorf("store transaction %s: %w", path, ErrTxContention)
}
