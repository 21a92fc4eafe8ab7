package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quizwiz-service/internal/domain"
)

const maxTxRetries = 5

// DocumentStore keeps each document in a Redis hash and announces every write
// on a per-document pub/sub channel, so clients on any instance observe the
// same session.
//
//	HSET doc:{collection}:{id} {field path} {value}
//	PUBLISH doc:{collection}:{id}:changes {op}
//
// Documents in the expiring collections get their TTL refreshed on each write.
type DocumentStore struct {
	client   *redis.Client
	ttl      time.Duration
	expiring map[string]bool
}

func NewDocumentStore(client *redis.Client, ttl time.Duration, expiring ...string) *DocumentStore {
	s := &DocumentStore{
		client:   client,
		ttl:      ttl,
		expiring: make(map[string]bool, len(expiring)),
	}
	for _, c := range expiring {
		s.expiring[c] = true
	}
	return s
}

func (s *DocumentStore) Get(ctx context.Context, key domain.DocKey) (domain.Document, error) {
	fields, err := s.client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrDocumentNotFound
	}
	return domain.Document(fields), nil
}

func (s *DocumentStore) Set(ctx context.Context, key domain.DocKey, doc domain.Document) error {
	doc, err := s.resolveTimestamps(ctx, doc)
	if err != nil {
		return err
	}
	hkey := s.key(key)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, hkey)
		if len(doc) > 0 {
			pipe.HSet(ctx, hkey, flatten(doc)...)
		}
		s.touch(ctx, pipe, key)
		pipe.Publish(ctx, s.channel(key), "set")
		return nil
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Update applies patch under WATCH so a concurrent delete cannot resurrect a
// partial document.
func (s *DocumentStore) Update(ctx context.Context, key domain.DocKey, patch *domain.Patch) error {
	set, err := s.resolveTimestamps(ctx, patch.Set)
	if err != nil {
		return err
	}
	var clear []string
	for _, f := range patch.Clear {
		if _, ok := set[f]; !ok {
			clear = append(clear, f)
		}
	}

	hkey := s.key(key)
	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, hkey).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrDocumentNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(clear) > 0 {
				pipe.HDel(ctx, hkey, clear...)
			}
			if len(set) > 0 {
				pipe.HSet(ctx, hkey, flatten(set)...)
			}
			s.touch(ctx, pipe, key)
			pipe.Publish(ctx, s.channel(key), "update")
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err = s.client.Watch(ctx, txf, hkey)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", key, err)
	}
	return nil
}

func (s *DocumentStore) Increment(ctx context.Context, key domain.DocKey, field string, delta int64) (int64, error) {
	hkey := s.key(key)
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, hkey, field, delta)
		s.touch(ctx, pipe, key)
		pipe.Publish(ctx, s.channel(key), "increment")
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("increment %s.%s: %w", key, field, err)
	}
	return incr.Val(), nil
}

// Subscribe listens on the document's change channel and re-reads the hash on
// every notification. The subscription is confirmed before the first read so
// no write between the two is missed.
func (s *DocumentStore) Subscribe(ctx context.Context, key domain.DocKey) (<-chan domain.Snapshot, func(), error) {
	pubsub := s.client.Subscribe(ctx, s.channel(key))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", key, err)
	}

	subCtx, cancelSub := context.WithCancel(ctx)
	out := make(chan domain.Snapshot, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(out)
		msgs := pubsub.Channel()
		offerSnapshot(out, s.snapshot(subCtx, key))
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				snap := s.snapshot(subCtx, key)
				if subCtx.Err() != nil {
					return
				}
				offerSnapshot(out, snap)
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			cancelSub()
			_ = pubsub.Close()
			<-done
		})
	}
	return out, cancel, nil
}

func (s *DocumentStore) snapshot(ctx context.Context, key domain.DocKey) domain.Snapshot {
	doc, err := s.Get(ctx, key)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return domain.Snapshot{}
	}
	if err != nil {
		return domain.Snapshot{Err: err}
	}
	return domain.Snapshot{Doc: doc}
}

// resolveTimestamps returns a copy of fields with server timestamps filled in
// from the Redis clock.
func (s *DocumentStore) resolveTimestamps(ctx context.Context, fields map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(fields))
	var stamp string
	for k, v := range fields {
		if v == domain.ServerTimestamp {
			if stamp == "" {
				now, err := s.client.Time(ctx).Result()
				if err != nil {
					return nil, fmt.Errorf("server time: %w", err)
				}
				stamp = now.UTC().Format(time.RFC3339Nano)
			}
			v = stamp
		}
		out[k] = v
	}
	return out, nil
}

func (s *DocumentStore) touch(ctx context.Context, pipe redis.Pipeliner, key domain.DocKey) {
	if s.ttl > 0 && s.expiring[key.Collection] {
		pipe.Expire(ctx, s.key(key), s.ttl)
	}
}

func (s *DocumentStore) key(key domain.DocKey) string {
	return "doc:" + key.Collection + ":" + key.ID
}

func (s *DocumentStore) channel(key domain.DocKey) string {
	return s.key(key) + ":changes"
}

func flatten(fields map[string]string) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

func offerSnapshot(ch chan domain.Snapshot, snap domain.Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- snap
}
