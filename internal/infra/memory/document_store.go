package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"quizwiz-service/internal/domain"
)

// DocumentStore is an in-process implementation of app.DocumentStore. Every
// write is broadcast synchronously to the document's subscribers.
type DocumentStore struct {
	now func() time.Time

	mu          sync.Mutex
	docs        map[domain.DocKey]domain.Document
	subscribers map[domain.DocKey]map[chan domain.Snapshot]struct{}
}

func NewDocumentStore() *DocumentStore {
	return NewDocumentStoreWithClock(time.Now)
}

// NewDocumentStoreWithClock is test-only for deterministic server timestamps.
func NewDocumentStoreWithClock(now func() time.Time) *DocumentStore {
	return &DocumentStore{
		now:         now,
		docs:        make(map[domain.DocKey]domain.Document),
		subscribers: make(map[domain.DocKey]map[chan domain.Snapshot]struct{}),
	}
}

func (s *DocumentStore) Get(_ context.Context, key domain.DocKey) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[key]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return doc.Clone(), nil
}

func (s *DocumentStore) Set(_ context.Context, key domain.DocKey, doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := doc.Clone()
	if stored == nil {
		stored = domain.Document{}
	}
	s.resolveTimestamps(stored)
	s.docs[key] = stored
	s.broadcastLocked(key)
	return nil
}

func (s *DocumentStore) Update(_ context.Context, key domain.DocKey, patch *domain.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[key]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	patch.Apply(doc)
	s.resolveTimestamps(doc)
	s.broadcastLocked(key)
	return nil
}

func (s *DocumentStore) Increment(_ context.Context, key domain.DocKey, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[key]
	if !ok {
		doc = domain.Document{}
		s.docs[key] = doc
	}
	var current int64
	if raw, ok := doc[field]; ok && raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("increment %s.%s: %w", key, field, err)
		}
		current = n
	}
	current += delta
	doc[field] = strconv.FormatInt(current, 10)
	s.broadcastLocked(key)
	return current, nil
}

// Subscribe registers a listener that first receives the current document.
// It is released by the returned cancel function or when ctx is done.
func (s *DocumentStore) Subscribe(ctx context.Context, key domain.DocKey) (<-chan domain.Snapshot, func(), error) {
	ch := make(chan domain.Snapshot, 1)

	s.mu.Lock()
	if s.subscribers[key] == nil {
		s.subscribers[key] = make(map[chan domain.Snapshot]struct{})
	}
	s.subscribers[key][ch] = struct{}{}
	ch <- s.snapshotLocked(key)
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.subscribers[key]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		if len(subs) == 0 {
			delete(s.subscribers, key)
		}
		close(ch)
	}
	stop := context.AfterFunc(ctx, release)
	cancel := func() {
		stop()
		release()
	}
	return ch, cancel, nil
}

func (s *DocumentStore) snapshotLocked(key domain.DocKey) domain.Snapshot {
	doc, ok := s.docs[key]
	if !ok {
		return domain.Snapshot{}
	}
	return domain.Snapshot{Doc: doc.Clone()}
}

func (s *DocumentStore) broadcastLocked(key domain.DocKey) {
	subs := s.subscribers[key]
	if len(subs) == 0 {
		return
	}
	snap := s.snapshotLocked(key)
	for ch := range subs {
		select {
		case ch <- snap:
		default:
			// drop the stale snapshot so a slow listener never blocks writers
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *DocumentStore) resolveTimestamps(doc domain.Document) {
	var stamp string
	for k, v := range doc {
		if v != domain.ServerTimestamp {
			continue
		}
		if stamp == "" {
			stamp = s.now().UTC().Format(time.RFC3339Nano)
		}
		doc[k] = stamp
	}
}
