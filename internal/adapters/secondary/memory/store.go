package memory

import (
	"sync"
	"time"

	"github.com/pedromedina19/hermes-bridge/internal/core/domain"
)

const DefaultHistorySize = 50

// RetentionStore keeps the last N records (newest-first on read) and the latest
// record of every registered topic. One RWMutex guards both structures so a
// reader never sees history and latest out of step.
type RetentionStore struct {
	mu sync.RWMutex

	ring []domain.Record
	head int // slot for the next write
	size int

	topics []string
	latest map[string]*domain.Record // registered topic -> nil until first message
}

func NewRetentionStore(capacity int, topics []string) *RetentionStore {
	if capacity < 1 {
		capacity = DefaultHistorySize
	}

	latest := make(map[string]*domain.Record, len(topics))
	registered := make([]string, 0, len(topics))
	for _, t := range topics {
		if _, dup := latest[t]; dup {
			continue
		}
		latest[t] = nil
		registered = append(registered, t)
	}

	return &RetentionStore{
		ring:   make([]domain.Record, capacity),
		topics: registered,
		latest: latest,
	}
}

func (s *RetentionStore) Record(topic, payload string, ts time.Time) {
	rec := domain.Record{Timestamp: ts, Topic: topic, Payload: payload}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ring[s.head] = rec
	s.head = (s.head + 1) % len(s.ring)
	if s.size < len(s.ring) {
		s.size++
	}

	// unregistered topics only go to history
	if _, ok := s.latest[topic]; ok {
		s.latest[topic] = &rec
	}
}

// History returns a copy of the retained records, newest first.
func (s *RetentionStore) History() []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Record, 0, s.size)
	idx := s.head
	for i := 0; i < s.size; i++ {
		idx = (idx - 1 + len(s.ring)) % len(s.ring)
		out = append(out, s.ring[idx])
	}
	return out
}

func (s *RetentionStore) Latest(topic string) (domain.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := s.latest[topic]
	if rec == nil {
		return domain.Record{}, false
	}
	return *rec, true
}

func (s *RetentionStore) Topics() []string {
	out := make([]string, len(s.topics))
	copy(out, s.topics)
	return out
}

func (s *RetentionStore) Stats() domain.BridgeStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.BridgeStats{
		HistorySize:     s.size,
		HistoryCapacity: len(s.ring),
	}
}
