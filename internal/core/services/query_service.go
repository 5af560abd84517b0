package services

import (
	"github.com/pedromedina19/hermes-bridge/internal/core/domain"
	"github.com/pedromedina19/hermes-bridge/internal/core/ports"
)

// QueryService is the read side used by the HTTP layer. It only ever reads the
// store, so it never waits on broker connectivity.
type QueryService struct {
	store ports.RetentionStore
}

func NewQueryService(store ports.RetentionStore) *QueryService {
	return &QueryService{store: store}
}

// ListRecent returns up to N records, newest first. Empty (not nil) before the first message.
func (s *QueryService) ListRecent() []domain.Record {
	h := s.store.History()
	if h == nil {
		return []domain.Record{}
	}
	return h
}

// PeekLatest returns the last record seen on topic. Unknown topics and topics
// without data both report false.
func (s *QueryService) PeekLatest(topic string) (domain.Record, bool) {
	return s.store.Latest(topic)
}

func (s *QueryService) Topics() []string {
	return s.store.Topics()
}

func (s *QueryService) Stats() domain.BridgeStats {
	return s.store.Stats()
}
