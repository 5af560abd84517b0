package memory

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pedromedina19/hermes-bridge/internal/core/domain"
	"github.com/pedromedina19/hermes-bridge/internal/core/metrics"
	"github.com/pedromedina19/hermes-bridge/internal/core/ports"
)

const DefaultFeedBuffer = 256

// Feed pushes every recorded message to live watchers (websocket clients).
// A watcher that does not keep up loses messages; the ingestion path never waits on it.
type Feed struct {
	mu          sync.RWMutex
	subscribers map[string]chan domain.Record // subID -> channel
	closed      bool

	bufferSize int
	logger     ports.Logger
}

func NewFeed(bufferSize int, logger ports.Logger) *Feed {
	if bufferSize < 1 {
		bufferSize = DefaultFeedBuffer
	}
	return &Feed{
		subscribers: make(map[string]chan domain.Record),
		bufferSize:  bufferSize,
		logger:      logger,
	}
}

func (f *Feed) Publish(rec domain.Record) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for subID, ch := range f.subscribers {
		select {
		case ch <- rec:
		default:
			metrics.IncFeedDropped()
			f.logger.Warn("Dropped (Buffer Full)", "sub", subID, "topic", rec.Topic)
		}
	}
}

// Subscribe registers a watcher. On a closed feed the returned channel is already closed.
func (f *Feed) Subscribe() (<-chan domain.Record, string) {
	ch := make(chan domain.Record, f.bufferSize)
	subID := uuid.New().String()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		close(ch)
		return ch, subID
	}
	f.subscribers[subID] = ch
	metrics.UpdateWatchers(1)

	f.logger.Info("New watcher added", "id", subID)
	return ch, subID
}

func (f *Feed) Unsubscribe(subID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch, ok := f.subscribers[subID]
	if !ok {
		return
	}
	close(ch)
	delete(f.subscribers, subID)
	metrics.UpdateWatchers(-1)

	f.logger.Info("Watcher removed", "id", subID)
}

func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers)
}

func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for subID, ch := range f.subscribers {
		close(ch)
		delete(f.subscribers, subID)
		metrics.UpdateWatchers(-1)
	}

	f.logger.Info("Feed shutdown complete")
}
