package services

import (
	"context"

	"github.com/pedromedina19/hermes-bridge/internal/core/domain"
	"github.com/pedromedina19/hermes-bridge/internal/core/metrics"
	"github.com/pedromedina19/hermes-bridge/internal/core/ports"
)

// Ingestor owns the write path into the store: every arrival goes through Ingest
// on a single goroutine.
type Ingestor struct {
	store  ports.RetentionStore
	feed   ports.Feed
	logger ports.Logger
}

func NewIngestor(store ports.RetentionStore, feed ports.Feed, logger ports.Logger) *Ingestor {
	return &Ingestor{
		store:  store,
		feed:   feed,
		logger: logger,
	}
}

// Run consumes arrivals until ctx is cancelled or in is closed.
func (i *Ingestor) Run(ctx context.Context, in <-chan domain.Arrival) error {
	i.logger.Info("Ingestion started")
	defer i.logger.Info("Ingestion stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case a, ok := <-in:
			if !ok {
				return nil
			}
			i.Ingest(a)
		}
	}
}

func (i *Ingestor) Ingest(a domain.Arrival) domain.Record {
	text, repaired := domain.DecodePayload(a.Payload)
	if repaired {
		metrics.IncDecodeRepairs(a.Topic)
		i.logger.Warn("Dropped undecodable payload bytes", "topic", a.Topic, "raw_len", len(a.Payload), "text_len", len(text))
	}

	i.store.Record(a.Topic, text, a.ReceivedAt)
	metrics.IncReceived(a.Topic, len(a.Payload))

	rec := domain.Record{Timestamp: a.ReceivedAt, Topic: a.Topic, Payload: text}
	if i.feed != nil {
		i.feed.Publish(rec)
	}

	i.logger.Debug("RX", "topic", a.Topic, "msg", text)
	return rec
}
