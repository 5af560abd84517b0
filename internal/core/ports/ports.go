package ports

import (
	"time"

	"github.com/pedromedina19/hermes-bridge/internal/core/domain"
)

// define how retained messages are stored and read back
type RetentionStore interface {
	Record(topic, payload string, ts time.Time)
	History() []domain.Record
	Latest(topic string) (domain.Record, bool)
	Topics() []string
	Stats() domain.BridgeStats
}

// live fan-out of freshly recorded messages
type Feed interface {
	Publish(rec domain.Record)
	Subscribe() (<-chan domain.Record, string)
	Unsubscribe(subID string)
}

type ConnectionMonitor interface {
	State() domain.ConnState
}

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}
