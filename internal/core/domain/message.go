package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Arrival is a raw message as handed over by the broker client callback.
type Arrival struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// Record is a retained message. It is passed by value and never mutated after creation.
type Record struct {
	Timestamp time.Time
	Topic     string
	Payload   string
}

// Clock returns the local wall-clock time of the record as HH:MM:SS.
func (r Record) Clock() string {
	return r.Timestamp.Local().Format(time.TimeOnly)
}

type BridgeStats struct {
	HistorySize     int
	HistoryCapacity int
}

// DecodePayload turns raw bytes into text, dropping invalid UTF-8 sequences.
// The second return value reports whether anything had to be dropped.
func DecodePayload(raw []byte) (string, bool) {
	if utf8.Valid(raw) {
		return string(raw), false
	}
	return strings.ToValidUTF8(string(raw), ""), true
}
