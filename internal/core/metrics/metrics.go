package metrics

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pedromedina19/hermes-bridge/internal/core/domain"
)

type TopicStats struct {
	ReceivedCount uint64 `json:"received_total"`
	BytesCount    uint64 `json:"bytes_total"`
	RepairedCount uint64 `json:"repaired_total"`
	ReceiveRate   uint64 `json:"receive_rate_sec"` // Msg/sec

	lastRecv uint64
}

type GlobalStats struct {
	ReceivedCount   uint64 `json:"received_total"`
	RepairedCount   uint64 `json:"repaired_total"`
	ConnectFailures uint64 `json:"connect_failures_total"`
	Reconnects      uint64 `json:"reconnects_total"`
	FeedDropped     uint64 `json:"feed_dropped_total"`
	Watchers        int64  `json:"watchers"`
	MsgPerSec       uint64 `json:"msg_per_sec"`
	BytesAllocMB    uint64 `json:"bytes_alloc_mb"`
	NumGoroutine    int    `json:"num_goroutines"`
	Uptime          string `json:"uptime"`
}

type Snapshot struct {
	Global GlobalStats            `json:"global"`
	Topics map[string]*TopicStats `json:"topics"`
}

var (
	receivedGlobal  uint64
	repairedGlobal  uint64
	connectFailures uint64
	reconnects      uint64
	feedDropped     uint64
	watchers        int64
	startTime       = time.Now()

	topicRegistry = make(map[string]*TopicStats)
	mu            sync.RWMutex
)

var (
	messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hermes_bridge_messages_received_total",
		Help: "Messages received from the broker",
	}, []string{"topic"})
	payloadBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hermes_bridge_payload_bytes_total",
		Help: "Raw payload bytes received from the broker",
	}, []string{"topic"})
	decodeRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hermes_bridge_decode_repairs_total",
		Help: "Payloads that had invalid UTF-8 bytes dropped",
	}, []string{"topic"})
	connectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hermes_bridge_connect_failures_total",
		Help: "Failed broker connect or subscribe attempts",
	})
	reconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hermes_bridge_connection_lost_total",
		Help: "Broker connections lost after being established",
	})
	connectionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hermes_bridge_connection_state",
		Help: "Broker connection state (0 disconnected, 1 connecting, 2 connected)",
	})
	feedDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hermes_bridge_feed_dropped_total",
		Help: "Records dropped because a live watcher was too slow",
	})
	watchersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hermes_bridge_watchers",
		Help: "Connected live stream watchers",
	})
)

func IncReceived(topic string, bytes int) {
	atomic.AddUint64(&receivedGlobal, 1)
	getTopic(topic).incRecv(uint64(bytes))
	messagesReceived.WithLabelValues(topic).Inc()
	payloadBytes.WithLabelValues(topic).Add(float64(bytes))
}

func IncDecodeRepairs(topic string) {
	atomic.AddUint64(&repairedGlobal, 1)
	atomic.AddUint64(&getTopic(topic).RepairedCount, 1)
	decodeRepairs.WithLabelValues(topic).Inc()
}

func IncConnectFailures() {
	atomic.AddUint64(&connectFailures, 1)
	connectFailuresTotal.Inc()
}

func IncReconnects() {
	atomic.AddUint64(&reconnects, 1)
	reconnectsTotal.Inc()
}

func SetConnectionState(s domain.ConnState) {
	connectionState.Set(float64(s))
}

func IncFeedDropped() {
	atomic.AddUint64(&feedDropped, 1)
	feedDroppedTotal.Inc()
}

func UpdateWatchers(delta int64) {
	atomic.AddInt64(&watchers, delta)
	watchersGauge.Add(float64(delta))
}

func GetSnapshot() Snapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	g := GlobalStats{
		ReceivedCount:   atomic.LoadUint64(&receivedGlobal),
		RepairedCount:   atomic.LoadUint64(&repairedGlobal),
		ConnectFailures: atomic.LoadUint64(&connectFailures),
		Reconnects:      atomic.LoadUint64(&reconnects),
		FeedDropped:     atomic.LoadUint64(&feedDropped),
		Watchers:        atomic.LoadInt64(&watchers),
		BytesAllocMB:    m.Alloc / 1024 / 1024,
		NumGoroutine:    runtime.NumGoroutine(),
		Uptime:          time.Since(startTime).Truncate(time.Second).String(),
	}

	mu.RLock()
	defer mu.RUnlock()

	tSnapshot := make(map[string]*TopicStats, len(topicRegistry))

	var totalRate uint64
	for name, stats := range topicRegistry {
		rate := atomic.LoadUint64(&stats.ReceiveRate)
		totalRate += rate

		tSnapshot[name] = &TopicStats{
			ReceivedCount: atomic.LoadUint64(&stats.ReceivedCount),
			BytesCount:    atomic.LoadUint64(&stats.BytesCount),
			RepairedCount: atomic.LoadUint64(&stats.RepairedCount),
			ReceiveRate:   rate,
		}
	}
	g.MsgPerSec = totalRate

	return Snapshot{
		Global: g,
		Topics: tSnapshot,
	}
}

// StartRateCalculator refreshes the per-topic msg/sec figures once a second until ctx is done.
func StartRateCalculator(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				calculateRates()
			}
		}
	}()
}

func calculateRates() {
	mu.RLock()
	defer mu.RUnlock()
	for _, t := range topicRegistry {
		curr := atomic.LoadUint64(&t.ReceivedCount)
		atomic.StoreUint64(&t.ReceiveRate, curr-t.lastRecv)
		t.lastRecv = curr
	}
}

func getTopic(name string) *TopicStats {
	mu.RLock()
	stats, exists := topicRegistry[name]
	mu.RUnlock()

	if exists {
		return stats
	}

	mu.Lock()
	defer mu.Unlock()
	if stats, exists = topicRegistry[name]; exists {
		return stats
	}

	stats = &TopicStats{}
	topicRegistry[name] = stats
	return stats
}

func (t *TopicStats) incRecv(bytes uint64) {
	atomic.AddUint64(&t.ReceivedCount, 1)
	atomic.AddUint64(&t.BytesCount, bytes)
}
