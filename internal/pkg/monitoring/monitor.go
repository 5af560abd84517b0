package monitoring

import (
	"context"
	"runtime"
	"time"

	"github.com/pedromedina19/hermes-bridge/internal/core/metrics"
	"github.com/pedromedina19/hermes-bridge/internal/core/ports"
)

// StartMonitoring logs runtime and ingestion figures every interval until ctx is done.
func StartMonitoring(ctx context.Context, interval time.Duration, logger ports.Logger) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				report(logger)
			}
		}
	}()
}

func report(logger ports.Logger) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	bToMb := func(b uint64) uint64 {
		return b / 1024 / 1024
	}

	snap := metrics.GetSnapshot()
	logger.Info("[METRICS]",
		"goroutines", runtime.NumGoroutine(),
		"alloc_mib", bToMb(m.Alloc), // in use now
		"sys_mib", bToMb(m.Sys), // reserved from the OS
		"num_gc", m.NumGC,
		"received", snap.Global.ReceivedCount,
		"msg_per_sec", snap.Global.MsgPerSec,
		"watchers", snap.Global.Watchers,
	)
}
