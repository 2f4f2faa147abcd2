// Package metrics provides observability for the game core.
// Collected counters cover the tick loop, the save pipeline and the
// WebSocket surface so load tests can spot write amplification.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance metrics.
type Collector struct {
	// Tick metrics
	TickCount      int64
	TickSkipped    int64 // event gate or debounce short-circuits
	TickLatencySum int64 // nanoseconds
	TickLatencyMax int64
	LastTickTime   time.Time

	// Save pipeline metrics
	SavesRequested int64
	SavesWritten   int64
	SavesCoalesced int64
	SaveErrors     int64
	EmergencySaves int64
	BackupsWritten int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// Global collector instance
var collector = &Collector{
	StartTime: time.Now(),
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// RecordTick records a completed tick cycle.
func (c *Collector) RecordTick(latency time.Duration) {
	atomic.AddInt64(&c.TickCount, 1)
	atomic.AddInt64(&c.TickLatencySum, int64(latency))

	// Update max (non-atomic but acceptable for metrics)
	if int64(latency) > atomic.LoadInt64(&c.TickLatencyMax) {
		atomic.StoreInt64(&c.TickLatencyMax, int64(latency))
	}

	c.mu.Lock()
	c.LastTickTime = time.Now()
	c.mu.Unlock()
}

// RecordTickSkipped records a tick that exited early (debounce or the
// unacknowledged-event gate).
func (c *Collector) RecordTickSkipped() {
	atomic.AddInt64(&c.TickSkipped, 1)
}

// RecordSaveRequest records an incoming save request.
func (c *Collector) RecordSaveRequest() {
	atomic.AddInt64(&c.SavesRequested, 1)
}

// RecordSave records the outcome of a save attempt.
func (c *Collector) RecordSave(err error) {
	atomic.AddInt64(&c.SavesWritten, 1)
	if err != nil {
		atomic.AddInt64(&c.SaveErrors, 1)
	}
}

// RecordSaveCoalesced records a save request dropped into the pending flag.
func (c *Collector) RecordSaveCoalesced() {
	atomic.AddInt64(&c.SavesCoalesced, 1)
}

// RecordEmergencySave records a minimal-payload fallback write.
func (c *Collector) RecordEmergencySave() {
	atomic.AddInt64(&c.EmergencySaves, 1)
}

// RecordBackup records a rotating backup snapshot write.
func (c *Collector) RecordBackup() {
	atomic.AddInt64(&c.BackupsWritten, 1)
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tickCount := atomic.LoadInt64(&c.TickCount)

	var tickAvg float64
	if tickCount > 0 {
		tickAvg = float64(atomic.LoadInt64(&c.TickLatencySum)) / float64(tickCount) / 1e6 // ms
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"tick": map[string]interface{}{
			"count":          tickCount,
			"skipped":        atomic.LoadInt64(&c.TickSkipped),
			"avg_latency_ms": tickAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.TickLatencyMax)) / 1e6,
			"last_tick":      c.LastTickTime.Format(time.RFC3339),
		},

		"saves": map[string]interface{}{
			"requested": atomic.LoadInt64(&c.SavesRequested),
			"written":   atomic.LoadInt64(&c.SavesWritten),
			"coalesced": atomic.LoadInt64(&c.SavesCoalesced),
			"errors":    atomic.LoadInt64(&c.SaveErrors),
			"emergency": atomic.LoadInt64(&c.EmergencySaves),
			"backups":   atomic.LoadInt64(&c.BackupsWritten),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		snapshot := collector.Snapshot()
		json.NewEncoder(w).Encode(snapshot)
	}
}

// PrometheusHandler returns metrics in Prometheus format.
func PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		c := collector

		fmt.Fprintf(w, "# HELP empire_tick_count Total tick cycles\n")
		fmt.Fprintf(w, "# TYPE empire_tick_count counter\n")
		fmt.Fprintf(w, "empire_tick_count %d\n\n", atomic.LoadInt64(&c.TickCount))

		fmt.Fprintf(w, "# HELP empire_tick_skipped Ticks short-circuited by debounce or event gate\n")
		fmt.Fprintf(w, "# TYPE empire_tick_skipped counter\n")
		fmt.Fprintf(w, "empire_tick_skipped %d\n\n", atomic.LoadInt64(&c.TickSkipped))

		fmt.Fprintf(w, "# HELP empire_tick_latency_max_ms Maximum tick latency\n")
		fmt.Fprintf(w, "# TYPE empire_tick_latency_max_ms gauge\n")
		fmt.Fprintf(w, "empire_tick_latency_max_ms %.2f\n\n", float64(atomic.LoadInt64(&c.TickLatencyMax))/1e6)

		fmt.Fprintf(w, "# HELP empire_saves_written Total save documents written\n")
		fmt.Fprintf(w, "# TYPE empire_saves_written counter\n")
		fmt.Fprintf(w, "empire_saves_written %d\n\n", atomic.LoadInt64(&c.SavesWritten))

		fmt.Fprintf(w, "# HELP empire_saves_coalesced Save requests coalesced into a pending flag\n")
		fmt.Fprintf(w, "# TYPE empire_saves_coalesced counter\n")
		fmt.Fprintf(w, "empire_saves_coalesced %d\n\n", atomic.LoadInt64(&c.SavesCoalesced))

		fmt.Fprintf(w, "# HELP empire_save_errors Total save write failures\n")
		fmt.Fprintf(w, "# TYPE empire_save_errors counter\n")
		fmt.Fprintf(w, "empire_save_errors %d\n\n", atomic.LoadInt64(&c.SaveErrors))

		fmt.Fprintf(w, "# HELP empire_backups_written Rotating backup snapshots written\n")
		fmt.Fprintf(w, "# TYPE empire_backups_written counter\n")
		fmt.Fprintf(w, "empire_backups_written %d\n\n", atomic.LoadInt64(&c.BackupsWritten))

		fmt.Fprintf(w, "# HELP empire_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE empire_ws_connections gauge\n")
		fmt.Fprintf(w, "empire_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP empire_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE empire_ws_messages_total counter\n")
		fmt.Fprintf(w, "empire_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "empire_ws_messages_total{direction=\"out\"} %d\n", atomic.LoadInt64(&c.WSMessagesOut))
	}
}
