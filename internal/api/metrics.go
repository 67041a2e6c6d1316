package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/procwarden/internal/process"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Runtime       RuntimeMetrics    `json:"runtime"`
	Processes     process.Stats     `json:"processes"`
	WebSocket     WSMetrics         `json:"websocket"`
	MQTT          ConnectionMetrics `json:"mqtt"`
	InfluxDB      ConnectionMetrics `json:"influxdb"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// ConnectionMetrics describes an optional backend connection.
type ConnectionMetrics struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`

	// Subscriptions is reported by backends that track them (MQTT).
	Subscriptions int `json:"subscriptions,omitempty"`
}

// subscriptionCounter is implemented by *mqtt.Client.
type subscriptionCounter interface {
	SubscriptionCount() int
}

const bytesPerMB = 1024 * 1024

// handleMetrics returns runtime and supervisor metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / bytesPerMB,
			MemoryTotalMB: float64(memStats.TotalAlloc) / bytesPerMB,
			NumGC:         memStats.NumGC,
		},
		Processes: s.manager.Stats(),
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		MQTT:     connectionMetrics(s.mqtt),
		InfluxDB: connectionMetrics(s.influx),
	}

	writeJSON(w, http.StatusOK, metrics)
}

func connectionMetrics(c ConnectionStatus) ConnectionMetrics {
	if c == nil {
		return ConnectionMetrics{}
	}
	m := ConnectionMetrics{Enabled: true, Connected: c.IsConnected()}
	if sc, ok := c.(subscriptionCounter); ok {
		m.Subscriptions = sc.SubscriptionCount()
	}
	return m
}
