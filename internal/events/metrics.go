package events

import (
	"context"

	"github.com/nerrad567/procwarden/internal/infrastructure/influxdb"
	"github.com/nerrad567/procwarden/internal/process"
)

// MetricsWriter is the part of influxdb.Client the metrics sink needs.
type MetricsWriter interface {
	WriteProcessEvent(eventType, name string, pid int)
	WriteStop(s influxdb.StopSample)
}

// MetricsSink turns events into InfluxDB points. Writes are batched by the
// client, so Deliver never blocks on the network.
type MetricsSink struct {
	w MetricsWriter
}

// NewMetricsSink creates a sink writing through w.
func NewMetricsSink(w MetricsWriter) *MetricsSink {
	return &MetricsSink{w: w}
}

// Name implements Sink.
func (s *MetricsSink) Name() string { return "influxdb" }

// Deliver implements Sink.
func (s *MetricsSink) Deliver(_ context.Context, e process.Event) error {
	s.w.WriteProcessEvent(string(e.Type), e.Name, e.PID)

	if o := e.Outcome; o != nil {
		s.w.WriteStop(influxdb.StopSample{
			PID:      o.PID,
			Name:     o.Name,
			Duration: o.Duration,
			Forced:   o.Forced,
			TimedOut: o.TimedOut,
			Failed:   o.Error != "",
		})
	}
	return nil
}
