package events

import (
	"context"
	"time"

	"github.com/nerrad567/procwarden/internal/infrastructure/influxdb"
	"github.com/nerrad567/procwarden/internal/process"
)

// DefaultSampleInterval is used when NewSampler is given an interval <= 0.
const DefaultSampleInterval = 30 * time.Second

// StatsSource supplies supervisor gauges. *process.Manager satisfies it.
type StatsSource interface {
	Stats() process.Stats
}

// GaugeWriter is the part of influxdb.Client the sampler needs.
type GaugeWriter interface {
	WriteSupervisor(instance string, s influxdb.SupervisorSample)
}

// Sampler periodically records supervisor gauges.
type Sampler struct {
	source   StatsSource
	writer   GaugeWriter
	instance string
	interval time.Duration
}

// NewSampler creates a sampler tagging points with instance.
func NewSampler(source StatsSource, writer GaugeWriter, instance string, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Sampler{
		source:   source,
		writer:   writer,
		instance: instance,
		interval: interval,
	}
}

// Run samples once immediately and then every interval until ctx is done.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sample()
		}
	}
}

// Sample writes one gauge point.
func (s *Sampler) Sample() {
	st := s.source.Stats()
	s.writer.WriteSupervisor(s.instance, influxdb.SupervisorSample{
		Supervised:    st.Supervised,
		Running:       st.Running,
		BufferedLines: st.BufferedLines,
		LinesCaptured: st.LinesCaptured,
	})
}
