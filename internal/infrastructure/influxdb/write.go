package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by procwarden.
const (
	MeasurementProcessEvents = "process_events"
	MeasurementProcessStop   = "process_stop"
	MeasurementSupervisor    = "supervisor"
)

// StopSample is the telemetry recorded for one completed stop.
type StopSample struct {
	PID      int
	Name     string
	Duration time.Duration
	Forced   bool
	TimedOut bool
	Failed   bool
}

// SupervisorSample is a periodic gauge of the supervisor's state.
type SupervisorSample struct {
	Supervised    int
	Running       int
	BufferedLines int
	LinesCaptured int
}

// WriteProcessEvent records one lifecycle event.
//
// Example:
//
//	client.WriteProcessEvent("process.started", "rig4242", 4242)
func (c *Client) WriteProcessEvent(eventType, name string, pid int) {
	c.writePoint(processEventPoint(eventType, name, pid, time.Now()))
}

// WriteStop records how a stop went.
func (c *Client) WriteStop(s StopSample) {
	c.writePoint(stopPoint(s, time.Now()))
}

// WriteSupervisor records a supervisor gauge sample.
func (c *Client) WriteSupervisor(instance string, s SupervisorSample) {
	c.writePoint(supervisorPoint(instance, s, time.Now()))
}

// WritePoint writes a custom point. Keep tag cardinality low.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.writePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func processEventPoint(eventType, name string, pid int, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementProcessEvents,
		map[string]string{
			"type": eventType,
			"name": name,
		},
		map[string]any{
			"pid":   pid,
			"count": 1,
		},
		ts,
	)
}

func stopPoint(s StopSample, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementProcessStop,
		map[string]string{
			"name":      s.Name,
			"forced":    strconv.FormatBool(s.Forced),
			"timed_out": strconv.FormatBool(s.TimedOut),
		},
		map[string]any{
			"pid":         s.PID,
			"duration_ms": float64(s.Duration) / float64(time.Millisecond),
			"failed":      s.Failed,
		},
		ts,
	)
}

func supervisorPoint(instance string, s SupervisorSample, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementSupervisor,
		map[string]string{
			"instance": instance,
		},
		map[string]any{
			"supervised":     s.Supervised,
			"running":        s.Running,
			"buffered_lines": s.BufferedLines,
			"lines_captured": s.LinesCaptured,
		},
		ts,
	)
}
