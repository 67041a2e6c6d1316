// Package influxdb writes supervisor telemetry to InfluxDB v2.
//
// Three measurements are produced:
//   - process_events: one point per lifecycle event, tagged by type and name
//   - process_stop: duration and escalation of each stop
//   - supervisor: periodic gauges (supervised, running, buffered lines)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//	client.WriteProcessEvent("process.started", "rig4242", 4242)
//
// Writes never block; batch errors are delivered through SetOnError.
package influxdb
