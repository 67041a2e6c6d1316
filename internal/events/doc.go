// Package events fans supervisor lifecycle events out to the rest of the
// system: MQTT, the audit trail, InfluxDB and anything else implementing
// Sink.
//
// The process.Manager calls its sinks synchronously from the goroutine that
// started or stopped a process. Dispatcher is registered as that sink and
// hands events to a single background goroutine, so a slow broker or
// database never delays a stop.
//
//	d := events.NewDispatcher(256, logger)
//	d.Add(events.NewMQTTSink(mqttClient, manager))
//	d.Add(events.NewAuditSink(auditRepo))
//	manager.AddEventSink(d)
//	defer d.Close(ctx)
//
// Sampler and CommandListener are the two periodic and inbound
// counterparts: one writes supervisor gauges to InfluxDB, the other accepts
// stop commands over MQTT.
package events
