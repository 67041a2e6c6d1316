package process

import "time"

// EventType identifies a lifecycle event.
type EventType string

const (
	EventStarted     EventType = "process.started"
	EventSpawnFailed EventType = "process.spawn_failed"
	EventStopped     EventType = "process.stopped"
	EventStopAll     EventType = "process.stop_all"
)

// Event describes a lifecycle transition of a supervised process.
type Event struct {
	Type      EventType    `json:"type"`
	PID       int          `json:"pid,omitempty"`
	Name      string       `json:"name,omitempty"`
	Binary    string       `json:"binary,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Error     string       `json:"error,omitempty"`
	Outcome   *StopOutcome `json:"outcome,omitempty"`
	Count     int          `json:"count,omitempty"`
	Failures  int          `json:"failures,omitempty"`
}

// EventSink receives lifecycle events from the Manager.
//
// HandleEvent is called synchronously from the goroutine performing the
// lifecycle operation; implementations should hand off slow work.
type EventSink interface {
	HandleEvent(e Event)
}
