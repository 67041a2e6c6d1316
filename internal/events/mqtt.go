package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nerrad567/procwarden/internal/infrastructure/mqtt"
	"github.com/nerrad567/procwarden/internal/process"
)

// Publisher is the part of mqtt.Client the sink needs.
type Publisher interface {
	Topics() mqtt.Topics
	PublishJSON(topic string, v any, retained bool) error
	PublishRetained(topic string, payload []byte) error
}

// Counter reports how many processes are supervised.
type Counter interface {
	Count() int
}

// countPayload is the retained process count message.
type countPayload struct {
	Count     int    `json:"count"`
	Timestamp string `json:"timestamp"`
}

// MQTTSink publishes each event and refreshes the retained process count.
//
// Per-process events go to {prefix}/process/{pid}/{type}. Events without a
// pid (spawn failures, stop-all) go to {prefix}/supervisor/{type}.
type MQTTSink struct {
	pub     Publisher
	counter Counter
}

// NewMQTTSink creates a sink publishing through pub. counter may be nil, in
// which case no count is published.
func NewMQTTSink(pub Publisher, counter Counter) *MQTTSink {
	return &MQTTSink{pub: pub, counter: counter}
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// Deliver implements Sink.
func (s *MQTTSink) Deliver(ctx context.Context, e process.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	topics := s.pub.Topics()
	topic := topics.SupervisorEvent(string(e.Type))
	if e.PID > 0 {
		topic = topics.ProcessEvent(e.PID, string(e.Type))
	}

	err := s.pub.PublishJSON(topic, e, false)

	if s.counter != nil {
		err = errors.Join(err, s.publishCount(topics.ProcessCount()))
	}

	return err
}

// publishCount refreshes the retained count so late subscribers see it.
func (s *MQTTSink) publishCount(topic string) error {
	payload, err := json.Marshal(countPayload{
		Count:     s.counter.Count(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return s.pub.PublishRetained(topic, payload)
}
