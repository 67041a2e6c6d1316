package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/nerrad567/procwarden/internal/audit"
	"github.com/nerrad567/procwarden/internal/infrastructure/influxdb"
	"github.com/nerrad567/procwarden/internal/infrastructure/mqtt"
	"github.com/nerrad567/procwarden/internal/process"
)

type published struct {
	topic    string
	payload  []byte
	retained bool

	// viaRetained marks messages sent through PublishRetained.
	viaRetained bool
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Topics() mqtt.Topics { return mqtt.NewTopics("pw") }

func (p *fakePublisher) PublishJSON(topic string, v any, retained bool) error {
	if p.err != nil {
		return p.err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.msgs = append(p.msgs, published{topic: topic, payload: b, retained: retained})
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) PublishRetained(topic string, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	p.msgs = append(p.msgs, published{topic: topic, payload: payload, retained: true, viaRetained: true})
	p.mu.Unlock()
	return nil
}

type fixedCounter int

func (c fixedCounter) Count() int { return int(c) }

type fakeAuditWriter struct {
	mu      sync.Mutex
	entries []*audit.AuditLog
}

func (w *fakeAuditWriter) Create(_ context.Context, log *audit.AuditLog) error {
	w.mu.Lock()
	w.entries = append(w.entries, log)
	w.mu.Unlock()
	return nil
}

type fakeMetrics struct {
	mu      sync.Mutex
	events  []string
	stops   []influxdb.StopSample
	samples []influxdb.SupervisorSample
}

func (m *fakeMetrics) WriteProcessEvent(eventType, _ string, _ int) {
	m.mu.Lock()
	m.events = append(m.events, eventType)
	m.mu.Unlock()
}

func (m *fakeMetrics) WriteStop(s influxdb.StopSample) {
	m.mu.Lock()
	m.stops = append(m.stops, s)
	m.mu.Unlock()
}

func (m *fakeMetrics) WriteSupervisor(_ string, s influxdb.SupervisorSample) {
	m.mu.Lock()
	m.samples = append(m.samples, s)
	m.mu.Unlock()
}

func (m *fakeMetrics) sampleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.samples)
}

// recordingSink records delivered event types; optional failure modes.
type recordingSink struct {
	name  string
	fail  bool
	panic bool

	mu    sync.Mutex
	types []process.EventType
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(_ context.Context, e process.Event) error {
	if s.panic {
		panic("sink exploded")
	}
	s.mu.Lock()
	s.types = append(s.types, e.Type)
	s.mu.Unlock()
	if s.fail {
		return errors.New("sink failed")
	}
	return nil
}

func (s *recordingSink) received() []process.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]process.EventType(nil), s.types...)
}

// blockingSink holds delivery until release is closed.
type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Name() string { return "blocking" }

func (s *blockingSink) Deliver(_ context.Context, _ process.Event) error {
	<-s.release
	return nil
}

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
	errs  []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errs = append(l.errs, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) counts() (warns, errs int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns), len(l.errs)
}
