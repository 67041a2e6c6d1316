package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/procwarden/internal/infrastructure/mqtt"
	"github.com/nerrad567/procwarden/internal/process"
)

// Command names accepted on {prefix}/command/{name}.
const (
	CommandStop    = "stop"
	CommandStopAll = "stopall"
)

// commandTimeout bounds one command, covering a full stop-all.
const commandTimeout = 30 * time.Second

// ErrUnknownCommand is returned for command names the listener does not handle.
var ErrUnknownCommand = errors.New("unknown command")

// Subscriber is the part of mqtt.Client the listener needs.
type Subscriber interface {
	Topics() mqtt.Topics
	QoS() byte
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	HasSubscription(topic string) bool
}

// Controller performs the stop operations. *process.Manager satisfies it.
type Controller interface {
	Stop(ctx context.Context, pid int) (process.StopOutcome, error)
	StopAll(ctx context.Context) process.StopAllResult
}

// stopCommand is the payload of a stop command.
type stopCommand struct {
	PID int `json:"pid"`
}

// CommandListener accepts stop commands over MQTT. Outcomes are not replied
// to directly; they reach subscribers as ordinary lifecycle events.
type CommandListener struct {
	sub    Subscriber
	ctrl   Controller
	logger Logger
}

// NewCommandListener creates a listener. Call Start to subscribe.
func NewCommandListener(sub Subscriber, ctrl Controller, logger Logger) *CommandListener {
	if logger == nil {
		logger = noopLogger{}
	}
	return &CommandListener{sub: sub, ctrl: ctrl, logger: logger}
}

// Start subscribes to every command topic. Starting an already subscribed
// listener does nothing.
func (l *CommandListener) Start() error {
	topic := l.sub.Topics().AllCommands()
	if l.sub.HasSubscription(topic) {
		return nil
	}
	if err := l.sub.Subscribe(topic, l.sub.QoS(), l.handle); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	l.logger.Info("listening for commands", "topic", topic)
	return nil
}

// Stop unsubscribes from the command topics.
func (l *CommandListener) Stop() error {
	return l.sub.Unsubscribe(l.sub.Topics().AllCommands())
}

func (l *CommandListener) handle(topic string, payload []byte) error {
	name, ok := l.sub.Topics().CommandName(topic)
	if !ok {
		return fmt.Errorf("%w: topic %s", ErrUnknownCommand, topic)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch name {
	case CommandStop:
		var cmd stopCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return fmt.Errorf("decoding stop command: %w", err)
		}
		if cmd.PID <= 0 {
			return fmt.Errorf("stop command: invalid pid %d", cmd.PID)
		}
		outcome, err := l.ctrl.Stop(ctx, cmd.PID)
		if err != nil {
			return err
		}
		l.logger.Info("process stopped by command",
			"pid", outcome.PID,
			"forced", outcome.Forced,
			"timed_out", outcome.TimedOut,
		)
		return nil

	case CommandStopAll:
		res := l.ctrl.StopAll(ctx)
		l.logger.Info("all processes stopped by command",
			"count", res.Count,
			"failures", res.Failures(),
		)
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
}
