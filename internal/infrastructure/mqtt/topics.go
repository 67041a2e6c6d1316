package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultTopicPrefix is the root of every topic when none is configured.
const DefaultTopicPrefix = "procwarden"

// Topics builds procwarden MQTT topics under a common prefix.
// Using these helpers keeps topic naming consistent across publishers and
// subscribers.
//
//	topics := mqtt.NewTopics("procwarden")
//	topics.ProcessEvent(4242, "process.started")
//	// Returns: "procwarden/process/4242/process.started"
type Topics struct {
	prefix string
}

// NewTopics returns builders rooted at prefix. Surrounding slashes are
// trimmed and an empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// =============================================================================
// Process Topics
// =============================================================================

// ProcessEvent returns the topic for one lifecycle event of a process.
//
// Example: procwarden/process/4242/process.stopped
func (t Topics) ProcessEvent(pid int, eventType string) string {
	return fmt.Sprintf("%s/process/%s/%s", t.Prefix(), strconv.Itoa(pid), eventType)
}

// ProcessCount returns the retained topic carrying the supervised count.
//
// Example: procwarden/process/count
func (t Topics) ProcessCount() string {
	return t.Prefix() + "/process/count"
}

// SupervisorEvent returns the topic for events not tied to one process,
// such as a bulk stop or a spawn failure.
//
// Example: procwarden/supervisor/process.stop_all
func (t Topics) SupervisorEvent(eventType string) string {
	return fmt.Sprintf("%s/supervisor/%s", t.Prefix(), eventType)
}

// =============================================================================
// Command Topics
// =============================================================================

// Command returns the topic remote callers publish a command to.
//
// Example: procwarden/command/stop
func (t Topics) Command(name string) string {
	return fmt.Sprintf("%s/command/%s", t.Prefix(), name)
}

// AllCommands matches every command topic.
//
// Pattern: procwarden/command/+
func (t Topics) AllCommands() string {
	return t.Prefix() + "/command/+"
}

// CommandName extracts the command name from a concrete command topic.
// It returns false when topic is not a command topic under this prefix.
func (t Topics) CommandName(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix()+"/command/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the retained online/offline status topic.
//
// Example: procwarden/system/status
func (t Topics) SystemStatus() string {
	return t.Prefix() + "/system/status"
}
