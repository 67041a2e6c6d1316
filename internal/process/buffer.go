package process

import "sync"

// DefaultBufferCapacity is the number of lines kept per stream when no
// capacity is configured.
const DefaultBufferCapacity = 1000

// OutputBuffer is a fixed-capacity, append-only line buffer that evicts the
// oldest line once full.
//
// Thread Safety:
//   - Safe for one writer (the capture goroutine) and many concurrent readers.
//   - Snapshot copies under a read lock; the critical section is O(capacity).
type OutputBuffer struct {
	mu           sync.RWMutex
	lines        []string
	capacity     int
	head         int
	count        int
	totalWritten int
}

// NewOutputBuffer creates a buffer holding at most capacity lines.
// A non-positive capacity falls back to DefaultBufferCapacity.
func NewOutputBuffer(capacity int) *OutputBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &OutputBuffer{
		lines:    make([]string, capacity),
		capacity: capacity,
	}
}

// Append adds a line at the end, evicting the oldest line when the buffer
// already holds capacity lines.
func (b *OutputBuffer) Append(line string) {
	b.mu.Lock()
	b.lines[b.head] = line
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
	b.totalWritten++
	b.mu.Unlock()
}

// Snapshot returns a copy of the buffered lines, oldest first.
// The result is never nil.
func (b *OutputBuffer) Snapshot() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]string, b.count)
	if b.count < b.capacity {
		copy(result, b.lines[:b.count])
		return result
	}

	// Wrapped: oldest line sits at head.
	n := copy(result, b.lines[b.head:])
	copy(result[n:], b.lines[:b.head])
	return result
}

// Clear drops every buffered line. TotalWritten is preserved.
func (b *OutputBuffer) Clear() {
	b.mu.Lock()
	for i := range b.lines {
		b.lines[i] = ""
	}
	b.head = 0
	b.count = 0
	b.mu.Unlock()
}

// Len returns the number of lines currently buffered.
func (b *OutputBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Capacity returns the maximum number of lines the buffer holds.
func (b *OutputBuffer) Capacity() int {
	return b.capacity
}

// TotalWritten returns the number of lines ever appended.
func (b *OutputBuffer) TotalWritten() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.totalWritten
}
