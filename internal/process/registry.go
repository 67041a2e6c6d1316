package process

import (
	"sort"
	"sync"
)

// Registry maps process ids to handles. An id is present if and only if the
// process is supervised; removal is the sole authority that it was retired.
//
// Thread Safety:
//   - Every method is individually atomic. List and Drain return snapshots
//     that may be stale relative to concurrent Register/Remove calls, but never
//     contain a partially-constructed entry.
type Registry struct {
	mu      sync.RWMutex
	handles map[int]*Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[int]*Handle)}
}

// Register inserts h under its pid, replacing any existing entry.
// The replaced handle (or nil) is returned so the caller can release it;
// process ids are recycled by the OS, so a collision with a retired id is
// expected.
func (r *Registry) Register(h *Handle) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	replaced := r.handles[h.pid]
	r.handles[h.pid] = h
	return replaced
}

// Lookup returns the handle for pid.
func (r *Registry) Lookup(pid int) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[pid]
	return h, ok
}

// Remove atomically removes and returns the handle for pid.
func (r *Registry) Remove(pid int) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[pid]
	if ok {
		delete(r.handles, pid)
	}
	return h, ok
}

// List returns every registered handle in pid order.
func (r *Registry) List() []*Handle {
	r.mu.RLock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	sortByPID(handles)
	return handles
}

// Drain atomically removes and returns every registered handle in pid order.
// Handles registered after Drain returns are not included.
func (r *Registry) Drain() []*Handle {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.handles = make(map[int]*Handle)
	r.mu.Unlock()

	sortByPID(handles)
	return handles
}

// Len returns the number of supervised processes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

func sortByPID(handles []*Handle) {
	sort.Slice(handles, func(i, j int) bool {
		return handles[i].pid < handles[j].pid
	})
}
