package process

import (
	"sync"
	"testing"
)

func fakeHandle(pid int) *Handle {
	return &Handle{
		pid:    pid,
		name:   "fake",
		stdout: NewOutputBuffer(1),
		stderr: NewOutputBuffer(1),
		done:   make(chan struct{}),
	}
}

func TestRegistry_RegisterLookupRemove(t *testing.T) {
	r := NewRegistry()
	h := fakeHandle(42)

	if replaced := r.Register(h); replaced != nil {
		t.Errorf("Register() replaced = %v, want nil", replaced)
	}
	got, ok := r.Lookup(42)
	if !ok || got != h {
		t.Fatalf("Lookup(42) = %v, %v; want handle, true", got, ok)
	}

	removed, ok := r.Remove(42)
	if !ok || removed != h {
		t.Fatalf("Remove(42) = %v, %v; want handle, true", removed, ok)
	}
	if _, ok := r.Remove(42); ok {
		t.Error("second Remove(42) ok = true, want false")
	}
	if _, ok := r.Lookup(42); ok {
		t.Error("Lookup after Remove ok = true, want false")
	}
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry()
	old := fakeHandle(7)
	r.Register(old)

	if replaced := r.Register(fakeHandle(7)); replaced != old {
		t.Errorf("Register() replaced = %v, want old handle", replaced)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	r := NewRegistry()
	for _, pid := range []int{30, 10, 20} {
		r.Register(fakeHandle(pid))
	}

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("len(List()) = %d, want 3", len(list))
	}
	for i, want := range []int{10, 20, 30} {
		if list[i].PID() != want {
			t.Errorf("List()[%d].PID() = %d, want %d", i, list[i].PID(), want)
		}
	}
}

func TestRegistry_Drain(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeHandle(1))
	r.Register(fakeHandle(2))

	drained := r.Drain()
	if len(drained) != 2 {
		t.Errorf("len(Drain()) = %d, want 2", len(drained))
	}
	if len(r.List()) != 0 {
		t.Errorf("List() after Drain = %d entries, want 0", len(r.List()))
	}
	if len(r.Drain()) != 0 {
		t.Error("second Drain() returned entries")
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 1; i <= 50; i++ {
		wg.Add(3)
		go func(pid int) {
			defer wg.Done()
			r.Register(fakeHandle(pid))
		}(i)
		go func(pid int) {
			defer wg.Done()
			r.Lookup(pid)
		}(i)
		go func() {
			defer wg.Done()
			_ = r.List()
		}()
	}
	wg.Wait()

	if r.Len() != 50 {
		t.Errorf("Len() = %d, want 50", r.Len())
	}
}
