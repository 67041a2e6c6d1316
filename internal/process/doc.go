// Package process supervises a fleet of long-running child processes.
//
// Each supervised child is identified by its operating-system process id and
// owns two bounded output buffers (stdout and stderr) fed by a pair of capture
// goroutines. The Manager is the single owner of the Registry that maps ids to
// handles; stopping a process removes it from the registry before termination
// is attempted, so removal is the authority that a process has been retired.
//
// Features:
//   - Spawn with a dedicated process group so the whole tree can be signalled
//   - Asynchronous line capture with colour and erase-line sequences stripped
//   - Fixed-capacity output buffers that evict the oldest line
//   - Graceful stop (SIGTERM) escalating to SIGKILL within a bounded timeout
//   - Bulk stop with per-process outcomes and bounded concurrency
//   - Lifecycle events delivered to pluggable sinks
//
// Example usage:
//
//	mgr := process.NewManager(process.Config{
//	    BufferCapacity: 1000,
//	    StopTimeout:    5 * time.Second,
//	}, process.NewRegistry())
//
//	pid, err := mgr.Start(ctx, process.LaunchSpec{
//	    Name:   "worker",
//	    Binary: "/opt/worker/bin/worker",
//	    Args:   []string{"-o", "pool.example:443"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Close(ctx)
package process
