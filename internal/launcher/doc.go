// Package launcher turns a start request into a process.LaunchSpec.
//
// It resolves the configured executable inside the work directory, fills
// the argument template and derives a unique worker name. When the
// executable is missing or a spawn fails, a short diagnostic is written to
// a text file next to the executable so operators without log access can
// see what went wrong.
//
// Usage:
//
//	l := launcher.New(cfg.Launcher)
//	spec, worker, err := l.Build(launcher.StartRequest{Pool: "pool.example:3333", Name: "rig"})
//	if errors.Is(err, launcher.ErrExecutableNotFound) {
//	    // 404
//	}
//	pid, err := mgr.Start(ctx, spec)
package launcher
