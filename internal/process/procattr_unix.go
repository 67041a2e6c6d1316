//go:build !windows

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// setProcAttr places the child in a new process group so the whole tree can
// be signalled on stop.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalTree sends SIGTERM (or SIGKILL when forced) to the process group led
// by p. A group that no longer exists is not an error.
func signalTree(p *os.Process, forced bool) error {
	sig := syscall.SIGTERM
	if forced {
		sig = syscall.SIGKILL
	}
	// Negative PID addresses the process group created via Setpgid.
	if err := syscall.Kill(-p.Pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}
