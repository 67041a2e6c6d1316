//go:build windows

package process

import (
	"errors"
	"os"
	"os/exec"
)

// setProcAttr is a no-op on Windows; process groups work differently.
func setProcAttr(_ *exec.Cmd) {}

// signalTree interrupts p, or kills it when forced. Descendants are not
// reached on Windows.
func signalTree(p *os.Process, forced bool) error {
	if !forced {
		if err := p.Signal(os.Interrupt); err == nil {
			return nil
		}
	}
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
