//go:build unix

package build

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// setProcessGroup starts c as the leader of a new process group and makes
// context cancellation kill the whole group.
func setProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		return signalGroup(c, syscall.SIGKILL)
	}
}

// killProcessGroup kills helpers left behind by a process that already exited.
func killProcessGroup(c *exec.Cmd) {
	_ = signalGroup(c, syscall.SIGKILL)
}

func signalGroup(c *exec.Cmd, sig syscall.Signal) error {
	if c.Process == nil {
		return nil
	}
	if err := syscall.Kill(-c.Process.Pid, sig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
	return nil
}
