//go:build unix

package orchestrator

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// isolate puts the worker in its own process group so a kill also reaches the
// browser it launched.
func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
}
