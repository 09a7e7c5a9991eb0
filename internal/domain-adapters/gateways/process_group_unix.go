//go:build unix

package gateways

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// isolateProcessGroup starts cmd as a process group leader so cancellation
// kills installer and probe descendants along with the direct child.
func isolateProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
}
