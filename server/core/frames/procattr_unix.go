//go:build unix

package frames

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup starts the decoder in its own process group so that
// cancellation also kills any children it spawned
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
