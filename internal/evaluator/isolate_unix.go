//go:build unix

package evaluator

import (
	"os/exec"
	"syscall"
)

// isolate places the child in its own process group so a timeout kills
// anything it spawned as well.
func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
