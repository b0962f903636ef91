//go:build unix

package harness

import (
	"os/exec"
	"syscall"
)

// The peer leads its own process group, so that killing it also kills anything it started,
// such as the JVM behind a wrapper script.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd) error {
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return cmd.Process.Kill()
	}
	return nil
}
