//go:build linux || darwin || freebsd || netbsd || openbsd

package runner

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the simulator in its own group so a timeout also
// kills whatever it spawned.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
