//go:build !windows

package core

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureCommandProcess starts the shell in its own process group so a
// cancelled context also stops the provisioning tool it spawned
func configureCommandProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		pid := cmd.Process.Pid
		if pgid, err := unix.Getpgid(pid); err == nil && pgid > 0 {
			// Negative PGID targets the full process group
			return unix.Kill(-pgid, unix.SIGKILL)
		}
		return cmd.Process.Kill()
	}
}
