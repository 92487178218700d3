//go:build unix

package invoke

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup places the child in its own process group so that a
// timeout kills every process the tool spawned, not just the direct child.
func configureProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	}
}
