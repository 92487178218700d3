//go:build !unix

package invoke

import "os/exec"

func configureProcessGroup(c *exec.Cmd) {}
