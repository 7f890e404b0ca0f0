//go:build !unix

package build

import "os/exec"

// setProcessGroup keeps the default cancellation, which kills the process only.
func setProcessGroup(c *exec.Cmd) {}

func killProcessGroup(c *exec.Cmd) {}
