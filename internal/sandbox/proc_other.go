//go:build !linux

package sandbox

import "os/exec"

// configureProcess relies on exec.CommandContext killing the direct child;
// process groups and Pdeathsig are Linux only.
func configureProcess(cmd *exec.Cmd) func() {
	return func() {}
}
