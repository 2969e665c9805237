//go:build linux

package sandbox

import (
	"os/exec"
	"syscall"
)

// configureProcess puts the child in its own process group and makes
// cancellation kill the whole group, so programs that fork cannot outlive
// their deadline. Pdeathsig also takes the child down if the server dies.
// The returned func kills whatever is left of the group once the child has
// been reaped, so background processes die with a normal exit too.
func configureProcess(cmd *exec.Cmd) func() {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	cmd.Cancel = func() error {
		return killGroup(cmd)
	}
	return func() {
		if cmd.Process != nil {
			killGroup(cmd)
		}
	}
}

// killGroup signals the group led by the child. ESRCH once the group is
// empty is expected and ignored by callers.
func killGroup(cmd *exec.Cmd) error {
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
