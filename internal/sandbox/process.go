package sandbox

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// killGrace bounds how long Wait lingers on output pipes after the process
// group has been killed.
const killGrace = 2 * time.Second

// ProcessSandbox runs programs as local child processes in their own process
// group, with rlimits applied through the shell's ulimit builtin.
type ProcessSandbox struct {
	*runner
}

// NewProcessSandbox creates a sandbox with the given policy.
func NewProcessSandbox(policy Policy, opts ...Option) *ProcessSandbox {
	return &ProcessSandbox{runner: newRunner(policy, opts)}
}

func (s *ProcessSandbox) Execute(ctx context.Context, req Request) *Result {
	return s.run(ctx, req, s.command)
}

func (s *ProcessSandbox) command(ctx context.Context, dir string, lang Language, _ Request) (*exec.Cmd, func(), error) {
	bin, err := exec.LookPath(lang.Command[0])
	if err != nil {
		return nil, nil, fmt.Errorf("resolving %s interpreter: %w", lang.Name, err)
	}
	shell, err := exec.LookPath("sh")
	if err != nil {
		return nil, nil, fmt.Errorf("resolving shell: %w", err)
	}

	args := append([]string{"-c", limitScript(s.policy) + `exec "$@"`, "pairpad", bin}, lang.Command[1:]...)
	cmd := exec.CommandContext(ctx, shell, args...)
	cmd.Dir = dir
	cmd.Env = append(baseEnv(dir), lang.environ()...)
	cmd.WaitDelay = killGrace
	return cmd, configureProcess(cmd), nil
}

// limitScript renders the ulimit prefix for the policy. Limits the shell
// cannot apply are skipped rather than failing the run.
func limitScript(p Policy) string {
	var b strings.Builder
	if p.CPUSeconds > 0 {
		fmt.Fprintf(&b, "ulimit -t %d 2>/dev/null; ", p.CPUSeconds)
	}
	if p.MemoryMB > 0 {
		fmt.Fprintf(&b, "ulimit -v %d 2>/dev/null; ", p.MemoryMB*1024)
	}
	if p.MaxProcesses > 0 {
		fmt.Fprintf(&b, "ulimit -u %d 2>/dev/null || ulimit -p %d 2>/dev/null; ", p.MaxProcesses, p.MaxProcesses)
	}
	return b.String()
}
