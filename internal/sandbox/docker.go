package sandbox

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DockerSandbox runs code in throwaway Docker containers.
type DockerSandbox struct {
	*runner
	binary string
}

// NewDockerSandbox creates a sandbox with the given policy.
func NewDockerSandbox(policy Policy, opts ...Option) *DockerSandbox {
	return &DockerSandbox{runner: newRunner(policy, opts), binary: "docker"}
}

func (d *DockerSandbox) Execute(ctx context.Context, req Request) *Result {
	return d.run(ctx, req, d.command)
}

func (d *DockerSandbox) command(ctx context.Context, dir string, lang Language, req Request) (*exec.Cmd, func(), error) {
	if lang.Image == "" {
		return nil, nil, fmt.Errorf("no image configured for %s", lang.Name)
	}
	bin, err := exec.LookPath(d.binary)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving docker: %w", err)
	}

	name := "pairpad-" + uuid.NewString()
	args := append(d.runArgs(name, dir, req.Stdin != ""), lang.Image)
	args = append(args, lang.Command...)

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.WaitDelay = killGrace

	// Killing the docker client does not stop the container; remove it
	// explicitly whenever the run was cut short.
	cleanup := func() {
		if ctx.Err() == nil {
			return
		}
		rmCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if out, err := exec.CommandContext(rmCtx, bin, "rm", "-f", name).CombinedOutput(); err != nil {
			d.logger.Warn("removing container",
				zap.String("container", name), zap.Error(err), zap.ByteString("output", out))
		}
	}
	return cmd, cleanup, nil
}

func (d *DockerSandbox) runArgs(name, dir string, stdin bool) []string {
	p := d.policy
	args := []string{
		"run", "--rm",
		"--name", name,
		"-v", dir + ":/workspace",
		"-w", "/workspace",
		"-e", "HOME=/workspace",
		"-e", "PYTHONUNBUFFERED=1",
		"--stop-timeout", fmt.Sprintf("%d", int(p.Timeout.Seconds())),
	}
	if stdin {
		args = append(args, "-i")
	}
	if p.MemoryMB > 0 {
		args = append(args, "--memory", fmt.Sprintf("%dm", p.MemoryMB))
	}
	if p.CPUSeconds > 0 {
		args = append(args, "--ulimit", fmt.Sprintf("cpu=%d", p.CPUSeconds))
	}
	if p.MaxProcesses > 0 {
		args = append(args, "--pids-limit", fmt.Sprintf("%d", p.MaxProcesses))
	}
	if !p.Network {
		args = append(args, "--network=none")
	}
	return args
}
