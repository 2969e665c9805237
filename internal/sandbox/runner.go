package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/uber-go/tally"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Option customizes a sandbox.
type Option func(*runner)

// WithLogger sets the logger used for execution records.
func WithLogger(logger *zap.Logger) Option {
	return func(r *runner) { r.logger = logger.Named("sandbox") }
}

// WithStats sets the metrics scope.
func WithStats(scope tally.Scope) Option {
	return func(r *runner) { r.stats = scope.SubScope("sandbox") }
}

// commandFunc builds the child command for a prepared work directory. The
// returned cleanup, if any, runs after the child has been reaped and before
// the work directory is removed, on every path once the command is built.
type commandFunc func(ctx context.Context, dir string, lang Language, req Request) (*exec.Cmd, func(), error)

// runner holds what both backends share: admission, the work directory,
// the deadline, output capture, and result classification.
type runner struct {
	policy Policy
	sem    *semaphore.Weighted
	logger *zap.Logger
	stats  tally.Scope
}

func newRunner(policy Policy, opts []Option) *runner {
	n := policy.MaxConcurrent
	if n <= 0 {
		n = 1
	}
	r := &runner{
		policy: policy,
		sem:    semaphore.NewWeighted(int64(n)),
		logger: zap.NewNop(),
		stats:  tally.NoopScope,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *runner) Languages() []string {
	return r.policy.Names()
}

func (r *runner) run(ctx context.Context, req Request, build commandFunc) *Result {
	lang, ok := r.policy.Language(req.Language)
	if !ok {
		r.stats.Counter("unsupported").Inc(1)
		return unsupported()
	}

	res := r.execute(ctx, lang, req, build)

	r.stats.Tagged(map[string]string{"language": lang.Name}).Counter("executions").Inc(1)
	if res.Failure != FailureNone {
		r.stats.Tagged(map[string]string{"failure": string(res.Failure)}).Counter("failures").Inc(1)
	}
	r.stats.Timer("duration").Record(res.Duration)
	r.logger.Info("execution finished",
		zap.String("language", lang.Name),
		zap.String("failure", string(res.Failure)),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration),
		zap.Bool("truncated", res.Truncated),
	)
	return res
}

func (r *runner) execute(ctx context.Context, lang Language, req Request, build commandFunc) *Result {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return &Result{Failure: FailureCancelled, Message: "waiting for execution slot: " + err.Error(), ExitCode: -1}
	}
	defer r.sem.Release(1)

	dir, err := os.MkdirTemp("", "pairpad-run-*")
	if err != nil {
		return spawnFailure(fmt.Errorf("creating work dir: %w", err))
	}
	defer os.RemoveAll(dir)

	if err := os.WriteFile(filepath.Join(dir, lang.File), []byte(req.Source), 0o644); err != nil {
		return spawnFailure(fmt.Errorf("writing source file: %w", err))
	}

	execCtx, cancel := context.WithTimeout(ctx, r.policy.Timeout)
	defer cancel()

	cmd, cleanup, err := build(execCtx, dir, lang, req)
	if err != nil {
		return spawnFailure(err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	stdout := newCappedBuffer(r.policy.MaxOutputBytes)
	stderr := newCappedBuffer(r.policy.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if req.Stdin != "" {
		cmd.Stdin = strings.NewReader(req.Stdin)
	}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return spawnFailure(fmt.Errorf("starting %s: %w", lang.Name, err))
	}
	waitErr := cmd.Wait()

	res := &Result{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Duration:  time.Since(started),
		Truncated: stdout.truncated || stderr.truncated,
	}

	switch {
	case waitErr == nil:
		res.ExitCode = 0
	case ctx.Err() != nil:
		res.Failure = FailureCancelled
		res.ExitCode = -1
		res.Message = "execution cancelled"
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		res.Failure = FailureTimeout
		res.ExitCode = -1
		res.Message = fmt.Sprintf("execution timed out after %s", r.policy.Timeout)
	case cmd.ProcessState != nil:
		// Covers *exec.ExitError and exec.ErrWaitDelay.
		res.ExitCode = cmd.ProcessState.ExitCode()
	default:
		res.Failure = FailureSpawn
		res.ExitCode = -1
		res.Message = waitErr.Error()
	}
	return res
}

// baseEnv is the scrubbed environment a child starts with.
func baseEnv(home string) []string {
	return []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + home,
		"TMPDIR=" + home,
		"LANG=C.UTF-8",
		"PYTHONUNBUFFERED=1",
		"PYTHONDONTWRITEBYTECODE=1",
	}
}
