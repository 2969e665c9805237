// Package sandbox runs caller-supplied programs in a bounded child process
// and captures their output.
package sandbox

import (
	"context"
	"fmt"
	"time"
)

// FailureKind classifies why an execution did not run to completion. The
// zero value means the program ran; its own errors are in Stderr.
type FailureKind string

const (
	FailureNone                FailureKind = ""
	FailureUnsupportedLanguage FailureKind = "unsupported_language"
	FailureTimeout             FailureKind = "timeout"
	FailureSpawn               FailureKind = "spawn_failure"
	FailureCancelled           FailureKind = "cancelled"
)

// MessageUnsupported is reported for languages outside the policy.
const MessageUnsupported = "Language not supported yet"

// Request describes one program to run.
type Request struct {
	Language string
	Source   string
	Stdin    string
}

// Result is the outcome of a sandboxed execution.
type Result struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Duration  time.Duration
	Failure   FailureKind
	Truncated bool   // output exceeded the policy cap
	Message   string // human readable failure detail
}

// Sandbox runs code in an isolated environment.
type Sandbox interface {
	Execute(ctx context.Context, req Request) *Result
	Languages() []string
}

// New returns the sandbox for backend ("process" or "docker").
func New(backend string, policy Policy, opts ...Option) (Sandbox, error) {
	switch backend {
	case "", "process":
		return NewProcessSandbox(policy, opts...), nil
	case "docker":
		return NewDockerSandbox(policy, opts...), nil
	default:
		return nil, fmt.Errorf("unknown sandbox backend: %s", backend)
	}
}

func unsupported() *Result {
	return &Result{
		Failure:  FailureUnsupportedLanguage,
		Message:  MessageUnsupported,
		ExitCode: -1,
	}
}

func spawnFailure(err error) *Result {
	return &Result{
		Failure:  FailureSpawn,
		Message:  err.Error(),
		ExitCode: -1,
	}
}
