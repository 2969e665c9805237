package sandbox

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/michaelbrown/pairpad/internal/config"
)

// Language describes how to run one source language. Command runs with the
// working directory set to the directory holding File.
type Language struct {
	Name    string
	File    string
	Command []string
	Image   string // container image for the docker backend

	// Env is added to the scrubbed environment of the process backend.
	Env map[string]string
}

func (l Language) environ() []string {
	return lo.MapToSlice(l.Env, func(k, v string) string { return k + "=" + v })
}

// sharedCacheDir is a per-user directory that outlives single runs, for
// toolchains whose cold start would not fit in the timeout.
func sharedCacheDir(name string) string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "pairpad", name)
}

// Policy defines resource limits for sandbox execution.
type Policy struct {
	Timeout        time.Duration // wall clock limit, enforced by killing the process group
	CPUSeconds     int           // RLIMIT_CPU, 0 disables
	MemoryMB       int           // RLIMIT_AS (process) or --memory (docker), 0 disables
	MaxProcesses   int           // RLIMIT_NPROC (process) or --pids-limit (docker), 0 disables
	MaxOutputBytes int           // per stream capture cap, 0 disables
	Network        bool          // docker only; the process backend cannot restrict it
	MaxConcurrent  int           // executions allowed at once
	Languages      map[string]Language
}

// DefaultPolicy returns safe defaults for code execution.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:        10 * time.Second,
		CPUSeconds:     10,
		MemoryMB:       1024,
		MaxProcesses:   256,
		MaxOutputBytes: 64 * 1024,
		Network:        false,
		MaxConcurrent:  4,
		Languages:      DefaultLanguages(),
	}
}

// DefaultLanguages returns the built-in language table.
func DefaultLanguages() map[string]Language {
	langs := []Language{
		{Name: "python", File: "main.py", Command: []string{"python3", "main.py"}, Image: "python:3.12-slim"},
		{Name: "javascript", File: "main.js", Command: []string{"node", "main.js"}, Image: "node:22-slim"},
		{Name: "ruby", File: "main.rb", Command: []string{"ruby", "main.rb"}, Image: "ruby:3.3-slim"},
		{Name: "go", File: "main.go", Command: []string{"go", "run", "main.go"}, Image: "golang:1.23-alpine",
			Env: map[string]string{"GOCACHE": sharedCacheDir("go-build"), "GOTOOLCHAIN": "local"}},
		{Name: "cpp", File: "main.cpp", Command: []string{"sh", "-c", "g++ -O2 -o main main.cpp && ./main"}, Image: "gcc:14"},
		{Name: "java", File: "Main.java", Command: []string{"java", "Main.java"}, Image: "eclipse-temurin:21"},
	}
	return lo.KeyBy(langs, func(l Language) string { return l.Name })
}

// FromConfig builds a policy from configuration, layering configured
// languages over the built-in table.
func FromConfig(cfg config.SandboxConfig) Policy {
	p := DefaultPolicy()
	p.Timeout = cfg.Timeout
	p.CPUSeconds = cfg.CPUSeconds
	p.MemoryMB = cfg.MemoryMB
	p.MaxProcesses = cfg.MaxProcesses
	p.MaxOutputBytes = cfg.MaxOutputBytes
	p.Network = cfg.Network
	p.MaxConcurrent = cfg.MaxConcurrent

	for name, lc := range cfg.Languages {
		name = normalize(name)
		lang := p.Languages[name]
		lang.Name = name
		if lc.File != "" {
			lang.File = lc.File
		}
		if len(lc.Command) > 0 {
			lang.Command = lc.Command
		}
		if lc.Image != "" {
			lang.Image = lc.Image
		}
		if len(lc.Env) > 0 {
			lang.Env = lo.Assign(lang.Env, lc.Env)
		}
		if lang.File == "" || len(lang.Command) == 0 {
			continue
		}
		p.Languages[name] = lang
	}
	return p
}

// Language looks up a supported language by tag, case-insensitively.
func (p Policy) Language(name string) (Language, bool) {
	lang, ok := p.Languages[normalize(name)]
	return lang, ok
}

// Names returns the supported language tags in sorted order.
func (p Policy) Names() []string {
	names := lo.Keys(p.Languages)
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
