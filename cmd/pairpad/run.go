package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/michaelbrown/pairpad/internal/logging"
	"github.com/michaelbrown/pairpad/internal/sandbox"
)

var (
	languageFlag string
	stdinFlag    string
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run a source file through the sandbox",
	Long: `Run a local source file with the configured sandbox backend and limits.

The language is inferred from the file extension unless --language is set.

Examples:
  pairpad run hello.py
  pairpad run main.cpp --stdin input.txt
  pairpad run script.txt --language ruby`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&languageFlag, "language", "", "Language (default: from file extension)")
	runCmd.Flags().StringVar(&stdinFlag, "stdin", "", "File to feed to the program's stdin")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	language := languageFlag
	if language == "" {
		var ok bool
		if language, ok = languageForFile(args[0]); !ok {
			return fmt.Errorf("cannot infer language for %s, use --language", args[0])
		}
	}

	source, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var stdin []byte
	if stdinFlag != "" {
		if stdin, err = os.ReadFile(stdinFlag); err != nil {
			return err
		}
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	sb, err := sandbox.New(cfg.Sandbox.Backend, sandbox.FromConfig(cfg.Sandbox), sandbox.WithLogger(logger))
	if err != nil {
		return err
	}

	// Ctrl+C cancels the execution rather than killing pairpad.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := sb.Execute(ctx, sandbox.Request{
		Language: language,
		Source:   string(source),
		Stdin:    string(stdin),
	})
	logger.Debug("run finished", zap.String("failure", string(res.Failure)), zap.Duration("duration", res.Duration))

	fmt.Fprint(os.Stdout, res.Stdout)
	fmt.Fprint(os.Stderr, res.Stderr)
	if res.Truncated {
		fmt.Fprintln(os.Stderr, "\033[33m(output truncated)\033[0m")
	}

	switch {
	case res.Failure != sandbox.FailureNone:
		return fmt.Errorf("%s: %s", res.Failure, res.Message)
	case res.ExitCode != 0:
		return fmt.Errorf("exit code %d", res.ExitCode)
	}
	return nil
}
