package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/michaelbrown/pairpad/internal/logging"
	"github.com/michaelbrown/pairpad/internal/metrics"
	"github.com/michaelbrown/pairpad/internal/sandbox"
	"github.com/michaelbrown/pairpad/internal/server"
	"github.com/michaelbrown/pairpad/internal/session"
	"github.com/michaelbrown/pairpad/internal/suggest"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the pairpad server",
	Long: `Start the pairpad HTTP server with room relay and code execution.

Participants connect to /ws/{room}. Code runs via POST /run and suggestions
come from POST /debug.

Examples:
  pairpad serve
  pairpad serve --port 9090
  PAIRPAD_SANDBOX_BACKEND=docker pairpad serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	m := metrics.New("pairpad", logger)
	defer m.Close()

	registry := session.NewRegistry(session.RegistryOptions{
		Shards:      cfg.Relay.Shards,
		MaxRoomSize: cfg.Relay.MaxRoomSize,
		Stats:       m.Scope,
	})
	relay := session.NewRelay(registry, cfg.Relay.EchoSender, logger, m.Scope)
	endpoint := session.NewEndpoint(registry, relay, logger, cfg.Relay.PingInterval)

	sb, err := sandbox.New(cfg.Sandbox.Backend, sandbox.FromConfig(cfg.Sandbox),
		sandbox.WithLogger(logger), sandbox.WithStats(m.Scope))
	if err != nil {
		return fmt.Errorf("creating sandbox: %w", err)
	}
	logger.Info("sandbox ready",
		zap.String("backend", cfg.Sandbox.Backend),
		zap.Strings("languages", sb.Languages()),
	)

	suggester := suggest.New(cfg.Suggest, logger)
	if cfg.Suggest.HasProvider() {
		logger.Info("suggestions via provider", zap.String("model", cfg.Suggest.Provider.Model))
	}

	// Determine port
	port := cfg.Server.Port
	if portFlag > 0 {
		port = portFlag
	}

	srv := server.New(cfg, server.Deps{
		Registry:  registry,
		Endpoint:  endpoint,
		Sandbox:   sb,
		Suggester: suggester,
		Metrics:   m.Handler,
		Logger:    logger,
	})

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	if err := srv.Start(port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
