package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/opsgate/opsgate/internal/audit"
	"github.com/opsgate/opsgate/internal/config"
	"github.com/opsgate/opsgate/internal/gateway"
	"github.com/opsgate/opsgate/internal/guard"
	"github.com/opsgate/opsgate/internal/infra"
	"github.com/opsgate/opsgate/internal/policy"
	"github.com/spf13/cobra"
)

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Opsgate gateway server",
		RunE:  runServe,
	}

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// The policy document is required. Refusing to start without it beats
	// starting with an implicit allow-nothing or allow-everything posture.
	doc, err := policy.LoadDocument(cfg.Policy.Path)
	if err != nil {
		return fmt.Errorf("failed to load policy document: %w", err)
	}
	slog.Info("policy document loaded",
		"path", cfg.Policy.Path, "policy", doc.PolicyName, "modes", doc.ModeNames())

	cloud := infra.NewCloud()
	auditWriter := audit.NewWriter(cfg.State.Dir)

	gate, err := guard.New(doc, cloud, auditWriter, cfg.Policy.DefaultMode)
	if err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	server := gateway.New(cfg.Gateway, gate)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("gateway server failed: %w", err)
		}
	}()

	fmt.Printf("Opsgate running in %s mode. Gateway: http://%s\nPress Ctrl+C to stop.\n",
		gate.Mode(), server.Addr())

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		slog.Error("server component failed", "error", runErr)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	slog.Info("shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("gateway shutdown failed", "error", err)
	}

	return runErr
}
