package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inboxkit/mail-triage/internal/adapters/gate"
	"github.com/inboxkit/mail-triage/internal/adapters/trigger"
	"github.com/inboxkit/mail-triage/internal/config"
	"github.com/inboxkit/mail-triage/internal/core"
	"github.com/inboxkit/mail-triage/internal/di"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	cfg *config.Config,
	logger *zap.Logger,
	httpTrigger *trigger.HTTPTrigger,
	scheduler *trigger.Scheduler,
	smtpGate *gate.SMTPGate,
	store core.Store,
	analyzer core.Analyzer,
) error {
	defer logger.Sync()

	runners := []trigger.Runner{httpTrigger}

	schedCfg, err := cfg.GetScheduler()
	if err != nil {
		return err
	}
	if schedCfg.Enabled {
		runners = append(runners, scheduler)
	}
	if cfg.GetGate().Enabled {
		runners = append(runners, smtpGate)
	}

	errCh := make(chan error, len(runners))
	for _, r := range runners {
		r := r
		go func() {
			if err := r.Start(); err != nil {
				errCh <- err
			}
		}()
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Shutting down...", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("Runner failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, r := range runners {
		if err := r.Stop(shutdownCtx); err != nil {
			logger.Error("Failed to stop runner", zap.Error(err))
		}
	}

	// Close any resources that need closing
	if closer, ok := analyzer.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close analyzer", zap.Error(err))
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("Failed to close store", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}
