package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/entrhq/pilot/pkg/browser"
	"github.com/entrhq/pilot/pkg/config"
	"github.com/entrhq/pilot/pkg/logging"
	"github.com/entrhq/pilot/pkg/protocol"
	"github.com/entrhq/pilot/pkg/runner"
	"github.com/entrhq/pilot/pkg/scheduler"
)

const shutdownGrace = 30 * time.Second

func newServeCmd() *cobra.Command {
	var (
		configPath string
		listenAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket orchestration server",
		Long: `Start the persistent server: clients connect over WebSocket, submit
runs, and receive queued/started/log/completed events. The endpoint is
/ws, with /healthz and /metrics alongside.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}
			return serve(cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "pilot.yaml", "Path to config file")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (overrides config)")

	return cmd
}

func serve(cfg *config.Config) error {
	log, err := logging.NewLogger("serve")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: file logging unavailable: %v\n", err)
	}
	defer log.Close()

	exec := runner.New(runner.Options{
		BaseDir:       cfg.Artifacts.WorkDir,
		KeepArtifacts: cfg.Artifacts.Keep,
		RetainDir:     cfg.Artifacts.OutputDir,
	})

	var facade *browser.Facade
	if cfg.EnableBrowserCommands {
		facade = browser.NewFacade(browser.FacadeOptions{Headless: cfg.Run.Headless})
		defer facade.Close()
	}

	srv := protocol.NewServer(exec, protocol.Options{
		MaxConcurrency: cfg.MaxConcurrency,
		Metrics:        scheduler.NewMetrics(nil),
		Facade:         facade,
		Logger:         log,
		RunDefaults:    cfg.ApplyRunDefaults,
	})

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.ListenAddr)
		fmt.Printf("Pilot server listening on %s\n", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		log.Infof("received %s, shutting down", sig)
		fmt.Println("\nShutting down...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warnf("http shutdown: %v", err)
	}

	// Let in-flight runs finish within the grace period, then drop any
	// remaining connections.
	if err := srv.Scheduler().Wait(ctx); err != nil {
		log.Warnf("shutdown with runs still active: %v", err)
	}
	srv.Shutdown()
	return nil
}
