package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kamekamek/googlecalendar-mcp/internal/appstate"
	"github.com/kamekamek/googlecalendar-mcp/internal/config"
	"github.com/kamekamek/googlecalendar-mcp/internal/server"
	"github.com/kamekamek/googlecalendar-mcp/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Calendar Bridge HTTP server",
	Long: `Start the Calendar Bridge HTTP server: the Authorization Gate, the Upstream
OAuth Client against Google, and (when enabled) the downstream OAuth 2.1
Authorization Server.`,
	RunE: runServe,
}

// defaultGracefulTimeout bounds how long in-flight requests are given to
// finish once a shutdown signal arrives.
const (
	defaultGracefulTimeout = 30 * time.Second
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 15 * time.Second
	serverIdleTimeout      = 60 * time.Second
)

func init() {
	serveCmd.Flags().String("config", ".", "directory to search for config.yaml")
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	state, err := appstate.New(cfg)
	if err != nil {
		return err
	}

	router := server.New(state)
	httpServer := &http.Server{
		Addr:         cfg.Server.BindAddress,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	go func() {
		logger.Infof("calendar-bridge listening on %s", cfg.Server.BindAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down calendar-bridge...")

	ctx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("server forced to shutdown: %v", err)
		return err
	}

	logger.Info("calendar-bridge shutdown complete")
	return nil
}
