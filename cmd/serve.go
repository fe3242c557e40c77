package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"dojotap/internal/server"
	"dojotap/internal/shared"
)

// Serve runs the local HTTP proxy until the context is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireClient(); err != nil {
		return err
	}

	host := cmd.String("host")
	if host == "" {
		host = r.config.Server.Host
	}
	port := cmd.Int("port")
	if port == 0 {
		port = r.config.Server.Port
	}

	serverLogger := shared.WithLogger(r.logger, "component", "server")

	router := server.NewBasicRouter()
	router.Use(
		server.LoggingMiddleware(serverLogger),
		server.CORSMiddleware(r.config.Server.AllowOrigin),
	)

	var history server.SubmissionRecorder
	if r.history != nil {
		history = r.history
	}
	handler := server.NewAPIHandler(r.client, r.loader, r.prefs, r.engine, history, serverLogger)
	router.Handler(handler)

	addr := fmt.Sprintf("%s:%d", host, port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("proxy listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	}
}
