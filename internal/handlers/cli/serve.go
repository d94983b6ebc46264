package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/tronwatch/core/internal/pkg/logger"
)

// shutdownGrace bounds how long the HTTP server waits for in-flight
// requests to finish once a termination signal arrives.
const shutdownGrace = 10 * time.Second

// serveCommand starts the full pipeline: the ingest service (Scanner,
// Callback Dispatcher, Stream Session Manager) and the HTTP/WebSocket API.
// The process runs until it receives an interrupt or termination signal.
func serveCommand(deps Deps) *cli.Command {
	return &cli.Command{
		Name:        "serve",
		Description: "Starts the ingestion core and the HTTP/WebSocket API, and runs until terminated.",
		Usage:       "Runs the full pipeline. Terminates gracefully on Ctrl+C or SIGTERM.",
		Action: func(ctx context.Context, c *cli.Command) error {
			quit := make(chan os.Signal, 1)
			defer close(quit)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			if err := deps.Ingest.Start(ctx); err != nil {
				return err
			}
			defer deps.Ingest.Close()

			srv := &http.Server{Addr: deps.APIListenAddr, Handler: deps.APIHandler}
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error(ctx, "api server exited", "error", err)
				}
			}()

			<-quit

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
