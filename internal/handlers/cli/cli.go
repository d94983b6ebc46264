// Package cli implements the blockwatch process entrypoint: the long-running
// `serve` command and the operator-driven remediation commands for reorg
// halts and dead-lettered callback deliveries.
package cli

import (
	"context"
	"net/http"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tronwatch/core/internal/ingest"
)

// Deps bundles everything the CLI commands need, assembled by main.go's
// wiring before Run is called.
type Deps struct {
	Ingest        ingest.Service
	APIListenAddr string
	APIHandler    http.Handler
	Store         ReorgStore
	DeadLetters   DeadLetterStore
}

// Run initializes and executes the blockwatch CLI application.
func Run(ctx context.Context, deps Deps) error {
	app := &cli.Command{
		EnableShellCompletion: true,
		Name:                  "blockwatch",
		Description:           "Command-line interface for running and operating the blockwatch ingestion core.",
		Usage:                 "blockwatch [command] [flags]",
		Commands: []*cli.Command{
			serveCommand(deps),
			ackReorgCommand(deps),
			deadLetterCommand(deps),
		},
	}

	return app.Run(ctx, os.Args)
}
