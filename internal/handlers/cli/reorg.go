package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

// ReorgStore is the subset of store.Store the ack-reorg command needs.
type ReorgStore interface {
	RewindTo(ctx context.Context, network string, keepHeight int64) error
}

// ackReorgCommand manually rewinds the cursor after the Scanner halted with
// ReorgTooDeep, acknowledging that an operator has investigated the chain
// split and chosen a safe height to resume from (spec.md §4.2 "Reorg beyond
// window -> halt; require operator acknowledgement to resume").
func ackReorgCommand(deps Deps) *cli.Command {
	return &cli.Command{
		Name:        "ack-reorg",
		Description: "Acknowledges a reorg deeper than max_rewind by rewinding the cursor to an operator-chosen height.",
		Usage:       "blockwatch ack-reorg --network <network> --height <height>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "network", Required: true},
			&cli.IntFlag{Name: "height", Required: true, Usage: "height to keep; everything above it is deleted"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			network := c.String("network")
			height := c.Int("height")
			return deps.Store.RewindTo(ctx, network, height)
		},
	}
}
