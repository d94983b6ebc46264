package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/tronwatch/core/internal/callbackdispatch"
	"github.com/tronwatch/core/internal/store"
)

// DeadLetterStore is the subset of store.Store the dead-letter commands need.
type DeadLetterStore interface {
	GetSubscription(ctx context.Context, id uuid.UUID) (store.CallbackSubscription, error)
	ListDeadLetters(ctx context.Context, subscriptionID uuid.UUID) ([]store.DeadLetterEntry, error)
	DeleteDeadLetter(ctx context.Context, id uuid.UUID) error
}

// deadLetterCommand groups the operator-driven remediation subcommands for
// deliveries that exhausted their retry budget (spec.md §4.7, SPEC_FULL.md
// §10 decision 3: dead letters are retained indefinitely until an operator
// explicitly replays or prunes them).
func deadLetterCommand(deps Deps) *cli.Command {
	return &cli.Command{
		Name:        "dead-letter",
		Description: "Inspect and remediate dead-lettered callback deliveries.",
		Commands: []*cli.Command{
			deadLetterReplayCommand(deps),
			deadLetterPruneCommand(deps),
		},
	}
}

func deadLetterReplayCommand(deps Deps) *cli.Command {
	return &cli.Command{
		Name:        "replay",
		Description: "Re-attempts every dead-lettered delivery for a subscription; deletes each entry that now succeeds.",
		Usage:       "blockwatch dead-letter replay --subscription <id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subscription", Required: true},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			subID, err := uuid.Parse(c.String("subscription"))
			if err != nil {
				return fmt.Errorf("invalid subscription id: %w", err)
			}

			sub, err := deps.DeadLetters.GetSubscription(ctx, subID)
			if err != nil {
				return err
			}

			entries, err := deps.DeadLetters.ListDeadLetters(ctx, subID)
			if err != nil {
				return err
			}

			client := &http.Client{Timeout: 30 * time.Second}
			var replayed, failed int
			for _, entry := range entries {
				status, err := callbackdispatch.Replay(ctx, client, sub.URL, sub.Secret, sub.ID.String(), entry.Payload, 30*time.Second)
				if err != nil || status < 200 || status >= 300 {
					failed++
					continue
				}
				if err := deps.DeadLetters.DeleteDeadLetter(ctx, entry.ID); err != nil {
					return err
				}
				replayed++
			}

			fmt.Printf("replayed %d, still failing %d\n", replayed, failed)
			return nil
		},
	}
}

func deadLetterPruneCommand(deps Deps) *cli.Command {
	return &cli.Command{
		Name:        "prune",
		Description: "Permanently deletes every dead-lettered delivery for a subscription without replaying them.",
		Usage:       "blockwatch dead-letter prune --subscription <id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subscription", Required: true},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			subID, err := uuid.Parse(c.String("subscription"))
			if err != nil {
				return fmt.Errorf("invalid subscription id: %w", err)
			}

			entries, err := deps.DeadLetters.ListDeadLetters(ctx, subID)
			if err != nil {
				return err
			}

			for _, entry := range entries {
				if err := deps.DeadLetters.DeleteDeadLetter(ctx, entry.ID); err != nil {
					return err
				}
			}

			fmt.Printf("pruned %d dead-lettered deliveries\n", len(entries))
			return nil
		},
	}
}
