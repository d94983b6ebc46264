package scanner

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tronwatch/core/internal/nodeclient"
	"github.com/tronwatch/core/internal/pkg/logger"
	"github.com/tronwatch/core/internal/store"
)

// normalize turns one fetched Block into the flat Transaction rows the
// Store persists: one row per native transfer, plus one row per decoded
// token-transfer log inside that transaction's receipt (spec.md §3, §4.2).
// A single transaction's receipt-fetch error is logged and that transaction
// skipped rather than failing the whole block, per spec.md §4.2's
// "parse/normalization error" edge case; transactions that failed to parse
// were already dropped, without a log entry, by the Node Client.
func (s *service) normalize(ctx context.Context, b nodeclient.Block) ([]store.Transaction, error) {
	var out []store.Transaction

	for _, tx := range b.Transactions {
		receipt, err := s.node.GetTransactionReceipt(ctx, tx.Hash)
		if err != nil {
			logger.Warn(ctx, "skipping transaction after receipt fetch failure",
				"scanner.network", s.cfg.Network, "tx.hash", tx.Hash, "error", err)
			continue
		}

		status := store.TxStatus(receipt.Status)

		if tx.Value.GreaterThan(decimal.Zero) {
			out = append(out, store.Transaction{
				Hash:           tx.Hash,
				BlockHeight:    b.Height,
				BlockHash:      b.Hash,
				Index:          tx.Index,
				Sender:         tx.From,
				Recipient:      tx.To,
				Value:          tx.Value,
				ResourceCost:   receipt.ResourceCost,
				UnitPrice:      receipt.UnitPrice,
				Status:         status,
				BlockTimestamp: b.Timestamp,
			})
		}

		for _, l := range receipt.Logs {
			logIndex := l.LogIndex
			contract := l.Contract
			symbol := l.Symbol
			decimals := l.Decimals

			out = append(out, store.Transaction{
				Hash:           tx.Hash,
				BlockHeight:    b.Height,
				BlockHash:      b.Hash,
				Index:          tx.Index,
				LogIndex:       &logIndex,
				Sender:         l.From,
				Recipient:      l.To,
				Value:          l.Value,
				TokenContract:  &contract,
				TokenSymbol:    &symbol,
				TokenDecimals:  &decimals,
				ResourceCost:   receipt.ResourceCost,
				UnitPrice:      receipt.UnitPrice,
				Status:         status,
				BlockTimestamp: b.Timestamp,
			})
		}
	}

	return out, nil
}
