package scanner

import (
	"context"

	"github.com/tronwatch/core/internal/nodeclient"
	"github.com/tronwatch/core/internal/store"
)

// commit persists one block and its normalized transactions atomically
// (spec.md §4.2 "Per-block atomic commit").
func (s *service) commit(ctx context.Context, b nodeclient.Block, txs []store.Transaction) error {
	record := store.BlockRecord{
		Height:     b.Height,
		Hash:       b.Hash,
		ParentHash: b.ParentHash,
		Timestamp:  b.Timestamp,
		TxCount:    len(txs),
		Processed:  true,
	}
	return s.store.CommitBlock(ctx, s.cfg.Network, record, txs)
}
