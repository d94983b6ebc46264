// Package postgres implements the Store interface (internal/store) on top
// of GORM and PostgreSQL, the way ScanCodePay drives its own payment ledger
// through GORM models and plain *gorm.DB queries.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tronwatch/core/internal/store"
)

// Store implements store.Store on a *gorm.DB connection pool.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// CommitBlock persists one block, its transactions, the per-address stat
// deltas they produce, and the advanced cursor inside a single database
// transaction, so a crash mid-commit never leaves a block half-ingested
// (spec.md §4.2).
func (s *Store) CommitBlock(ctx context.Context, network string, block store.BlockRecord, txs []store.Transaction) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bm := blockModel{
			Network:    network,
			Height:     block.Height,
			Hash:       block.Hash,
			ParentHash: block.ParentHash,
			Timestamp:  block.Timestamp,
			TxCount:    block.TxCount,
			Processed:  block.Processed,
		}
		if err := tx.Create(&bm).Error; err != nil {
			return fmt.Errorf("committing block %d: %w", block.Height, err)
		}

		deltas := make(map[string]*store.AddressStats)
		touch := func(addr string, in, out int64) {
			d, ok := deltas[addr]
			if !ok {
				d = &store.AddressStats{Address: addr}
				deltas[addr] = d
			}
			d.TotalCount++
			d.TotalIn += in
			d.TotalOut += out
		}

		for _, t := range txs {
			row := fromDomainTransaction(network, t)
			if err := tx.Create(&row).Error; err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("%w: %s", store.ErrDuplicateTransaction, t.Hash)
				}
				return fmt.Errorf("committing transaction %s: %w", t.Hash, err)
			}
			touch(t.Recipient, 1, 0)
			touch(t.Sender, 0, 1)
		}

		for addr, d := range deltas {
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "address"}, {Name: "network"}},
				DoUpdates: clause.Assignments(map[string]any{
					"total_count": gorm.Expr("address_stats.total_count + ?", d.TotalCount),
					"total_in":    gorm.Expr("address_stats.total_in + ?", d.TotalIn),
					"total_out":   gorm.Expr("address_stats.total_out + ?", d.TotalOut),
				}),
			}).Create(&addressStatsModel{
				Address:    addr,
				Network:    network,
				TotalCount: d.TotalCount,
				TotalIn:    d.TotalIn,
				TotalOut:   d.TotalOut,
			}).Error; err != nil {
				return fmt.Errorf("updating address stats for %s: %w", addr, err)
			}
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "network"}},
			DoUpdates: clause.AssignmentColumns([]string{"height"}),
		}).Create(&cursorModel{Network: network, Height: block.Height}).Error; err != nil {
			return fmt.Errorf("advancing cursor: %w", err)
		}

		return nil
	})
}

func isUniqueViolation(err error) bool {
	// GORM's error wrapping varies by dialect driver; string-match the
	// constraint-violation classes both pgx and the logger surface.
	return err != nil && (errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate key"))
}

// GetCursor returns the last committed height for a network.
func (s *Store) GetCursor(ctx context.Context, network string) (int64, error) {
	var row cursorModel
	err := s.db.WithContext(ctx).Where("network = ?", network).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, store.ErrCursorNotFound
	}
	if err != nil {
		return 0, err
	}
	return row.Height, nil
}

// RewindTo deletes every block and transaction above keepHeight, reverses
// the per-address stat deltas those transactions added, and resets the
// cursor, for reorg handling (spec.md §4.2).
func (s *Store) RewindTo(ctx context.Context, network string, keepHeight int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var removed []transactionModel
		if err := tx.Where("network = ? AND block_height > ?", network, keepHeight).Find(&removed).Error; err != nil {
			return err
		}
		for _, r := range removed {
			for _, d := range [][2]string{{r.Recipient, "total_in"}, {r.Sender, "total_out"}} {
				if err := tx.Model(&addressStatsModel{}).Where("address = ? AND network = ?", d[0], network).
					Updates(map[string]any{"total_count": gorm.Expr("total_count - 1"), d[1]: gorm.Expr(d[1] + " - 1")}).Error; err != nil {
					return err
				}
			}
		}
		if err := tx.Where("network = ? AND block_height > ?", network, keepHeight).
			Delete(&transactionModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("network = ? AND height > ?", network, keepHeight).
			Delete(&blockModel{}).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "network"}},
			DoUpdates: clause.AssignmentColumns([]string{"height"}),
		}).Create(&cursorModel{Network: network, Height: keepHeight}).Error
	})
}

// GetBlock returns the persisted record for a given height.
func (s *Store) GetBlock(ctx context.Context, network string, height int64) (store.BlockRecord, error) {
	var row blockModel
	err := s.db.WithContext(ctx).Where("network = ? AND height = ?", network, height).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.BlockRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.BlockRecord{}, err
	}
	return store.BlockRecord{
		Height:     row.Height,
		Hash:       row.Hash,
		ParentHash: row.ParentHash,
		Timestamp:  row.Timestamp,
		TxCount:    row.TxCount,
		Processed:  row.Processed,
	}, nil
}

// QueryMultiAddress performs the union-merge lookup backing the
// multi-address transactions endpoint: any transaction where Sender or
// Recipient is in the requested address set, filtered and ordered
// newest-first, with page-number pagination and a total matching count
// (spec.md §4.4, §4.7, §6).
func (s *Store) QueryMultiAddress(ctx context.Context, q store.MultiAddressQuery) (store.MultiAddressPage, error) {
	query := s.db.WithContext(ctx).Model(&transactionModel{}).
		Where("sender IN ? OR recipient IN ?", q.Addresses, q.Addresses)

	if len(q.Kinds) > 0 {
		if containsKind(q.Kinds, store.EventKindNativeTransfer) && !containsKind(q.Kinds, store.EventKindTokenTransfer) {
			query = query.Where("token_contract IS NULL")
		} else if containsKind(q.Kinds, store.EventKindTokenTransfer) && !containsKind(q.Kinds, store.EventKindNativeTransfer) {
			query = query.Where("token_contract IS NOT NULL")
		}
	}
	if len(q.Tokens) > 0 {
		query = query.Where("token_symbol IN ?", q.Tokens)
	}
	if q.MinValue != nil {
		query = query.Where("value >= ?", *q.MinValue)
	}
	if q.Since != nil {
		query = query.Where("block_timestamp >= ?", *q.Since)
	}
	if q.Until != nil {
		query = query.Where("block_timestamp < ?", *q.Until)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return store.MultiAddressPage{}, err
	}

	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}

	var rows []transactionModel
	if err := query.Order("block_timestamp DESC, hash DESC").
		Limit(limit).Offset((page - 1) * limit).Find(&rows).Error; err != nil {
		return store.MultiAddressPage{}, err
	}

	txs := make([]store.Transaction, 0, len(rows))
	for _, r := range rows {
		txs = append(txs, r.toDomain())
	}

	stats := make(map[string]store.AddressStats, len(q.Addresses))
	var statRows []addressStatsModel
	if err := s.db.WithContext(ctx).Where("address IN ?", q.Addresses).Find(&statRows).Error; err != nil {
		return store.MultiAddressPage{}, err
	}
	for _, r := range statRows {
		stats[r.Address] = store.AddressStats{
			Address:    r.Address,
			TotalCount: r.TotalCount,
			TotalIn:    r.TotalIn,
			TotalOut:   r.TotalOut,
		}
	}

	totalPages := int(total) / limit
	if int(total)%limit != 0 {
		totalPages++
	}

	return store.MultiAddressPage{
		Transactions: txs,
		Page:         page,
		Limit:        limit,
		Total:        total,
		TotalPages:   totalPages,
		Stats:        stats,
	}, nil
}

func containsKind(kinds []store.EventKind, target store.EventKind) bool {
	for _, k := range kinds {
		if k == target {
			return true
		}
	}
	return false
}

// CreateSubscription persists a new callback subscription.
func (s *Store) CreateSubscription(ctx context.Context, sub store.CallbackSubscription) (store.CallbackSubscription, error) {
	row := fromDomainSubscription(sub)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return store.CallbackSubscription{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) GetSubscription(ctx context.Context, id uuid.UUID) (store.CallbackSubscription, error) {
	var row subscriptionModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.CallbackSubscription{}, store.ErrNotFound
	}
	if err != nil {
		return store.CallbackSubscription{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) ListEnabledSubscriptions(ctx context.Context) ([]store.CallbackSubscription, error) {
	var rows []subscriptionModel
	if err := s.db.WithContext(ctx).Where("enabled = ?", true).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]store.CallbackSubscription, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub store.CallbackSubscription) error {
	row := fromDomainSubscription(sub)
	return s.db.WithContext(ctx).Model(&subscriptionModel{}).Where("id = ?", row.ID).
		Select("Enabled", "SuccessCount", "FailureCount", "LastTriggeredAt").Updates(&row).Error
}

func (s *Store) DeleteSubscription(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&subscriptionModel{}).Error
}

func (s *Store) SaveDeadLetter(ctx context.Context, entry store.DeadLetterEntry) error {
	row := fromDomainDeadLetter(entry)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) ListDeadLetters(ctx context.Context, subscriptionID uuid.UUID) ([]store.DeadLetterEntry, error) {
	var rows []deadLetterModel
	if err := s.db.WithContext(ctx).Where("subscription_id = ?", subscriptionID).
		Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]store.DeadLetterEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) DeleteDeadLetter(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&deadLetterModel{}).Error
}

func (s *Store) CreateCredential(ctx context.Context, cred store.Credential) (store.Credential, error) {
	row := fromDomainCredential(cred)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return store.Credential{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) GetCredentialByTokenHash(ctx context.Context, tokenHash string) (store.Credential, error) {
	var row credentialModel
	err := s.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.Credential{}, store.ErrNotFound
	}
	if err != nil {
		return store.Credential{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) RevokeCredential(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&credentialModel{}).Error
}

func fromDomainSubscription(sub store.CallbackSubscription) subscriptionModel {
	var minValue *string
	if sub.Filter.MinValue != nil {
		v := sub.Filter.MinValue.String()
		minValue = &v
	}
	return subscriptionModel{
		ID:              sub.ID,
		Name:            sub.Name,
		URL:             sub.URL,
		Secret:          sub.Secret,
		Enabled:         sub.Enabled,
		FilterKinds:     joinKinds(sub.Filter.Kinds),
		FilterAddresses: strings.Join(sub.Filter.Addresses, ","),
		FilterTokens:    strings.Join(sub.Filter.Tokens, ","),
		FilterMinValue:  minValue,
		SuccessCount:    sub.SuccessCount,
		FailureCount:    sub.FailureCount,
		LastTriggeredAt: sub.LastTriggeredAt,
		CreatedAt:       sub.CreatedAt,
		UpdatedAt:       sub.UpdatedAt,
	}
}

func (m subscriptionModel) toDomain() store.CallbackSubscription {
	var minValue *decimal.Decimal
	if m.FilterMinValue != nil {
		if v, err := decimal.NewFromString(*m.FilterMinValue); err == nil {
			minValue = &v
		}
	}
	return store.CallbackSubscription{
		ID:         m.ID,
		Name:       m.Name,
		URL:        m.URL,
		Secret:     m.Secret,
		Enabled:    m.Enabled,
		Filter: store.EventFilter{
			Kinds:     splitKinds(m.FilterKinds),
			Addresses: splitNonEmpty(m.FilterAddresses),
			Tokens:    splitNonEmpty(m.FilterTokens),
			MinValue:  minValue,
		},
		SuccessCount:    m.SuccessCount,
		FailureCount:    m.FailureCount,
		LastTriggeredAt: m.LastTriggeredAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func fromDomainCredential(c store.Credential) credentialModel {
	return credentialModel{
		ID:          c.ID,
		Name:        c.Name,
		TokenHash:   c.TokenHash,
		Permissions: strings.Join(c.Permissions, ","),
		RateCeiling: c.RateCeiling,
		ExpiresAt:   c.ExpiresAt,
		CreatedAt:   c.CreatedAt,
	}
}

func (m credentialModel) toDomain() store.Credential {
	return store.Credential{
		ID:          m.ID,
		Name:        m.Name,
		TokenHash:   m.TokenHash,
		Permissions: splitNonEmpty(m.Permissions),
		RateCeiling: m.RateCeiling,
		ExpiresAt:   m.ExpiresAt,
		CreatedAt:   m.CreatedAt,
	}
}

func joinKinds(kinds []store.EventKind) string {
	ss := make([]string, 0, len(kinds))
	for _, k := range kinds {
		ss = append(ss, string(k))
	}
	return strings.Join(ss, ",")
}

func splitKinds(s string) []store.EventKind {
	parts := splitNonEmpty(s)
	out := make([]store.EventKind, 0, len(parts))
	for _, p := range parts {
		out = append(out, store.EventKind(p))
	}
	return out
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
