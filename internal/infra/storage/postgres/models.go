package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tronwatch/core/internal/store"
)

// blockModel is the GORM row for a committed block.
type blockModel struct {
	Network    string `gorm:"primaryKey;size:32"`
	Height     int64  `gorm:"primaryKey"`
	Hash       string `gorm:"size:80;uniqueIndex:idx_block_hash"`
	ParentHash string `gorm:"size:80"`
	Timestamp  time.Time
	TxCount    int
	Processed  bool
}

func (blockModel) TableName() string { return "blocks" }

// transactionModel is the GORM row for a normalized Transaction. Value,
// ResourceCost and UnitPrice are stored as numeric text via
// shopspring/decimal's driver.Valuer/sql.Scanner implementation, never as
// floating point, to preserve full precision (spec.md §3).
type transactionModel struct {
	Hash           string `gorm:"primaryKey;size:80"`
	LogIndex       int    `gorm:"primaryKey;default:-1"` // -1 for native transfers
	Network        string `gorm:"size:32;index"`
	BlockHeight    int64  `gorm:"index"`
	BlockHash      string `gorm:"size:80"`
	TxIndex        int
	Sender         string `gorm:"size:64;index:idx_tx_sender"`
	Recipient      string `gorm:"size:64;index:idx_tx_recipient"`
	Value          decimal.Decimal `gorm:"type:numeric(78,0)"`
	TokenContract  *string         `gorm:"size:64;index"`
	TokenSymbol    *string         `gorm:"size:32"`
	TokenDecimals  *int32
	ResourceCost   decimal.Decimal `gorm:"type:numeric(78,0)"`
	UnitPrice      decimal.Decimal `gorm:"type:numeric(78,0)"`
	Status         string          `gorm:"size:24"`
	BlockTimestamp time.Time       `gorm:"index:idx_tx_timestamp"`
}

func (transactionModel) TableName() string { return "transactions" }

func (m transactionModel) toDomain() store.Transaction {
	var logIndex *int
	if m.LogIndex >= 0 {
		v := m.LogIndex
		logIndex = &v
	}
	return store.Transaction{
		Hash:           m.Hash,
		BlockHeight:    m.BlockHeight,
		BlockHash:      m.BlockHash,
		Index:          m.TxIndex,
		LogIndex:       logIndex,
		Sender:         m.Sender,
		Recipient:      m.Recipient,
		Value:          m.Value,
		TokenContract:  m.TokenContract,
		TokenSymbol:    m.TokenSymbol,
		TokenDecimals:  m.TokenDecimals,
		ResourceCost:   m.ResourceCost,
		UnitPrice:      m.UnitPrice,
		Status:         store.TxStatus(m.Status),
		BlockTimestamp: m.BlockTimestamp,
	}
}

func fromDomainTransaction(network string, t store.Transaction) transactionModel {
	logIndex := -1
	if t.LogIndex != nil {
		logIndex = *t.LogIndex
	}
	return transactionModel{
		Hash:           t.Hash,
		LogIndex:       logIndex,
		Network:        network,
		BlockHeight:    t.BlockHeight,
		BlockHash:      t.BlockHash,
		TxIndex:        t.Index,
		Sender:         t.Sender,
		Recipient:      t.Recipient,
		Value:          t.Value,
		TokenContract:  t.TokenContract,
		TokenSymbol:    t.TokenSymbol,
		TokenDecimals:  t.TokenDecimals,
		ResourceCost:   t.ResourceCost,
		UnitPrice:      t.UnitPrice,
		Status:         string(t.Status),
		BlockTimestamp: t.BlockTimestamp,
	}
}

// cursorModel is the single-row-per-network scan cursor (SPEC_FULL.md §4).
type cursorModel struct {
	Network string `gorm:"primaryKey;size:32"`
	Height  int64
}

func (cursorModel) TableName() string { return "scan_cursors" }

// addressStatsModel holds the additive per-address counters, maintained in
// the same transaction as each block commit.
type addressStatsModel struct {
	Address    string `gorm:"primaryKey;size:64"`
	Network    string `gorm:"primaryKey;size:32"`
	TotalCount int64
	TotalIn    int64
	TotalOut   int64
}

func (addressStatsModel) TableName() string { return "address_stats" }

// subscriptionModel is a callback subscription row. Filter is stored as
// comma-joined text columns (kinds, addresses, tokens) plus a decimal-string
// minimum value.
type subscriptionModel struct {
	ID              uuid.UUID `gorm:"primaryKey;type:uuid"`
	Name            string    `gorm:"size:128"`
	URL             string    `gorm:"size:2048"`
	Secret          string    `gorm:"size:128"`
	Enabled         bool      `gorm:"index"`
	FilterKinds     string    `gorm:"type:text"` // comma-joined
	FilterAddresses string    `gorm:"type:text"`
	FilterTokens    string    `gorm:"type:text"`
	FilterMinValue  *string   `gorm:"size:80"`
	SuccessCount    int64
	FailureCount    int64
	LastTriggeredAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (subscriptionModel) TableName() string { return "callback_subscriptions" }

// credentialModel is an API credential row.
type credentialModel struct {
	ID          uuid.UUID `gorm:"primaryKey;type:uuid"`
	Name        string    `gorm:"size:128"`
	TokenHash   string    `gorm:"size:64;uniqueIndex"`
	Permissions string    `gorm:"type:text"` // comma-joined
	RateCeiling *int
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}

func (credentialModel) TableName() string { return "credentials" }

// deadLetterModel is a dead-lettered callback delivery row.
type deadLetterModel struct {
	ID             uuid.UUID `gorm:"primaryKey;type:uuid"`
	SubscriptionID uuid.UUID `gorm:"index"`
	TxHash         string    `gorm:"size:80"`
	Payload        []byte
	LastError      string `gorm:"type:text"`
	Attempts       int
	Permanent      bool
	CreatedAt      time.Time
}

func (deadLetterModel) TableName() string { return "callback_dead_letters" }

func fromDomainDeadLetter(e store.DeadLetterEntry) deadLetterModel {
	return deadLetterModel{
		ID:             e.ID,
		SubscriptionID: e.SubscriptionID,
		TxHash:         e.TxHash,
		Payload:        e.Payload,
		LastError:      e.LastError,
		Attempts:       e.Attempts,
		Permanent:      e.Permanent,
		CreatedAt:      e.CreatedAt,
	}
}

func (m deadLetterModel) toDomain() store.DeadLetterEntry {
	return store.DeadLetterEntry{
		ID:             m.ID,
		SubscriptionID: m.SubscriptionID,
		TxHash:         m.TxHash,
		Payload:        m.Payload,
		LastError:      m.LastError,
		Attempts:       m.Attempts,
		Permanent:      m.Permanent,
		CreatedAt:      m.CreatedAt,
	}
}

// AutoMigrate creates or updates every table this package owns, the way
// ScanCodePay bootstraps its schema at startup.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&blockModel{},
		&transactionModel{},
		&cursorModel{},
		&addressStatsModel{},
		&subscriptionModel{},
		&credentialModel{},
		&deadLetterModel{},
	)
}
