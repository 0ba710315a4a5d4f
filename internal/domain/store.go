package domain

import (
	"context"
	"time"
)

// SettlementSource records how a settlement became known to this process.
type SettlementSource string

const (
	SettlementSourceLocal SettlementSource = "local" // submitted by this process
	SettlementSourceEvent SettlementSource = "event" // observed via ledger event
)

// SettlementRecord is one confirmed claim, persisted for history and audit.
// Amount is kept as a decimal string to preserve exact integer semantics
// across the database boundary.
type SettlementRecord struct {
	ID        string
	Domain    ClaimDomain
	SeasonID  uint64
	MarketID  uint64
	Side      Side
	Player    string
	Account   string
	Amount    string
	TxHash    string
	Source    SettlementSource
	SettledAt time.Time
}

// ListOpts filters and paginates settlement history queries.
type ListOpts struct {
	Account  string
	SeasonID *uint64
	Limit    int
	Offset   int
}

// SettlementStore persists confirmed claims.
type SettlementStore interface {
	Record(ctx context.Context, rec SettlementRecord) error
	List(ctx context.Context, opts ListOpts) ([]SettlementRecord, error)

	// ListBefore and Delete support cold archival of old history. Archived
	// rows are pruned by ID so a row is only ever deleted after it was
	// uploaded.
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]SettlementRecord, error)
	Delete(ctx context.Context, ids []string) (int64, error)
}

// BlobWriter uploads archived history to object storage.
type BlobWriter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}
