package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/winfall/claimkeeper/internal/domain"
)

// SettlementStore implements domain.SettlementStore using PostgreSQL.
// Amounts are stored in NUMERIC(78,0), wide enough for any uint256 value.
type SettlementStore struct {
	pool *pgxpool.Pool
}

// NewSettlementStore creates a SettlementStore backed by the given pool.
func NewSettlementStore(pool *pgxpool.Pool) *SettlementStore {
	return &SettlementStore{pool: pool}
}

const settlementColumns = `id, domain, season_id, market_id, side, player, account, amount::text, tx_hash, source, settled_at`

// Record appends one confirmed claim to the history.
func (s *SettlementStore) Record(ctx context.Context, rec domain.SettlementRecord) error {
	const query = `INSERT INTO settlements
		(id, domain, season_id, market_id, side, player, account, amount, tx_hash, source, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10, $11)`

	amount := rec.Amount
	if amount == "" {
		amount = "0"
	}

	_, err := s.pool.Exec(ctx, query,
		rec.ID, string(rec.Domain), int64(rec.SeasonID), int64(rec.MarketID),
		string(rec.Side), rec.Player, strings.ToLower(rec.Account),
		amount, rec.TxHash, string(rec.Source), rec.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record settlement %s: %w", rec.ID, err)
	}
	return nil
}

// List returns settlement history with optional account/season filtering and
// pagination, newest first.
func (s *SettlementStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.SettlementRecord, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Account != "" {
		query += fmt.Sprintf(" AND account = $%d", argIdx)
		args = append(args, strings.ToLower(opts.Account))
		argIdx++
	}
	if opts.SeasonID != nil {
		query += fmt.Sprintf(" AND season_id = $%d", argIdx)
		args = append(args, int64(*opts.SeasonID))
		argIdx++
	}

	query += " ORDER BY settled_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	return s.query(ctx, query, args...)
}

// ListBefore returns up to limit records settled before the cutoff, oldest
// first, for archival.
func (s *SettlementStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.SettlementRecord, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements
		WHERE settled_at < $1 ORDER BY settled_at ASC LIMIT $2`
	return s.query(ctx, query, cutoff, limit)
}

// Delete removes the records with the given IDs and returns the number
// deleted.
func (s *SettlementStore) Delete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM settlements WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete %d settlements: %w", len(ids), err)
	}
	return tag.RowsAffected(), nil
}

func (s *SettlementStore) query(ctx context.Context, query string, args ...any) ([]domain.SettlementRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settlements: %w", err)
	}
	defer rows.Close()

	var out []domain.SettlementRecord
	for rows.Next() {
		var (
			rec             domain.SettlementRecord
			dom, side, src  string
			seasonID, mktID int64
		)
		if err := rows.Scan(&rec.ID, &dom, &seasonID, &mktID, &side, &rec.Player,
			&rec.Account, &rec.Amount, &rec.TxHash, &src, &rec.SettledAt); err != nil {
			return nil, fmt.Errorf("postgres: scan settlement: %w", err)
		}
		rec.Domain = domain.ClaimDomain(dom)
		rec.SeasonID = uint64(seasonID)
		rec.MarketID = uint64(mktID)
		rec.Side = domain.Side(side)
		rec.Source = domain.SettlementSource(src)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list settlements rows: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.SettlementStore = (*SettlementStore)(nil)
