package redis

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/winfall/claimkeeper/internal/domain"
)

const balanceTTL = 30 * time.Second

// BalanceCache implements domain.BalanceCache. Balances are stored as decimal
// strings so the exact integer value survives the round trip.
//
// Key schema:
//
//	balance:{account} - decimal string, smallest ledger unit
type BalanceCache struct {
	rdb *redis.Client
}

// NewBalanceCache creates a BalanceCache backed by the given Client.
func NewBalanceCache(c *Client) *BalanceCache {
	return &BalanceCache{rdb: c.Underlying()}
}

func balanceKey(account string) string { return "balance:" + strings.ToLower(account) }

// Set stores the account's balance.
func (bc *BalanceCache) Set(ctx context.Context, account string, balance *big.Int) error {
	if balance == nil {
		balance = new(big.Int)
	}
	if err := bc.rdb.Set(ctx, balanceKey(account), balance.String(), balanceTTL).Err(); err != nil {
		return fmt.Errorf("redis: set balance for %s: %w", account, err)
	}
	return nil
}

// Get retrieves the cached balance. It returns domain.ErrNotFound on a miss.
func (bc *BalanceCache) Get(ctx context.Context, account string) (*big.Int, error) {
	s, err := bc.rdb.Get(ctx, balanceKey(account)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get balance for %s: %w", account, err)
	}

	balance, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("redis: corrupt balance %q for %s", s, account)
	}
	return balance, nil
}

// Invalidate drops the cached balance so the next read reflects a payout.
func (bc *BalanceCache) Invalidate(ctx context.Context, account string) error {
	if err := bc.rdb.Del(ctx, balanceKey(account)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate balance for %s: %w", account, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.BalanceCache = (*BalanceCache)(nil)
