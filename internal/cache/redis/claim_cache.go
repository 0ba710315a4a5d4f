package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/winfall/claimkeeper/internal/domain"
)

// defaultClaimTTL caps how stale a cached claim list can get even when no
// invalidation signal arrives (missed events, out-of-band claims on a season
// the listener is not watching).
const defaultClaimTTL = 2 * time.Minute

// ClaimCache implements domain.ClaimCache with one JSON-serialized entry per
// account. Amounts survive the round trip exactly: big.Int marshals as an
// arbitrary-precision JSON number.
//
// Key schema:
//
//	claims:{account} - JSON of []domain.SeasonClaims
type ClaimCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewClaimCache creates a ClaimCache backed by the given Client. A ttl of
// zero uses the default.
func NewClaimCache(c *Client, ttl time.Duration) *ClaimCache {
	if ttl <= 0 {
		ttl = defaultClaimTTL
	}
	return &ClaimCache{rdb: c.Underlying(), ttl: ttl}
}

func claimKey(account string) string { return "claims:" + strings.ToLower(account) }

// Set stores the account's grouped discovery result.
func (cc *ClaimCache) Set(ctx context.Context, account string, groups []domain.SeasonClaims) error {
	data, err := json.Marshal(groups)
	if err != nil {
		return fmt.Errorf("redis: marshal claims for %s: %w", account, err)
	}
	if err := cc.rdb.Set(ctx, claimKey(account), data, cc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set claims for %s: %w", account, err)
	}
	return nil
}

// Get retrieves the cached claim list. It returns domain.ErrNotFound on a
// cache miss.
func (cc *ClaimCache) Get(ctx context.Context, account string) ([]domain.SeasonClaims, error) {
	data, err := cc.rdb.Get(ctx, claimKey(account)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get claims for %s: %w", account, err)
	}

	var groups []domain.SeasonClaims
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("redis: unmarshal claims for %s: %w", account, err)
	}
	return groups, nil
}

// Invalidate drops the account's cached claim list.
func (cc *ClaimCache) Invalidate(ctx context.Context, account string) error {
	if err := cc.rdb.Del(ctx, claimKey(account)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate claims for %s: %w", account, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ClaimCache = (*ClaimCache)(nil)
