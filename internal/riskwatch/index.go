// Package riskwatch is a best-effort Redis-backed index of the oracle price
// at which each open position would cross maintenance margin. It lets ops
// tooling list, in a single sorted-set range query, the accounts whose
// trigger price lies at or below (or at or above) a given price, instead of
// scanning the account table. It is never read by the engine itself: a stale or
// unreachable index degrades a dashboard, never a risk computation.
package riskwatch

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const indexKey = "riskslab:liq_watch"

// Index wraps a Redis client holding the liquidation-proximity sorted set.
type Index struct {
	client *redis.Client
}

// NewIndex dials addr and returns a ready Index.
func NewIndex(addr string) *Index {
	return &Index{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Upsert records accountID's current liquidation trigger price — the oracle
// price at which the account's position would first breach maintenance
// margin. Called by the host after every touch of an account with an open
// position; the score is recomputed each time since margin headroom moves
// with entry price, capital, and funding settlement.
func (idx *Index) Upsert(ctx context.Context, accountID uint64, triggerPrice uint64) error {
	return idx.client.ZAdd(ctx, indexKey, redis.Z{
		Score:  float64(triggerPrice),
		Member: strconv.FormatUint(accountID, 10),
	}).Err()
}

// Remove drops accountID from the index — called once its position closes.
func (idx *Index) Remove(ctx context.Context, accountID uint64) error {
	return idx.client.ZRem(ctx, indexKey, strconv.FormatUint(accountID, 10)).Err()
}

// AccountsBreachingBelow returns every tracked account ID whose trigger
// price falls within [0, price]. Long and short positions share one sorted
// set, so the result is not limited to either direction.
func (idx *Index) AccountsBreachingBelow(ctx context.Context, price uint64) ([]uint64, error) {
	members, err := idx.client.ZRangeByScore(ctx, indexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatUint(price, 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	return parseIDs(members)
}

// AccountsBreachingAbove returns every tracked account ID whose trigger
// price falls within [price, +inf). Long and short positions share one
// sorted set, so the result is not limited to either direction.
func (idx *Index) AccountsBreachingAbove(ctx context.Context, price uint64) ([]uint64, error) {
	members, err := idx.client.ZRangeByScore(ctx, indexKey, &redis.ZRangeBy{
		Min: strconv.FormatUint(price, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	return parseIDs(members)
}

func parseIDs(members []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Close releases the underlying Redis connection.
func (idx *Index) Close() error {
	if idx == nil || idx.client == nil {
		return nil
	}
	return idx.client.Close()
}
