package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/auricex/auricex/internal/domain"
)

// PriceCache implements domain.PriceCache with one Redis hash per asset at
// key "px:{assetID}", fields "price" and "at" (Unix milliseconds). The feed
// writes every tick; the lifecycle manager reads the reference price at open
// and checks the timestamp against the configured staleness bound.
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(assetID string) string {
	return "px:" + assetID
}

// SetPrice records the latest price and tick time for an asset.
func (pc *PriceCache) SetPrice(ctx context.Context, assetID string, price float64, ts time.Time) error {
	err := pc.rdb.HSet(ctx, priceKey(assetID), map[string]any{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"at":    strconv.FormatInt(ts.UnixMilli(), 10),
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: set price %s: %w", assetID, err)
	}
	return nil
}

// GetPrice returns the latest price and its tick time for an asset, or
// domain.ErrNotFound when no tick has been recorded.
func (pc *PriceCache) GetPrice(ctx context.Context, assetID string) (float64, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(assetID)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", assetID, err)
	}
	return parsePriceHash(assetID, vals)
}

// GetPrices returns the latest prices for several assets in one pipeline.
// Assets with no recorded tick are omitted from the result.
func (pc *PriceCache) GetPrices(ctx context.Context, assetIDs []string) (map[string]float64, error) {
	if len(assetIDs) == 0 {
		return map[string]float64{}, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(assetIDs))
	for _, id := range assetIDs {
		cmds[id] = pipe.HGetAll(ctx, priceKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get prices pipeline: %w", err)
	}

	out := make(map[string]float64, len(assetIDs))
	for id, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil {
			continue
		}
		price, _, err := parsePriceHash(id, vals)
		if err != nil {
			continue
		}
		out[id] = price
	}
	return out, nil
}

func parsePriceHash(assetID string, vals map[string]string) (float64, time.Time, error) {
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}

	priceStr, ok := vals["price"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price %s: %w", assetID, err)
	}

	atStr, ok := vals["at"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	atMilli, err := strconv.ParseInt(atStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price ts %s: %w", assetID, err)
	}

	return price, time.UnixMilli(atMilli), nil
}

var _ domain.PriceCache = (*PriceCache)(nil)
