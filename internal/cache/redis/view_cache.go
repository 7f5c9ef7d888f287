package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/depthwatch/internal/domain"
)

// ViewCache implements domain.ViewCache with one hash per market.
//
// Key schema:
//
//	view:{venue}:{symbol}  - hash, fields "bands:{mode}" and "top" hold JSON
//	view:markets           - set of markets with a cached view
type ViewCache struct {
	rdb *redis.Client
}

// NewViewCache creates a ViewCache backed by c.
func NewViewCache(c *Client) *ViewCache {
	return &ViewCache{rdb: c.Underlying()}
}

const marketsKey = "view:markets"

func viewKey(market string) string       { return "view:" + market }
func bandsField(mode domain.Mode) string { return "bands:" + string(mode) }

const topField = "top"

// SetSnapshot stores the latest band snapshot of market for its mode.
func (vc *ViewCache) SetSnapshot(ctx context.Context, market string, snap domain.BandSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %s: %w", market, err)
	}
	return vc.set(ctx, market, bandsField(snap.Mode), data)
}

// GetSnapshot returns the latest band snapshot of market for mode, or
// domain.ErrNotFound.
func (vc *ViewCache) GetSnapshot(ctx context.Context, market string, mode domain.Mode) (domain.BandSnapshot, error) {
	var snap domain.BandSnapshot
	if err := vc.get(ctx, market, bandsField(mode), &snap); err != nil {
		return domain.BandSnapshot{}, err
	}
	return snap, nil
}

// SetTop stores the latest top-N selection of market.
func (vc *ViewCache) SetTop(ctx context.Context, market string, top domain.TopLevels) error {
	data, err := json.Marshal(top)
	if err != nil {
		return fmt.Errorf("redis: marshal top %s: %w", market, err)
	}
	return vc.set(ctx, market, topField, data)
}

// GetTop returns the latest top-N selection of market, or domain.ErrNotFound.
func (vc *ViewCache) GetTop(ctx context.Context, market string) (domain.TopLevels, error) {
	var top domain.TopLevels
	if err := vc.get(ctx, market, topField, &top); err != nil {
		return domain.TopLevels{}, err
	}
	return top, nil
}

// Markets lists the markets with a cached view, sorted.
func (vc *ViewCache) Markets(ctx context.Context) ([]string, error) {
	markets, err := vc.rdb.SMembers(ctx, marketsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: smembers %s: %w", marketsKey, err)
	}
	slices.Sort(markets)
	return markets, nil
}

func (vc *ViewCache) set(ctx context.Context, market, field string, data []byte) error {
	pipe := vc.rdb.TxPipeline()
	pipe.HSet(ctx, viewKey(market), field, data)
	pipe.SAdd(ctx, marketsKey, market)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set view %s %s: %w", market, field, err)
	}
	return nil
}

func (vc *ViewCache) get(ctx context.Context, market, field string, dst any) error {
	data, err := vc.rdb.HGet(ctx, viewKey(market), field).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("redis: get view %s %s: %w", market, field, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("redis: unmarshal view %s %s: %w", market, field, err)
	}
	return nil
}

var _ domain.ViewCache = (*ViewCache)(nil)
