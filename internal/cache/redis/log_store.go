package redis

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/depthwatch/internal/domain"
)

// scanBatch is the COUNT hint passed to SCAN during venue discovery.
const scanBatch = 256

// LogStore reads the append-only record logs. Each log is a Redis list at
// "<venue>:<symbol>:<channel>" that producers extend with RPUSH.
type LogStore struct {
	rdb *redis.Client
}

// NewLogStore creates a LogStore backed by c.
func NewLogStore(c *Client) *LogStore {
	return &LogStore{rdb: c.Underlying()}
}

// Length returns the number of records in the log. A missing key is an
// empty log.
func (s *LogStore) Length(ctx context.Context, key string) (int64, error) {
	n, err := s.rdb.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: llen %s: %w", key, err)
	}
	return n, nil
}

// Range returns records [start, end) in log order.
func (s *LogStore) Range(ctx context.Context, key string, start, end int64) ([][]byte, error) {
	if end <= start {
		return nil, nil
	}
	vals, err := s.rdb.LRange(ctx, key, start, end-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: lrange %s [%d,%d): %w", key, start, end, err)
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}

// DiscoverVenues scans for "<venue>:<symbol>:bands" keys and returns the
// known venues found, sorted.
func (s *LogStore) DiscoverVenues(ctx context.Context, symbol string) ([]domain.Venue, error) {
	pattern := "*:" + symbol + ":" + string(domain.ChannelBands)
	seen := make(map[domain.Venue]struct{})

	iter := s.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		k, err := domain.ParseStreamKey(iter.Val())
		if err != nil || k.Symbol != symbol {
			continue
		}
		if k.Venue == domain.VenueSpot || k.Venue == domain.VenueFutures {
			seen[k.Venue] = struct{}{}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis: scan %s: %w", pattern, err)
	}

	venues := make([]domain.Venue, 0, len(seen))
	for v := range seen {
		venues = append(venues, v)
	}
	slices.SortFunc(venues, func(a, b domain.Venue) int {
		return strings.Compare(string(a), string(b))
	})
	return venues, nil
}

// Append pushes records onto the end of a log.
func (s *LogStore) Append(ctx context.Context, key string, records ...[]byte) error {
	if len(records) == 0 {
		return nil
	}
	vals := make([]any, len(records))
	for i, r := range records {
		vals[i] = r
	}
	if err := s.rdb.RPush(ctx, key, vals...).Err(); err != nil {
		return fmt.Errorf("redis: rpush %s: %w", key, err)
	}
	return nil
}

var (
	_ domain.LogStore        = (*LogStore)(nil)
	_ domain.VenueDiscoverer = (*LogStore)(nil)
)
