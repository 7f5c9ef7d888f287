package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/depthwatch/internal/domain"
)

var errStoreDown = errors.New("connection refused")

// memLog is an in-memory domain.LogStore with injectable failures.
type memLog struct {
	mu          sync.Mutex
	logs        map[string][][]byte
	lengthFails int
	rangeFails  int
	rangeCalls  int
}

func newMemLog() *memLog {
	return &memLog{logs: make(map[string][][]byte)}
}

func (m *memLog) append(key string, records ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.logs[key] = append(m.logs[key], []byte(r))
	}
}

func (m *memLog) Length(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lengthFails > 0 {
		m.lengthFails--
		return 0, errStoreDown
	}
	return int64(len(m.logs[key])), nil
}

func (m *memLog) Range(_ context.Context, key string, start, end int64) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rangeCalls++
	if m.rangeFails > 0 {
		m.rangeFails--
		return nil, errStoreDown
	}
	log := m.logs[key]
	if end > int64(len(log)) {
		end = int64(len(log))
	}
	if start >= end {
		return nil, nil
	}
	out := make([][]byte, end-start)
	copy(out, log[start:end])
	return out, nil
}

// recordingSink collects emitted events.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (s *recordingSink) Emit(_ context.Context, evt domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, evt)
	return nil
}

func (s *recordingSink) snapshot() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// sinkFunc adapts a function to domain.Sink.
type sinkFunc func(ctx context.Context, evt domain.Event) error

func (f sinkFunc) Emit(ctx context.Context, evt domain.Event) error { return f(ctx, evt) }

type staticDiscoverer struct {
	venues []domain.Venue
	err    error
}

func (d staticDiscoverer) DiscoverVenues(context.Context, string) ([]domain.Venue, error) {
	return d.venues, d.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func bandRecord(ts int64, bid, ask float64) string {
	return fmt.Sprintf(`{"timestamp":%d,"datetime":"%s","0-1_bid":%g,"0-1_ask":%g}`,
		ts, time.UnixMilli(ts).UTC().Format(time.RFC3339), bid, ask)
}

var (
	spotBands = domain.StreamKey{Venue: domain.VenueSpot, Symbol: "BTCUSDT", Channel: domain.ChannelBands}
	spotDepth = domain.StreamKey{Venue: domain.VenueSpot, Symbol: "BTCUSDT", Channel: domain.ChannelDepth}
)
