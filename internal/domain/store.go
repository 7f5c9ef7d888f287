package domain

import (
	"context"
	"time"
)

// LogStore is the ordered append-only record log the engine tails.
type LogStore interface {
	// Length returns the number of records in the log at key.
	Length(ctx context.Context, key string) (int64, error)
	// Range returns records [start, end) in log order.
	Range(ctx context.Context, key string, start, end int64) ([][]byte, error)
}

// VenueDiscoverer lists the venues that publish band records for symbol.
type VenueDiscoverer interface {
	DiscoverVenues(ctx context.Context, symbol string) ([]Venue, error)
}

// SnapshotStore persists band updates.
type SnapshotStore interface {
	Insert(ctx context.Context, stream StreamKey, u BandUpdate) error
	ListRecent(ctx context.Context, market string, mode Mode, limit int) ([]StoredSnapshot, error)
	ListBefore(ctx context.Context, before time.Time) ([]StoredSnapshot, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditStore records operational events.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
}
