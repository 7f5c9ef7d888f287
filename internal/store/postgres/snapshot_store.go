package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/depthwatch/internal/domain"
)

// SnapshotStore keeps the history of band updates in band_snapshots.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

const snapshotColumns = `id, venue, symbol, mode, ts, datetime, bands, added, subtracted, net, first, created_at`

// Insert stores u. Inserting the same snapshot ID twice is a no-op.
func (s *SnapshotStore) Insert(ctx context.Context, stream domain.StreamKey, u domain.BandUpdate) error {
	bands, err := json.Marshal(u.Snapshot.Bands)
	if err != nil {
		return fmt.Errorf("postgres: marshal bands %s: %w", u.Snapshot.ID, err)
	}
	const query = `
		INSERT INTO band_snapshots (
			id, venue, symbol, mode, ts, datetime, bands, added, subtracted, net, first
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`
	_, err = s.pool.Exec(ctx, query,
		u.Snapshot.ID, string(stream.Venue), stream.Symbol, string(u.Snapshot.Mode),
		u.Snapshot.Timestamp, u.Snapshot.Datetime, bands,
		u.Delta.Added, u.Delta.Subtracted, u.Delta.Net, u.Delta.First,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert snapshot %s: %w", u.Snapshot.ID, err)
	}
	return nil
}

// ListRecent returns the newest snapshots of market ("<venue>:<symbol>") in
// mode, newest first.
func (s *SnapshotStore) ListRecent(ctx context.Context, market string, mode domain.Mode, limit int) ([]domain.StoredSnapshot, error) {
	venue, symbol, ok := strings.Cut(market, ":")
	if !ok {
		return nil, fmt.Errorf("postgres: bad market %q", market)
	}
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + snapshotColumns + ` FROM band_snapshots
		WHERE venue = $1 AND symbol = $2 AND mode = $3
		ORDER BY created_at DESC LIMIT $4`
	rows, err := s.pool.Query(ctx, query, venue, symbol, string(mode), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots %s: %w", market, err)
	}
	return collectSnapshots(rows)
}

// ListBefore returns every snapshot created before the cutoff, oldest
// first.
func (s *SnapshotStore) ListBefore(ctx context.Context, before time.Time) ([]domain.StoredSnapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM band_snapshots
		WHERE created_at < $1 ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots before %s: %w", before.Format(time.RFC3339), err)
	}
	return collectSnapshots(rows)
}

// DeleteBefore removes snapshots created before the cutoff.
func (s *SnapshotStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM band_snapshots WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete snapshots before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func collectSnapshots(rows pgx.Rows) ([]domain.StoredSnapshot, error) {
	defer rows.Close()
	var out []domain.StoredSnapshot
	for rows.Next() {
		var r snapshotRow
		if err := rows.Scan(
			&r.id, &r.venue, &r.symbol, &r.mode, &r.ts, &r.datetime, &r.bands,
			&r.added, &r.subtracted, &r.net, &r.first, &r.createdAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		snap, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: snapshot rows: %w", err)
	}
	return out, nil
}

// snapshotRow mirrors one band_snapshots row.
type snapshotRow struct {
	id                     string
	venue, symbol, mode    string
	ts                     float64
	datetime               string
	bands                  []byte
	added, subtracted, net float64
	first                  bool
	createdAt              time.Time
}

func (r snapshotRow) toDomain() (domain.StoredSnapshot, error) {
	key := domain.StreamKey{Venue: domain.Venue(r.venue), Symbol: r.symbol, Channel: domain.ChannelBands}
	snap := domain.BandSnapshot{
		ID:        r.id,
		Stream:    key.Key(),
		Mode:      domain.Mode(r.mode),
		Timestamp: r.ts,
		Datetime:  r.datetime,
	}
	if err := json.Unmarshal(r.bands, &snap.Bands); err != nil {
		return domain.StoredSnapshot{}, fmt.Errorf("postgres: decode bands of %s: %w", r.id, err)
	}
	return domain.StoredSnapshot{
		BandUpdate: domain.BandUpdate{
			Snapshot: snap,
			Delta: domain.DeltaSummary{
				Added:      r.added,
				Subtracted: r.subtracted,
				Net:        r.net,
				First:      r.first,
			},
		},
		Venue:     key.Venue,
		Symbol:    r.symbol,
		CreatedAt: r.createdAt,
	}, nil
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)
