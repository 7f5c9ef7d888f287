package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/alanyoungcy/depthwatch/internal/domain"
)

// multipartThreshold is the archive size above which uploads go multipart.
const multipartThreshold = 16 << 20

// SnapshotSource lists snapshots due for archiving.
type SnapshotSource interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.StoredSnapshot, error)
}

// SnapshotArchiver writes persisted band snapshots older than a cutoff to
// one JSONL object per market:
//
//	archive/snapshots/{venue}/{symbol}/{cutoff}.jsonl
//
// Runs that land on the same object merge into it by snapshot ID, so every
// counted row is in storage. Removing the archived rows from the database is
// the caller's decision.
type SnapshotArchiver struct {
	source SnapshotSource
	writer domain.BlobWriter
	reader domain.BlobReader
	audit  domain.AuditStore
}

// NewSnapshotArchiver creates a SnapshotArchiver. audit may be nil.
func NewSnapshotArchiver(source SnapshotSource, writer domain.BlobWriter, reader domain.BlobReader, audit domain.AuditStore) *SnapshotArchiver {
	return &SnapshotArchiver{source: source, writer: writer, reader: reader, audit: audit}
}

// ArchivePath returns the object key for a market's archive at cutoff.
func ArchivePath(venue domain.Venue, symbol string, before time.Time) string {
	return fmt.Sprintf("archive/snapshots/%s/%s/%s.jsonl", venue, symbol, before.UTC().Format("2006-01-02T1504"))
}

// ArchiveSnapshots implements domain.Archiver. It returns the number of
// listed snapshots now held in cold storage, including ones an earlier run
// already uploaded.
func (a *SnapshotArchiver) ArchiveSnapshots(ctx context.Context, before time.Time) (int64, error) {
	snaps, err := a.source.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: list snapshots: %w", err)
	}

	groups := make(map[string][]domain.StoredSnapshot)
	for _, s := range snaps {
		path := ArchivePath(s.Venue, s.Symbol, before)
		groups[path] = append(groups[path], s)
	}
	paths := make([]string, 0, len(groups))
	for p := range groups {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	var total int64
	for _, path := range paths {
		group := groups[path]
		prior, stored, err := a.load(ctx, path)
		if err != nil {
			return total, err
		}
		var missing []domain.StoredSnapshot
		for _, snap := range group {
			if _, ok := stored[snap.Snapshot.ID]; !ok {
				missing = append(missing, snap)
			}
		}
		if len(missing) > 0 {
			if err := a.upload(ctx, path, prior, missing); err != nil {
				return total, err
			}
		}
		total += int64(len(group))

		if a.audit != nil {
			if err := a.audit.Log(ctx, "archive.snapshots", map[string]any{
				"path":     path,
				"count":    len(group),
				"appended": len(missing),
				"before":   before.UTC().Format(time.RFC3339Nano),
			}); err != nil {
				return total, fmt.Errorf("s3blob: audit %s: %w", path, err)
			}
		}
	}
	return total, nil
}

// load returns the current content of the archive at path and the snapshot
// IDs it holds. A missing object yields no content and no IDs.
func (a *SnapshotArchiver) load(ctx context.Context, path string) ([]byte, map[string]struct{}, error) {
	body, err := a.reader.Get(ctx, path)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, nil, fmt.Errorf("s3blob: read %s: %w", path, err)
	}
	ids := make(map[string]struct{})
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var s domain.StoredSnapshot
		if err := json.Unmarshal(sc.Bytes(), &s); err != nil {
			return nil, nil, fmt.Errorf("s3blob: decode %s: %w", path, err)
		}
		ids[s.Snapshot.ID] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("s3blob: scan %s: %w", path, err)
	}
	return data, ids, nil
}

// upload writes prior followed by snaps as JSON lines to path.
func (a *SnapshotArchiver) upload(ctx context.Context, path string, prior []byte, snaps []domain.StoredSnapshot) error {
	var buf bytes.Buffer
	buf.Write(prior)
	if len(prior) > 0 && prior[len(prior)-1] != '\n' {
		buf.WriteByte('\n')
	}
	enc := json.NewEncoder(&buf)
	for _, s := range snaps {
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("s3blob: encode snapshot %s: %w", s.Snapshot.ID, err)
		}
	}
	if buf.Len() > multipartThreshold {
		return a.writer.PutMultipart(ctx, path, &buf, minPartSize)
	}
	return a.writer.Put(ctx, path, &buf, "application/x-ndjson")
}

var _ domain.Archiver = (*SnapshotArchiver)(nil)
