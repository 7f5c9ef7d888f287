package domain

import (
	"context"
	"io"
	"time"
)

// Cold storage for aged snapshot history. Objects are addressed by a
// slash-separated path inside one bucket.

// BlobWriter stores an object at path, replacing any existing one. Large
// archives go through PutMultipart in parts of partSize bytes.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader opens a stored object. A missing object is ErrNotFound.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
}

// Archiver copies snapshots persisted before the cutoff into cold storage and
// reports how many are stored there.
type Archiver interface {
	ArchiveSnapshots(ctx context.Context, before time.Time) (int64, error)
}
