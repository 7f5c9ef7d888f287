package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/depthwatch/internal/domain"
	"github.com/alanyoungcy/depthwatch/internal/metrics"
)

// DefaultPollInterval is the pause between polls that found no new records.
const DefaultPollInterval = 500 * time.Millisecond

// State is the lifecycle phase of a Tailer.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateDispatching
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateDispatching:
		return "dispatching"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Tailer follows one log: it replays the records already present, then
// polls for new ones and feeds them to its Processor strictly in log order.
type Tailer struct {
	stream   domain.StreamKey
	store    domain.LogStore
	proc     *Processor
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger

	cursor    Cursor
	state     atomic.Int32
	resetReq  atomic.Bool
	processed atomic.Int64
	skipped   atomic.Int64
}

// NewTailer creates a Tailer for stream. A non-positive interval means
// DefaultPollInterval.
func NewTailer(stream domain.StreamKey, store domain.LogStore, proc *Processor, interval time.Duration, m *metrics.Metrics, logger *slog.Logger) *Tailer {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Tailer{
		stream:   stream,
		store:    store,
		proc:     proc,
		interval: interval,
		metrics:  m,
		logger:   logger.With(slog.String("stream", stream.Key())),
	}
}

// Stream returns the stream the tailer follows.
func (t *Tailer) Stream() domain.StreamKey { return t.stream }

// State returns the current lifecycle phase.
func (t *Tailer) State() State { return State(t.state.Load()) }

// Position returns the cursor position.
func (t *Tailer) Position() int64 { return t.cursor.Position() }

// Stats returns the number of records processed and skipped so far.
func (t *Tailer) Stats() (processed, skipped int64) {
	return t.processed.Load(), t.skipped.Load()
}

// Reset asks the running tailer to rewind to the start of the log and
// drop its derived state before its next poll.
func (t *Tailer) Reset() {
	t.resetReq.Store(true)
}

// Run tails the log until ctx is cancelled. It fails immediately, before
// any state is built, when the log store cannot be reached. Later read
// failures are logged and retried on the next poll without moving the
// cursor. Run returns nil on cancellation.
func (t *Tailer) Run(ctx context.Context) error {
	defer t.state.Store(int32(StateStopped))

	if _, err := t.store.Length(ctx, t.stream.Key()); err != nil {
		return fmt.Errorf("pipeline: %s: %w: %v", t.stream, domain.ErrStoreUnavailable, err)
	}
	t.logger.InfoContext(ctx, "tailer started", slog.Duration("poll_interval", t.interval))

	for {
		if ctx.Err() != nil {
			t.logger.InfoContext(ctx, "tailer stopped", slog.Int64("cursor", t.cursor.Position()))
			return nil
		}
		if t.resetReq.CompareAndSwap(true, false) {
			t.cursor.Reset()
			t.proc.Reset()
			t.logger.InfoContext(ctx, "tailer reset")
		}

		n, err := t.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			t.metrics.FetchFailed(t.stream.Key())
			t.logger.ErrorContext(ctx, "log read failed",
				slog.Int64("cursor", t.cursor.Position()),
				slog.String("error", err.Error()),
			)
		}
		if n > 0 {
			continue
		}

		t.state.Store(int32(StateIdle))
		timer := time.NewTimer(t.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}

// poll runs one cycle and returns the number of records consumed.
func (t *Tailer) poll(ctx context.Context) (int, error) {
	t.state.Store(int32(StatePolling))
	start := t.cursor.Position()
	length, err := t.store.Length(ctx, t.stream.Key())
	if err != nil {
		return 0, fmt.Errorf("length: %w", err)
	}
	if length <= start {
		return 0, nil
	}
	records, err := t.store.Range(ctx, t.stream.Key(), start, length)
	if err != nil {
		return 0, fmt.Errorf("range [%d,%d): %w", start, length, err)
	}

	t.state.Store(int32(StateDispatching))
	for i, raw := range records {
		if ctx.Err() != nil {
			return i, nil
		}
		t.dispatch(ctx, start+int64(i), raw)
		t.cursor.Advance(start + int64(i) + 1)
		t.metrics.SetCursor(t.stream.Key(), t.cursor.Position())
	}
	return len(records), nil
}

func (t *Tailer) dispatch(ctx context.Context, index int64, raw []byte) {
	err := t.proc.Process(ctx, raw)
	if err == nil {
		t.processed.Add(1)
		t.metrics.RecordProcessed(t.stream.Key())
		return
	}
	reason := skipReason(err)
	t.skipped.Add(1)
	t.metrics.RecordSkipped(t.stream.Key(), reason)
	if reason == metrics.ReasonFiltered {
		t.logger.DebugContext(ctx, "record filtered", slog.Int64("index", index))
		return
	}
	t.logger.WarnContext(ctx, "skipping record",
		slog.Int64("index", index),
		slog.String("error", err.Error()),
	)
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, ErrRecordFiltered):
		return metrics.ReasonFiltered
	case errors.Is(err, domain.ErrMalformedRecord):
		return metrics.ReasonMalformed
	}
	return "error"
}
