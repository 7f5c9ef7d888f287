package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/depthwatch/internal/bands"
	"github.com/alanyoungcy/depthwatch/internal/book"
	"github.com/alanyoungcy/depthwatch/internal/domain"
	"github.com/alanyoungcy/depthwatch/internal/metrics"
)

// ErrRecordFiltered is returned by Process for a band record dropped by the
// thresholds. The record is consumed but counts as skipped.
var ErrRecordFiltered = errors.New("record filtered")

// ProcessorConfig holds the per-stream analytics settings.
type ProcessorConfig struct {
	Modes  []domain.Mode
	Filter bands.Filter
	TopN   int
}

// Processor turns the raw records of one stream into engine output. Band
// streams produce a BandUpdate per mode; depth streams maintain a replica and
// produce its top-N levels whenever they change. A Processor is driven by a
// single goroutine.
type Processor struct {
	stream  domain.StreamKey
	cfg     ProcessorConfig
	sink    domain.Sink
	metrics *metrics.Metrics
	logger  *slog.Logger

	replica *book.Replica
	deltas  *bands.Summarizer
	lastSig string
}

// NewProcessor creates a Processor for stream.
func NewProcessor(stream domain.StreamKey, cfg ProcessorConfig, sink domain.Sink, m *metrics.Metrics, logger *slog.Logger) *Processor {
	p := &Processor{
		stream:  stream,
		cfg:     cfg,
		sink:    sink,
		metrics: m,
		logger:  logger,
	}
	switch stream.Channel {
	case domain.ChannelDepth:
		p.replica = book.NewReplica()
	case domain.ChannelBands:
		p.deltas = bands.NewSummarizer(cfg.Filter.Bands)
	}
	return p
}

// Process handles one raw record. It returns an error wrapping
// domain.ErrMalformedRecord for records that cannot be decoded or applied,
// and ErrRecordFiltered for records below the thresholds; both leave the
// stream state unchanged. Sink failures are logged and do not fail the
// record.
func (p *Processor) Process(ctx context.Context, raw []byte) error {
	var err error
	switch p.stream.Channel {
	case domain.ChannelBands:
		err = p.processBands(ctx, raw)
	case domain.ChannelDepth:
		err = p.processDepth(ctx, raw)
	default:
		return fmt.Errorf("pipeline: %s: %w", p.stream, domain.ErrUnknownChannel)
	}
	return err
}

func (p *Processor) processBands(ctx context.Context, raw []byte) error {
	rec, err := DecodeBandRecord(raw)
	if err != nil {
		return err
	}
	rec, ok := p.cfg.Filter.Apply(rec)
	if !ok {
		return ErrRecordFiltered
	}
	for _, mode := range p.cfg.Modes {
		snap := bands.Snapshot(p.stream, rec, mode)
		delta := p.deltas.Observe(snap)
		p.emit(ctx, domain.NewBandEvent(p.stream, domain.BandUpdate{Snapshot: snap, Delta: delta}))
	}
	return nil
}

func (p *Processor) processDepth(ctx context.Context, raw []byte) error {
	diff, err := DecodeDepthDiff(raw)
	if err != nil {
		return err
	}
	if err := p.replica.Apply(diff); err != nil {
		return err
	}
	top := book.Top(p.replica, p.cfg.TopN)
	if len(top) == 0 {
		return nil
	}
	sig := book.Signature(top)
	if sig == p.lastSig {
		return nil
	}
	p.lastSig = sig
	p.emit(ctx, domain.NewTopEvent(p.stream, domain.TopLevels{
		Stream: p.stream.Key(),
		N:      p.cfg.TopN,
		Levels: top,
		At:     time.Now().UTC(),
	}))
	return nil
}

func (p *Processor) emit(ctx context.Context, evt domain.Event) {
	if err := p.sink.Emit(ctx, evt); err != nil {
		p.metrics.EmitFailed(p.stream.Key())
		p.logger.WarnContext(ctx, "sink rejected event",
			slog.String("kind", string(evt.Kind)),
			slog.String("error", err.Error()),
		)
		return
	}
	p.metrics.EventEmitted(p.stream.Key(), string(evt.Kind))
}

// Reset clears the replica and delta history.
func (p *Processor) Reset() {
	if p.replica != nil {
		p.replica.Reset()
	}
	if p.deltas != nil {
		p.deltas.Reset()
	}
	p.lastSig = ""
}
