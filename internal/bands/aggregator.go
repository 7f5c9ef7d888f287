// Package bands turns depth-band records into per-band views: raw or
// cumulative volumes, ratio and imbalance metrics, and deltas between
// consecutive snapshots.
package bands

import (
	"github.com/google/uuid"

	"github.com/alanyoungcy/depthwatch/internal/domain"
)

// Aggregate returns the volume of every band in domain.Bands order. In
// cumulative mode each band carries the running total of the bands nearer to
// mid, per side; the totals start from zero for every record.
func Aggregate(rec domain.BandRecord, cumulative bool) []domain.BandVolume {
	out := make([]domain.BandVolume, len(domain.Bands))
	var runBid, runAsk float64
	for i, band := range domain.Bands {
		bid, ask := rec.Volume(band)
		if cumulative {
			runBid += bid
			runAsk += ask
			bid, ask = runBid, runAsk
		}
		out[i] = domain.BandVolume{Band: band, Bid: bid, Ask: ask}
	}
	return out
}

// Snapshot aggregates rec in mode and enriches every band with its metrics.
func Snapshot(stream domain.StreamKey, rec domain.BandRecord, mode domain.Mode) domain.BandSnapshot {
	vols := Aggregate(rec, mode == domain.ModeCumulative)
	metrics := make([]domain.BandMetrics, len(vols))
	for i, v := range vols {
		m := Compute(v.Bid, v.Ask)
		metrics[i] = domain.BandMetrics{
			Band:         v.Band,
			Bid:          v.Bid,
			Ask:          v.Ask,
			Ratio:        m.Ratio,
			ImbalancePct: m.ImbalancePct,
			Predicted:    m.Predicted,
		}
	}
	return domain.BandSnapshot{
		ID:        uuid.NewString(),
		Stream:    stream.Key(),
		Mode:      mode,
		Timestamp: rec.Timestamp,
		Datetime:  rec.Datetime,
		Bands:     metrics,
	}
}
