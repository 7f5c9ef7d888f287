package bands

import "github.com/alanyoungcy/depthwatch/internal/domain"

// Diff sums per-band volume changes from prev to curr over bandFilter (all
// bands when empty) and both sides. Increases count as added, decreases as
// subtracted; every figure is rounded to 6 decimals.
func Diff(prev, curr domain.BandSnapshot, bandFilter []string) domain.DeltaSummary {
	labels := bandFilter
	if len(labels) == 0 {
		labels = domain.Bands
	}
	var added, subtracted float64
	for _, band := range labels {
		p, _ := prev.Band(band)
		c, _ := curr.Band(band)
		for _, d := range [2]float64{c.Bid - p.Bid, c.Ask - p.Ask} {
			if d > 0 {
				added += d
			} else {
				subtracted -= d
			}
		}
	}
	return domain.DeltaSummary{
		Added:      Round(added, 6),
		Subtracted: Round(subtracted, 6),
		Net:        Round(added-subtracted, 6),
	}
}

type deltaKey struct {
	stream string
	mode   domain.Mode
}

// Summarizer remembers the last snapshot per (stream, mode) and reports the
// change each new snapshot brings. It belongs to a single stream goroutine.
type Summarizer struct {
	bandFilter []string
	prev       map[deltaKey]domain.BandSnapshot
}

// NewSummarizer creates a Summarizer restricted to bandFilter (all bands
// when empty).
func NewSummarizer(bandFilter []string) *Summarizer {
	return &Summarizer{
		bandFilter: bandFilter,
		prev:       make(map[deltaKey]domain.BandSnapshot),
	}
}

// Observe diffs snap against the previous snapshot of its stream and mode
// and stores snap as the new previous. The first snapshot is diffed against
// itself and yields zeros.
func (s *Summarizer) Observe(snap domain.BandSnapshot) domain.DeltaSummary {
	k := deltaKey{stream: snap.Stream, mode: snap.Mode}
	prev, seen := s.prev[k]
	if !seen {
		prev = snap
	}
	d := Diff(prev, snap, s.bandFilter)
	d.First = !seen
	s.prev[k] = snap
	return d
}

// Reset forgets every previous snapshot.
func (s *Summarizer) Reset() {
	clear(s.prev)
}
