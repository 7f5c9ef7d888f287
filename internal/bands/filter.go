package bands

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/depthwatch/internal/domain"
)

// Filter drops thin records and narrows records to selected bands.
// A zero threshold is disabled.
type Filter struct {
	MinBid float64
	MinAsk float64
	Bands  []string
}

// ParseBandFilter turns a band_filter setting into a band list. "all" and
// the empty list select every band (nil).
func ParseBandFilter(raw []string) ([]string, error) {
	var out []string
	for _, b := range raw {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		if strings.EqualFold(b, "all") {
			return nil, nil
		}
		if !domain.IsBand(b) {
			return nil, fmt.Errorf("%w %q", domain.ErrUnknownBand, b)
		}
		out = append(out, b)
	}
	return out, nil
}

// Apply reports whether rec passes the thresholds and returns it narrowed to
// the selected bands. A record is dropped when a threshold is set and every
// band's volume on that side is below it.
func (f Filter) Apply(rec domain.BandRecord) (domain.BandRecord, bool) {
	if f.MinBid > 0 && allBelow(rec, f.MinBid, domain.SideBid) {
		return domain.BandRecord{}, false
	}
	if f.MinAsk > 0 && allBelow(rec, f.MinAsk, domain.SideAsk) {
		return domain.BandRecord{}, false
	}
	if len(f.Bands) == 0 {
		return rec, true
	}
	slim := domain.BandRecord{
		Timestamp: rec.Timestamp,
		Datetime:  rec.Datetime,
		Volumes:   make(map[string]domain.BandVolume, len(f.Bands)),
	}
	for _, b := range f.Bands {
		bid, ask := rec.Volume(b)
		slim.Volumes[b] = domain.BandVolume{Band: b, Bid: bid, Ask: ask}
	}
	return slim, true
}

func allBelow(rec domain.BandRecord, min float64, side domain.Side) bool {
	for _, b := range domain.Bands {
		bid, ask := rec.Volume(b)
		v := bid
		if side == domain.SideAsk {
			v = ask
		}
		if v >= min {
			return false
		}
	}
	return true
}
