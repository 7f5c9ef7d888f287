package bands

import "github.com/alanyoungcy/depthwatch/internal/domain"

// StickyBand returns the band with the largest volume on side. The nearest
// band wins ties.
func StickyBand(snap domain.BandSnapshot, side domain.Side) string {
	best, bestVol := domain.Bands[0], -1.0
	for _, b := range domain.Bands {
		m, _ := snap.Band(b)
		vol := m.Bid
		if side == domain.SideAsk {
			vol = m.Ask
		}
		if vol > bestVol {
			best, bestVol = b, vol
		}
	}
	return best
}
