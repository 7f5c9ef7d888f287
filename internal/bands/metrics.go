package bands

import (
	"math"

	"github.com/alanyoungcy/depthwatch/internal/domain"
)

// Metrics are the derived values of one band.
type Metrics struct {
	Ratio        domain.Ratio
	ImbalancePct float64
	Predicted    domain.Prediction
}

// Compute derives ratio, imbalance and predicted side from one band's
// volumes. The ratio is ask/bid rounded to 4 decimals, or +Inf with no bids.
// Imbalance is (bid-ask)/(bid+ask) in percent rounded to 2 decimals, 0 for an
// empty band.
func Compute(bid, ask float64) Metrics {
	m := Metrics{Predicted: domain.PredictNeutral}
	if bid == 0 {
		m.Ratio = domain.Ratio(math.Inf(1))
	} else {
		m.Ratio = domain.Ratio(Round(ask/bid, 4))
	}
	if total := bid + ask; total != 0 {
		m.ImbalancePct = Round((bid-ask)/total*100, 2)
	}
	switch {
	case ask > bid:
		m.Predicted = domain.PredictAsk
	case bid > ask:
		m.Predicted = domain.PredictBid
	}
	return m
}

// Round rounds x half away from zero to places decimals.
func Round(x float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(x*p) / p
}
