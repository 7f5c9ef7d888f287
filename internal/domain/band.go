package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Bands are the fixed distance-from-mid ranges, in percent, ordered nearest
// first.
var Bands = []string{"0-1", "1-2.5", "2.5-5", "5-10", "10-25"}

// IsBand reports whether label is one of Bands.
func IsBand(label string) bool {
	for _, b := range Bands {
		if b == label {
			return true
		}
	}
	return false
}

// Mode selects raw or running-total band volumes.
type Mode string

const (
	ModeNonCumulative Mode = "noncumulative"
	ModeCumulative    Mode = "cumulative"
)

// Prediction names the side expected to dominate.
type Prediction string

const (
	PredictBid     Prediction = "bid"
	PredictAsk     Prediction = "ask"
	PredictNeutral Prediction = "neutral"
)

// BandVolume is the bid and ask volume of one band.
type BandVolume struct {
	Band string  `json:"band"`
	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`
}

// BandRecord is a decoded band log entry. Volumes holds the bands present in
// the record; absent bands count as zero.
type BandRecord struct {
	Timestamp float64
	Datetime  string
	Volumes   map[string]BandVolume
}

// Volume returns the bid and ask volume for band, zero when absent.
func (r BandRecord) Volume(band string) (bid, ask float64) {
	v, ok := r.Volumes[band]
	if !ok {
		return 0, 0
	}
	return v.Bid, v.Ask
}

// Ratio is ask/bid. It is +Inf when the bid side is empty and encodes to
// JSON as the string "inf".
type Ratio float64

func (r Ratio) IsInf() bool {
	return math.IsInf(float64(r), 1)
}

func (r Ratio) MarshalJSON() ([]byte, error) {
	if r.IsInf() {
		return []byte(`"inf"`), nil
	}
	return json.Marshal(float64(r))
}

func (r *Ratio) UnmarshalJSON(data []byte) error {
	if string(data) == `"inf"` {
		*r = Ratio(math.Inf(1))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("ratio: %w", err)
	}
	*r = Ratio(f)
	return nil
}

// BandMetrics is one enriched band of a snapshot.
type BandMetrics struct {
	Band         string     `json:"band"`
	Bid          float64    `json:"bid"`
	Ask          float64    `json:"ask"`
	Ratio        Ratio      `json:"ratio"`
	ImbalancePct float64    `json:"imbalance_pct"`
	Predicted    Prediction `json:"predicted"`
}

// BandSnapshot is the fully computed band view of one record in one mode.
type BandSnapshot struct {
	ID        string        `json:"id"`
	Stream    string        `json:"stream"`
	Mode      Mode          `json:"mode"`
	Timestamp float64       `json:"timestamp"`
	Datetime  string        `json:"datetime"`
	Bands     []BandMetrics `json:"bands"`
}

// Band returns the metrics for label.
func (s BandSnapshot) Band(label string) (BandMetrics, bool) {
	for _, b := range s.Bands {
		if b.Band == label {
			return b, true
		}
	}
	return BandMetrics{}, false
}

// DeltaSummary is the volume change between two consecutive snapshots of the
// same stream and mode.
type DeltaSummary struct {
	Added      float64 `json:"added"`
	Subtracted float64 `json:"subtracted"`
	Net        float64 `json:"net"`
	First      bool    `json:"first"`
}

// BandUpdate pairs a snapshot with its delta against the previous one.
type BandUpdate struct {
	Snapshot BandSnapshot `json:"snapshot"`
	Delta    DeltaSummary `json:"delta"`
}

// StoredSnapshot is a persisted BandUpdate.
type StoredSnapshot struct {
	BandUpdate
	Venue     Venue     `json:"venue"`
	Symbol    string    `json:"symbol"`
	CreatedAt time.Time `json:"created_at"`
}
