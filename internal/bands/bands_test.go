package bands

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/depthwatch/internal/domain"
)

var testStream = domain.StreamKey{Venue: domain.VenueSpot, Symbol: "BTCUSDT", Channel: domain.ChannelBands}

func record(vols map[string][2]float64) domain.BandRecord {
	rec := domain.BandRecord{Timestamp: 1700000000, Datetime: "2023-11-14 22:13:20", Volumes: map[string]domain.BandVolume{}}
	for b, v := range vols {
		rec.Volumes[b] = domain.BandVolume{Band: b, Bid: v[0], Ask: v[1]}
	}
	return rec
}

func TestAggregate_NonCumulativePassesThrough(t *testing.T) {
	rec := record(map[string][2]float64{"0-1": {10, 5}, "5-10": {1, 2}})
	got := Aggregate(rec, false)

	require.Len(t, got, len(domain.Bands))
	assert.Equal(t, domain.BandVolume{Band: "0-1", Bid: 10, Ask: 5}, got[0])
	assert.Equal(t, domain.BandVolume{Band: "1-2.5", Bid: 0, Ask: 0}, got[1])
	assert.Equal(t, domain.BandVolume{Band: "5-10", Bid: 1, Ask: 2}, got[3])
}

func TestAggregate_CumulativeIsPrefixSum(t *testing.T) {
	rec := record(map[string][2]float64{
		"0-1": {1, 2}, "1-2.5": {3, 4}, "2.5-5": {5, 6}, "5-10": {7, 8}, "10-25": {9, 10},
	})
	raw := Aggregate(rec, false)
	cum := Aggregate(rec, true)

	var bidSum, askSum float64
	for k := range domain.Bands {
		bidSum += raw[k].Bid
		askSum += raw[k].Ask
		assert.Equal(t, bidSum, cum[k].Bid, "band %s", domain.Bands[k])
		assert.Equal(t, askSum, cum[k].Ask, "band %s", domain.Bands[k])
	}
	assert.Equal(t, 25.0, cum[4].Bid)
	assert.Equal(t, 30.0, cum[4].Ask)
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name     string
		bid, ask float64
		ratio    float64
		imb      float64
		pred     domain.Prediction
	}{
		{"no bids", 0, 5, math.Inf(1), -100, domain.PredictAsk},
		{"balanced", 5, 5, 1, 0, domain.PredictNeutral},
		{"empty band", 0, 0, math.Inf(1), 0, domain.PredictNeutral},
		{"bid heavy", 10, 5, 0.5, 33.33, domain.PredictBid},
		{"ratio rounds to 4 places", 3, 1, 0.3333, 50, domain.PredictBid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Compute(tt.bid, tt.ask)
			assert.Equal(t, tt.ratio, float64(m.Ratio))
			assert.Equal(t, tt.imb, m.ImbalancePct)
			assert.Equal(t, tt.pred, m.Predicted)
		})
	}
}

func TestSnapshot_BandMetricsExample(t *testing.T) {
	snap := Snapshot(testStream, record(map[string][2]float64{"0-1": {10, 5}}), domain.ModeNonCumulative)

	b, ok := snap.Band("0-1")
	require.True(t, ok)
	assert.Equal(t, domain.Ratio(0.5), b.Ratio)
	assert.Equal(t, 33.33, b.ImbalancePct)
	assert.Equal(t, domain.PredictBid, b.Predicted)
	assert.Equal(t, "spot:BTCUSDT:bands", snap.Stream)
	assert.NotEmpty(t, snap.ID)

	empty, _ := snap.Band("10-25")
	assert.True(t, empty.Ratio.IsInf())
}

func TestDiff_Example(t *testing.T) {
	prev := Snapshot(testStream, record(map[string][2]float64{"0-1": {5, 3}}), domain.ModeNonCumulative)
	curr := Snapshot(testStream, record(map[string][2]float64{"0-1": {8, 1}}), domain.ModeNonCumulative)

	d := Diff(prev, curr, nil)
	assert.Equal(t, 3.0, d.Added)
	assert.Equal(t, 2.0, d.Subtracted)
	assert.Equal(t, 1.0, d.Net)
}

func TestDiff_RespectsBandFilter(t *testing.T) {
	prev := Snapshot(testStream, record(map[string][2]float64{"0-1": {5, 3}, "1-2.5": {1, 1}}), domain.ModeNonCumulative)
	curr := Snapshot(testStream, record(map[string][2]float64{"0-1": {8, 1}, "1-2.5": {10, 1}}), domain.ModeNonCumulative)

	d := Diff(prev, curr, []string{"1-2.5"})
	assert.Equal(t, 9.0, d.Added)
	assert.Equal(t, 0.0, d.Subtracted)
	assert.Equal(t, 9.0, d.Net)
}

func TestDiff_RoundsToSixPlaces(t *testing.T) {
	prev := Snapshot(testStream, record(map[string][2]float64{"0-1": {0.1, 0}}), domain.ModeNonCumulative)
	curr := Snapshot(testStream, record(map[string][2]float64{"0-1": {0.3, 0}}), domain.ModeNonCumulative)

	d := Diff(prev, curr, nil)
	assert.Equal(t, 0.2, d.Added)
}

func TestSummarizer_FirstObservationIsZero(t *testing.T) {
	s := NewSummarizer(nil)
	snap := Snapshot(testStream, record(map[string][2]float64{"0-1": {5, 3}}), domain.ModeNonCumulative)

	d := s.Observe(snap)
	assert.Equal(t, domain.DeltaSummary{First: true}, d)

	next := Snapshot(testStream, record(map[string][2]float64{"0-1": {8, 1}}), domain.ModeNonCumulative)
	d = s.Observe(next)
	assert.Equal(t, domain.DeltaSummary{Added: 3, Subtracted: 2, Net: 1}, d)
}

func TestSummarizer_KeepsModesApart(t *testing.T) {
	s := NewSummarizer(nil)
	rec1 := record(map[string][2]float64{"0-1": {5, 3}})
	rec2 := record(map[string][2]float64{"0-1": {8, 1}})

	s.Observe(Snapshot(testStream, rec1, domain.ModeNonCumulative))
	d := s.Observe(Snapshot(testStream, rec2, domain.ModeCumulative))
	assert.True(t, d.First, "cumulative mode has no previous snapshot yet")

	s.Reset()
	d = s.Observe(Snapshot(testStream, rec2, domain.ModeNonCumulative))
	assert.True(t, d.First)
}

func TestFilter_Thresholds(t *testing.T) {
	thin := record(map[string][2]float64{"0-1": {1, 50}, "1-2.5": {2, 1}})

	_, ok := Filter{MinBid: 5}.Apply(thin)
	assert.False(t, ok, "every bid below the threshold drops the record")

	_, ok = Filter{MinAsk: 5}.Apply(thin)
	assert.True(t, ok, "one ask band at or above the threshold keeps it")

	_, ok = Filter{MinAsk: 51}.Apply(thin)
	assert.False(t, ok)

	got, ok := Filter{}.Apply(thin)
	assert.True(t, ok)
	assert.Equal(t, thin, got)
}

func TestFilter_NarrowsToBands(t *testing.T) {
	rec := record(map[string][2]float64{"0-1": {1, 2}, "1-2.5": {3, 4}})
	got, ok := Filter{Bands: []string{"1-2.5", "5-10"}}.Apply(rec)
	require.True(t, ok)

	assert.Equal(t, rec.Datetime, got.Datetime)
	assert.Len(t, got.Volumes, 2)
	bid, ask := got.Volume("0-1")
	assert.Zero(t, bid)
	assert.Zero(t, ask)
	bid, ask = got.Volume("1-2.5")
	assert.Equal(t, 3.0, bid)
	assert.Equal(t, 4.0, ask)
}

func TestParseBandFilter(t *testing.T) {
	got, err := ParseBandFilter([]string{"all"})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseBandFilter([]string{" 0-1", "5-10 ", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"0-1", "5-10"}, got)

	got, err = ParseBandFilter([]string{"ALL"})
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseBandFilter([]string{"0-2"})
	assert.True(t, errors.Is(err, domain.ErrUnknownBand))
	assert.EqualError(t, err, `unknown band "0-2"`)
}

func TestStickyBand(t *testing.T) {
	snap := Snapshot(testStream, record(map[string][2]float64{
		"0-1": {1, 9}, "1-2.5": {7, 2}, "2.5-5": {7, 1},
	}), domain.ModeNonCumulative)

	assert.Equal(t, "1-2.5", StickyBand(snap, domain.SideBid), "nearest band wins the tie")
	assert.Equal(t, "0-1", StickyBand(snap, domain.SideAsk))

	empty := Snapshot(testStream, record(nil), domain.ModeNonCumulative)
	assert.Equal(t, "0-1", StickyBand(empty, domain.SideBid))
}
