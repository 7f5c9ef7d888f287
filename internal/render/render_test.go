package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/depthwatch/internal/bands"
	"github.com/alanyoungcy/depthwatch/internal/domain"
)

func update() domain.BandUpdate {
	rec := domain.BandRecord{
		Datetime: "2024-01-02 03:04:05",
		Volumes: map[string]domain.BandVolume{
			"0-1":   {Band: "0-1", Bid: 10, Ask: 5},
			"1-2.5": {Band: "1-2.5", Bid: 0, Ask: 20},
		},
	}
	stream := domain.StreamKey{Venue: domain.VenueSpot, Symbol: "BTCUSDT", Channel: domain.ChannelBands}
	return domain.BandUpdate{
		Snapshot: bands.Snapshot(stream, rec, domain.ModeNonCumulative),
		Delta:    domain.DeltaSummary{Added: 1.5, Subtracted: 0.25, Net: 1.25},
	}
}

func TestBandFields_DisplayModes(t *testing.T) {
	only := []string{"0-1"}

	total := New(Options{Display: DisplayTotal, SizePrecision: 1, Bands: only}).BandFields(update())
	assert.Equal(t, []Field{{"0-1_bid", "10.0"}, {"0-1_ask", "5.0"}}, total)

	ratio := New(Options{Display: DisplayRatio, Bands: only}).BandFields(update())
	assert.Equal(t, []Field{{"0-1_ratio", "0.5"}, {"0-1_imb%", "33.33"}, {"0-1_pred", "bid"}}, ratio)

	both := New(Options{Bands: only}).BandFields(update())
	assert.Len(t, both, 5)
}

func TestBandFields_InfiniteRatio(t *testing.T) {
	got := New(Options{Display: DisplayRatio, Bands: []string{"1-2.5"}}).BandFields(update())
	assert.Equal(t, Field{"1-2.5_ratio", "∞"}, got[0])
}

func TestBandFields_Sticky(t *testing.T) {
	got := New(Options{Display: DisplayTotal, StickySide: domain.SideAsk}).BandFields(update())
	assert.Equal(t, []Field{{"1-2.5_bid", "0"}, {"1-2.5_ask", "20"}}, got)
}

func TestBandLine(t *testing.T) {
	line := New(Options{Display: DisplayTotal, SizePrecision: 2, Bands: []string{"0-1"}}).BandLine("spot", update())
	assert.Equal(t, "[+1.50/-0.25/Δ1.25] | 2024-01-02 03:04:05 | SPOT | noncumulative | 0-1_bid=10.00 | 0-1_ask=5.00", line)
}

func TestTopLine(t *testing.T) {
	top := domain.TopLevels{
		N:  2,
		At: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Levels: []domain.PriceLevel{
			{Price: "101.0", Quantity: 3, Side: domain.SideAsk},
			{Price: "100.125", Quantity: 2, Side: domain.SideBid},
		},
	}
	line := New(Options{PricePrecision: 2, SizePrecision: 3}).TopLine("futures", top)
	assert.Equal(t, "2024-01-02 03:04:05 | FUTURES | TOP-LEVELS (N=2) | ask@101.00=3.000 | bid@100.13=2.000", line)
}
