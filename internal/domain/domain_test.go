package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStreamKey(t *testing.T) {
	k, err := ParseStreamKey("futures:ETHUSDT:depth")
	require.NoError(t, err)
	assert.Equal(t, StreamKey{Venue: VenueFutures, Symbol: "ETHUSDT", Channel: ChannelDepth}, k)
	assert.Equal(t, "futures:ETHUSDT:depth", k.Key())
	assert.Equal(t, "futures:ETHUSDT", k.Market())

	_, err = ParseStreamKey("spot:BTCUSDT")
	assert.Error(t, err)

	_, err = ParseStreamKey(":BTCUSDT:bands")
	assert.Error(t, err)

	_, err = ParseStreamKey("spot:BTCUSDT:trades")
	assert.True(t, errors.Is(err, ErrUnknownChannel))
}

func TestRatio_JSON(t *testing.T) {
	data, err := json.Marshal(Ratio(math.Inf(1)))
	require.NoError(t, err)
	assert.Equal(t, `"inf"`, string(data))

	data, err = json.Marshal(Ratio(0.5))
	require.NoError(t, err)
	assert.Equal(t, `0.5`, string(data))

	var r Ratio
	require.NoError(t, json.Unmarshal([]byte(`"inf"`), &r))
	assert.True(t, r.IsInf())

	require.NoError(t, json.Unmarshal([]byte(`2.25`), &r))
	assert.Equal(t, Ratio(2.25), r)

	assert.Error(t, json.Unmarshal([]byte(`"nan"`), &r))
}

func TestEvent_Channel(t *testing.T) {
	stream := StreamKey{Venue: VenueSpot, Symbol: "BTCUSDT", Channel: ChannelDepth}

	top := NewTopEvent(stream, TopLevels{})
	assert.Equal(t, "ch:top:spot:BTCUSDT", top.Channel())
	assert.NotEmpty(t, top.ID)

	band := NewBandEvent(StreamKey{Venue: VenueSpot, Symbol: "BTCUSDT", Channel: ChannelBands}, BandUpdate{})
	assert.Equal(t, "ch:bands:spot:BTCUSDT", band.Channel())
	assert.Equal(t, EventBands, band.Kind)
}

func TestBandRecord_MissingBandIsZero(t *testing.T) {
	rec := BandRecord{Volumes: map[string]BandVolume{"0-1": {Band: "0-1", Bid: 4, Ask: 2}}}

	bid, ask := rec.Volume("0-1")
	assert.Equal(t, 4.0, bid)
	assert.Equal(t, 2.0, ask)

	bid, ask = rec.Volume("10-25")
	assert.Zero(t, bid)
	assert.Zero(t, ask)
}
