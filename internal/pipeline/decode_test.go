package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/depthwatch/internal/domain"
)

func TestDecodeBandRecord(t *testing.T) {
	rec, err := DecodeBandRecord([]byte(`{"timestamp":1700000000000,"datetime":"2023-11-14T22:13:20Z","0-1_bid":10,"0-1_ask":"5.5","5-10_bid":null}`))
	require.NoError(t, err)

	assert.Equal(t, 1700000000000.0, rec.Timestamp)
	assert.Equal(t, "2023-11-14T22:13:20Z", rec.Datetime)
	bid, ask := rec.Volume("0-1")
	assert.Equal(t, 10.0, bid)
	assert.Equal(t, 5.5, ask)
	bid, ask = rec.Volume("5-10")
	assert.Zero(t, bid)
	assert.Zero(t, ask)
}

func TestDecodeBandRecord_FractionalTimestamp(t *testing.T) {
	rec, err := DecodeBandRecord([]byte(`{"timestamp":1700000000.987,"0-1_bid":1}`))
	require.NoError(t, err)
	assert.Equal(t, 1700000000.987, rec.Timestamp)
}

func TestDecodeBandRecord_DatetimeOnly(t *testing.T) {
	rec, err := DecodeBandRecord([]byte(`{"datetime":"2023-11-14T22:13:20Z","1-2.5_ask":3}`))
	require.NoError(t, err)
	assert.Zero(t, rec.Timestamp)
	_, ask := rec.Volume("1-2.5")
	assert.Equal(t, 3.0, ask)
}

func TestDecodeBandRecord_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"timestamp":`,
		"array":           `[1,2]`,
		"null":            `null`,
		"no time":         `{"0-1_bid":1}`,
		"bad band value":  `{"timestamp":1,"0-1_bid":"lots"}`,
		"bad timestamp":   `{"timestamp":"soon"}`,
		"datetime number": `{"datetime":12}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeBandRecord([]byte(raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrMalformedRecord)
		})
	}
}

func TestDecodeDepthDiff(t *testing.T) {
	d, err := DecodeDepthDiff([]byte(`{"b":[["100.0","2"],["99.50",0]],"a":[[101.0,"3"]]}`))
	require.NoError(t, err)

	require.Len(t, d.Bids, 2)
	assert.Equal(t, domain.LevelUpdate{Price: "100.0", Quantity: 2}, d.Bids[0])
	assert.Equal(t, domain.LevelUpdate{Price: "99.50", Quantity: 0}, d.Bids[1])
	require.Len(t, d.Asks, 1)
	assert.Equal(t, "101.0", d.Asks[0].Price)
	assert.Equal(t, 3.0, d.Asks[0].Quantity)
}

func TestDecodeDepthDiff_OneSide(t *testing.T) {
	d, err := DecodeDepthDiff([]byte(`{"a":[["5","1"]]}`))
	require.NoError(t, err)
	assert.Empty(t, d.Bids)
	assert.Len(t, d.Asks, 1)
}

func TestDecodeDepthDiff_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":      `nope`,
		"no sides":      `{"timestamp":1}`,
		"short level":   `{"b":[["100"]]}`,
		"bad quantity":  `{"b":[["100","x"]]}`,
		"object price":  `{"a":[[{},"1"]]}`,
		"side not list": `{"b":"100"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeDepthDiff([]byte(raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrMalformedRecord)
		})
	}
}
