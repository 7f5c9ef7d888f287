package book

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/depthwatch/internal/domain"
)

func diff(bids, asks [][2]any) domain.DepthDiff {
	conv := func(in [][2]any) []domain.LevelUpdate {
		out := make([]domain.LevelUpdate, 0, len(in))
		for _, pq := range in {
			out = append(out, domain.LevelUpdate{Price: pq[0].(string), Quantity: pq[1].(float64)})
		}
		return out
	}
	return domain.DepthDiff{Bids: conv(bids), Asks: conv(asks)}
}

func TestReplica_ApplyInsertsAndOverwrites(t *testing.T) {
	r := NewReplica()
	require.NoError(t, r.Apply(diff([][2]any{{"100.0", 2.0}}, [][2]any{{"101.0", 3.0}})))
	require.NoError(t, r.Apply(diff([][2]any{{"100.0", 5.0}}, nil)))

	q, ok := r.quantity(domain.SideBid, "100.0")
	assert.True(t, ok)
	assert.Equal(t, 5.0, q)
	q, ok = r.quantity(domain.SideAsk, "101.0")
	assert.True(t, ok)
	assert.Equal(t, 3.0, q)
}

func TestReplica_ZeroQuantityRemovesLevel(t *testing.T) {
	r := NewReplica()
	require.NoError(t, r.Apply(diff([][2]any{{"100.0", 2.0}, {"99.5", 1.0}}, nil)))
	require.NoError(t, r.Apply(diff([][2]any{{"100.0", 0.0}}, nil)))

	_, ok := r.quantity(domain.SideBid, "100.0")
	assert.False(t, ok)
	assert.Equal(t, 1, r.depth(domain.SideBid))
}

func TestReplica_ZeroQuantityForAbsentPriceIsNoop(t *testing.T) {
	r := NewReplica()
	require.NoError(t, r.Apply(diff([][2]any{{"100.0", 2.0}}, [][2]any{{"101.0", 3.0}})))
	before := map[domain.Side]map[string]float64{
		domain.SideBid: r.levels(domain.SideBid),
		domain.SideAsk: r.levels(domain.SideAsk),
	}

	require.NoError(t, r.Apply(diff([][2]any{{"42.0", 0.0}}, [][2]any{{"43.0", 0.0}})))

	assert.Equal(t, before[domain.SideBid], r.levels(domain.SideBid))
	assert.Equal(t, before[domain.SideAsk], r.levels(domain.SideAsk))
}

func TestReplica_PriceKeysAreExactText(t *testing.T) {
	r := NewReplica()
	require.NoError(t, r.Apply(diff([][2]any{{"100.0", 1.0}, {"100.00", 2.0}}, nil)))
	assert.Equal(t, 2, r.depth(domain.SideBid))
}

func TestReplica_SnapshotAppliedTwiceIsIdempotent(t *testing.T) {
	snap := diff(
		[][2]any{{"100.0", 2.0}, {"99.0", 4.0}},
		[][2]any{{"101.0", 3.0}, {"102.0", 1.5}},
	)
	r := NewReplica()
	require.NoError(t, r.Apply(snap))
	first := [2]map[string]float64{r.levels(domain.SideBid), r.levels(domain.SideAsk)}
	require.NoError(t, r.Apply(snap))
	second := [2]map[string]float64{r.levels(domain.SideBid), r.levels(domain.SideAsk)}

	assert.Equal(t, first, second)
}

func TestReplica_MalformedDiffLeavesStateUntouched(t *testing.T) {
	r := NewReplica()
	require.NoError(t, r.Apply(diff([][2]any{{"100.0", 2.0}}, nil)))

	err := r.Apply(diff([][2]any{{"99.0", 1.0}}, [][2]any{{"not-a-price", 1.0}}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMalformedRecord))
	assert.Equal(t, map[string]float64{"100.0": 2.0}, r.levels(domain.SideBid))
	assert.Equal(t, 0, r.depth(domain.SideAsk))

	err = r.Apply(diff([][2]any{{"99.0", -1.0}}, nil))
	assert.True(t, errors.Is(err, domain.ErrMalformedRecord))
}

func TestReplica_Reset(t *testing.T) {
	r := NewReplica()
	require.NoError(t, r.Apply(diff([][2]any{{"100.0", 2.0}}, [][2]any{{"101.0", 3.0}})))
	r.Reset()
	assert.Equal(t, 0, r.depth(domain.SideBid))
	assert.Equal(t, 0, r.depth(domain.SideAsk))
}
