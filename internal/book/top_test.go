package book

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/depthwatch/internal/domain"
)

func TestTop_Example(t *testing.T) {
	r := NewReplica()
	require.NoError(t, r.Apply(diff([][2]any{{"100.0", 2.0}}, [][2]any{{"101.0", 3.0}})))

	got := Top(r, 2)
	assert.Equal(t, []domain.PriceLevel{
		{Price: "101.0", Quantity: 3, Side: domain.SideAsk},
		{Price: "100.0", Quantity: 2, Side: domain.SideBid},
	}, got)
}

func TestTop_Empty(t *testing.T) {
	assert.Empty(t, Top(NewReplica(), 10))
	r := NewReplica()
	require.NoError(t, r.Apply(diff([][2]any{{"1", 1.0}}, nil)))
	assert.Empty(t, Top(r, 0))
}

func TestTop_TieBreaks(t *testing.T) {
	tests := []struct {
		name string
		bids [][2]any
		asks [][2]any
		want []domain.PriceLevel
	}{
		{
			name: "equal quantity prefers smaller price",
			bids: [][2]any{{"99.5", 1.0}, {"100.0", 1.0}},
			want: []domain.PriceLevel{
				{Price: "99.5", Quantity: 1, Side: domain.SideBid},
				{Price: "100.0", Quantity: 1, Side: domain.SideBid},
			},
		},
		{
			name: "price compared numerically not lexically",
			asks: [][2]any{{"100.0", 1.0}, {"99.0", 1.0}},
			want: []domain.PriceLevel{
				{Price: "99.0", Quantity: 1, Side: domain.SideAsk},
				{Price: "100.0", Quantity: 1, Side: domain.SideAsk},
			},
		},
		{
			name: "equal quantity and price puts ask first",
			bids: [][2]any{{"100.0", 2.0}},
			asks: [][2]any{{"100.0", 2.0}},
			want: []domain.PriceLevel{
				{Price: "100.0", Quantity: 2, Side: domain.SideAsk},
				{Price: "100.0", Quantity: 2, Side: domain.SideBid},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReplica()
			require.NoError(t, r.Apply(diff(tt.bids, tt.asks)))
			assert.Equal(t, tt.want, Top(r, 5))
		})
	}
}

func TestTop_MatchesFullSort(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r := NewReplica()
	var bids, asks [][2]any
	for i := 0; i < 500; i++ {
		// Few distinct quantities so ties are common.
		q := float64(rng.Intn(20) + 1)
		p := fmt.Sprintf("%d.%d", 1000+rng.Intn(300), rng.Intn(10))
		if i%2 == 0 {
			bids = append(bids, [2]any{p, q})
		} else {
			asks = append(asks, [2]any{p, q})
		}
	}
	require.NoError(t, r.Apply(diff(bids, asks)))

	var all []candidate
	for side, levels := range map[domain.Side]map[string]level{domain.SideBid: r.bids, domain.SideAsk: r.asks} {
		for k, l := range levels {
			all = append(all, candidate{key: k, qty: l.qty, price: l.price, side: side})
		}
	}
	sort.Slice(all, func(i, j int) bool { return ranksBefore(all[i], all[j]) })

	for _, n := range []int{1, 3, 10, 50, 10000} {
		got := Top(r, n)
		want := all
		if n < len(all) {
			want = all[:n]
		}
		require.Len(t, got, len(want), "n=%d", n)
		for i := range want {
			assert.Equal(t, want[i].key, got[i].Price, "n=%d i=%d", n, i)
			assert.Equal(t, want[i].side, got[i].Side, "n=%d i=%d", n, i)
		}
	}
}

func TestTop_Properties(t *testing.T) {
	r := NewReplica()
	require.NoError(t, r.Apply(diff(
		[][2]any{{"10", 5.0}, {"9", 7.0}, {"8", 1.0}},
		[][2]any{{"11", 6.0}, {"12", 7.0}, {"13", 2.0}},
	)))

	got := Top(r, 4)
	require.LessOrEqual(t, len(got), 4)
	for i, l := range got {
		q, ok := r.quantity(l.Side, l.Price)
		assert.True(t, ok, "level %v must exist in the replica", l)
		assert.Equal(t, q, l.Quantity)
		if i > 0 {
			assert.GreaterOrEqual(t, got[i-1].Quantity, l.Quantity)
		}
	}
}

func TestSignature(t *testing.T) {
	a := []domain.PriceLevel{{Price: "1", Quantity: 0.1 + 0.2, Side: domain.SideBid}}
	b := []domain.PriceLevel{{Price: "1", Quantity: 0.3, Side: domain.SideBid}}
	c := []domain.PriceLevel{{Price: "1", Quantity: 0.3, Side: domain.SideAsk}}

	assert.Equal(t, Signature(a), Signature(b))
	assert.NotEqual(t, Signature(b), Signature(c))
	assert.Equal(t, "", Signature(nil))
}
