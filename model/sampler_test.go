package model

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobonovski/lltm/prior"
)

func TestDraw(t *testing.T) {
	cumsum := []float64{0.5, 0.5, 1.5, 4.0}

	assert.Equal(t, 0, Draw(cumsum, 0))
	assert.Equal(t, 0, Draw(cumsum, 0.49))
	// a zero-width label can never be selected
	assert.Equal(t, 2, Draw(cumsum, 0.5))
	assert.Equal(t, 2, Draw(cumsum, 1.49))
	assert.Equal(t, 3, Draw(cumsum, 1.5))
	assert.Equal(t, 3, Draw(cumsum, 3.999))
	assert.Equal(t, 3, Draw(cumsum, 4.0))
}

func TestDrawSelectsExactlyOneLabel(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	cumsum := []float64{0.1, 0.35, 0.35, 0.9, 1.2}
	total := cumsum[len(cumsum)-1]

	hits := make([]int, len(cumsum))
	for n := 0; n < 10000; n += 1 {
		u := rng.Float64() * total
		idx := Draw(cumsum, u)
		require.True(t, idx >= 0 && idx < len(cumsum))
		if idx > 0 {
			require.True(t, u >= cumsum[idx-1])
		}
		require.True(t, u < cumsum[idx])
		hits[idx] += 1
	}
	assert.Equal(t, 0, hits[2])
	// label 3 owns 0.55 of 1.2
	assert.InDelta(t, 0.55/1.2, float64(hits[3])/10000, 0.03)
}

func TestSamplerWeights(t *testing.T) {
	labels := LabelSpace{NumOuter: 2, NumInner: 2}
	stats := NewStats(labels, 3, 2)
	stats.Increment(0, Label{0, 0}, 0)
	stats.Increment(0, Label{1, 1}, 0)
	stats.Increment(1, Label{1, 1}, 0)
	stats.Increment(2, Label{0, 1}, 1)

	p, err := prior.NewAdditive(prior.Params{NumOuter: 2, NumInner: 2, NumItems: 3, BetaInit: []float64{0.1, 0.2}})
	require.NoError(t, err)
	alpha := []float64{0.5, 1.5}
	s := NewSampler(stats, p, alpha)

	cumsum := s.Weights(0, 0)
	require.Len(t, cumsum, 4)

	// doc 0 has 3 occurrences, alpha sum = 2*0.5 + 2*1.5 = 4
	docDenom := 3.0 + 4.0
	want := []float64{
		(1 + 0.1) / (1 + 0.3) * (1 + 0.5) / docDenom,
		(0 + 0.1) / (1 + 0.3) * (0 + 0.5) / docDenom,
		(0 + 0.2) / (0 + 0.6) * (0 + 1.5) / docDenom,
		(1 + 0.2) / (2 + 0.6) * (2 + 1.5) / docDenom,
	}
	total := 0.0
	for k, w := range want {
		total += w
		assert.InDelta(t, total, cumsum[k], 1e-12, "label %d", k)
		if k > 0 {
			assert.GreaterOrEqual(t, cumsum[k], cumsum[k-1])
		}
	}
}

func TestSamplerResampleKeepsCounts(t *testing.T) {
	labels := LabelSpace{NumOuter: 2, NumInner: 3}
	stats := NewStats(labels, 2, 1)
	stats.Increment(1, Label{1, 2}, 0)
	stats.Increment(0, Label{0, 0}, 0)

	p, err := prior.NewFused(prior.Params{NumOuter: 2, NumInner: 3, NumItems: 2, BetaInit: []float64{0.1, 0.1}})
	require.NoError(t, err)
	s := NewSampler(stats, p, []float64{0.1, 0.1})

	rng := rand.New(rand.NewPCG(1, 2))
	cur := Label{1, 2}
	for n := 0; n < 100; n += 1 {
		cur = s.Resample(1, 0, cur, rng)
		require.Equal(t, uint32(1), stats.Get(1, cur.Outer, cur.Inner))
		require.Equal(t, uint32(2), stats.DocLength(0))
		require.NoError(t, stats.CheckInvariants())
	}
}
