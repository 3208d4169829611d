package model

import (
	"math/rand/v2"
	"sort"

	"github.com/bobonovski/lltm/prior"
)

// Sampler resamples the label of one occurrence at a time from its
// collapsed conditional distribution
type Sampler struct {
	stats    *Stats
	prior    prior.Parameterization
	alpha    []float64 // document label prior per outer label
	alphaSum float64   // sum of alpha over all labels
	cumsum   []float64
}

func NewSampler(stats *Stats, p prior.Parameterization, alpha []float64) *Sampler {
	labels := stats.Labels()
	alphaSum := 0.0
	for _, a := range alpha {
		alphaSum += float64(labels.NumInner) * a
	}
	return &Sampler{
		stats:    stats,
		prior:    p,
		alpha:    alpha,
		alphaSum: alphaSum,
		cumsum:   make([]float64, labels.Size()),
	}
}

// Weights fills the cumulative unnormalized conditional weights of
// every label for item in doc, in label index order. The occurrence
// being resampled must already be removed from the counts. The slice
// is reused by the next call.
func (s *Sampler) Weights(item, doc uint32) []float64 {
	labels := s.stats.Labels()
	docPart := float64(s.stats.DocLength(doc)) + s.alphaSum
	total := 0.0
	idx := 0
	for o := uint32(0); o < labels.NumOuter; o += 1 {
		for k := uint32(0); k < labels.NumInner; k += 1 {
			wordPart := (float64(s.stats.Get(item, o, k)) + s.prior.Beta(o, k, item)) /
				(float64(s.stats.LabelSum(o, k)) + s.prior.BetaSum(o, k))
			topicPart := (float64(s.stats.DocCount(doc, o, k)) + s.alpha[o]) / docPart
			total += wordPart * topicPart
			s.cumsum[idx] = total
			idx += 1
		}
	}
	return s.cumsum
}

// Draw returns the first index whose cumulative weight exceeds u. A
// u at or past the total, which only rounding can produce, selects
// the last index.
func Draw(cumsum []float64, u float64) int {
	idx := sort.Search(len(cumsum), func(i int) bool { return cumsum[i] > u })
	if idx == len(cumsum) {
		idx = len(cumsum) - 1
	}
	return idx
}

// Resample moves one occurrence of item in doc from label cur to a
// label drawn from its conditional distribution
func (s *Sampler) Resample(item, doc uint32, cur Label, rng *rand.Rand) Label {
	s.stats.Decrement(item, cur, doc)

	cumsum := s.Weights(item, doc)
	u := rng.Float64() * cumsum[len(cumsum)-1]
	next := s.stats.Labels().Label(uint32(Draw(cumsum, u)))

	s.stats.Increment(item, next, doc)
	return next
}
