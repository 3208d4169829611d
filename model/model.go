package model

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/bobonovski/lltm/corpus"
	"github.com/bobonovski/lltm/matrix"
	"github.com/bobonovski/lltm/prior"
)

var kinds = make(map[string]KindCtor)

// KindCtor decides which occurrences a model kind samples and the
// shape of its label space
type KindCtor func(numOuter, numInner, numEvents uint32) (corpus.Stream, LabelSpace, error)

// new model kinds should register themselves using this function
func Register(kind string, k KindCtor) {
	kinds[kind] = k
}

func GetKind(kind string) (KindCtor, error) {
	if _, ok := kinds[kind]; !ok {
		return nil, fmt.Errorf("model %s not registered", kind)
	}
	return kinds[kind], nil
}

// Kinds lists the registered model kinds
func Kinds() []string {
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Model is the state of a collapsed Gibbs sampler: the label of
// every occurrence, the sufficient statistics and the prior
type Model struct {
	Data   *corpus.Corpus
	Stream corpus.Stream
	Labels LabelSpace
	Alpha  []float64 // document label prior per outer label
	Prior  prior.Parameterization
	Stats  *Stats
	// Z[d][i] is the label index of the i-th occurrence of doc d
	Z [][]uint32

	items   [][]uint32
	sampler *Sampler
}

// New creates an uninitialized model, call Init or Restore before
// sampling
func New(data *corpus.Corpus, stream corpus.Stream, labels LabelSpace,
	alpha []float64, p prior.Parameterization) (*Model, error) {
	if data.DocNum == 0 {
		return nil, fmt.Errorf("corpus has no documents")
	}
	numItems := data.ItemSize(stream)
	if numItems == 0 {
		return nil, fmt.Errorf("corpus has no %s", stream)
	}
	if labels.Size() == 0 {
		return nil, fmt.Errorf("empty label space %dx%d", labels.NumOuter, labels.NumInner)
	}
	if uint32(len(alpha)) != labels.NumOuter {
		return nil, fmt.Errorf("%d alpha values for %d outer labels", len(alpha), labels.NumOuter)
	}
	for o, a := range alpha {
		if !(a > 0) {
			return nil, fmt.Errorf("alpha %v of outer label %d is not positive", a, o)
		}
	}
	if p.NumOuter() != labels.NumOuter || p.NumInner() != labels.NumInner || p.NumItems() != numItems {
		return nil, fmt.Errorf("prior shape %dx%dx%d does not match model %dx%dx%d",
			p.NumOuter(), p.NumInner(), p.NumItems(), labels.NumOuter, labels.NumInner, numItems)
	}

	m := &Model{
		Data:   data,
		Stream: stream,
		Labels: labels,
		Alpha:  alpha,
		Prior:  p,
		Z:      make([][]uint32, data.DocNum),
		items:  make([][]uint32, data.DocNum),
	}
	for d := uint32(0); d < data.DocNum; d += 1 {
		m.items[d] = data.Items(d, stream)
		m.Z[d] = make([]uint32, len(m.items[d]))
	}
	m.reset()
	return m, nil
}

func (m *Model) reset() {
	m.Stats = NewStats(m.Labels, m.Data.ItemSize(m.Stream), m.Data.DocNum)
	m.sampler = NewSampler(m.Stats, m.Prior, m.Alpha)
}

// Init assigns every occurrence a uniformly random label
func (m *Model) Init(rng *rand.Rand) {
	m.reset()
	size := int(m.Labels.Size())
	for d, items := range m.items {
		for i, w := range items {
			k := uint32(rng.IntN(size))
			m.Stats.Increment(w, m.Labels.Label(k), uint32(d))
			m.Z[d][i] = k
		}
	}
}

// Restore rebuilds the counts from stored label assignments
func (m *Model) Restore(z [][]uint32) error {
	if len(z) != len(m.items) {
		return fmt.Errorf("assignments for %d documents, corpus has %d", len(z), len(m.items))
	}
	for d, items := range m.items {
		if len(z[d]) != len(items) {
			return fmt.Errorf("doc %d: %d assignments for %d occurrences", d, len(z[d]), len(items))
		}
		for _, k := range z[d] {
			if k >= m.Labels.Size() {
				return fmt.Errorf("doc %d: label %d outside label space", d, k)
			}
		}
	}

	m.reset()
	for d, items := range m.items {
		copy(m.Z[d], z[d])
		for i, w := range items {
			m.Stats.Increment(w, m.Labels.Label(z[d][i]), uint32(d))
		}
	}
	return nil
}

// Sweep resamples every occurrence once, documents in corpus order
// and occurrences in document order
func (m *Model) Sweep(rng *rand.Rand) {
	for d, items := range m.items {
		for i, w := range items {
			cur := m.Labels.Label(m.Z[d][i])
			next := m.sampler.Resample(w, uint32(d), cur, rng)
			m.Z[d][i] = m.Labels.Index(next)
		}
	}
}

// AlphaSum is the sum of the document label prior over all labels
func (m *Model) AlphaSum() float64 {
	return m.sampler.alphaSum
}

// compute the posterior point estimation of document-label mixture
// alpha (Dirichlet prior) + data -> theta
func (m *Model) Theta() *matrix.Float64Matrix {
	theta := matrix.NewFloat64Matrix(m.Data.DocNum, m.Labels.Size())
	alphaSum := m.AlphaSum()

	for d := uint32(0); d < m.Data.DocNum; d += 1 {
		denom := float64(m.Stats.DocLength(d)) + alphaSum
		row := theta.Row(d)
		for k := uint32(0); k < m.Labels.Size(); k += 1 {
			l := m.Labels.Label(k)
			row[k] = (float64(m.Stats.DocCount(d, l.Outer, l.Inner)) + m.Alpha[l.Outer]) / denom
		}
	}

	return theta
}

// compute the posterior point estimation of label-item mixture,
// one row per item
// beta (log-linear prior) + data -> phi
func (m *Model) Phi() *matrix.Float64Matrix {
	numItems := m.Data.ItemSize(m.Stream)
	phi := matrix.NewFloat64Matrix(numItems, m.Labels.Size())

	for k := uint32(0); k < m.Labels.Size(); k += 1 {
		l := m.Labels.Label(k)
		denom := float64(m.Stats.LabelSum(l.Outer, l.Inner)) + m.Prior.BetaSum(l.Outer, l.Inner)
		for v := uint32(0); v < numItems; v += 1 {
			result := (float64(m.Stats.Get(v, l.Outer, l.Inner)) + m.Prior.Beta(l.Outer, l.Inner, v)) / denom
			phi.Set(v, k, result)
		}
	}

	return phi
}

// Beta returns the prior pseudo-counts, one row per item
func (m *Model) Beta() *matrix.Float64Matrix {
	numItems := m.Data.ItemSize(m.Stream)
	beta := matrix.NewFloat64Matrix(numItems, m.Labels.Size())
	for k := uint32(0); k < m.Labels.Size(); k += 1 {
		l := m.Labels.Label(k)
		for v := uint32(0); v < numItems; v += 1 {
			beta.Set(v, k, m.Prior.Beta(l.Outer, l.Inner, v))
		}
	}
	return beta
}

// compute the log likelihood of the corpus under the point estimates
func (m *Model) Likelihood() float64 {
	phi := m.Phi()
	theta := m.Theta()

	sum := 0.0
	for d, items := range m.items {
		thetaRow := theta.Row(uint32(d))
		for _, w := range items {
			phiRow := phi.Row(w)
			labelSum := 0.0
			for k, t := range thetaRow {
				labelSum += phiRow[k] * t
			}
			sum += math.Log(labelSum)
		}
	}

	return sum
}
