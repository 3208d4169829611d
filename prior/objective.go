package prior

import (
	"fmt"

	"github.com/bobonovski/lltm/corpus"
	"github.com/bobonovski/lltm/matrix"
	"github.com/bobonovski/lltm/util"
)

// Counts is the part of the sufficient statistics the objective reads
type Counts interface {
	// times item has been assigned label (o, k)
	Get(item, o, k uint32) uint32
	// number of occurrences assigned label (o, k)
	LabelSum(o, k uint32) uint32
}

// Objective is the negative log pseudo-likelihood of the item-label
// counts under the log-linear Dirichlet prior, plus a ridge penalty
// on y and an optional smoothness penalty over a similarity graph.
// Func and Grad work on scratch buffers so that trial points of a
// line search never leak into the parameterization.
type Objective struct {
	prior       Parameterization
	counts      Counts
	sigmaSquare float64

	graph        *corpus.Graph
	lambdaSquare float64

	beta    *matrix.Float64Matrix
	betaSum []float64
}

func NewObjective(p Parameterization, counts Counts, sigmaSquare float64) *Objective {
	return &Objective{
		prior:       p,
		counts:      counts,
		sigmaSquare: sigmaSquare,
		beta:        matrix.NewFloat64Matrix(p.NumOuter()*p.NumInner(), p.NumItems()),
		betaSum:     make([]float64, p.NumOuter()*p.NumInner()),
	}
}

// SetGraph adds the penalty sum over edges of (y_i - y_j)^2 / (2 lambdaSquare)
// inside every row of y
func (obj *Objective) SetGraph(g *corpus.Graph, lambdaSquare float64) error {
	if g == nil {
		obj.graph = nil
		return nil
	}
	if g.NumItems != obj.prior.NumItems() {
		return fmt.Errorf("similarity graph over %d items, prior over %d", g.NumItems, obj.prior.NumItems())
	}
	if !(lambdaSquare > 0) {
		return fmt.Errorf("graph lambda square must be positive, got %v", lambdaSquare)
	}
	obj.graph = g
	obj.lambdaSquare = lambdaSquare
	return nil
}

// Dim is the length of the optimization vector
func (obj *Objective) Dim() int {
	return obj.prior.Layout().Len()
}

// Func evaluates the objective at x
func (obj *Objective) Func(x []float64) float64 {
	obj.prior.ComputeBeta(x, obj.beta, obj.betaSum)

	numInner := obj.prior.NumInner()
	numItems := obj.prior.NumItems()
	f := 0.0
	for o := uint32(0); o < obj.prior.NumOuter(); o += 1 {
		for k := uint32(0); k < numInner; k += 1 {
			label := o*numInner + k
			n := float64(obj.counts.LabelSum(o, k))
			s := obj.betaSum[label]
			f += util.LogGamma(n+s) - util.LogGamma(s)

			row := obj.beta.Row(label)
			for i := uint32(0); i < numItems; i += 1 {
				c := obj.counts.Get(i, o, k)
				if c == 0 {
					continue
				}
				f += util.LogGamma(row[i]) - util.LogGamma(row[i]+float64(c))
			}
		}
	}
	return f + obj.regularization(x)
}

// Grad writes the gradient at x into grad
func (obj *Objective) Grad(grad, x []float64) {
	obj.prior.ComputeBeta(x, obj.beta, obj.betaSum)
	for j := range grad {
		grad[j] = 0
	}

	layout := obj.prior.Layout()
	numInner := obj.prior.NumInner()
	numItems := obj.prior.NumItems()
	for o := uint32(0); o < obj.prior.NumOuter(); o += 1 {
		for k := uint32(0); k < numInner; k += 1 {
			label := o*numInner + k
			n := float64(obj.counts.LabelSum(o, k))
			s := obj.betaSum[label]
			common := util.Digamma(n+s) - util.Digamma(s)

			terms := obj.prior.Terms(o, k)
			bases := make([]int, len(terms))
			for t, term := range terms {
				bases[t] = layout.Index(term.Block, term.Row, 0)
			}

			row := obj.beta.Row(label)
			for i := uint32(0); i < numItems; i += 1 {
				g := common
				if c := obj.counts.Get(i, o, k); c > 0 {
					g += util.Digamma(row[i]) - util.Digamma(row[i]+float64(c))
				}
				// d beta / d y = beta for every y summed into the exponent
				d := row[i] * g
				for _, base := range bases {
					grad[base+int(i)] += d
				}
			}
		}
	}
	obj.regularizationGrad(grad, x)
}

func (obj *Objective) regularization(x []float64) float64 {
	r := 0.0
	for _, v := range x {
		r += v * v
	}
	r /= 2 * obj.sigmaSquare

	if obj.graph == nil {
		return r
	}
	g := 0.0
	obj.forEachRow(func(base int) {
		for _, e := range obj.graph.Edges {
			diff := x[base+int(e.From)] - x[base+int(e.To)]
			g += diff * diff
		}
	})
	return r + g/(2*obj.lambdaSquare)
}

func (obj *Objective) regularizationGrad(grad, x []float64) {
	for j, v := range x {
		grad[j] += v / obj.sigmaSquare
	}

	if obj.graph == nil {
		return
	}
	obj.forEachRow(func(base int) {
		for _, e := range obj.graph.Edges {
			from, to := base+int(e.From), base+int(e.To)
			diff := (x[from] - x[to]) / obj.lambdaSquare
			grad[from] += diff
			grad[to] -= diff
		}
	})
}

// forEachRow calls fn with the flat offset of every row of y
func (obj *Objective) forEachRow(fn func(base int)) {
	layout := obj.prior.Layout()
	for b, blk := range layout.Blocks() {
		for r := uint32(0); r < blk.Rows; r += 1 {
			fn(layout.Index(b, r, 0))
		}
	}
}
