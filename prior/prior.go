package prior

import (
	"fmt"
	"math"
	"sort"

	"github.com/bobonovski/lltm/matrix"
)

var strategies = make(map[string]Ctor)

// Parameterization maps the log-linear variables y to the Dirichlet
// pseudo-counts beta[outer][inner][item] and their per-label sums.
// beta and betaSum are caches of y: every change to y goes through
// SetVector, which recomputes them before returning.
type Parameterization interface {
	// name of the strategy in the registry
	Name() string
	NumOuter() uint32
	NumInner() uint32
	NumItems() uint32
	// layout of the flat y vector
	Layout() *Layout
	// Terms lists the y rows summed into beta[o][k][.]
	Terms(o, k uint32) []Term
	Beta(o, k, item uint32) float64
	BetaSum(o, k uint32) float64
	// copy of the current y vector
	Vector() []float64
	// replace y and recompute beta
	SetVector(x []float64)
	// recompute beta and betaSum from y
	Recompute()
	// ComputeBeta evaluates beta for an arbitrary y into the given
	// buffers without touching the cached state
	ComputeBeta(x []float64, beta *matrix.Float64Matrix, betaSum []float64)
}

// Term points at one row of the flat y vector
type Term struct {
	Block int
	Row   uint32
}

// Params are the dimensions and warm start of a parameterization
type Params struct {
	NumOuter uint32
	NumInner uint32
	NumItems uint32
	// initial pseudo-count per outer label, y starts at its log
	BetaInit []float64
}

func (p Params) validate() error {
	if p.NumOuter == 0 || p.NumInner == 0 || p.NumItems == 0 {
		return fmt.Errorf("prior: empty dimension %d x %d x %d", p.NumOuter, p.NumInner, p.NumItems)
	}
	if uint32(len(p.BetaInit)) != p.NumOuter {
		return fmt.Errorf("prior: %d initial pseudo-counts for %d outer labels", len(p.BetaInit), p.NumOuter)
	}
	for o, b := range p.BetaInit {
		if !(b > 0) || math.IsInf(b, 1) {
			return fmt.Errorf("prior: initial pseudo-count %v of outer label %d is not positive", b, o)
		}
	}
	return nil
}

type Ctor func(p Params) (Parameterization, error)

// new prior strategies should register themselves using this function
func Register(name string, c Ctor) {
	strategies[name] = c
}

// New builds the strategy registered under name
func New(name string, p Params) (Parameterization, error) {
	c, ok := strategies[name]
	if !ok {
		return nil, fmt.Errorf("prior %s not registered", name)
	}
	return c(p)
}

// Names lists the registered strategies
func Names() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// logLinear holds what both strategies share, they only differ in
// the layout and in which rows feed each label
type logLinear struct {
	name     string
	numOuter uint32
	numInner uint32
	layout   *Layout
	terms    [][]Term // indexed by label o*numInner+k

	y       []float64
	beta    *matrix.Float64Matrix // [label][item]
	betaSum []float64
}

func newLogLinear(name string, p Params, layout *Layout, terms func(o, k uint32) []Term) *logLinear {
	l := &logLinear{
		name:     name,
		numOuter: p.NumOuter,
		numInner: p.NumInner,
		layout:   layout,
		terms:    make([][]Term, p.NumOuter*p.NumInner),
		y:        make([]float64, layout.Len()),
		beta:     matrix.NewFloat64Matrix(p.NumOuter*p.NumInner, p.NumItems),
		betaSum:  make([]float64, p.NumOuter*p.NumInner),
	}
	for o := uint32(0); o < p.NumOuter; o += 1 {
		for k := uint32(0); k < p.NumInner; k += 1 {
			l.terms[l.label(o, k)] = terms(o, k)
		}
	}
	return l
}

func (l *logLinear) label(o, k uint32) uint32 {
	return o*l.numInner + k
}

func (l *logLinear) Name() string {
	return l.name
}

func (l *logLinear) NumOuter() uint32 {
	return l.numOuter
}

func (l *logLinear) NumInner() uint32 {
	return l.numInner
}

func (l *logLinear) NumItems() uint32 {
	return l.layout.NumItems()
}

func (l *logLinear) Layout() *Layout {
	return l.layout
}

func (l *logLinear) Terms(o, k uint32) []Term {
	return l.terms[l.label(o, k)]
}

func (l *logLinear) Beta(o, k, item uint32) float64 {
	return l.beta.Get(l.label(o, k), item)
}

func (l *logLinear) BetaSum(o, k uint32) float64 {
	return l.betaSum[l.label(o, k)]
}

func (l *logLinear) Vector() []float64 {
	x := make([]float64, len(l.y))
	copy(x, l.y)
	return x
}

func (l *logLinear) SetVector(x []float64) {
	if len(x) != len(l.y) {
		panic(fmt.Sprintf("prior: vector of length %d for layout of length %d", len(x), len(l.y)))
	}
	copy(l.y, x)
	l.Recompute()
}

func (l *logLinear) Recompute() {
	l.ComputeBeta(l.y, l.beta, l.betaSum)
}

func (l *logLinear) ComputeBeta(x []float64, beta *matrix.Float64Matrix, betaSum []float64) {
	numItems := l.layout.NumItems()
	for label, terms := range l.terms {
		row := beta.Row(uint32(label))
		for i := range row {
			row[i] = 0
		}
		for _, t := range terms {
			base := l.layout.Index(t.Block, t.Row, 0)
			ys := x[base : base+int(numItems)]
			for i, v := range ys {
				row[i] += v
			}
		}
		sum := 0.0
		for i, v := range row {
			row[i] = math.Exp(v)
			sum += row[i]
		}
		betaSum[label] = sum
	}
}
