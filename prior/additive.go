package prior

import "math"

func init() {
	Register("additive", NewAdditive)
}

const (
	outerBlock = 0
	innerBlock = 1
)

// Additive decouples the prior into an outer and an inner component,
// beta[o][k][i] = exp(yOuter[o][i] + yInner[k][i])
type Additive struct {
	*logLinear
}

func NewAdditive(p Params) (Parameterization, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	layout := NewLayout(p.NumItems,
		Block{Name: "outer", Rows: p.NumOuter},
		Block{Name: "inner", Rows: p.NumInner})
	a := &Additive{
		logLinear: newLogLinear("additive", p, layout, func(o, k uint32) []Term {
			return []Term{{Block: outerBlock, Row: o}, {Block: innerBlock, Row: k}}
		}),
	}
	for o := uint32(0); o < p.NumOuter; o += 1 {
		y0 := math.Log(p.BetaInit[o])
		for i := uint32(0); i < p.NumItems; i += 1 {
			a.y[layout.Index(outerBlock, o, i)] = y0
		}
	}
	a.Recompute()
	return a, nil
}
