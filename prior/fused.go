package prior

import "math"

func init() {
	Register("fused", NewFused)
}

// Fused gives every (outer, inner) pair its own row,
// beta[o][k][i] = exp(y[o][k][i])
type Fused struct {
	*logLinear
}

func NewFused(p Params) (Parameterization, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	layout := NewLayout(p.NumItems, Block{Name: "fused", Rows: p.NumOuter * p.NumInner})
	f := &Fused{
		logLinear: newLogLinear("fused", p, layout, func(o, k uint32) []Term {
			return []Term{{Block: 0, Row: o*p.NumInner + k}}
		}),
	}
	for o := uint32(0); o < p.NumOuter; o += 1 {
		y0 := math.Log(p.BetaInit[o])
		for k := uint32(0); k < p.NumInner; k += 1 {
			for i := uint32(0); i < p.NumItems; i += 1 {
				f.y[layout.Index(0, o*p.NumInner+k, i)] = y0
			}
		}
	}
	f.Recompute()
	return f, nil
}
