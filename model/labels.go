package model

import "fmt"

// Label is the latent assignment of one occurrence, e.g.
// (sentiment, topic). Flat label spaces use Inner == 0.
type Label struct {
	Outer uint32
	Inner uint32
}

// LabelSpace is the fixed numOuter x numInner grid of labels. Labels
// are enumerated outer-major, label (o, k) has index o*NumInner + k.
type LabelSpace struct {
	NumOuter uint32
	NumInner uint32
}

// Flat is the label space of single-dimension models such as the
// event model: one outer label per event
func Flat(n uint32) LabelSpace {
	return LabelSpace{NumOuter: n, NumInner: 1}
}

func (s LabelSpace) Size() uint32 {
	return s.NumOuter * s.NumInner
}

func (s LabelSpace) Index(l Label) uint32 {
	if l.Outer >= s.NumOuter || l.Inner >= s.NumInner {
		panic(fmt.Sprintf("model: label (%d, %d) outside %dx%d label space",
			l.Outer, l.Inner, s.NumOuter, s.NumInner))
	}
	return l.Outer*s.NumInner + l.Inner
}

func (s LabelSpace) Label(idx uint32) Label {
	if idx >= s.Size() {
		panic(fmt.Sprintf("model: label index %d outside label space of size %d", idx, s.Size()))
	}
	return Label{Outer: idx / s.NumInner, Inner: idx % s.NumInner}
}

// Name is the column name of label idx in checkpoint files
func (s LabelSpace) Name(idx uint32) string {
	l := s.Label(idx)
	if s.NumInner == 1 {
		return fmt.Sprintf("%d", l.Outer)
	}
	return fmt.Sprintf("%d_%d", l.Outer, l.Inner)
}
