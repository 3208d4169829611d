package model

import (
	"fmt"

	"github.com/bobonovski/lltm/matrix"
	"github.com/bobonovski/lltm/util"
)

// Stats holds the sufficient statistics of the collapsed sampler.
// Every count is updated through Increment and Decrement only, so
// after each pair the column sums of itemLabel equal labelSum and
// the row sums of docLabel equal docLen.
type Stats struct {
	labels LabelSpace

	itemLabel *matrix.Uint32Matrix // item-label count table
	docLabel  *matrix.Uint32Matrix // doc-label count table
	labelSum  *matrix.Uint32Matrix // label count sum, one column
	docLen    *matrix.Uint32Matrix // doc length, one column
}

func NewStats(labels LabelSpace, numItems, numDocs uint32) *Stats {
	return &Stats{
		labels:    labels,
		itemLabel: matrix.NewUint32Matrix(numItems, labels.Size()),
		docLabel:  matrix.NewUint32Matrix(numDocs, labels.Size()),
		labelSum:  matrix.NewUint32Matrix(labels.Size(), uint32(1)),
		docLen:    matrix.NewUint32Matrix(numDocs, uint32(1)),
	}
}

func (s *Stats) Labels() LabelSpace {
	return s.labels
}

func (s *Stats) NumItems() uint32 {
	r, _ := s.itemLabel.Shape()
	return r
}

func (s *Stats) NumDocs() uint32 {
	r, _ := s.docLabel.Shape()
	return r
}

// Increment records one occurrence of item in doc with label l
func (s *Stats) Increment(item uint32, l Label, doc uint32) {
	k := s.labels.Index(l)
	s.itemLabel.Incr(item, k, uint32(1))
	s.docLabel.Incr(doc, k, uint32(1))
	s.labelSum.Incr(k, uint32(0), uint32(1))
	s.docLen.Incr(doc, uint32(0), uint32(1))
}

// Decrement removes one occurrence of item in doc with label l.
// Removing an occurrence that was never counted panics with
// matrix.ErrNegativeCount and leaves the counts untouched.
func (s *Stats) Decrement(item uint32, l Label, doc uint32) {
	k := s.labels.Index(l)
	if s.itemLabel.Get(item, k) == 0 || s.docLabel.Get(doc, k) == 0 {
		panic(matrix.ErrNegativeCount)
	}
	s.itemLabel.Decr(item, k, uint32(1))
	s.docLabel.Decr(doc, k, uint32(1))
	s.labelSum.Decr(k, uint32(0), uint32(1))
	s.docLen.Decr(doc, uint32(0), uint32(1))
}

// times item has been assigned label (o, k)
func (s *Stats) Get(item, o, k uint32) uint32 {
	return s.itemLabel.Get(item, s.labels.Index(Label{o, k}))
}

// occurrences of doc assigned label (o, k)
func (s *Stats) DocCount(doc, o, k uint32) uint32 {
	return s.docLabel.Get(doc, s.labels.Index(Label{o, k}))
}

// occurrences of all items assigned label (o, k)
func (s *Stats) LabelSum(o, k uint32) uint32 {
	return s.labelSum.Get(s.labels.Index(Label{o, k}), uint32(0))
}

// counted occurrences of doc
func (s *Stats) DocLength(doc uint32) uint32 {
	return s.docLen.Get(doc, uint32(0))
}

// ItemLabel exposes the item-label table for snapshots, callers must
// not modify it
func (s *Stats) ItemLabel() *matrix.Uint32Matrix {
	return s.itemLabel
}

// Equal reports whether both hold identical counts
func (s *Stats) Equal(o *Stats) bool {
	return s.labels == o.labels &&
		s.itemLabel.Equal(o.itemLabel) &&
		s.docLabel.Equal(o.docLabel) &&
		s.labelSum.Equal(o.labelSum) &&
		s.docLen.Equal(o.docLen)
}

// CheckInvariants verifies that the per-label sums match the item
// table and that every document row sums to its length
func (s *Stats) CheckInvariants() error {
	size := s.labels.Size()
	for k := uint32(0); k < size; k += 1 {
		sum := uint64(0)
		for _, c := range s.itemLabel.GetCol(k) {
			sum += uint64(c)
		}
		if want := uint64(s.labelSum.Get(k, uint32(0))); sum != want {
			return fmt.Errorf("label %s: item counts sum to %d, label sum is %d",
				s.labels.Name(k), sum, want)
		}
	}
	for d := uint32(0); d < s.NumDocs(); d += 1 {
		sum := util.VectorSum(s.docLabel.GetRow(d))
		if want := s.DocLength(d); sum != want {
			return fmt.Errorf("doc %d: label counts sum to %d, length is %d", d, sum, want)
		}
	}
	return nil
}
