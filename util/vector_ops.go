package util

import (
	"gonum.org/v1/gonum/floats"
)

// sum the vector
func VectorSum(data []uint32) uint32 {
	sum := uint32(0)
	for _, d := range data {
		sum += d
	}
	return sum
}

// TopN returns the indices of the n largest values of data in
// descending order of value, ties keep the lower index first
func TopN(data []float64, n int) []int {
	if n > len(data) {
		n = len(data)
	}
	if n <= 0 {
		return nil
	}

	vals := make([]float64, len(data))
	for i, v := range data {
		// negate so that an ascending stable sort yields descending values
		vals[i] = -v
	}
	inds := make([]int, len(data))
	floats.Argsort(vals, inds)
	stableTies(vals, inds)
	return inds[:n]
}

// stableTies orders runs of equal values by index, Argsort itself
// gives no guarantee for ties
func stableTies(vals []float64, inds []int) {
	for start := 0; start < len(vals); {
		end := start + 1
		for end < len(vals) && vals[end] == vals[start] {
			end += 1
		}
		for i := start + 1; i < end; i += 1 {
			for j := i; j > start && inds[j] < inds[j-1]; j -= 1 {
				inds[j], inds[j-1] = inds[j-1], inds[j]
			}
		}
		start = end
	}
}

// ArgMax returns the index of the largest value, the first one on ties
func ArgMax(data []float64) int {
	return floats.MaxIdx(data)
}
