package matrix

// internal Float64 matrix representation, used for the prior
// pseudo-counts and the smoothed theta/phi estimates
type Float64Matrix struct {
	nrow uint32
	ncol uint32
	data []float64
}

// NewFloat64Matrix creates a new Float64Matrix with r rows and c columns
func NewFloat64Matrix(r, c uint32) *Float64Matrix {
	if r == 0 || c == 0 {
		panic(ErrBadShape)
	}
	return &Float64Matrix{
		nrow: r,
		ncol: c,
		data: make([]float64, int(r)*int(c)),
	}
}

// offset of [r, c] in the row major storage, computed in int so
// that tables beyond 2^32 cells do not wrap
func (m *Float64Matrix) index(r, c uint32) int {
	return int(r)*int(m.ncol) + int(c)
}

// get the shape of the matrix
func (m *Float64Matrix) Shape() (uint32, uint32) {
	return m.nrow, m.ncol
}

// get the [r, c]-th element of the matrix
func (m *Float64Matrix) Get(r, c uint32) float64 {
	if r >= m.nrow || c >= m.ncol {
		panic(ErrIndexOutOfRange)
	}
	return m.data[m.index(r, c)]
}

// set val to the [r, c]-th element of the matrix
func (m *Float64Matrix) Set(r, c uint32, val float64) {
	if r >= m.nrow || c >= m.ncol {
		panic(ErrIndexOutOfRange)
	}
	m.data[m.index(r, c)] = val
}

// Row returns the r-th row backed by the matrix storage, writes
// through the returned slice are visible in the matrix
func (m *Float64Matrix) Row(r uint32) []float64 {
	if r >= m.nrow {
		panic(ErrIndexOutOfRange)
	}
	return m.data[m.index(r, 0):m.index(r+1, 0)]
}

// get a copy of the c-th column of the matrix
func (m *Float64Matrix) Col(c uint32) []float64 {
	if c >= m.ncol {
		panic(ErrIndexOutOfRange)
	}
	column := make([]float64, 0, m.nrow)
	for r := uint32(0); r < m.nrow; r += 1 {
		column = append(column, m.data[m.index(r, c)])
	}
	return column
}
