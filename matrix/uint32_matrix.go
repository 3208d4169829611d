package matrix

// internal Uint32 matrix representation
type Uint32Matrix struct {
	nrow uint32
	ncol uint32
	data []uint32
}

// NewUint32Matrix creates a new Uint32Matrix with r rows and c columns.
// if r or c is zero, it will panic. A uint32 slice is used as the underlying
// storage and the data layout is in row major order, i.e. the (i*c + j)-th
// element in the data slice is the [i, j]-th element in the matrix.
// Vector is defined as a matrix one column, i.e. a column vector.
func NewUint32Matrix(r, c uint32) *Uint32Matrix {
	if r == 0 || c == 0 {
		panic(ErrBadShape)
	}
	return &Uint32Matrix{
		nrow: r,
		ncol: c,
		data: make([]uint32, int(r)*int(c)),
	}
}

// offset of [r, c] in the row major storage, computed in int so
// that tables beyond 2^32 cells do not wrap
func (m *Uint32Matrix) index(r, c uint32) int {
	return int(r)*int(m.ncol) + int(c)
}

// get the shape of the matrix
func (m *Uint32Matrix) Shape() (uint32, uint32) {
	return m.nrow, m.ncol
}

// get the [r, c]-th element of the matrix
func (m *Uint32Matrix) Get(r, c uint32) uint32 {
	if r >= m.nrow || c >= m.ncol {
		panic(ErrIndexOutOfRange)
	}
	return m.data[m.index(r, c)]
}

// get a copy of the r-th row of the matrix
func (m *Uint32Matrix) GetRow(r uint32) []uint32 {
	if r >= m.nrow {
		panic(ErrIndexOutOfRange)
	}
	row := make([]uint32, m.ncol)
	copy(row, m.data[m.index(r, 0):m.index(r+1, 0)])
	return row
}

// get the c-th column of the matrix
func (m *Uint32Matrix) GetCol(c uint32) []uint32 {
	if c >= m.ncol {
		panic(ErrIndexOutOfRange)
	}

	column := make([]uint32, 0, m.nrow)
	for r := uint32(0); r < m.nrow; r += 1 {
		column = append(column, m.data[m.index(r, c)])
	}
	return column
}

// set val to the [r, c]-th element of the matrix
func (m *Uint32Matrix) Set(r, c uint32, val uint32) {
	if r >= m.nrow || c >= m.ncol {
		panic(ErrIndexOutOfRange)
	}
	m.data[m.index(r, c)] = val
}

// increment the [r, c]-th element of the matrix by val
func (m *Uint32Matrix) Incr(r, c uint32, val uint32) {
	if r >= m.nrow || c >= m.ncol {
		panic(ErrIndexOutOfRange)
	}
	m.data[m.index(r, c)] += val
}

// decrement the [r, c]-th element of the matrix by val, counts
// never wrap around: going below zero panics with ErrNegativeCount
func (m *Uint32Matrix) Decr(r, c uint32, val uint32) {
	if r >= m.nrow || c >= m.ncol {
		panic(ErrIndexOutOfRange)
	}
	idx := m.index(r, c)
	if m.data[idx] < val {
		panic(ErrNegativeCount)
	}
	m.data[idx] -= val
}

// sum of all elements
func (m *Uint32Matrix) Sum() uint64 {
	sum := uint64(0)
	for _, v := range m.data {
		sum += uint64(v)
	}
	return sum
}

// Equal reports whether o has the same shape and elements
func (m *Uint32Matrix) Equal(o *Uint32Matrix) bool {
	if o == nil || m.nrow != o.nrow || m.ncol != o.ncol {
		return false
	}
	for i, v := range m.data {
		if o.data[i] != v {
			return false
		}
	}
	return true
}
