package sinex

import "fmt"

// TriMatrix is a dense symmetric matrix of order n stored as its lower
// triangle. Accessing (i,j) and (j,i) yields the same element.
type TriMatrix struct {
	n   int
	els []float64
}

// NewTriMatrix returns a zero-initialized triangular matrix of order n.
func NewTriMatrix(n int) *TriMatrix {
	return &TriMatrix{n: n, els: make([]float64, n*(n+1)/2)}
}

// N returns the order of the matrix.
func (m *TriMatrix) N() int {
	return m.n
}

func (m *TriMatrix) index(i, j int) int {
	if j > i {
		i, j = j, i
	}
	if i < 0 || i >= m.n || j < 0 {
		panic(fmt.Sprintf("sinex: matrix index (%d,%d) out of range for order %d", i, j, m.n))
	}
	return i*(i+1)/2 + j
}

// At returns the element at row i, column j (0-based).
func (m *TriMatrix) At(i, j int) float64 {
	return m.els[m.index(i, j)]
}

// Set stores v at row i, column j (0-based).
func (m *TriMatrix) Set(i, j int, v float64) {
	m.els[m.index(i, j)] = v
}
