// Package matrix provides the score matrix shared by every decoder and
// aligner: a dense float32 matrix of blocks (rows) by states (columns),
// stored row-major with each row padded to a multiple of VectorWidth.
//
// The padding never leaves the package. Row returns the logical part of a
// row, Export and Dense strip it.
package matrix

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/nanocall/internal/fault"
)

// VectorWidth is the number of float32 lanes each row is padded to.
const VectorWidth = 4

// Matrix is a padded score matrix. A Matrix returned by View borrows the
// buffer of its parent and must not outlive it.
type Matrix struct {
	rows   int
	cols   int
	stride int
	data   []float32

	parent   *Matrix
	released bool
}

func paddedStride(cols int) int {
	return (cols + VectorWidth - 1) / VectorWidth * VectorWidth
}

// New allocates a zeroed rows x cols matrix.
func New(rows, cols int) *Matrix {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("matrix: negative shape %dx%d", rows, cols))
	}
	stride := paddedStride(cols)
	return &Matrix{
		rows:   rows,
		cols:   cols,
		stride: stride,
		data:   make([]float32, rows*stride),
	}
}

// FromRows builds a matrix from equal-length rows.
func FromRows(rows [][]float32) (*Matrix, error) {
	if len(rows) == 0 {
		return New(0, 0), nil
	}
	cols := len(rows[0])
	m := New(len(rows), cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fault.New(fault.KindInvalidArgument, "matrix.FromRows",
				"row %d has %d columns, want %d", i, len(r), cols)
		}
		copy(m.data[i*m.stride:], r)
	}
	return m, nil
}

// FromDense copies a gonum dense matrix. When stayFirst is set the first
// column of d is moved to the last column, undoing Dense(true).
func FromDense(d *mat.Dense, stayFirst bool) *Matrix {
	r, c := d.Dims()
	m := New(r, c)
	for i := 0; i < r; i++ {
		row := m.data[i*m.stride : i*m.stride+c]
		for j := 0; j < c; j++ {
			dst := j
			if stayFirst {
				dst = (j + c - 1) % c
			}
			row[dst] = float32(d.At(i, j))
		}
	}
	return m
}

func (m *Matrix) check() {
	if m.released || (m.parent != nil && m.parent.released) {
		panic("matrix: use after release")
	}
}

// Rows returns the number of blocks.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of states.
func (m *Matrix) Cols() int { return m.cols }

// Stride returns the padded row length.
func (m *Matrix) Stride() int { return m.stride }

// At returns element (i, j).
func (m *Matrix) At(i, j int) float32 {
	m.check()
	m.bounds(i, j)
	return m.data[i*m.stride+j]
}

// Set sets element (i, j).
func (m *Matrix) Set(i, j int, v float32) {
	m.check()
	m.bounds(i, j)
	m.data[i*m.stride+j] = v
}

func (m *Matrix) bounds(i, j int) {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(fmt.Sprintf("matrix: index (%d,%d) out of range %dx%d", i, j, m.rows, m.cols))
	}
}

// Row returns the logical part of row i. The slice aliases the matrix.
func (m *Matrix) Row(i int) []float32 {
	m.check()
	if i < 0 || i >= m.rows {
		panic(fmt.Sprintf("matrix: row %d out of range %d", i, m.rows))
	}
	off := i * m.stride
	return m.data[off : off+m.cols : off+m.cols]
}

// View returns a borrowed matrix over rows [start, stop). Releasing a view
// never releases its parent.
func (m *Matrix) View(start, stop int) (*Matrix, error) {
	m.check()
	if start < 0 || stop < start || stop > m.rows {
		return nil, fault.New(fault.KindInvalidArgument, "matrix.View",
			"range [%d,%d) outside %d rows", start, stop, m.rows)
	}
	owner := m
	if m.parent != nil {
		owner = m.parent
	}
	return &Matrix{
		rows:   stop - start,
		cols:   m.cols,
		stride: m.stride,
		data:   m.data[start*m.stride : stop*m.stride],
		parent: owner,
	}, nil
}

// IsView reports whether m borrows another matrix's buffer.
func (m *Matrix) IsView() bool { return m.parent != nil }

// Release frees the buffer of an owning matrix. It is idempotent, and a
// no-op on views.
func (m *Matrix) Release() {
	if m.parent != nil || m.released {
		return
	}
	m.released = true
	m.data = nil
}

// Released reports whether the matrix, or the owner of a view, has been
// released.
func (m *Matrix) Released() bool {
	return m.released || (m.parent != nil && m.parent.released)
}

// Clone returns an owning deep copy.
func (m *Matrix) Clone() *Matrix {
	m.check()
	c := New(m.rows, m.cols)
	copy(c.data, m.data)
	return c
}

// Export returns the logical contents without padding.
func (m *Matrix) Export() [][]float32 {
	m.check()
	out := make([][]float32, m.rows)
	for i := range out {
		out[i] = append([]float32(nil), m.Row(i)...)
	}
	return out
}

// Dense converts to a gonum matrix. With stayFirst the last column is
// rotated to the front.
func (m *Matrix) Dense(stayFirst bool) *mat.Dense {
	m.check()
	if m.rows == 0 || m.cols == 0 {
		return &mat.Dense{}
	}
	d := mat.NewDense(m.rows, m.cols, nil)
	for i := 0; i < m.rows; i++ {
		row := m.Row(i)
		for j, v := range row {
			dst := j
			if stayFirst {
				dst = (j + 1) % m.cols
			}
			d.Set(i, dst, float64(v))
		}
	}
	return d
}

// NormaliseRows scales each row to sum to one. Rows summing to zero are
// left unchanged.
func (m *Matrix) NormaliseRows() {
	m.check()
	for i := 0; i < m.rows; i++ {
		v := blas32.Vector{N: m.cols, Inc: 1, Data: m.Row(i)}
		sum := blas32.Asum(v)
		if sum > 0 {
			blas32.Scal(1/sum, v)
		}
	}
}

// LogInPlace replaces each probability p with log(minProb + (1-minProb)p).
func (m *Matrix) LogInPlace(minProb float32) {
	m.check()
	scale := 1 - minProb
	for i := 0; i < m.rows; i++ {
		row := m.Row(i)
		for j, p := range row {
			row[j] = float32(math.Log(float64(minProb + scale*p)))
		}
	}
}

// ArgmaxRow returns the column of the largest value in row i, the lowest
// index on ties.
func (m *Matrix) ArgmaxRow(i int) int {
	row := m.Row(i)
	best := 0
	for j := 1; j < len(row); j++ {
		if row[j] > row[best] {
			best = j
		}
	}
	return best
}
