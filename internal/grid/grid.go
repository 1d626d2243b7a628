// Package grid provides the periodic Cartesian grids the balance engine
// works on: per-axis coordinates, spectral wavenumbers in FFT ordering,
// and the multidimensional Fourier transform primitives.
package grid

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is returned when a grid is constructed from an invalid
// resolution or domain-length combination.
var ErrInvalidConfig = errors.New("grid: invalid configuration")

// Grid describes a doubly or triply periodic computational domain. A Grid is
// immutable after construction and may be shared read-only by any number of
// states, eigenspaces and projectors.
type Grid struct {
	n      []int
	l      []float64
	dx     []float64
	x      [][]float64 // per-axis physical coordinates
	k      [][]float64 // per-axis angular wavenumbers, FFT ordering
	stride []int
	size   int

	plans planCache
}

// New constructs a periodic grid with the given resolution and physical
// domain length per axis. Axis 0 is the slowest-varying index (row-major
// storage).
func New(resolution []int, domainLength []float64) (*Grid, error) {
	if len(resolution) == 0 {
		return nil, fmt.Errorf("%w: empty resolution", ErrInvalidConfig)
	}
	if len(resolution) != len(domainLength) {
		return nil, fmt.Errorf("%w: resolution has %d axes but domain length has %d",
			ErrInvalidConfig, len(resolution), len(domainLength))
	}
	for a, n := range resolution {
		if n <= 0 {
			return nil, fmt.Errorf("%w: resolution[%d] = %d, must be positive",
				ErrInvalidConfig, a, n)
		}
		if domainLength[a] <= 0 {
			return nil, fmt.Errorf("%w: domain length[%d] = %g, must be positive",
				ErrInvalidConfig, a, domainLength[a])
		}
	}

	nd := len(resolution)
	g := &Grid{
		n:      append([]int(nil), resolution...),
		l:      append([]float64(nil), domainLength...),
		dx:     make([]float64, nd),
		x:      make([][]float64, nd),
		k:      make([][]float64, nd),
		stride: make([]int, nd),
		size:   1,
	}
	for a := 0; a < nd; a++ {
		g.size *= g.n[a]
	}
	s := 1
	for a := nd - 1; a >= 0; a-- {
		g.stride[a] = s
		s *= g.n[a]
	}
	for a := 0; a < nd; a++ {
		n := g.n[a]
		g.dx[a] = g.l[a] / float64(n)
		g.x[a] = make([]float64, n)
		g.k[a] = make([]float64, n)
		for j := 0; j < n; j++ {
			g.x[a][j] = float64(j) * g.dx[a]
			// Standard DFT frequency ordering with the Nyquist mode
			// stored as the negative frequency for even n.
			m := j
			if j >= (n+1)/2 {
				m = j - n
			}
			g.k[a][j] = 2 * math.Pi * float64(m) / g.l[a]
		}
	}
	g.plans.init(g.n)
	return g, nil
}

// NDims returns the number of axes.
func (g *Grid) NDims() int { return len(g.n) }

// Size returns the total number of grid points.
func (g *Grid) Size() int { return g.size }

// Resolution returns a copy of the per-axis resolution.
func (g *Grid) Resolution() []int { return append([]int(nil), g.n...) }

// DomainLength returns a copy of the per-axis physical domain lengths.
func (g *Grid) DomainLength() []float64 { return append([]float64(nil), g.l...) }

// Spacing returns the grid spacing along the given axis.
func (g *Grid) Spacing(axis int) float64 { return g.dx[axis] }

// CellVolume returns the physical volume of a single grid cell.
func (g *Grid) CellVolume() float64 {
	v := 1.0
	for _, d := range g.dx {
		v *= d
	}
	return v
}

// Coords returns a copy of the physical coordinates along the given axis.
func (g *Grid) Coords(axis int) []float64 {
	return append([]float64(nil), g.x[axis]...)
}

// Wavenumbers returns a copy of the angular wavenumbers along the given axis,
// in FFT ordering.
func (g *Grid) Wavenumbers(axis int) []float64 {
	return append([]float64(nil), g.k[axis]...)
}

// Mesh returns the full-size coordinate mesh along the given axis: element i
// holds the axis coordinate of flat index i. Intended for initial-condition
// and plotting code.
func (g *Grid) Mesh(axis int) []float64 {
	m := make([]float64, g.size)
	for i := 0; i < g.size; i++ {
		m[i] = g.x[axis][g.axisIndex(i, axis)]
	}
	return m
}

// WavenumberMesh returns the full-size wavenumber mesh along the given axis.
func (g *Grid) WavenumberMesh(axis int) []float64 {
	m := make([]float64, g.size)
	for i := 0; i < g.size; i++ {
		m[i] = g.k[axis][g.axisIndex(i, axis)]
	}
	return m
}

// WavenumberAt returns the wavenumber vector at the given flat spectral
// index, reusing dst if it has the right length.
func (g *Grid) WavenumberAt(flat int, dst []float64) []float64 {
	if len(dst) != len(g.n) {
		dst = make([]float64, len(g.n))
	}
	for a := range g.n {
		dst[a] = g.k[a][g.axisIndex(flat, a)]
	}
	return dst
}

// axisIndex extracts the index along one axis from a flat row-major index.
func (g *Grid) axisIndex(flat, axis int) int {
	return (flat / g.stride[axis]) % g.n[axis]
}

// Same reports whether two grids are the same object. Field and state
// arithmetic requires operands to share one grid, not merely equal shapes.
func (g *Grid) Same(other *Grid) bool { return g == other }
