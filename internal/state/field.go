// Package state provides the named field containers the balance engine
// operates on. A State is an ordered set of Fields sharing one grid and one
// representation (physical or spectral), with elementwise arithmetic,
// spectral transforms and the inner products the projection algorithms need.
package state

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/gordi42/geobalance/internal/grid"
	"gonum.org/v1/gonum/cmplxs"
)

// ErrDimensionMismatch is returned by arithmetic between fields or states
// that live on different grids, different representations, or have
// non-matching component sets.
var ErrDimensionMismatch = errors.New("state: dimension mismatch")

// Field is a dense scalar field on a grid, tagged with its representation.
// Physical-representation fields are real valued; the imaginary parts of
// Data are kept at zero there. Spectral fields are complex.
type Field struct {
	Name string
	Data []complex128

	grid     *grid.Grid
	spectral bool
}

// NewField allocates a zero field on g.
func NewField(g *grid.Grid, name string, spectral bool) *Field {
	return &Field{
		Name:     name,
		Data:     make([]complex128, g.Size()),
		grid:     g,
		spectral: spectral,
	}
}

// Grid returns the grid the field lives on.
func (f *Field) Grid() *grid.Grid { return f.grid }

// Spectral reports whether the field is in spectral representation.
func (f *Field) Spectral() bool { return f.spectral }

// Copy returns an independent copy of the field.
func (f *Field) Copy() *Field {
	c := NewField(f.grid, f.Name, f.spectral)
	copy(c.Data, f.Data)
	return c
}

// Real returns the real parts of the field as a fresh slice.
func (f *Field) Real() []float64 {
	r := make([]float64, len(f.Data))
	for i, v := range f.Data {
		r[i] = real(v)
	}
	return r
}

// SetSlice assigns values to the flat index range [start, end), leaving all
// other entries untouched.
func (f *Field) SetSlice(start, end int, values []complex128) error {
	if start < 0 || end > len(f.Data) || start > end {
		return fmt.Errorf("%w: slice [%d,%d) out of range for field %q of size %d",
			ErrDimensionMismatch, start, end, f.Name, len(f.Data))
	}
	if len(values) != end-start {
		return fmt.Errorf("%w: %d values for slice [%d,%d) of field %q",
			ErrDimensionMismatch, len(values), start, end, f.Name)
	}
	copy(f.Data[start:end], values)
	return nil
}

// Fill assigns a constant to the flat index range [start, end).
func (f *Field) Fill(start, end int, v complex128) error {
	if start < 0 || end > len(f.Data) || start > end {
		return fmt.Errorf("%w: slice [%d,%d) out of range for field %q of size %d",
			ErrDimensionMismatch, start, end, f.Name, len(f.Data))
	}
	for i := start; i < end; i++ {
		f.Data[i] = v
	}
	return nil
}

// NormL2 returns the L2 norm of the field, defined as the square root of the
// domain-integrated squared modulus.
func (f *Field) NormL2() float64 {
	dv := f.grid.CellVolume()
	sum := 0.0
	for _, v := range f.Data {
		sum += real(v)*real(v) + imag(v)*imag(v)
	}
	return math.Sqrt(sum * dv)
}

// MaxAbs returns the largest modulus in the field.
func (f *Field) MaxAbs() float64 {
	m := 0.0
	for _, v := range f.Data {
		if a := cmplx.Abs(v); a > m {
			m = a
		}
	}
	return m
}

// IsFinite reports whether every entry of the field is finite.
func (f *Field) IsFinite() bool {
	for _, v := range f.Data {
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			return false
		}
	}
	return true
}

// compatible checks that two fields may appear in one elementwise operation.
func (f *Field) compatible(o *Field) error {
	if !f.grid.Same(o.grid) {
		return fmt.Errorf("%w: fields %q and %q live on different grids",
			ErrDimensionMismatch, f.Name, o.Name)
	}
	if f.spectral != o.spectral {
		return fmt.Errorf("%w: fields %q and %q have different representations",
			ErrDimensionMismatch, f.Name, o.Name)
	}
	return nil
}

// addInPlace adds o elementwise.
func (f *Field) addInPlace(o *Field) { cmplxs.Add(f.Data, o.Data) }

// subInPlace subtracts o elementwise.
func (f *Field) subInPlace(o *Field) { cmplxs.Sub(f.Data, o.Data) }

// mulInPlace multiplies by o elementwise.
func (f *Field) mulInPlace(o *Field) { cmplxs.Mul(f.Data, o.Data) }

// divInPlace divides by o elementwise.
func (f *Field) divInPlace(o *Field) { cmplxs.Div(f.Data, o.Data) }

// scaleInPlace multiplies every entry by a.
func (f *Field) scaleInPlace(a complex128) { cmplxs.Scale(a, f.Data) }

// shiftInPlace adds a to every entry.
func (f *Field) shiftInPlace(a complex128) { cmplxs.AddConst(a, f.Data) }

// transform returns the field in the opposite representation. The inverse
// transform discards round-off imaginary parts, keeping physical fields
// strictly real.
func (f *Field) transform() *Field {
	out := NewField(f.grid, f.Name, !f.spectral)
	if f.spectral {
		f.grid.Inverse(out.Data, f.Data)
		for i, v := range out.Data {
			out.Data[i] = complex(real(v), 0)
		}
	} else {
		f.grid.Forward(out.Data, f.Data)
	}
	return out
}
