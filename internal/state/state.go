package state

import (
	"fmt"
	"math"

	"github.com/gordi42/geobalance/internal/grid"
)

// State is an ordered mapping from component name to Field. All fields in a
// state share one grid and one representation; every operation preserves
// that invariant or fails with ErrDimensionMismatch.
type State struct {
	grid     *grid.Grid
	keys     []string
	fields   []*Field
	index    map[string]int
	spectral bool
}

// New allocates a zero state with the given component keys.
func New(g *grid.Grid, keys []string, spectral bool) (*State, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: state needs at least one component", grid.ErrInvalidConfig)
	}
	z := &State{
		grid:     g,
		keys:     append([]string(nil), keys...),
		fields:   make([]*Field, len(keys)),
		index:    make(map[string]int, len(keys)),
		spectral: spectral,
	}
	for i, k := range keys {
		if _, dup := z.index[k]; dup {
			return nil, fmt.Errorf("%w: duplicate component key %q", grid.ErrInvalidConfig, k)
		}
		z.index[k] = i
		z.fields[i] = NewField(g, k, spectral)
	}
	return z, nil
}

// Grid returns the grid the state lives on.
func (z *State) Grid() *grid.Grid { return z.grid }

// Keys returns the component keys in order.
func (z *State) Keys() []string { return append([]string(nil), z.keys...) }

// Spectral reports whether the state is in spectral representation.
func (z *State) Spectral() bool { return z.spectral }

// Field returns the field stored under key, or nil if the key is unknown.
func (z *State) Field(key string) *Field {
	i, ok := z.index[key]
	if !ok {
		return nil
	}
	return z.fields[i]
}

// FieldAt returns the i-th field in key order.
func (z *State) FieldAt(i int) *Field { return z.fields[i] }

// NumFields returns the number of components.
func (z *State) NumFields() int { return len(z.fields) }

// Copy returns an independent deep copy.
func (z *State) Copy() *State {
	c := &State{
		grid:     z.grid,
		keys:     append([]string(nil), z.keys...),
		fields:   make([]*Field, len(z.fields)),
		index:    make(map[string]int, len(z.keys)),
		spectral: z.spectral,
	}
	for i, f := range z.fields {
		c.fields[i] = f.Copy()
		c.index[z.keys[i]] = i
	}
	return c
}

// Zeros returns a zero state with the same keys, grid and representation.
func (z *State) Zeros() *State {
	c, _ := New(z.grid, z.keys, z.spectral)
	return c
}

// compatible checks that two states may appear in one elementwise operation.
func (z *State) compatible(o *State) error {
	if !z.grid.Same(o.grid) {
		return fmt.Errorf("%w: states live on different grids", ErrDimensionMismatch)
	}
	if z.spectral != o.spectral {
		return fmt.Errorf("%w: states have different representations", ErrDimensionMismatch)
	}
	if len(z.keys) != len(o.keys) {
		return fmt.Errorf("%w: states have %d and %d components",
			ErrDimensionMismatch, len(z.keys), len(o.keys))
	}
	for i, k := range z.keys {
		if o.keys[i] != k {
			return fmt.Errorf("%w: component %d is %q in one state and %q in the other",
				ErrDimensionMismatch, i, k, o.keys[i])
		}
	}
	return nil
}

// Add returns z + o elementwise per component.
func (z *State) Add(o *State) (*State, error) { return z.Copy().AddInPlace(o) }

// Sub returns z - o elementwise per component.
func (z *State) Sub(o *State) (*State, error) { return z.Copy().SubInPlace(o) }

// Mul returns the elementwise product of z and o.
func (z *State) Mul(o *State) (*State, error) { return z.Copy().MulInPlace(o) }

// Div returns the elementwise quotient of z and o.
func (z *State) Div(o *State) (*State, error) { return z.Copy().DivInPlace(o) }

// AddInPlace adds o into z and returns z for chaining.
func (z *State) AddInPlace(o *State) (*State, error) {
	if err := z.compatible(o); err != nil {
		return nil, err
	}
	for i := range z.fields {
		z.fields[i].addInPlace(o.fields[i])
	}
	return z, nil
}

// SubInPlace subtracts o from z and returns z for chaining.
func (z *State) SubInPlace(o *State) (*State, error) {
	if err := z.compatible(o); err != nil {
		return nil, err
	}
	for i := range z.fields {
		z.fields[i].subInPlace(o.fields[i])
	}
	return z, nil
}

// MulInPlace multiplies z by o elementwise and returns z for chaining.
func (z *State) MulInPlace(o *State) (*State, error) {
	if err := z.compatible(o); err != nil {
		return nil, err
	}
	for i := range z.fields {
		z.fields[i].mulInPlace(o.fields[i])
	}
	return z, nil
}

// DivInPlace divides z by o elementwise and returns z for chaining.
func (z *State) DivInPlace(o *State) (*State, error) {
	if err := z.compatible(o); err != nil {
		return nil, err
	}
	for i := range z.fields {
		z.fields[i].divInPlace(o.fields[i])
	}
	return z, nil
}

// Scale returns a*z, broadcasting the scalar to every field.
func (z *State) Scale(a float64) *State { return z.Copy().ScaleInPlace(a) }

// ScaleInPlace multiplies every field by a and returns z.
func (z *State) ScaleInPlace(a float64) *State {
	for _, f := range z.fields {
		f.scaleInPlace(complex(a, 0))
	}
	return z
}

// Shift returns z + a, broadcasting the scalar to every field.
func (z *State) Shift(a float64) *State { return z.Copy().ShiftInPlace(a) }

// ShiftInPlace adds a to every field and returns z.
func (z *State) ShiftInPlace(a float64) *State {
	for _, f := range z.fields {
		f.shiftInPlace(complex(a, 0))
	}
	return z
}

// AddScaledInPlace adds a*o into z. This is the primitive the time steppers
// and trajectory averaging build on.
func (z *State) AddScaledInPlace(a float64, o *State) (*State, error) {
	if err := z.compatible(o); err != nil {
		return nil, err
	}
	ca := complex(a, 0)
	for i := range z.fields {
		dst := z.fields[i].Data
		src := o.fields[i].Data
		for j := range dst {
			dst[j] += ca * src[j]
		}
	}
	return z, nil
}

// FFT returns the state in the opposite representation. Applying it twice
// reproduces the original up to floating-point round-trip error.
func (z *State) FFT() *State {
	c := &State{
		grid:     z.grid,
		keys:     append([]string(nil), z.keys...),
		fields:   make([]*Field, len(z.fields)),
		index:    make(map[string]int, len(z.keys)),
		spectral: !z.spectral,
	}
	for i, f := range z.fields {
		c.fields[i] = f.transform()
		c.index[z.keys[i]] = i
	}
	return c
}

// ToSpectral returns the state in spectral representation, transforming only
// if needed.
func (z *State) ToSpectral() *State {
	if z.spectral {
		return z
	}
	return z.FFT()
}

// ToPhysical returns the state in physical representation, transforming only
// if needed.
func (z *State) ToPhysical() *State {
	if !z.spectral {
		return z
	}
	return z.FFT()
}

// NormL2 returns the L2 norm of the state: the square root of the
// domain-integrated sum of squared (modulus-squared for spectral fields)
// component values.
func (z *State) NormL2() float64 {
	dv := z.grid.CellVolume()
	sum := 0.0
	for _, f := range z.fields {
		for _, v := range f.Data {
			sum += real(v)*real(v) + imag(v)*imag(v)
		}
	}
	return math.Sqrt(sum * dv)
}

// NormOfDiff returns the L2 norm of z - o.
func (z *State) NormOfDiff(o *State) (float64, error) {
	if err := z.compatible(o); err != nil {
		return 0, err
	}
	dv := z.grid.CellVolume()
	sum := 0.0
	for i := range z.fields {
		a := z.fields[i].Data
		b := o.fields[i].Data
		for j := range a {
			d := a[j] - b[j]
			sum += real(d)*real(d) + imag(d)*imag(d)
		}
	}
	return math.Sqrt(sum * dv), nil
}

// Dot returns the domain-integrated inner product of z and o, conjugating
// the second operand. The conjugation makes the product an inner product in
// spectral space; for real physical fields it reduces to the plain product.
func (z *State) Dot(o *State) (complex128, error) {
	if err := z.compatible(o); err != nil {
		return 0, err
	}
	dv := complex(z.grid.CellVolume(), 0)
	var sum complex128
	for i := range z.fields {
		a := z.fields[i].Data
		b := o.fields[i].Data
		for j := range a {
			bj := b[j]
			sum += a[j] * complex(real(bj), -imag(bj))
		}
	}
	return sum * dv, nil
}

// IsFinite reports whether every field of the state is finite.
func (z *State) IsFinite() bool {
	for _, f := range z.fields {
		if !f.IsFinite() {
			return false
		}
	}
	return true
}

// MaxAbs returns the largest modulus over all fields.
func (z *State) MaxAbs() float64 {
	m := 0.0
	for _, f := range z.fields {
		if a := f.MaxAbs(); a > m {
			m = a
		}
	}
	return m
}
