package state

import (
	"errors"
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/gordi42/geobalance/internal/grid"
)

func testGrid(t *testing.T) *grid.Grid {
	t.Helper()
	g, err := grid.New([]int{16, 16}, []float64{2 * math.Pi, 2 * math.Pi})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func randomState(t *testing.T, g *grid.Grid, seed int64) *State {
	t.Helper()
	z, err := New(g, []string{"u", "v", "h"}, false)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < z.NumFields(); i++ {
		data := z.FieldAt(i).Data
		for j := range data {
			data[j] = complex(rng.NormFloat64(), 0)
		}
	}
	return z
}

func TestNew_DuplicateKey(t *testing.T) {
	g := testGrid(t)
	if _, err := New(g, []string{"u", "u"}, false); !errors.Is(err, grid.ErrInvalidConfig) {
		t.Errorf("duplicate key error = %v, want ErrInvalidConfig", err)
	}
	if _, err := New(g, nil, false); !errors.Is(err, grid.ErrInvalidConfig) {
		t.Errorf("empty key list error = %v, want ErrInvalidConfig", err)
	}
}

func TestArithmeticLaws(t *testing.T) {
	g := testGrid(t)
	z1 := randomState(t, g, 1)
	z2 := randomState(t, g, 2)

	// (z1+z2)-z2 == z1 within tolerance.
	sum, err := z1.Add(z2)
	if err != nil {
		t.Fatal(err)
	}
	back, err := sum.Sub(z2)
	if err != nil {
		t.Fatal(err)
	}
	d, err := back.NormOfDiff(z1)
	if err != nil {
		t.Fatal(err)
	}
	if d > 1e-12*z1.NormL2() {
		t.Errorf("(z1+z2)-z2 differs from z1 by %v", d)
	}

	// z1*1.0 == z1 exactly.
	one := z1.Scale(1.0)
	for i := 0; i < z1.NumFields(); i++ {
		a := z1.FieldAt(i).Data
		b := one.FieldAt(i).Data
		for j := range a {
			if a[j] != b[j] {
				t.Fatalf("z1*1.0 changed entry %d of field %d", j, i)
			}
		}
	}
}

func TestArithmetic_Mismatch(t *testing.T) {
	g := testGrid(t)
	other := testGrid(t) // same shape, different object
	z1 := randomState(t, g, 1)
	z2 := randomState(t, other, 2)
	if _, err := z1.Add(z2); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("cross-grid Add error = %v, want ErrDimensionMismatch", err)
	}

	z3, err := New(g, []string{"u", "v"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := z1.Add(z3); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("key-mismatch Add error = %v, want ErrDimensionMismatch", err)
	}

	spec := z1.FFT()
	if _, err := z1.Add(spec); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("representation-mismatch Add error = %v, want ErrDimensionMismatch", err)
	}
}

func TestInPlaceChaining(t *testing.T) {
	g := testGrid(t)
	z1 := randomState(t, g, 3)
	z2 := randomState(t, g, 4)
	want, err := z1.Add(z2)
	if err != nil {
		t.Fatal(err)
	}
	got, err := z1.Copy().AddInPlace(z2)
	if err != nil {
		t.Fatal(err)
	}
	d, err := got.NormOfDiff(want)
	if err != nil {
		t.Fatal(err)
	}
	if d != 0 {
		t.Errorf("AddInPlace differs from Add by %v", d)
	}
}

func TestFFT_RoundTrip(t *testing.T) {
	g := testGrid(t)
	z := randomState(t, g, 5)
	back := z.FFT().FFT()
	d, err := back.NormOfDiff(z)
	if err != nil {
		t.Fatal(err)
	}
	if d > 1e-10*z.NormL2() {
		t.Errorf("FFT round trip error %v", d)
	}
	if z.FFT().Spectral() == z.Spectral() {
		t.Error("FFT did not toggle the representation")
	}
}

func TestDot_Conjugation(t *testing.T) {
	g := testGrid(t)
	z1 := randomState(t, g, 6).FFT()
	z2 := randomState(t, g, 7).FFT()
	d12, err := z1.Dot(z2)
	if err != nil {
		t.Fatal(err)
	}
	d21, err := z2.Dot(z1)
	if err != nil {
		t.Fatal(err)
	}
	if cmplx.Abs(d12-cmplx.Conj(d21)) > 1e-9*(1+cmplx.Abs(d12)) {
		t.Errorf("z1.Dot(z2) = %v, conj(z2.Dot(z1)) = %v", d12, cmplx.Conj(d21))
	}
}

func TestDot_NormConsistency(t *testing.T) {
	g := testGrid(t)
	z := randomState(t, g, 8)
	d, err := z.Dot(z)
	if err != nil {
		t.Fatal(err)
	}
	n := z.NormL2()
	if math.Abs(real(d)-n*n) > 1e-9*(1+n*n) {
		t.Errorf("z.Dot(z) = %v, NormL2^2 = %v", real(d), n*n)
	}
	if math.Abs(imag(d)) > 1e-12*(1+n*n) {
		t.Errorf("z.Dot(z) has imaginary part %v", imag(d))
	}
}

func TestField_SetSlice(t *testing.T) {
	g := testGrid(t)
	z := randomState(t, g, 9)
	f := z.Field("u")
	orig := f.Copy()

	vals := []complex128{10, 11, 12}
	if err := f.SetSlice(4, 7, vals); err != nil {
		t.Fatal(err)
	}
	for i, v := range f.Data {
		switch {
		case i >= 4 && i < 7:
			if v != vals[i-4] {
				t.Errorf("Data[%d] = %v, want %v", i, v, vals[i-4])
			}
		default:
			if v != orig.Data[i] {
				t.Errorf("Data[%d] changed outside the addressed range", i)
			}
		}
	}

	if err := f.SetSlice(-1, 3, vals); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("out-of-range SetSlice error = %v", err)
	}
	if err := f.SetSlice(0, 2, vals); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("length-mismatch SetSlice error = %v", err)
	}
}

func TestField_Fill(t *testing.T) {
	g := testGrid(t)
	f := NewField(g, "b", false)
	if err := f.Fill(2, 5, 3); err != nil {
		t.Fatal(err)
	}
	for i, v := range f.Data {
		want := complex128(0)
		if i >= 2 && i < 5 {
			want = 3
		}
		if v != want {
			t.Errorf("Data[%d] = %v, want %v", i, v, want)
		}
	}
}

func TestIsFinite(t *testing.T) {
	g := testGrid(t)
	z := randomState(t, g, 10)
	if !z.IsFinite() {
		t.Fatal("fresh state reported non-finite")
	}
	z.Field("v").Data[3] = complex(math.NaN(), 0)
	if z.IsFinite() {
		t.Error("state with NaN reported finite")
	}
}

func TestScalarBroadcast(t *testing.T) {
	g := testGrid(t)
	z := randomState(t, g, 11)
	s := z.Shift(2.5)
	for i := 0; i < z.NumFields(); i++ {
		a := z.FieldAt(i).Data
		b := s.FieldAt(i).Data
		for j := range a {
			if b[j] != a[j]+2.5 {
				t.Fatalf("Shift: field %d entry %d = %v, want %v", i, j, b[j], a[j]+2.5)
			}
		}
	}
}
