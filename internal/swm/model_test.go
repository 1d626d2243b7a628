package swm

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/gordi42/geobalance/internal/eigen"
	"github.com/gordi42/geobalance/internal/grid"
	"github.com/gordi42/geobalance/internal/state"
)

func testSettings() Settings {
	s := DefaultSettings()
	s.Resolution = []int{16, 16}
	s.Dt = 1e-3
	return s
}

func newTestModel(t *testing.T, mutate func(*Settings)) *Model {
	t.Helper()
	s := testSettings()
	if mutate != nil {
		mutate(&s)
	}
	m, err := New(s)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return m
}

// modeState builds a spectral state carrying a single eigenmode at the
// flat spectral index idx, and returns it with the mode's frequency.
func modeState(t *testing.T, m *Model, mode eigen.Mode, idx int) (*state.State, float64) {
	t.Helper()
	sw, err := eigen.NewShallowWater(m.set.F0, m.set.Csqr)
	if err != nil {
		t.Fatalf("NewShallowWater() error: %v", err)
	}
	es, err := eigen.Build(m.Grid(), sw)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	z, err := state.New(m.Grid(), Keys, true)
	if err != nil {
		t.Fatalf("state.New() error: %v", err)
	}
	for c := 0; c < es.NumComponents(); c++ {
		z.FieldAt(c).Data[idx] = es.Eigenvector(mode, c)[idx]
	}
	return z, es.Omega(idx)
}

func TestSettingsValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"three axes", func(s *Settings) { s.Resolution = []int{8, 8, 8} }},
		{"zero resolution", func(s *Settings) { s.Resolution[0] = 0 }},
		{"negative length", func(s *Settings) { s.DomainLength[1] = -1 }},
		{"zero csqr", func(s *Settings) { s.Csqr = 0 }},
		{"negative f0", func(s *Settings) { s.F0 = -0.5 }},
		{"negative rossby", func(s *Settings) { s.Ro = -0.1 }},
		{"zero dt", func(s *Settings) { s.Dt = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := DefaultSettings()
			tc.mutate(&s)
			if _, err := New(s); !errors.Is(err, grid.ErrInvalidConfig) {
				t.Errorf("New() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
	if err := DefaultSettings().Validate(); err != nil {
		t.Errorf("DefaultSettings().Validate() = %v, want nil", err)
	}
}

func TestAdvanceZeroState(t *testing.T) {
	m := newTestModel(t, nil)
	z, err := m.Advance(m.NewState(), 50)
	if err != nil {
		t.Fatalf("Advance() error: %v", err)
	}
	if got := z.MaxAbs(); got != 0 {
		t.Errorf("MaxAbs of advanced zero state = %g, want 0", got)
	}
}

func TestAdvanceRejectsForeignState(t *testing.T) {
	m := newTestModel(t, nil)
	g, err := grid.New([]int{8, 8}, []float64{1, 1})
	if err != nil {
		t.Fatal(err)
	}
	z, err := state.New(g, Keys, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Advance(z, 1); !errors.Is(err, state.ErrDimensionMismatch) {
		t.Errorf("Advance() error = %v, want ErrDimensionMismatch", err)
	}

	wrong, err := state.New(m.Grid(), []string{"a", "b", "c"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Advance(wrong, 1); !errors.Is(err, state.ErrDimensionMismatch) {
		t.Errorf("Advance() with wrong keys error = %v, want ErrDimensionMismatch", err)
	}
}

// A geostrophic mode has zero frequency, so its linear tendency vanishes
// identically and it must be a steady state of the linear model.
func TestLinearGeostrophicSteady(t *testing.T) {
	m := newTestModel(t, func(s *Settings) { s.EnableNonlinear = false })
	idx := 3 // kx = 0, ky = 3
	z0, _ := modeState(t, m, eigen.Geostrophic, idx)
	z, err := m.Advance(z0, 200)
	if err != nil {
		t.Fatalf("Advance() error: %v", err)
	}
	diff, err := z.NormOfDiff(z0)
	if err != nil {
		t.Fatal(err)
	}
	if diff > 1e-12*z0.NormL2() {
		t.Errorf("geostrophic mode drifted by %g under linear dynamics", diff)
	}
}

// A single wave mode under the linear model rotates as exp(-i omega t).
func TestLinearWaveRotation(t *testing.T) {
	m := newTestModel(t, func(s *Settings) { s.EnableNonlinear = false })
	n := m.Grid().Resolution()
	idx := 2*n[1] + 1 // kx = 2, ky = 1
	z0, omega := modeState(t, m, eigen.WavePlus, idx)
	steps := 100
	z, err := m.Advance(z0, steps)
	if err != nil {
		t.Fatalf("Advance() error: %v", err)
	}
	phase := cmplx.Exp(complex(0, -omega*m.TimeStep()*float64(steps)))
	want := z0.Copy()
	for c := 0; c < want.NumFields(); c++ {
		d := want.FieldAt(c).Data
		for i := range d {
			d[i] *= phase
		}
	}
	diff, err := z.NormOfDiff(want)
	if err != nil {
		t.Fatal(err)
	}
	if rel := diff / z0.NormL2(); rel > 1e-4 {
		t.Errorf("wave mode phase error = %g relative, want < 1e-4", rel)
	}
}

func TestBackwardUndoesForwardLinear(t *testing.T) {
	m := newTestModel(t, func(s *Settings) { s.EnableNonlinear = false })
	n := m.Grid().Resolution()
	z0, _ := modeState(t, m, eigen.WaveMinus, 1*n[1]+2)
	fwd, err := m.Advance(z0, 50)
	if err != nil {
		t.Fatalf("forward Advance() error: %v", err)
	}
	back, err := m.Advance(fwd, -50)
	if err != nil {
		t.Fatalf("backward Advance() error: %v", err)
	}
	diff, err := back.NormOfDiff(z0)
	if err != nil {
		t.Fatal(err)
	}
	if rel := diff / z0.NormL2(); rel > 1e-4 {
		t.Errorf("backward-forward residual = %g relative, want < 1e-4", rel)
	}
}

func TestAdvancePreservesRepresentation(t *testing.T) {
	m := newTestModel(t, nil)
	z := m.NewState()
	x := m.Grid().Mesh(0)
	h := z.Field("h").Data
	for i := range h {
		h[i] = complex(0.1*math.Sin(x[i]), 0)
	}
	out, err := m.Advance(z, 5)
	if err != nil {
		t.Fatalf("Advance() error: %v", err)
	}
	if out.Spectral() {
		t.Error("physical input came back spectral")
	}
	if z.Spectral() {
		t.Error("Advance mutated the input representation")
	}
	outS, err := m.Advance(z.Copy().ToSpectral(), 5)
	if err != nil {
		t.Fatalf("Advance() error: %v", err)
	}
	if !outS.Spectral() {
		t.Error("spectral input came back physical")
	}
	diff, err := out.NormOfDiff(outS.ToPhysical())
	if err != nil {
		t.Fatal(err)
	}
	if diff > 1e-12 {
		t.Errorf("representation changed the result by %g", diff)
	}
}

func TestAdvanceMeanPreservesRepresentation(t *testing.T) {
	m := newTestModel(t, nil)
	z := m.NewState()
	x := m.Grid().Mesh(0)
	h := z.Field("h").Data
	for i := range h {
		h[i] = complex(0.1*math.Sin(2*x[i]), 0)
	}
	mean, err := m.AdvanceMean(z, 5)
	if err != nil {
		t.Fatalf("AdvanceMean() error: %v", err)
	}
	if mean.Spectral() {
		t.Error("physical input came back spectral")
	}
	meanS, err := m.AdvanceMean(z.Copy().ToSpectral(), 5)
	if err != nil {
		t.Fatalf("AdvanceMean() error: %v", err)
	}
	diff, err := mean.NormOfDiff(meanS.ToPhysical())
	if err != nil {
		t.Fatal(err)
	}
	if diff > 1e-12 {
		t.Errorf("representation changed the mean by %g", diff)
	}
}

func TestNonlinearEnergyDrift(t *testing.T) {
	m := newTestModel(t, func(s *Settings) { s.Ro = 0.05 })
	z := m.NewState()
	x := m.Grid().Mesh(0)
	y := m.Grid().Mesh(1)
	h := z.Field("h").Data
	u := z.Field("u").Data
	for i := range h {
		h[i] = complex(0.2*math.Sin(x[i])*math.Cos(y[i]), 0)
		u[i] = complex(0.1*math.Cos(y[i]), 0)
	}
	e0, err := m.MeanEnergy(z)
	if err != nil {
		t.Fatal(err)
	}
	out, err := m.Advance(z, 200)
	if err != nil {
		t.Fatalf("Advance() error: %v", err)
	}
	e1, err := m.MeanEnergy(out)
	if err != nil {
		t.Fatal(err)
	}
	if rel := math.Abs(e1.Total-e0.Total) / e0.Total; rel > 1e-3 {
		t.Errorf("total energy drifted by %g relative over 200 steps", rel)
	}
}

func TestUnstableTimeStep(t *testing.T) {
	m := newTestModel(t, func(s *Settings) {
		s.Dt = 5.0
		s.EnableNonlinear = false
	})
	n := m.Grid().Resolution()
	z, _ := modeState(t, m, eigen.WavePlus, 7*n[1]+7)
	_, err := m.Advance(z, 5000)
	if !errors.Is(err, ErrUnstable) {
		t.Fatalf("Advance() with dt = 5 error = %v, want ErrUnstable", err)
	}
}

func TestSetNonlinearScaleClamps(t *testing.T) {
	m := newTestModel(t, nil)
	m.SetNonlinearScale(2.5)
	if got := m.NonlinearScale(); got != 1 {
		t.Errorf("NonlinearScale after SetNonlinearScale(2.5) = %g, want 1", got)
	}
	m.SetNonlinearScale(-0.3)
	if got := m.NonlinearScale(); got != 0 {
		t.Errorf("NonlinearScale after SetNonlinearScale(-0.3) = %g, want 0", got)
	}
	m.SetNonlinearScale(0.5)
	if got := m.NonlinearScale(); got != 0.5 {
		t.Errorf("NonlinearScale = %g, want 0.5", got)
	}
}

func TestVorticity(t *testing.T) {
	m := newTestModel(t, nil)
	z := m.NewState()
	y := m.Grid().Mesh(1)
	u := z.Field("u").Data
	for i := range u {
		u[i] = complex(math.Cos(y[i]), 0)
	}
	zeta, err := m.Vorticity(z)
	if err != nil {
		t.Fatalf("Vorticity() error: %v", err)
	}
	for i, got := range zeta.Real() {
		want := math.Sin(y[i]) // -d/dy cos(y)
		if math.Abs(got-want) > 1e-10 {
			t.Fatalf("vorticity[%d] = %g, want %g", i, got, want)
		}
	}
}

func TestMeanEnergyAtRest(t *testing.T) {
	m := newTestModel(t, nil)
	e, err := m.MeanEnergy(m.NewState())
	if err != nil {
		t.Fatal(err)
	}
	if e.Kinetic != 0 {
		t.Errorf("Kinetic at rest = %g, want 0", e.Kinetic)
	}
	want := 0.5 * m.set.Csqr * m.set.Csqr
	if math.Abs(e.Potential-want) > 1e-14 {
		t.Errorf("Potential at rest = %g, want %g", e.Potential, want)
	}
}

func TestMaxCFL(t *testing.T) {
	m := newTestModel(t, nil)
	z := m.NewState()
	u := z.Field("u").Data
	for i := range u {
		u[i] = complex(2.0, 0)
	}
	got, err := m.MaxCFL(z)
	if err != nil {
		t.Fatal(err)
	}
	want := 2.0 * m.set.Ro * m.set.Dt / m.Grid().Spacing(0)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("MaxCFL = %g, want %g", got, want)
	}
}
