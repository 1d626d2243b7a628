package eigen

import (
	"errors"
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/gordi42/geobalance/internal/grid"
)

func swGrid(t *testing.T) *grid.Grid {
	t.Helper()
	g, err := grid.New([]int{8, 8}, []float64{2 * math.Pi, 2 * math.Pi})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func nhGrid(t *testing.T) *grid.Grid {
	t.Helper()
	g, err := grid.New([]int{4, 4, 4}, []float64{4, 4, 1})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestNewShallowWater_Validation(t *testing.T) {
	if _, err := NewShallowWater(1, 0); !errors.Is(err, grid.ErrInvalidConfig) {
		t.Errorf("csqr=0 error = %v, want ErrInvalidConfig", err)
	}
	if _, err := NewShallowWater(-1, 1); !errors.Is(err, grid.ErrInvalidConfig) {
		t.Errorf("f0<0 error = %v, want ErrInvalidConfig", err)
	}
}

func TestNewBoussinesq_Validation(t *testing.T) {
	if _, err := NewBoussinesq(1, 0, 0.2); !errors.Is(err, grid.ErrInvalidConfig) {
		t.Errorf("N0=0 error = %v, want ErrInvalidConfig", err)
	}
	if _, err := NewBoussinesq(1, 1, 0); !errors.Is(err, grid.ErrInvalidConfig) {
		t.Errorf("dsqr=0 error = %v, want ErrInvalidConfig", err)
	}
}

func TestBuild_ShallowWater(t *testing.T) {
	g := swGrid(t)
	v, err := NewShallowWater(1.0, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	es, err := Build(g, v)
	if err != nil {
		t.Fatal(err)
	}
	if es.NumComponents() != 3 {
		t.Fatalf("NumComponents = %d, want 3", es.NumComponents())
	}

	// The slowest wave on the grid is the inertial oscillation.
	if f := es.MinWaveFrequency(); math.Abs(f-1.0) > 1e-12 {
		t.Errorf("MinWaveFrequency = %v, want 1.0", f)
	}
	if es.MaxWaveFrequency() <= es.MinWaveFrequency() {
		t.Error("MaxWaveFrequency should exceed MinWaveFrequency")
	}
}

func TestBuild_NormalizedDuals(t *testing.T) {
	g := swGrid(t)
	v, _ := NewShallowWater(1.0, 2.0)
	es, err := Build(g, v)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < g.Size(); i++ {
		for m := Mode(0); m < numModes; m++ {
			var d complex128
			alive := false
			for c := 0; c < es.NumComponents(); c++ {
				q := es.Eigenvector(m, c)[i]
				p := es.Dual(m, c)[i]
				d += q * cmplx.Conj(p)
				if q != 0 {
					alive = true
				}
			}
			if !alive {
				continue
			}
			if cmplx.Abs(d-1) > 1e-10 {
				t.Fatalf("mode %d at index %d: <q,p> = %v, want 1", m, i, d)
			}
		}
	}
}

// reconstruct sums the modal projections of a local coefficient vector.
func reconstruct(es *Eigenspace, i int, z []complex128) []complex128 {
	nc := es.NumComponents()
	out := make([]complex128, nc)
	for m := Mode(0); m < numModes; m++ {
		var coef complex128
		for c := 0; c < nc; c++ {
			coef += z[c] * cmplx.Conj(es.Dual(m, c)[i])
		}
		for c := 0; c < nc; c++ {
			out[c] += coef * es.Eigenvector(m, c)[i]
		}
	}
	return out
}

func TestCompleteness_ShallowWater(t *testing.T) {
	g := swGrid(t)
	v, _ := NewShallowWater(1.0, 1.5)
	es, err := Build(g, v)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < g.Size(); i++ {
		z := make([]complex128, 3)
		for c := range z {
			z[c] = complex(rng.NormFloat64(), rng.NormFloat64())
		}
		got := reconstruct(es, i, z)
		for c := range z {
			if cmplx.Abs(got[c]-z[c]) > 1e-9 {
				t.Fatalf("index %d: reconstruction[%d] = %v, want %v", i, c, got[c], z[c])
			}
		}
	}
}

func TestCompleteness_Boussinesq(t *testing.T) {
	g := nhGrid(t)
	v, err := NewBoussinesq(1.0, 10.0, 0.0625)
	if err != nil {
		t.Fatal(err)
	}
	es, err := Build(g, v)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(2))
	k := make([]float64, 3)
	for i := 0; i < g.Size(); i++ {
		k = g.WavenumberAt(i, k)
		kx, ky, kz := k[0], k[1], k[2]
		if kx == 0 && ky == 0 && kz == 0 {
			// The zero wavenumber spans only (u, v, b).
			continue
		}
		// Draw a random vector and remove its divergent part; the modes
		// span exactly the incompressible subspace.
		z := make([]complex128, 4)
		for c := range z {
			z[c] = complex(rng.NormFloat64(), rng.NormFloat64())
		}
		dsqr := 0.0625
		div := complex(kx, 0)*z[0] + complex(ky, 0)*z[1] + complex(kz, 0)*z[2]
		dg := kx*kx + ky*ky + kz*kz/dsqr
		p := div / complex(dg, 0)
		z[0] -= complex(kx, 0) * p
		z[1] -= complex(ky, 0) * p
		z[2] -= complex(kz/dsqr, 0) * p

		got := reconstruct(es, i, z)
		scale := 0.0
		for c := range z {
			scale += cmplx.Abs(z[c])
		}
		for c := range z {
			if cmplx.Abs(got[c]-z[c]) > 1e-9*(1+scale) {
				t.Fatalf("index %d (k=%v): reconstruction[%d] = %v, want %v", i, k, c, got[c], z[c])
			}
		}
	}
}

func TestGeostrophicNullSpace(t *testing.T) {
	g := nhGrid(t)
	v, _ := NewBoussinesq(1.0, 10.0, 1.0)
	es, err := Build(g, v)
	if err != nil {
		t.Fatal(err)
	}
	k := make([]float64, 3)
	for i := 0; i < g.Size(); i++ {
		k = g.WavenumberAt(i, k)
		a := v.Operator(k)
		for r := 0; r < 4; r++ {
			var av complex128
			for c := 0; c < 4; c++ {
				av += a.At(r, c) * es.Eigenvector(Geostrophic, c)[i]
			}
			if cmplx.Abs(av) > 1e-9 {
				t.Fatalf("A q0 != 0 at k=%v: row %d residual %v", k, r, cmplx.Abs(av))
			}
		}
	}
}

func TestBoussinesq_ZeroWavenumber(t *testing.T) {
	v, _ := NewBoussinesq(1.5, 6.0, 0.25)

	// The mean vertical velocity is pinned to zero, so the w tendency
	// row of the operator vanishes at k = 0.
	a := v.Operator([]float64{0, 0, 0})
	for c := 0; c < 4; c++ {
		if a.At(2, c) != 0 {
			t.Fatalf("w-tendency entry (2,%d) = %v at k=0, want 0", c, a.At(2, c))
		}
	}

	// The mean buoyancy is the steady geostrophic mode there.
	p := v.Eigenpairs([]float64{0, 0, 0})
	for r := 0; r < 4; r++ {
		var av complex128
		for c := 0; c < 4; c++ {
			av += a.At(r, c) * p.Q[Geostrophic][c]
		}
		if av != 0 {
			t.Fatalf("A q0 row %d = %v at k=0, want 0", r, av)
		}
	}
	if p.Omega != 1.5 {
		t.Errorf("Omega at k=0 = %v, want the inertial frequency 1.5", p.Omega)
	}
}

func TestBoussinesq_Dispersion(t *testing.T) {
	v, _ := NewBoussinesq(2.0, 8.0, 1.0)
	// Pure horizontal wavenumber: omega = N.
	p := v.Eigenpairs([]float64{3, 0, 0})
	if math.Abs(p.Omega-8.0) > 1e-12 {
		t.Errorf("omega(kh only) = %v, want 8", p.Omega)
	}
	// Pure vertical wavenumber: omega = f.
	p = v.Eigenpairs([]float64{0, 0, 5})
	if math.Abs(p.Omega-2.0) > 1e-12 {
		t.Errorf("omega(kz only) = %v, want 2", p.Omega)
	}
}
