package eigen

import (
	"fmt"
	"math"

	"github.com/gordi42/geobalance/internal/grid"
	"gonum.org/v1/gonum/mat"
)

// Boussinesq is the linearized non-hydrostatic rotating Boussinesq system on
// a triply periodic grid, with components (u, v, w, b):
//
//	     du/dt =  f v - dp/dx
//	     dv/dt = -f u - dp/dy
//	dsqr dw/dt =  b   - dp/dz
//	     db/dt = -N^2 w
//
// together with the incompressibility constraint du/dx + dv/dy + dw/dz = 0
// that determines the pressure p. Dsqr is the squared aspect ratio of the
// vertical scaling; Dsqr = 1 recovers the unscaled equations. The wave
// dispersion relation is
//
//	omega^2 = (N^2 kh^2 + f^2 kz^2) / (dsqr kh^2 + kz^2).
type Boussinesq struct {
	F0   float64
	N0   float64
	Dsqr float64
}

// NewBoussinesq validates the physical parameters.
func NewBoussinesq(f0, n0, dsqr float64) (*Boussinesq, error) {
	if dsqr <= 0 {
		return nil, fmt.Errorf("%w: aspect ratio squared %g must be positive",
			grid.ErrInvalidConfig, dsqr)
	}
	if n0 <= 0 {
		return nil, fmt.Errorf("%w: stratification frequency %g must be positive",
			grid.ErrInvalidConfig, n0)
	}
	if f0 < 0 {
		return nil, fmt.Errorf("%w: Coriolis parameter %g must be nonnegative",
			grid.ErrInvalidConfig, f0)
	}
	return &Boussinesq{F0: f0, N0: n0, Dsqr: dsqr}, nil
}

// Keys returns the Boussinesq component names.
func (b *Boussinesq) Keys() []string { return []string{"u", "v", "w", "b"} }

// Operator assembles the 4x4 pressure-projected linearized operator at
// wavenumber k: A = Pi L, where L holds the unconstrained tendencies and Pi
// removes the divergent part via the spectral pressure solve.
func (b *Boussinesq) Operator(k []float64) *mat.CDense {
	kx, ky, kz := k[0], k[1], k[2]
	f, n2, dsqr := b.F0, b.N0*b.N0, b.Dsqr

	l := mat.NewCDense(4, 4, []complex128{
		0, complex(f, 0), 0, 0,
		complex(-f, 0), 0, 0, 0,
		0, 0, 0, complex(1/dsqr, 0),
		0, 0, complex(-n2, 0), 0,
	})

	// Divergence row d and pressure-gradient column g. The projection
	// Pi = I - g d^T / (d . g) keeps tendencies divergence-free. At the
	// zero wavenumber no pressure correction applies; there the mean
	// vertical velocity is pinned to zero, which drops the w tendency.
	d := []float64{kx, ky, kz, 0}
	gcol := []float64{kx, ky, kz / dsqr, 0}
	dg := kx*kx + ky*ky + kz*kz/dsqr
	if dg == 0 {
		l.Set(2, 3, 0)
	}

	pi := mat.NewCDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			v := complex128(0)
			if i == j {
				v = 1
			}
			if dg != 0 {
				v -= complex(gcol[i]*d[j]/dg, 0)
			}
			pi.Set(i, j, v)
		}
	}

	a := mat.NewCDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var v complex128
			for q := 0; q < 4; q++ {
				v += pi.At(i, q) * l.At(q, j)
			}
			a.Set(i, j, v)
		}
	}
	return a
}

// Eigenpairs returns the analytic eigenpairs at wavenumber k. The dual
// vectors are the eigenvectors under the energy weighting
// diag(1, 1, dsqr, 1/N^2); Build normalizes them.
func (b *Boussinesq) Eigenpairs(k []float64) Pairs {
	kx, ky, kz := k[0], k[1], k[2]
	kh2 := kx*kx + ky*ky
	f, n2, dsqr := b.F0, b.N0*b.N0, b.Dsqr

	var pairs Pairs
	if kh2 == 0 {
		// Horizontal mean: the geostrophic mode carries the mean
		// buoyancy, the wave modes the inertial mean velocity. The
		// continuity constraint removes w.
		pairs.Omega = f
		pairs.Q[Geostrophic] = []complex128{0, 0, 0, 1}
		pairs.Q[WavePlus] = []complex128{1, complex(0, -1), 0, 0}
		pairs.Q[WaveMinus] = []complex128{1, complex(0, 1), 0, 0}
	} else {
		om := math.Sqrt((n2*kh2 + f*f*kz*kz) / (dsqr*kh2 + kz*kz))
		pairs.Omega = om
		pairs.Q[Geostrophic] = []complex128{
			complex(0, -ky),
			complex(0, kx),
			0,
			complex(0, f*kz),
		}
		pairs.Q[WavePlus] = []complex128{
			complex(kz*om*kx, kz*f*ky),
			complex(kz*om*ky, -kz*f*kx),
			complex(-om*kh2, 0),
			complex(0, n2*kh2),
		}
		pairs.Q[WaveMinus] = []complex128{
			complex(-kz*om*kx, kz*f*ky),
			complex(-kz*om*ky, -kz*f*kx),
			complex(om*kh2, 0),
			complex(0, n2*kh2),
		}
	}

	for m := Mode(0); m < numModes; m++ {
		q := pairs.Q[m]
		pairs.P[m] = []complex128{
			q[0],
			q[1],
			q[2] * complex(dsqr, 0),
			q[3] / complex(n2, 0),
		}
	}
	return pairs
}
