package eigen

import (
	"fmt"
	"math"

	"github.com/gordi42/geobalance/internal/grid"
	"gonum.org/v1/gonum/mat"
)

// ShallowWater is the linearized single-layer rotating shallow-water system
// on a doubly periodic grid, with components (u, v, h):
//
//	du/dt =  f v - dh/dx
//	dv/dt = -f u - dh/dy
//	dh/dt = -c^2 (du/dx + dv/dy)
//
// F0 is the Coriolis parameter and Csqr the squared gravity-wave phase
// speed. The wave dispersion relation is omega^2 = f^2 + c^2 (kx^2+ky^2).
type ShallowWater struct {
	F0   float64
	Csqr float64
}

// NewShallowWater validates the physical parameters.
func NewShallowWater(f0, csqr float64) (*ShallowWater, error) {
	if csqr <= 0 {
		return nil, fmt.Errorf("%w: phase speed squared %g must be positive",
			grid.ErrInvalidConfig, csqr)
	}
	if f0 < 0 {
		return nil, fmt.Errorf("%w: Coriolis parameter %g must be nonnegative",
			grid.ErrInvalidConfig, f0)
	}
	return &ShallowWater{F0: f0, Csqr: csqr}, nil
}

// Keys returns the shallow-water component names.
func (s *ShallowWater) Keys() []string { return []string{"u", "v", "h"} }

// Operator assembles the 3x3 linearized operator at wavenumber k.
func (s *ShallowWater) Operator(k []float64) *mat.CDense {
	kx, ky := k[0], k[1]
	f, c2 := s.F0, s.Csqr
	return mat.NewCDense(3, 3, []complex128{
		0, complex(f, 0), complex(0, -kx),
		complex(-f, 0), 0, complex(0, -ky),
		complex(0, -c2*kx), complex(0, -c2*ky), 0,
	})
}

// Eigenpairs returns the analytic eigenpairs at wavenumber k. The dual
// vectors are the eigenvectors under the energy weighting diag(1, 1, 1/c^2);
// Build normalizes them.
func (s *ShallowWater) Eigenpairs(k []float64) Pairs {
	kx, ky := k[0], k[1]
	kh2 := kx*kx + ky*ky
	f, c2 := s.F0, s.Csqr

	var pairs Pairs
	pairs.Omega = math.Sqrt(f*f + c2*kh2)

	if kh2 == 0 {
		// Mean flow: the geostrophic mode carries the mean layer
		// thickness, the wave modes the inertial mean velocity.
		pairs.Q[Geostrophic] = []complex128{0, 0, 1}
		pairs.Q[WavePlus] = []complex128{1, complex(0, -1), 0}
		pairs.Q[WaveMinus] = []complex128{1, complex(0, 1), 0}
	} else {
		om := pairs.Omega
		pairs.Q[Geostrophic] = []complex128{
			complex(0, -ky),
			complex(0, kx),
			complex(f, 0),
		}
		pairs.Q[WavePlus] = []complex128{
			complex(om*kx, f*ky),
			complex(om*ky, -f*kx),
			complex(c2*kh2, 0),
		}
		pairs.Q[WaveMinus] = []complex128{
			complex(-om*kx, f*ky),
			complex(-om*ky, -f*kx),
			complex(c2*kh2, 0),
		}
	}

	for m := Mode(0); m < numModes; m++ {
		q := pairs.Q[m]
		pairs.P[m] = []complex128{q[0], q[1], q[2] / complex(c2, 0)}
	}
	return pairs
}
