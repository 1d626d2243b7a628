// Package swm implements a pseudo-spectral rotating shallow-water model on
// a doubly periodic grid. It is the nonlinear time-stepping collaborator of
// the balance projectors: third-order Adams-Bashforth stepping, an optional
// advective nonlinearity with 2/3-rule dealiasing, and backward integration
// by sign-flipping the time step.
package swm

import (
	"fmt"

	"github.com/gordi42/geobalance/internal/grid"
)

// Settings collects the grid and physical parameters of a model run.
// Fields omitted from a JSON settings file retain their default values, so
// partial configs are safe.
type Settings struct {
	// Resolution is the number of grid points per axis (two axes).
	Resolution []int `json:"resolution"`
	// DomainLength is the physical domain size per axis.
	DomainLength []float64 `json:"domain_length"`

	// F0 is the Coriolis parameter.
	F0 float64 `json:"f0"`
	// Csqr is the squared gravity-wave phase speed.
	Csqr float64 `json:"csqr"`
	// Ro is the Rossby number scaling the nonlinear terms.
	Ro float64 `json:"ro"`

	// Dt is the time step.
	Dt float64 `json:"dt"`

	// EnableNonlinear switches the advective terms on. With it off the
	// model is exactly linear, which is the validation mode in which the
	// spectral projector is provably exact.
	EnableNonlinear bool `json:"enable_nonlinear"`
}

// DefaultSettings returns the reference configuration: a unit-parameter
// shallow-water setup on a 2*pi-periodic square grid.
func DefaultSettings() Settings {
	return Settings{
		Resolution:      []int{64, 64},
		DomainLength:    []float64{2 * 3.141592653589793, 2 * 3.141592653589793},
		F0:              1.0,
		Csqr:            1.0,
		Ro:              0.1,
		Dt:              0.01,
		EnableNonlinear: true,
	}
}

// Validate checks the settings for internal consistency.
func (s Settings) Validate() error {
	if len(s.Resolution) != 2 || len(s.DomainLength) != 2 {
		return fmt.Errorf("%w: shallow-water model needs two axes, got %d and %d",
			grid.ErrInvalidConfig, len(s.Resolution), len(s.DomainLength))
	}
	for a, n := range s.Resolution {
		if n <= 0 {
			return fmt.Errorf("%w: resolution[%d] = %d", grid.ErrInvalidConfig, a, n)
		}
		if s.DomainLength[a] <= 0 {
			return fmt.Errorf("%w: domain length[%d] = %g", grid.ErrInvalidConfig, a, s.DomainLength[a])
		}
	}
	if s.Csqr <= 0 {
		return fmt.Errorf("%w: csqr = %g must be positive", grid.ErrInvalidConfig, s.Csqr)
	}
	if s.F0 < 0 {
		return fmt.Errorf("%w: f0 = %g must be nonnegative", grid.ErrInvalidConfig, s.F0)
	}
	if s.Ro < 0 {
		return fmt.Errorf("%w: Rossby number %g must be nonnegative", grid.ErrInvalidConfig, s.Ro)
	}
	if s.Dt <= 0 {
		return fmt.Errorf("%w: dt = %g must be positive", grid.ErrInvalidConfig, s.Dt)
	}
	return nil
}
