// Package balance splits fluid states into balanced (geostrophic) and wave
// components. Two independent methods are provided: a linear spectral
// eigenprojection and a nonlinear estimate obtained by time averaging the
// model trajectory over wave periods, plus the optimal balance iteration
// built on both. The imbalance diagnostic composes a projector with the
// nonlinear model to score how well a method isolates the balanced
// manifold.
package balance

import (
	"github.com/gordi42/geobalance/internal/state"
)

// Projector maps a state to its balanced estimate. Implementations are
// pure: the input is never modified and the output is in the input's
// representation. Projectors are idempotent up to numerical tolerance.
type Projector interface {
	Project(z *state.State) (*state.State, error)
}

// Model advances states under the full nonlinear dynamics. Negative step
// counts integrate backward in time. Implementations are deterministic for
// identical inputs; the only failure mode is a numerical instability,
// which is fatal and never retried here.
type Model interface {
	Advance(z *state.State, steps int) (*state.State, error)
	// AdvanceMean integrates like Advance but returns the time mean of
	// the trajectory, both endpoints included.
	AdvanceMean(z *state.State, steps int) (*state.State, error)
	TimeStep() float64
}

// RampModel is a Model whose nonlinear terms can be ramped during a run,
// as required by the optimal balance iteration.
type RampModel interface {
	Model
	// AdvanceRamped integrates like Advance while scaling the nonlinear
	// terms by ramp(n/steps) before step n.
	AdvanceRamped(z *state.State, steps int, ramp func(float64) float64) (*state.State, error)
}
