package balance

import (
	"fmt"
	"math"

	"github.com/gordi42/geobalance/internal/grid"
	"github.com/gordi42/geobalance/internal/monitoring"
	"github.com/gordi42/geobalance/internal/state"
)

// RampType selects the shape of the nonlinearity ramp used by the optimal
// balance integrations.
type RampType string

const (
	RampExp RampType = "exp"
	RampPow RampType = "pow"
	RampCos RampType = "cos"
	RampLin RampType = "lin"
)

// rampFunc returns the ramp shape on [0, 1]. The exponential ramp is flat
// to all orders at both ends, which keeps the adiabatic switching of the
// nonlinear terms from exciting waves.
func rampFunc(t RampType) (func(float64) float64, error) {
	switch t {
	case RampExp:
		return func(theta float64) float64 {
			t1 := 1.0 / math.Max(1e-32, theta)
			t2 := 1.0 / math.Max(1e-32, 1-theta)
			return math.Exp(-t1) / (math.Exp(-t1) + math.Exp(-t2))
		}, nil
	case RampPow:
		return func(theta float64) float64 {
			a := theta * theta * theta
			b := (1 - theta) * (1 - theta) * (1 - theta)
			return a / (a + b)
		}, nil
	case RampCos:
		return func(theta float64) float64 {
			return 0.5 * (1 - math.Cos(math.Pi*theta))
		}, nil
	case RampLin:
		return func(theta float64) float64 { return theta }, nil
	default:
		return nil, fmt.Errorf("%w: ramp type %q, choose exp, pow, cos or lin", grid.ErrInvalidConfig, t)
	}
}

// OptimalBalanceConfig parameterizes the optimal balance iteration.
type OptimalBalanceConfig struct {
	// RampPeriod is the duration of each ramped integration.
	RampPeriod float64 `json:"ramp_period"`
	// RampType selects the ramp shape; empty means exponential.
	RampType RampType `json:"ramp_type"`
	// MaxIterations bounds the fixed-point iteration.
	MaxIterations int `json:"max_iterations"`
	// StopTolerance ends the iteration once the difference between
	// successive iterates falls below it.
	StopTolerance float64 `json:"stop_tolerance"`
	// UpdateBasePoint recomputes the base-point coordinate from the
	// current iterate after each iteration.
	UpdateBasePoint bool `json:"update_base_point"`
}

// OptimalBalance computes a nonlinear balance estimate by the optimal
// balance method: each iteration ramps the state backward to the linear
// end where balance is known exactly, applies the linear base projection
// there, ramps forward to the nonlinear end, and restores the invariant
// base-point coordinate of the input. The fixed point of this map is a
// state on the nonlinear balanced manifold with the prescribed base-point
// coordinate.
type OptimalBalance struct {
	model     RampModel
	base      Projector
	ramp      func(float64) float64
	rampSteps int
	maxIt     int
	stopTol   float64
	updateBP  bool
}

// NewOptimalBalance builds the optimal balance projector. base supplies
// the base-point coordinate, normally a GeostrophicSpectral projector on
// the model's grid.
func NewOptimalBalance(model RampModel, base Projector, cfg OptimalBalanceConfig) (*OptimalBalance, error) {
	if cfg.RampPeriod <= 0 {
		return nil, fmt.Errorf("%w: ramp period %g must be positive", grid.ErrInvalidConfig, cfg.RampPeriod)
	}
	if cfg.MaxIterations <= 0 {
		return nil, fmt.Errorf("%w: max iterations %d must be positive", grid.ErrInvalidConfig, cfg.MaxIterations)
	}
	if cfg.StopTolerance < 0 {
		return nil, fmt.Errorf("%w: stop tolerance %g must be nonnegative", grid.ErrInvalidConfig, cfg.StopTolerance)
	}
	rt := cfg.RampType
	if rt == "" {
		rt = RampExp
	}
	ramp, err := rampFunc(rt)
	if err != nil {
		return nil, err
	}
	steps := int(cfg.RampPeriod / model.TimeStep())
	if steps < 1 {
		steps = 1
	}
	return &OptimalBalance{
		model:     model,
		base:      base,
		ramp:      ramp,
		rampSteps: steps,
		maxIt:     cfg.MaxIterations,
		stopTol:   cfg.StopTolerance,
		updateBP:  cfg.UpdateBasePoint,
	}, nil
}

// Project returns the optimal balance estimate of z.
func (ob *OptimalBalance) Project(z *state.State) (*state.State, error) {
	zBase, err := ob.base.Project(z)
	if err != nil {
		return nil, fmt.Errorf("base projection: %w", err)
	}
	zRes := z.Copy()
	prevErr := math.Inf(1)

	for it := 0; it < ob.maxIt; it++ {
		zLin, err := ob.model.AdvanceRamped(zRes, -ob.rampSteps, func(theta float64) float64 {
			return ob.ramp(1 - theta)
		})
		if err != nil {
			return nil, fmt.Errorf("iteration %d backward ramp: %w", it+1, err)
		}
		zLin, err = ob.base.Project(zLin)
		if err != nil {
			return nil, fmt.Errorf("iteration %d base projection: %w", it+1, err)
		}
		zBal, err := ob.model.AdvanceRamped(zLin, ob.rampSteps, ob.ramp)
		if err != nil {
			return nil, fmt.Errorf("iteration %d forward ramp: %w", it+1, err)
		}

		// Exchange the base-point coordinate: keep the wave-space part
		// of the balanced state, restore the input's base coordinate.
		baseOfBal, err := ob.base.Project(zBal)
		if err != nil {
			return nil, err
		}
		zNew := zBal
		if _, err := zNew.SubInPlace(baseOfBal); err != nil {
			return nil, err
		}
		if _, err := zNew.AddInPlace(zBase); err != nil {
			return nil, err
		}

		diff, err := zNew.NormOfDiff(zRes)
		if err != nil {
			return nil, err
		}
		monitoring.Verbosef("optimal balance: iteration %d, difference %.2e", it+1, diff)
		zRes = zNew

		if diff < ob.stopTol {
			break
		}
		if it > 0 && diff > prevErr {
			monitoring.Logf("optimal balance: difference increasing (%.2e > %.2e), stopping at iteration %d", diff, prevErr, it+1)
			break
		}
		prevErr = diff

		if ob.updateBP && it < ob.maxIt-1 {
			zBase, err = ob.base.Project(zRes)
			if err != nil {
				return nil, err
			}
		}
	}
	return zRes, nil
}
