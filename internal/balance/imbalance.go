package balance

import (
	"fmt"
	"math"

	"github.com/gordi42/geobalance/internal/grid"
	"github.com/gordi42/geobalance/internal/monitoring"
	"github.com/gordi42/geobalance/internal/state"
)

// Imbalance measures how much unbalanced energy the nonlinear dynamics
// re-inject into a balanced state over a diagnosis period. It is the
// primary metric for comparing projection methods: a perfect projector on
// perfectly balanced dynamics scores near machine epsilon.
type Imbalance struct {
	model   Model
	initial Projector
	final   Projector
	steps   int
	period  float64
}

// NewImbalance builds the diagnostic for the given projector and diagnosis
// period. A non-nil final projector enables cross balancing: the initial
// projection uses proj, the final one final.
func NewImbalance(model Model, period float64, proj, final Projector) (*Imbalance, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: diagnosis period %g must be positive", grid.ErrInvalidConfig, period)
	}
	steps := int(math.Round(period / model.TimeStep()))
	if steps < 1 {
		steps = 1
	}
	if final == nil {
		final = proj
	}
	return &Imbalance{
		model:   model,
		initial: proj,
		final:   final,
		steps:   steps,
		period:  period,
	}, nil
}

// Diagnose projects z, advances the balanced estimate over the diagnosis
// period, projects again, and returns the norm of the difference between
// the evolved state and its final projection.
func (d *Imbalance) Diagnose(z *state.State) (float64, error) {
	monitoring.Verbosef("imbalance: running initial projection")
	zBal, err := d.initial.Project(z)
	if err != nil {
		return 0, fmt.Errorf("initial projection: %w", err)
	}

	monitoring.Verbosef("imbalance: advancing %d steps (period %g)", d.steps, d.period)
	zEnd, err := d.model.Advance(zBal, d.steps)
	if err != nil {
		return 0, fmt.Errorf("diagnosis run: %w", err)
	}

	monitoring.Verbosef("imbalance: running final projection")
	zFin, err := d.final.Project(zEnd)
	if err != nil {
		return 0, fmt.Errorf("final projection: %w", err)
	}

	imb, err := zFin.NormOfDiff(zEnd)
	if err != nil {
		return 0, err
	}
	monitoring.Verbosef("imbalance: %.3e", imb)
	return imb, nil
}
