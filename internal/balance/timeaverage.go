package balance

import (
	"fmt"
	"math"
	"sort"

	"github.com/gordi42/geobalance/internal/eigen"
	"github.com/gordi42/geobalance/internal/grid"
	"github.com/gordi42/geobalance/internal/monitoring"
	"github.com/gordi42/geobalance/internal/state"
)

// TimeAverageConfig parameterizes the time-average projector.
type TimeAverageConfig struct {
	// NAve is the number of successive averaging passes. Pass i averages
	// over the period of the i-th slowest wave frequency on the grid, so
	// each pass cancels one dominant frequency exactly while shortening
	// the window.
	NAve int `json:"n_ave"`
	// BackwardForward additionally averages over the backward trajectory
	// of each window. The symmetric average cancels the leading-order
	// drift of the balanced component that a forward-only average
	// retains, which is why this variant converges much further.
	BackwardForward bool `json:"backward_forward"`
	// MaxPeriod overrides the first window length. Zero derives the
	// window schedule from the wave periods in the eigenspace; a
	// positive value uses windows MaxPeriod/(i+1) instead.
	MaxPeriod float64 `json:"max_period"`
}

// TimeAverage estimates the balanced component of a state by averaging its
// nonlinear evolution over wave periods, the classical nonlinear
// normal-mode initialization. Averaging the trajectory over a wave period
// cancels the oscillatory component while leaving the slowly evolving
// balanced component largely intact.
type TimeAverage struct {
	model           Model
	backwardForward bool
	periods         []float64
}

// NewTimeAverage builds a time-average projector driving model. The
// averaging windows are the periods of the NAve slowest distinct wave
// frequencies of es, longest first, unless cfg.MaxPeriod overrides the
// schedule.
func NewTimeAverage(model Model, es *eigen.Eigenspace, cfg TimeAverageConfig) (*TimeAverage, error) {
	if cfg.NAve <= 0 {
		return nil, fmt.Errorf("%w: n_ave = %d must be positive", grid.ErrInvalidConfig, cfg.NAve)
	}
	if cfg.MaxPeriod < 0 || math.IsInf(cfg.MaxPeriod, 0) || math.IsNaN(cfg.MaxPeriod) {
		return nil, fmt.Errorf("%w: averaging window %g", grid.ErrInvalidConfig, cfg.MaxPeriod)
	}

	var periods []float64
	if cfg.MaxPeriod > 0 {
		for i := 0; i < cfg.NAve; i++ {
			periods = append(periods, cfg.MaxPeriod/float64(i+1))
		}
	} else {
		freqs := distinctFrequencies(es)
		if len(freqs) == 0 {
			return nil, fmt.Errorf("%w: eigenspace has no wave modes to set an averaging window", grid.ErrInvalidConfig)
		}
		for i := 0; i < cfg.NAve; i++ {
			if i < len(freqs) {
				periods = append(periods, 2*math.Pi/freqs[i])
				continue
			}
			// more passes than distinct frequencies: keep halving
			periods = append(periods, periods[len(periods)-1]/2)
		}
	}
	return &TimeAverage{
		model:           model,
		backwardForward: cfg.BackwardForward,
		periods:         periods,
	}, nil
}

// distinctFrequencies returns the positive wave frequencies of es in
// ascending order with near-duplicates collapsed.
func distinctFrequencies(es *eigen.Eigenspace) []float64 {
	all := make([]float64, 0, es.Grid().Size())
	for i := 0; i < es.Grid().Size(); i++ {
		if om := es.Omega(i); om > 0 {
			all = append(all, om)
		}
	}
	sort.Float64s(all)
	out := all[:0]
	for _, om := range all {
		if len(out) == 0 || om-out[len(out)-1] > 1e-9*om {
			out = append(out, om)
		}
	}
	return out
}

// Project returns the time-average balance estimate of z.
func (t *TimeAverage) Project(z *state.State) (*state.State, error) {
	cur := z
	for i, period := range t.periods {
		steps := int(math.Round(period / t.model.TimeStep()))
		if steps < 1 {
			steps = 1
		}
		monitoring.Verbosef("time average: pass %d/%d, window %.4g (%d steps)", i+1, len(t.periods), period, steps)

		fwd, err := t.model.AdvanceMean(cur, steps)
		if err != nil {
			return nil, fmt.Errorf("averaging pass %d forward: %w", i+1, err)
		}
		if !t.backwardForward {
			cur = fwd
			continue
		}
		bwd, err := t.model.AdvanceMean(cur, -steps)
		if err != nil {
			return nil, fmt.Errorf("averaging pass %d backward: %w", i+1, err)
		}
		if _, err := fwd.AddInPlace(bwd); err != nil {
			return nil, err
		}
		cur = fwd.ScaleInPlace(0.5)
	}
	if cur == z {
		cur = z.Copy()
	}
	return cur, nil
}
