// Package config loads balance-experiment scenarios from JSON files. The
// schema uses pointer fields so partial configs are safe: fields omitted
// from the JSON retain their defaults, which the Get* methods supply.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/gordi42/geobalance/internal/swm"
)

// Scenario describes one balance experiment: the model setup plus the
// projector and diagnostic parameters swept by the CLI.
type Scenario struct {
	// Model params
	Resolution   []int     `json:"resolution,omitempty"`
	DomainLength []float64 `json:"domain_length,omitempty"`
	F0           *float64  `json:"f0,omitempty"`
	Csqr         *float64  `json:"csqr,omitempty"`
	Ro           *float64  `json:"ro,omitempty"`
	Dt           *float64  `json:"dt,omitempty"`
	Nonlinear    *bool     `json:"enable_nonlinear,omitempty"`

	// Initial condition params
	JetAmplitude *float64 `json:"jet_amplitude,omitempty"`
	JetWidth     *float64 `json:"jet_width,omitempty"`
	NoiseStddev  *float64 `json:"noise_stddev,omitempty"`
	NoiseSeed    *int64   `json:"noise_seed,omitempty"`

	// Time-average projector params
	BackwardForward *bool    `json:"backward_forward,omitempty"`
	MaxPeriod       *float64 `json:"max_period,omitempty"`

	// Optimal balance params
	RampPeriod    *float64 `json:"ramp_period,omitempty"`
	RampType      *string  `json:"ramp_type,omitempty"`
	MaxIterations *int     `json:"max_iterations,omitempty"`
	StopTolerance *float64 `json:"stop_tolerance,omitempty"`

	// Diagnostic params
	DiagPeriod *float64 `json:"diag_period,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }
func ptrString(v string) *string    { return &v }

// DefaultScenario returns a scenario with every field set to its default.
func DefaultScenario() *Scenario {
	set := swm.DefaultSettings()
	return &Scenario{
		Resolution:      set.Resolution,
		DomainLength:    set.DomainLength,
		F0:              ptrFloat64(set.F0),
		Csqr:            ptrFloat64(set.Csqr),
		Ro:              ptrFloat64(set.Ro),
		Dt:              ptrFloat64(set.Dt),
		Nonlinear:       ptrBool(set.EnableNonlinear),
		JetAmplitude:    ptrFloat64(1.0),
		JetWidth:        ptrFloat64(0.05),
		NoiseStddev:     ptrFloat64(0),
		NoiseSeed:       ptrInt64(1),
		BackwardForward: ptrBool(true),
		MaxPeriod:       ptrFloat64(0),
		RampPeriod:      ptrFloat64(1.0),
		RampType:        ptrString("exp"),
		MaxIterations:   ptrInt(3),
		StopTolerance:   ptrFloat64(1e-9),
		DiagPeriod:      ptrFloat64(1.0),
	}
}

// LoadScenario loads a Scenario from a JSON file. Fields omitted from the
// file retain their defaults.
func LoadScenario(path string) (*Scenario, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("scenario file must have .json extension, got %q", ext)
	}
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat scenario file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("scenario file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	sc := &Scenario{}
	if err := json.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario JSON: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return sc, nil
}

// Validate checks the set fields for consistency. Model-level validation
// happens again in swm.Settings.Validate; this catches scenario-only
// problems early with file-oriented messages.
func (s *Scenario) Validate() error {
	if len(s.Resolution) != 0 && len(s.Resolution) != 2 {
		return fmt.Errorf("resolution must have two axes, got %d", len(s.Resolution))
	}
	if len(s.DomainLength) != 0 && len(s.DomainLength) != 2 {
		return fmt.Errorf("domain_length must have two axes, got %d", len(s.DomainLength))
	}
	if s.Dt != nil && *s.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %g", *s.Dt)
	}
	if s.DiagPeriod != nil && *s.DiagPeriod <= 0 {
		return fmt.Errorf("diag_period must be positive, got %g", *s.DiagPeriod)
	}
	if s.RampPeriod != nil && *s.RampPeriod <= 0 {
		return fmt.Errorf("ramp_period must be positive, got %g", *s.RampPeriod)
	}
	if s.MaxIterations != nil && *s.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", *s.MaxIterations)
	}
	if s.StopTolerance != nil && (*s.StopTolerance < 0 || math.IsNaN(*s.StopTolerance)) {
		return fmt.Errorf("stop_tolerance must be nonnegative, got %g", *s.StopTolerance)
	}
	if s.RampType != nil {
		switch *s.RampType {
		case "exp", "pow", "cos", "lin":
		default:
			return fmt.Errorf("ramp_type must be exp, pow, cos or lin, got %q", *s.RampType)
		}
	}
	return nil
}

// ModelSettings assembles swm settings from the scenario, falling back to
// model defaults for unset fields.
func (s *Scenario) ModelSettings() swm.Settings {
	set := swm.DefaultSettings()
	if len(s.Resolution) == 2 {
		set.Resolution = append([]int(nil), s.Resolution...)
	}
	if len(s.DomainLength) == 2 {
		set.DomainLength = append([]float64(nil), s.DomainLength...)
	}
	if s.F0 != nil {
		set.F0 = *s.F0
	}
	if s.Csqr != nil {
		set.Csqr = *s.Csqr
	}
	if s.Ro != nil {
		set.Ro = *s.Ro
	}
	if s.Dt != nil {
		set.Dt = *s.Dt
	}
	if s.Nonlinear != nil {
		set.EnableNonlinear = *s.Nonlinear
	}
	return set
}

// GetJetAmplitude returns the jet amplitude or the default.
func (s *Scenario) GetJetAmplitude() float64 {
	if s.JetAmplitude == nil {
		return 1.0
	}
	return *s.JetAmplitude
}

// GetJetWidth returns the relative jet width or the default.
func (s *Scenario) GetJetWidth() float64 {
	if s.JetWidth == nil {
		return 0.05
	}
	return *s.JetWidth
}

// GetNoiseStddev returns the noise amplitude or the default of zero,
// meaning no noise is added to the jet.
func (s *Scenario) GetNoiseStddev() float64 {
	if s.NoiseStddev == nil {
		return 0
	}
	return *s.NoiseStddev
}

// GetNoiseSeed returns the noise seed or the default.
func (s *Scenario) GetNoiseSeed() int64 {
	if s.NoiseSeed == nil {
		return 1
	}
	return *s.NoiseSeed
}

// GetBackwardForward returns the backward-forward flag or the default.
func (s *Scenario) GetBackwardForward() bool {
	if s.BackwardForward == nil {
		return true
	}
	return *s.BackwardForward
}

// GetMaxPeriod returns the averaging window override, zero meaning the
// schedule is derived from the eigenspace.
func (s *Scenario) GetMaxPeriod() float64 {
	if s.MaxPeriod == nil {
		return 0
	}
	return *s.MaxPeriod
}

// GetRampPeriod returns the optimal balance ramp period or the default.
func (s *Scenario) GetRampPeriod() float64 {
	if s.RampPeriod == nil {
		return 1.0
	}
	return *s.RampPeriod
}

// GetRampType returns the ramp shape name or the default.
func (s *Scenario) GetRampType() string {
	if s.RampType == nil {
		return "exp"
	}
	return *s.RampType
}

// GetMaxIterations returns the optimal balance iteration bound.
func (s *Scenario) GetMaxIterations() int {
	if s.MaxIterations == nil {
		return 3
	}
	return *s.MaxIterations
}

// GetStopTolerance returns the optimal balance stop tolerance.
func (s *Scenario) GetStopTolerance() float64 {
	if s.StopTolerance == nil {
		return 1e-9
	}
	return *s.StopTolerance
}

// GetDiagPeriod returns the diagnosis period or the default.
func (s *Scenario) GetDiagPeriod() float64 {
	if s.DiagPeriod == nil {
		return 1.0
	}
	return *s.DiagPeriod
}
