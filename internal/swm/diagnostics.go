package swm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/gordi42/geobalance/internal/state"
)

// Energy holds domain-mean energy densities of a shallow-water state.
// The scaling follows the nondimensional equations: the kinetic part
// carries the squared Rossby number, the full layer depth is csqr + Ro h.
type Energy struct {
	Kinetic   float64
	Potential float64
	Total     float64
}

// MeanEnergy computes the domain-mean energy of z. The state may be in
// either representation; a physical copy is made as needed.
func (m *Model) MeanEnergy(z *state.State) (Energy, error) {
	u, v, h, err := m.physicalComponents(z)
	if err != nil {
		return Energy{}, err
	}
	ro := m.set.Ro
	csq := m.set.Csqr
	n := float64(len(u))
	var ekin, epot float64
	for i := range u {
		depth := csq + ro*h[i]
		ekin += 0.5 * ro * ro * depth * (u[i]*u[i] + v[i]*v[i])
		epot += 0.5 * depth * depth
	}
	return Energy{
		Kinetic:   ekin / n,
		Potential: epot / n,
		Total:     (ekin + epot) / n,
	}, nil
}

// Vorticity returns the relative vorticity dv/dx - du/dy as a physical
// field.
func (m *Model) Vorticity(z *state.State) (*state.Field, error) {
	zs := z
	if !zs.Spectral() {
		zs = z.Copy().ToSpectral()
	}
	if zs.Grid() != m.g {
		return nil, fmt.Errorf("%w: state grid differs from model grid", state.ErrDimensionMismatch)
	}
	us := zs.Field("u").Data
	vs := zs.Field("v").Data
	out := state.NewField(m.g, "vorticity", false)
	tmp := m.spec[0]
	for i := range tmp {
		tmp[i] = complex(0, m.kx[i])*vs[i] - complex(0, m.ky[i])*us[i]
	}
	m.g.Inverse(out.Data, tmp)
	for i := range out.Data {
		out.Data[i] = complex(real(out.Data[i]), 0)
	}
	return out, nil
}

// PotentialVorticity returns (f + Ro zeta) / (csqr + Ro h), the quantity
// materially conserved by the nonlinear dynamics.
func (m *Model) PotentialVorticity(z *state.State) (*state.Field, error) {
	zeta, err := m.Vorticity(z)
	if err != nil {
		return nil, err
	}
	_, _, h, err := m.physicalComponents(z)
	if err != nil {
		return nil, err
	}
	ro := m.set.Ro
	out := state.NewField(m.g, "pv", false)
	for i := range out.Data {
		depth := m.set.Csqr + ro*h[i]
		out.Data[i] = complex((m.set.F0+ro*real(zeta.Data[i]))/depth, 0)
	}
	return out, nil
}

// MaxCFL returns the advective CFL number max(|u|,|v|) * Ro * dt / dx.
// Values approaching one flag an unstable configuration before the
// integrator reports ErrUnstable.
func (m *Model) MaxCFL(z *state.State) (float64, error) {
	u, v, _, err := m.physicalComponents(z)
	if err != nil {
		return 0, err
	}
	speed := math.Max(floats.Norm(u, math.Inf(1)), floats.Norm(v, math.Inf(1)))
	dx := math.Min(m.g.Spacing(0), m.g.Spacing(1))
	return speed * m.set.Ro * m.set.Dt / dx, nil
}

// physicalComponents returns real-valued u, v, h slices for z, converting
// a spectral state without mutating the input.
func (m *Model) physicalComponents(z *state.State) (u, v, h []float64, err error) {
	if z.Grid() != m.g {
		return nil, nil, nil, fmt.Errorf("%w: state grid differs from model grid", state.ErrDimensionMismatch)
	}
	zp := z
	if zp.Spectral() {
		zp = z.Copy().ToPhysical()
	}
	return zp.Field("u").Real(), zp.Field("v").Real(), zp.Field("h").Real(), nil
}
