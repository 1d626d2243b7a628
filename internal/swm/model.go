package swm

import (
	"errors"
	"fmt"
	"math"

	"github.com/gordi42/geobalance/internal/grid"
	"github.com/gordi42/geobalance/internal/state"
)

// ErrUnstable reports that time stepping produced a nonfinite state. The
// wrapped message names the offending step so sweep logs show how far a
// run got before blowing up.
var ErrUnstable = errors.New("swm: numerical instability")

// Keys lists the prognostic variables in state order.
var Keys = []string{"u", "v", "h"}

// Model is a pseudo-spectral rotating shallow-water model. A Model is not
// safe for concurrent Advance calls; clone it per worker instead.
type Model struct {
	set Settings
	g   *grid.Grid

	kx, ky []float64
	mask   []float64 // 2/3-rule dealias mask, 1 or 0 per spectral index

	// nonlinScale multiplies the advective terms on top of the Rossby
	// number. Balancing ramps it from 0 to 1 to morph the linear model
	// into the full one.
	nonlinScale float64

	// scratch buffers reused across steps
	phys [7][]complex128 // u, v, h, ux, uy, vx, vy in physical space
	spec [2][]complex128
}

// New builds a model from validated settings.
func New(set Settings) (*Model, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}
	g, err := grid.New(set.Resolution, set.DomainLength)
	if err != nil {
		return nil, err
	}
	m := &Model{
		set:         set,
		g:           g,
		kx:          g.WavenumberMesh(0),
		ky:          g.WavenumberMesh(1),
		nonlinScale: 1.0,
	}
	m.mask = dealiasMask(g)
	for i := range m.phys {
		m.phys[i] = make([]complex128, g.Size())
	}
	for i := range m.spec {
		m.spec[i] = make([]complex128, g.Size())
	}
	return m, nil
}

// dealiasMask implements the 2/3 rule: modes with any integer wavenumber
// index above N/3 are zeroed in the nonlinear tendency so quadratic products
// cannot alias back onto resolved modes.
func dealiasMask(g *grid.Grid) []float64 {
	n := g.Resolution()
	mask := make([]float64, g.Size())
	kx := g.WavenumberMesh(0)
	ky := g.WavenumberMesh(1)
	l := g.DomainLength()
	// cutoff in physical wavenumber units per axis
	cutX := 2.0 * math.Pi / l[0] * float64(n[0]) / 3.0
	cutY := 2.0 * math.Pi / l[1] * float64(n[1]) / 3.0
	for i := range mask {
		if math.Abs(kx[i]) <= cutX && math.Abs(ky[i]) <= cutY {
			mask[i] = 1.0
		}
	}
	return mask
}

// Grid returns the model grid. States passed to Advance must live on it.
func (m *Model) Grid() *grid.Grid { return m.g }

// Settings returns a copy of the model settings.
func (m *Model) Settings() Settings { return m.set }

// TimeStep returns the step size used by Advance.
func (m *Model) TimeStep() float64 { return m.set.Dt }

// NewState allocates a zero physical state with the model's variables.
func (m *Model) NewState() *state.State {
	z, err := state.New(m.g, Keys, false)
	if err != nil {
		panic(err) // Keys is a valid constant key set
	}
	return z
}

// SetNonlinearScale sets the factor multiplying the advective terms.
// Values outside [0, 1] are clamped.
func (m *Model) SetNonlinearScale(s float64) {
	m.nonlinScale = math.Min(math.Max(s, 0), 1)
}

// NonlinearScale returns the current advective-term factor.
func (m *Model) NonlinearScale() float64 { return m.nonlinScale }

// Advance integrates z over the given number of steps and returns the
// result in the same representation as the input. Negative steps integrate
// backward in time by flipping the sign of the time step; the nonlinear
// terms make backward-then-forward only approximately the identity. The
// input state is not modified.
func (m *Model) Advance(z0 *state.State, steps int) (*state.State, error) {
	end, _, err := m.run(z0, steps, false, nil)
	return end, err
}

// AdvanceMean integrates like Advance but returns the time mean of the
// trajectory, both endpoints included. The time-average balance projector
// uses it to cancel wave oscillations over a window.
func (m *Model) AdvanceMean(z0 *state.State, steps int) (*state.State, error) {
	_, mean, err := m.run(z0, steps, true, nil)
	return mean, err
}

// AdvanceRamped integrates like Advance while setting the nonlinear scale
// to ramp(n/steps) before step n, keeping the multistep history continuous
// across the ramp. The scale in effect before the call is restored on
// return.
func (m *Model) AdvanceRamped(z0 *state.State, steps int, ramp func(float64) float64) (*state.State, error) {
	end, _, err := m.run(z0, steps, false, ramp)
	return end, err
}

func (m *Model) run(z0 *state.State, steps int, wantMean bool, ramp func(float64) float64) (*state.State, *state.State, error) {
	if z0.Grid() != m.g {
		return nil, nil, fmt.Errorf("%w: state grid differs from model grid", state.ErrDimensionMismatch)
	}
	if got := z0.Keys(); len(got) != len(Keys) || got[0] != "u" || got[1] != "v" || got[2] != "h" {
		return nil, nil, fmt.Errorf("%w: state variables %v, want %v", state.ErrDimensionMismatch, got, Keys)
	}
	dt := m.set.Dt
	if steps < 0 {
		dt = -dt
		steps = -steps
	}
	wasSpectral := z0.Spectral()
	z := z0.Copy()
	if !wasSpectral {
		z = z.ToSpectral()
	}
	var mean *state.State
	if wantMean {
		mean = z.Copy()
	}
	if ramp != nil {
		defer m.SetNonlinearScale(m.nonlinScale)
	}

	// Adams-Bashforth 3 with Euler and AB2 startup. Tendency history is
	// restarted on every call, so runs are reproducible regardless of
	// what the model integrated before.
	var f1, f2 *state.State
	for n := 0; n < steps; n++ {
		if ramp != nil {
			m.nonlinScale = ramp(float64(n) / float64(steps))
		}
		f := m.tendency(z)
		switch {
		case f2 != nil:
			z.AddScaledInPlace(dt*23.0/12.0, f)
			z.AddScaledInPlace(dt*-16.0/12.0, f1)
			z.AddScaledInPlace(dt*5.0/12.0, f2)
		case f1 != nil:
			z.AddScaledInPlace(dt*1.5, f)
			z.AddScaledInPlace(dt*-0.5, f1)
		default:
			z.AddScaledInPlace(dt, f)
		}
		f2, f1 = f1, f
		if !z.IsFinite() {
			return nil, nil, fmt.Errorf("%w at step %d of %d (dt = %g)", ErrUnstable, n+1, steps, dt)
		}
		if wantMean {
			mean.AddInPlace(z)
		}
	}

	if wantMean {
		mean.ScaleInPlace(1.0 / float64(steps+1))
	}
	if !wasSpectral {
		z = z.ToPhysical()
		if wantMean {
			mean = mean.ToPhysical()
		}
	}
	return z, mean, nil
}

// tendency evaluates dz/dt for a spectral state z. The linear part is
// pointwise in spectral space; the advective part round-trips through
// physical space and is dealiased on the way back.
func (m *Model) tendency(z *state.State) *state.State {
	f0 := complex(m.set.F0, 0)
	csq := m.set.Csqr

	us := z.Field("u").Data
	vs := z.Field("v").Data
	hs := z.Field("h").Data

	dz := z.Zeros()
	du := dz.Field("u").Data
	dv := dz.Field("v").Data
	dh := dz.Field("h").Data

	for i := range du {
		ikx := complex(0, m.kx[i])
		iky := complex(0, m.ky[i])
		du[i] = f0*vs[i] - ikx*hs[i]
		dv[i] = -f0*us[i] - iky*hs[i]
		dh[i] = complex(-csq, 0) * (ikx*us[i] + iky*vs[i])
	}

	ro := m.set.Ro * m.nonlinScale
	if m.set.EnableNonlinear && ro > 0 {
		m.addAdvection(us, vs, hs, du, dv, dh, ro)
	}
	return dz
}

// addAdvection adds -Ro (u.grad)u to the velocity tendencies and the flux
// divergence -Ro div(h u) to the height tendency.
func (m *Model) addAdvection(us, vs, hs, du, dv, dh []complex128, ro float64) {
	u, v, h := m.phys[0], m.phys[1], m.phys[2]
	ux, uy := m.phys[3], m.phys[4]
	vx, vy := m.phys[5], m.phys[6]
	tmp, spec := m.spec[0], m.spec[1]

	m.g.Inverse(u, us)
	m.g.Inverse(v, vs)
	m.g.Inverse(h, hs)
	m.derivative(ux, us, m.kx, tmp)
	m.derivative(uy, us, m.ky, tmp)
	m.derivative(vx, vs, m.kx, tmp)
	m.derivative(vy, vs, m.ky, tmp)

	r := complex(ro, 0)

	// -Ro (u ux + v uy) -> du
	for i := range tmp {
		tmp[i] = -r * (u[i]*ux[i] + v[i]*uy[i])
	}
	m.g.Forward(spec, tmp)
	for i := range du {
		du[i] += complex(m.mask[i], 0) * spec[i]
	}

	// -Ro (u vx + v vy) -> dv
	for i := range tmp {
		tmp[i] = -r * (u[i]*vx[i] + v[i]*vy[i])
	}
	m.g.Forward(spec, tmp)
	for i := range dv {
		dv[i] += complex(m.mask[i], 0) * spec[i]
	}

	// -Ro div(h u): transform the fluxes, differentiate spectrally.
	for i := range tmp {
		tmp[i] = h[i] * u[i]
	}
	m.g.Forward(spec, tmp)
	for i := range dh {
		dh[i] -= complex(m.mask[i], 0) * r * complex(0, m.kx[i]) * spec[i]
	}
	for i := range tmp {
		tmp[i] = h[i] * v[i]
	}
	m.g.Forward(spec, tmp)
	for i := range dh {
		dh[i] -= complex(m.mask[i], 0) * r * complex(0, m.ky[i]) * spec[i]
	}
}

// derivative writes the physical-space derivative of the spectral field src
// along the axis with wavenumber mesh k.
func (m *Model) derivative(dst, src []complex128, k []float64, tmp []complex128) {
	for i := range tmp {
		tmp[i] = complex(0, k[i]) * src[i]
	}
	m.g.Inverse(dst, tmp)
}
