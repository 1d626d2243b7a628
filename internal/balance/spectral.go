package balance

import (
	"fmt"

	"github.com/gordi42/geobalance/internal/eigen"
	"github.com/gordi42/geobalance/internal/state"
)

// GeostrophicSpectral projects a state onto the geostrophic eigenspace.
// At every wavenumber the local coefficient vector is projected onto
// the span of the geostrophic eigenvector with the oblique-projection
// formula: the coefficient is the inner product against the dual vector
// of the same mode. The projection is exact for the linear dynamics.
type GeostrophicSpectral struct {
	es *eigen.Eigenspace
}

// NewGeostrophicSpectral returns the linear balance projector for es.
func NewGeostrophicSpectral(es *eigen.Eigenspace) *GeostrophicSpectral {
	return &GeostrophicSpectral{es: es}
}

// Project returns the geostrophic component of z in z's representation.
func (p *GeostrophicSpectral) Project(z *state.State) (*state.State, error) {
	return projectModes(p.es, z, []eigen.Mode{eigen.Geostrophic})
}

// WaveSpectral projects a state onto the span of the two inertia-gravity
// wave eigenvectors. Together with GeostrophicSpectral it decomposes a
// state completely: geostrophic part plus wave part reproduces the input.
type WaveSpectral struct {
	es *eigen.Eigenspace
}

// NewWaveSpectral returns the wave-component projector for es.
func NewWaveSpectral(es *eigen.Eigenspace) *WaveSpectral {
	return &WaveSpectral{es: es}
}

// Project returns the wave component of z in z's representation.
func (p *WaveSpectral) Project(z *state.State) (*state.State, error) {
	return projectModes(p.es, z, []eigen.Mode{eigen.WavePlus, eigen.WaveMinus})
}

// ModeSpectral projects onto a single eigenmode. Initial-condition code
// uses it to polarize a masked wave onto one mode branch.
type ModeSpectral struct {
	es   *eigen.Eigenspace
	mode eigen.Mode
}

// NewModeSpectral returns the projector onto mode m of es.
func NewModeSpectral(es *eigen.Eigenspace, m eigen.Mode) *ModeSpectral {
	return &ModeSpectral{es: es, mode: m}
}

// Project returns the mode-m component of z in z's representation.
func (p *ModeSpectral) Project(z *state.State) (*state.State, error) {
	return projectModes(p.es, z, []eigen.Mode{p.mode})
}

func projectModes(es *eigen.Eigenspace, z *state.State, modes []eigen.Mode) (*state.State, error) {
	if z.Grid() != es.Grid() {
		return nil, fmt.Errorf("%w: state grid differs from eigenspace grid", state.ErrDimensionMismatch)
	}
	keys := es.Keys()
	got := z.Keys()
	if len(got) != len(keys) {
		return nil, fmt.Errorf("%w: state has %d components, eigenspace %d", state.ErrDimensionMismatch, len(got), len(keys))
	}
	for i := range keys {
		if got[i] != keys[i] {
			return nil, fmt.Errorf("%w: state variables %v, want %v", state.ErrDimensionMismatch, got, keys)
		}
	}

	wasSpectral := z.Spectral()
	zs := z
	if !wasSpectral {
		zs = z.Copy().ToSpectral()
	}

	out := zs.Zeros()
	nc := es.NumComponents()
	size := es.Grid().Size()
	coef := make([]complex128, size)
	for _, m := range modes {
		for i := range coef {
			coef[i] = 0
		}
		for c := 0; c < nc; c++ {
			d := es.Dual(m, c)
			src := zs.FieldAt(c).Data
			for i := 0; i < size; i++ {
				p := d[i]
				coef[i] += src[i] * complex(real(p), -imag(p))
			}
		}
		for c := 0; c < nc; c++ {
			q := es.Eigenvector(m, c)
			dst := out.FieldAt(c).Data
			for i := 0; i < size; i++ {
				dst[i] += coef[i] * q[i]
			}
		}
	}

	if !wasSpectral {
		out = out.ToPhysical()
	}
	return out, nil
}
