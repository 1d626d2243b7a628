// Package initcond constructs initial states for balance experiments:
// geostrophically balanced jets, single polarized waves, masked wave
// packages and seeded random noise.
package initcond

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/gordi42/geobalance/internal/balance"
	"github.com/gordi42/geobalance/internal/eigen"
	"github.com/gordi42/geobalance/internal/grid"
	"github.com/gordi42/geobalance/internal/state"
)

// Jet returns a geostrophically balanced double jet: a positive zonal jet
// at three quarters of the meridional extent and a negative one at one
// quarter, each a Gaussian of the given relative width, projected onto the
// geostrophic eigenspace so the state starts on the linear balanced
// manifold.
func Jet(es *eigen.Eigenspace, amplitude, relWidth float64) (*state.State, error) {
	if amplitude <= 0 || relWidth <= 0 {
		return nil, fmt.Errorf("%w: jet amplitude %g and width %g must be positive", grid.ErrInvalidConfig, amplitude, relWidth)
	}
	g := es.Grid()
	z, err := state.New(g, es.Keys(), false)
	if err != nil {
		return nil, err
	}
	ly := g.DomainLength()[1]
	y := g.Mesh(1)
	width := relWidth * ly
	u := z.FieldAt(0).Data
	for i := range u {
		hi := math.Exp(-sqr(y[i]-0.75*ly) / sqr(width))
		lo := math.Exp(-sqr(y[i]-0.25*ly) / sqr(width))
		u[i] = complex(amplitude*(hi-lo), 0)
	}
	return balance.NewGeostrophicSpectral(es).Project(z)
}

func sqr(x float64) float64 { return x * x }

// Wave is a single polarized wave with its frequency and period.
type Wave struct {
	Z      *state.State
	Omega  float64
	Period float64
}

// SingleWave returns the real part of the mode-m eigenvector at the integer
// wavenumber indices k, as a unit-amplitude physical wave with the given
// phase. For wave modes Omega and Period are filled in; the geostrophic
// mode has zero frequency and an infinite period.
func SingleWave(es *eigen.Eigenspace, k []int, m eigen.Mode, phase float64) (*Wave, error) {
	g := es.Grid()
	n := g.Resolution()
	if len(k) != g.NDims() {
		return nil, fmt.Errorf("%w: %d wavenumber indices for a %d-dimensional grid", grid.ErrInvalidConfig, len(k), g.NDims())
	}
	flat := 0
	for a, ka := range k {
		idx := ((ka % n[a]) + n[a]) % n[a]
		flat = flat*n[a] + idx
	}

	z, err := state.New(g, es.Keys(), true)
	if err != nil {
		return nil, err
	}
	// Amplitude compensates the 1/size inverse-transform normalization so
	// the physical wave has order-one amplitude.
	amp := complex(float64(g.Size()), 0) * cis(phase)
	norm := 0.0
	for c := 0; c < es.NumComponents(); c++ {
		q := es.Eigenvector(m, c)[flat]
		norm = math.Max(norm, cmplxAbs(q))
	}
	if norm == 0 {
		return nil, fmt.Errorf("%w: mode has a zero eigenvector at wavenumber indices %v", eigen.ErrSingular, k)
	}
	for c := 0; c < es.NumComponents(); c++ {
		z.FieldAt(c).Data[flat] = es.Eigenvector(m, c)[flat] * amp / complex(norm, 0)
	}
	z = z.ToPhysical()

	w := &Wave{Z: z, Omega: es.Omega(flat), Period: math.Inf(1)}
	if m == eigen.Geostrophic {
		w.Omega = 0
	}
	if w.Omega > 0 {
		w.Period = 2 * math.Pi / w.Omega
	}
	return w, nil
}

func cis(phi float64) complex128 { return complex(math.Cos(phi), math.Sin(phi)) }

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

// WavePackage builds a localized wave: a single polarized wave multiplied
// by a Gaussian mask and re-projected onto the same mode so the masked
// state stays polarized. Axes with a nonpositive width are left unmasked.
func WavePackage(es *eigen.Eigenspace, k []int, m eigen.Mode, pos, width []float64) (*Wave, error) {
	g := es.Grid()
	if len(pos) != g.NDims() || len(width) != g.NDims() {
		return nil, fmt.Errorf("%w: mask needs %d positions and widths, got %d and %d",
			grid.ErrInvalidConfig, g.NDims(), len(pos), len(width))
	}
	w, err := SingleWave(es, k, m, 0)
	if err != nil {
		return nil, err
	}

	size := g.Size()
	mask := make([]float64, size)
	for i := range mask {
		mask[i] = 1
	}
	for a := 0; a < g.NDims(); a++ {
		if width[a] <= 0 {
			continue
		}
		x := g.Mesh(a)
		for i := range mask {
			mask[i] *= math.Exp(-sqr(x[i]-pos[a]) / sqr(width[a]))
		}
	}
	for c := 0; c < w.Z.NumFields(); c++ {
		d := w.Z.FieldAt(c).Data
		for i := range d {
			d[i] *= complex(mask[i], 0)
		}
	}

	z, err := balance.NewModeSpectral(es, m).Project(w.Z)
	if err != nil {
		return nil, err
	}
	// The mask spreads energy onto the conjugate branch; projecting back
	// onto one wave branch halves the amplitude, so scale it back up.
	if m != eigen.Geostrophic {
		z.ScaleInPlace(2)
	}
	w.Z = z
	return w, nil
}

// RandomNoise returns a physical state with seeded Gaussian noise of the
// given standard deviation in every component. Runs with equal seeds are
// reproducible.
func RandomNoise(g *grid.Grid, keys []string, seed int64, stddev float64) (*state.State, error) {
	if stddev <= 0 {
		return nil, fmt.Errorf("%w: noise stddev %g must be positive", grid.ErrInvalidConfig, stddev)
	}
	z, err := state.New(g, keys, false)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(seed))
	for c := 0; c < z.NumFields(); c++ {
		d := z.FieldAt(c).Data
		for i := range d {
			d[i] = complex(rng.NormFloat64()*stddev, 0)
		}
	}
	return z, nil
}
