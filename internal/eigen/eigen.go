// Package eigen builds the per-wavenumber eigen-decomposition of the
// linearized dynamics: one zero-frequency geostrophic mode and a pair of
// inertia-gravity wave modes at every wavenumber, together with the dual
// vectors needed for oblique projection.
package eigen

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/gordi42/geobalance/internal/grid"
	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when the linearized operator at some wavenumber
// cannot be diagonalized into the expected mode structure. This should not
// happen for physically valid parameters; it is detected rather than letting
// NaNs propagate silently.
var ErrSingular = errors.New("eigen: singular eigenspace")

// Mode indexes the eigenpairs at a wavenumber.
type Mode int

const (
	// Geostrophic is the zero-frequency balanced mode.
	Geostrophic Mode = iota
	// WavePlus is the positive-frequency inertia-gravity mode.
	WavePlus
	// WaveMinus is the negative-frequency inertia-gravity mode.
	WaveMinus

	numModes
)

// Pairs holds the raw eigenpairs of the linearized operator at one
// wavenumber, as produced by a Variant. Q are the eigenvectors; P are the
// unnormalized dual vectors (the eigenvectors under the variant's energy
// weighting). Omega is the nonnegative wave frequency; the wave modes have
// eigenvalues -i*Omega and +i*Omega, the geostrophic mode eigenvalue zero.
type Pairs struct {
	Omega float64
	Q     [numModes][]complex128
	P     [numModes][]complex128
}

// Variant defines the linearized dynamics of one model family: its component
// list, its analytic eigenpairs, and the assembled operator matrix used to
// verify them.
type Variant interface {
	// Keys returns the state component names in order.
	Keys() []string
	// Eigenpairs returns the eigenpairs at wavenumber k. Degenerate modes
	// may be returned as zero vectors; they are dropped from projections.
	Eigenpairs(k []float64) Pairs
	// Operator returns the linearized operator matrix A at wavenumber k,
	// such that dz/dt = A z for the spectral coefficient vector z.
	Operator(k []float64) *mat.CDense
}

// Eigenspace caches the eigenpairs for every wavenumber of a grid. It is
// built eagerly once and read-only afterwards, so it may be shared across
// concurrent projections without locking.
type Eigenspace struct {
	grid *grid.Grid
	keys []string

	// omega[i] is the wave frequency at flat spectral index i.
	omega []float64
	// q[m][c] and p[m][c] hold eigenvector and dual component c of mode m
	// over all flat spectral indices. The duals are normalized so that
	// sum_c q[m][c][i]*conj(p[m][c][i]) equals 1 (or 0 for degenerate
	// modes).
	q [numModes][][]complex128
	p [numModes][][]complex128
}

// residualTol bounds the acceptable relative residual of A q = lambda q in
// the verification pass.
const residualTol = 1e-8

// Build constructs the eigenspace of a variant on a grid, verifying every
// eigenpair against the assembled operator matrix.
func Build(g *grid.Grid, v Variant) (*Eigenspace, error) {
	keys := v.Keys()
	nc := len(keys)
	size := g.Size()

	es := &Eigenspace{
		grid:  g,
		keys:  append([]string(nil), keys...),
		omega: make([]float64, size),
	}
	for m := Mode(0); m < numModes; m++ {
		es.q[m] = make([][]complex128, nc)
		es.p[m] = make([][]complex128, nc)
		for c := 0; c < nc; c++ {
			es.q[m][c] = make([]complex128, size)
			es.p[m][c] = make([]complex128, size)
		}
	}

	k := make([]float64, g.NDims())
	for i := 0; i < size; i++ {
		k = g.WavenumberAt(i, k)
		pairs := v.Eigenpairs(k)
		if len(pairs.Q[Geostrophic]) != nc {
			return nil, fmt.Errorf("%w: variant returned %d components at k=%v, want %d",
				ErrSingular, len(pairs.Q[Geostrophic]), k, nc)
		}
		if err := normalize(&pairs, k); err != nil {
			return nil, err
		}
		if err := verify(v.Operator(k), &pairs, k); err != nil {
			return nil, err
		}
		es.omega[i] = pairs.Omega
		for m := Mode(0); m < numModes; m++ {
			for c := 0; c < nc; c++ {
				es.q[m][c][i] = pairs.Q[m][c]
				es.p[m][c][i] = pairs.P[m][c]
			}
		}
	}
	return es, nil
}

// normalize scales the dual vectors so that <q, p> = 1 per mode. Modes with
// a vanishing eigenvector are zeroed out entirely so that projections drop
// them; a vanishing pairing with a nonvanishing eigenvector is a genuine
// defect of the eigenspace.
func normalize(pairs *Pairs, k []float64) error {
	const tiny = 1e-30
	for m := Mode(0); m < numModes; m++ {
		q, p := pairs.Q[m], pairs.P[m]
		qn := 0.0
		var d complex128
		for c := range q {
			qn += real(q[c])*real(q[c]) + imag(q[c])*imag(q[c])
			d += q[c] * cmplx.Conj(p[c])
		}
		if qn < tiny {
			for c := range p {
				p[c] = 0
			}
			continue
		}
		if cmplx.Abs(d) < tiny*qn {
			return fmt.Errorf("%w: mode %d at k=%v has vanishing dual pairing",
				ErrSingular, m, k)
		}
		inv := 1 / cmplx.Conj(d)
		for c := range p {
			p[c] *= inv
		}
	}
	return nil
}

// verify checks A q = lambda q for each mode against the assembled operator
// and the biorthogonality of the dual set.
func verify(a *mat.CDense, pairs *Pairs, k []float64) error {
	nc, _ := a.Dims()
	scale := operatorScale(a)

	for m := Mode(0); m < numModes; m++ {
		q := pairs.Q[m]
		lambda := complex(0, 0)
		switch m {
		case WavePlus:
			lambda = complex(0, -pairs.Omega)
		case WaveMinus:
			lambda = complex(0, pairs.Omega)
		}
		qn := 0.0
		for c := range q {
			qn += cmplx.Abs(q[c]) * cmplx.Abs(q[c])
		}
		if qn == 0 {
			continue
		}
		qn = math.Sqrt(qn)
		for r := 0; r < nc; r++ {
			var av complex128
			for c := 0; c < nc; c++ {
				av += a.At(r, c) * q[c]
			}
			res := cmplx.Abs(av - lambda*q[r])
			if res > residualTol*(scale+math.Abs(real(lambda))+math.Abs(imag(lambda)))*qn {
				return fmt.Errorf("%w: mode %d at k=%v fails A q = lambda q (residual %g)",
					ErrSingular, m, k, res)
			}
		}
	}

	// Biorthogonality: <q_s, p_t> must vanish for s != t whenever both
	// modes are present.
	for s := Mode(0); s < numModes; s++ {
		for t := Mode(0); t < numModes; t++ {
			if s == t {
				continue
			}
			var d complex128
			for c := range pairs.Q[s] {
				d += pairs.Q[s][c] * cmplx.Conj(pairs.P[t][c])
			}
			if cmplx.Abs(d) > residualTol {
				return fmt.Errorf("%w: modes %d and %d at k=%v are not biorthogonal (<q,p> = %g)",
					ErrSingular, s, t, k, cmplx.Abs(d))
			}
		}
	}
	return nil
}

func operatorScale(a *mat.CDense) float64 {
	r, c := a.Dims()
	m := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := cmplx.Abs(a.At(i, j)); v > m {
				m = v
			}
		}
	}
	return m
}

// Grid returns the grid the eigenspace was built for.
func (es *Eigenspace) Grid() *grid.Grid { return es.grid }

// Keys returns the component names in order.
func (es *Eigenspace) Keys() []string { return append([]string(nil), es.keys...) }

// NumComponents returns the dimension of the local state space.
func (es *Eigenspace) NumComponents() int { return len(es.keys) }

// Omega returns the wave frequency at flat spectral index i.
func (es *Eigenspace) Omega(i int) float64 { return es.omega[i] }

// Eigenvector returns the component-c eigenvector array of mode m over all
// flat spectral indices. The returned slice is shared and must not be
// modified.
func (es *Eigenspace) Eigenvector(m Mode, c int) []complex128 { return es.q[m][c] }

// Dual returns the component-c dual vector array of mode m. The returned
// slice is shared and must not be modified.
func (es *Eigenspace) Dual(m Mode, c int) []complex128 { return es.p[m][c] }

// MinWaveFrequency returns the smallest nonzero wave frequency on the grid.
// Its period is the longest wave period present, which sets the first
// averaging window of the time-average projector.
func (es *Eigenspace) MinWaveFrequency() float64 {
	min := math.Inf(1)
	for _, om := range es.omega {
		if om > 0 && om < min {
			min = om
		}
	}
	return min
}

// MaxWaveFrequency returns the largest wave frequency on the grid.
func (es *Eigenspace) MaxWaveFrequency() float64 {
	max := 0.0
	for _, om := range es.omega {
		if om > max {
			max = om
		}
	}
	return max
}
