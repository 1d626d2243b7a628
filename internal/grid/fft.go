package grid

import (
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// planCache pools per-axis FFT plans. A fourier.CmplxFFT carries internal
// scratch storage and is not safe for concurrent use, so each transform
// checks a full set of plans out of the pool.
type planCache struct {
	pool sync.Pool
}

type planSet struct {
	fft []*fourier.CmplxFFT
	buf [][]complex128
	out [][]complex128
}

func (c *planCache) init(n []int) {
	shape := append([]int(nil), n...)
	c.pool.New = func() interface{} {
		ps := &planSet{
			fft: make([]*fourier.CmplxFFT, len(shape)),
			buf: make([][]complex128, len(shape)),
			out: make([][]complex128, len(shape)),
		}
		for a, na := range shape {
			ps.fft[a] = fourier.NewCmplxFFT(na)
			ps.buf[a] = make([]complex128, na)
			ps.out[a] = make([]complex128, na)
		}
		return ps
	}
}

// Forward computes the multidimensional forward Fourier transform of src
// into dst. The transform is unnormalized; Inverse applies the 1/N scaling
// so that a forward/inverse round trip reproduces the input. dst and src
// must both have length Size and may alias.
func (g *Grid) Forward(dst, src []complex128) {
	g.transform(dst, src, false)
}

// Inverse computes the multidimensional inverse Fourier transform of src
// into dst, scaled by 1/Size.
func (g *Grid) Inverse(dst, src []complex128) {
	g.transform(dst, src, true)
	scale := complex(1/float64(g.size), 0)
	for i := range dst {
		dst[i] *= scale
	}
}

func (g *Grid) transform(dst, src []complex128, inverse bool) {
	if &dst[0] != &src[0] {
		copy(dst, src)
	}
	ps := g.plans.pool.Get().(*planSet)
	defer g.plans.pool.Put(ps)

	for a := range g.n {
		g.transformAxis(dst, a, ps, inverse)
	}
}

// transformAxis applies the 1D transform along one axis of the row-major
// array, gathering each line into a contiguous buffer.
func (g *Grid) transformAxis(data []complex128, axis int, ps *planSet, inverse bool) {
	n := g.n[axis]
	if n == 1 {
		return
	}
	stride := g.stride[axis]
	buf := ps.buf[axis]
	plan := ps.fft[axis]

	// Lines along the axis start at every flat index whose axis component
	// is zero.
	block := stride * n
	for base := 0; base < g.size; base += block {
		for off := 0; off < stride; off++ {
			start := base + off
			for j := 0; j < n; j++ {
				buf[j] = data[start+j*stride]
			}
			var out []complex128
			if inverse {
				out = plan.Sequence(ps.out[axis], buf)
			} else {
				out = plan.Coefficients(ps.out[axis], buf)
			}
			for j := 0; j < n; j++ {
				data[start+j*stride] = out[j]
			}
		}
	}
}
