// Package rawsignal holds a calibrated nanopore current trace and the
// conditioning steps applied before scoring: variance-based trimming of the
// open-pore and adapter regions, and median/MAD normalisation.
//
// Samples outside the active window are kept; trimming only moves the
// window bounds.
package rawsignal

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// MADScale converts a median absolute deviation into a standard deviation
// estimate for normally distributed data.
const MADScale = 1.4826

// Default trimming parameters.
const (
	DefaultStartGuard = 200
	DefaultEndGuard   = 10
	DefaultChunkSize  = 100
	DefaultVarThresh  = 0.0
)

// RawSignal is a calibrated trace with an active window [start, end).
type RawSignal struct {
	samples []float32
	start   int
	end     int
}

// New copies samples into a RawSignal whose window covers every sample.
func New(samples []float32) *RawSignal {
	s := make([]float32, len(samples))
	copy(s, samples)
	return &RawSignal{samples: s, start: 0, end: len(s)}
}

// NewWindow is New with an explicit window. Bounds are clamped so that
// 0 <= start <= end <= len(samples).
func NewWindow(samples []float32, start, end int) *RawSignal {
	r := New(samples)
	r.SetWindow(start, end)
	return r
}

// Calibrate converts raw ADC values into picoamps:
// (raw + offset) * (rng / digitisation).
func Calibrate(raw []int16, offset, rng, digitisation float32) []float32 {
	unit := rng / digitisation
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = (float32(v) + offset) * unit
	}
	return out
}

// Len returns the total number of samples, including trimmed ones.
func (r *RawSignal) Len() int { return len(r.samples) }

// Start returns the first sample of the active window.
func (r *RawSignal) Start() int { return r.start }

// End returns one past the last sample of the active window.
func (r *RawSignal) End() int { return r.end }

// Empty reports whether the active window holds no samples. An empty window
// is the normal outcome of trimming a trace with no usable signal.
func (r *RawSignal) Empty() bool { return r.start >= r.end }

// Window returns the active samples. The slice aliases the signal.
func (r *RawSignal) Window() []float32 { return r.samples[r.start:r.end] }

// Samples returns a copy of every sample.
func (r *RawSignal) Samples() []float32 {
	out := make([]float32, len(r.samples))
	copy(out, r.samples)
	return out
}

// SetWindow sets the active window, clamping to valid bounds.
func (r *RawSignal) SetWindow(start, end int) {
	n := len(r.samples)
	start = clamp(start, 0, n)
	end = clamp(end, 0, n)
	if start > end {
		start = end
	}
	r.start, r.end = start, end
}

// Trim locates the stable region of the trace and shrinks the window to it.
//
// The full sample record is split into chunks of chunkSize samples and the
// MAD of each is computed. Leading and trailing chunks whose MAD is at or
// below the varThresh quantile of all chunk MADs are dropped, then
// startGuard and endGuard samples are removed from the respective ends. If
// nothing remains the window becomes (0, 0). A chunkSize below 1 disables
// the variance analysis and keeps only the guards.
//
// The analysis always runs over every sample, so trimming is idempotent.
func (r *RawSignal) Trim(startGuard, endGuard, chunkSize int, varThresh float32) *RawSignal {
	n := len(r.samples)
	start, end := 0, n

	if chunkSize > 0 {
		nchunk := n / chunkSize
		end = nchunk * chunkSize
		if nchunk > 0 {
			mads := make([]float64, nchunk)
			for i := range mads {
				_, mad := medMAD(r.samples[i*chunkSize : (i+1)*chunkSize])
				mads[i] = mad
			}
			sorted := append([]float64(nil), mads...)
			sort.Float64s(sorted)
			thresh := stat.Quantile(clampf(float64(varThresh), 0, 1), stat.Empirical, sorted, nil)

			for i := 0; i < nchunk && mads[i] <= thresh; i++ {
				start += chunkSize
			}
			for i := nchunk; i > 0 && mads[i-1] <= thresh; i-- {
				end -= chunkSize
			}
		}
	}

	if startGuard < 0 {
		startGuard = 0
	}
	if endGuard < 0 {
		endGuard = 0
	}
	if n-start > startGuard {
		start += startGuard
	} else {
		start = n
	}
	if end > endGuard {
		end -= endGuard
	} else {
		end = 0
	}

	if start >= end {
		start, end = 0, 0
	}
	r.start, r.end = start, end
	return r
}

// TrimDefault trims with the default guards and chunking.
func (r *RawSignal) TrimDefault() *RawSignal {
	return r.Trim(DefaultStartGuard, DefaultEndGuard, DefaultChunkSize, DefaultVarThresh)
}

// Scale normalises the active window in place: x <- (x - median) / (MADScale * MAD).
// A zero MAD only shifts. Samples outside the window are untouched.
func (r *RawSignal) Scale() *RawSignal {
	w := r.Window()
	switch len(w) {
	case 0:
		return r
	case 1:
		w[0] = 0
		return r
	}

	med, mad := medMAD(w)
	scale := MADScale * mad
	if scale == 0 {
		scale = 1
	}
	for i, x := range w {
		w[i] = float32((float64(x) - med) / scale)
	}
	return r
}

// MedMAD returns the median and the (unscaled) median absolute deviation.
func MedMAD(x []float32) (median, mad float32) {
	m, d := medMAD(x)
	return float32(m), float32(d)
}

func medMAD(x []float32) (float64, float64) {
	if len(x) == 0 {
		return 0, 0
	}
	buf := make([]float64, len(x))
	for i, v := range x {
		buf[i] = float64(v)
	}
	sort.Float64s(buf)
	med := stat.Quantile(0.5, stat.Empirical, buf, nil)

	for i, v := range buf {
		d := v - med
		if d < 0 {
			d = -d
		}
		buf[i] = d
	}
	sort.Float64s(buf)
	return med, stat.Quantile(0.5, stat.Empirical, buf, nil)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
