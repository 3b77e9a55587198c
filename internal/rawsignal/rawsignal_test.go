package rawsignal

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noisyTrace builds a trace with a flat open-pore prefix and suffix and a
// noisy strand region in between.
func noisyTrace(flatHead, body, flatTail int, seed int64) []float32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float32, 0, flatHead+body+flatTail)
	for i := 0; i < flatHead; i++ {
		out = append(out, 220)
	}
	for i := 0; i < body; i++ {
		out = append(out, 90+float32(rng.NormFloat64()*12))
	}
	for i := 0; i < flatTail; i++ {
		out = append(out, 220)
	}
	return out
}

func TestNewCopiesSamples(t *testing.T) {
	in := []float32{1, 2, 3}
	r := New(in)
	in[0] = 99

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 0, r.Start())
	assert.Equal(t, 3, r.End())
	assert.Equal(t, []float32{1, 2, 3}, r.Samples())
}

func TestCalibrate(t *testing.T) {
	got := Calibrate([]int16{0, 10, -4}, 4, 100, 50)
	assert.InDeltaSlice(t, []float32{8, 28, 0}, got, 1e-6)
}

func TestTrimAllZeroIsEmpty(t *testing.T) {
	r := New(make([]float32, 500))
	r.TrimDefault()

	assert.True(t, r.Empty())
	assert.Equal(t, 0, r.Start())
	assert.Equal(t, 0, r.End())
	assert.Empty(t, r.Window())
}

func TestTrimDropsQuietChunks(t *testing.T) {
	r := New(noisyTrace(300, 2000, 300, 1))
	r.Trim(0, 0, 100, 0.1)

	assert.Equal(t, 300, r.Start())
	assert.Equal(t, 2300, r.End())
}

func TestTrimGuards(t *testing.T) {
	r := New(noisyTrace(300, 2000, 300, 2))
	r.Trim(200, 10, 100, 0.1)

	assert.Equal(t, 500, r.Start())
	assert.Equal(t, 2290, r.End())
}

func TestTrimIsIdempotent(t *testing.T) {
	r := New(noisyTrace(300, 2000, 250, 3))
	r.TrimDefault()
	first := [2]int{r.Start(), r.End()}

	r.TrimDefault()
	assert.Equal(t, first, [2]int{r.Start(), r.End()})
}

func TestTrimGuardLargerThanSignal(t *testing.T) {
	r := New(noisyTrace(0, 150, 0, 4))
	r.Trim(200, 10, 100, 0)

	assert.True(t, r.Empty())
}

func TestTrimWithoutChunking(t *testing.T) {
	r := New(noisyTrace(0, 100, 0, 5))
	r.Trim(5, 5, 0, 0)

	assert.Equal(t, 5, r.Start())
	assert.Equal(t, 95, r.End())
}

func TestScaleNormalisesWindow(t *testing.T) {
	r := NewWindow(noisyTrace(0, 1001, 0, 6), 0, 1001)
	r.Scale()

	med, mad := MedMAD(r.Window())
	assert.InDelta(t, 0, med, 1e-5)
	assert.InDelta(t, 1, MADScale*mad, 1e-4)
}

func TestScaleIsNearIdempotent(t *testing.T) {
	r := New(noisyTrace(0, 800, 0, 7))
	r.Scale()
	once := append([]float32(nil), r.Window()...)

	r.Scale()
	assert.InDeltaSlice(t, once, r.Window(), 1e-4)
}

func TestScaleLeavesOutsideWindow(t *testing.T) {
	samples := noisyTrace(0, 50, 0, 8)
	r := NewWindow(samples, 10, 40)
	r.Scale()

	all := r.Samples()
	assert.Equal(t, samples[:10], all[:10])
	assert.Equal(t, samples[40:], all[40:])
}

func TestScaleEdgeCases(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		r := New(nil)
		r.Scale()
		assert.Equal(t, 0, r.Len())
	})
	t.Run("single sample", func(t *testing.T) {
		r := New([]float32{42})
		r.Scale()
		assert.Equal(t, []float32{0}, r.Window())
	})
	t.Run("zero mad shifts only", func(t *testing.T) {
		r := New([]float32{5, 5, 5, 7})
		r.Scale()
		assert.Equal(t, []float32{0, 0, 0, 2}, r.Window())
	})
}

func TestScaleOutputFinite(t *testing.T) {
	r := New(noisyTrace(100, 500, 100, 9))
	r.TrimDefault().Scale()
	require.False(t, r.Empty())
	for _, x := range r.Window() {
		require.False(t, math.IsNaN(float64(x)) || math.IsInf(float64(x), 0))
	}
}

func TestSetWindowClamps(t *testing.T) {
	r := New(make([]float32, 10))
	r.SetWindow(-3, 20)
	assert.Equal(t, 0, r.Start())
	assert.Equal(t, 10, r.End())

	r.SetWindow(8, 4)
	assert.Equal(t, 4, r.Start())
	assert.Equal(t, 4, r.End())
}
