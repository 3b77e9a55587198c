package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/nanocall/internal/fault"
	"github.com/banshee-data/nanocall/internal/matrix"
	"github.com/banshee-data/nanocall/internal/testutil"
)

func viterbiWithPath() Options {
	o := DefaultOptions()
	o.WantPath = true
	return o
}

func TestAlignFollowsSequence(t *testing.T) {
	seq := testutil.RandomSequence(30, 21)
	m := testutil.TransducerPosterior(seq, 3, 1)

	score, path, err := Align(m, seq, viterbiWithPath())
	require.NoError(t, err)
	assert.Equal(t, float32(0), score)
	require.Len(t, path, m.Rows())
	for b, p := range path {
		assert.Equal(t, b/2, p, "block %d", b)
	}
}

func TestAlignLeavesGarbageUnaligned(t *testing.T) {
	seq := testutil.RandomSequence(20, 22)
	inner := testutil.TransducerPosterior(seq, 3, 0)

	garbage := make([]float32, inner.Cols())
	for i := range garbage {
		garbage[i] = testutil.Miss
	}
	rows := [][]float32{garbage, garbage}
	rows = append(rows, inner.Export()...)
	rows = append(rows, garbage, garbage, garbage)
	m, err := matrix.FromRows(rows)
	require.NoError(t, err)

	score, path, err := Align(m, seq, viterbiWithPath())
	require.NoError(t, err)
	assert.InDelta(t, -5*4, score, 1e-5)
	assert.Equal(t, []int{-1, -1, 0, 1}, path[:4])
	assert.Equal(t, []int{17, -1, -1, -1}, path[len(path)-4:])
}

func TestAlignForwardAtLeastViterbi(t *testing.T) {
	seq := testutil.RandomSequence(25, 23)
	m := testutil.RandomMatrix(60, 65, 23)

	vit, _, err := Align(m, seq, DefaultOptions())
	require.NoError(t, err)

	fwdOpts := DefaultOptions()
	fwdOpts.UseViterbi = false
	fwd, path, err := Align(m, seq, fwdOpts)
	require.NoError(t, err)
	assert.Nil(t, path)
	assert.GreaterOrEqual(t, fwd, vit)
}

func TestAlignWantPathNeedsViterbi(t *testing.T) {
	o := DefaultOptions()
	o.UseViterbi = false
	o.WantPath = true
	_, _, err := Align(testutil.RandomMatrix(5, 65, 1), "ACGTACGT", o)
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)
}

func TestAlignScoreMonotoneInPenalties(t *testing.T) {
	seq := testutil.RandomSequence(20, 24)
	m := testutil.RandomMatrix(50, 65, 24)

	set := map[string]func(o *Options, v float32){
		"stay":  func(o *Options, v float32) { o.StayPenalty = v },
		"skip":  func(o *Options, v float32) { o.SkipPenalty = v },
		"local": func(o *Options, v float32) { o.LocalPenalty = v },
	}
	for name, f := range set {
		t.Run(name, func(t *testing.T) {
			var last float32
			for i, v := range []float32{0, 0.5, 1, 3, 8} {
				o := Options{StayPenalty: 0.2, SkipPenalty: 0.2, LocalPenalty: 1, UseViterbi: true}
				f(&o, v)
				score, _, err := Align(m, seq, o)
				require.NoError(t, err)
				if i > 0 {
					assert.LessOrEqual(t, score, last)
				}
				last = score
			}
		})
	}
}

// corridor builds an explicit band of +/- margin positions around path.
func corridor(path []int, L, margin int) Band {
	nb := len(path)
	low, high := make([]int, nb), make([]int, nb)
	first, last := -1, -1
	for i, p := range path {
		if p < 0 {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
		low[i] = max(0, p-margin)
		high[i] = min(L, p+margin+1)
	}
	for i := 0; i < first; i++ {
		low[i], high[i] = 0, high[first]
	}
	for i := last + 1; i < nb; i++ {
		low[i], high[i] = low[last], L
	}
	return ExplicitBand(low, high)
}

func TestBandedViterbiMatchesUnbanded(t *testing.T) {
	for seed := int64(1); seed <= 8; seed++ {
		seq := testutil.RandomSequence(30, seed)
		m := testutil.RandomMatrix(70, 65, seed)
		L := len(seq) - 3 + 1

		full, path, err := Align(m, seq, viterbiWithPath())
		require.NoError(t, err)

		o := viterbiWithPath()
		o.Band = corridor(path, L, 2)
		banded, bandedPath, err := Align(m, seq, o)
		require.NoError(t, err)
		assert.Equal(t, full, banded, "seed %d", seed)
		assert.Equal(t, path, bandedPath, "seed %d", seed)

		o.Band = ScalarBand(float32(m.Rows()))
		wide, _, err := Align(m, seq, o)
		require.NoError(t, err)
		assert.Equal(t, full, wide, "seed %d", seed)
	}
}

func TestMalformedBandsRejected(t *testing.T) {
	seq := "ACGTACGTAC" // 8 positions for 3-mers
	m := testutil.RandomMatrix(3, 65, 2)

	tests := []struct {
		name string
		band Band
	}{
		{"low above high", ExplicitBand([]int{0, 3, 3}, []int{4, 2, 6})},
		{"low decreasing", ExplicitBand([]int{2, 1, 3}, []int{4, 5, 6})},
		{"high decreasing", ExplicitBand([]int{0, 1, 2}, []int{6, 5, 7})},
		{"high beyond sequence", ExplicitBand([]int{0, 1, 2}, []int{4, 5, 9})},
		{"negative low", ExplicitBand([]int{-1, 1, 2}, []int{4, 5, 6})},
		{"wrong length", ExplicitBand([]int{0, 1}, []int{4, 5})},
		{"negative width", ScalarBand(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, viterbi := range []bool{true, false} {
				o := DefaultOptions()
				o.UseViterbi = viterbi
				o.Band = tt.band
				_, _, err := Align(m, seq, o)
				assert.ErrorIs(t, err, fault.ErrInvalidBanding)
			}
		})
	}
}

func TestScalarBandBounds(t *testing.T) {
	low, high, err := ScalarBand(1).Bounds(4, 8)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 2, 4}, low)
	assert.Equal(t, []int{2, 4, 6, 8}, high)

	low, high, err = NoBand().Bounds(2, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0}, low)
	assert.Equal(t, []int{5, 5}, high)
	assert.True(t, NoBand().IsNone())
}

func TestAlignInputErrors(t *testing.T) {
	_, _, err := Align(testutil.RandomMatrix(4, 65, 3), "ACGNT", DefaultOptions())
	assert.ErrorIs(t, err, fault.ErrEncodingFailure)

	_, _, err = Align(testutil.RandomMatrix(4, 26, 3), "ACGT", DefaultOptions())
	assert.ErrorIs(t, err, fault.ErrUnrecognizedStateCount)

	_, _, err = Align(nil, "ACGT", DefaultOptions())
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)

	// A band that never admits the first position leaves nothing to align.
	o := DefaultOptions()
	o.Band = ExplicitBand([]int{1, 1, 1, 1}, []int{2, 2, 2, 2})
	_, _, err = Align(testutil.RandomMatrix(4, 65, 3), "ACGTACGT", o)
	assert.ErrorIs(t, err, fault.ErrDecodeFailure)
}
