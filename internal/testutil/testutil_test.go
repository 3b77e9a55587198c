package testutil

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssertHelpers(t *testing.T) {
	fakeT := &testing.T{}
	AssertNoError(fakeT, nil)
	AssertError(fakeT, errors.New("boom"))
	assert.False(t, fakeT.Failed())
}

func TestRandomSequenceDeterministic(t *testing.T) {
	a := RandomSequence(50, 3)
	assert.Equal(t, a, RandomSequence(50, 3))
	assert.Len(t, a, 50)
	assert.NotContains(t, a, "N")
}

func TestKmerIndices(t *testing.T) {
	assert.Equal(t, []int{0b00011011, 0b01101100}, KmerIndices("ACGTA", 4))
	assert.Nil(t, KmerIndices("AC", 3))
	assert.Panics(t, func() { KmerIndices("ANA", 2) })
}

func TestTransducerPosteriorShape(t *testing.T) {
	m := TransducerPosterior("ACGTAC", 3, 2)
	assert.Equal(t, 4*3, m.Rows())
	assert.Equal(t, 65, m.Cols())
	assert.Equal(t, Hit, m.At(0, 0b000110))
	assert.Equal(t, Hit, m.At(1, 64))
}

func TestCRFScores(t *testing.T) {
	m := CRFScores([]int{0, 4, 1})
	assert.Equal(t, 2, m.Rows())
	assert.Equal(t, Hit, m.At(0, CRFIndex(4, 0)))
	assert.Equal(t, Hit, m.At(1, CRFIndex(1, 4)))
	assert.Equal(t, Miss, m.At(1, CRFIndex(1, 0)))
	assert.Equal(t, 0, CRFScores(nil).Rows())
}

func TestRandomMatrixRowsAreDistributions(t *testing.T) {
	m := RandomMatrix(4, 7, 1)
	for i := 0; i < m.Rows(); i++ {
		var sum float64
		for _, v := range m.Row(i) {
			sum += math.Exp(float64(v))
		}
		assert.InDelta(t, 1, sum, 1e-5)
	}
}
