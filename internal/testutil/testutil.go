// Package testutil provides shared test fixtures: synthetic score matrices
// for the decoders and aligners, random sequences, and small assertion
// helpers.
package testutil

import (
	"math"
	"math/rand"
	"testing"

	"github.com/banshee-data/nanocall/internal/matrix"
)

// Default log scores for the preferred and every other state.
const (
	Hit  = float32(0)
	Miss = float32(-13.8155) // log(1e-6)
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// RandomSequence returns n bases drawn uniformly from ACGT.
func RandomSequence(n int, seed int64) string {
	rng := rand.New(rand.NewSource(seed))
	b := make([]byte, n)
	for i := range b {
		b[i] = "ACGT"[rng.Intn(4)]
	}
	return string(b)
}

// KmerIndices encodes every kmer of seq, most significant base first.
// Non-ACGT symbols panic.
func KmerIndices(seq string, k int) []int {
	if len(seq) < k {
		return nil
	}
	out := make([]int, len(seq)-k+1)
	for i := range out {
		idx := 0
		for _, c := range []byte(seq[i : i+k]) {
			idx = idx*4 + baseIndex(c)
		}
		out[i] = idx
	}
	return out
}

func baseIndex(c byte) int {
	switch c {
	case 'A':
		return 0
	case 'C':
		return 1
	case 'G':
		return 2
	case 'T':
		return 3
	}
	panic("testutil: base " + string(c))
}

// TransducerPosterior builds a log-domain transducer matrix that favours
// walking through the kmers of seq: one block per kmer, each followed by
// stays blocks favouring the stay state (last column).
func TransducerPosterior(seq string, k, stays int) *matrix.Matrix {
	kmers := KmerIndices(seq, k)
	nk := 1 << (2 * k)
	m := matrix.New(len(kmers)*(1+stays), nk+1)
	b := 0
	for _, km := range kmers {
		fillRow(m.Row(b), km)
		b++
		for s := 0; s < stays; s++ {
			fillRow(m.Row(b), nk)
			b++
		}
	}
	return m
}

func fillRow(row []float32, hit int) {
	for j := range row {
		row[j] = Miss
	}
	row[hit] = Hit
}

// CRFIndex is the column of the to <- from transition within a CRF block.
func CRFIndex(to, from int) int { return (to*5 + from + 1) % 25 }

// CRFScores builds a CRF matrix of len(states)-1 blocks whose best path
// visits states in order: block b rewards states[b] -> states[b+1].
func CRFScores(states []int) *matrix.Matrix {
	if len(states) == 0 {
		return matrix.New(0, 25)
	}
	m := matrix.New(len(states)-1, 25)
	for b := 0; b < m.Rows(); b++ {
		row := m.Row(b)
		for j := range row {
			row[j] = Miss
		}
		row[CRFIndex(states[b+1], states[b])] = Hit
	}
	return m
}

// RandomMatrix fills a rows x cols matrix with log-probabilities of a
// random categorical distribution per row.
func RandomMatrix(rows, cols int, seed int64) *matrix.Matrix {
	rng := rand.New(rand.NewSource(seed))
	m := matrix.New(rows, cols)
	for i := 0; i < rows; i++ {
		row := m.Row(i)
		for j := range row {
			row[j] = float32(rng.ExpFloat64())
		}
	}
	m.NormaliseRows()
	for i := 0; i < rows; i++ {
		row := m.Row(i)
		for j, p := range row {
			row[j] = float32(math.Log(float64(p)))
		}
	}
	return m
}
