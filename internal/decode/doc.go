// Package decode turns score matrices into paths and basecalls.
//
// Two model families are supported. Transducer models score one stay state
// plus one state per kmer for every block; DecodeTransducer runs a
// semi-local Viterbi over kmer moves. CRF models score a 5x5 transition
// block over {A, C, G, T, blank} per block; DecodeCRF runs a global
// Viterbi and DecodeCRFReference is an independent oracle for it.
package decode

import "math"

// Path is a sequence of state indices produced by a decoder.
type Path []int

var negInf = float32(math.Inf(-1))

const bases = "ACGT"

func finite(x float32) bool {
	return !math.IsNaN(float64(x)) && !math.IsInf(float64(x), 0)
}
