// Package squiggle predicts the current a sequence should produce and
// aligns raw signal against that prediction.
//
// A squiggle has one row per kmer of the sequence holding the expected
// dwell (samples per kmer), mean current and current spread. Simulate
// builds one from a per-kmer parameter source; AlignSignal runs a
// per-sample Viterbi of a RawSignal window against it.
package squiggle

import (
	"github.com/banshee-data/nanocall/internal/fault"
)

// Encode returns the index of every kmer of seq, most significant base
// first with A=0, C=1, G=2, T=3. Lowercase bases are accepted.
func Encode(seq string, kmerLen int) ([]int, error) {
	const op = "squiggle.Encode"
	if kmerLen < 1 {
		return nil, fault.New(fault.KindInvalidArgument, op, "kmer length %d", kmerLen)
	}
	if len(seq) < kmerLen {
		return nil, fault.New(fault.KindEncodingFailure, op,
			"sequence of %d bases is shorter than kmer length %d", len(seq), kmerLen)
	}

	codes := make([]int, len(seq))
	for i := 0; i < len(seq); i++ {
		c, ok := baseCode(seq[i])
		if !ok {
			return nil, fault.New(fault.KindEncodingFailure, op,
				"symbol %q at position %d is not a base", seq[i], i)
		}
		codes[i] = c
	}

	mask := 1<<(2*kmerLen) - 1
	out := make([]int, len(seq)-kmerLen+1)
	idx := 0
	for i, c := range codes {
		idx = (idx<<2 | c) & mask
		if i >= kmerLen-1 {
			out[i-kmerLen+1] = idx
		}
	}
	return out, nil
}

func baseCode(c byte) (int, bool) {
	switch c {
	case 'A', 'a':
		return 0, true
	case 'C', 'c':
		return 1, true
	case 'G', 'g':
		return 2, true
	case 'T', 't':
		return 3, true
	}
	return 0, false
}
