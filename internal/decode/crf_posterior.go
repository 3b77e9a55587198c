package decode

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/nanocall/internal/fault"
	"github.com/banshee-data/nanocall/internal/matrix"
)

// CRFPosterior runs forward-backward over the CRF lattice and returns, for
// each block, the probability that A, C, G, T or blank is the state
// entering it, matching the entries of DecodeCRF's path. Each row sums to
// one.
func CRFPosterior(m *matrix.Matrix) (*matrix.Matrix, error) {
	const op = "decode.CRFPosterior"
	if err := checkCRF(op, m); err != nil {
		return nil, err
	}
	nb := m.Rows()
	out := matrix.New(nb, CRFStates)
	if nb == 0 {
		return out, nil
	}

	// fwd[b][s]: log-sum of prefixes through blocks [0,b) entering block b
	// in s. bwd[b][s]: log-sum of suffixes through blocks [b,nb) from s.
	fwd := make([][]float64, nb+1)
	bwd := make([][]float64, nb+1)
	terms := make([]float64, CRFStates)

	fwd[0] = make([]float64, CRFStates)
	for b := 0; b < nb; b++ {
		row := m.Row(b)
		fwd[b+1] = make([]float64, CRFStates)
		for to := 0; to < CRFStates; to++ {
			for from := 0; from < CRFStates; from++ {
				terms[from] = float64(row[crfIndex(to, from)]) + fwd[b][from]
			}
			fwd[b+1][to] = floats.LogSumExp(terms)
		}
	}

	bwd[nb] = make([]float64, CRFStates)
	for b := nb - 1; b >= 0; b-- {
		row := m.Row(b)
		bwd[b] = make([]float64, CRFStates)
		for from := 0; from < CRFStates; from++ {
			for to := 0; to < CRFStates; to++ {
				terms[to] = float64(row[crfIndex(to, from)]) + bwd[b+1][to]
			}
			bwd[b][from] = floats.LogSumExp(terms)
		}
	}

	logZ := floats.LogSumExp(fwd[nb])
	if math.IsNaN(logZ) || math.IsInf(logZ, 0) {
		return nil, fault.New(fault.KindDecodeFailure, op, "non-finite partition %v", logZ)
	}

	for b := 0; b < nb; b++ {
		r := out.Row(b)
		for s := 0; s < CRFStates; s++ {
			r[s] = float32(math.Exp(fwd[b][s] + bwd[b][s] - logZ))
		}
	}
	out.NormaliseRows()
	return out, nil
}
