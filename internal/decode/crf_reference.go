package decode

import (
	"github.com/banshee-data/nanocall/internal/fault"
	"github.com/banshee-data/nanocall/internal/matrix"
)

// DecodeCRFReference decodes the same model as DecodeCRF from a gonum
// export of m, keeping the full score lattice and an explicit traceback
// table. It is slower and exists to check DecodeCRF.
func DecodeCRFReference(m *matrix.Matrix) (Path, float32, error) {
	const op = "decode.DecodeCRFReference"
	if err := checkCRF(op, m); err != nil {
		return nil, 0, err
	}
	nb := m.Rows()
	if nb == 0 {
		return Path{}, 0, nil
	}
	d := m.Dense(false)

	// lattice[b+1][s] is the best score of a path ending in s after block b.
	lattice := make([][]float32, nb+1)
	traceback := make([][]int, nb)
	lattice[0] = make([]float32, CRFStates)

	for b := 0; b < nb; b++ {
		lattice[b+1] = make([]float32, CRFStates)
		traceback[b] = make([]int, CRFStates)
		for to := 0; to < CRFStates; to++ {
			bestFrom := -1
			var best float32
			for from := 0; from < CRFStates; from++ {
				s := float32(d.At(b, crfIndex(to, from))) + lattice[b][from]
				if bestFrom < 0 || s > best {
					best, bestFrom = s, from
				}
			}
			lattice[b+1][to] = best
			traceback[b][to] = bestFrom
		}
	}

	final := lattice[nb]
	state := 0
	for s := 1; s < CRFStates; s++ {
		if final[s] > final[state] {
			state = s
		}
	}
	score := final[state]
	if !finite(score) {
		return nil, 0, fault.New(fault.KindDecodeFailure, op, "non-finite score %v", score)
	}

	// states[b] is the state entering block b; states[nb] is dropped.
	states := make([]int, nb+1)
	states[nb] = state
	for b := nb; b > 0; b-- {
		states[b-1] = traceback[b-1][states[b]]
	}
	path := Path(states[:nb])
	return path, score, nil
}
