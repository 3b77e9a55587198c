package decode

import (
	"strings"

	"github.com/banshee-data/nanocall/internal/fault"
	"github.com/banshee-data/nanocall/internal/matrix"
)

// CRF state layout.
const (
	CRFStates = 5
	CRFBlank  = 4
	CRFCols   = CRFStates * CRFStates
)

// crfIndex is the column of the to <- from transition within a block. Column
// 0 holds blank -> blank.
func crfIndex(to, from int) int {
	return (to*CRFStates + from + 1) % CRFCols
}

func checkCRF(op string, m *matrix.Matrix) error {
	if m == nil {
		return fault.New(fault.KindInvalidArgument, op, "nil score matrix")
	}
	if m.Cols() != CRFCols {
		return fault.New(fault.KindInvalidArgument, op,
			"%d columns per block, want %d", m.Cols(), CRFCols)
	}
	return nil
}

// DecodeCRF returns the highest-scoring state sequence through m and its
// score. Entry b of the path is the state entering block b; the state left
// after the last block is not part of the path. Ties go to the lowest
// from-state and, at the end, the lowest final state.
func DecodeCRF(m *matrix.Matrix) (Path, float32, error) {
	const op = "decode.DecodeCRF"
	if err := checkCRF(op, m); err != nil {
		return nil, 0, err
	}
	nb := m.Rows()
	if nb == 0 {
		return Path{}, 0, nil
	}

	var prev, curr [CRFStates]float32
	tb := make([]int8, nb*CRFStates)

	for b := 0; b < nb; b++ {
		row := m.Row(b)
		for to := 0; to < CRFStates; to++ {
			best := row[crfIndex(to, 0)] + prev[0]
			arg := 0
			for from := 1; from < CRFStates; from++ {
				if s := row[crfIndex(to, from)] + prev[from]; s > best {
					best, arg = s, from
				}
			}
			curr[to] = best
			tb[b*CRFStates+to] = int8(arg)
		}
		prev = curr
	}

	state := argmax(prev[:])
	score := prev[state]
	if !finite(score) {
		return nil, 0, fault.New(fault.KindDecodeFailure, op, "non-finite score %v", score)
	}

	path := make(Path, nb)
	for b := nb - 1; b >= 0; b-- {
		state = int(tb[b*CRFStates+state])
		path[b] = state
	}
	return path, score, nil
}

// CRFPathToBasecall drops blank entries and renders the rest as bases.
func CRFPathToBasecall(path Path) string {
	var sb strings.Builder
	for _, s := range path {
		if s >= 0 && s < CRFBlank {
			sb.WriteByte(bases[s])
		}
	}
	return sb.String()
}

// CRFPositions returns, per entry, the number of bases emitted so far.
func CRFPositions(path Path) []int {
	pos := make([]int, len(path))
	n := 0
	for i, s := range path {
		if s >= 0 && s < CRFBlank {
			n++
		}
		pos[i] = n
	}
	return pos
}
