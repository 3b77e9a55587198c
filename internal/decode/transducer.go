package decode

import (
	"github.com/banshee-data/nanocall/internal/fault"
	"github.com/banshee-data/nanocall/internal/matrix"
	"github.com/banshee-data/nanocall/internal/statespace"
)

// TransducerOptions are the move penalties for DecodeTransducer.
type TransducerOptions struct {
	StayPenalty  float32
	SkipPenalty  float32
	LocalPenalty float32
	AllowSlip    bool
}

// DefaultTransducerOptions returns the penalties used by the basecaller.
func DefaultTransducerOptions() TransducerOptions {
	return TransducerOptions{StayPenalty: 0, SkipPenalty: 0, LocalPenalty: 2}
}

type move uint8

const (
	moveStay move = iota
	moveStep
	moveSkip
	moveSlip
	moveReset
)

// DecodeTransducer finds the best-scoring kmer path through m, whose last
// column is the stay state and whose remaining columns are kmers over ACGT.
//
// Every block either stays, steps one base, skips two bases, slips from the
// best kmer (AllowSlip only), or restarts at -LocalPenalty. Trailing blocks
// may be absorbed by an end state at a one-off cost of LocalPenalty. Ties
// prefer stay, step, skip, slip, then reset; among predecessors the lowest
// kmer wins. The end state is entered as late as possible.
//
// The returned path has Rows()+1 entries. Entry b is the kmer occupied after
// block b, or the stay index (Cols()-1) when block b stayed or was excluded.
func DecodeTransducer(m *matrix.Matrix, opts TransducerOptions) (Path, float32, error) {
	const op = "decode.DecodeTransducer"
	if m == nil {
		return nil, 0, fault.New(fault.KindInvalidArgument, op, "nil score matrix")
	}
	props, err := statespace.Lookup(m.Cols())
	if err != nil {
		return nil, 0, err
	}
	if props.AlphabetSize != 4 {
		return nil, 0, fault.New(fault.KindInvalidArgument, op,
			"alphabet of %d symbols, want 4", props.AlphabetSize)
	}

	nb := m.Rows()
	nk := props.NumKmers()
	stay := nk
	if nb == 0 {
		return Path{stay}, 0, nil
	}
	stepStride := nk / 4
	skipStride := nk / 16

	prev := make([]float32, nk)
	curr := make([]float32, nk)
	moves := make([]move, (nb+1)*nk)
	preds := make([]int32, (nb+1)*nk)
	endFrom := make([]int32, nb+1)
	endFrom[0] = -1
	endScore := negInf

	for b := 1; b <= nb; b++ {
		post := m.Row(b - 1)
		stayScore := post[stay] - opts.StayPenalty

		bestPrevK := argmax(prev)
		bestPrev := prev[bestPrevK]

		endFrom[b] = -1
		if cand := bestPrev - opts.LocalPenalty; cand >= endScore {
			endScore = cand
			endFrom[b] = int32(bestPrevK)
		}

		for k := 0; k < nk; k++ {
			off := b*nk + k
			score := prev[k] + stayScore
			mv, pred := moveStay, k

			first := k / 4
			for j := 0; j < 4; j++ {
				from := first + j*stepStride
				if s := prev[from] + post[k]; s > score {
					score, mv, pred = s, moveStep, from
				}
			}

			if skipStride > 0 {
				first = k / 16
				for j := 0; j < 16; j++ {
					from := first + j*skipStride
					if s := prev[from] + post[k] - opts.SkipPenalty; s > score {
						score, mv, pred = s, moveSkip, from
					}
				}
			}

			if opts.AllowSlip {
				if s := bestPrev + post[k] - 2*opts.SkipPenalty; s > score {
					score, mv, pred = s, moveSlip, bestPrevK
				}
			}

			if s := post[k] - opts.LocalPenalty; s > score {
				score, mv, pred = s, moveReset, -1
			}

			curr[k] = score
			moves[off] = mv
			preds[off] = int32(pred)
		}
		prev, curr = curr, prev
	}

	lastK := argmax(prev)
	best := prev[lastK]
	inEnd := endScore > best
	if inEnd {
		best = endScore
	}
	if !finite(best) {
		return nil, 0, fault.New(fault.KindDecodeFailure, op, "non-finite score %v", best)
	}

	path := make(Path, nb+1)
	state := lastK
	for b := nb; b >= 0; b-- {
		if inEnd {
			path[b] = stay
			if endFrom[b] >= 0 {
				state = int(endFrom[b])
				inEnd = false
			}
			continue
		}
		if b == 0 {
			path[0] = state
			break
		}

		off := b*nk + state
		switch moves[off] {
		case moveStay:
			path[b] = stay
		case moveReset:
			path[b] = state
			for i := 0; i < b; i++ {
				path[i] = stay
			}
			return path, best, nil
		default:
			path[b] = state
		}
		state = int(preds[off])
	}

	return path, best, nil
}

func argmax(x []float32) int {
	best := 0
	for i := 1; i < len(x); i++ {
		if x[i] > x[best] {
			best = i
		}
	}
	return best
}
