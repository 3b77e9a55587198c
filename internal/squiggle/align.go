package squiggle

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/nanocall/internal/fault"
	"github.com/banshee-data/nanocall/internal/rawsignal"
)

// SignalOptions parameterise AlignSignal.
type SignalOptions struct {
	BackProb     float32 // probability of moving back one row
	LocalPenalty float32 // per-sample cost of leaving a sample unaligned
	SkipPenalty  float32 // extra cost of skipping a row
	MinScore     float32 // emissions are floored at -MinScore
}

// DefaultSignalOptions returns the options used by the mapper.
func DefaultSignalOptions() SignalOptions {
	return SignalOptions{BackProb: 0, LocalPenalty: 2, SkipPenalty: 5000, MinScore: 5}
}

const minStdev = 1e-3

var negInf = float32(math.Inf(-1))

type sigMove uint8

const (
	sigStay sigMove = iota
	sigStep
	sigSkip
	sigBack
	sigEntry
)

// AlignSignal aligns the active window of raw against sq, one sample at a
// time. Samples may be left unaligned before the first row (START) or after
// the last (END) at LocalPenalty each. Within the squiggle each sample stays
// on its row, steps to the next, skips one row, or moves back one row with
// probability BackProb. rate scales the expected dwell of every row.
//
// path has one entry per sample of raw: the squiggle row explaining it, or
// -1 for samples outside the window or left in START or END.
func AlignSignal(raw *rawsignal.RawSignal, rate float32, sq *Squiggle, opts SignalOptions) (float32, []int, error) {
	const op = "squiggle.AlignSignal"
	switch {
	case raw == nil || sq == nil:
		return 0, nil, fault.New(fault.KindInvalidArgument, op, "nil signal or squiggle")
	case !(rate > 0):
		return 0, nil, fault.New(fault.KindInvalidArgument, op, "rate %v must be positive", rate)
	case opts.BackProb < 0 || opts.BackProb >= 1:
		return 0, nil, fault.New(fault.KindInvalidArgument, op, "back probability %v outside [0,1)", opts.BackProb)
	}

	x := raw.Window()
	n, nr := len(x), sq.Len()
	path := make([]int, raw.Len())
	for i := range path {
		path[i] = -1
	}
	if nr == 0 {
		return 0, nil, fault.New(fault.KindDecodeFailure, op, "empty squiggle")
	}

	fwdLog := float32(math.Log1p(-float64(opts.BackProb)))
	backLog := negInf
	if opts.BackProb > 0 {
		backLog = float32(math.Log(float64(opts.BackProb)))
	}
	stayCost := make([]float32, nr)
	stepCost := make([]float32, nr)
	dists := make([]distuv.Normal, nr)
	for r, p := range sq.Rows {
		d := float64(p.Dwell / rate)
		stayCost[r] = fwdLog + float32(math.Log(d/(1+d)))
		stepCost[r] = fwdLog + float32(-math.Log1p(d))
		sd := float64(p.Stdev)
		if sd < minStdev {
			sd = minStdev
		}
		dists[r] = distuv.Normal{Mu: float64(p.Mean), Sigma: sd}
	}
	floor := -opts.MinScore

	prev := make([]float32, nr)
	curr := make([]float32, nr)
	for r := range prev {
		prev[r] = negInf
	}
	start, end := float32(0), negInf

	moves := make([]sigMove, n*nr)
	endEntered := make([]bool, n)

	for i, xi := range x {
		nextStart := start - opts.LocalPenalty
		nextEnd := end - opts.LocalPenalty
		if e := prev[nr-1] - opts.LocalPenalty; e >= nextEnd {
			nextEnd = e
			endEntered[i] = true
		}

		mv := moves[i*nr : (i+1)*nr]
		for r := 0; r < nr; r++ {
			best, how := prev[r]+stayCost[r], sigStay
			if r >= 1 {
				if s := prev[r-1] + stepCost[r-1]; s > best {
					best, how = s, sigStep
				}
			}
			if r >= 2 {
				if s := prev[r-2] + stepCost[r-2] - opts.SkipPenalty; s > best {
					best, how = s, sigSkip
				}
			}
			if r+1 < nr {
				if s := prev[r+1] + backLog; s > best {
					best, how = s, sigBack
				}
			}
			if r == 0 && start > best {
				best, how = start, sigEntry
			}

			em := float32(dists[r].LogProb(float64(xi)))
			if em < floor || math.IsNaN(float64(em)) {
				em = floor
			}
			curr[r] = best + em
			mv[r] = how
		}
		prev, curr = curr, prev
		start, end = nextStart, nextEnd
	}

	last := prev[nr-1]
	score := last
	inEnd := end > last
	if inEnd {
		score = end
	}
	if math.IsInf(float64(score), -1) || math.IsNaN(float64(score)) {
		return 0, nil, fault.New(fault.KindDecodeFailure, op,
			"no alignment of %d samples through %d rows", n, nr)
	}

	state := nr - 1
	off := raw.Start()
	for i := n - 1; i >= 0; i-- {
		if inEnd {
			if endEntered[i] {
				inEnd = false
				state = nr - 1
			}
			continue
		}
		path[off+i] = state
		switch moves[i*nr+state] {
		case sigStep:
			state--
		case sigSkip:
			state -= 2
		case sigBack:
			state++
		case sigEntry:
			return score, path, nil
		}
	}
	return score, path, nil
}

// PathToBasecall returns the part of seq covered by the rows visited in
// path: from the first base of the lowest visited row to the last base of
// the highest.
func PathToBasecall(seq string, kmerLen int, path []int) (string, error) {
	const op = "squiggle.PathToBasecall"
	rows := len(seq) - kmerLen + 1
	lo, hi := -1, -1
	for i, r := range path {
		if r < 0 {
			continue
		}
		if r >= rows {
			return "", fault.New(fault.KindInvalidArgument, op,
				"entry %d visits row %d of %d", i, r, rows)
		}
		if lo < 0 || r < lo {
			lo = r
		}
		if r > hi {
			hi = r
		}
	}
	if lo < 0 {
		return "", nil
	}
	return seq[lo : hi+kmerLen], nil
}
