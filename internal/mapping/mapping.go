// Package mapping aligns a transducer score matrix to a known sequence.
//
// Blocks are mapped onto positions of the sequence's kmer walk. Each block
// stays on its position, steps to the next, or skips one; leading and
// trailing blocks may be left unaligned at a per-block cost. Scores are
// either the Viterbi maximum, optionally with its path, or the forward
// log-sum over every alignment.
package mapping

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/nanocall/internal/fault"
	"github.com/banshee-data/nanocall/internal/matrix"
	"github.com/banshee-data/nanocall/internal/squiggle"
	"github.com/banshee-data/nanocall/internal/statespace"
)

// Options parameterise Align.
type Options struct {
	StayPenalty  float32
	SkipPenalty  float32
	LocalPenalty float32
	UseViterbi   bool
	WantPath     bool
	Band         Band
}

// DefaultOptions returns the penalties used by the mapper.
func DefaultOptions() Options {
	return Options{StayPenalty: 0, SkipPenalty: 0, LocalPenalty: 4, UseViterbi: true}
}

type move uint8

const (
	moveStay move = iota
	moveStep
	moveSkip
	moveEntry
)

var negInf = float32(math.Inf(-1))

// Align scores m against seq. With WantPath (Viterbi only) it also returns
// one entry per block: the position after the block, or -1 while unaligned.
// Bands are validated before any alignment work.
func Align(m *matrix.Matrix, seq string, opts Options) (float32, []int, error) {
	const op = "mapping.Align"
	if m == nil {
		return 0, nil, fault.New(fault.KindInvalidArgument, op, "nil score matrix")
	}
	if opts.WantPath && !opts.UseViterbi {
		return 0, nil, fault.New(fault.KindInvalidArgument, op, "a path needs Viterbi scoring")
	}
	props, err := statespace.Lookup(m.Cols())
	if err != nil {
		return 0, nil, err
	}
	if props.AlphabetSize != 4 {
		return 0, nil, fault.New(fault.KindInvalidArgument, op,
			"alphabet of %d symbols, want 4", props.AlphabetSize)
	}
	kmers, err := squiggle.Encode(seq, props.KmerLength)
	if err != nil {
		return 0, nil, err
	}

	nb, L := m.Rows(), len(kmers)
	low, high, err := opts.Band.Bounds(nb, L)
	if err != nil {
		return 0, nil, err
	}

	a := aligner{
		m: m, kmers: kmers, low: low, high: high,
		stay: props.NumKmers(), opts: opts,
	}
	score := a.run()
	if math.IsInf(float64(score), -1) || math.IsNaN(float64(score)) {
		return 0, nil, fault.New(fault.KindDecodeFailure, op,
			"no alignment of %d blocks to %d positions", nb, L)
	}
	if !opts.WantPath {
		return score, nil, nil
	}
	return score, a.traceback(), nil
}

type aligner struct {
	m         *matrix.Matrix
	kmers     []int
	low, high []int
	stay      int
	opts      Options

	// Viterbi traceback, per block over [low, high).
	moves      [][]move
	endEntered []bool
	finalInEnd bool
}

func (a *aligner) run() float32 {
	nb, L := a.m.Rows(), len(a.kmers)
	o := a.opts
	viterbi := o.UseViterbi
	if o.WantPath {
		a.moves = make([][]move, nb)
		a.endEntered = make([]bool, nb)
	}

	prev := make([]float32, L)
	curr := make([]float32, L)
	plo, phi := 0, 0
	at := func(p int) float32 {
		if p < plo || p >= phi {
			return negInf
		}
		return prev[p]
	}

	start, end := float32(0), negInf
	for i := 0; i < nb; i++ {
		post := a.m.Row(i)
		lo, hi := a.low[i], a.high[i]
		stayScore := post[a.stay] - o.StayPenalty

		var mv []move
		if a.moves != nil {
			mv = make([]move, hi-lo)
			a.moves[i] = mv
		}

		for p := lo; p < hi; p++ {
			emit := post[a.kmers[p]]
			stay := at(p) + stayScore
			step := at(p-1) + emit
			skip := at(p-2) + emit - o.SkipPenalty
			entry := negInf
			if p == 0 {
				entry = start + emit
			}

			if !viterbi {
				curr[p] = logAdd(logAdd(stay, step), logAdd(skip, entry))
				continue
			}
			best, how := stay, moveStay
			if step > best {
				best, how = step, moveStep
			}
			if skip > best {
				best, how = skip, moveSkip
			}
			if entry > best {
				best, how = entry, moveEntry
			}
			curr[p] = best
			if mv != nil {
				mv[p-lo] = how
			}
		}

		last := at(L - 1)
		if viterbi {
			if last >= end {
				end = last
				if a.endEntered != nil {
					a.endEntered[i] = true
				}
			}
		} else {
			end = logAdd(end, last)
		}
		end -= o.LocalPenalty
		start -= o.LocalPenalty

		prev, curr = curr, prev
		plo, phi = lo, hi
	}

	last := at(L - 1)
	if viterbi {
		a.finalInEnd = end > last
		if a.finalInEnd {
			return end
		}
		return last
	}
	return float32(floats.LogSumExp([]float64{float64(last), float64(end)}))
}

func (a *aligner) traceback() []int {
	nb, L := a.m.Rows(), len(a.kmers)
	path := make([]int, nb)
	for i := range path {
		path[i] = -1
	}

	inEnd := a.finalInEnd
	pos := L - 1
	for i := nb - 1; i >= 0; i-- {
		if inEnd {
			if a.endEntered[i] {
				inEnd = false
				pos = L - 1
			}
			continue
		}
		path[i] = pos
		switch a.moves[i][pos-a.low[i]] {
		case moveStep:
			pos--
		case moveSkip:
			pos -= 2
		case moveEntry:
			return path
		}
	}
	return path
}

func logAdd(a, b float32) float32 {
	if a < b {
		a, b = b, a
	}
	if math.IsInf(float64(b), -1) {
		return a
	}
	return a + float32(math.Log1p(math.Exp(float64(b-a))))
}
