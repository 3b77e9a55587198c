package scoring

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/nanocall/internal/fault"
	"github.com/banshee-data/nanocall/internal/matrix"
	"github.com/banshee-data/nanocall/internal/squiggle"
)

// PoreModel scores transducer states from a kmer table. Each block of
// Stride samples is summarised by its mean; kmers are weighted by the
// likelihood of that mean under their rescaled level, and the stay state
// takes a fixed share StayProb.
//
// TempWeight sharpens the kmer distribution and TempBias scales the stay
// log-odds.
type PoreModel struct {
	levels   []distuv.Normal
	stride   int
	stayProb float64
}

var _ Scorer = (*PoreModel)(nil)

// NewPoreModel builds a scorer from tbl.
func NewPoreModel(tbl *squiggle.KmerTable, stride int, stayProb float32) (*PoreModel, error) {
	const op = "scoring.NewPoreModel"
	if tbl == nil || stride < 1 || stayProb <= 0 || stayProb >= 1 {
		return nil, fault.New(fault.KindInvalidArgument, op,
			"need a table, stride >= 1 and stay probability in (0,1)")
	}
	k := tbl.KmerLength()
	all := make([]int, 1<<(2*k))
	for i := range all {
		all[i] = i
	}
	params, err := tbl.SquiggleParams(all, k, true)
	if err != nil {
		return nil, err
	}
	levels := make([]distuv.Normal, len(params))
	for i, p := range params {
		sd := float64(p.Stdev)
		if sd <= 0 {
			sd = 1e-3
		}
		levels[i] = distuv.Normal{Mu: float64(p.Mean), Sigma: sd}
	}
	return &PoreModel{levels: levels, stride: stride, stayProb: float64(stayProb)}, nil
}

// States returns the number of columns the scorer produces.
func (p *PoreModel) States() int { return len(p.levels) + 1 }

// Score implements Scorer.
func (p *PoreModel) Score(ctx context.Context, window []float32, opts Options) (*matrix.Matrix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nb := len(window) / p.stride
	nk := len(p.levels)
	m := matrix.New(nb, nk+1)

	logOdds := math.Log(p.stayProb / (1 - p.stayProb))
	stay := 1 / (1 + math.Exp(-float64(opts.TempBias)*logOdds))

	logits := make([]float64, nk)
	for b := 0; b < nb; b++ {
		block := window[b*p.stride : (b+1)*p.stride]
		var sum float64
		for _, x := range block {
			sum += float64(x)
		}
		mean := sum / float64(len(block))

		for k, d := range p.levels {
			logits[k] = float64(opts.TempWeight) * d.LogProb(mean)
		}
		norm := floats.LogSumExp(logits)

		row := m.Row(b)
		for k, l := range logits {
			row[k] = float32((1 - stay) * math.Exp(l-norm))
		}
		row[nk] = float32(stay)
	}

	if opts.UseLog {
		m.LogInPlace(opts.MinProb)
	}
	return m, nil
}
