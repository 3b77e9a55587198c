package squiggle

import (
	"math"

	"github.com/banshee-data/nanocall/internal/fault"
	"github.com/banshee-data/nanocall/internal/matrix"
	"github.com/banshee-data/nanocall/internal/models"
)

// Squiggle is the expected signal of a sequence, one row per kmer.
type Squiggle struct {
	Seq     string
	KmerLen int
	Rows    []Params
}

// Len returns the number of rows.
func (s *Squiggle) Len() int { return len(s.Rows) }

// Simulate predicts the squiggle of seq under model using src for the
// per-kmer parameters. The result has len(seq)-k+1 rows.
func Simulate(seq string, model models.SquiggleModel, src ParamSource, rescale bool) (*Squiggle, error) {
	const op = "squiggle.Simulate"
	k := model.KmerLength()
	if k == 0 {
		return nil, fault.New(fault.KindUnrecognizedModel, op, "model %s", model)
	}
	if src == nil {
		return nil, fault.New(fault.KindInvalidArgument, op, "no parameter source")
	}
	encoded, err := Encode(seq, k)
	if err != nil {
		return nil, err
	}
	rows, err := src.SquiggleParams(encoded, k, rescale)
	if err != nil {
		return nil, err
	}
	if len(rows) != len(encoded) {
		return nil, fault.New(fault.KindEncodingFailure, op,
			"parameter source returned %d rows for %d kmers", len(rows), len(encoded))
	}
	return &Squiggle{Seq: seq, KmerLen: k, Rows: rows}, nil
}

// Signal expands the squiggle into a noiseless trace: each row's mean
// repeated round(dwell) times, at least once.
func (s *Squiggle) Signal() []float32 {
	var out []float32
	for _, r := range s.Rows {
		n := int(math.Round(float64(r.Dwell)))
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			out = append(out, r.Mean)
		}
	}
	return out
}

// Matrix exports the squiggle as a rows x 3 matrix of (dwell, mean, stdev).
func (s *Squiggle) Matrix() *matrix.Matrix {
	m := matrix.New(len(s.Rows), 3)
	for i, r := range s.Rows {
		row := m.Row(i)
		row[0], row[1], row[2] = r.Dwell, r.Mean, r.Stdev
	}
	return m
}
