package squiggle

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"

	"github.com/banshee-data/nanocall/internal/decode"
	"github.com/banshee-data/nanocall/internal/fault"
	"github.com/banshee-data/nanocall/internal/models"
	"github.com/banshee-data/nanocall/internal/statespace"
)

// Params are the expected signal statistics of one kmer.
type Params struct {
	Dwell float32 // expected samples spent in the kmer
	Mean  float32
	Stdev float32
}

// ParamSource supplies per-kmer parameters for an encoded sequence.
type ParamSource interface {
	SquiggleParams(encoded []int, kmerLen int, rescale bool) ([]Params, error)
}

// KmerTable is a ParamSource backed by one Params entry per kmer.
type KmerTable struct {
	model  models.SquiggleModel
	kmer   int
	params []Params
}

var _ ParamSource = (*KmerTable)(nil)

// NewKmerTable wraps params, which must hold 4^k entries indexed by kmer,
// where k is the model's kmer length.
func NewKmerTable(model models.SquiggleModel, params []Params) (*KmerTable, error) {
	const op = "squiggle.NewKmerTable"
	props, err := statespace.Lookup(len(params) + 1)
	if err != nil {
		return nil, err
	}
	if props.AlphabetSize != 4 || props.KmerLength != model.KmerLength() {
		return nil, fault.New(fault.KindInvalidArgument, op,
			"%d entries do not cover %d-mers over ACGT for %s",
			len(params), model.KmerLength(), model)
	}
	return &KmerTable{model: model, kmer: props.KmerLength, params: params}, nil
}

// KmerLength returns the length of the kmers the table is keyed on.
func (t *KmerTable) KmerLength() int { return t.kmer }

// Model returns the squiggle model the table describes.
func (t *KmerTable) Model() models.SquiggleModel { return t.model }

// Lookup returns the parameters of a single kmer.
func (t *KmerTable) Lookup(kmer int) Params { return t.params[kmer] }

// SquiggleParams looks up every kmer of encoded. With rescale, means and
// spreads are mapped onto the normalised scale of the model's reference
// population: mean' = (mean - LevelMean) / LevelScale, stdev' = stdev / LevelScale.
func (t *KmerTable) SquiggleParams(encoded []int, kmerLen int, rescale bool) ([]Params, error) {
	const op = "squiggle.KmerTable.SquiggleParams"
	if kmerLen != t.kmer {
		return nil, fault.New(fault.KindInvalidArgument, op,
			"kmer length %d, table holds %d-mers", kmerLen, t.kmer)
	}
	mean, scale := t.model.LevelMean(), t.model.LevelScale()

	out := make([]Params, len(encoded))
	for i, k := range encoded {
		if k < 0 || k >= len(t.params) {
			return nil, fault.New(fault.KindEncodingFailure, op, "kmer index %d out of range", k)
		}
		p := t.params[k]
		if rescale {
			p.Mean = (p.Mean - mean) / scale
			p.Stdev /= scale
		}
		out[i] = p
	}
	return out, nil
}

// LoadKmerTable reads a tab or space separated table of
// "kmer mean stdev dwell" lines. Blank lines, lines starting with '#' and
// a header line starting with "kmer" are skipped. Every kmer must appear
// exactly once.
func LoadKmerTable(r io.Reader, model models.SquiggleModel) (*KmerTable, error) {
	const op = "squiggle.LoadKmerTable"
	k := model.KmerLength()
	if k == 0 {
		return nil, fault.New(fault.KindUnrecognizedModel, op, "model %s", model)
	}
	params := make([]Params, 1<<(2*k))
	seen := make([]bool, len(params))

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") || strings.HasPrefix(strings.ToLower(text), "kmer") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 4 {
			return nil, fault.New(fault.KindInvalidArgument, op,
				"line %d: want 4 fields, got %d", line, len(fields))
		}
		idx, err := Encode(fields[0], k)
		if err != nil || len(idx) != 1 {
			return nil, fault.Wrapf(fault.KindEncodingFailure, op, err,
				"line %d: kmer %q is not a %d-mer", line, fields[0], k)
		}
		var vals [3]float32
		for i, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 32)
			if err != nil {
				return nil, fault.Wrapf(fault.KindInvalidArgument, op, err, "line %d", line)
			}
			vals[i] = float32(v)
		}
		if seen[idx[0]] {
			return nil, fault.New(fault.KindInvalidArgument, op,
				"line %d: duplicate kmer %s", line, fields[0])
		}
		seen[idx[0]] = true
		params[idx[0]] = Params{Mean: vals[0], Stdev: vals[1], Dwell: vals[2]}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading kmer table: %w", err)
	}
	for i, ok := range seen {
		if !ok {
			return nil, fault.New(fault.KindInvalidArgument, op, "kmer %d missing", i)
		}
	}
	return NewKmerTable(model, params)
}

// WriteTo writes the table in the format read by LoadKmerTable.
func (t *KmerTable) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	c, _ := fmt.Fprintln(bw, "kmer\tmean\tstdev\tdwell")
	n += int64(c)
	for i, p := range t.params {
		c, _ = fmt.Fprintf(bw, "%s\t%g\t%g\t%g\n", decode.KmerString(i, t.kmer), p.Mean, p.Stdev, p.Dwell)
		n += int64(c)
	}
	return n, bw.Flush()
}

// SyntheticTable builds a deterministic table for model from seed. Levels
// are drawn around the model's reference population, so the table behaves
// like a real pore model without carrying one.
func SyntheticTable(model models.SquiggleModel, seed int64) (*KmerTable, error) {
	k := model.KmerLength()
	if k == 0 {
		return nil, fault.New(fault.KindUnrecognizedModel, "squiggle.SyntheticTable", "model %s", model)
	}
	rng := rand.New(rand.NewSource(seed))
	mean, scale := model.LevelMean(), model.LevelScale()

	params := make([]Params, 1<<(2*k))
	for i := range params {
		params[i] = Params{
			Mean:  mean + scale*float32(rng.NormFloat64()),
			Stdev: scale * (0.08 + 0.04*float32(rng.Float64())),
			Dwell: 6 + 6*float32(rng.Float64()),
		}
	}
	return NewKmerTable(model, params)
}
