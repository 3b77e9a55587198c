// Package pipeline runs reads through trimming, scoring and decoding, and
// fans batches of reads out over a fixed pool of workers.
package pipeline

import (
	"context"
	"time"

	"github.com/banshee-data/nanocall/internal/config"
	"github.com/banshee-data/nanocall/internal/decode"
	"github.com/banshee-data/nanocall/internal/fault"
	"github.com/banshee-data/nanocall/internal/mapping"
	"github.com/banshee-data/nanocall/internal/matrix"
	"github.com/banshee-data/nanocall/internal/models"
	"github.com/banshee-data/nanocall/internal/rawsignal"
	"github.com/banshee-data/nanocall/internal/scoring"
	"github.com/banshee-data/nanocall/internal/source"
	"github.com/banshee-data/nanocall/internal/squiggle"
	"github.com/banshee-data/nanocall/internal/timeutil"
)

// Caller basecalls single reads. A Caller is safe for concurrent use as long
// as its Scorers are.
type Caller struct {
	Model   models.Model
	Scorers scoring.Registry
	Config  *config.Config // nil uses built-in defaults
	Clock   timeutil.Clock // nil uses the real clock

	// WithBaseProbs fills Result.BaseProbs for CRF models.
	WithBaseProbs bool
}

// Result is the outcome of basecalling one read.
type Result struct {
	ReadID    string
	Basecall  string
	Score     float32
	Positions []int // cumulative bases emitted up to each path entry
	Start     int   // trimmed window in raw samples
	End       int
	Empty     bool // trimming left no signal; nothing was scored
	Elapsed   time.Duration

	// BaseProbs holds per-block A, C, G, T, blank posteriors when requested.
	BaseProbs *matrix.Matrix
}

// SignalMapping is the outcome of aligning a read against a simulated
// squiggle.
type SignalMapping struct {
	ReadID string
	Score  float32
	Path   []int // squiggle row per raw sample, -1 where unaligned
	Start  int
	End    int
	Empty  bool // trimming left no window; Score is 0 and Path all -1

	Signal   *rawsignal.RawSignal // conditioned signal that was aligned
	Squiggle *squiggle.Squiggle
}

func (c *Caller) config() *config.Config {
	if c.Config == nil {
		return config.Empty()
	}
	return c.Config
}

func (c *Caller) clock() timeutil.Clock {
	if c.Clock == nil {
		return timeutil.RealClock{}
	}
	return c.Clock
}

// condition trims and scales a copy of the read's samples.
func (c *Caller) condition(read source.Read) *rawsignal.RawSignal {
	raw := rawsignal.New(read.Samples)
	return c.config().TrimSignal(raw).Scale()
}

// Basecall trims and scales the read, scores the active window and decodes
// the scores with the decoder the model calls for. Errors carry the read id.
func (c *Caller) Basecall(ctx context.Context, read source.Read) (Result, error) {
	clock := c.clock()
	began := clock.Now()
	res, err := c.basecall(ctx, read)
	res.ReadID = read.ID
	res.Elapsed = clock.Since(began)
	return res, fault.WithRead(err, read.ID)
}

func (c *Caller) basecall(ctx context.Context, read source.Read) (Result, error) {
	cfg := c.config()
	raw := c.condition(read)
	res := Result{Start: raw.Start(), End: raw.End()}
	if raw.Empty() {
		res.Empty = true
		return res, nil
	}

	m, err := c.Scorers.Score(ctx, c.Model, raw.Window(), cfg.ScoringOptions())
	if err != nil {
		return res, err
	}
	defer m.Release()

	switch c.Model.Decoder() {
	case models.DecoderCRF:
		path, score, err := decode.DecodeCRF(m)
		if err != nil {
			return res, err
		}
		res.Score = score
		res.Basecall = decode.CRFPathToBasecall(path)
		res.Positions = decode.CRFPositions(path)
		if c.WithBaseProbs {
			if res.BaseProbs, err = decode.CRFPosterior(m); err != nil {
				return res, err
			}
		}
	default:
		path, score, err := decode.DecodeTransducer(m, cfg.TransducerOptions())
		if err != nil {
			return res, err
		}
		res.Score = score
		res.Basecall, res.Positions, err = decode.PathToBasecall(path, m.Cols())
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

// MapSignal trims and scales the read, simulates seq under the squiggle
// model rescaled onto the normalised signal scale, and aligns the signal
// against it. A read whose window trims away maps as Empty without error.
func (c *Caller) MapSignal(read source.Read, seq string, model models.SquiggleModel, params squiggle.ParamSource) (SignalMapping, error) {
	cfg := c.config()
	raw := c.condition(read)
	out := SignalMapping{ReadID: read.ID, Start: raw.Start(), End: raw.End(), Signal: raw}

	sq, err := squiggle.Simulate(seq, model, params, true)
	if err != nil {
		return out, fault.WithRead(err, read.ID)
	}
	out.Squiggle = sq
	if raw.Empty() {
		out.Empty = true
		out.Path = make([]int, raw.Len())
		for i := range out.Path {
			out.Path[i] = -1
		}
		return out, nil
	}
	out.Score, out.Path, err = squiggle.AlignSignal(raw, float32(cfg.GetSquiggleRate()), sq, cfg.SignalOptions())
	return out, fault.WithRead(err, read.ID)
}

// MapPosterior aligns a posterior matrix to seq with Viterbi under the
// configured penalties and band.
func (c *Caller) MapPosterior(m *matrix.Matrix, seq string, wantPath bool) (float32, []int, error) {
	return mapping.Align(m, seq, c.config().MappingOptions(wantPath))
}
