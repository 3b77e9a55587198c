// Package scoring turns a conditioned signal window into a score matrix.
//
// Scorers are collaborators: the neural networks behind the production
// models live outside nanocall and are reached through a Registry, either
// in process or over gRPC (see Client and Server). PoreModel is a small
// in-process scorer built from a kmer table.
package scoring

import (
	"context"

	"github.com/banshee-data/nanocall/internal/fault"
	"github.com/banshee-data/nanocall/internal/matrix"
	"github.com/banshee-data/nanocall/internal/models"
)

// Options control how a scorer shapes its output.
type Options struct {
	MinProb    float32 // floor mixed into probabilities before taking logs
	TempWeight float32
	TempBias   float32
	UseLog     bool // return log scores instead of probabilities
}

// DefaultOptions returns the options used by the basecaller.
func DefaultOptions() Options {
	return Options{MinProb: 1e-6, TempWeight: 1, TempBias: 1, UseLog: true}
}

// Scorer scores a window of normalised samples.
type Scorer interface {
	Score(ctx context.Context, window []float32, opts Options) (*matrix.Matrix, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, window []float32, opts Options) (*matrix.Matrix, error)

// Score calls f.
func (f ScorerFunc) Score(ctx context.Context, window []float32, opts Options) (*matrix.Matrix, error) {
	return f(ctx, window, opts)
}

// Registry maps each model to the scorer producing its matrices.
type Registry map[models.Model]Scorer

// Score runs the scorer registered for model and checks its output.
// Missing models fail with ErrUnrecognizedModel; scorer errors, missing
// results and matrices of the wrong width fail with ErrScoringFailure.
func (r Registry) Score(ctx context.Context, model models.Model, window []float32, opts Options) (*matrix.Matrix, error) {
	const op = "scoring.Registry.Score"
	s, ok := r[model]
	if !ok || s == nil || !model.Valid() {
		return nil, fault.New(fault.KindUnrecognizedModel, op, "no scorer for %s", model)
	}
	if model.Decoder() == models.DecoderCRF && !opts.UseLog {
		return nil, fault.New(fault.KindInvalidArgument, op, "%s only produces log scores", model)
	}

	m, err := s.Score(ctx, window, opts)
	switch {
	case err != nil:
		if k := fault.KindOf(err); k == fault.KindUnrecognizedModel || k == fault.KindInvalidArgument {
			return nil, err
		}
		return nil, fault.Wrapf(fault.KindScoringFailure, op, err, "%s", model)
	case m == nil:
		return nil, fault.New(fault.KindScoringFailure, op, "%s returned no scores", model)
	case m.Cols() != model.States():
		m.Release()
		return nil, fault.New(fault.KindScoringFailure, op,
			"%s returned %d states, want %d", model, m.Cols(), model.States())
	}
	return m, nil
}

// Models lists the registered models.
func (r Registry) Models() []models.Model {
	out := make([]models.Model, 0, len(r))
	for m := range r {
		out = append(out, m)
	}
	return out
}
