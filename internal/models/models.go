// Package models enumerates the basecalling and squiggle models nanocall
// knows about, and the facts the pipeline needs about each of them.
package models

import (
	"fmt"
	"sort"

	"github.com/banshee-data/nanocall/internal/fault"
)

// Model is a basecalling model.
type Model int

const (
	ModelInvalid Model = iota
	RGRGR_R94
	RGRGR_R941
	RGRGR_R10
	RNNRF_R94
)

// Decoder selects the decoder valid for a model's output.
type Decoder int

const (
	DecoderTransducer Decoder = iota
	DecoderCRF
)

func (d Decoder) String() string {
	switch d {
	case DecoderTransducer:
		return "transducer"
	case DecoderCRF:
		return "crf"
	default:
		return fmt.Sprintf("decoder(%d)", int(d))
	}
}

var modelNames = map[string]Model{
	"rgrgr_r94":  RGRGR_R94,
	"rgrgr_r941": RGRGR_R941,
	"rgrgr_r10":  RGRGR_R10,
	"rnnrf_r94":  RNNRF_R94,
}

// ParseModel resolves a model name such as "rgrgr_r94".
func ParseModel(name string) (Model, error) {
	if m, ok := modelNames[name]; ok {
		return m, nil
	}
	return ModelInvalid, fault.New(fault.KindUnrecognizedModel, "models.ParseModel",
		"unknown model %q", name)
}

// Names returns every model name in sorted order.
func Names() []string {
	out := make([]string, 0, len(modelNames))
	for n := range modelNames {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (m Model) String() string {
	switch m {
	case RGRGR_R94:
		return "rgrgr_r94"
	case RGRGR_R941:
		return "rgrgr_r941"
	case RGRGR_R10:
		return "rgrgr_r10"
	case RNNRF_R94:
		return "rnnrf_r94"
	default:
		return fmt.Sprintf("model(%d)", int(m))
	}
}

// Valid reports whether m is a known model.
func (m Model) Valid() bool {
	switch m {
	case RGRGR_R94, RGRGR_R941, RGRGR_R10, RNNRF_R94:
		return true
	default:
		return false
	}
}

// Decoder returns the decoder that understands m's score matrices.
func (m Model) Decoder() Decoder {
	switch m {
	case RNNRF_R94:
		return DecoderCRF
	default:
		return DecoderTransducer
	}
}

// Stride is the number of raw samples per output block.
func (m Model) Stride() int {
	switch m {
	case RGRGR_R94, RGRGR_R941, RGRGR_R10:
		return 5
	case RNNRF_R94:
		return 2
	default:
		return 0
	}
}

// States is the number of columns in m's score matrix.
func (m Model) States() int {
	switch m {
	case RGRGR_R94, RGRGR_R941, RGRGR_R10:
		return 1025
	case RNNRF_R94:
		return 25
	default:
		return 0
	}
}

// SquiggleModel is a model predicting expected current levels from a
// sequence.
type SquiggleModel int

const (
	SquiggleInvalid SquiggleModel = iota
	SquiggleR94
	SquiggleR10
)

// ParseSquiggleModel resolves "squiggle_r94" or "squiggle_r10".
func ParseSquiggleModel(name string) (SquiggleModel, error) {
	switch name {
	case "squiggle_r94":
		return SquiggleR94, nil
	case "squiggle_r10":
		return SquiggleR10, nil
	}
	return SquiggleInvalid, fault.New(fault.KindUnrecognizedModel, "models.ParseSquiggleModel",
		"unknown squiggle model %q", name)
}

func (s SquiggleModel) String() string {
	switch s {
	case SquiggleR94:
		return "squiggle_r94"
	case SquiggleR10:
		return "squiggle_r10"
	default:
		return fmt.Sprintf("squiggle(%d)", int(s))
	}
}

// KmerLength is the context length the model's parameter table is keyed on.
func (s SquiggleModel) KmerLength() int {
	switch s {
	case SquiggleR94:
		return 5
	case SquiggleR10:
		return 6
	default:
		return 0
	}
}

// LevelMean and LevelScale are the mean and spread of current levels over
// the model's training population, in picoamps. Rescaling maps levels onto
// the same scale as a median/MAD normalised signal.
func (s SquiggleModel) LevelMean() float32 {
	switch s {
	case SquiggleR94:
		return 90.2
	case SquiggleR10:
		return 84.6
	default:
		return 0
	}
}

func (s SquiggleModel) LevelScale() float32 {
	switch s {
	case SquiggleR94:
		return 12.8
	case SquiggleR10:
		return 15.1
	default:
		return 1
	}
}
