package mapping

import (
	"math"

	"github.com/banshee-data/nanocall/internal/fault"
)

type bandKind int

const (
	bandNone bandKind = iota
	bandScalar
	bandExplicit
)

// Band restricts the sequence positions admissible at each block. The zero
// value is NoBand.
type Band struct {
	kind  bandKind
	width float32
	low   []int
	high  []int
}

// NoBand admits every position at every block.
func NoBand() Band { return Band{} }

// ScalarBand admits a diagonal corridor of half-width b*L/nb around the
// block-to-position diagonal.
func ScalarBand(b float32) Band { return Band{kind: bandScalar, width: b} }

// ExplicitBand admits positions [low[i], high[i]) at block i.
func ExplicitBand(low, high []int) Band {
	return Band{kind: bandExplicit, low: low, high: high}
}

// IsNone reports whether the band admits everything.
func (b Band) IsNone() bool { return b.kind == bandNone }

// Bounds resolves the band for nb blocks and L positions and validates it.
func (b Band) Bounds(nb, L int) (low, high []int, err error) {
	const op = "mapping.Band.Bounds"
	switch b.kind {
	case bandNone:
		low, high = make([]int, nb), make([]int, nb)
		for i := range high {
			high[i] = L
		}
	case bandScalar:
		if !(b.width >= 0) {
			return nil, nil, fault.New(fault.KindInvalidBanding, op, "band width %v", b.width)
		}
		low, high = make([]int, nb), make([]int, nb)
		if nb > 0 {
			g := float64(L) / float64(nb)
			w := float64(b.width) * g
			for x := range low {
				c := float64(x) * g
				low[x] = int(math.Floor(math.Max(0, c-w)))
				high[x] = int(math.Floor(math.Min(float64(L), c+w)))
			}
		}
	case bandExplicit:
		low, high = b.low, b.high
	}
	if err := Validate(low, high, nb, L); err != nil {
		return nil, nil, err
	}
	return low, high, nil
}

// Validate checks that low and high cover nb blocks, that
// 0 <= low[i] <= high[i] <= L, and that both are non-decreasing.
func Validate(low, high []int, nb, L int) error {
	const op = "mapping.Validate"
	if len(low) != nb || len(high) != nb {
		return fault.New(fault.KindInvalidBanding, op,
			"bounds of length %d and %d for %d blocks", len(low), len(high), nb)
	}
	for i := range low {
		if low[i] < 0 || low[i] > high[i] || high[i] > L {
			return fault.New(fault.KindInvalidBanding, op,
				"block %d: bounds [%d,%d) outside [0,%d]", i, low[i], high[i], L)
		}
		if i > 0 && (low[i] < low[i-1] || high[i] < high[i-1]) {
			return fault.New(fault.KindInvalidBanding, op, "block %d: bounds decrease", i)
		}
	}
	return nil
}
