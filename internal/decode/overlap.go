package decode

import (
	"strings"

	"github.com/banshee-data/nanocall/internal/fault"
	"github.com/banshee-data/nanocall/internal/statespace"
)

// PathToBasecall collapses a transducer path into bases. The first kmer
// contributes all of its bases; each later kmer contributes the bases
// beyond its overlap with the previous kmer. Stay entries contribute
// nothing.
//
// pos[b] is the number of bases emitted up to and including entry b.
func PathToBasecall(path Path, numStates int) (string, []int, error) {
	const op = "decode.PathToBasecall"
	props, err := statespace.Lookup(numStates)
	if err != nil {
		return "", nil, err
	}
	if props.AlphabetSize != 4 {
		return "", nil, fault.New(fault.KindInvalidArgument, op,
			"alphabet of %d symbols, want 4", props.AlphabetSize)
	}
	k := props.KmerLength
	stay := props.NumKmers()

	var sb strings.Builder
	pos := make([]int, len(path))
	last := -1
	for i, s := range path {
		if s < 0 || s > stay {
			return "", nil, fault.New(fault.KindInvalidArgument, op,
				"state %d at entry %d outside [0,%d]", s, i, stay)
		}
		if s != stay {
			shift := k
			if last >= 0 {
				shift = Overlap(last, s, k)
			}
			writeSuffix(&sb, s, k, shift)
			last = s
		}
		pos[i] = sb.Len()
	}
	return sb.String(), pos, nil
}

// Overlap returns the smallest shift in [1, k] such that the last k-shift
// bases of from equal the first k-shift bases of to.
func Overlap(from, to, k int) int {
	mod := 1
	for i := 0; i < k; i++ {
		mod *= 4
	}
	div := 1
	for shift := 1; shift < k; shift++ {
		mod /= 4
		div *= 4
		if from%mod == to/div {
			return shift
		}
	}
	return k
}

// KmerString renders a kmer index as bases, most significant first.
func KmerString(kmer, k int) string {
	var sb strings.Builder
	writeSuffix(&sb, kmer, k, k)
	return sb.String()
}

func writeSuffix(sb *strings.Builder, kmer, k, n int) {
	for i := n - 1; i >= 0; i-- {
		sb.WriteByte(bases[(kmer>>(2*i))&3])
	}
}
