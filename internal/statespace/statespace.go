// Package statespace maps transducer state counts back to the alphabet size
// and kmer length that produced them.
//
// A transducer over an alphabet of size a with kmers of length k has a^k kmer
// states plus one stay state. Up to 9-mers, alphabets of size 4 through 7
// never collide, so the mapping is exact.
package statespace

import (
	"fmt"

	"github.com/banshee-data/nanocall/internal/fault"
)

const (
	MinAlphabet = 4
	MaxAlphabet = 7
	MinKmer     = 1
	MaxKmer     = 9
)

// Properties describes a transducer state space.
type Properties struct {
	AlphabetSize int
	KmerLength   int
}

// NumKmers returns AlphabetSize^KmerLength.
func (p Properties) NumKmers() int {
	n := 1
	for i := 0; i < p.KmerLength; i++ {
		n *= p.AlphabetSize
	}
	return n
}

// NumStates returns the state count including the stay state.
func (p Properties) NumStates() int { return p.NumKmers() + 1 }

var table = buildTable()

func buildTable() map[int]Properties {
	t := make(map[int]Properties, (MaxAlphabet-MinAlphabet+1)*(MaxKmer-MinKmer+1))
	for a := MinAlphabet; a <= MaxAlphabet; a++ {
		for k := MinKmer; k <= MaxKmer; k++ {
			p := Properties{AlphabetSize: a, KmerLength: k}
			n := p.NumStates()
			if prev, dup := t[n]; dup {
				panic(fmt.Sprintf("statespace: %d states for both %+v and %+v", n, prev, p))
			}
			t[n] = p
		}
	}
	return t
}

// GuessStateProperties returns the alphabet size and kmer length of a
// transducer with stateCount states (kmers plus one stay state).
func GuessStateProperties(stateCount int) (alphabetSize, kmerLength int, err error) {
	p, ok := table[stateCount]
	if !ok {
		return 0, 0, fault.New(fault.KindUnrecognizedStateCount, "statespace.GuessStateProperties",
			"%d states is not a^k+1 for alphabet %d-%d and kmer %d-%d",
			stateCount, MinAlphabet, MaxAlphabet, MinKmer, MaxKmer)
	}
	return p.AlphabetSize, p.KmerLength, nil
}

// Lookup is GuessStateProperties returning a Properties value.
func Lookup(stateCount int) (Properties, error) {
	a, k, err := GuessStateProperties(stateCount)
	if err != nil {
		return Properties{}, err
	}
	return Properties{AlphabetSize: a, KmerLength: k}, nil
}

// Table returns a copy of the state-count lookup table.
func Table() map[int]Properties {
	out := make(map[int]Properties, len(table))
	for n, p := range table {
		out[n] = p
	}
	return out
}
