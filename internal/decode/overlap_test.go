package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/nanocall/internal/fault"
)

func kmer(t *testing.T, s string) int {
	t.Helper()
	idx := 0
	for _, c := range s {
		idx = idx*4 + map[rune]int{'A': 0, 'C': 1, 'G': 2, 'T': 3}[c]
	}
	return idx
}

func TestOverlap(t *testing.T) {
	tests := []struct {
		from, to string
		want     int
	}{
		{"ACG", "CGT", 1},
		{"CGT", "TAC", 2},
		{"ACG", "TTT", 3},
		{"AAA", "AAA", 1},
		{"ACA", "ACA", 2},
	}
	for _, tt := range tests {
		got := Overlap(kmer(t, tt.from), kmer(t, tt.to), 3)
		assert.Equal(t, tt.want, got, "%s -> %s", tt.from, tt.to)
	}
}

func TestPathToBasecall(t *testing.T) {
	stay := 64
	path := Path{kmer(t, "ACG"), stay, kmer(t, "CGT"), kmer(t, "TAC"), stay}
	call, pos, err := PathToBasecall(path, 65)
	require.NoError(t, err)
	assert.Equal(t, "ACGTAC", call)
	// Positions count bases emitted so far, not kmer start offsets.
	assert.Equal(t, []int{3, 3, 4, 6, 6}, pos)
	assert.Equal(t, len(call), pos[len(pos)-1])
}

func TestPathToBasecallLeadingStays(t *testing.T) {
	call, pos, err := PathToBasecall(Path{16, 16, kmer(t, "GT")}, 17)
	require.NoError(t, err)
	assert.Equal(t, "GT", call)
	assert.Equal(t, []int{0, 0, 2}, pos)
}

func TestPathToBasecallErrors(t *testing.T) {
	_, _, err := PathToBasecall(Path{0}, 30)
	assert.ErrorIs(t, err, fault.ErrUnrecognizedStateCount)

	_, _, err = PathToBasecall(Path{0, 99}, 65)
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)
}

func TestKmerString(t *testing.T) {
	assert.Equal(t, "ACGT", KmerString(kmer(t, "ACGT"), 4))
	assert.Equal(t, "AAAA", KmerString(0, 4))
}
