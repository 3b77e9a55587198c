package main

import (
	"bytes"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/nanocall/internal/fsutil"
	"github.com/banshee-data/nanocall/internal/models"
	"github.com/banshee-data/nanocall/internal/source"
	"github.com/banshee-data/nanocall/internal/squiggle"
	"github.com/banshee-data/nanocall/internal/testutil"
)

func TestSimulateRows(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"simulate", "ACGTACGTAC"}, &stdout, &stderr, fsutil.NewMemoryFileSystem())
	require.Equal(t, exitOK, code, stderr.String())

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	// comment, header, then len(seq)-k+1 rows
	require.Len(t, lines, 2+6)
	assert.Equal(t, "# seq1 squiggle_r94 rows=6", lines[0])
	assert.Equal(t, "pos\tkmer\tdwell\tmean\tstdev", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "0\tACGTA\t"))
	assert.True(t, strings.HasPrefix(lines[7], "5\tCGTAC\t"))
}

func TestSimulateUsesKmerTable(t *testing.T) {
	tbl, err := squiggle.SyntheticTable(models.SquiggleR94, 42)
	require.NoError(t, err)
	var table bytes.Buffer
	_, err = tbl.WriteTo(&table)
	require.NoError(t, err)

	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("r94.tsv", table.Bytes())

	var fromFile, fromSeed, stderr bytes.Buffer
	require.Equal(t, exitOK, run([]string{"simulate", "-kmer-table", "r94.tsv", "ACGTACGT"}, &fromFile, &stderr, fsys))
	require.Equal(t, exitOK, run([]string{"simulate", "-seed", "42", "ACGTACGT"}, &fromSeed, &stderr, fsys))
	assert.Equal(t, fromSeed.String(), fromFile.String())
}

func TestSimulateErrors(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	tests := [][]string{
		nil,
		{"bogus"},
		{"simulate"},
		{"simulate", "ACG"},
		{"simulate", "ACGTNACGT"},
		{"simulate", "-model", "squiggle_r11", "ACGTACGT"},
		{"simulate", "-kmer-table", "missing.tsv", "ACGTACGT"},
	}
	for _, args := range tests {
		var stdout, stderr bytes.Buffer
		assert.Equal(t, exitFailure, run(args, &stdout, &stderr, fsys), "args %v", args)
	}
}

func TestSimulateSignal(t *testing.T) {
	seq := testutil.RandomSequence(30, 7)
	var stdout, stderr bytes.Buffer
	require.Equal(t, exitOK, run([]string{"simulate", "-signal", seq}, &stdout, &stderr, fsutil.NewMemoryFileSystem()))

	src := source.NewTSV("stdout", io.NopCloser(&stdout))
	read, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, "seq1", read.ID)

	tbl, err := squiggle.SyntheticTable(models.SquiggleR94, 1)
	require.NoError(t, err)
	sq, err := squiggle.Simulate(seq, models.SquiggleR94, tbl, false)
	require.NoError(t, err)
	assert.Equal(t, sq.Signal(), read.Samples)
}

func TestMap(t *testing.T) {
	seq := testutil.RandomSequence(40, 7)
	tbl, err := squiggle.SyntheticTable(models.SquiggleR94, 1)
	require.NoError(t, err)
	sq, err := squiggle.Simulate(seq, models.SquiggleR94, tbl, false)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	samples := sq.Signal()
	for i := range samples {
		samples[i] += float32(rng.NormFloat64())
	}
	var reads bytes.Buffer
	require.NoError(t, source.WriteTSV(&reads, source.Read{ID: "r1", Samples: samples}))

	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("reads.tsv", reads.Bytes())
	cfgPath := filepath.Join(t.TempDir(), "untrimmed.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"trim_start": 0, "trim_end": 0, "squiggle_local_pen": 10}`), 0o644))

	var stdout, stderr bytes.Buffer
	code := run([]string{"map", "-config", cfgPath, "-png", "plots", "-html", "charts", "reads.tsv", seq},
		&stdout, &stderr, fsys)
	require.Equal(t, exitOK, code, stderr.String())

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "read\tscore\twindow\taligned\tcall", lines[0])
	fields := strings.Split(lines[1], "\t")
	require.Len(t, fields, 5)
	assert.Equal(t, "r1", fields[0])
	assert.NotEqual(t, "0", fields[3], "some samples aligned")
	assert.True(t, strings.Contains(seq, fields[4]), "call is a substring of the reference")

	assert.True(t, fsys.Exists("plots/r1.png"))
	assert.True(t, fsys.Exists("charts/r1.html"))
}

func TestMapEmptyWindow(t *testing.T) {
	var reads bytes.Buffer
	require.NoError(t, source.WriteTSV(&reads, source.Read{ID: "flat", Samples: make([]float32, 500)}))
	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("reads.tsv", reads.Bytes())

	var stdout, stderr bytes.Buffer
	code := run([]string{"map", "-png", "plots", "reads.tsv", testutil.RandomSequence(30, 2)},
		&stdout, &stderr, fsys)
	require.Equal(t, exitOK, code, stderr.String())

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2)
	fields := strings.Split(lines[1], "\t")
	require.Len(t, fields, 5)
	assert.Equal(t, "flat", fields[0])
	assert.Equal(t, "0", fields[1])
	assert.Equal(t, "0", fields[3])
	assert.Equal(t, "-", fields[4])
	assert.False(t, fsys.Exists("plots/flat.png"))
}

func TestMapErrors(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("reads.tsv", []byte("r1\t1,2,3\n"))
	tests := [][]string{
		{"map"},
		{"map", "reads.tsv"},
		{"map", "missing.tsv", "ACGTACGT"},
		{"map", "-config", "missing.json", "reads.tsv", "ACGTACGT"},
		{"map", "-model", "bogus", "reads.tsv", "ACGTACGT"},
	}
	for _, args := range tests {
		var stdout, stderr bytes.Buffer
		assert.Equal(t, exitFailure, run(args, &stdout, &stderr, fsys), "args %v", args)
	}
}
