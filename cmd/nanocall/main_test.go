package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/banshee-data/nanocall/internal/db"
	"github.com/banshee-data/nanocall/internal/fsutil"
	"github.com/banshee-data/nanocall/internal/matrix"
	"github.com/banshee-data/nanocall/internal/models"
	"github.com/banshee-data/nanocall/internal/rawsignal"
	"github.com/banshee-data/nanocall/internal/scoring"
	"github.com/banshee-data/nanocall/internal/source"
	"github.com/banshee-data/nanocall/internal/squiggle"
	"github.com/banshee-data/nanocall/internal/testutil"
)

func noisy(id string, n int, seed int64) source.Read {
	rng := rand.New(rand.NewSource(seed))
	s := make([]float32, n)
	for i := range s {
		s[i] = 90 + 12*float32(rng.NormFloat64())
	}
	return source.Read{ID: id, Samples: s}
}

func writeReads(t *testing.T, reads ...source.Read) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reads.tsv")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, source.WriteTSV(f, reads...))
	require.NoError(t, f.Close())
	return path
}

// startScorer serves a scorer that fails windows shorter than 550 samples
// and otherwise returns post.
func startScorer(t *testing.T, post *matrix.Matrix) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	reg := scoring.Registry{models.RGRGR_R94: scoring.ScorerFunc(
		func(_ context.Context, w []float32, _ scoring.Options) (*matrix.Matrix, error) {
			if len(w) < 550 {
				return nil, errors.New("window too short for the network")
			}
			return post.Clone(), nil
		})}
	s := grpc.NewServer(scoring.ServerOptions()...)
	scoring.RegisterScorerServer(s, scoring.NewServer(reg))
	go s.Serve(lis)
	t.Cleanup(s.Stop)
	return lis.Addr().String()
}

func TestRunRemoteScorer(t *testing.T) {
	seq := testutil.RandomSequence(25, 1)
	addr := startScorer(t, testutil.TransducerPosterior(seq, 5, 1))
	good1, bad, good2 := noisy("good1", 1000, 1), noisy("bad", 600, 2), noisy("good2", 1000, 3)
	reads := writeReads(t, good1, bad, good2)
	dbPath := filepath.Join(t.TempDir(), "results.db")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(),
		[]string{"-threads", "3", "-scorer", addr, "-db", dbPath, "rgrgr_r94", reads},
		&stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	var want strings.Builder
	for _, r := range []source.Read{good1, good2} {
		raw := rawsignal.New(r.Samples).TrimDefault()
		fmt.Fprintf(&want, ">%s 0 %d-%d\nA%s\n", r.ID, raw.Start(), raw.End(), seq)
	}
	assert.Equal(t, want.String(), stdout.String())

	store, err := db.NewDB(dbPath)
	require.NoError(t, err)
	defer store.Close()
	var runID string
	require.NoError(t, store.QueryRow(`SELECT run_id FROM runs`).Scan(&runID))
	got, err := store.GetRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, "rgrgr_r94", got.Model)
	assert.Equal(t, 2, got.ReadsOK)
	assert.Equal(t, 1, got.ReadsFailed)
	assert.False(t, got.FinishedAt.IsZero())

	calls, err := store.Basecalls(context.Background(), runID)
	require.NoError(t, err)
	require.Len(t, calls, 3)
	assert.Equal(t, "bad", calls[1].ReadID)
	assert.Contains(t, calls[1].Err, "scoring_failure")
	assert.Equal(t, "A"+seq, calls[2].Sequence)
}

func TestRunStrict(t *testing.T) {
	addr := startScorer(t, testutil.TransducerPosterior(testutil.RandomSequence(20, 2), 5, 0))
	reads := writeReads(t, noisy("bad", 600, 2))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-strict", "-scorer", addr, "rgrgr_r94", reads}, &stdout, &stderr)
	assert.Equal(t, exitReadFailed, code)
	assert.Empty(t, stdout.String())
}

func TestRunLocalScorer(t *testing.T) {
	reads := writeReads(t, noisy("r1", 2000, 4), noisy("r2", 100, 5))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-threads", "2", "rgrgr_r94", reads}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	lines := strings.Split(strings.TrimSuffix(stdout.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Regexp(t, regexp.MustCompile(`^>r1 -?[0-9.e+-]+ \d+-\d+$`), lines[0])
	assert.Regexp(t, regexp.MustCompile(`^[ACGT]*$`), lines[1])
	// r2 is shorter than the trim guards.
	assert.Equal(t, ">r2 0 0-0", lines[2])
	assert.Equal(t, "", lines[3])
}

func TestRunFailures(t *testing.T) {
	reads := writeReads(t, noisy("r1", 500, 1))
	tests := []struct {
		name string
		args []string
	}{
		{"no args", nil},
		{"missing source", []string{"rgrgr_r94"}},
		{"unknown model", []string{"rgrgr_r95", reads}},
		{"bad pool", []string{"-pool", "fiber", "rgrgr_r94", reads}},
		{"unreadable source", []string{"rgrgr_r94", filepath.Join(t.TempDir(), "missing.tsv")}},
		{"unsupported source", []string{"rgrgr_r94", "reads.fast5"}},
		{"bad flag", []string{"-nope"}},
		{"bad config", []string{"-config", "nanocall.yaml", "rgrgr_r94", reads}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, exitFailure, run(context.Background(), tt.args, &stdout, &stderr))
		})
	}
}

func TestRunProcessPoolFallsBack(t *testing.T) {
	reads := writeReads(t, noisy("r1", 100, 1))
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-pool", "process", "rgrgr_r94", reads}, &stdout, &stderr)
	assert.Equal(t, exitOK, code)
	assert.Equal(t, ">r1 0 0-0\n\n", stdout.String())
}

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitOK, run(context.Background(), []string{"-version"}, &stdout, &stderr))
	assert.True(t, strings.HasPrefix(stdout.String(), "nanocall "))
}

func TestLocalRegistry(t *testing.T) {
	reg, err := localRegistry(fsutil.OSFileSystem{}, "")
	require.NoError(t, err)
	for _, m := range reg.Models() {
		assert.Equal(t, models.DecoderTransducer, m.Decoder())
	}
	assert.Contains(t, reg, models.RGRGR_R94)
	assert.NotContains(t, reg, models.RNNRF_R94)
}

func TestLocalRegistryReadsTableFromFileSystem(t *testing.T) {
	tbl, err := squiggle.SyntheticTable(models.SquiggleR94, 4)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = tbl.WriteTo(&buf)
	require.NoError(t, err)

	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("tables/r94.tsv", buf.Bytes())

	got, err := loadTable(fsys, "tables/r94.tsv")
	require.NoError(t, err)
	for _, k := range []int{0, 1023} {
		assert.InDelta(t, tbl.Lookup(k).Mean, got.Lookup(k).Mean, 1e-3)
	}

	reg, err := localRegistry(fsys, "tables/r94.tsv")
	require.NoError(t, err)
	assert.Contains(t, reg, models.RGRGR_R94)

	_, err = localRegistry(fsys, "tables/missing.tsv")
	assert.Error(t, err)
}
