// Command squiggle simulates expected current traces for sequences and
// aligns raw reads against them.
//
//	squiggle simulate [flags] sequence...
//	squiggle map [flags] reads.tsv sequence
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/banshee-data/nanocall/internal/config"
	"github.com/banshee-data/nanocall/internal/fsutil"
	"github.com/banshee-data/nanocall/internal/models"
	"github.com/banshee-data/nanocall/internal/monitoring"
	"github.com/banshee-data/nanocall/internal/pipeline"
	"github.com/banshee-data/nanocall/internal/render"
	"github.com/banshee-data/nanocall/internal/source"
	"github.com/banshee-data/nanocall/internal/squiggle"
)

const (
	exitOK      = 0
	exitFailure = 1
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, fsutil.OSFileSystem{}))
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: squiggle simulate [flags] sequence...")
	fmt.Fprintln(w, "       squiggle map [flags] reads.tsv sequence")
}

func run(args []string, stdout, stderr io.Writer, fsys fsutil.FileSystem) int {
	if len(args) == 0 {
		usage(stderr)
		return exitFailure
	}
	var err error
	switch args[0] {
	case "simulate":
		err = simulate(args[1:], stdout, stderr, fsys)
	case "map":
		err = mapReads(args[1:], stdout, stderr, fsys)
	default:
		usage(stderr)
		return exitFailure
	}
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			monitoring.Logf("squiggle %s: %v", args[0], err)
		}
		return exitFailure
	}
	return exitOK
}

// modelFlags are shared by both subcommands.
type modelFlags struct {
	model     string
	kmerTable string
	seed      int64
}

func (m *modelFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&m.model, "model", "squiggle_r94", "squiggle model: squiggle_r94 or squiggle_r10")
	fs.StringVar(&m.kmerTable, "kmer-table", "", "pore model TSV (default: synthetic table)")
	fs.Int64Var(&m.seed, "seed", 1, "seed for the synthetic table")
}

func (m *modelFlags) load(fsys fsutil.FileSystem) (models.SquiggleModel, *squiggle.KmerTable, error) {
	model, err := models.ParseSquiggleModel(m.model)
	if err != nil {
		return 0, nil, err
	}
	if m.kmerTable == "" {
		tbl, err := squiggle.SyntheticTable(model, m.seed)
		return model, tbl, err
	}
	f, err := fsys.Open(m.kmerTable)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()
	tbl, err := squiggle.LoadKmerTable(f, model)
	return model, tbl, err
}

func simulate(args []string, stdout, stderr io.Writer, fsys fsutil.FileSystem) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var mf modelFlags
	mf.register(fs)
	rescale := fs.Bool("rescale", false, "map levels onto the normalised signal scale")
	signal := fs.Bool("signal", false, "print the noiseless trace as a TSV read instead of squiggle rows")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("no sequences given")
	}
	model, tbl, err := mf.load(fsys)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(stdout)
	defer w.Flush()
	for i, seq := range fs.Args() {
		sq, err := squiggle.Simulate(seq, model, tbl, *rescale)
		if err != nil {
			return fmt.Errorf("sequence %d: %w", i+1, err)
		}
		if *signal {
			if err := source.WriteTSV(w, source.Read{ID: fmt.Sprintf("seq%d", i+1), Samples: sq.Signal()}); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(w, "# seq%d %s rows=%d\n", i+1, model, sq.Len())
		fmt.Fprintln(w, "pos\tkmer\tdwell\tmean\tstdev")
		for pos, r := range sq.Rows {
			fmt.Fprintf(w, "%d\t%s\t%g\t%g\t%g\n", pos, seq[pos:pos+sq.KmerLen], r.Dwell, r.Mean, r.Stdev)
		}
	}
	return nil
}

func mapReads(args []string, stdout, stderr io.Writer, fsys fsutil.FileSystem) error {
	fs := flag.NewFlagSet("map", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var mf modelFlags
	mf.register(fs)
	configPath := fs.String("config", "", "JSON tuning file")
	pngDir := fs.String("png", "", "write one PNG alignment plot per read to this directory")
	htmlDir := fs.String("html", "", "write one HTML alignment chart per read to this directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("want a reads file and a sequence")
	}
	readsPath, seq := fs.Arg(0), fs.Arg(1)

	cfg := config.Empty()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	model, tbl, err := mf.load(fsys)
	if err != nil {
		return err
	}
	src, err := source.Open(fsys, readsPath)
	if err != nil {
		return err
	}
	defer src.Close()

	caller := &pipeline.Caller{Config: cfg}
	w := bufio.NewWriter(stdout)
	defer w.Flush()
	fmt.Fprintln(w, "read\tscore\twindow\taligned\tcall")

	for {
		read, err := src.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		m, err := caller.MapSignal(read, seq, model, tbl)
		if err != nil {
			// A read that cannot be aligned does not stop the others.
			monitoring.Logf("%v", err)
			continue
		}
		if m.Empty {
			monitoring.Logf("read %s: no signal left after trimming", read.ID)
			fmt.Fprintf(w, "%s\t%v\t%d-%d\t0\t-\n", read.ID, m.Score, m.Start, m.End)
			continue
		}
		call, err := squiggle.PathToBasecall(seq, m.Squiggle.KmerLen, m.Path)
		if err != nil {
			return err
		}
		aligned := 0
		for _, p := range m.Path {
			if p >= 0 {
				aligned++
			}
		}
		fmt.Fprintf(w, "%s\t%v\t%d-%d\t%d\t%s\n", read.ID, m.Score, m.Start, m.End, aligned, call)

		if *pngDir == "" && *htmlDir == "" {
			continue
		}
		if err := plot(fsys, m, *pngDir, *htmlDir); err != nil {
			return err
		}
	}
}

func plot(fsys fsutil.FileSystem, m pipeline.SignalMapping, pngDir, htmlDir string) error {
	series, err := render.AlignmentSeries(m.Signal, m.Squiggle, m.Path)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("%s score=%.2f", m.ReadID, m.Score)
	if pngDir != "" {
		if err := render.AlignmentPNG(fsys, filepath.Join(pngDir, render.FileName(m.ReadID, ".png")), title, series); err != nil {
			return err
		}
	}
	if htmlDir != "" {
		if err := fsys.MkdirAll(htmlDir, 0o755); err != nil {
			return err
		}
		f, err := fsys.Create(filepath.Join(htmlDir, render.FileName(m.ReadID, ".html")))
		if err != nil {
			return err
		}
		if err := render.AlignmentHTML(f, title, series); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	return nil
}
