// Command nanocall basecalls raw nanopore reads.
//
//	nanocall [flags] model source...
//
// Sources are TSV files of calibrated samples or sqlite read stores. Results
// are printed as FASTA in input order:
//
//	>{read} {score} {start}-{end}
//	{basecall}
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"google.golang.org/grpc"

	"github.com/banshee-data/nanocall/internal/config"
	"github.com/banshee-data/nanocall/internal/db"
	"github.com/banshee-data/nanocall/internal/fsutil"
	"github.com/banshee-data/nanocall/internal/models"
	"github.com/banshee-data/nanocall/internal/monitoring"
	"github.com/banshee-data/nanocall/internal/pipeline"
	"github.com/banshee-data/nanocall/internal/scoring"
	"github.com/banshee-data/nanocall/internal/source"
	"github.com/banshee-data/nanocall/internal/squiggle"
	"github.com/banshee-data/nanocall/internal/timeutil"
	"github.com/banshee-data/nanocall/internal/version"
)

// Exit codes.
const (
	exitOK         = 0
	exitFailure    = 1 // bad arguments, unusable source or store
	exitReadFailed = 2 // -strict and at least one read failed
)

// stayProb is the stay share used by the in-process pore model scorer.
const stayProb = 0.3

type options struct {
	threads    int
	pool       string
	configPath string
	scorer     string
	serve      string
	kmerTable  string
	dbPath     string
	strict     bool
	verbose    bool
	version    bool
}

func newFlagSet(stderr io.Writer, o *options) *flag.FlagSet {
	fs := flag.NewFlagSet("nanocall", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&o.threads, "threads", runtime.NumCPU(), "number of reads basecalled concurrently")
	fs.StringVar(&o.pool, "pool", "goroutine", "worker pool kind: goroutine or process")
	fs.StringVar(&o.configPath, "config", "", "JSON tuning file (default: built-in values)")
	fs.StringVar(&o.scorer, "scorer", "", "gRPC address of a remote scorer")
	fs.StringVar(&o.serve, "serve", "", "serve the in-process scorers over gRPC on this address instead of basecalling")
	fs.StringVar(&o.kmerTable, "kmer-table", "", "pore model TSV for the in-process scorer (default: synthetic)")
	fs.StringVar(&o.dbPath, "db", "", "sqlite results store")
	fs.BoolVar(&o.strict, "strict", false, "exit with status 2 if any read fails")
	fs.BoolVar(&o.verbose, "verbose", false, "debug logging")
	fs.BoolVar(&o.version, "version", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: nanocall [flags] model source...\n\nmodels: %s\n\n", strings.Join(models.Names(), ", "))
		fs.PrintDefaults()
	}
	return fs
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var o options
	fs := newFlagSet(stderr, &o)
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}
	if o.version {
		fmt.Fprintln(stdout, version.String("nanocall"))
		return exitOK
	}
	monitoring.SetVerbose(o.verbose)

	cfg := config.Empty()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			monitoring.Logf("config: %v", err)
			return exitFailure
		}
	}

	if o.serve != "" {
		if err := serve(ctx, o); err != nil {
			monitoring.Logf("serve: %v", err)
			return exitFailure
		}
		return exitOK
	}

	if fs.NArg() < 2 {
		fs.Usage()
		return exitFailure
	}
	model, err := models.ParseModel(fs.Arg(0))
	if err != nil {
		monitoring.Logf("%v", err)
		return exitFailure
	}

	switch o.pool {
	case "goroutine":
	case "process":
		monitoring.Logf("process pools are not supported; using %d goroutines", o.threads)
	default:
		monitoring.Logf("unknown -pool %q: want goroutine or process", o.pool)
		return exitFailure
	}

	registry, closeScorers, err := scorers(o, model)
	if err != nil {
		monitoring.Logf("scorer: %v", err)
		return exitFailure
	}
	defer closeScorers()

	var store *db.DB
	if o.dbPath != "" {
		if store, err = db.NewDB(o.dbPath); err != nil {
			monitoring.Logf("results store: %v", err)
			return exitFailure
		}
		defer store.Close()
	}

	clock := timeutil.RealClock{}
	caller := &pipeline.Caller{Model: model, Scorers: registry, Config: cfg, Clock: clock}
	batch := pipeline.NewBatch(caller, o.threads)
	if store != nil {
		if _, err := store.StartRun(ctx, batch.ID, model.String(), clock.Now()); err != nil {
			monitoring.Logf("results store: %v", err)
			return exitFailure
		}
	}

	w := bufio.NewWriter(stdout)
	defer w.Flush()

	visit := func(out pipeline.Outcome) error {
		if store != nil {
			if err := store.RecordBasecall(ctx, record(batch.ID, out)); err != nil {
				return err
			}
		}
		if out.Err != nil {
			return nil
		}
		_, err := fmt.Fprintf(w, ">%s %v %d-%d\n%s\n", out.ReadID, out.Score, out.Start, out.End, out.Basecall)
		return err
	}

	var total pipeline.Summary
	code := exitOK
	for _, path := range fs.Args()[1:] {
		sum, err := basecallSource(ctx, batch, path, visit)
		total.OK += sum.OK
		total.Empty += sum.Empty
		total.Failed += sum.Failed
		if err != nil {
			monitoring.Logf("%s: %v", path, err)
			code = exitFailure
			break
		}
	}

	if store != nil {
		if err := store.FinishRun(context.WithoutCancel(ctx), batch.ID, clock.Now(), total.OK, total.Failed); err != nil {
			monitoring.Logf("results store: %v", err)
			code = exitFailure
		}
	}
	monitoring.Logf("run %s: %d reads ok (%d empty), %d failed", batch.ID, total.OK, total.Empty, total.Failed)

	if code == exitOK && o.strict && total.Failed > 0 {
		code = exitReadFailed
	}
	return code
}

func basecallSource(ctx context.Context, batch *pipeline.Batch, path string, visit func(pipeline.Outcome) error) (pipeline.Summary, error) {
	src, err := source.Open(fsutil.OSFileSystem{}, path)
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer src.Close()
	return batch.RunSource(ctx, src, visit)
}

func record(runID string, out pipeline.Outcome) db.Basecall {
	b := db.Basecall{
		RunID:    runID,
		ReadID:   out.ReadID,
		Score:    out.Score,
		Start:    out.Start,
		End:      out.End,
		Sequence: out.Basecall,
		Elapsed:  out.Elapsed,
		Empty:    out.Empty,
	}
	if out.Err != nil {
		b.Err = out.Err.Error()
	}
	return b
}

// scorers returns the registry for model: a remote scorer when -scorer is
// set, otherwise the in-process pore models.
func scorers(o options, model models.Model) (scoring.Registry, func(), error) {
	if o.scorer != "" {
		client, err := scoring.Dial(o.scorer)
		if err != nil {
			return nil, nil, err
		}
		return client.Registry(model), func() { client.Close() }, nil
	}
	reg, err := localRegistry(fsutil.OSFileSystem{}, o.kmerTable)
	return reg, func() {}, err
}

// localRegistry registers a pore model scorer for every transducer model.
// CRF models need a remote scorer.
func localRegistry(fsys fsutil.FileSystem, tablePath string) (scoring.Registry, error) {
	tbl, err := loadTable(fsys, tablePath)
	if err != nil {
		return nil, err
	}
	reg := scoring.Registry{}
	for _, name := range models.Names() {
		m, _ := models.ParseModel(name)
		if m.Decoder() != models.DecoderTransducer {
			continue
		}
		pm, err := scoring.NewPoreModel(tbl, m.Stride(), stayProb)
		if err != nil {
			return nil, err
		}
		if pm.States() != m.States() {
			continue
		}
		reg[m] = pm
	}
	return reg, nil
}

func loadTable(fsys fsutil.FileSystem, path string) (*squiggle.KmerTable, error) {
	if path == "" {
		return squiggle.SyntheticTable(models.SquiggleR94, 1)
	}
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return squiggle.LoadKmerTable(f, models.SquiggleR94)
}

func serve(ctx context.Context, o options) error {
	reg, err := localRegistry(fsutil.OSFileSystem{}, o.kmerTable)
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", o.serve)
	if err != nil {
		return err
	}

	s := grpc.NewServer(scoring.ServerOptions()...)
	scoring.RegisterScorerServer(s, scoring.NewServer(reg))

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()
	monitoring.Logf("scorer listening on %s (%d models)", lis.Addr(), len(reg))
	if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
