package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/banshee-data/nanocall/internal/monitoring"
	"github.com/banshee-data/nanocall/internal/source"
)

// Outcome pairs a read's result with its per-read error, if any.
type Outcome struct {
	Result
	Err error
}

// Summary counts the reads a batch processed.
type Summary struct {
	RunID  string
	OK     int // includes empty reads
	Empty  int
	Failed int
}

// Batch basecalls a stream of reads on a fixed pool of workers.
type Batch struct {
	ID      string
	Caller  *Caller
	Threads int
}

// NewBatch creates a batch with a fresh run id.
func NewBatch(c *Caller, threads int) *Batch {
	return &Batch{ID: uuid.NewString(), Caller: c, Threads: threads}
}

// Run basecalls every read from reads and calls visit once per read in
// input order. A failed read is logged and delivered with Err set; it does
// not stop the batch. Run returns the first error from visit, or the
// context's error if it ends first.
func (b *Batch) Run(ctx context.Context, reads <-chan source.Read, visit func(Outcome) error) (Summary, error) {
	threads := b.Threads
	if threads < 1 {
		threads = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type job struct {
		seq  int
		read source.Read
	}
	type done struct {
		seq int
		out Outcome
	}
	jobs := make(chan job, threads*2)
	results := make(chan done, threads*2)

	// Workers
	var wg sync.WaitGroup
	wg.Add(threads)
	for w := 0; w < threads; w++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case j, ok := <-jobs:
					if !ok {
						return
					}
					res, err := b.Caller.Basecall(ctx, j.read)
					select {
					case results <- done{seq: j.seq, out: Outcome{Result: res, Err: err}}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	// Collector: release outcomes in input order.
	var (
		sum  = Summary{RunID: b.ID}
		cerr error
		cwg  sync.WaitGroup
	)
	cwg.Add(1)
	go func() {
		defer cwg.Done()
		pending := make(map[int]Outcome)
		next := 0
		for d := range results {
			pending[d.seq] = d.out
			for {
				out, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++
				if cerr != nil {
					continue
				}
				b.count(&sum, out)
				if err := visit(out); err != nil {
					cerr = err
					cancel()
				}
			}
		}
	}()

	// Feed work
	seq := 0
feed:
	for {
		select {
		case <-ctx.Done():
			break feed
		case r, ok := <-reads:
			if !ok {
				break feed
			}
			select {
			case <-ctx.Done():
				break feed
			case jobs <- job{seq: seq, read: r}:
				seq++
			}
		}
	}

	close(jobs)
	wg.Wait()
	close(results)
	cwg.Wait()

	if cerr != nil {
		return sum, cerr
	}
	return sum, ctx.Err()
}

func (b *Batch) count(sum *Summary, out Outcome) {
	switch {
	case out.Err != nil:
		sum.Failed++
		monitoring.Logger().Warn("read failed",
			zap.String("run", b.ID),
			zap.String("read", out.ReadID),
			zap.Error(out.Err),
		)
	case out.Empty:
		sum.OK++
		sum.Empty++
	default:
		sum.OK++
	}
}

// RunSource feeds src into the batch. A source error cancels the batch and
// is returned in preference to any other error.
func (b *Batch) RunSource(ctx context.Context, src source.Source, visit func(Outcome) error) (Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reads := make(chan source.Read)
	feedErr := make(chan error, 1)
	go func() {
		defer close(reads)
		err := source.Feed(ctx, src, reads)
		if err != nil {
			cancel()
		}
		feedErr <- err
	}()

	sum, err := b.Run(ctx, reads, visit)
	cancel()
	if ferr := <-feedErr; ferr != nil && !errors.Is(ferr, context.Canceled) {
		return sum, ferr
	}
	return sum, err
}
