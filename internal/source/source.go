// Package source reads raw nanopore signals from TSV files and sqlite read
// stores.
package source

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/banshee-data/nanocall/internal/fsutil"
)

// Read is a calibrated signal with its identifier.
type Read struct {
	ID      string
	Samples []float32
}

// Source yields reads in order. Next returns io.EOF after the last read.
type Source interface {
	Next() (Read, error)
	Close() error
}

// Open picks a Source by file extension: .tsv and .txt are TSV, .db and
// .sqlite are read stores. TSV files are read through fsys.
func Open(fsys fsutil.FileSystem, path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".txt":
		f, err := fsys.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		return NewTSV(path, f), nil
	case ".db", ".sqlite":
		return OpenStore(context.Background(), path)
	default:
		return nil, fmt.Errorf("unsupported source %q: want .tsv, .txt, .db or .sqlite", path)
	}
}

// Feed sends every read from src to out until io.EOF, the context ends, or
// src fails. It does not close out.
func Feed(ctx context.Context, src Source, out chan<- Read) error {
	for {
		r, err := src.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case out <- r:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
