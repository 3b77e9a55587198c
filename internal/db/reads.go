package db

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/banshee-data/nanocall/internal/rawsignal"
)

// RawRead is an uncalibrated read as stored in the reads table.
type RawRead struct {
	ID           string
	Samples      []int16
	Offset       float32
	Range        float32
	Digitisation float32
}

// Calibrated returns the read in picoamps.
func (r RawRead) Calibrated() []float32 {
	return rawsignal.Calibrate(r.Samples, r.Offset, r.Range, r.Digitisation)
}

func encodeSamples(samples []int16) []byte {
	buf := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}
	return buf
}

func decodeSamples(buf []byte) ([]int16, error) {
	if len(buf)%2 != 0 {
		return nil, fmt.Errorf("sample blob has odd length %d", len(buf))
	}
	out := make([]int16, len(buf)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(buf[2*i:]))
	}
	return out, nil
}

// InsertRead stores a raw read, replacing any read with the same id.
func (db *DB) InsertRead(ctx context.Context, r RawRead) error {
	if r.Digitisation == 0 {
		return fmt.Errorf("read %s: digitisation must be non-zero", r.ID)
	}
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO reads (read_id, samples, sample_offset, sample_range, digitisation)
		VALUES (?, ?, ?, ?, ?)`,
		r.ID, encodeSamples(r.Samples), r.Offset, r.Range, r.Digitisation,
	)
	if err != nil {
		return fmt.Errorf("failed to insert read %s: %w", r.ID, err)
	}
	return nil
}

// ReadCursor iterates over stored reads in insertion order.
type ReadCursor struct {
	rows *sql.Rows
}

// OpenReads starts a scan over the reads table.
func (db *DB) OpenReads(ctx context.Context) (*ReadCursor, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT read_id, samples, sample_offset, sample_range, digitisation
		FROM reads ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reads: %w", err)
	}
	return &ReadCursor{rows: rows}, nil
}

// Next returns the next read, or io.EOF after the last one.
func (c *ReadCursor) Next() (RawRead, error) {
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			return RawRead{}, err
		}
		return RawRead{}, io.EOF
	}

	var (
		r    RawRead
		blob []byte
	)
	if err := c.rows.Scan(&r.ID, &blob, &r.Offset, &r.Range, &r.Digitisation); err != nil {
		return RawRead{}, fmt.Errorf("failed to scan read: %w", err)
	}
	samples, err := decodeSamples(blob)
	if err != nil {
		return RawRead{}, fmt.Errorf("read %s: %w", r.ID, err)
	}
	r.Samples = samples
	return r, nil
}

// Close releases the underlying rows.
func (c *ReadCursor) Close() error {
	return c.rows.Close()
}

// CountReads returns the number of stored reads.
func (db *DB) CountReads(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reads`).Scan(&n)
	return n, err
}
