package source

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxLine bounds a single TSV record.
const maxLine = 64 * 1024 * 1024

// TSV reads `id<TAB>v1,v2,...` records of calibrated samples. Blank lines
// and lines starting with '#' are skipped.
type TSV struct {
	name    string
	rc      io.ReadCloser
	scanner *bufio.Scanner
	line    int
}

// NewTSV wraps rc; name is used in error messages.
func NewTSV(name string, rc io.ReadCloser) *TSV {
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &TSV{name: name, rc: rc, scanner: sc}
}

// Next parses the next record.
func (t *TSV) Next() (Read, error) {
	for t.scanner.Scan() {
		t.line++
		text := strings.TrimRight(t.scanner.Text(), "\r")
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		r, err := parseRecord(text)
		if err != nil {
			return Read{}, fmt.Errorf("%s:%d: %w", t.name, t.line, err)
		}
		return r, nil
	}
	if err := t.scanner.Err(); err != nil {
		return Read{}, fmt.Errorf("%s: %w", t.name, err)
	}
	return Read{}, io.EOF
}

// Close closes the underlying reader.
func (t *TSV) Close() error {
	return t.rc.Close()
}

func parseRecord(text string) (Read, error) {
	id, values, ok := strings.Cut(text, "\t")
	if !ok || id == "" {
		return Read{}, fmt.Errorf("expected id<TAB>samples")
	}
	values = strings.TrimSpace(values)
	if values == "" {
		return Read{ID: id}, nil
	}

	fields := strings.Split(values, ",")
	samples := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return Read{}, fmt.Errorf("read %s sample %d: %w", id, i, err)
		}
		samples[i] = float32(v)
	}
	return Read{ID: id, Samples: samples}, nil
}

// WriteTSV writes reads in the format NewTSV parses.
func WriteTSV(w io.Writer, reads ...Read) error {
	bw := bufio.NewWriter(w)
	for _, r := range reads {
		bw.WriteString(r.ID)
		bw.WriteByte('\t')
		for i, v := range r.Samples {
			if i > 0 {
				bw.WriteByte(',')
			}
			bw.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
