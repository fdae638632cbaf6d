package store

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var gzipMagic = []byte{0x1f, 0x8b}

// FileSource reads a semicolon-delimited UTF-8 file. Gzip-compressed files
// are detected by their magic bytes and decompressed on the fly.
type FileSource struct {
	Path  string
	Comma rune
}

// NewFileSource creates a source for the file at path using ';' as delimiter.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path, Comma: ';'}
}

func (s *FileSource) Name() string { return "file " + s.Path }

func (s *FileSource) Open(_ context.Context, columns []string) (Rows, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", s.Path, err)
	}

	rows, err := newDelimitedRows(f, s.Comma, s.Name(), columns)
	if err != nil {
		f.Close()
		return nil, err
	}
	rows.closers = append(rows.closers, f)
	return rows, nil
}

// NewReaderSource wraps an already open stream, e.g. an embedded fixture.
func NewReaderSource(name string, r io.Reader) Source {
	return &readerSource{name: name, r: r}
}

type readerSource struct {
	name string
	r    io.Reader
}

func (s *readerSource) Name() string { return s.name }

func (s *readerSource) Open(_ context.Context, columns []string) (Rows, error) {
	return newDelimitedRows(s.r, ';', s.name, columns)
}

type delimitedRows struct {
	reader    *csv.Reader
	positions []int
	buf       []string
	err       error
	skipped   int
	closers   []io.Closer
}

func newDelimitedRows(r io.Reader, comma rune, name string, columns []string) (*delimitedRows, error) {
	br := bufio.NewReader(r)
	rows := &delimitedRows{buf: make([]string, len(columns))}

	var src io.Reader = br
	if magic, err := br.Peek(len(gzipMagic)); err == nil && bytes.Equal(magic, gzipMagic) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%s: gzip: %w", name, err)
		}
		rows.closers = append(rows.closers, gz)
		src = gz
	}

	reader := csv.NewReader(src)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("%s: read header: %w", name, err)
	}
	if len(header) > 0 {
		header[0] = trimBOM(header[0])
	}
	rows.positions, err = columnPositions(name, header, columns)
	if err != nil {
		rows.Close()
		return nil, err
	}
	rows.reader = reader
	return rows, nil
}

func (r *delimitedRows) Next() bool {
	if r.err != nil {
		return false
	}
	for {
		rec, err := r.reader.Read()
		if err == io.EOF {
			return false
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			r.skipped++
			continue
		}
		if err != nil {
			r.err = err
			return false
		}
		for i, p := range r.positions {
			if p < len(rec) {
				r.buf[i] = rec[p]
			} else {
				r.buf[i] = ""
			}
		}
		return true
	}
}

func (r *delimitedRows) Record() []string { return r.buf }

func (r *delimitedRows) Err() error { return r.err }

// Skipped reports how many malformed lines were dropped.
func (r *delimitedRows) Skipped() int { return r.skipped }

func (r *delimitedRows) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

func trimBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}
