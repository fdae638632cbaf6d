// Package store defines where the trade dataset is read from.
// Implementations include a semicolon-delimited (optionally gzipped) file,
// PostgreSQL, SQLite, and in-memory rows (for testing).
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrMissingColumns is matched by every MissingColumnsError.
	ErrMissingColumns = errors.New("store: required columns missing")

	// ErrInvalidTable is returned when a table name is not a plain identifier.
	ErrInvalidTable = errors.New("store: invalid table name")
)

// MissingColumnsError names every requested column absent from a source.
type MissingColumnsError struct {
	Source  string
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("store: %s is missing required columns: %s",
		e.Source, strings.Join(e.Missing, ", "))
}

func (e *MissingColumnsError) Is(target error) bool { return target == ErrMissingColumns }

// Source opens a single-pass row stream over a dataset.
type Source interface {
	// Open returns rows restricted to columns, in that order. It fails with
	// a *MissingColumnsError before yielding anything if a column is absent.
	Open(ctx context.Context, columns []string) (Rows, error)

	// Name identifies the source in logs and errors.
	Name() string
}

// Rows iterates raw text values. Modeled on pgx.Rows.
type Rows interface {
	Next() bool
	// Record returns the current row's values in requested column order.
	// The slice is only valid until the next call to Next.
	Record() []string
	Err() error
	Close() error
}

// columnPositions maps each requested column to its position in have.
func columnPositions(source string, have, want []string) ([]int, error) {
	index := make(map[string]int, len(have))
	for i, h := range have {
		index[strings.TrimSpace(h)] = i
	}

	positions := make([]int, len(want))
	var missing []string
	for i, w := range want {
		pos, ok := index[w]
		if !ok {
			missing = append(missing, w)
			continue
		}
		positions[i] = pos
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Source: source, Missing: missing}
	}
	return positions, nil
}

var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validIdent(name string) error {
	if !identRegex.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, name)
	}
	return nil
}
