package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteSource reads the dataset from a table in a SQLite file.
type SQLiteSource struct {
	db    *sql.DB
	table string
}

// OpenSQLite opens the database at path. The caller owns Close.
func OpenSQLite(path, table string) (*SQLiteSource, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	if err := validIdent(table); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &SQLiteSource{db: db, table: table}, nil
}

// NewSQLiteSource wraps an existing handle.
func NewSQLiteSource(db *sql.DB, table string) (*SQLiteSource, error) {
	if err := validIdent(table); err != nil {
		return nil, err
	}
	return &SQLiteSource{db: db, table: table}, nil
}

func (s *SQLiteSource) Name() string { return "sqlite table " + s.table }

func (s *SQLiteSource) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteSource) Open(ctx context.Context, columns []string) (Rows, error) {
	have, err := s.tableColumns(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := columnPositions(s.Name(), have, columns); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, selectAsText(columns, quoteSQLite(s.table), quoteSQLite, "CAST(%s AS TEXT)"))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	return &sqlRows{
		rows: rows,
		vals: make([]sql.NullString, len(columns)),
		buf:  make([]string, len(columns)),
	}, nil
}

func (s *SQLiteSource) tableColumns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, s.table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", s.table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// Identifiers are pre-validated, so plain double quoting is enough.
func quoteSQLite(ident string) string { return `"` + ident + `"` }

type sqlRows struct {
	rows *sql.Rows
	vals []sql.NullString
	buf  []string
	err  error
}

func (r *sqlRows) Next() bool {
	if r.err != nil || !r.rows.Next() {
		return false
	}
	dest := make([]any, len(r.vals))
	for i := range r.vals {
		dest[i] = &r.vals[i]
	}
	if err := r.rows.Scan(dest...); err != nil {
		r.err = err
		return false
	}
	for i, v := range r.vals {
		r.buf[i] = v.String
	}
	return true
}

func (r *sqlRows) Record() []string { return r.buf }

func (r *sqlRows) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.rows.Err()
}

func (r *sqlRows) Close() error { return r.rows.Close() }
