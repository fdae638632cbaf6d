package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSource reads the dataset from a PostgreSQL table. Every column is
// cast to TEXT so NUMERIC amounts keep their exact decimal representation.
type PostgresSource struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresSource creates a source reading table through pool.
func NewPostgresSource(pool *pgxpool.Pool, table string) (*PostgresSource, error) {
	if err := validIdent(table); err != nil {
		return nil, err
	}
	return &PostgresSource{pool: pool, table: table}, nil
}

func (s *PostgresSource) Name() string { return "postgres table " + s.table }

func (s *PostgresSource) Open(ctx context.Context, columns []string) (Rows, error) {
	have, err := s.tableColumns(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := columnPositions(s.Name(), have, columns); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, selectAsText(columns, pgx.Identifier{s.table}.Sanitize(), quotePostgres, "%s::TEXT"))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	return &pgRows{rows: rows, buf: make([]string, len(columns))}, nil
}

func (s *PostgresSource) tableColumns(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = current_schema() AND table_name = $1
		 ORDER BY ordinal_position`, s.table)
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

func quotePostgres(col string) string { return pgx.Identifier{col}.Sanitize() }

// selectAsText builds SELECT cast(col), ... FROM table.
func selectAsText(columns []string, table string, quote func(string) string, cast string) string {
	exprs := make([]string, len(columns))
	for i, c := range columns {
		exprs[i] = fmt.Sprintf(cast, quote(c))
	}
	return "SELECT " + strings.Join(exprs, ", ") + " FROM " + table
}

type pgRows struct {
	rows pgx.Rows
	buf  []string
	err  error
}

func (r *pgRows) Next() bool {
	if r.err != nil || !r.rows.Next() {
		return false
	}
	values, err := r.rows.Values()
	if err != nil {
		r.err = err
		return false
	}
	for i, v := range values {
		// NULL arrives as nil; the loader treats "" as missing.
		if s, ok := v.(string); ok {
			r.buf[i] = s
		} else {
			r.buf[i] = ""
		}
	}
	return true
}

func (r *pgRows) Record() []string { return r.buf }

func (r *pgRows) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.rows.Err()
}

func (r *pgRows) Close() error {
	r.rows.Close()
	return nil
}
