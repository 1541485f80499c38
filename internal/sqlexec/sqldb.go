package sqlexec

import (
	"context"
	"database/sql"
)

// SQLDBExecutor runs statements through database/sql. It serves the engines
// whose drivers only ship a database/sql interface.
type SQLDBExecutor struct {
	name string
	DB   *sql.DB
}

func (e *SQLDBExecutor) Name() string { return e.name }

func (e *SQLDBExecutor) Exec(ctx context.Context, query string) (Result, error) {
	res := Result{Columns: []string{}, Rows: [][]any{}}
	r, err := e.DB.ExecContext(ctx, query)
	if err != nil {
		return res, err
	}
	if n, err := r.RowsAffected(); err == nil {
		res.RowsAffected = n
	}
	return res, nil
}

func (e *SQLDBExecutor) Query(ctx context.Context, query string) (Result, error) {
	res := Result{Columns: []string{}, Rows: [][]any{}}
	rows, err := e.DB.QueryContext(ctx, query)
	if err != nil {
		return res, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return res, err
	}
	res.Columns = cols
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return res, err
		}
		res.Rows = append(res.Rows, vals)
	}
	return res, rows.Err()
}

// Prepare asks the driver to compile query. Drivers that prepare lazily
// (sqlserver) accept anything here and report errors at execution.
func (e *SQLDBExecutor) Prepare(ctx context.Context, query string) error {
	stmt, err := e.DB.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	return stmt.Close()
}

func (e *SQLDBExecutor) Ping(ctx context.Context) error { return e.DB.PingContext(ctx) }

func (e *SQLDBExecutor) Close() error { return e.DB.Close() }
