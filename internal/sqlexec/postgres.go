// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlexec

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

func init() {
	Register("postgres", openPostgres)
}

// PostgresExecutor executes SQL statements using a pgx connection pool.
type PostgresExecutor struct {
	Pool *pgxpool.Pool
}

func openPostgres(ctx context.Context, dsn string, opts Options) (Executor, error) {
	if dsn == "" {
		return nil, errors.New("postgres engine requires a DSN")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = poolSize(opts.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PostgresExecutor{Pool: pool}, nil
}

// poolSize converts a connection bound to pgx's int32, saturating at MaxInt32.
func poolSize(n int) int32 {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(n)
}

func (e *PostgresExecutor) Name() string { return "postgres" }

// Exec runs the statement inside its own transaction so the write is
// committed before the job reports success.
func (e *PostgresExecutor) Exec(ctx context.Context, sql string) (Result, error) {
	res := Result{Columns: []string{}, Rows: [][]any{}}
	tx, err := e.Pool.Begin(ctx)
	if err != nil {
		return res, err
	}
	defer tx.Rollback(ctx) // no-op after commit

	ct, err := tx.Exec(ctx, sql)
	if err != nil {
		return res, err
	}
	res.RowsAffected = ct.RowsAffected()
	if err := tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("commit failed: %w", err)
	}
	return res, nil
}

func (e *PostgresExecutor) Query(ctx context.Context, sql string) (Result, error) {
	res := Result{Columns: []string{}, Rows: [][]any{}}
	rows, err := e.Pool.Query(ctx, sql)
	if err != nil {
		return res, err
	}
	defer rows.Close()

	for _, fd := range rows.FieldDescriptions() {
		res.Columns = append(res.Columns, fd.Name)
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return res, err
		}
		res.Rows = append(res.Rows, vals)
	}
	return res, rows.Err()
}

// Prepare sends the statement to the server as an unnamed prepared statement,
// so syntax and catalog errors surface before execution. Scripts holding
// several commands cannot be prepared and are accepted as they are.
func (e *PostgresExecutor) Prepare(ctx context.Context, sql string) error {
	conn, err := e.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Conn().PgConn().Prepare(ctx, "", sql, nil)
	if isMultiCommand(err) {
		return nil
	}
	return err
}

func isMultiCommand(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42601" &&
		strings.Contains(pgErr.Message, "multiple commands")
}

func (e *PostgresExecutor) Ping(ctx context.Context) error { return e.Pool.Ping(ctx) }

func (e *PostgresExecutor) Close() error {
	e.Pool.Close()
	return nil
}
