// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlexec

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/microsoft/go-mssqldb"
)

func init() {
	Register("sqlserver", openSQLServer)
}

func openSQLServer(ctx context.Context, dsn string, opts Options) (Executor, error) {
	if dsn == "" {
		return nil, errors.New("sqlserver engine requires a DSN")
	}
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, err
	}
	if opts.MaxConns > 0 {
		db.SetMaxOpenConns(opts.MaxConns)
	}
	return &SQLDBExecutor{name: "sqlserver", DB: db}, nil
}
