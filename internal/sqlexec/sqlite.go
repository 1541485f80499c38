// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlexec

import (
	"context"
	"database/sql"

	"sqlaunch/cli/internal/dsn"

	_ "modernc.org/sqlite"
)

// DefaultSQLiteDSN is the embedded in-memory database used when no DSN is given.
const DefaultSQLiteDSN = "file::memory:"

func init() {
	Register("sqlite", openSQLite)
}

func openSQLite(ctx context.Context, source string, opts Options) (Executor, error) {
	if source == "" {
		source = DefaultSQLiteDSN
	}
	db, err := sql.Open("sqlite", source)
	if err != nil {
		return nil, err
	}
	switch {
	case dsn.IsMemory(source):
		// Every new connection to :memory: is a fresh database; pin one.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	case opts.MaxConns > 0:
		db.SetMaxOpenConns(opts.MaxConns)
	}
	return &SQLDBExecutor{name: "sqlite", DB: db}, nil
}
