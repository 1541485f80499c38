// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"net/url"
	"sort"
	"strings"
)

// MemoryPath is the sqlite path of a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteResolver handles sqlite file paths, file: URIs and sqlite:// URLs.
type SQLiteResolver struct{}

// NewSQLiteResolver creates a new SQLite resolver
func NewSQLiteResolver() *SQLiteResolver {
	return &SQLiteResolver{}
}

// Parse extracts the database path and query parameters.
func (r *SQLiteResolver) Parse(dsn string) (*DSNInfo, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, NewParseError(dsn, "empty DSN", "provide a sqlite file path or :memory:")
	}

	path := trimmed
	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, "sqlite://"):
		path = trimmed[len("sqlite://"):]
	case strings.HasPrefix(lower, "file:"):
		path = trimmed[len("file:"):]
	}

	info := &DSNInfo{
		Type:     DBTypeSQLite,
		Params:   make(map[string]string),
		Original: dsn,
	}
	path, query, _ := strings.Cut(path, "?")
	if query != "" {
		values, err := url.ParseQuery(query)
		if err != nil {
			return nil, NewParseError(dsn, "invalid query parameters", "use file:path.db?key=value")
		}
		for k, v := range values {
			if len(v) > 0 {
				info.Params[k] = v[0]
			}
		}
	}
	if path == "" {
		return nil, NewParseError(dsn, "missing database path", "provide a file path or :memory:")
	}
	info.Database = path
	return info, nil
}

// Normalize returns a file: URI accepted by the sqlite driver.
func (r *SQLiteResolver) Normalize(info *DSNInfo) (string, error) {
	if info == nil {
		return "", NewParseError("", "nil DSN info", "")
	}
	out := "file:" + info.Database
	if len(info.Params) > 0 {
		keys := make([]string, 0, len(info.Params))
		for k := range info.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		q := make([]string, 0, len(keys))
		for _, k := range keys {
			q = append(q, url.QueryEscape(k)+"="+url.QueryEscape(info.Params[k]))
		}
		out += "?" + strings.Join(q, "&")
	}
	return out, nil
}

// Validate checks that a path is present.
func (r *SQLiteResolver) Validate(dsn string) error {
	_, err := r.Parse(dsn)
	return err
}

// IsMemory reports whether the normalized sqlite DSN points at an in-memory database.
func IsMemory(dsn string) bool {
	info, err := NewSQLiteResolver().Parse(dsn)
	if err != nil {
		return false
	}
	return info.Database == MemoryPath || info.Params["mode"] == "memory"
}
