// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

var rePort = regexp.MustCompile(`^\d+$`)

// ServerResolver handles URL-style DSNs of networked databases
// (PostgreSQL and SQL Server).
type ServerResolver struct {
	dbType      DBType
	schemes     []string
	canonical   string
	defaultPort string
	// dbParam names the query parameter carrying the database when the
	// driver expects it there instead of in the path.
	dbParam string
}

// NewPostgreSQLResolver creates a new PostgreSQL resolver
func NewPostgreSQLResolver() *ServerResolver {
	return &ServerResolver{
		dbType:      DBTypePostgreSQL,
		schemes:     []string{"postgresql", "postgres"},
		canonical:   "postgresql",
		defaultPort: "5432",
	}
}

// NewSQLServerResolver creates a new SQL Server resolver
func NewSQLServerResolver() *ServerResolver {
	return &ServerResolver{
		dbType:      DBTypeSQLServer,
		schemes:     []string{"sqlserver"},
		canonical:   "sqlserver",
		defaultPort: "1433",
		dbParam:     "database",
	}
}

func (r *ServerResolver) format() string {
	if r.dbParam != "" {
		return r.canonical + "://user:password@host:port?" + r.dbParam + "=name"
	}
	return r.canonical + "://user:password@host:port/database"
}

// Parse parses a DSN string and returns DSN info
func (r *ServerResolver) Parse(dsn string) (*DSNInfo, error) {
	if dsn == "" {
		return nil, NewParseError(dsn, "empty DSN", "provide a valid connection string")
	}

	remainder := ""
	lower := strings.ToLower(dsn)
	for _, s := range r.schemes {
		if strings.HasPrefix(lower, s+"://") {
			remainder = dsn[len(s)+3:]
			break
		}
	}
	if remainder == "" {
		return nil, NewParseError(dsn, "missing or invalid scheme", "use "+strings.Join(r.schemes, ":// or ")+"://")
	}

	// Standard URL parsing fails on unencoded special characters in the
	// password, which is common in copied connection strings.
	if parsed, err := url.Parse(dsn); err == nil && parsed.User != nil {
		info := &DSNInfo{
			Host:     parsed.Hostname(),
			Port:     parsed.Port(),
			User:     parsed.User.Username(),
			Database: strings.TrimSpace(strings.TrimPrefix(parsed.Path, "/")),
			Params:   make(map[string]string),
		}
		info.Password, _ = parsed.User.Password()
		for key, values := range parsed.Query() {
			if len(values) > 0 {
				info.Params[key] = values[0]
			}
		}
		return r.finish(info, dsn)
	}
	return r.manualParse(remainder, dsn)
}

// manualParse splits [user[:password]@]host[:port][/database][?params] by hand.
// The last @ separates credentials so passwords may contain @.
func (r *ServerResolver) manualParse(remainder, original string) (*DSNInfo, error) {
	info := &DSNInfo{Params: make(map[string]string)}

	at := strings.LastIndex(remainder, "@")
	if at == -1 {
		return nil, NewParseError(original, "missing @ separator", "format should be "+r.format())
	}
	auth, rest := remainder[:at], remainder[at+1:]
	if user, pass, ok := strings.Cut(auth, ":"); ok {
		info.User, info.Password = user, pass
	} else {
		info.User = auth
	}

	rest, query, _ := strings.Cut(rest, "?")
	hostPart, db, _ := strings.Cut(rest, "/")
	info.Database = strings.TrimSpace(db)
	if host, port, ok := strings.Cut(hostPart, ":"); ok {
		info.Host, info.Port = host, port
	} else {
		info.Host = hostPart
	}
	if query != "" {
		for _, param := range strings.Split(query, "&") {
			if k, v, ok := strings.Cut(param, "="); ok {
				info.Params[k] = v
			}
		}
	}
	return r.finish(info, original)
}

func (r *ServerResolver) finish(info *DSNInfo, original string) (*DSNInfo, error) {
	info.Type = r.dbType
	info.Original = original
	if info.Port == "" {
		info.Port = r.defaultPort
	}
	if r.dbParam != "" && info.Database == "" {
		info.Database = info.Params[r.dbParam]
	}
	if r.dbParam != "" {
		delete(info.Params, r.dbParam)
	}

	if strings.TrimSpace(info.User) == "" {
		return nil, NewParseError(original, "missing username", "format should be "+r.format())
	}
	if strings.TrimSpace(info.Host) == "" {
		return nil, NewParseError(original, "missing host", "format should be "+r.format())
	}
	if strings.TrimSpace(info.Database) == "" {
		return nil, NewParseError(original, "missing database name", "format should be "+r.format())
	}
	return info, nil
}

// Normalize converts DSN info to a properly encoded connection string.
// Query parameters are emitted in sorted order so the result is stable.
func (r *ServerResolver) Normalize(info *DSNInfo) (string, error) {
	if info == nil {
		return "", NewParseError("", "nil DSN info", "")
	}

	var b strings.Builder
	b.WriteString(r.canonical + "://")
	if info.User != "" {
		b.WriteString(url.QueryEscape(info.User))
		if info.Password != "" {
			b.WriteString(":")
			b.WriteString(url.QueryEscape(info.Password))
		}
		b.WriteString("@")
	}
	b.WriteString(info.Host)
	port := info.Port
	if port == "" {
		port = r.defaultPort
	}
	b.WriteString(":" + port)

	params := make(map[string]string, len(info.Params)+1)
	for k, v := range info.Params {
		params[k] = v
	}
	if r.dbParam != "" {
		params[r.dbParam] = info.Database
	} else {
		b.WriteString("/" + info.Database)
	}

	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i == 0 {
				b.WriteString("?")
			} else {
				b.WriteString("&")
			}
			b.WriteString(url.QueryEscape(k) + "=" + url.QueryEscape(params[k]))
		}
	}
	return b.String(), nil
}

// Validate checks if the DSN is valid for this database type
func (r *ServerResolver) Validate(dsn string) error {
	info, err := r.Parse(dsn)
	if err != nil {
		return err
	}
	if !rePort.MatchString(info.Port) {
		return NewParseError(dsn, fmt.Sprintf("invalid port number: %s", info.Port), "port must be numeric")
	}
	return nil
}
