// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"io"
	"strings"

	"github.com/pterm/pterm"
)

// New returns a diagnostic logger writing to w. Level names are trace, debug,
// info, warn, error and off; unknown names fall back to info. JSON output is
// meant for non-interactive runs where logs are collected.
func New(w io.Writer, level string, json bool) *pterm.Logger {
	l := pterm.DefaultLogger.
		WithWriter(w).
		WithLevel(ParseLevel(level)).
		WithTime(false)
	if json {
		l = l.WithFormatter(pterm.LogFormatterJSON)
	}
	return l
}

// ParseLevel maps a level name onto a pterm log level.
func ParseLevel(level string) pterm.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return pterm.LogLevelTrace
	case "debug":
		return pterm.LogLevelDebug
	case "warn", "warning":
		return pterm.LogLevelWarn
	case "error":
		return pterm.LogLevelError
	case "off", "disabled":
		return pterm.LogLevelDisabled
	}
	return pterm.LogLevelInfo
}
