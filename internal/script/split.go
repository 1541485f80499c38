// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package script splits SQL scripts into individual statements.
package script

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Split breaks src on semicolons that are outside quotes, dollar-quoted
// bodies ($$...$$, $fn$...$fn$) and comments. Statements are trimmed and empty
// ones dropped. Comments are kept as part of the statement text they appear in.
func Split(src string) []string {
	var (
		out   []string
		cur   strings.Builder
		n     = len(src)
		flush = func() {
			if s := strings.TrimSpace(cur.String()); s != "" && !onlyComments(s) {
				out = append(out, s)
			}
			cur.Reset()
		}
	)
	for i := 0; i < n; i++ {
		c := src[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := closeQuote(src, i+1, c)
			cur.WriteString(src[i:end])
			i = end - 1
		case c == '$' && dollarTag(src, i) != "":
			tag := dollarTag(src, i)
			end := strings.Index(src[i+len(tag):], tag)
			if end < 0 {
				end = n
			} else {
				end = i + 2*len(tag) + end
			}
			cur.WriteString(src[i:end])
			i = end - 1
		case c == '-' && i+1 < n && src[i+1] == '-':
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				end = n - i
			}
			cur.WriteString(src[i : i+end])
			i += end - 1
		case c == '/' && i+1 < n && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				end = n
			} else {
				end = i + 2 + end + 2
			}
			cur.WriteString(src[i:end])
			i = end - 1
		case c == ';':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return out
}

// closeQuote returns the index just past the quote closing the literal that
// starts at i. A doubled quote is an escaped quote. Unterminated literals run
// to the end of src.
func closeQuote(src string, i int, q byte) int {
	for ; i < len(src); i++ {
		if src[i] != q {
			continue
		}
		if i+1 < len(src) && src[i+1] == q {
			i++
			continue
		}
		return i + 1
	}
	return len(src)
}

// dollarTag returns the opening tag ("$$" or "$name$") of a dollar-quoted
// string starting at i, or "" when there is none. Positional parameters such
// as $1 and identifiers containing $ are not tags.
func dollarTag(src string, i int) string {
	if i > 0 && isIdentByte(src[i-1]) {
		return ""
	}
	j := i + 1
	for j < len(src) && (src[j] == '_' || isLetter(src[j]) || j > i+1 && isDigit(src[j])) {
		j++
	}
	if j < len(src) && src[j] == '$' {
		return src[i : j+1]
	}
	return ""
}

func isLetter(c byte) bool    { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }
func isDigit(c byte) bool     { return c >= '0' && c <= '9' }
func isIdentByte(c byte) bool { return c == '_' || c == '$' || isLetter(c) || isDigit(c) }

func onlyComments(s string) bool {
	for s != "" {
		s = strings.TrimSpace(s)
		switch {
		case strings.HasPrefix(s, "--"):
			nl := strings.IndexByte(s, '\n')
			if nl < 0 {
				return true
			}
			s = s[nl+1:]
		case strings.HasPrefix(s, "/*"):
			end := strings.Index(s, "*/")
			if end < 0 {
				return true
			}
			s = s[end+2:]
		default:
			return s == ""
		}
	}
	return true
}

// ReadFiles splits every file in order and concatenates the statements.
// "-" reads standard input.
func ReadFiles(paths []string, stdin io.Reader) ([]string, error) {
	var out []string
	for _, p := range paths {
		var (
			data []byte
			err  error
		)
		if p == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(p)
		}
		if err != nil {
			return nil, fmt.Errorf("read script %s: %w", p, err)
		}
		out = append(out, Split(string(data))...)
	}
	return out, nil
}
