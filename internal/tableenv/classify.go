// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package tableenv

import (
	"strings"

	"sqlaunch/cli/internal/job"

	"github.com/xwb1989/sqlparser"
)

// Classify returns the kind of statement by inspecting its leading keyword.
// It never fully parses the statement; dialect-specific SQL the MySQL grammar
// does not know is still classified by keyword.
func Classify(statement string) job.Kind {
	statement = strings.TrimRight(statement, "; \t\r\n")
	switch sqlparser.Preview(statement) {
	case sqlparser.StmtSelect, sqlparser.StmtStream:
		return job.KindQuery
	case sqlparser.StmtInsert, sqlparser.StmtReplace, sqlparser.StmtUpdate, sqlparser.StmtDelete:
		return job.KindDML
	case sqlparser.StmtDDL:
		return job.KindDDL
	case sqlparser.StmtBegin, sqlparser.StmtCommit, sqlparser.StmtRollback, sqlparser.StmtSet, sqlparser.StmtUse:
		return job.KindControl
	case sqlparser.StmtShow, sqlparser.StmtOther:
		return job.KindInspect
	case sqlparser.StmtUnknown:
		return classifyKeyword(firstWord(statement))
	}
	return job.KindOther
}

func classifyKeyword(word string) job.Kind {
	switch word {
	case "with", "values", "table":
		return job.KindQuery
	case "merge", "upsert":
		return job.KindDML
	case "pragma":
		return job.KindInspect
	case "begin", "start", "commit", "rollback", "abort", "end", "savepoint", "release",
		"vacuum", "attach", "detach", "reindex", "checkpoint", "go":
		return job.KindControl
	}
	return job.KindOther
}

// firstWord lowercases the first token after leading comments and parentheses.
func firstWord(statement string) string {
	s := strings.TrimLeft(sqlparser.StripLeadingComments(statement), " \t\r\n(")
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if end >= 0 {
		s = s[:end]
	}
	return strings.ToLower(s)
}
