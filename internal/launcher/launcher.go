// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package launcher announces and submits SQL commands to an execution bridge
// one at a time, in the order they were given.
package launcher

import (
	"context"
	"fmt"
	"io"
	"strings"

	"sqlaunch/cli/internal/tableenv"
)

// Bridge executes one statement.
type Bridge interface {
	ExecuteSQL(ctx context.Context, statement string) (*tableenv.TableResult, error)
}

// AwaitPolicy controls whether the launcher waits for submitted jobs.
type AwaitPolicy string

const (
	// AwaitNone returns after the last submission without observing jobs.
	AwaitNone AwaitPolicy = "none"
	// AwaitEach waits for each job before submitting the next.
	AwaitEach AwaitPolicy = "each"
	// AwaitAll submits everything, then waits for every job.
	AwaitAll AwaitPolicy = "all"
)

// ParseAwaitPolicy accepts none, each or all; empty means none.
func ParseAwaitPolicy(s string) (AwaitPolicy, error) {
	switch p := AwaitPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return AwaitNone, nil
	case AwaitNone, AwaitEach, AwaitAll:
		return p, nil
	}
	return "", fmt.Errorf("unknown await policy %q (want none, each or all)", s)
}

// Commands trims each argument and drops the empty ones, keeping order and
// duplicates.
func Commands(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if c := strings.TrimSpace(a); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Announcement is the text written before a command is submitted.
func Announcement(command string) string {
	return "\nEXECUTING SQL:\n\n" + command + "\n"
}

// Launcher submits commands to Bridge.
type Launcher struct {
	Out    io.Writer
	Bridge Bridge
	Await  AwaitPolicy
	// Submitted, when set, is called with every successful submission.
	Submitted func(command string, res *tableenv.TableResult)
}

// Run announces and submits each command in order. The first error from the
// bridge stops the run and is returned as is; no later command is submitted.
func (l *Launcher) Run(ctx context.Context, commands []string) error {
	var pending []*tableenv.TableResult
	for _, cmd := range commands {
		if _, err := io.WriteString(l.Out, Announcement(cmd)); err != nil {
			return err
		}
		res, err := l.Bridge.ExecuteSQL(ctx, cmd)
		if err != nil {
			return err
		}
		if l.Submitted != nil {
			l.Submitted(cmd, res)
		}
		switch l.Await {
		case AwaitEach:
			if _, err := res.Await(ctx); err != nil {
				return err
			}
		case AwaitAll:
			pending = append(pending, res)
		}
	}
	return awaitAll(ctx, pending)
}

// awaitAll waits for every result and returns the first error in
// submission order.
func awaitAll(ctx context.Context, results []*tableenv.TableResult) error {
	var first error
	for _, r := range results {
		if _, err := r.Await(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
