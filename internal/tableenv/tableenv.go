// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package tableenv binds a statement-oriented execution bridge to a runtime
// Environment. The bridge classifies every statement and decides whether it
// runs inline or as an asynchronous job, according to its Mode.
package tableenv

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"sqlaunch/cli/internal/job"
	"sqlaunch/cli/internal/sqlexec"
)

// ErrEmptyStatement is returned for a statement that is blank after trimming.
var ErrEmptyStatement = stderrors.New("tableenv: empty statement")

// Mode selects how statements are dispatched.
type Mode string

const (
	// Streaming runs schema and session statements inline and submits
	// everything else as an asynchronous job.
	Streaming Mode = "streaming"
	// Batch runs every statement inline.
	Batch Mode = "batch"
)

// ParseMode accepts "streaming" or "batch" in any case.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case Streaming, Batch:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q (want streaming or batch)", s)
}

// Settings configure a TableEnvironment.
type Settings struct {
	Mode Mode
}

// Runtime is the part of the execution environment the bridge needs.
type Runtime interface {
	Submit(ctx context.Context, statement string, kind job.Kind) (*job.Job, error)
	Exec(ctx context.Context, statement string, kind job.Kind) (*job.Job, error)
}

// TableEnvironment submits SQL statements to a runtime.
type TableEnvironment struct {
	rt       Runtime
	settings Settings
}

// New binds a bridge to rt. An empty Mode defaults to Streaming.
func New(rt Runtime, settings Settings) (*TableEnvironment, error) {
	if rt == nil {
		return nil, stderrors.New("tableenv: nil runtime")
	}
	if settings.Mode == "" {
		settings.Mode = Streaming
	}
	if _, err := ParseMode(string(settings.Mode)); err != nil {
		return nil, err
	}
	return &TableEnvironment{rt: rt, settings: settings}, nil
}

func (t *TableEnvironment) Settings() Settings { return t.settings }

// TableResult is the outcome of ExecuteSQL: either a finished inline
// result or a handle to a running job.
type TableResult struct {
	Kind job.Kind
	// Job is the runtime's record of the statement. For inline statements
	// it has already completed.
	Job    *job.Job
	Result sqlexec.Result
}

// Async reports whether the statement was submitted as a job.
func (r *TableResult) Async() bool { return r.Job != nil && r.Job.Info().Async }

// Await returns the statement's result, waiting for the job if there is one.
// Job errors are returned as the engine produced them.
func (r *TableResult) Await(ctx context.Context) (sqlexec.Result, error) {
	if !r.Async() {
		return r.Result, nil
	}
	return r.Job.Await(ctx)
}

// ExecuteSQL classifies and dispatches one statement. Errors from the runtime
// are returned unmodified. Asynchronous statements are validated before they
// are queued, so malformed SQL fails here in every mode; a failure while the
// job runs is only visible through TableResult.Await.
func (t *TableEnvironment) ExecuteSQL(ctx context.Context, statement string) (*TableResult, error) {
	statement = strings.TrimSpace(statement)
	if statement == "" {
		return nil, ErrEmptyStatement
	}
	kind := Classify(statement)
	if t.inline(kind) {
		j, err := t.rt.Exec(ctx, statement, kind)
		if err != nil {
			return nil, err
		}
		res, _ := j.Await(context.Background())
		return &TableResult{Kind: kind, Job: j, Result: res}, nil
	}
	j, err := t.rt.Submit(ctx, statement, kind)
	if err != nil {
		return nil, err
	}
	return &TableResult{Kind: kind, Job: j}, nil
}

func (t *TableEnvironment) inline(kind job.Kind) bool {
	if t.settings.Mode == Batch {
		return true
	}
	switch kind {
	case job.KindDDL, job.KindControl, job.KindInspect:
		return true
	}
	return false
}
