// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package job models one statement execution inside the runtime: its
// identity, lifecycle status, timings and outcome. A Job is created when a
// statement is handed to the environment and completes exactly once.
package job

import (
	"context"
	"sync"
	"time"

	"sqlaunch/cli/internal/sqlexec"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusCreated  Status = "created"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool { return s == StatusFinished || s == StatusFailed }

// Kind classifies a statement by how the bridge executes it.
type Kind string

const (
	// KindDDL creates, alters or drops catalog objects.
	KindDDL Kind = "ddl"
	// KindDML modifies rows (INSERT, UPDATE, DELETE, REPLACE).
	KindDML Kind = "dml"
	// KindQuery reads rows (SELECT, WITH, VALUES).
	KindQuery Kind = "query"
	// KindControl changes session or transaction state (SET, USE, BEGIN, COMMIT).
	KindControl Kind = "control"
	// KindInspect describes the catalog (SHOW, DESCRIBE, EXPLAIN, PRAGMA).
	KindInspect Kind = "inspect"
	// KindOther is anything the classifier does not recognize.
	KindOther Kind = "other"
)

// ReturnsRows reports whether statements of this kind produce a result set.
func (k Kind) ReturnsRows() bool { return k == KindQuery || k == KindInspect }

// Info is an immutable snapshot of a job.
type Info struct {
	ID           string     `json:"id"`
	Statement    string     `json:"statement"`
	Kind         Kind       `json:"kind"`
	Status       Status     `json:"status"`
	Async        bool       `json:"async"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	RowsAffected int64      `json:"rows_affected,omitempty"`
	RowCount     int        `json:"row_count,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// Duration returns the run time of a started job, up to now when still running.
func (i Info) Duration(now time.Time) time.Duration {
	if i.StartedAt == nil {
		return 0
	}
	if i.FinishedAt != nil {
		return i.FinishedAt.Sub(*i.StartedAt)
	}
	return now.Sub(*i.StartedAt)
}

// Job tracks one execution. It is safe for concurrent use.
type Job struct {
	mu     sync.RWMutex
	info   Info
	result sqlexec.Result
	err    error
	done   chan struct{}
}

// New creates a job in StatusCreated.
func New(statement string, kind Kind, async bool, now time.Time) *Job {
	return &Job{
		info: Info{
			ID:          uuid.NewString(),
			Statement:   statement,
			Kind:        kind,
			Status:      StatusCreated,
			Async:       async,
			SubmittedAt: now,
		},
		done: make(chan struct{}),
	}
}

func (j *Job) ID() string { return j.info.ID }

// Info returns a snapshot of the job.
func (j *Job) Info() Info {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.info
}

// Done is closed once the job reaches a terminal status.
func (j *Job) Done() <-chan struct{} { return j.done }

// Start moves the job to StatusRunning. It returns false if the job already left StatusCreated.
func (j *Job) Start(now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.info.Status != StatusCreated {
		return false
	}
	j.info.Status = StatusRunning
	j.info.StartedAt = &now
	return true
}

// Complete records the outcome. Only the first call has an effect.
func (j *Job) Complete(res sqlexec.Result, err error, now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.info.Status.Terminal() {
		return false
	}
	if j.info.StartedAt == nil {
		j.info.StartedAt = &now
	}
	j.info.FinishedAt = &now
	j.result, j.err = res, err
	j.info.RowsAffected = res.RowsAffected
	j.info.RowCount = len(res.Rows)
	if err != nil {
		j.info.Status = StatusFailed
		j.info.Error = err.Error()
	} else {
		j.info.Status = StatusFinished
	}
	close(j.done)
	return true
}

// Err returns the job's error, or nil while it runs or after it succeeded.
func (j *Job) Err() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

// Await blocks until the job completes or ctx is done. The job's own error
// is returned unmodified.
func (j *Job) Await(ctx context.Context) (sqlexec.Result, error) {
	select {
	case <-j.done:
	case <-ctx.Done():
		return sqlexec.Result{}, ctx.Err()
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result, j.err
}
