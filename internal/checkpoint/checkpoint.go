// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package checkpoint periodically snapshots the runtime's job registry so a
// run can be inspected after the process is gone. Snapshots are numbered with
// a monotonically increasing sequence and written to a Store: a local
// directory by default, or an S3-compatible bucket.
package checkpoint

import (
	"context"
	"sync"
	"time"

	"sqlaunch/cli/internal/errors"
	"sqlaunch/cli/internal/job"
	"sqlaunch/cli/internal/metrics"
)

// Snapshot is one persisted checkpoint.
type Snapshot struct {
	Sequence int64      `json:"sequence"`
	Taken    time.Time  `json:"taken"`
	Engine   string     `json:"engine"`
	Jobs     []job.Info `json:"jobs"`
}

// Store persists snapshots.
type Store interface {
	// Save writes a snapshot and prunes older ones past the store's retention.
	Save(ctx context.Context, s Snapshot) error
	// Latest returns the snapshot with the highest sequence; ok is false when none exist.
	Latest(ctx context.Context) (s Snapshot, ok bool, err error)
}

// Coordinator captures and saves snapshots.
type Coordinator struct {
	store   Store
	engine  string
	capture func() []job.Info
	now     func() time.Time

	mu  sync.Mutex
	seq int64
}

// NewCoordinator continues numbering after the latest snapshot in store.
func NewCoordinator(ctx context.Context, store Store, engine string, capture func() []job.Info) (*Coordinator, error) {
	c := &Coordinator{store: store, engine: engine, capture: capture, now: time.Now}
	latest, ok, err := store.Latest(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CheckpointFailed, "read latest checkpoint", err)
	}
	if ok {
		c.seq = latest.Sequence
	}
	return c, nil
}

// Trigger takes and saves one snapshot.
func (c *Coordinator) Trigger(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Sequence: c.seq + 1,
		Taken:    c.now().UTC(),
		Engine:   c.engine,
		Jobs:     c.capture(),
	}
	if err := c.store.Save(ctx, s); err != nil {
		metrics.CheckpointsTotal.WithLabelValues("failed").Inc()
		return s, errors.Wrap(errors.CheckpointFailed, "save checkpoint", err)
	}
	c.seq = s.Sequence
	metrics.CheckpointsTotal.WithLabelValues("ok").Inc()
	return s, nil
}

// Run triggers a checkpoint every interval until ctx is done. Failures are
// reported to onError and do not stop the loop.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration, onError func(error)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := c.Trigger(ctx); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
