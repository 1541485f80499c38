// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package runtime implements the execution environment: the embedded engine,
// a bounded worker pool that runs asynchronous jobs, the job registry, the
// debug console and periodic checkpoints. Everything is configured once
// through Options and owned by the Environment until Close.
package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	goruntime "runtime"
	"sync"
	"time"

	"sqlaunch/cli/internal/checkpoint"
	"sqlaunch/cli/internal/console"
	"sqlaunch/cli/internal/errors"
	"sqlaunch/cli/internal/job"
	"sqlaunch/cli/internal/metrics"
	"sqlaunch/cli/internal/sqlexec"
	"sqlaunch/cli/internal/xdg"

	"github.com/panjf2000/ants/v2"
	"github.com/pterm/pterm"
)

// ErrClosed is returned when work is handed to a closed environment.
var ErrClosed = stderrors.New("runtime: environment closed")

// Options configure an Environment.
type Options struct {
	// Engine is the sqlexec registry name; empty selects sqlite.
	Engine string
	DSN    string
	// Console starts the debug console on ConsoleAddr.
	Console     bool
	ConsoleAddr string
	// Parallelism bounds concurrently running jobs and engine connections.
	// 0 uses the number of CPUs for jobs and the driver default for connections.
	Parallelism int
	// CheckpointInterval of 0 disables checkpoints.
	CheckpointInterval time.Duration
	// CheckpointStore overrides the default file store in the XDG state dir.
	CheckpointStore checkpoint.Store
	// Logger receives diagnostics; nil discards them.
	Logger *pterm.Logger
	// EventBuffer sizes the event channel; events are dropped when it is full.
	EventBuffer int
}

// Environment is the execution context statements run in.
type Environment struct {
	opts      Options
	exec      sqlexec.Executor
	pool      *ants.Pool
	log       *pterm.Logger
	startedAt time.Time

	// base outlives callers' contexts; jobs are not cancellable once submitted.
	base       context.Context
	cancelBase context.CancelFunc

	mu       sync.RWMutex
	closed   bool
	jobs     map[string]*job.Job
	order    []string
	inflight sync.WaitGroup
	events   chan job.Event

	console     *console.Server
	coordinator *checkpoint.Coordinator
	loopDone    chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewEnvironment opens the engine and starts the environment's services.
func NewEnvironment(ctx context.Context, opts Options) (*Environment, error) {
	if opts.Engine == "" {
		opts.Engine = "sqlite"
	}
	if opts.Parallelism < 0 {
		return nil, errors.New(errors.ConfigInvalid, "parallelism must not be negative")
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 1024
	}
	log := opts.Logger
	if log == nil {
		log = pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled)
	}

	ex, err := sqlexec.Open(ctx, opts.Engine, opts.DSN, sqlexec.Options{MaxConns: opts.Parallelism})
	if err != nil {
		return nil, err
	}

	workers := opts.Parallelism
	if workers == 0 {
		workers = goruntime.NumCPU()
	}
	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(v any) {
		log.Error("job worker panic", log.Args("panic", fmt.Sprint(v)))
	}))
	if err != nil {
		ex.Close()
		return nil, err
	}

	base, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e := &Environment{
		opts:       opts,
		exec:       ex,
		pool:       pool,
		log:        log,
		startedAt:  time.Now(),
		base:       base,
		cancelBase: cancel,
		jobs:       make(map[string]*job.Job),
		events:     make(chan job.Event, opts.EventBuffer),
	}
	log.Debug("engine opened", log.Args("engine", opts.Engine, "workers", workers))

	if opts.Console {
		e.console = console.New(e, opts.ConsoleAddr)
		if err := e.console.Start(); err != nil {
			e.teardown()
			return nil, errors.Wrap(errors.ConsoleFailed, "start debug console on "+e.console.Addr(), err)
		}
		log.Info("debug console listening", log.Args("addr", "http://"+e.console.Addr()))
	}

	if opts.CheckpointInterval > 0 {
		if err := e.startCheckpoints(ctx); err != nil {
			e.teardown()
			return nil, err
		}
	}
	return e, nil
}

func (e *Environment) startCheckpoints(ctx context.Context) error {
	store := e.opts.CheckpointStore
	if store == nil {
		dir, err := xdg.StateSubdir("checkpoints")
		if err != nil {
			return errors.Wrap(errors.CheckpointFailed, "resolve checkpoint dir", err)
		}
		fs, err := checkpoint.NewFileStore(dir, 3)
		if err != nil {
			return errors.Wrap(errors.CheckpointFailed, "open checkpoint dir", err)
		}
		store = fs
	}
	coord, err := checkpoint.NewCoordinator(ctx, store, e.opts.Engine, e.Jobs)
	if err != nil {
		return err
	}
	e.coordinator = coord
	e.loopDone = make(chan struct{})
	go func() {
		defer close(e.loopDone)
		coord.Run(e.base, e.opts.CheckpointInterval, func(err error) {
			e.log.Warn("checkpoint failed", e.log.Args("error", err.Error()))
		})
	}()
	e.log.Debug("checkpoints enabled", e.log.Args("interval", e.opts.CheckpointInterval.String()))
	return nil
}

// Engine returns the engine name.
func (e *Environment) Engine() string { return e.opts.Engine }

// ConsoleAddr returns the console address, or "" when the console is off.
func (e *Environment) ConsoleAddr() string {
	if e.console == nil {
		return ""
	}
	return e.console.Addr()
}

// Events streams job lifecycle events. The channel is closed by Close.
func (e *Environment) Events() <-chan job.Event { return e.events }

// register records a new job and reserves an in-flight slot.
func (e *Environment) register(statement string, kind job.Kind, async bool) (*job.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	j := job.New(statement, kind, async, time.Now())
	e.jobs[j.ID()] = j
	e.order = append(e.order, j.ID())
	e.inflight.Add(1)
	metrics.JobsSubmitted.WithLabelValues(string(kind)).Inc()
	e.emit(job.EventSubmitted, j)
	return j, nil
}

// Submit validates statement against the engine and schedules it as an
// asynchronous job. Validation errors are returned as the engine reported
// them and no job is created. Submit blocks while every worker is busy, so
// jobs start in submission order.
func (e *Environment) Submit(ctx context.Context, statement string, kind job.Kind) (*job.Job, error) {
	if e.isClosed() {
		return nil, ErrClosed
	}
	if err := e.exec.Prepare(ctx, statement); err != nil {
		return nil, err
	}
	j, err := e.register(statement, kind, true)
	if err != nil {
		return nil, err
	}
	if err := e.pool.Submit(func() { e.run(e.base, j) }); err != nil {
		e.finish(j, sqlexec.Result{}, err)
		e.inflight.Done()
		return nil, err
	}
	e.log.Debug("job submitted", e.log.Args("job", j.ID(), "kind", string(kind)))
	return j, nil
}

// Exec runs statement synchronously on the caller's goroutine and returns
// the completed job. A failed statement returns the engine's error as is.
func (e *Environment) Exec(ctx context.Context, statement string, kind job.Kind) (*job.Job, error) {
	j, err := e.register(statement, kind, false)
	if err != nil {
		return nil, err
	}
	e.run(ctx, j)
	return j, j.Err()
}

func (e *Environment) isClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}

// run executes j and always completes it, even if the engine panics.
func (e *Environment) run(ctx context.Context, j *job.Job) {
	defer e.inflight.Done()
	var (
		res sqlexec.Result
		err error
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
		metrics.JobsRunning.Dec()
		e.finish(j, res, err)
	}()

	j.Start(time.Now())
	metrics.JobsRunning.Inc()
	e.emit(job.EventRunning, j)

	info := j.Info()
	if info.Kind.ReturnsRows() {
		res, err = e.exec.Query(ctx, info.Statement)
	} else {
		res, err = e.exec.Exec(ctx, info.Statement)
	}
}

func (e *Environment) finish(j *job.Job, res sqlexec.Result, err error) {
	j.Complete(res, err, time.Now())
	info := j.Info()
	metrics.JobsCompleted.WithLabelValues(string(info.Kind), string(info.Status)).Inc()
	metrics.JobDuration.WithLabelValues(string(info.Kind)).Observe(info.Duration(time.Now()).Seconds())
	if err != nil {
		e.log.Debug("job failed", e.log.Args("job", info.ID, "error", err.Error()))
		e.emit(job.EventFailed, j)
		return
	}
	e.emit(job.EventFinished, j)
}

// emit publishes without blocking; with no reader the buffer absorbs events
// until it fills, after which they are dropped.
func (e *Environment) emit(t job.EventType, j *job.Job) {
	select {
	case e.events <- job.Event{Type: t, Job: j.Info()}:
	default:
	}
}

// Jobs returns job snapshots in submission order.
func (e *Environment) Jobs() []job.Info {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]job.Info, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.jobs[id].Info())
	}
	return out
}

// Job returns one job snapshot.
func (e *Environment) Job(id string) (job.Info, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	j, ok := e.jobs[id]
	if !ok {
		return job.Info{}, false
	}
	return j.Info(), true
}

// FirstError returns the error of the earliest submitted job that failed,
// unmodified, or nil when none did.
func (e *Environment) FirstError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, id := range e.order {
		if err := e.jobs[id].Err(); err != nil {
			return err
		}
	}
	return nil
}

// Summary reports engine settings and job counts by status.
func (e *Environment) Summary() console.Summary {
	counts := map[job.Status]int{}
	for _, info := range e.Jobs() {
		counts[info.Status]++
	}
	return console.Summary{
		Engine:      e.opts.Engine,
		Parallelism: e.pool.Cap(),
		StartedAt:   e.startedAt,
		Jobs:        counts,
	}
}

// Ping checks the engine.
func (e *Environment) Ping(ctx context.Context) error { return e.exec.Ping(ctx) }

// Checkpoint takes a checkpoint now. It fails when checkpoints are disabled.
func (e *Environment) Checkpoint(ctx context.Context) (checkpoint.Snapshot, error) {
	if e.coordinator == nil {
		return checkpoint.Snapshot{}, errors.New(errors.CheckpointFailed, "checkpoints are disabled")
	}
	return e.coordinator.Trigger(ctx)
}

// Close waits for in-flight jobs until ctx is done, then aborts the rest,
// writes a final checkpoint and releases every resource. Safe to call twice.
func (e *Environment) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()

		drained := make(chan struct{})
		go func() {
			e.inflight.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-ctx.Done():
			e.log.Warn("aborting unfinished jobs")
			e.cancelBase()
			<-drained
		}

		var errs []error
		if e.coordinator != nil {
			if _, err := e.coordinator.Trigger(context.WithoutCancel(ctx)); err != nil {
				errs = append(errs, err)
			}
		}
		if err := e.teardown(); err != nil {
			errs = append(errs, err)
		}
		close(e.events)
		e.closeErr = stderrors.Join(errs...)
	})
	return e.closeErr
}

// teardown stops services and releases the pool and engine.
func (e *Environment) teardown() error {
	e.cancelBase()
	if e.loopDone != nil {
		<-e.loopDone
	}
	var errs []error
	if e.console != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := e.console.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}
	if err := e.pool.ReleaseTimeout(3 * time.Second); err != nil {
		errs = append(errs, err)
	}
	if err := e.exec.Close(); err != nil {
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}
