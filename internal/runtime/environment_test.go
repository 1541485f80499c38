// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package runtime

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"sqlaunch/cli/internal/checkpoint"
	"sqlaunch/cli/internal/errors"
	"sqlaunch/cli/internal/job"
	"sqlaunch/cli/internal/sqlexec"

	"github.com/panjf2000/ants/v2"
)

// stubExecutor answers every statement with run.
type stubExecutor struct {
	run func(ctx context.Context) (sqlexec.Result, error)
}

func (s stubExecutor) Name() string { return "stub" }
func (s stubExecutor) Exec(ctx context.Context, _ string) (sqlexec.Result, error) {
	return s.run(ctx)
}
func (s stubExecutor) Query(ctx context.Context, _ string) (sqlexec.Result, error) {
	return s.run(ctx)
}
func (s stubExecutor) Prepare(context.Context, string) error { return nil }
func (s stubExecutor) Ping(context.Context) error            { return nil }
func (s stubExecutor) Close() error                          { return nil }

func stubEngine(run func(ctx context.Context) (sqlexec.Result, error)) sqlexec.Opener {
	return func(context.Context, string, sqlexec.Options) (sqlexec.Executor, error) {
		return stubExecutor{run: run}, nil
	}
}

func init() {
	sqlexec.Register("test-panic", stubEngine(func(context.Context) (sqlexec.Result, error) {
		panic("engine exploded")
	}))
	sqlexec.Register("test-block", stubEngine(func(ctx context.Context) (sqlexec.Result, error) {
		<-ctx.Done()
		return sqlexec.Result{}, ctx.Err()
	}))
}

func newTestEnv(t *testing.T, opts Options) *Environment {
	t.Helper()
	env, err := NewEnvironment(context.Background(), opts)
	if err != nil {
		t.Fatalf("NewEnvironment: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = env.Close(ctx)
	})
	return env
}

func TestExecReturnsCompletedJob(t *testing.T) {
	env := newTestEnv(t, Options{})
	j, err := env.Exec(context.Background(), "SELECT 1", job.KindQuery)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	info, ok := env.Job(j.ID())
	if !ok || info.Status != job.StatusFinished || info.Async || info.RowCount != 1 {
		t.Errorf("Job(%s) = %+v, %v", j.ID(), info, ok)
	}
}

func TestExecAndSubmit(t *testing.T) {
	env := newTestEnv(t, Options{Parallelism: 2})
	ctx := context.Background()

	if _, err := env.Exec(ctx, "CREATE TABLE t (id INTEGER)", job.KindDDL); err != nil {
		t.Fatalf("Exec DDL: %v", err)
	}
	j, err := env.Submit(ctx, "INSERT INTO t VALUES (1), (2)", job.KindDML)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	res, err := j.Await(ctx)
	if err != nil {
		t.Fatalf("Await insert: %v", err)
	}
	if res.RowsAffected != 2 {
		t.Errorf("RowsAffected = %d, want 2", res.RowsAffected)
	}

	q, err := env.Submit(ctx, "SELECT id FROM t ORDER BY id", job.KindQuery)
	if err != nil {
		t.Fatalf("Submit query: %v", err)
	}
	res, err = q.Await(ctx)
	if err != nil {
		t.Fatalf("Await query: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(res.Rows))
	}

	jobs := env.Jobs()
	if len(jobs) != 3 {
		t.Fatalf("Jobs() = %d entries, want 3", len(jobs))
	}
	if jobs[0].Async || !jobs[1].Async {
		t.Errorf("async flags = %v,%v, want false,true", jobs[0].Async, jobs[1].Async)
	}
	for _, info := range jobs {
		if info.Status != job.StatusFinished {
			t.Errorf("job %q status = %s", info.Statement, info.Status)
		}
	}
	if got, ok := env.Job(q.ID()); !ok || got.RowCount != 2 {
		t.Errorf("Job(%s) = %+v, %v", q.ID(), got, ok)
	}
	if _, ok := env.Job("missing"); ok {
		t.Error("Job(missing) found")
	}
}

func TestSubmitValidatesStatement(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	for _, stmt := range []string{"SELEC 1", "INSERT INTO nowhere VALUES (1)"} {
		t.Run(stmt, func(t *testing.T) {
			j, err := env.Submit(ctx, stmt, job.KindOther)
			if err == nil {
				t.Fatalf("Submit returned job %v, want engine error", j)
			}
			if errors.KindOf(err) != "" {
				t.Errorf("engine error was wrapped: %v", err)
			}
		})
	}
	if n := len(env.Jobs()); n != 0 {
		t.Errorf("rejected statements created %d jobs", n)
	}
}

func TestFailedJobKeepsEngineError(t *testing.T) {
	env := newTestEnv(t, Options{Parallelism: 1})
	ctx := context.Background()
	if _, err := env.Exec(ctx, "CREATE TABLE uniq (a INTEGER PRIMARY KEY)", job.KindDDL); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	first, err := env.Submit(ctx, "INSERT INTO uniq VALUES (1)", job.KindDML)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := first.Await(ctx); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := env.FirstError(); err != nil {
		t.Fatalf("FirstError before any failure = %v", err)
	}

	dup, err := env.Submit(ctx, "INSERT INTO uniq VALUES (1)", job.KindDML)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	_, err = dup.Await(ctx)
	if err == nil {
		t.Fatal("expected engine error")
	}
	if errors.KindOf(err) != "" {
		t.Errorf("engine error was wrapped: %v", err)
	}
	if info := dup.Info(); info.Status != job.StatusFailed || info.Error == "" {
		t.Errorf("info = %+v", info)
	}
	if got := env.FirstError(); got != err {
		t.Errorf("FirstError = %v, want %v", got, err)
	}
}

func TestSummaryCountsStatuses(t *testing.T) {
	env := newTestEnv(t, Options{Parallelism: 3})
	ctx := context.Background()
	_, _ = env.Exec(ctx, "SELECT 1", job.KindQuery)
	_, _ = env.Exec(ctx, "SELEC 1", job.KindOther)

	s := env.Summary()
	if s.Engine != "sqlite" || s.Parallelism != 3 {
		t.Errorf("summary = %+v", s)
	}
	if s.Jobs[job.StatusFinished] != 1 || s.Jobs[job.StatusFailed] != 1 {
		t.Errorf("counts = %v", s.Jobs)
	}
}

func TestEventsInOrder(t *testing.T) {
	env := newTestEnv(t, Options{})
	if _, err := env.Exec(context.Background(), "SELECT 1", job.KindQuery); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	want := []job.EventType{job.EventSubmitted, job.EventRunning, job.EventFinished}
	for i, w := range want {
		select {
		case ev := <-env.Events():
			if ev.Type != w {
				t.Errorf("event %d = %s, want %s", i, ev.Type, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("event %d not delivered", i)
		}
	}
}

func TestCloseRejectsNewWork(t *testing.T) {
	ctx := context.Background()
	env, err := NewEnvironment(ctx, Options{})
	if err != nil {
		t.Fatalf("NewEnvironment: %v", err)
	}
	j, err := env.Submit(ctx, "SELECT 1", job.KindQuery)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := env.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-j.Done():
	default:
		t.Error("Close returned before in-flight job finished")
	}
	if err := env.Close(context.Background()); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := env.Submit(ctx, "SELECT 2", job.KindQuery); !stderrors.Is(err, ErrClosed) {
		t.Errorf("Submit after Close = %v, want ErrClosed", err)
	}
	if _, err := env.Exec(context.Background(), "SELECT 2", job.KindQuery); !stderrors.Is(err, ErrClosed) {
		t.Errorf("Exec after Close = %v, want ErrClosed", err)
	}
	// ranging terminates only once Close has closed the channel
	for range env.Events() {
	}
}

func TestNegativeParallelismRejected(t *testing.T) {
	_, err := NewEnvironment(context.Background(), Options{Parallelism: -1})
	if errors.KindOf(err) != errors.ConfigInvalid {
		t.Fatalf("err = %v, want config_invalid", err)
	}
}

func TestUnknownEngine(t *testing.T) {
	_, err := NewEnvironment(context.Background(), Options{Engine: "oracle"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestConsoleServesJobs(t *testing.T) {
	env := newTestEnv(t, Options{Console: true, ConsoleAddr: "127.0.0.1:0"})
	if env.ConsoleAddr() == "" {
		t.Fatal("console address empty")
	}
	if _, err := env.Exec(context.Background(), "SELECT 42", job.KindQuery); err != nil {
		t.Fatalf("Exec: %v", err)
	}

	resp, err := http.Get("http://" + env.ConsoleAddr() + "/jobs")
	if err != nil {
		t.Fatalf("GET /jobs: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "SELECT 42") {
		t.Errorf("GET /jobs = %d %s", resp.StatusCode, body)
	}
}

func TestConsoleBindFailure(t *testing.T) {
	first := newTestEnv(t, Options{Console: true, ConsoleAddr: "127.0.0.1:0"})
	_, err := NewEnvironment(context.Background(), Options{Console: true, ConsoleAddr: first.ConsoleAddr()})
	if errors.KindOf(err) != errors.ConsoleFailed {
		t.Fatalf("err = %v, want console_failed", err)
	}
}

func TestCheckpointsWrittenOnClose(t *testing.T) {
	store, err := checkpoint.NewFileStore(t.TempDir(), 2)
	if err != nil {
		t.Fatal(err)
	}
	env, err := NewEnvironment(context.Background(), Options{
		CheckpointInterval: time.Hour,
		CheckpointStore:    store,
	})
	if err != nil {
		t.Fatalf("NewEnvironment: %v", err)
	}
	if _, err := env.Exec(context.Background(), "SELECT 1", job.KindQuery); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	snap, err := env.Checkpoint(context.Background())
	if err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if snap.Sequence != 1 || len(snap.Jobs) != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
	if err := env.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	latest, ok, err := store.Latest(context.Background())
	if err != nil || !ok {
		t.Fatalf("Latest: %v %v", ok, err)
	}
	if latest.Sequence != 2 {
		t.Errorf("final checkpoint sequence = %d, want 2", latest.Sequence)
	}
}

func TestCheckpointDisabled(t *testing.T) {
	env := newTestEnv(t, Options{})
	if _, err := env.Checkpoint(context.Background()); errors.KindOf(err) != errors.CheckpointFailed {
		t.Errorf("err = %v, want checkpoint_failed", err)
	}
}

func TestEnginePanicFailsJob(t *testing.T) {
	env := newTestEnv(t, Options{Engine: "test-panic"})
	ctx := context.Background()

	if _, err := env.Exec(ctx, "SELECT 1", job.KindQuery); err == nil || !strings.Contains(err.Error(), "engine exploded") {
		t.Errorf("Exec err = %v, want the panic reported", err)
	}
	j, err := env.Submit(ctx, "INSERT INTO t VALUES (1)", job.KindDML)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := j.Await(ctx); err == nil || !strings.Contains(err.Error(), "engine exploded") {
		t.Errorf("Await err = %v, want the panic reported", err)
	}
	for _, info := range env.Jobs() {
		if info.Status != job.StatusFailed {
			t.Errorf("job %q status = %s, want failed", info.Statement, info.Status)
		}
	}
}

func TestCloseDeadlineAbortsJobs(t *testing.T) {
	ctx := context.Background()
	env, err := NewEnvironment(ctx, Options{Engine: "test-block", Parallelism: 1})
	if err != nil {
		t.Fatalf("NewEnvironment: %v", err)
	}
	j, err := env.Submit(ctx, "SELECT forever", job.KindQuery)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	expired, cancel := context.WithCancel(ctx)
	cancel()
	done := make(chan error, 1)
	go func() { done <- env.Close(expired) }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Close: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not abort the running job")
	}

	if _, err := j.Await(ctx); !stderrors.Is(err, context.Canceled) {
		t.Errorf("aborted job err = %v, want context.Canceled", err)
	}
}

func TestRejectedSubmissionIsReported(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.pool.Release()

	_, err := env.Submit(context.Background(), "SELECT 1", job.KindQuery)
	if !stderrors.Is(err, ants.ErrPoolClosed) {
		t.Fatalf("Submit err = %v, want ants.ErrPoolClosed", err)
	}
	jobs := env.Jobs()
	if len(jobs) != 1 || jobs[0].Status != job.StatusFailed {
		t.Fatalf("jobs = %+v, want one failed job", jobs)
	}
	want := []job.EventType{job.EventSubmitted, job.EventFailed}
	for i, w := range want {
		select {
		case ev := <-env.Events():
			if ev.Type != w {
				t.Errorf("event %d = %s, want %s", i, ev.Type, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("event %d not delivered", i)
		}
	}
}
