package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"sqlaunch/cli/internal/sqlexec"
)

func TestLifecycle(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	j := New("INSERT INTO t VALUES (1)", KindDML, true, t0)

	if info := j.Info(); info.Status != StatusCreated || info.ID == "" || !info.Async {
		t.Fatalf("new job info = %+v", info)
	}
	if !j.Start(t0.Add(time.Second)) {
		t.Fatal("Start() = false on created job")
	}
	if j.Start(t0.Add(2 * time.Second)) {
		t.Error("second Start() = true")
	}

	res := sqlexec.Result{RowsAffected: 1}
	if !j.Complete(res, nil, t0.Add(3*time.Second)) {
		t.Fatal("Complete() = false")
	}
	if j.Complete(sqlexec.Result{}, errors.New("late"), t0.Add(4*time.Second)) {
		t.Error("second Complete() = true")
	}

	info := j.Info()
	if info.Status != StatusFinished || info.RowsAffected != 1 || info.Error != "" {
		t.Errorf("final info = %+v", info)
	}
	if d := info.Duration(t0.Add(time.Hour)); d != 2*time.Second {
		t.Errorf("Duration() = %v, want 2s", d)
	}

	got, err := j.Await(context.Background())
	if err != nil || got.RowsAffected != 1 {
		t.Errorf("Await() = %+v, %v", got, err)
	}
}

func TestAwaitReturnsJobErrorUnmodified(t *testing.T) {
	cause := errors.New("no such table: t")
	j := New("SELECT * FROM t", KindQuery, true, time.Now())
	go j.Complete(sqlexec.Result{}, cause, time.Now())

	_, err := j.Await(context.Background())
	if err != cause {
		t.Errorf("Await() error = %v, want the job's own error", err)
	}
	if info := j.Info(); info.Status != StatusFailed || info.Error != cause.Error() {
		t.Errorf("info = %+v", info)
	}
}

func TestAwaitHonorsContext(t *testing.T) {
	j := New("SELECT 1", KindQuery, true, time.Now())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := j.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Await() error = %v, want deadline exceeded", err)
	}
}

func TestKind(t *testing.T) {
	tests := map[Kind]bool{
		KindQuery:   true,
		KindInspect: true,
		KindDML:     false,
		KindDDL:     false,
		KindControl: false,
		KindOther:   false,
	}
	for k, want := range tests {
		if got := k.ReturnsRows(); got != want {
			t.Errorf("%s.ReturnsRows() = %v, want %v", k, got, want)
		}
	}
}
