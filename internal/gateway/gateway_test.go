// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package gateway

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"sqlaunch/cli/internal/job"
	"sqlaunch/cli/internal/runtime"
	"sqlaunch/cli/internal/tableenv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func startGateway(t *testing.T) (*Client, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()
	env, err := runtime.NewEnvironment(ctx, runtime.Options{})
	if err != nil {
		t.Fatalf("NewEnvironment: %v", err)
	}
	te, err := tableenv.New(env, tableenv.Settings{Mode: tableenv.Streaming})
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	srv := NewServer(te, env, &out, nil)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()

	c, err := Dial("passthrough:///bufnet", false, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Close()
		stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		srv.Stop(stopCtx)
		_ = env.Close(stopCtx)
	})
	return c, &out
}

func TestSubmitAndWait(t *testing.T) {
	c, out := startGateway(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Check(ctx); err != nil {
		t.Fatalf("Check: %v", err)
	}

	created, err := c.Submit(ctx, "  CREATE TABLE t (a INT) ")
	if err != nil {
		t.Fatalf("Submit DDL: %v", err)
	}
	if created.Kind != job.KindDDL || created.Status != job.StatusFinished || created.Async || created.ID == "" {
		t.Errorf("DDL submission = %+v", created)
	}
	if got, err := c.Job(ctx, created.ID); err != nil || got.Statement != "CREATE TABLE t (a INT)" {
		t.Errorf("Job(%s) = %+v, %v", created.ID, got, err)
	}

	ins, err := c.Submit(ctx, "INSERT INTO t VALUES (1), (2), (3)")
	if err != nil {
		t.Fatalf("Submit DML: %v", err)
	}
	if ins.ID == "" || !ins.Async {
		t.Fatalf("DML submission = %+v", ins)
	}
	done, err := c.Wait(ctx, ins.ID, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if done.Status != job.StatusFinished || done.RowsAffected != 3 {
		t.Errorf("finished job = %+v", done)
	}

	want := "\nEXECUTING SQL:\n\nCREATE TABLE t (a INT)\n\nEXECUTING SQL:\n\nINSERT INTO t VALUES (1), (2), (3)\n"
	if got := out.String(); got != want {
		t.Errorf("announcements = %q, want %q", got, want)
	}
}

func TestSubmitErrors(t *testing.T) {
	c, _ := startGateway(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tests := []struct {
		name string
		stmt string
		code codes.Code
		msg  string
	}{
		{"empty", "   ", codes.InvalidArgument, "empty statement"},
		{"inline engine error", "DROP TABLE missing", codes.Aborted, "missing"},
		{"malformed statement", "SELEC 1", codes.Aborted, "syntax error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Submit(ctx, tt.stmt)
			st, _ := status.FromError(err)
			if st.Code() != tt.code || !strings.Contains(st.Message(), tt.msg) {
				t.Errorf("Submit(%q) = %v, want %s containing %q", tt.stmt, err, tt.code, tt.msg)
			}
		})
	}
}

func TestUnknownJob(t *testing.T) {
	c, _ := startGateway(t)
	_, err := c.Job(context.Background(), "nope")
	if status.Code(err) != codes.NotFound {
		t.Errorf("Job(nope) = %v, want NotFound", err)
	}
}
