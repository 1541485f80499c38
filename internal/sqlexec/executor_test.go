package sqlexec

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"sqlaunch/cli/internal/errors"
)

func TestResultMarshalJSON(t *testing.T) {
	id := [16]byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	res := Result{
		Columns: []string{"id", "raw", "name", "n"},
		Rows: [][]any{
			{id, []byte{0xca, 0xfe}, "alice", int64(7)},
			{id[:], nil, "bob", nil},
		},
	}

	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got struct {
		Columns []string `json:"columns"`
		Rows    [][]any  `json:"rows"`
	}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	wantUUID := "12345678-9abc-def0-0102-030405060708"
	if got.Rows[0][0] != wantUUID || got.Rows[1][0] != wantUUID {
		t.Errorf("uuid cells = %v / %v, want %s", got.Rows[0][0], got.Rows[1][0], wantUUID)
	}
	if got.Rows[0][1] != `\xcafe` {
		t.Errorf("byte cell = %v, want \\xcafe", got.Rows[0][1])
	}
	if got.Rows[1][1] != nil {
		t.Errorf("nil cell = %v", got.Rows[1][1])
	}
}

func TestOpenUnknownEngine(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "", Options{})
	if err == nil {
		t.Fatal("expected error but got none")
	}
	if kind := errors.KindOf(err); kind != errors.EngineOpenFailed {
		t.Errorf("kind = %q, want %q", kind, errors.EngineOpenFailed)
	}
}

func TestEngines(t *testing.T) {
	got := Engines()
	want := []string{"postgres", "sqlite", "sqlserver"}
	if len(got) != len(want) {
		t.Fatalf("Engines() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Engines()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestServerEnginesRequireDSN(t *testing.T) {
	for _, name := range []string{"postgres", "sqlserver"} {
		t.Run(name, func(t *testing.T) {
			if _, err := Open(context.Background(), name, "", Options{}); err == nil {
				t.Error("expected error for empty DSN")
			}
		})
	}
}

func TestSQLiteMemoryEngine(t *testing.T) {
	ctx := context.Background()
	ex, err := Open(ctx, "sqlite", "", Options{MaxConns: 4})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ex.Close()

	if ex.Name() != "sqlite" {
		t.Errorf("Name() = %q", ex.Name())
	}
	if _, err := ex.Exec(ctx, "CREATE TABLE orders (id INTEGER PRIMARY KEY, item TEXT)"); err != nil {
		t.Fatalf("create: %v", err)
	}
	res, err := ex.Exec(ctx, "INSERT INTO orders (item) VALUES ('apple'), ('pear')")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if res.RowsAffected != 2 {
		t.Errorf("RowsAffected = %d, want 2", res.RowsAffected)
	}

	// A second statement must see the same in-memory database.
	res, err = ex.Query(ctx, "SELECT id, item FROM orders ORDER BY id")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res.Columns) != 2 || res.Columns[1] != "item" {
		t.Errorf("Columns = %v", res.Columns)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("Rows = %v, want 2 rows", res.Rows)
	}
	if res.Rows[1][1] != "pear" {
		t.Errorf("second item = %v, want pear", res.Rows[1][1])
	}

	if _, err := ex.Exec(ctx, "INSERT INTO missing VALUES (1)"); err == nil {
		t.Error("expected error for missing table")
	}
}

func TestSQLitePrepare(t *testing.T) {
	ctx := context.Background()
	ex, err := Open(ctx, "sqlite", "", Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ex.Close()

	if _, err := ex.Exec(ctx, "CREATE TABLE t (a INT)"); err != nil {
		t.Fatalf("create: %v", err)
	}
	tests := []struct {
		name    string
		sql     string
		wantErr bool
	}{
		{"valid insert", "INSERT INTO t VALUES (1)", false},
		{"valid query", "SELECT a FROM t", false},
		{"syntax error", "SELEC 1", true},
		{"missing table", "INSERT INTO missing VALUES (1)", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ex.Prepare(ctx, tt.sql)
			if (err != nil) != tt.wantErr {
				t.Errorf("Prepare(%q) error = %v, wantErr %v", tt.sql, err, tt.wantErr)
			}
		})
	}

	res, err := ex.Query(ctx, "SELECT count(*) FROM t")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n := res.Rows[0][0]; n != int64(0) {
		t.Errorf("rows after Prepare = %v, want 0", n)
	}
}

func TestPoolSize(t *testing.T) {
	tests := []struct {
		in   int
		want int32
	}{
		{1, 1},
		{64, 64},
		{math.MaxInt32, math.MaxInt32},
		{math.MaxInt32 + 1, math.MaxInt32},
		{math.MaxInt, math.MaxInt32},
	}
	for _, tt := range tests {
		if got := poolSize(tt.in); got != tt.want {
			t.Errorf("poolSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
