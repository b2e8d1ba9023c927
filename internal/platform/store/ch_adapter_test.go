package store

import (
	"context"
	"testing"
)

type fakeCHRows struct {
	nexts  int
	closed bool
	err    error
}

func (f *fakeCHRows) Next() bool             { f.nexts++; return false }
func (f *fakeCHRows) Scan(dest ...any) error { return nil }
func (f *fakeCHRows) Err() error             { return f.err }
func (f *fakeCHRows) Close() error           { f.closed = true; return nil }
func (f *fakeCHRows) Columns() []string      { return []string{"alpha", "beta"} }

// TestCHRowsAdapter_Delegates confirms the wrapper passes every call through
func TestCHRowsAdapter_Delegates(t *testing.T) {
	t.Parallel()

	f := &fakeCHRows{}
	x := &rowsAdapter{r: f}

	cols := x.Columns()
	if len(cols) != 2 || cols[0] != "alpha" || cols[1] != "beta" {
		t.Fatalf("Columns mismatch: %#v", cols)
	}
	if x.Next() {
		t.Fatalf("Next should be false on fake")
	}
	var v int
	if err := x.Scan(&v); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if x.Err() != nil {
		t.Fatalf("Err should be nil")
	}
	x.Close()
	if !f.closed {
		t.Fatalf("Close did not delegate to underlying Rows")
	}
}

// TestCHAdapter_InsertShapeGuard rejects payloads that are not row major
func TestCHAdapter_InsertShapeGuard(t *testing.T) {
	t.Parallel()

	a := &clickhouseAdapter{}
	if err := a.Insert(context.Background(), "t", struct{}{}); err == nil {
		t.Fatalf("Insert expected shape error, got nil")
	}
}

// TestCHAdapter_PingNilGuard fails loudly on a nil inner client
func TestCHAdapter_PingNilGuard(t *testing.T) {
	t.Parallel()

	a := &clickhouseAdapter{}
	if err := a.Ping(context.Background()); err == nil {
		t.Fatalf("Ping expected nil-client error, got nil")
	}
}
