package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
)

// TestOpen_RDSOnly_SetsRDSAndLeavesOthersNil exercises the redis success path from Open
func TestOpen_RDSOnly_SetsRDSAndLeavesOthersNil(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	ctx := context.Background()
	cfg := Config{
		RDS: RedisConfig{
			Enabled: true,
			Addr:    mr.Addr(),
		},
	}

	s, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if s == nil {
		t.Fatalf("Open returned nil store")
	}

	if s.RDS == nil {
		t.Fatalf("RDS not initialized")
	}
	if s.PG != nil || s.CH != nil {
		t.Fatalf("unexpected seams set PG=%T CH=%T", s.PG, s.CH)
	}

	if err := s.Guard(ctx); err != nil {
		t.Fatalf("Guard returned error: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

// TestGuard_RDSDown surfaces a dead redis through Guard
func TestGuard_RDSDown(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	ctx := context.Background()

	s, err := Open(ctx, Config{RDS: RedisConfig{Enabled: true, Addr: mr.Addr()}})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(ctx) })

	mr.Close()
	if err := s.Guard(ctx); err == nil {
		t.Fatalf("Guard expected error after redis shutdown")
	}
}

// TestOpen_PGEnabled_BadURL_BubblesError covers the PG error path
func TestOpen_PGEnabled_BadURL_BubblesError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := Config{
		PG: PGConfig{
			Enabled:     true,
			URL:         "://bad", // parse error inside pg.Open
			MaxConns:    1,
			SlowQueryMs: 0,
			LogSQL:      false,
		},
	}

	s, err := Open(ctx, cfg)
	if err == nil {
		t.Fatalf("expected Open error for bad PG URL, got store=%#v", s)
	}
	if s != nil {
		t.Fatalf("expected nil store on error, got %#v", s)
	}
}

// TestOpen_CHEnabled_BadURL_BubblesError covers the CH error path
func TestOpen_CHEnabled_BadURL_BubblesError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := Config{
		CH: CHConfig{
			Enabled: true,
			URL:     "://bad", // parse error inside ch.Open
		},
	}

	s, err := Open(ctx, cfg)
	if err == nil {
		t.Fatalf("expected Open error for bad CH URL, got store=%#v", s)
	}
	if s != nil {
		t.Fatalf("expected nil store on error, got %#v", s)
	}
}

// TestOpen_OptionsApplied_NoPanicOnWithLogger exercises the WithLogger option path
func TestOpen_OptionsApplied_NoPanicOnWithLogger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	// Build a zero-value zerolog.Logger (valid, no-op)
	var zl zerolog.Logger

	s, err := Open(ctx, Config{}, WithLogger(zl))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if s == nil {
		t.Fatalf("Open returned nil store")
	}
	// Close on empty store should be fine
	if e := s.Close(ctx); e != nil {
		t.Fatalf("Close on empty store returned error: %v", e)
	}
}

// TestOpen_MultipleBackends_ErrShortCircuits verifies we stop on the first failing backend path
func TestOpen_MultipleBackends_ErrShortCircuits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := Config{
		PG: PGConfig{
			Enabled: true,
			URL:     "://bad", // will fail first
		},
		CH: CHConfig{
			Enabled: true,
			URL:     "clickhouse://localhost:9000/default",
		},
	}

	s, err := Open(ctx, cfg)
	if err == nil {
		t.Fatalf("expected Open error on first failing backend")
	}
	if s != nil {
		t.Fatalf("expected nil store when Open fails early, got %#v", s)
	}
}
