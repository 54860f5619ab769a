package ratelimit

import (
	"testing"
	"time"

	"github.com/swissarmyhammer/swissarmyhammer/internal/swerr"
)

func testConfig() Config {
	return Config{
		GlobalPerOperation: 100,
		PerClient:          3,
		Expensive:          2,
		Window:             time.Minute,
	}
}

func TestAllowAdmitsUpToLimit(t *testing.T) {
	l := New(testConfig())
	for i := 0; i < 3; i++ {
		if err := l.Allow("client-a", "prompts/list", 1); err != nil {
			t.Fatalf("request %d: unexpected rejection: %v", i, err)
		}
	}
	err := l.Allow("client-a", "prompts/list", 1)
	if err == nil {
		t.Fatal("expected the 4th request to be rejected")
	}
	if !swerr.Is(err, swerr.KindActionRateLimit) {
		t.Fatalf("expected KindActionRateLimit, got %v", err)
	}
}

func TestAllowIsolatesClients(t *testing.T) {
	l := New(testConfig())
	for i := 0; i < 3; i++ {
		if err := l.Allow("client-a", "op", 1); err != nil {
			t.Fatalf("client-a request %d rejected: %v", i, err)
		}
	}
	if err := l.Allow("client-b", "op", 1); err != nil {
		t.Fatalf("client-b should have its own bucket: %v", err)
	}
}

func TestAllowRefundsGlobalTokenWhenClientBucketRejects(t *testing.T) {
	cfg := Config{GlobalPerOperation: 2, PerClient: 1, Expensive: 2, Window: time.Minute}
	l := New(cfg)

	if err := l.Allow("client-a", "op", 1); err != nil {
		t.Fatalf("client-a's first request should be admitted: %v", err)
	}
	// client-a is already at its per-client cap; this consumes a global token
	// and then gets rejected by the per-client bucket, so the global token
	// must be refunded rather than silently spent.
	if err := l.Allow("client-a", "op", 1); err == nil {
		t.Fatal("expected client-a's second request to be rejected")
	}

	if err := l.Allow("client-b", "op", 1); err != nil {
		t.Fatalf("client-b should still have a global token available: %v", err)
	}
}

func TestExpensiveOperationUsesLowerLimit(t *testing.T) {
	cfg := testConfig()
	cfg.PerClient = 100 // isolate the global expensive bucket
	l := New(cfg)

	for i := 0; i < cfg.Expensive; i++ {
		if err := l.Allow("c1", OperationSearch, 1); err != nil {
			t.Fatalf("request %d rejected: %v", i, err)
		}
	}
	if err := l.Allow("c2", OperationSearch, 1); err == nil {
		t.Fatal("expected global expensive-operation bucket to reject a different client's request")
	}
}

func TestRetryAfterIsPopulated(t *testing.T) {
	cfg := testConfig()
	cfg.PerClient = 1
	l := New(cfg)

	if err := l.Allow("c", "op", 1); err != nil {
		t.Fatalf("first request should be admitted: %v", err)
	}
	err := l.Allow("c", "op", 1)
	if err == nil {
		t.Fatal("expected rejection")
	}
	var e *swerr.Error
	if !asError(err, &e) {
		t.Fatalf("expected *swerr.Error, got %T", err)
	}
	if e.RetryAfterMillis <= 0 {
		t.Fatalf("expected positive RetryAfterMillis, got %d", e.RetryAfterMillis)
	}
}

func TestPruneStaleClients(t *testing.T) {
	cfg := testConfig()
	cfg.Window = time.Millisecond
	l := New(cfg)
	_ = l.Allow("stale-client", "op", 1)

	time.Sleep(5 * time.Millisecond)
	if got := l.PruneStaleClients(); got != 1 {
		t.Fatalf("PruneStaleClients() = %d, want 1", got)
	}
}

func asError(err error, target **swerr.Error) bool {
	e, ok := err.(*swerr.Error)
	if ok {
		*target = e
	}
	return ok
}
