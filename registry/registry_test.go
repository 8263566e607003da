package registry

import (
	"errors"
	"sync"
	"testing"
)

func testDescriptor(name string, caps ...string) ServerDescriptor {
	if len(caps) == 0 {
		caps = []string{"ping"}
	}
	return ServerDescriptor{
		Name:         name,
		Endpoint:     "local://" + name,
		Auth:         Auth{Type: AuthNone},
		Capabilities: caps,
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := New()
	if err := r.Register(testDescriptor("alpha")); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	err := r.Register(testDescriptor("alpha"))
	var dup *DuplicateServerError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateServerError, got %v", err)
	}
	if dup.Name != "alpha" {
		t.Fatalf("unexpected name in error: %q", dup.Name)
	}
}

func TestRegistry_RegisterValidation(t *testing.T) {
	r := New()

	cases := []struct {
		name string
		desc ServerDescriptor
	}{
		{"empty name", ServerDescriptor{Endpoint: "local://x", Capabilities: []string{"op"}}},
		{"no scheme", ServerDescriptor{Name: "x", Endpoint: "not-a-url", Capabilities: []string{"op"}}},
		{"unknown auth", ServerDescriptor{Name: "x", Endpoint: "local://x", Auth: Auth{Type: "token"}, Capabilities: []string{"op"}}},
		{"missing credential", ServerDescriptor{Name: "x", Endpoint: "local://x", Auth: Auth{Type: AuthBearer}, Capabilities: []string{"op"}}},
		{"no capabilities", ServerDescriptor{Name: "x", Endpoint: "local://x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := r.Register(tc.desc); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r := New()
	if err := r.Register(testDescriptor("alpha", "search", "create")); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	desc, err := r.Resolve("alpha", "search")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if desc.Name != "alpha" || desc.Health != Healthy {
		t.Fatalf("unexpected descriptor: %+v", desc)
	}

	_, err = r.Resolve("missing", "search")
	var unknown *UnknownServerError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownServerError, got %v", err)
	}

	_, err = r.Resolve("alpha", "delete")
	var unsupported *CapabilityUnsupportedError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected CapabilityUnsupportedError, got %v", err)
	}
	if unsupported.Server != "alpha" || unsupported.Capability != "delete" {
		t.Fatalf("unexpected error fields: %+v", unsupported)
	}
}

func TestRegistry_HealthTransitions(t *testing.T) {
	r := New()
	if err := r.Register(testDescriptor("alpha")); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	report := func(success bool, times int) {
		for i := 0; i < times; i++ {
			r.ReportOutcome("alpha", success)
		}
	}
	health := func() HealthState {
		h, err := r.Health("alpha")
		if err != nil {
			t.Fatalf("health failed: %v", err)
		}
		return h
	}

	// Two failures are not enough to demote.
	report(false, 2)
	if got := health(); got != Healthy {
		t.Fatalf("after 2 failures: got %v, want healthy", got)
	}

	// The third consecutive failure demotes to degraded.
	report(false, 1)
	if got := health(); got != Degraded {
		t.Fatalf("after 3 failures: got %v, want degraded", got)
	}

	// Three more demote to unreachable.
	report(false, 3)
	if got := health(); got != Unreachable {
		t.Fatalf("after 6 failures: got %v, want unreachable", got)
	}

	// A single success promotes only one step, never straight to healthy.
	report(true, 1)
	if got := health(); got != Degraded {
		t.Fatalf("after recovery success: got %v, want degraded", got)
	}

	report(true, 1)
	if got := health(); got != Healthy {
		t.Fatalf("after second success: got %v, want healthy", got)
	}
}

func TestRegistry_SuccessResetsFailureCounter(t *testing.T) {
	r := New()
	if err := r.Register(testDescriptor("alpha")); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	r.ReportOutcome("alpha", false)
	r.ReportOutcome("alpha", false)
	r.ReportOutcome("alpha", true)
	r.ReportOutcome("alpha", false)
	r.ReportOutcome("alpha", false)

	h, _ := r.Health("alpha")
	if h != Healthy {
		t.Fatalf("counter was not reset by success: got %v", h)
	}
}

func TestRegistry_Deregister(t *testing.T) {
	r := New()
	if err := r.Register(testDescriptor("alpha")); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	r.Deregister("alpha")
	r.Deregister("alpha") // idempotent

	if _, err := r.Resolve("alpha", ""); err == nil {
		t.Fatalf("expected resolve to fail after deregister")
	}
	// Reporting against a removed server is a no-op, not a panic.
	r.ReportOutcome("alpha", false)
}

func TestRegistry_ConcurrentReporting(t *testing.T) {
	r := New()
	if err := r.Register(testDescriptor("alpha")); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.ReportOutcome("alpha", i%2 == 0)
			if _, err := r.Resolve("alpha", "ping"); err != nil {
				t.Errorf("resolve failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	snap := r.Snapshot()
	if len(snap) != 1 || snap[0].Name != "alpha" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
