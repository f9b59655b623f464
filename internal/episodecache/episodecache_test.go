package episodecache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingFetcher struct {
	calls    atomic.Int32
	labels   []string
	warnings []string
}

func (f *countingFetcher) Catalog(ctx context.Context, showID string, totalHint int) ([]string, []string) {
	f.calls.Add(1)
	return f.labels, f.warnings
}

// drainUntil polls Drain until something lands or the deadline passes.
func drainUntil(t *testing.T, c *Cache) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !c.Drain() {
		if time.Now().After(deadline) {
			t.Fatal("fetch never completed")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestEnsureIsSingleFlight(t *testing.T) {
	fetch := &countingFetcher{labels: []string{"1", "2"}}
	c := New(fetch)

	c.Ensure("id-1", 0)
	c.Ensure("id-1", 0)

	if e, ok := c.Lookup("id-1"); !ok || e.State != Loading {
		t.Fatalf("entry = %+v, ok = %t", e, ok)
	}
	if c.Labels("id-1") != nil {
		t.Error("labels available before the fetch finished")
	}

	drainUntil(t, c)

	if got := fetch.calls.Load(); got != 1 {
		t.Errorf("fetch ran %d times, want 1", got)
	}
	e, ok := c.Lookup("id-1")
	if !ok || e.State != Ready || len(e.Labels) != 2 {
		t.Fatalf("entry = %+v", e)
	}

	// A Ready entry never refetches.
	c.Ensure("id-1", 0)
	time.Sleep(10 * time.Millisecond)
	c.Drain()
	if got := fetch.calls.Load(); got != 1 {
		t.Errorf("fetch ran %d times after re-ensure, want 1", got)
	}
}

func TestDrainJoinsWarnings(t *testing.T) {
	fetch := &countingFetcher{warnings: []string{"episode list fetch failed", "using empty catalog"}}
	c := New(fetch)

	c.Ensure("id-2", 12)
	drainUntil(t, c)

	e, _ := c.Lookup("id-2")
	if e.Warning != "episode list fetch failed; using empty catalog" {
		t.Errorf("warning = %q", e.Warning)
	}
	if e.Labels == nil {
		t.Error("ready entry carries a nil label list")
	}
	if got := c.Labels("id-2"); got == nil || len(got) != 0 {
		t.Errorf("labels = %#v, want empty non-nil", got)
	}
}

func TestEnsureIgnoresEmptyID(t *testing.T) {
	fetch := &countingFetcher{}
	c := New(fetch)

	c.Ensure("", 0)
	time.Sleep(10 * time.Millisecond)
	if c.Drain() {
		t.Error("drain applied a result for an empty id")
	}
	if got := fetch.calls.Load(); got != 0 {
		t.Errorf("fetch ran %d times, want 0", got)
	}
}
