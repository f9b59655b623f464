// Package episodecache coalesces episode-catalog fetches for the dashboard.
// Each show id gets at most one background fetch; completed results are
// applied on the owning goroutine, so the cache needs no locking.
package episodecache

import (
	"context"
	"strings"
)

// State tags a cache entry's lifecycle.
type State int

const (
	// Loading means a fetch is in flight for the show.
	Loading State = iota
	// Ready means the catalog arrived, possibly with a warning.
	Ready
)

// Entry is the cached catalog view for one show. Ready entries always carry
// a non-nil label list, even when the service knew nothing.
type Entry struct {
	State   State
	Labels  []string
	Warning string
}

// Result carries one finished fetch from a worker to the owner.
type Result struct {
	ShowID  string
	Labels  []string
	Warning string
}

// Fetcher resolves one show's episode catalog. *allanime.Client implements
// it.
type Fetcher interface {
	Catalog(ctx context.Context, showID string, totalHint int) ([]string, []string)
}

// Cache is a single-consumer catalog cache. The entries map belongs to the
// goroutine calling Ensure, Drain and Lookup; fetch goroutines only send on
// the results channel.
type Cache struct {
	fetch   Fetcher
	results chan Result
	entries map[string]Entry
}

func New(fetch Fetcher) *Cache {
	return &Cache{
		fetch:   fetch,
		results: make(chan Result, 64),
		entries: make(map[string]Entry),
	}
}

// Ensure starts a background fetch for showID unless one already ran or is
// still running.
func (c *Cache) Ensure(showID string, totalHint int) {
	if showID == "" {
		return
	}
	if _, ok := c.entries[showID]; ok {
		return
	}
	c.entries[showID] = Entry{State: Loading}

	go func() {
		labels, warnings := c.fetch.Catalog(context.Background(), showID, totalHint)
		r := Result{ShowID: showID, Labels: labels, Warning: strings.Join(warnings, "; ")}
		select {
		case c.results <- r:
		default:
			// No consumer is draining anymore; the result is stale anyway.
		}
	}()
}

// Drain applies every completed fetch without blocking and reports whether
// anything changed.
func (c *Cache) Drain() bool {
	changed := false
	for {
		select {
		case r := <-c.results:
			labels := r.Labels
			if labels == nil {
				labels = []string{}
			}
			c.entries[r.ShowID] = Entry{State: Ready, Labels: labels, Warning: r.Warning}
			changed = true
		default:
			return changed
		}
	}
}

// Lookup returns the entry for showID, if any.
func (c *Cache) Lookup(showID string) (Entry, bool) {
	e, ok := c.entries[showID]
	return e, ok
}

// Labels returns the Ready catalog for showID, nil when unknown or still
// loading.
func (c *Cache) Labels(showID string) []string {
	if e, ok := c.entries[showID]; ok && e.State == Ready {
		return e.Labels
	}
	return nil
}
