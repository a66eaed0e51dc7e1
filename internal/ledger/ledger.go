// Package ledger tracks canonical URLs already admitted into a run.
package ledger

import (
	"sort"
	"sync"
)

// Ledger is a set of canonical URLs with atomic test-and-set semantics.
// It is safe for concurrent use by fetch workers.
type Ledger struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// New creates a ledger, optionally pre-populated with URLs from earlier runs.
func New(seed ...string) *Ledger {
	l := &Ledger{seen: make(map[string]struct{}, len(seed))}
	l.Seed(seed...)
	return l
}

// Seed records URLs without reporting whether they were new.
func (l *Ledger) Seed(urls ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, u := range urls {
		if u == "" {
			continue
		}
		l.seen[u] = struct{}{}
	}
}

// Admit records url and returns true if it was not present yet. A repeat
// returns false and leaves the ledger unchanged. Empty URLs are never admitted.
func (l *Ledger) Admit(url string) bool {
	if url == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[url]; ok {
		return false
	}
	l.seen[url] = struct{}{}
	return true
}

// Release drops a provisional reservation made by Admit, e.g. when the body
// of the article could not be extracted.
func (l *Ledger) Release(url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.seen, url)
}

// Contains reports whether url has been admitted.
func (l *Ledger) Contains(url string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[url]
	return ok
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

// URLs returns a sorted snapshot of the ledger.
func (l *Ledger) URLs() []string {
	l.mu.Lock()
	out := make([]string, 0, len(l.seen))
	for u := range l.seen {
		out = append(out, u)
	}
	l.mu.Unlock()
	sort.Strings(out)
	return out
}
