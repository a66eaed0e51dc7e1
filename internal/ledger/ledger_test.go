package ledger

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestAdmitTwice(t *testing.T) {
	l := New()
	url := "https://example.com/a"

	if !l.Admit(url) {
		t.Fatalf("first Admit(%q) = false, want true", url)
	}
	if l.Admit(url) {
		t.Fatalf("second Admit(%q) = true, want false", url)
	}
	if got := l.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestReleaseAllowsReadmit(t *testing.T) {
	l := New()
	url := "https://example.com/a"

	l.Admit(url)
	l.Release(url)
	if l.Contains(url) {
		t.Fatalf("Contains after Release = true")
	}
	if !l.Admit(url) {
		t.Errorf("Admit after Release = false, want true")
	}
}

func TestSeededURLsAreRejected(t *testing.T) {
	l := New("https://example.com/old", "")
	if l.Admit("https://example.com/old") {
		t.Errorf("Admit of seeded URL = true, want false")
	}
	if l.Admit("") {
		t.Errorf("Admit of empty URL = true, want false")
	}
	if got := l.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestConcurrentAdmitSingleWinner(t *testing.T) {
	l := New()
	const workers = 64
	var wins int32
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit("https://example.com/race") {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("winners = %d, want 1", wins)
	}
	if got := l.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestURLsSorted(t *testing.T) {
	l := New("https://b.example", "https://a.example")
	got := l.URLs()
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Errorf("URLs() = %v", got)
	}
}

func TestHistoryKeyPerNewsletter(t *testing.T) {
	if got := HistoryKey("energy"); got != "newsbrief:seen_urls:energy" {
		t.Errorf("HistoryKey(energy) = %q", got)
	}
	if HistoryKey("energy") == HistoryKey("ai") {
		t.Error("newsletters share a history key")
	}
	if got := HistoryKey(""); got != DefaultHistoryKey {
		t.Errorf("HistoryKey(\"\") = %q", got)
	}

	base := &RedisHistory{key: DefaultHistoryKey, ttl: time.Hour}
	ai := base.WithKey(HistoryKey("ai"))
	if ai.Key() != "newsbrief:seen_urls:ai" || ai.ttl != time.Hour {
		t.Errorf("WithKey() = %q ttl %v", ai.Key(), ai.ttl)
	}
	if base.Key() != DefaultHistoryKey {
		t.Errorf("WithKey changed the original key to %q", base.Key())
	}
}
