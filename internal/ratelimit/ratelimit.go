package ratelimit

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/deusflow/newsbrief/internal/logger"
)

// ErrBudgetExceeded is returned when a provider has used up its per-run
// request allowance.
var ErrBudgetExceeded = errors.New("request budget exceeded")

// Budget caps the number of LLM requests a single run may issue, per
// provider and in total. A limit of 0 means unlimited.
type Budget struct {
	mu       sync.Mutex
	limits   map[string]int
	used     map[string]int
	maxTotal int
	total    int

	cacheHits   int
	cacheMisses int
}

// NewBudget creates a budget. limits maps provider name to its maximum.
func NewBudget(limits map[string]int, maxTotal int) *Budget {
	l := make(map[string]int, len(limits))
	for k, v := range limits {
		l[k] = v
	}
	return &Budget{
		limits:   l,
		used:     make(map[string]int),
		maxTotal: maxTotal,
	}
}

// Use reserves one request for provider.
func (b *Budget) Use(provider string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if max := b.limits[provider]; max > 0 && b.used[provider] >= max {
		logger.Warn("LLM budget reached", "provider", provider, "used", b.used[provider], "limit", max)
		return fmt.Errorf("%s: %w", provider, ErrBudgetExceeded)
	}
	if b.maxTotal > 0 && b.total >= b.maxTotal {
		logger.Warn("total LLM budget reached", "used", b.total, "limit", b.maxTotal)
		return fmt.Errorf("total: %w", ErrBudgetExceeded)
	}

	b.used[provider]++
	b.total++
	b.cacheMisses++
	logger.Debug("LLM usage", "provider", provider, "used", b.used[provider], "total", b.total)
	return nil
}

// CanUse reports whether a request for provider would currently succeed.
func (b *Budget) CanUse(provider string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if max := b.limits[provider]; max > 0 && b.used[provider] >= max {
		return false
	}
	return b.maxTotal == 0 || b.total < b.maxTotal
}

// RecordCacheHit notes a summary served without a request.
func (b *Budget) RecordCacheHit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cacheHits++
}

// CacheHitRate returns the share of summaries served from cache, in percent.
func (b *Budget) CacheHitRate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hitRate()
}

func (b *Budget) hitRate() float64 {
	total := b.cacheHits + b.cacheMisses
	if total == 0 {
		return 0
	}
	return float64(b.cacheHits) / float64(total) * 100
}

// GetStats returns a snapshot of the counters.
func (b *Budget) GetStats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := map[string]interface{}{
		"total_used":     b.total,
		"total_limit":    b.maxTotal,
		"cache_hits":     b.cacheHits,
		"cache_misses":   b.cacheMisses,
		"cache_hit_rate": b.hitRate(),
	}
	for p, n := range b.used {
		stats[p+"_used"] = n
	}
	for p, n := range b.limits {
		stats[p+"_limit"] = n
	}
	return stats
}

// LogStats writes the counters at info level.
func (b *Budget) LogStats() {
	stats := b.GetStats()
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		args = append(args, k, stats[k])
	}
	logger.Info("LLM budget statistics", args...)
}
