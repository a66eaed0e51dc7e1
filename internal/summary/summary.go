// Package summary summarizes the representative article of every cluster.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/deusflow/newsbrief/internal/cache"
	"github.com/deusflow/newsbrief/internal/logger"
	"github.com/deusflow/newsbrief/internal/metrics"
	"github.com/deusflow/newsbrief/internal/news"
	"github.com/deusflow/newsbrief/internal/ratelimit"
)

const (
	// NoContentMarker is the summary of a representative without body text.
	NoContentMarker = "내용이 없습니다."
	// FallbackMarker is the summary of a representative whose summarization failed.
	FallbackMarker = "요약 생성 실패"

	DefaultConcurrency = 5
	DefaultTimeout     = 60 * time.Second
	DefaultCacheTTL    = 24 * time.Hour
)

var (
	ErrNoContent     = errors.New("no content to summarize")
	ErrEmptyResponse = errors.New("empty summary")
)

// Summarizer produces a short summary of an article body.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Dispatcher runs summaries concurrently and joins results back to their
// clusters by canonical URL.
type Dispatcher struct {
	Summarizer  Summarizer
	Provider    string
	Concurrency int
	Timeout     time.Duration

	// Optional collaborators.
	Budget   *ratelimit.Budget
	Cache    *cache.Cache
	CacheTTL time.Duration
	Metrics  *metrics.Metrics
}

type job struct {
	id   string
	url  string
	text string
}

// Dispatch returns a copy of clusters in which the representative of each
// cluster carries a summary and every secondary member carries none. A
// failing job gets FallbackMarker and does not affect the other clusters.
func (d *Dispatcher) Dispatch(ctx context.Context, clusters []news.Cluster) []news.Cluster {
	out := make([]news.Cluster, len(clusters))
	var jobs []job
	for i, c := range clusters {
		members := make([]news.Article, len(c.Articles))
		copy(members, c.Articles)
		for k := range members {
			members[k].Summary = ""
		}
		out[i] = news.Cluster{Articles: members}
		if len(members) == 0 {
			continue
		}
		if !members[0].HasText() {
			members[0].Summary = NoContentMarker
			continue
		}
		jobs = append(jobs, job{id: uuid.NewString(), url: members[0].CanonicalURL, text: members[0].BodyText})
	}

	results := d.run(ctx, jobs)

	for i := range out {
		if len(out[i].Articles) == 0 || !out[i].Articles[0].HasText() {
			continue
		}
		s, ok := results[out[i].Articles[0].CanonicalURL]
		if !ok || s == "" {
			s = FallbackMarker
		}
		out[i].Articles[0].Summary = s
	}
	return out
}

func (d *Dispatcher) run(ctx context.Context, jobs []job) map[string]string {
	results := make(map[string]string, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	limit := d.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(limit)

	for _, j := range jobs {
		g.Go(func() error {
			s, err := d.summarizeOne(ctx, j)
			if err != nil {
				logger.Warn("summary failed", "id", j.id, "url", j.url, "error", err)
				d.count(func(m *metrics.Metrics) { m.IncrementFailedSummaries() })
				s = FallbackMarker
			}
			mu.Lock()
			results[j.url] = s
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (d *Dispatcher) summarizeOne(ctx context.Context, j job) (string, error) {
	if strings.TrimSpace(j.text) == "" {
		return "", ErrNoContent
	}
	if d.Summarizer == nil {
		return "", errors.New("no summarizer configured")
	}

	key := cache.Key(d.Provider, j.text)
	if d.Cache != nil {
		if s, ok := d.Cache.Get(key); ok {
			logger.Debug("summary cache hit", "id", j.id, "url", j.url)
			if d.Budget != nil {
				d.Budget.RecordCacheHit()
			}
			d.count(func(m *metrics.Metrics) { m.IncrementCachedSummaries() })
			return s, nil
		}
	}

	if d.Budget != nil {
		if err := d.Budget.Use(d.Provider); err != nil {
			return "", err
		}
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := d.Summarizer.Summarize(cctx, j.text)
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", j.url, err)
	}
	s := Sanitize(raw)
	if s == "" {
		return "", ErrEmptyResponse
	}

	if d.Cache != nil {
		ttl := d.CacheTTL
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		d.Cache.Set(key, s, ttl)
	}
	d.count(func(m *metrics.Metrics) { m.IncrementSummaries() })
	logger.Debug("summary done", "id", j.id, "url", j.url)
	return s, nil
}

func (d *Dispatcher) count(f func(*metrics.Metrics)) {
	if d.Metrics != nil {
		f(d.Metrics)
	}
}
