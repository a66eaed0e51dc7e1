// Package app runs one newsletter generation end to end: search, fetch,
// dedup, cluster, summarize, render and persist.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deusflow/newsbrief/internal/cluster"
	"github.com/deusflow/newsbrief/internal/config"
	"github.com/deusflow/newsbrief/internal/ledger"
	"github.com/deusflow/newsbrief/internal/logger"
	"github.com/deusflow/newsbrief/internal/metrics"
	"github.com/deusflow/newsbrief/internal/news"
	"github.com/deusflow/newsbrief/internal/render"
	"github.com/deusflow/newsbrief/internal/scraper"
	"github.com/deusflow/newsbrief/internal/storage"
)

const (
	DefaultTopicConcurrency = 5
	DefaultFetchConcurrency = 10
)

// ErrAllTopicsFailed is returned when no topic could be searched.
var ErrAllTopicsFailed = errors.New("all topics failed")

type Searcher interface {
	Search(ctx context.Context, keywords []string, period string) ([]news.SearchResult, error)
}

type URLDecoder interface {
	Decode(ctx context.Context, raw string) (string, error)
}

type Extractor interface {
	ExtractContent(ctx context.Context, pageURL string) (string, error)
	ExtractImage(ctx context.Context, pageURL string) (string, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, clusters []news.Cluster) []news.Cluster
}

type Renderer interface {
	Render(digests []news.TopicDigest) (string, error)
}

type Store interface {
	SeenURLs(ctx context.Context) ([]string, error)
	SaveArticles(ctx context.Context, records []news.Record) (saved, duplicates int, err error)
	ExportJSON(ctx context.Context, path string) (int, error)
}

// Archiver merges records into the monthly JSON archive and its index.
type Archiver interface {
	Update(records []news.Record) (int, error)
}

// History is an optional cross-run URL set, e.g. Redis.
type History interface {
	SeenURLs(ctx context.Context) ([]string, error)
	Record(ctx context.Context, urls []string) error
}

// Generator produces one newsletter. Collaborators other than Store,
// Archive and History are required.
type Generator struct {
	Newsletter config.Newsletter
	Period     string

	Searcher   Searcher
	Decoder    URLDecoder
	Extractor  Extractor
	Clusterer  *cluster.Clusterer
	Dispatcher Dispatcher
	Renderer   Renderer
	Store      Store
	Archive    Archiver
	History    History

	TopicConcurrency int
	FetchConcurrency int
	Metrics          *metrics.Metrics

	log *slog.Logger
}

type topicStats struct {
	collected  atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64
}

// Run executes the generation. The HTML file is written before the store,
// and a persistence failure is reported in RunReport.PersistErr without
// failing the run.
func (g *Generator) Run(ctx context.Context) (report news.RunReport, err error) {
	g.log = logger.With("newsletter", g.Newsletter.Name)
	if g.Metrics == nil {
		g.Metrics = metrics.New()
	}
	if g.Clusterer == nil {
		g.Clusterer = cluster.New()
	}

	report = news.RunReport{
		Newsletter: g.Newsletter.Name,
		StartedAt:  time.Now(),
		OutputHTML: g.Newsletter.OutputHTML,
	}
	defer func() {
		report.Duration = time.Since(report.StartedAt)
		g.Metrics.RecordProcessingTime(report.Duration)
	}()

	g.log.Info("generating newsletter", "topics", len(g.Newsletter.Topics))

	led := ledger.New()
	g.seed(ctx, led)

	digests, failedTopics, stats := g.collect(ctx, led)
	report.Collected = int(stats.collected.Load())
	report.Duplicates = int(stats.duplicates.Load())
	report.Failed = int(stats.failed.Load())
	report.TopicsFailed = failedTopics
	g.Metrics.AddCollected(report.Collected)

	if len(g.Newsletter.Topics) > 0 && failedTopics == len(g.Newsletter.Topics) {
		g.Metrics.SetError(ErrAllTopicsFailed.Error())
		return report, ErrAllTopicsFailed
	}

	digests = g.summarize(ctx, digests)
	for _, d := range digests {
		report.Clusters += len(d.Clusters)
	}
	g.Metrics.AddClusters(report.Clusters)

	var doc string
	doc, err = g.Renderer.Render(digests)
	if err != nil {
		g.Metrics.SetError(err.Error())
		return report, fmt.Errorf("render: %w", err)
	}
	if err := render.WriteFile(g.Newsletter.OutputHTML, doc); err != nil {
		g.Metrics.SetError(err.Error())
		return report, fmt.Errorf("write %s: %w", g.Newsletter.OutputHTML, err)
	}
	g.log.Info("newsletter written", "path", g.Newsletter.OutputHTML)

	report.Saved, report.StoreDups, report.PersistErr = g.persist(ctx, digests)
	if report.PersistErr != nil {
		g.log.Error("persistence failed", "error", report.PersistErr)
	}
	g.Metrics.AddSaved(report.Saved)

	if g.History != nil {
		if err := g.History.Record(ctx, led.URLs()); err != nil {
			g.log.Warn("failed to record URL history", "error", err)
		}
	}

	g.Metrics.SetLastRun()
	g.log.Info("generation finished",
		"collected", report.Collected,
		"duplicates", report.Duplicates,
		"failed", report.Failed,
		"topics_failed", report.TopicsFailed,
		"clusters", report.Clusters,
		"saved", report.Saved,
	)
	return report, nil
}

// seed preloads the ledger with URLs from earlier runs, only when the
// newsletter opts in with skip_seen. History is still recorded either way.
func (g *Generator) seed(ctx context.Context, led *ledger.Ledger) {
	if !g.Newsletter.SkipSeen {
		return
	}
	if g.Store != nil {
		urls, err := g.Store.SeenURLs(ctx)
		if err != nil {
			g.log.Warn("failed to load stored URLs", "error", err)
		} else {
			led.Seed(urls...)
		}
	}
	if g.History != nil {
		urls, err := g.History.SeenURLs(ctx)
		if err != nil {
			g.log.Warn("failed to load URL history", "error", err)
		} else {
			led.Seed(urls...)
		}
	}
	if n := led.Len(); n > 0 {
		g.log.Debug("ledger seeded", "urls", n)
	}
}

// collect searches every topic, fetches its articles and clusters them.
// Digests keep config order whatever order the workers finish in.
func (g *Generator) collect(ctx context.Context, led *ledger.Ledger) ([]news.TopicDigest, int, *topicStats) {
	topics := g.Newsletter.Topics
	digests := make([]news.TopicDigest, len(topics))
	stats := &topicStats{}

	var (
		mu     sync.Mutex
		failed int
	)

	var eg errgroup.Group
	eg.SetLimit(limit(g.TopicConcurrency, DefaultTopicConcurrency))
	for i, topic := range topics {
		eg.Go(func() error {
			digests[i].Topic = topic.Name
			articles, err := g.collectTopic(ctx, topic, led, stats)
			if err != nil {
				g.log.Error("topic collection failed", "topic", topic.Name, "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			digests[i].Clusters = g.Clusterer.Cluster(articles)
			g.log.Info("topic collected", "topic", topic.Name, "articles", len(articles), "clusters", len(digests[i].Clusters))
			return nil
		})
	}
	_ = eg.Wait()

	return digests, failed, stats
}

func (g *Generator) collectTopic(ctx context.Context, topic news.Topic, led *ledger.Ledger, stats *topicStats) ([]news.Article, error) {
	results, err := g.Searcher.Search(ctx, topic.Keywords, g.Period)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", topic.Name, err)
	}

	slots := make([]*news.Article, len(results))
	var eg errgroup.Group
	eg.SetLimit(limit(g.FetchConcurrency, DefaultFetchConcurrency))
	for i, r := range results {
		eg.Go(func() error {
			slots[i] = g.fetchArticle(ctx, topic, r, led, stats)
			return nil
		})
	}
	_ = eg.Wait()

	articles := make([]news.Article, 0, len(slots))
	for _, a := range slots {
		if a != nil {
			articles = append(articles, *a)
		}
	}
	return articles, nil
}

// fetchArticle resolves, admits and extracts one search hit. It returns nil
// when the hit is a duplicate or could not be fetched.
func (g *Generator) fetchArticle(ctx context.Context, topic news.Topic, r news.SearchResult, led *ledger.Ledger, stats *topicStats) *news.Article {
	link, err := g.Decoder.Decode(ctx, r.URL)
	if err != nil {
		g.log.Debug("failed to decode URL", "url", r.URL, "error", err)
		g.fetchFailed(stats)
		return nil
	}

	if !led.Admit(link) {
		stats.duplicates.Add(1)
		g.Metrics.IncrementDuplicates()
		return nil
	}

	body, err := g.Extractor.ExtractContent(ctx, link)
	if err != nil {
		if !(errors.Is(err, scraper.ErrNoContent) && g.Newsletter.KeepTextless) {
			g.log.Debug("failed to extract content", "url", link, "error", err)
			led.Release(link)
			g.fetchFailed(stats)
			return nil
		}
		body = ""
	}

	image, err := g.Extractor.ExtractImage(ctx, link)
	if err != nil {
		g.log.Debug("no cover image", "url", link, "error", err)
	}

	stats.collected.Add(1)
	return &news.Article{
		Title:         r.Title,
		CanonicalURL:  link,
		Publisher:     r.Publisher,
		PublishedAt:   r.PublishedAt,
		BodyText:      body,
		ImageURL:      image,
		Topic:         topic.Name,
		SearchKeyword: topic.Query(),
	}
}

func (g *Generator) fetchFailed(stats *topicStats) {
	stats.failed.Add(1)
	g.Metrics.IncrementFetchFailures()
}

// summarize dispatches every topic's clusters in one pool and splits the
// result back per topic.
func (g *Generator) summarize(ctx context.Context, digests []news.TopicDigest) []news.TopicDigest {
	var all []news.Cluster
	for _, d := range digests {
		all = append(all, d.Clusters...)
	}
	if len(all) == 0 {
		return digests
	}

	done := g.Dispatcher.Dispatch(ctx, all)

	out := make([]news.TopicDigest, len(digests))
	offset := 0
	for i, d := range digests {
		n := len(d.Clusters)
		out[i] = news.TopicDigest{Topic: d.Topic}
		if n > 0 {
			out[i].Clusters = done[offset : offset+n]
		}
		offset += n
	}
	return out
}

func (g *Generator) persist(ctx context.Context, digests []news.TopicDigest) (saved, duplicates int, err error) {
	var records []news.Record
	for _, d := range digests {
		for _, a := range d.Articles() {
			records = append(records, news.RecordOf(a))
		}
	}
	if len(records) == 0 || g.Store == nil {
		return 0, 0, nil
	}

	saved, duplicates, err = g.Store.SaveArticles(ctx, records)
	if err != nil {
		return 0, 0, fmt.Errorf("save articles: %w", err)
	}
	g.log.Info("articles saved", "saved", saved, "duplicates", duplicates)

	exportPath := storage.ExportPath(g.Newsletter.DBName)
	n, err := g.Store.ExportJSON(ctx, exportPath)
	if err != nil {
		return saved, duplicates, fmt.Errorf("export json: %w", err)
	}
	g.log.Info("store exported", "path", exportPath, "records", n)

	if g.Newsletter.MonthlyJSONEnabled && g.Archive != nil {
		if _, err := g.Archive.Update(records); err != nil {
			return saved, duplicates, fmt.Errorf("update monthly archive: %w", err)
		}
	}
	return saved, duplicates, nil
}

func limit(n, def int) int {
	if n > 0 {
		return n
	}
	return def
}
