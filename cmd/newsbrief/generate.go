package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/deusflow/newsbrief/internal/app"
	"github.com/deusflow/newsbrief/internal/cache"
	"github.com/deusflow/newsbrief/internal/cluster"
	"github.com/deusflow/newsbrief/internal/config"
	"github.com/deusflow/newsbrief/internal/decoder"
	"github.com/deusflow/newsbrief/internal/gemini"
	"github.com/deusflow/newsbrief/internal/ledger"
	"github.com/deusflow/newsbrief/internal/logger"
	"github.com/deusflow/newsbrief/internal/metrics"
	"github.com/deusflow/newsbrief/internal/news"
	"github.com/deusflow/newsbrief/internal/openai"
	"github.com/deusflow/newsbrief/internal/ratelimit"
	"github.com/deusflow/newsbrief/internal/render"
	"github.com/deusflow/newsbrief/internal/scraper"
	"github.com/deusflow/newsbrief/internal/search"
	"github.com/deusflow/newsbrief/internal/storage"
	"github.com/deusflow/newsbrief/internal/summary"
)

func generateCmd() *cobra.Command {
	var only string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Collect, cluster and summarize news and write every newsletter",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateLLM(); err != nil {
				return err
			}
			return generate(cmd.Context(), cfg, only)
		},
	}
	cmd.Flags().StringVar(&only, "only", "", "generate only the named newsletter")
	return cmd
}

// shared holds collaborators that live for the whole process.
type shared struct {
	summarizer summary.Summarizer
	cache      *cache.Cache
	history    *ledger.RedisHistory
	close      []func()
}

func (s *shared) Close() {
	for i := len(s.close) - 1; i >= 0; i-- {
		s.close[i]()
	}
}

func newShared(ctx context.Context, cfg *config.Config) (*shared, error) {
	s := &shared{cache: cache.New()}
	s.cache.StartCleanup(time.Hour)
	s.close = append(s.close, s.cache.Close)

	switch cfg.LLMProvider {
	case config.ProviderGemini:
		c, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.Common.GeminiModel)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.summarizer = c
		s.close = append(s.close, c.Close)
	default:
		c, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.Common.OpenAIModel, cfg.OpenAIBaseURL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.summarizer = c
	}

	if cfg.RedisAddr != "" {
		h, err := ledger.NewRedisHistory(ctx, ledger.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.RedisTTL,
		})
		if err != nil {
			// history is optional; run without it
			logger.Warn("redis history unavailable", "error", err)
		} else {
			s.history = h
			s.close = append(s.close, func() { _ = h.Close() })
		}
	}
	return s, nil
}

func generate(ctx context.Context, cfg *config.Config, only string) error {
	newsletters := cfg.Newsletters
	if only != "" {
		n, err := cfg.Newsletter(only)
		if err != nil {
			return err
		}
		newsletters = []config.Newsletter{n}
	}

	sh, err := newShared(ctx, cfg)
	if err != nil {
		return err
	}
	defer sh.Close()

	var errs []error
	for _, n := range newsletters {
		report, err := runNewsletter(ctx, cfg, n, sh)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name, err))
			continue
		}
		logger.Info("newsletter done",
			"newsletter", report.Newsletter,
			"output", report.OutputHTML,
			"duration", report.Duration.Round(time.Millisecond),
		)
	}
	return errors.Join(errs...)
}

func runNewsletter(ctx context.Context, cfg *config.Config, n config.Newsletter, sh *shared) (news.RunReport, error) {
	m := metrics.New()
	metrics.Publish(m)

	store, err := storage.Open(ctx, n.DBDriver, n.DSN())
	if err != nil {
		m.SetError(err.Error())
		return news.RunReport{}, err
	}
	defer store.Close()

	renderer, err := render.New(n.RenderOptions(cfg.Common))
	if err != nil {
		return news.RunReport{}, err
	}

	searcher := search.NewClient()
	searcher.MaxResults = cfg.Common.MaxResults

	ext := scraper.New()
	ext.HTTPClient.Timeout = cfg.RequestTimeout
	ext.InsecureImages = cfg.InsecureImages

	budget := ratelimit.NewBudget(map[string]int{cfg.LLMProvider: cfg.MaxLLMRequests}, 0)
	defer budget.LogStats()

	g := &app.Generator{
		Newsletter: n,
		Period:     cfg.Common.Period,
		Searcher:   searcher,
		Decoder:    decoder.New(time.Duration(cfg.Common.IntervalTime * float64(time.Second))),
		Extractor:  ext,
		Clusterer:  cluster.New(),
		Dispatcher: &summary.Dispatcher{
			Summarizer:  sh.summarizer,
			Provider:    cfg.LLMProvider,
			Concurrency: cfg.SummaryConcurrency,
			Timeout:     cfg.SummaryTimeout,
			Budget:      budget,
			Cache:       sh.cache,
			CacheTTL:    cfg.CacheTTL,
			Metrics:     m,
		},
		Renderer:         renderer,
		Store:            store,
		Archive:          storage.NewArchive(n.MonthlyJSONDir),
		TopicConcurrency: cfg.TopicConcurrency,
		FetchConcurrency: cfg.FetchConcurrency,
		Metrics:          m,
	}
	if sh.history != nil {
		g.History = sh.history.WithKey(ledger.HistoryKey(n.Name))
	}
	return g.Run(ctx)
}
