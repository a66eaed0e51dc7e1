package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds the counters of a single generation run. Each run creates
// its own instance; the most recent one is published for the monitoring
// endpoint.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	ArticlesCollected   int64
	DuplicatesFiltered  int64
	FetchFailures       int64
	SuccessfulSummaries int64
	FailedSummaries     int64
	CachedSummaries     int64
	ClustersFormed      int64
	ArticlesSaved       int64
	MailBatchesSent     int64
	MailBatchesFailed   int64

	// Timings
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration
	ProcessingCount       int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

func New() *Metrics {
	return &Metrics{IsHealthy: true}
}

var current atomic.Pointer[Metrics]

func init() {
	current.Store(New())
}

// Publish makes m the instance reported by Current.
func Publish(m *Metrics) {
	if m != nil {
		current.Store(m)
	}
}

// Current returns the most recently published instance.
func Current() *Metrics {
	return current.Load()
}

func (m *Metrics) add(field *int64, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*field += int64(n)
}

func (m *Metrics) AddCollected(n int) { m.add(&m.ArticlesCollected, n) }
func (m *Metrics) IncrementDuplicates() { m.add(&m.DuplicatesFiltered, 1) }
func (m *Metrics) IncrementFetchFailures() { m.add(&m.FetchFailures, 1) }
func (m *Metrics) IncrementSummaries() { m.add(&m.SuccessfulSummaries, 1) }
func (m *Metrics) IncrementFailedSummaries() { m.add(&m.FailedSummaries, 1) }
func (m *Metrics) IncrementCachedSummaries() { m.add(&m.CachedSummaries, 1) }
func (m *Metrics) AddClusters(n int) { m.add(&m.ClustersFormed, n) }
func (m *Metrics) AddSaved(n int) { m.add(&m.ArticlesSaved, n) }
func (m *Metrics) IncrementMailBatches() { m.add(&m.MailBatchesSent, 1) }
func (m *Metrics) IncrementFailedMailBatches() { m.add(&m.MailBatchesFailed, 1) }

func (m *Metrics) RecordProcessingTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastProcessingTime = duration
	m.TotalProcessingTime += duration
	m.ProcessingCount++

	if m.ProcessingCount > 0 {
		m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.ProcessingCount)
	}
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"articles_collected":         m.ArticlesCollected,
		"duplicates_filtered":        m.DuplicatesFiltered,
		"fetch_failures":             m.FetchFailures,
		"successful_summaries":       m.SuccessfulSummaries,
		"failed_summaries":           m.FailedSummaries,
		"cached_summaries":           m.CachedSummaries,
		"clusters_formed":            m.ClustersFormed,
		"articles_saved":             m.ArticlesSaved,
		"mail_batches_sent":          m.MailBatchesSent,
		"mail_batches_failed":        m.MailBatchesFailed,
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"last_run_time":              m.LastRunTime.Format(time.RFC3339),
		"last_error_time":            m.LastErrorTime.Format(time.RFC3339),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
}
