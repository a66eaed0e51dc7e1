// Package news holds the domain types shared by the collection, clustering,
// summarization, rendering and persistence stages.
package news

import (
	"strings"
	"time"
)

// Article is one fetched news item.
type Article struct {
	Title        string
	CanonicalURL string // dedup key
	Publisher    string
	PublishedAt  string
	BodyText     string
	Summary      string // set only on a cluster representative
	ImageURL     string

	Topic         string
	SearchKeyword string
}

// HasText reports whether the article carries usable body text.
func (a Article) HasText() bool {
	return strings.TrimSpace(a.BodyText) != ""
}

// Cluster is a group of articles covering the same story. Articles[0] is the
// representative; the rest are rendered as secondary links.
type Cluster struct {
	Articles []Article
}

// Representative returns the seed article of the cluster.
func (c Cluster) Representative() (Article, bool) {
	if len(c.Articles) == 0 {
		return Article{}, false
	}
	return c.Articles[0], true
}

// Secondary returns all non-representative members.
func (c Cluster) Secondary() []Article {
	if len(c.Articles) < 2 {
		return nil
	}
	return c.Articles[1:]
}

// Topic is one keyword group of a newsletter.
type Topic struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Query joins the keyword group with OR, the form the search provider expects.
func (t Topic) Query() string {
	return strings.Join(t.Keywords, " OR ")
}

// TopicDigest is the rendered unit: a topic with its ordered clusters.
type TopicDigest struct {
	Topic    string
	Clusters []Cluster
}

// Articles flattens the digest in render order.
func (d TopicDigest) Articles() []Article {
	var out []Article
	for _, c := range d.Clusters {
		out = append(out, c.Articles...)
	}
	return out
}

// SearchResult is what the search collaborator returns per hit.
type SearchResult struct {
	Title       string
	URL         string
	Publisher   string
	PublishedAt string
}

// Record is the persisted form of an article.
type Record struct {
	Topic       string `json:"topic"`
	Keywords    string `json:"keywords"`
	Title       string `json:"title"`
	Press       string `json:"press"`
	Date        string `json:"date"`
	OriginalURL string `json:"original_url"`
	Content     string `json:"content"`
}

// RecordOf converts a finalized article into its stored form.
func RecordOf(a Article) Record {
	return Record{
		Topic:       a.Topic,
		Keywords:    a.SearchKeyword,
		Title:       a.Title,
		Press:       a.Publisher,
		Date:        a.PublishedAt,
		OriginalURL: a.CanonicalURL,
		Content:     a.BodyText,
	}
}

// RunReport aggregates the outcome of one newsletter generation.
type RunReport struct {
	Newsletter   string
	StartedAt    time.Time
	Duration     time.Duration
	Collected    int
	Duplicates   int
	Failed       int
	TopicsFailed int
	Clusters     int
	Saved        int
	StoreDups    int
	PersistErr   error
	OutputHTML   string
}
