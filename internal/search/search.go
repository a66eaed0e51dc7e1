// Package search queries the Google News RSS search endpoint.
package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed/rss"

	"github.com/deusflow/newsbrief/internal/logger"
	"github.com/deusflow/newsbrief/internal/news"
	"github.com/deusflow/newsbrief/internal/retry"
)

const (
	DefaultBaseURL    = "https://news.google.com/rss/search"
	DefaultMaxResults = 10

	// DateLayout is the stored publication date format, in KST.
	DateLayout = "2006-01-02 15:04"
)

var kst = time.FixedZone("KST", 9*60*60)

// Client searches Google News for a keyword group.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	Language   string // hl, e.g. ko
	Country    string // gl, e.g. KR
	MaxResults int
	Retry      retry.Config
}

func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		BaseURL:    DefaultBaseURL,
		Language:   "ko",
		Country:    "KR",
		MaxResults: DefaultMaxResults,
		Retry:      retry.Default,
	}
}

// When maps a configured period to the search window. Unknown values fall
// back to one day.
func When(period string) string {
	switch strings.ToLower(strings.TrimSpace(period)) {
	case "주단위", "week", "weekly", "7d":
		return "7d"
	case "월단위", "month", "monthly", "30d":
		return "30d"
	default:
		return "1d"
	}
}

// Query builds the search expression for a topic's keywords.
func Query(keywords []string, when string) string {
	return "intext:" + strings.Join(keywords, " OR ") + " when:" + when
}

// Search returns at most MaxResults hits for the keyword group.
func (c *Client) Search(ctx context.Context, keywords []string, period string) ([]news.SearchResult, error) {
	endpoint, err := c.endpoint(Query(keywords, When(period)))
	if err != nil {
		return nil, err
	}

	var feed *rss.Feed
	err = retry.WithRetry(ctx, c.Retry, func() error {
		var ferr error
		feed, ferr = c.fetch(ctx, endpoint)
		return ferr
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", strings.Join(keywords, " OR "), err)
	}

	max := c.MaxResults
	if max <= 0 {
		max = DefaultMaxResults
	}
	results := make([]news.SearchResult, 0, max)
	for _, item := range feed.Items {
		if len(results) >= max {
			break
		}
		if item == nil || item.Link == "" {
			continue
		}
		results = append(results, toResult(item))
	}
	logger.Debug("search done", "keywords", keywords, "results", len(results))
	return results, nil
}

func (c *Client) endpoint(q string) (string, error) {
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	lang, country := c.Language, c.Country
	if lang == "" {
		lang = "ko"
	}
	if country == "" {
		country = "KR"
	}
	v := u.Query()
	v.Set("q", q)
	v.Set("hl", lang)
	v.Set("gl", country)
	v.Set("ceid", country+":"+lang)
	u.RawQuery = v.Encode()
	return u.String(), nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) (*rss.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; newsbrief/1.0)")

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("HTTP error: %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	fp := rss.Parser{}
	feed, err := fp.Parse(resp.Body)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("parse feed: %w", err))
	}
	return feed, nil
}

func toResult(item *rss.Item) news.SearchResult {
	r := news.SearchResult{
		Title:       strings.TrimSpace(item.Title),
		URL:         strings.TrimSpace(item.Link),
		PublishedAt: publishedAt(item),
	}
	if item.Source != nil {
		r.Publisher = strings.TrimSpace(item.Source.Title)
	}
	r.Title = StripPublisher(r.Title, r.Publisher)
	return r
}

// StripPublisher removes the trailing " - Publisher" that Google News
// appends to headlines.
func StripPublisher(title, publisher string) string {
	if publisher != "" {
		if t, ok := strings.CutSuffix(title, " - "+publisher); ok {
			return strings.TrimSpace(t)
		}
	}
	return title
}

// publishedAt formats the date gofeed parsed from pubDate as DateLayout in
// KST. A pubDate gofeed could not parse is kept as the raw string.
func publishedAt(item *rss.Item) string {
	if item.PubDateParsed != nil {
		return item.PubDateParsed.In(kst).Format(DateLayout)
	}
	return strings.TrimSpace(item.PubDate)
}
