package scraper

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"

	"github.com/deusflow/newsbrief/internal/logger"
)

const (
	defaultTimeout  = 15 * time.Second
	defaultMaxBytes = 5 << 20
	userAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36"
)

// ErrNoContent means neither extractor found article text.
var ErrNoContent = errors.New("can't get content")

// Scraper fetches article pages and extracts their body text and cover image.
type Scraper struct {
	HTTPClient *http.Client
	MaxBytes   int64
	// InsecureImages disables certificate checks for image lookups only.
	// The relaxed transport is built per request and never shared.
	InsecureImages bool
}

func New() *Scraper {
	return &Scraper{
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		MaxBytes:   defaultMaxBytes,
	}
}

type page struct {
	url  *url.URL
	body []byte // UTF-8
}

func (s *Scraper) fetch(ctx context.Context, client *http.Client, rawURL string) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	limit := s.MaxBytes
	if limit <= 0 {
		limit = defaultMaxBytes
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("error reading page: %w", err)
	}

	// many Korean publishers still serve EUC-KR
	r, err := charset.NewReader(bytes.NewReader(raw), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("error decoding charset: %w", err)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error decoding charset: %w", err)
	}
	return &page{url: resp.Request.URL, body: body}, nil
}

func (s *Scraper) client() *http.Client {
	if s.HTTPClient == nil {
		return &http.Client{Timeout: defaultTimeout}
	}
	return s.HTTPClient
}

// ExtractContent returns the plain-text body of the article at pageURL.
// Readability runs first; the selector-based extractor is the fallback.
func (s *Scraper) ExtractContent(ctx context.Context, pageURL string) (string, error) {
	p, err := s.fetch(ctx, s.client(), pageURL)
	if err != nil {
		return "", err
	}

	if text := readabilityText(p); text != "" {
		return text, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.body))
	if err != nil {
		return "", fmt.Errorf("error parsing HTML: %w", err)
	}
	content := extractContentBySource(doc, p.url.Hostname())
	if content == "" {
		return "", ErrNoContent
	}
	logger.Debug("readability empty, used selector fallback", "url", pageURL)
	return content, nil
}

func readabilityText(p *page) string {
	article, err := readability.FromReader(bytes.NewReader(p.body), p.url)
	if err != nil {
		return ""
	}
	return normalizeSpace(article.TextContent)
}

// ExtractImage returns the best-effort cover image URL, upgraded to https.
// An empty string with a nil error means the page declares no image.
func (s *Scraper) ExtractImage(ctx context.Context, pageURL string) (string, error) {
	client := s.client()
	if s.InsecureImages {
		client = insecureClient(client.Timeout)
		defer client.CloseIdleConnections()
	}

	p, err := s.fetch(ctx, client, pageURL)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.body))
	if err != nil {
		return "", fmt.Errorf("error parsing HTML: %w", err)
	}
	return imageFromDocument(doc, p.url), nil
}

func insecureClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in, image lookups only
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

func imageFromDocument(doc *goquery.Document, base *url.URL) string {
	candidates := []struct {
		selector string
		attr     string
	}{
		{`meta[property="og:image"]`, "content"},
		{`meta[property="og:image:url"]`, "content"},
		{`meta[name="twitter:image"]`, "content"},
		{`meta[property="twitter:image"]`, "content"},
		{`link[rel="image_src"]`, "href"},
	}

	for _, c := range candidates {
		v, ok := doc.Find(c.selector).First().Attr(c.attr)
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			continue
		}
		return upgradeScheme(resolve(base, v))
	}
	return ""
}

func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}

func upgradeScheme(u string) string {
	if rest, ok := strings.CutPrefix(u, "http:"); ok {
		return "https:" + rest
	}
	return u
}

func normalizeSpace(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r", ""), "\n")
	var out []string
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
