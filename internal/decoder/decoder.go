// Package decoder resolves Google News wrapper links to publisher URLs.
package decoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/deusflow/newsbrief/internal/logger"
)

const (
	DefaultBaseURL  = "https://news.google.com"
	DefaultInterval = 5 * time.Second

	googleNewsHost = "news.google.com"
	batchPath      = "/_/DotsSplashUi/data/batchexecute"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36"
)

var (
	// ErrNotGoogleNews is returned by ArticleID for links that need no decoding.
	ErrNotGoogleNews = errors.New("not a google news article url")
	ErrNoSignature   = errors.New("decoding parameters not found")
	ErrBadResponse   = errors.New("unexpected batchexecute response")
)

// Decoder turns news.google.com/.../articles/<id> links into the canonical
// publisher URL. Calls are spaced by the configured interval.
type Decoder struct {
	HTTPClient *http.Client
	BaseURL    string
	limiter    *rate.Limiter
}

// New returns a decoder that issues at most one decode per interval.
// A non-positive interval disables spacing.
func New(interval time.Duration) *Decoder {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Decoder{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		BaseURL:    DefaultBaseURL,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// ArticleID extracts the encoded article id from a Google News link.
func ArticleID(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", raw, err)
	}
	if !strings.EqualFold(u.Hostname(), googleNewsHost) {
		return "", ErrNotGoogleNews
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "articles" || parts[i] == "read" {
			if id := parts[i+1]; id != "" {
				return id, nil
			}
		}
	}
	return "", ErrNotGoogleNews
}

// Decode returns the canonical URL behind raw. Links that are not Google
// News wrappers are canonicalized and returned without network calls.
func (d *Decoder) Decode(ctx context.Context, raw string) (string, error) {
	id, err := ArticleID(raw)
	if errors.Is(err, ErrNotGoogleNews) {
		return Canonicalize(raw), nil
	}
	if err != nil {
		return "", err
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	sig, ts, err := d.params(ctx, id)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", id, err)
	}
	target, err := d.batchExecute(ctx, id, sig, ts)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", id, err)
	}
	logger.Debug("decoded google news url", "id", id, "url", target)
	return Canonicalize(target), nil
}

func (d *Decoder) base() string {
	if d.BaseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(d.BaseURL, "/")
}

func (d *Decoder) client() *http.Client {
	if d.HTTPClient == nil {
		return http.DefaultClient
	}
	return d.HTTPClient
}

// params reads the signature and timestamp embedded in the article page.
func (d *Decoder) params(ctx context.Context, id string) (sig, ts string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.base()+"/articles/"+id, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client().Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("error parsing HTML: %w", err)
	}
	div := doc.Find("c-wiz > div[jscontroller]").First()
	if div.Length() == 0 {
		div = doc.Find("[data-n-a-sg]").First()
	}
	sig, _ = div.Attr("data-n-a-sg")
	ts, _ = div.Attr("data-n-a-ts")
	if sig == "" || ts == "" {
		return "", "", ErrNoSignature
	}
	return sig, ts, nil
}

// batchRequest builds the f.req form value for the garturlreq RPC.
func batchRequest(id, sig, ts string) (string, error) {
	inner := fmt.Sprintf(`["garturlreq",[["X","X",["X","X"],null,null,1,1,"US:en",null,1,null,null,null,null,null,0,1],"X","X",1,[1,1,1],1,1,null,0,0,null,0],%q,%s,%q]`, id, ts, sig)
	b, err := json.Marshal([][][]string{{{"Fbv4je", inner}}})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *Decoder) batchExecute(ctx context.Context, id, sig, ts string) (string, error) {
	for _, r := range ts {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: timestamp %q", ErrNoSignature, ts)
		}
	}
	freq, err := batchRequest(id, sig, ts)
	if err != nil {
		return "", err
	}
	form := url.Values{"f.req": {freq}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.base()+batchPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return parseBatchResponse(string(body))
}

// parseBatchResponse extracts the decoded URL from a batchexecute reply. The
// reply is an XSSI prefix followed by blank-line separated JSON chunks; the
// first envelope's payload is itself a JSON array whose second element is
// the URL.
func parseBatchResponse(body string) (string, error) {
	chunks := strings.Split(body, "\n\n")
	if len(chunks) < 2 {
		return "", ErrBadResponse
	}

	var envelopes [][]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(chunks[1])), &envelopes); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if len(envelopes) <= 2 {
		return "", ErrBadResponse
	}
	envelopes = envelopes[:len(envelopes)-2]
	if len(envelopes[0]) < 3 {
		return "", ErrBadResponse
	}

	var payload string
	if err := json.Unmarshal(envelopes[0][2], &payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	var fields []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil || len(fields) < 2 {
		return "", ErrBadResponse
	}
	var target string
	if err := json.Unmarshal(fields[1], &target); err != nil || target == "" {
		return "", ErrBadResponse
	}
	return target, nil
}
