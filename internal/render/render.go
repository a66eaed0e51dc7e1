// Package render turns topic digests into the static HTML newsletter.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/deusflow/newsbrief/internal/news"
)

//go:embed templates/newsletter.html.tmpl
var templates embed.FS

var kst = time.FixedZone("KST", 9*60*60)

var weekdays = [...]string{"일", "월", "화", "수", "목", "금", "토"}

// KoreanDate formats t in Korea time as 2006년 01월 02일(월).
func KoreanDate(t time.Time) string {
	t = t.In(kst)
	return fmt.Sprintf("%s(%s)", t.Format("2006년 01월 02일"), weekdays[t.Weekday()])
}

type Brand struct {
	Title     string `yaml:"title"`
	HomeURL   string `yaml:"home_url"`
	HomeLabel string `yaml:"home_label"`
}

type Link struct {
	Label string `yaml:"label"`
	URL   string `yaml:"url"`
}

// BannerSection is one column of the optional link banner.
type BannerSection struct {
	Title string `yaml:"title"`
	Links []Link `yaml:"links"`
}

type Footer struct {
	Title        string   `yaml:"title"`
	Organization string   `yaml:"organization"`
	Lines        []string `yaml:"lines"`
}

type Options struct {
	Brand  Brand
	Banner []BannerSection
	Footer Footer
}

type Renderer struct {
	opts Options
	tmpl *template.Template
	md   goldmark.Markdown
	Now  func() time.Time
}

func New(opts Options) (*Renderer, error) {
	tmpl, err := template.ParseFS(templates, "templates/newsletter.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	if opts.Brand.Title == "" {
		opts.Brand.Title = "NEWSBRIEFING"
	}
	if opts.Brand.HomeLabel == "" {
		opts.Brand.HomeLabel = opts.Brand.Title
	}
	return &Renderer{
		opts: opts,
		tmpl: tmpl,
		md:   goldmark.New(goldmark.WithRendererOptions(html.WithHardWraps())),
		Now:  time.Now,
	}, nil
}

type articleView struct {
	Title    string
	URL      string
	Press    string
	Date     string
	Summary  template.HTML
	ImageURL string
}

type clusterView struct {
	Lead    *articleView
	Related []articleView
}

type topicView struct {
	Name     string
	Clusters []clusterView
}

type pageView struct {
	Brand  Brand
	Date   string
	Banner []BannerSection
	Topics []topicView
	Footer Footer
}

// Render produces the newsletter document. Topics appear in the given
// order and clusters in clustering order.
func (r *Renderer) Render(digests []news.TopicDigest) (string, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	page := pageView{
		Brand:  r.opts.Brand,
		Date:   KoreanDate(now()),
		Banner: r.opts.Banner,
		Footer: r.opts.Footer,
	}

	for _, d := range digests {
		tv := topicView{Name: d.Topic}
		for _, c := range d.Clusters {
			lead, ok := c.Representative()
			if !ok {
				continue
			}
			summary, err := r.markdown(lead.Summary)
			if err != nil {
				return "", err
			}
			cv := clusterView{Lead: &articleView{
				Title:    lead.Title,
				URL:      lead.CanonicalURL,
				Press:    lead.Publisher,
				Date:     lead.PublishedAt,
				Summary:  summary,
				ImageURL: lead.ImageURL,
			}}
			for _, a := range c.Secondary() {
				cv.Related = append(cv.Related, articleView{Title: a.Title, URL: a.CanonicalURL})
			}
			tv.Clusters = append(tv.Clusters, cv)
		}
		page.Topics = append(page.Topics, tv)
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, page); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

// markdown converts a summary to HTML. goldmark's default renderer drops
// raw HTML found in the summary.
func (r *Renderer) markdown(s string) (template.HTML, error) {
	if s == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(s), &buf); err != nil {
		return "", fmt.Errorf("convert summary: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// WriteFile saves the document, creating the parent directory if needed.
func WriteFile(path, doc string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
