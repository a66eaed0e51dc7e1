package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/korean"
)

var paragraphs = []string{
	"산업통상자원부는 13일 소형모듈원자로 수출 전략을 발표하고 2030년까지 관련 기업 100곳을 육성하겠다고 밝혔다.",
	"정부는 원전 생태계 복원을 위해 연구개발 예산을 확대하고, 해외 발주처와의 협력 채널을 넓히는 방안을 추진한다.",
	"업계는 인허가 기간 단축과 금융 지원이 뒷받침돼야 실제 수주로 이어질 수 있다고 지적했다.",
	"전문가들은 국내 공급망의 경쟁력을 높이기 위해 핵심 부품의 국산화율을 끌어올려야 한다고 조언했다.",
}

func articleHTML(head string) string {
	var b strings.Builder
	b.WriteString("<html><head><title>SMR 수출 전략</title>" + head + "</head><body><nav>메뉴</nav><article><h1>SMR 수출 전략</h1>")
	for _, p := range paragraphs {
		b.WriteString("<p>" + p + "</p>")
	}
	b.WriteString("<p>저작권자 ⓒ 에너지신문 무단전재 및 재배포 금지</p></article></body></html>")
	return b.String()
}

func TestExtractContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articleHTML("")))
	}))
	defer srv.Close()

	text, err := New().ExtractContent(context.Background(), srv.URL+"/news/1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "소형모듈원자로 수출 전략") {
		t.Errorf("content missing body text: %q", text)
	}
}

func TestExtractContentEUCKR(t *testing.T) {
	encoded, err := korean.EUCKR.NewEncoder().String(strings.ReplaceAll(articleHTML(""), "ⓒ ", ""))
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=euc-kr")
		_, _ = w.Write([]byte(encoded))
	}))
	defer srv.Close()

	text, err := New().ExtractContent(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "원전 생태계 복원") {
		t.Errorf("EUC-KR page not decoded: %q", text)
	}
}

func TestExtractContentHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	if _, err := New().ExtractContent(context.Background(), srv.URL); err == nil {
		t.Error("expected error for 404")
	}
}

func TestFallbackExtractor(t *testing.T) {
	html := `<html><body><div id="articleBody">` +
		paragraphs[0] + `<br>` + paragraphs[1] + `<br><br>` +
		`홍길동 기자 hong@example.com<br>` +
		`<script>var x = 1;</script>` +
		`Copyright 에너지신문 All rights reserved.` +
		`</div></body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}

	got := extractContentBySource(doc, "www.energy-news.co.kr")
	want := paragraphs[0] + "\n" + paragraphs[1] + "\n홍길동 기자 hong@example.com"
	if got != want {
		t.Errorf("extractContentBySource() =\n%q\nwant\n%q", got, want)
	}
}

func TestFallbackGeneric(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(articleHTML("")))
	if err != nil {
		t.Fatal(err)
	}
	got := extractContentBySource(doc, "example.com")
	if got != strings.Join(paragraphs, "\n") {
		t.Errorf("extractContentBySource() = %q", got)
	}
}

func TestImageFromDocument(t *testing.T) {
	base, _ := url.Parse("https://news.example.com/a/1")

	tests := []struct {
		name string
		head string
		want string
	}{
		{
			name: "og wins",
			head: `<meta name="twitter:image" content="https://cdn.example.com/tw.jpg"><meta property="og:image" content="https://cdn.example.com/og.jpg">`,
			want: "https://cdn.example.com/og.jpg",
		},
		{
			name: "twitter fallback",
			head: `<meta name="twitter:image" content="https://cdn.example.com/tw.jpg">`,
			want: "https://cdn.example.com/tw.jpg",
		},
		{
			name: "image_src relative",
			head: `<link rel="image_src" href="/img/cover.png">`,
			want: "https://news.example.com/img/cover.png",
		},
		{
			name: "http upgraded",
			head: `<meta property="og:image" content="http://cdn.example.com/og.jpg">`,
			want: "https://cdn.example.com/og.jpg",
		},
		{name: "none", head: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(articleHTML(tt.head)))
			if err != nil {
				t.Fatal(err)
			}
			if got := imageFromDocument(doc, base); got != tt.want {
				t.Errorf("imageFromDocument() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractImageInsecureIsPerRequest(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(articleHTML(`<meta property="og:image" content="https://cdn.example.com/og.jpg">`)))
	}))
	defer srv.Close()

	strict := New()
	if _, err := strict.ExtractImage(context.Background(), srv.URL); err == nil {
		t.Fatal("expected certificate error without InsecureImages")
	}

	relaxed := New()
	relaxed.InsecureImages = true
	img, err := relaxed.ExtractImage(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if img != "https://cdn.example.com/og.jpg" {
		t.Errorf("image = %q", img)
	}

	// the relaxed setting must not leak into content fetches
	if _, err := relaxed.ExtractContent(context.Background(), srv.URL); err == nil {
		t.Error("content fetch skipped certificate verification")
	}
}
