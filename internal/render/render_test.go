package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/deusflow/newsbrief/internal/news"
)

func TestKoreanDate(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{in: time.Date(2025, 10, 13, 9, 0, 0, 0, kst), want: "2025년 10월 13일(월)"},
		{in: time.Date(2025, 10, 12, 20, 0, 0, 0, time.UTC), want: "2025년 10월 13일(월)"},
		{in: time.Date(2025, 1, 5, 0, 0, 0, 0, kst), want: "2025년 01월 05일(일)"},
	}
	for _, tt := range tests {
		if got := KoreanDate(tt.in); got != tt.want {
			t.Errorf("KoreanDate(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(Options{
		Brand:  Brand{Title: "KETEP NEWSBRIEFING", HomeURL: "https://bit.ly/ketepnews", HomeLabel: "KETEP NEWS CLOUD"},
		Banner: []BannerSection{{Title: "무료교육", Links: []Link{{Label: "OpenAI Academy", URL: "https://academy.openai.com/"}}}},
		Footer: Footer{Title: "KETEP INFO", Organization: "Korea Institute of Energy Technology Evaluation and Planning", Lines: []string{"Tel : +82 2-3469-8400"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	r.Now = func() time.Time { return time.Date(2025, 10, 13, 9, 0, 0, 0, kst) }
	return r
}

func TestRender(t *testing.T) {
	r := newTestRenderer(t)
	digests := []news.TopicDigest{
		{
			Topic: "원전",
			Clusters: []news.Cluster{
				{Articles: []news.Article{
					{Title: "SMR 수출 전략", CanonicalURL: "https://a.kr/1", Publisher: "에너지신문", PublishedAt: "2025-10-13 09:00", Summary: "첫 문장.\n둘째 문장.", ImageURL: "https://img.a.kr/1.jpg"},
					{Title: "SMR 후속 보도", CanonicalURL: "https://b.kr/2"},
				}},
				{Articles: []news.Article{
					{Title: "<script>alert(1)</script>", CanonicalURL: "https://c.kr/3", Summary: "요약 <b>굵게</b>"},
				}},
			},
		},
		{Topic: "수소"},
	}

	doc, err := r.Render(digests)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"KETEP NEWSBRIEFING",
		"2025년 10월 13일(월)",
		"https://bit.ly/ketepnews",
		"OpenAI Academy",
		`href="https://a.kr/1"`,
		"첫 문장.<br>",
		"↪ SMR 후속 보도",
		"https://img.a.kr/1.jpg",
		"오늘은 '수소' 관련 뉴스가 없습니다.",
		"&lt;script&gt;",
		"KETEP INFO",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q", want)
		}
	}
	if strings.Contains(doc, "<script>") || strings.Contains(doc, "<b>굵게</b>") {
		t.Errorf("document contains unescaped markup")
	}
	if strings.Index(doc, "원전") > strings.Index(doc, "수소") {
		t.Errorf("topics out of order")
	}
	if strings.Contains(doc, "오늘은 '원전'") {
		t.Errorf("non-empty topic rendered as empty")
	}
}

func TestRenderNoTopicsStillProducesDocument(t *testing.T) {
	doc, err := newTestRenderer(t).Render(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(doc, "</html>") || !strings.Contains(doc, "KETEP INFO") {
		t.Errorf("incomplete document")
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "energy.html")
	if err := WriteFile(path, "<html></html>"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "<html></html>" {
		t.Errorf("ReadFile = %q, %v", data, err)
	}
}
