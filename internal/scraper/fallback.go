package scraper

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// maxFallbackRunes bounds the selector extractor's output.
const maxFallbackRunes = 4000

// extractContentBySource gets content using publisher-specific selectors
// first and generic ones after.
func extractContentBySource(doc *goquery.Document, host string) string {
	var content string

	switch {
	case strings.HasSuffix(host, "naver.com"):
		content = extractBlock(doc, "#dic_area", "#newsct_article", "#articleBodyContents")
	case strings.HasSuffix(host, "daum.net"):
		content = extractParagraphs(doc, 10, ".article_view section p", ".news_view p")
	case strings.HasSuffix(host, "yna.co.kr"):
		content = extractParagraphs(doc, 10, ".story-news p", "#articleWrap p")
	}
	if content == "" {
		content = extractBlock(doc, "#article-view-content-div", "#articleBody", ".article_body", "#article_body", ".news_body")
	}
	if content == "" {
		content = extractGenericContent(doc)
	}

	return cleanContent(content)
}

// extractBlock reads the text of the first matching container. Korean news
// CMSes often separate paragraphs with <br> rather than <p>.
func extractBlock(doc *goquery.Document, selectors ...string) string {
	for _, selector := range selectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		sel.Find("script, style, figure, figcaption, .reporter_area, .copyright").Remove()
		sel.Find("br").ReplaceWithHtml("\n")
		if text := strings.TrimSpace(sel.Text()); text != "" {
			return text
		}
	}
	return ""
}

func extractParagraphs(doc *goquery.Document, minLen int, selectors ...string) string {
	var paragraphs []string

	for _, selector := range selectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if utf8.RuneCountInString(text) > minLen {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) > 0 {
			break
		}
	}

	return strings.Join(paragraphs, "\n")
}

// extractGenericContent is universal parser for any site
func extractGenericContent(doc *goquery.Document) string {
	var paragraphs []string

	selectors := []string{
		"article p",
		".article p",
		".content p",
		".post-content p",
		".entry-content p",
		"main p",
		"#content p",
		"p",
	}

	for _, selector := range selectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if utf8.RuneCountInString(text) > 20 {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) >= 3 {
			break
		}
	}

	return strings.Join(paragraphs, "\n")
}

var junkIndicators = []string{
	"무단 전재", "무단전재", "재배포 금지", "재배포금지",
	"저작권자", "copyright", "ⓒ", "©",
	"기사제보", "구독하기",
	"cookie", "all rights reserved",
}

// cleanContent drops boilerplate lines and caps the length on a line boundary.
func cleanContent(content string) string {
	if content == "" {
		return ""
	}

	var lines []string
	total := 0
	for _, line := range strings.Split(content, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if utf8.RuneCountInString(line) < 8 {
			continue
		}

		lower := strings.ToLower(line)
		isJunk := false
		for _, indicator := range junkIndicators {
			if strings.Contains(lower, indicator) {
				isJunk = true
				break
			}
		}
		if isJunk {
			continue
		}

		n := utf8.RuneCountInString(line)
		if total+n > maxFallbackRunes && len(lines) > 0 {
			break
		}
		lines = append(lines, line)
		total += n + 1
	}

	return strings.Join(lines, "\n")
}
