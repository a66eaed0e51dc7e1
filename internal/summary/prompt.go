package summary

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxPromptRunes bounds the article text sent to a provider.
const maxPromptRunes = 6000

// Prompt builds the summarization request for an article body.
func Prompt(text string) string {
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) > maxPromptRunes {
		runes := []rune(text)
		trimmed := string(runes[:maxPromptRunes])
		// end on a sentence if one closes reasonably late
		if idx := strings.LastIndex(trimmed, ". "); idx > 1200 {
			trimmed = trimmed[:idx+1]
		}
		text = trimmed
	}
	return fmt.Sprintf("%s\n\n위 기사를 간결하게 3줄로 요약해주세요. 각 문장은 줄바꿈해주세요.", text)
}

var (
	fenceLine = regexp.MustCompile("^```[a-zA-Z]*$")
	bullet    = regexp.MustCompile(`^(?:[-*•·]|\d+[.)])\s+`)

	// (Note: ...) or [Disclaimer: ...] embedded in a line
	inlineNote = regexp.MustCompile(`(?i)[(\[]\s*(?:note|disclaimer|참고|주의)\s*:[^)\]]*[)\]]\s*`)

	disclaimers = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^as an ai\b`),
		regexp.MustCompile(`(?i)^i am an ai\b`),
		regexp.MustCompile(`(?i)^(note|disclaimer):`),
		regexp.MustCompile(`(?i)^here (is|are) (a|the) .*summary`),
		regexp.MustCompile(`^(AI|인공지능) ?(언어 ?모델|어시스턴트)`),
		regexp.MustCompile(`^(다음은|아래는) .*요약`),
		regexp.MustCompile(`^요약\s*:?\s*$`),
	}
)

// Sanitize removes code fences, list bullets and assistant boilerplate from a
// model response, keeping one trimmed sentence per line.
func Sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	var lines []string
	for _, raw := range strings.Split(s, "\n") {
		line := strings.TrimSpace(inlineNote.ReplaceAllString(raw, ""))
		if line == "" || fenceLine.MatchString(line) {
			continue
		}
		if isDisclaimer(line) {
			continue
		}
		line = strings.TrimSpace(bullet.ReplaceAllString(line, ""))
		line = strings.TrimPrefix(line, "요약: ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func isDisclaimer(line string) bool {
	for _, re := range disclaimers {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
