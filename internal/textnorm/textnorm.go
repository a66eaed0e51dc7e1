// Package textnorm turns article bodies into token strings for vectorization.
//
// The output keeps content-bearing words only: Korean particles and verb
// endings are stripped from eojeol, function words, numbers, punctuation and
// single-rune tokens are dropped. The result is never meant for display.
package textnorm

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// minTokenRunes matches the vectorizer's token pattern (two or more word characters).
const minTokenRunes = 2

// Korean suffixes (josa and common predicate endings), longest first so the
// first match wins.
var koreanSuffixes = sortByLength([]string{
	// predicate endings
	"했으며", "하겠다", "한다고", "했다고", "이었다", "됐으며", "합니다", "입니다", "습니다",
	"했다", "한다", "하는", "하고", "하며", "해서", "하여", "했던", "된다", "됐다",
	"되는", "되어", "되며", "이다", "였다", "에서는", "에서도", "으로는", "으로도",
	// particles
	"으로부터", "에서부터", "이라고", "에게서", "으로써", "으로서",
	"에게", "께서", "한테", "에서", "으로", "부터", "까지", "마저", "조차", "처럼",
	"보다", "이나", "이며", "이고", "이라", "라고", "에는", "과의", "와의", "에도",
	"은", "는", "이", "가", "을", "를", "에", "의", "와", "과", "로", "도", "만",
})

// Nouns whose final syllable doubles as a particle. A word ending in one of
// these is already a bare noun, so stripKoreanSuffix leaves it alone
// (원자로 is not 원자 + 로). Compounds such as 소형원자로 and 국제유가 match
// by suffix.
var koreanNounEndings = []string{
	// -로: furnaces, reactors, routes
	"원자로", "고로", "도로", "경로", "회로", "선로", "항로", "진로", "통로", "활로", "판로", "수로", "교차로", "활주로",
	// -가: prices and agents
	"유가", "주가", "물가", "원가", "단가", "시가", "국가", "전문가", "투자가", "사업가", "정치가",
	// -도: rates and systems
	"제도", "밀도", "속도", "온도", "강도", "한도", "용도", "정도", "의존도", "만족도", "신뢰도", "인지도", "선호도", "활용도", "중요도",
	// -과, -의, -만
	"효과", "성과", "결과", "초과", "주의", "미만", "불만",
}

// Korean function words and newswire boilerplate that carry no topic signal.
var koreanStopWords = toSet([]string{
	"그리고", "그러나", "하지만", "또한", "이번", "지난", "오는", "있다", "없다",
	"위해", "통해", "대한", "대해", "관련", "따라", "따르면", "밝혔다", "말했다",
	"기자", "무단", "전재", "배포", "금지", "재배포", "저작권자", "사진", "제공",
	"오전", "오후", "올해", "지난해", "현재", "이후", "이상", "이하", "가운데",
	"최근", "경우", "때문", "것으로", "있는", "있으며", "있어", "이를", "이에",
	"한편", "특히", "모두", "함께", "다른", "같은", "많은", "가장", "우리",
})

var folder = cases.Fold()

// Normalize returns the whitespace-joined content tokens of text in order.
// Empty input yields "".
func Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, " ")
	}

	text = folder.String(norm.NFC.String(text))

	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if tok := contentToken(f); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return strings.Join(tokens, " ")
}

// Tokens is Normalize split into a slice.
func Tokens(text string) []string {
	return strings.Fields(Normalize(text))
}

func contentToken(word string) string {
	if isNumeric(word) {
		return ""
	}
	if hasHangul(word) {
		word = stripKoreanSuffix(word)
		if koreanStopWords[word] {
			return ""
		}
	}
	if utf8.RuneCountInString(word) < minTokenRunes {
		return ""
	}
	return word
}

// stripKoreanSuffix removes one particle or ending, keeping at least a
// two-rune stem; short nouns such as 국가 are left intact.
func stripKoreanSuffix(word string) string {
	for _, noun := range koreanNounEndings {
		if strings.HasSuffix(word, noun) {
			return word
		}
	}
	for _, suf := range koreanSuffixes {
		if !strings.HasSuffix(word, suf) {
			continue
		}
		stem := strings.TrimSuffix(word, suf)
		if utf8.RuneCountInString(stem) >= minTokenRunes {
			return stem
		}
	}
	return word
}

func hasHangul(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsNumber(r) {
			return false
		}
	}
	return true
}

func toSet(words []string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func sortByLength(words []string) []string {
	out := append([]string(nil), words...)
	sort.SliceStable(out, func(i, j int) bool {
		return utf8.RuneCountInString(out[i]) > utf8.RuneCountInString(out[j])
	})
	return out
}
