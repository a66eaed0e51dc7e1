package textnorm

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "whitespace only", in: "  \n\t ", want: ""},
		{name: "punctuation and numbers", in: "!!! 123 ... 4.5%", want: ""},
		{name: "particles stripped", in: "정부가 원전을 확대한다", want: "정부 원전 확대"},
		{name: "short noun kept intact", in: "국가 에너지", want: "국가 에너지"},
		{name: "boilerplate dropped", in: "홍길동 기자 = 무단 전재 금지", want: "홍길동"},
		{name: "latin folded", in: "Solar Panels, SMR!", want: "solar panels smr"},
		{name: "single rune dropped", in: "a b 물 수소", want: "수소"},
		{name: "order preserved", in: "풍력은 태양광과 수소를", want: "풍력 태양광 수소"},
		{name: "predicate ending", in: "산업부는 발표했다", want: "산업부 발표"},
		{name: "noun ending like a particle", in: "원자로", want: "원자로"},
		{name: "reactor in a sentence", in: "SMR 원자로 건설", want: "smr 원자로 건설"},
		{name: "compound noun kept", in: "소형원자로 국제유가 배출권거래제도 온실효과", want: "소형원자로 국제유가 배출권거래제도 온실효과"},
		{name: "particle after such a noun", in: "원자로를 고로에서 유가가 원자로로", want: "원자로 고로 유가 원자로"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeInvalidUTF8(t *testing.T) {
	got := Normalize("수소\xff\xfe연료전지")
	if got != "수소 연료전지" {
		t.Errorf("Normalize(invalid) = %q", got)
	}
}

func TestIsStopWord(t *testing.T) {
	if !IsStopWord("the") {
		t.Errorf("IsStopWord(the) = false")
	}
	if IsStopWord("nuclear") {
		t.Errorf("IsStopWord(nuclear) = true")
	}
}
