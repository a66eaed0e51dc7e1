package cluster

import (
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/deusflow/newsbrief/internal/news"
)

func symmetric(n int, pairs map[[2]int]float64) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	for p, v := range pairs {
		m.Set(p[0], p[1], v)
		m.Set(p[1], p[0], v)
	}
	return m
}

func TestGroupThreshold(t *testing.T) {
	tests := []struct {
		name string
		sim  float64
		want [][]int
	}{
		{name: "exactly at threshold merges", sim: 0.6, want: [][]int{{0, 1}}},
		{name: "just below threshold splits", sim: 0.599999, want: [][]int{{0}, {1}}},
		{name: "well above threshold merges", sim: 0.95, want: [][]int{{0, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Group(symmetric(2, map[[2]int]float64{{0, 1}: tt.sim}), DefaultThreshold)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Group() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGroupComparesWithSeedOnly(t *testing.T) {
	tests := []struct {
		name  string
		pairs map[[2]int]float64
		want  [][]int
	}{
		{
			name:  "both similar to seed but not to each other",
			pairs: map[[2]int]float64{{0, 1}: 0.7, {0, 2}: 0.7, {1, 2}: 0.1},
			want:  [][]int{{0, 1, 2}},
		},
		{
			name:  "later pair similar to each other only",
			pairs: map[[2]int]float64{{0, 1}: 0.1, {0, 2}: 0.1, {1, 2}: 0.9},
			want:  [][]int{{0}, {1, 2}},
		},
		{
			name:  "no chaining through a member",
			pairs: map[[2]int]float64{{0, 1}: 0.7, {0, 2}: 0.1, {1, 2}: 0.9},
			want:  [][]int{{0, 1}, {2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Group(symmetric(3, tt.pairs), DefaultThreshold)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Group() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGroupNil(t *testing.T) {
	if got := Group(nil, DefaultThreshold); got != nil {
		t.Errorf("Group(nil) = %v, want nil", got)
	}
}

const (
	nuclearStory = "정부가 소형모듈원자로 SMR 건설 계획을 발표했다. 원자력 산업 생태계 복원과 원전 수출을 추진한다."
	windStory    = "해상풍력 단지 인허가 절차가 간소화된다. 풍력 발전 사업자들은 송전망 부족 문제를 지적했다."
)

func titles(clusters []news.Cluster) [][]string {
	out := make([][]string, len(clusters))
	for i, c := range clusters {
		for _, a := range c.Articles {
			out[i] = append(out[i], a.Title)
		}
	}
	return out
}

func TestClusterOrdering(t *testing.T) {
	articles := []news.Article{
		{Title: "A", CanonicalURL: "https://a.example", BodyText: nuclearStory},
		{Title: "B", CanonicalURL: "https://b.example"},
		{Title: "C", CanonicalURL: "https://c.example", BodyText: nuclearStory + " 원자력"},
	}

	got := titles(New().Cluster(articles))
	want := [][]string{{"A", "C"}, {"B"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Cluster() = %v, want %v", got, want)
	}
}

func TestClusterSeparatesDistinctStories(t *testing.T) {
	articles := []news.Article{
		{Title: "nuclear-1", BodyText: nuclearStory},
		{Title: "wind", BodyText: windStory},
		{Title: "nuclear-2", BodyText: nuclearStory},
	}

	got := titles(New().Cluster(articles))
	want := [][]string{{"nuclear-1", "nuclear-2"}, {"wind"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Cluster() = %v, want %v", got, want)
	}
}

func TestClusterThresholdIsHonored(t *testing.T) {
	articles := []news.Article{
		{Title: "nuclear", BodyText: nuclearStory},
		{Title: "wind", BodyText: windStory},
	}

	if New().Threshold != DefaultThreshold {
		t.Fatalf("New().Threshold = %v, want %v", New().Threshold, DefaultThreshold)
	}
	got := titles((&Clusterer{Threshold: 0}).Cluster(articles))
	want := [][]string{{"nuclear", "wind"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Cluster() with threshold 0 = %v, want %v", got, want)
	}
}

func TestClusterEmptyBodiesAreSingletons(t *testing.T) {
	articles := []news.Article{
		{Title: "X", BodyText: "   "},
		{Title: "A", BodyText: nuclearStory},
		{Title: "Y"},
	}

	got := titles(New().Cluster(articles))
	want := [][]string{{"A"}, {"X"}, {"Y"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Cluster() = %v, want %v", got, want)
	}
}

func TestClusterDegenerate(t *testing.T) {
	c := New()

	if got := c.Cluster(nil); len(got) != 0 {
		t.Errorf("Cluster(nil) = %v, want empty", got)
	}

	single := c.Cluster([]news.Article{{Title: "only", BodyText: windStory}})
	if len(single) != 1 || len(single[0].Articles) != 1 {
		t.Errorf("Cluster(single) = %v, want one singleton", titles(single))
	}

	// bodies that normalize to nothing must not fail the batch
	noTokens := c.Cluster([]news.Article{
		{Title: "p", BodyText: "!!! 123"},
		{Title: "q", BodyText: "... 456"},
	})
	want := [][]string{{"p"}, {"q"}}
	if got := titles(noTokens); !reflect.DeepEqual(got, want) {
		t.Errorf("Cluster(no tokens) = %v, want %v", got, want)
	}
}

func TestVectorizeIdenticalDocuments(t *testing.T) {
	x := Vectorize([]string{"수소 연료전지 수전해", "수소 연료전지 수전해", "태양광 페로브스카이트"}, nil)
	sim := CosineSimilarity(x)

	if v := sim.At(0, 1); v < 0.999 {
		t.Errorf("sim(0,1) = %f, want ~1", v)
	}
	if v := sim.At(0, 2); v != 0 {
		t.Errorf("sim(0,2) = %f, want 0", v)
	}
}

func TestVectorizeStopWords(t *testing.T) {
	x := Vectorize([]string{"the grid", "the turbine"}, func(tok string) bool { return tok == "the" })
	sim := CosineSimilarity(x)
	if v := sim.At(0, 1); v != 0 {
		t.Errorf("sim with shared stop word only = %f, want 0", v)
	}
}
