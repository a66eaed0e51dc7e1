// Package cluster partitions a topic's articles into near-duplicate groups.
package cluster

import (
	"gonum.org/v1/gonum/mat"

	"github.com/deusflow/newsbrief/internal/news"
	"github.com/deusflow/newsbrief/internal/textnorm"
)

// DefaultThreshold is the inclusive similarity-to-seed cutoff.
const DefaultThreshold = 0.6

// Clusterer groups articles by TF-IDF cosine similarity to a seed article.
// The zero value has threshold 0, which merges every article with text into
// one cluster; use New for the default cutoff.
type Clusterer struct {
	Threshold float64
	Normalize func(string) string
	Stop      StopFunc
}

// New returns a Clusterer with the default normalizer, stop list and threshold.
func New() *Clusterer {
	return &Clusterer{
		Threshold: DefaultThreshold,
		Normalize: textnorm.Normalize,
		Stop:      textnorm.IsStopWord,
	}
}

// Cluster returns the ordered clusters for articles. Articles with body text
// are grouped first, in seed order; every article without text follows as
// its own singleton, in original order.
func (c *Clusterer) Cluster(articles []news.Article) []news.Cluster {
	var withText, without []news.Article
	for _, a := range articles {
		if a.HasText() {
			withText = append(withText, a)
		} else {
			without = append(without, a)
		}
	}

	clusters := make([]news.Cluster, 0, len(articles))
	if len(withText) > 0 {
		normalize := c.Normalize
		if normalize == nil {
			normalize = textnorm.Normalize
		}
		docs := make([]string, len(withText))
		for i, a := range withText {
			docs[i] = normalize(a.BodyText)
		}

		sim := CosineSimilarity(Vectorize(docs, c.Stop))
		for _, idx := range Group(sim, c.Threshold) {
			members := make([]news.Article, len(idx))
			for k, i := range idx {
				members[k] = withText[i]
			}
			clusters = append(clusters, news.Cluster{Articles: members})
		}
	}

	for _, a := range without {
		clusters = append(clusters, news.Cluster{Articles: []news.Article{a}})
	}
	return clusters
}

// Group performs greedy seed grouping over a square similarity matrix.
// Each unassigned index opens a group; every later unassigned index whose
// similarity to that seed is >= threshold joins it. Grouping is not
// transitive: members are compared with the seed only.
func Group(sim mat.Matrix, threshold float64) [][]int {
	if sim == nil {
		return nil
	}
	n, _ := sim.Dims()
	assigned := make([]bool, n)
	var groups [][]int

	for i := 0; i < n; i++ {
		if assigned[i] {
			continue
		}
		group := []int{i}
		assigned[i] = true
		for j := i + 1; j < n; j++ {
			if !assigned[j] && sim.At(i, j) >= threshold {
				group = append(group, j)
				assigned[j] = true
			}
		}
		groups = append(groups, group)
	}
	return groups
}
