package cluster

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"gonum.org/v1/gonum/mat"
)

// StopFunc reports whether a token should be left out of the vocabulary.
type StopFunc func(token string) bool

// Vectorize builds an L2-normalized TF-IDF matrix (one row per document)
// over the batch vocabulary. Documents are whitespace-separated token
// strings. Term weights are raw counts times the smoothed idf
// ln((1+n)/(1+df)) + 1. Columns follow the sorted vocabulary, so the result
// is deterministic. A batch with no usable tokens yields an n×1 zero matrix.
func Vectorize(docs []string, stop StopFunc) *mat.Dense {
	n := len(docs)
	if n == 0 {
		return nil
	}

	counts := make([]map[string]float64, n)
	df := make(map[string]int)
	for i, doc := range docs {
		counts[i] = make(map[string]float64)
		for _, tok := range strings.Fields(doc) {
			if utf8.RuneCountInString(tok) < 2 {
				continue
			}
			if stop != nil && stop(tok) {
				continue
			}
			if counts[i][tok] == 0 {
				df[tok]++
			}
			counts[i][tok]++
		}
	}

	vocab := make([]string, 0, len(df))
	for term := range df {
		vocab = append(vocab, term)
	}
	sort.Strings(vocab)

	if len(vocab) == 0 {
		return mat.NewDense(n, 1, nil)
	}

	column := make(map[string]int, len(vocab))
	idf := make([]float64, len(vocab))
	for j, term := range vocab {
		column[term] = j
		idf[j] = math.Log(float64(1+n)/float64(1+df[term])) + 1
	}

	x := mat.NewDense(n, len(vocab), nil)
	for i := range docs {
		for term, tf := range counts[i] {
			j := column[term]
			x.Set(i, j, tf*idf[j])
		}
		normalizeRow(x, i)
	}
	return x
}

func normalizeRow(x *mat.Dense, i int) {
	row := x.RowView(i)
	norm := mat.Norm(row, 2)
	if norm == 0 {
		return
	}
	_, cols := x.Dims()
	for j := 0; j < cols; j++ {
		x.Set(i, j, x.At(i, j)/norm)
	}
}

// CosineSimilarity returns the n×n similarity matrix of the rows of x.
// Rows must already be L2-normalized (as Vectorize produces); zero rows
// have similarity 0 with everything.
func CosineSimilarity(x *mat.Dense) *mat.Dense {
	if x == nil {
		return nil
	}
	n, _ := x.Dims()
	sim := mat.NewDense(n, n, nil)
	sim.Mul(x, x.T())
	return sim
}
