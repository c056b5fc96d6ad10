package features

import (
	"math"
	"regexp"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// termPattern selects TF-IDF terms: runs of two or more word characters.
var termPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// tfidfVectors builds L2-normalised TF-IDF vectors for docs over their joint
// vocabulary, with smoothed idf = ln((1+n)/(1+df)) + 1. It returns nil when
// the vocabulary is empty.
func tfidfVectors(docs []string) [][]float64 {
	vocab := make(map[string]int)
	termCounts := make([]map[int]int, len(docs))
	for i, doc := range docs {
		termCounts[i] = make(map[int]int)
		for _, term := range termPattern.FindAllString(strings.ToLower(doc), -1) {
			id, ok := vocab[term]
			if !ok {
				id = len(vocab)
				vocab[term] = id
			}
			termCounts[i][id]++
		}
	}
	if len(vocab) == 0 {
		return nil
	}

	df := make([]float64, len(vocab))
	for _, counts := range termCounts {
		for id := range counts {
			df[id]++
		}
	}
	n := float64(len(docs))
	idf := make([]float64, len(vocab))
	for id, d := range df {
		idf[id] = math.Log((1+n)/(1+d)) + 1
	}

	vectors := make([][]float64, len(docs))
	for i, counts := range termCounts {
		v := make([]float64, len(vocab))
		for id, c := range counts {
			v[id] = float64(c) * idf[id]
		}
		if norm := floats.Norm(v, 2); norm > 0 {
			floats.Scale(1/norm, v)
		}
		vectors[i] = v
	}
	return vectors
}

// MaxContentSimilarity returns the largest cosine similarity between any two
// distinct documents. Fewer than two documents, or no usable vocabulary,
// yields 0.
func MaxContentSimilarity(docs []string) float64 {
	if len(docs) < 2 {
		return 0
	}
	vectors := tfidfVectors(docs)
	if vectors == nil {
		return 0
	}
	best := math.Inf(-1)
	for i := 0; i < len(vectors); i++ {
		for j := i + 1; j < len(vectors); j++ {
			best = math.Max(best, floats.Dot(vectors[i], vectors[j]))
		}
	}
	return math.Min(best, 1)
}
