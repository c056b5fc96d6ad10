package classifier

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// node is a decision tree node. Leaves have feature == -1 and carry the class
// distribution of the training rows that reached them.
type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	dist      []float64
}

// decisionTree is a CART tree using the entropy criterion. Rows with
// x[feature] <= threshold go left.
type decisionTree struct {
	nodes []node
}

func (t *decisionTree) leaf(row []float64) []float64 {
	n := &t.nodes[0]
	for n.feature >= 0 {
		if row[n.feature] <= n.threshold {
			n = &t.nodes[n.left]
		} else {
			n = &t.nodes[n.right]
		}
	}
	return n.dist
}

func (t *decisionTree) depth() int {
	var walk func(id int) int
	walk = func(id int) int {
		n := t.nodes[id]
		if n.feature < 0 {
			return 0
		}
		return 1 + max(walk(n.left), walk(n.right))
	}
	return walk(0)
}

type treeParams struct {
	maxDepth        int // <= 0 means unlimited
	maxFeatures     int
	minSamplesSplit int
	minSamplesLeaf  int
}

// treeBuilder grows one tree over a (possibly bootstrapped) set of row
// indices. Labels are class indices.
type treeBuilder struct {
	x        [][]float64
	y        []int
	nClasses int
	params   treeParams
	rng      *rand.Rand

	nodes []node
	probs []float64
}

func growTree(x [][]float64, y []int, nClasses int, rows []int, params treeParams, rng *rand.Rand) *decisionTree {
	b := &treeBuilder{
		x:        x,
		y:        y,
		nClasses: nClasses,
		params:   params,
		rng:      rng,
		probs:    make([]float64, nClasses),
	}
	b.build(rows, 0)
	return &decisionTree{nodes: b.nodes}
}

func (b *treeBuilder) build(rows []int, depth int) int {
	counts := b.classCounts(rows)
	id := len(b.nodes)
	b.nodes = append(b.nodes, node{feature: -1})

	if (b.params.maxDepth > 0 && depth >= b.params.maxDepth) ||
		len(rows) < b.params.minSamplesSplit || pure(counts) {
		b.nodes[id].dist = distribution(counts, len(rows))
		return id
	}

	feature, threshold, ok := b.bestSplit(rows, counts)
	if !ok {
		b.nodes[id].dist = distribution(counts, len(rows))
		return id
	}

	var left, right []int
	for _, r := range rows {
		if b.x[r][feature] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[id] = node{feature: feature, threshold: threshold, left: l, right: r}
	return id
}

// bestSplit searches a random subset of maxFeatures features for the
// threshold minimising weighted child entropy. If none of them admits a valid
// split the search continues through the remaining features.
func (b *treeBuilder) bestSplit(rows []int, counts []int) (int, float64, bool) {
	width := len(b.x[rows[0]])
	features := b.rng.Perm(width)

	bestImpurity := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0

	sorted := make([]int, len(rows))
	leftCounts := make([]int, b.nClasses)
	rightCounts := make([]int, b.nClasses)

	for visited, f := range features {
		if visited >= b.params.maxFeatures && bestFeature >= 0 {
			break
		}
		copy(sorted, rows)
		sort.Slice(sorted, func(i, j int) bool { return b.x[sorted[i]][f] < b.x[sorted[j]][f] })

		clear(leftCounts)
		copy(rightCounts, counts)
		n := len(sorted)
		for pos := 0; pos < n-1; pos++ {
			c := b.y[sorted[pos]]
			leftCounts[c]++
			rightCounts[c]--

			lo, hi := b.x[sorted[pos]][f], b.x[sorted[pos+1]][f]
			if lo == hi {
				continue
			}
			nLeft, nRight := pos+1, n-pos-1
			if nLeft < b.params.minSamplesLeaf || nRight < b.params.minSamplesLeaf {
				continue
			}
			impurity := float64(nLeft)*b.entropy(leftCounts, nLeft) + float64(nRight)*b.entropy(rightCounts, nRight)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold >= hi {
					bestThreshold = lo
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func (b *treeBuilder) entropy(counts []int, n int) float64 {
	for k, c := range counts {
		b.probs[k] = float64(c) / float64(n)
	}
	return stat.Entropy(b.probs)
}

func (b *treeBuilder) classCounts(rows []int) []int {
	counts := make([]int, b.nClasses)
	for _, r := range rows {
		counts[b.y[r]]++
	}
	return counts
}

func pure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func distribution(counts []int, n int) []float64 {
	dist := make([]float64, len(counts))
	for k, c := range counts {
		dist[k] = float64(c) / float64(n)
	}
	return dist
}
