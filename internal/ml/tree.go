package ml

import (
	"math/rand"
	"sort"
)

const leafFeature = -1

// Node is one node of a flattened decision tree. Leaves have Feature -1
// and carry the class distribution of their training samples.
type Node struct {
	Dist      []float64 `json:"dist,omitempty"`
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      int       `json:"left,omitempty"`
	Right     int       `json:"right,omitempty"`
}

// Tree is a CART classification tree stored as a flat node array rooted at 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Proba walks the tree and returns the leaf distribution for x.
func (t *Tree) Proba(x []float64) []float64 {
	i := 0
	for {
		node := &t.Nodes[i]
		if node.Feature == leafFeature {
			return node.Dist
		}
		if x[node.Feature] <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
}

type treeBuilder struct {
	rng         *rand.Rand
	x           [][]float64
	y           []int
	nodes       []Node
	nClasses    int
	maxDepth    int
	minSplit    int
	maxFeatures int
}

func (b *treeBuilder) build(samples []int, depth int) int {
	dist, pure := b.distribution(samples)
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: leafFeature, Dist: dist})

	if pure || depth >= b.maxDepth || len(samples) < b.minSplit {
		return id
	}

	feature, threshold, ok := b.bestSplit(samples, gini(dist))
	if !ok {
		return id
	}

	var left, right []int
	for _, s := range samples {
		if b.x[s][feature] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	leftID := b.build(left, depth+1)
	rightID := b.build(right, depth+1)
	b.nodes[id] = Node{Feature: feature, Threshold: threshold, Left: leftID, Right: rightID}
	return id
}

func (b *treeBuilder) distribution(samples []int) ([]float64, bool) {
	dist := make([]float64, b.nClasses)
	for _, s := range samples {
		dist[b.y[s]]++
	}
	classes := 0
	for i := range dist {
		if dist[i] > 0 {
			classes++
		}
		dist[i] /= float64(len(samples))
	}
	return dist, classes <= 1
}

func gini(dist []float64) float64 {
	impurity := 1.0
	for _, p := range dist {
		impurity -= p * p
	}
	return impurity
}

type featureValue struct {
	value float64
	label int
}

// bestSplit draws features at random until maxFeatures non-constant ones
// have been evaluated, and returns the split with the lowest weighted Gini.
func (b *treeBuilder) bestSplit(samples []int, parentImpurity float64) (int, float64, bool) {
	nFeatures := len(b.x[0])
	values := make([]featureValue, len(samples))
	leftCounts := make([]float64, b.nClasses)
	rightCounts := make([]float64, b.nClasses)

	bestFeature, bestThreshold := -1, 0.0
	bestImpurity := parentImpurity
	evaluated := 0

	for _, f := range b.rng.Perm(nFeatures) {
		if evaluated >= b.maxFeatures {
			break
		}

		for i, s := range samples {
			values[i] = featureValue{value: b.x[s][f], label: b.y[s]}
		}
		sort.Slice(values, func(i, j int) bool { return values[i].value < values[j].value })
		if values[0].value == values[len(values)-1].value {
			continue
		}
		evaluated++

		for c := range leftCounts {
			leftCounts[c] = 0
			rightCounts[c] = 0
		}
		for _, v := range values {
			rightCounts[v.label]++
		}

		n := float64(len(values))
		for i := 0; i < len(values)-1; i++ {
			leftCounts[values[i].label]++
			rightCounts[values[i].label]--
			if values[i].value == values[i+1].value {
				continue
			}

			nLeft := float64(i + 1)
			nRight := n - nLeft
			impurity := (nLeft*countGini(leftCounts, nLeft) + nRight*countGini(rightCounts, nRight)) / n
			if impurity < bestImpurity-1e-12 {
				bestImpurity = impurity
				bestFeature = f
				bestThreshold = (values[i].value + values[i+1].value) / 2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature != -1
}

func countGini(counts []float64, total float64) float64 {
	impurity := 1.0
	for _, c := range counts {
		p := c / total
		impurity -= p * p
	}
	return impurity
}
