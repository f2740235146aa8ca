package ml

import (
	"context"
	"math"
	"math/rand"
)

// ForestConfig holds random forest hyperparameters.
type ForestConfig struct {
	Trees           int
	MaxDepth        int
	MinSamplesSplit int
	Seed            int64
}

// DefaultForestConfig returns the default hyperparameters.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:           100,
		MaxDepth:        10,
		MinSamplesSplit: 5,
		Seed:            42,
	}
}

// Forest is a bagged ensemble of CART trees.
type Forest struct {
	Trees    []Tree
	NClasses int
}

// TrainForest fits a forest on rows x with class indices y. Each tree sees a
// bootstrap sample and considers sqrt(n_features) features per split.
func TrainForest(ctx context.Context, x [][]float64, y []int, nClasses int, cfg ForestConfig) (*Forest, error) {
	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // deterministic training, not security sensitive

	maxFeatures := int(math.Sqrt(float64(len(x[0]))))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	forest := &Forest{NClasses: nClasses, Trees: make([]Tree, 0, cfg.Trees)}
	for t := 0; t < cfg.Trees; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sample := make([]int, len(x))
		for i := range sample {
			sample[i] = rng.Intn(len(x))
		}

		b := &treeBuilder{
			rng:         rng,
			x:           x,
			y:           y,
			nClasses:    nClasses,
			maxDepth:    cfg.MaxDepth,
			minSplit:    cfg.MinSamplesSplit,
			maxFeatures: maxFeatures,
		}
		b.build(sample, 0)
		forest.Trees = append(forest.Trees, Tree{Nodes: b.nodes})
	}

	return forest, nil
}

// PredictProba averages the leaf distributions of every tree.
func (f *Forest) PredictProba(x []float64) []float64 {
	proba := make([]float64, f.NClasses)
	if len(f.Trees) == 0 {
		return proba
	}
	for i := range f.Trees {
		for c, p := range f.Trees[i].Proba(x) {
			proba[c] += p
		}
	}
	for c := range proba {
		proba[c] /= float64(len(f.Trees))
	}
	return proba
}

// Predict returns the most probable class and its probability. Ties go to
// the lower class index.
func (f *Forest) Predict(x []float64) (int, float64) {
	proba := f.PredictProba(x)
	if len(proba) == 0 {
		return -1, 0
	}
	best := 0
	for c := 1; c < len(proba); c++ {
		if proba[c] > proba[best] {
			best = c
		}
	}
	return best, proba[best]
}
