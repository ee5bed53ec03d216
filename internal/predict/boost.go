package predict

import (
	"errors"
	"fmt"
	"math"
)

var (
	errNotFitted     = errors.New("regressor not fitted")
	errShapeMismatch = errors.New("feature shape mismatch")
)

// boostConfig is shared by every boosted-tree variant.
type boostConfig struct {
	nEstimators  int
	learningRate float64
	maxBins      int // <= 0 uses every distinct value as a split point
	tree         treeParams
}

// booster fits an additive model of regression trees to squared error,
// F_m = F_{m-1} + eta * tree_m, where each tree is grown on the gradient
// (F - y) and unit hessians of the current fit.
type booster struct {
	cfg      boostConfig
	base     float64
	trees    []*regressionTree
	features int
}

func newBooster(cfg boostConfig) *booster {
	return &booster{cfg: cfg}
}

func (b *booster) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return fmt.Errorf("fit on empty matrix: %w", errShapeMismatch)
	}
	if len(X) != len(y) {
		return fmt.Errorf("%d rows but %d targets: %w", len(X), len(y), errShapeMismatch)
	}
	nf := len(X[0])
	for i, row := range X {
		if len(row) != nf {
			return fmt.Errorf("row %d has %d features, want %d: %w", i, len(row), nf, errShapeMismatch)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("row %d has a non-finite feature", i)
			}
		}
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("target %d is not finite", i)
		}
	}
	if b.cfg.nEstimators <= 0 || !(b.cfg.learningRate > 0) {
		return fmt.Errorf("n_estimators %d and learning_rate %g must be positive", b.cfg.nEstimators, b.cfg.learningRate)
	}

	bm := newBinnedMatrix(X, b.cfg.maxBins)
	rows := make([]int, len(X))
	for i := range rows {
		rows[i] = i
	}

	var sum float64
	for _, v := range y {
		sum += v
	}
	b.base = sum / float64(len(y))
	b.features = nf
	b.trees = b.trees[:0]

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = b.base
	}
	grad := make([]float64, len(y))
	hess := make([]float64, len(y))
	for i := range hess {
		hess[i] = 1
	}

	for m := 0; m < b.cfg.nEstimators; m++ {
		for i := range grad {
			grad[i] = pred[i] - y[i]
		}
		t := growTree(bm, grad, hess, rows, b.cfg.tree)
		for i := range t.nodes {
			if t.nodes[i].leaf {
				t.nodes[i].value *= b.cfg.learningRate
			}
		}
		b.trees = append(b.trees, t)
		for i, row := range X {
			pred[i] += t.predict(row)
		}
	}

	return nil
}

func (b *booster) Predict(X [][]float64) ([]float64, error) {
	if b.features == 0 {
		return nil, errNotFitted
	}
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != b.features {
			return nil, fmt.Errorf("row %d has %d features, want %d: %w", i, len(row), b.features, errShapeMismatch)
		}
		v := b.base
		for _, t := range b.trees {
			v += t.predict(row)
		}
		out[i] = v
	}
	return out, nil
}
