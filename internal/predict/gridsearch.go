package predict

import (
	"context"
	"fmt"
	"math"

	apperrors "stock-analyzer/internal/errors"
)

// SearchResult is the winning configuration of a grid search.
type SearchResult struct {
	Params Params
	// Score is the mean validation MSE across folds.
	Score float64
	// OOF holds the out-of-fold predictions of the winning configuration
	// for rows OOFRows, in fold order.
	OOF     []float64
	OOFRows []int
}

// GridSearch evaluates every configuration of spec.Grid on the folds and
// returns the one with the lowest mean validation MSE. Configurations that
// fail to fit are skipped; if none succeeds the search fails.
func GridSearch(ctx context.Context, spec Spec, X [][]float64, y []float64, folds []Fold) (SearchResult, error) {
	configs := spec.Grid.Expand()
	best := SearchResult{Score: math.Inf(1)}
	var lastErr error

	for _, params := range configs {
		if err := ctx.Err(); err != nil {
			return SearchResult{}, err
		}
		res, err := crossValidate(spec, params, X, y, folds)
		if err != nil {
			lastErr = err
			continue
		}
		if res.Score < best.Score {
			best = res
		}
	}

	if best.Params == nil {
		if lastErr == nil {
			lastErr = fmt.Errorf("empty grid")
		}
		return SearchResult{}, apperrors.NewModelError(spec.Name, "grid search",
			fmt.Errorf("no valid configuration: %w", lastErr))
	}
	return best, nil
}

func crossValidate(spec Spec, params Params, X [][]float64, y []float64, folds []Fold) (SearchResult, error) {
	res := SearchResult{Params: params}
	var mseSum float64

	for _, f := range folds {
		model := spec.New(params)
		if err := model.Fit(X[:f.TrainEnd], y[:f.TrainEnd]); err != nil {
			return SearchResult{}, err
		}
		pred, err := model.Predict(X[f.TrainEnd:f.ValidEnd])
		if err != nil {
			return SearchResult{}, err
		}

		var se float64
		for i, p := range pred {
			row := f.TrainEnd + i
			d := p - y[row]
			se += d * d
			res.OOF = append(res.OOF, p)
			res.OOFRows = append(res.OOFRows, row)
		}
		mseSum += se / float64(len(pred))
	}

	res.Score = mseSum / float64(len(folds))
	if math.IsNaN(res.Score) || math.IsInf(res.Score, 0) {
		return SearchResult{}, fmt.Errorf("configuration %s produced a non-finite score", params)
	}
	return res, nil
}
