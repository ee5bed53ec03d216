package predict

import (
	"fmt"

	apperrors "stock-analyzer/internal/errors"
)

// Fold is one forward-chaining split: train on rows [0, TrainEnd) and
// validate on [TrainEnd, ValidEnd).
type Fold struct {
	TrainEnd int
	ValidEnd int
}

// TimeSeriesSplit partitions n time-ordered rows into k folds. With
// t = n/(k+1), fold j trains on [0, n-(k-j)*t) and validates on the next t
// rows, so validation rows always follow their training rows.
func TimeSeriesSplit(n, k int) ([]Fold, error) {
	if k < 2 {
		return nil, apperrors.NewValidationError("folds", k, "need at least 2 folds")
	}
	t := n / (k + 1)
	if t == 0 {
		return nil, apperrors.NewModelError("split", "time series split",
			fmt.Errorf("%d rows are too few for %d folds: %w", n, k, apperrors.ErrDataUnavailable))
	}

	folds := make([]Fold, k)
	for j := 0; j < k; j++ {
		start := n - (k-j)*t
		folds[j] = Fold{TrainEnd: start, ValidEnd: start + t}
	}
	return folds, nil
}
