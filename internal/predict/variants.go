package predict

// gbrt is classic least-squares gradient boosting: depth-limited trees split
// on every distinct value, no leaf regularisation.
var gbrtGrid = Grid{
	"n_estimators":     {50, 100},
	"max_depth":        {2, 3},
	"learning_rate":    {0.1},
	"min_samples_leaf": {3},
}

func newGBRT(p Params) Regressor {
	return newBooster(boostConfig{
		nEstimators:  p.Int("n_estimators", 100),
		learningRate: p.Get("learning_rate", 0.1),
		tree: treeParams{
			maxDepth:       p.Int("max_depth", 3),
			minSamplesLeaf: p.Int("min_samples_leaf", 1),
		},
	})
}

// xgboost uses second-order leaf weights with an L2 penalty lambda, a
// minimum split gain gamma and a minimum child hessian weight.
var xgboostGrid = Grid{
	"n_estimators":     {50, 100},
	"max_depth":        {3},
	"learning_rate":    {0.05, 0.1},
	"lambda":           {1},
	"gamma":            {0},
	"min_child_weight": {1},
}

func newXGBoost(p Params) Regressor {
	return newBooster(boostConfig{
		nEstimators:  p.Int("n_estimators", 100),
		learningRate: p.Get("learning_rate", 0.3),
		tree: treeParams{
			maxDepth:       p.Int("max_depth", 6),
			minChildWeight: p.Get("min_child_weight", 1),
			lambda:         p.Get("lambda", 1),
			gamma:          p.Get("gamma", 0),
		},
	})
}

// lightgbm grows trees leaf-wise up to num_leaves on quantile histogram bins.
var lightgbmGrid = Grid{
	"n_estimators":     {50, 100},
	"num_leaves":       {7, 15},
	"learning_rate":    {0.1},
	"max_bin":          {32},
	"min_data_in_leaf": {3},
}

func newLightGBM(p Params) Regressor {
	return newBooster(boostConfig{
		nEstimators:  p.Int("n_estimators", 100),
		learningRate: p.Get("learning_rate", 0.1),
		maxBins:      p.Int("max_bin", 255),
		tree: treeParams{
			maxDepth:       p.Int("max_depth", -1),
			maxLeaves:      p.Int("num_leaves", 31),
			minSamplesLeaf: p.Int("min_data_in_leaf", 20),
			lambda:         p.Get("lambda_l2", 0),
		},
	})
}
