// Package predict implements the ensemble price predictor: feature
// engineering, forward-chaining cross validation, grid search over boosted
// tree regressors and confidence-weighted blending.
package predict

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Regressor is any model that can be fitted to a feature matrix and target.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) ([]float64, error)
}

// Params is one hyperparameter configuration.
type Params map[string]float64

// Get returns p[key] or def when the key is missing.
func (p Params) Get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Int returns p[key] rounded to an int, or def.
func (p Params) Int(key string, def int) int {
	if v, ok := p[key]; ok {
		return int(math.Round(v))
	}
	return def
}

func (p Params) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.FormatFloat(p[k], 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// Grid lists candidate values per hyperparameter.
type Grid map[string][]float64

// Expand returns the cartesian product of the grid in a deterministic order:
// keys sorted, later keys varying fastest.
func (g Grid) Expand() []Params {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []Params{{}}
	for _, k := range keys {
		var next []Params
		for _, base := range out {
			for _, v := range g[k] {
				p := make(Params, len(base)+1)
				for bk, bv := range base {
					p[bk] = bv
				}
				p[k] = v
				next = append(next, p)
			}
		}
		out = next
	}
	return out
}

// Factory builds an unfitted regressor from a configuration.
type Factory func(Params) Regressor

// Spec describes a registered model slot.
type Spec struct {
	Name string
	New  Factory
	Grid Grid
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Spec{}
	order      []string
)

// Register adds a regressor under name. Registering a name twice replaces
// the earlier entry but keeps its position.
func Register(name string, factory Factory, grid Grid) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; !exists {
		order = append(order, name)
	}
	registry[name] = Spec{Name: name, New: factory, Grid: grid}
}

// Lookup returns the spec registered under name.
func Lookup(name string) (Spec, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	spec, ok := registry[name]
	if !ok {
		return Spec{}, fmt.Errorf("unknown regressor %q", name)
	}
	return spec, nil
}

// Names returns registered regressor names in registration order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return append([]string(nil), order...)
}

func init() {
	Register("gbrt", newGBRT, gbrtGrid)
	Register("xgboost", newXGBoost, xgboostGrid)
	Register("lightgbm", newLightGBM, lightgbmGrid)
}
