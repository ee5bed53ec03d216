package predict

import (
	"math"
	"sort"
)

// treeParams controls the growth of one regression tree fitted to
// gradient/hessian statistics.
type treeParams struct {
	maxDepth       int     // <= 0 means unlimited
	maxLeaves      int     // <= 0 means unlimited (depth-wise growth)
	minSamplesLeaf int     // minimum rows per leaf
	minChildWeight float64 // minimum hessian sum per leaf
	lambda         float64 // L2 penalty on leaf values
	gamma          float64 // minimum gain required to split
}

// binner maps one feature's values to ordered bins. edges are ascending
// split thresholds: a value falls in bin b when edges[b-1] < v <= edges[b].
type binner struct {
	edges []float64
}

// newBinner builds thresholds from the distinct values of col. With
// maxBins <= 0, or when there are no more distinct values than maxBins, every
// midpoint between neighbouring values is a threshold; otherwise thresholds
// are taken at quantile positions.
func newBinner(col []float64, maxBins int) binner {
	distinct := append([]float64(nil), col...)
	sort.Float64s(distinct)
	w := 0
	for i, v := range distinct {
		if i == 0 || v != distinct[w-1] {
			distinct[w] = v
			w++
		}
	}
	distinct = distinct[:w]

	m := len(distinct)
	if m < 2 {
		return binner{}
	}

	var edges []float64
	if maxBins <= 0 || m <= maxBins {
		edges = make([]float64, 0, m-1)
		for i := 1; i < m; i++ {
			edges = append(edges, (distinct[i-1]+distinct[i])/2)
		}
		return binner{edges: edges}
	}

	for k := 1; k < maxBins; k++ {
		pos := k * m / maxBins
		if pos <= 0 || pos >= m {
			continue
		}
		e := (distinct[pos-1] + distinct[pos]) / 2
		if len(edges) == 0 || e > edges[len(edges)-1] {
			edges = append(edges, e)
		}
	}
	return binner{edges: edges}
}

func (b binner) bin(v float64) int {
	return sort.SearchFloat64s(b.edges, v)
}

func (b binner) bins() int {
	return len(b.edges) + 1
}

// binnedMatrix holds per-feature bin indices for every row.
type binnedMatrix struct {
	binners []binner
	index   [][]int // index[f][row]
}

func newBinnedMatrix(X [][]float64, maxBins int) binnedMatrix {
	nf := 0
	if len(X) > 0 {
		nf = len(X[0])
	}
	bm := binnedMatrix{binners: make([]binner, nf), index: make([][]int, nf)}
	col := make([]float64, len(X))
	for f := 0; f < nf; f++ {
		for i, row := range X {
			col[i] = row[f]
		}
		bm.binners[f] = newBinner(col, maxBins)
		idx := make([]int, len(X))
		for i, v := range col {
			idx[i] = bm.binners[f].bin(v)
		}
		bm.index[f] = idx
	}
	return bm
}

type treeNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      int
	right     int
}

// regressionTree is a binary tree stored as a flat node slice; node 0 is the root.
type regressionTree struct {
	nodes []treeNode
}

func (t *regressionTree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.nodes[i]
		if n.leaf {
			return n.value
		}
		if x[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

type splitCandidate struct {
	gain      float64
	feature   int
	bin       int
	threshold float64
}

type growLeaf struct {
	node  int
	rows  []int
	depth int
	best  splitCandidate
	ok    bool
}

// growTree fits one tree to the gradient statistics of rows. Candidate leaves
// are split in order of decreasing gain until maxLeaves is reached or no
// split clears gamma, so an unlimited leaf budget gives depth-wise growth.
func growTree(bm binnedMatrix, grad, hess []float64, rows []int, p treeParams) *regressionTree {
	t := &regressionTree{}
	t.nodes = append(t.nodes, treeNode{leaf: true, value: leafValue(grad, hess, rows, p.lambda)})

	root := growLeaf{node: 0, rows: rows, depth: 0}
	root.best, root.ok = bestSplit(bm, grad, hess, rows, p)
	open := []growLeaf{root}
	leaves := 1

	for len(open) > 0 {
		if p.maxLeaves > 0 && leaves >= p.maxLeaves {
			break
		}

		// pick the open leaf with the largest gain; ties go to the earliest
		pick := -1
		for i, l := range open {
			if !l.ok {
				continue
			}
			if pick < 0 || l.best.gain > open[pick].best.gain {
				pick = i
			}
		}
		if pick < 0 {
			break
		}
		l := open[pick]
		open = append(open[:pick], open[pick+1:]...)

		leftRows, rightRows := partition(bm, l.rows, l.best)
		leftID := len(t.nodes)
		t.nodes = append(t.nodes,
			treeNode{leaf: true, value: leafValue(grad, hess, leftRows, p.lambda)},
			treeNode{leaf: true, value: leafValue(grad, hess, rightRows, p.lambda)},
		)
		t.nodes[l.node] = treeNode{
			feature:   l.best.feature,
			threshold: l.best.threshold,
			left:      leftID,
			right:     leftID + 1,
		}
		leaves++

		for k, childRows := range [][]int{leftRows, rightRows} {
			child := growLeaf{node: leftID + k, rows: childRows, depth: l.depth + 1}
			if p.maxDepth <= 0 || child.depth < p.maxDepth {
				child.best, child.ok = bestSplit(bm, grad, hess, childRows, p)
			}
			open = append(open, child)
		}
	}

	return t
}

func partition(bm binnedMatrix, rows []int, s splitCandidate) (left, right []int) {
	idx := bm.index[s.feature]
	for _, r := range rows {
		if idx[r] <= s.bin {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return left, right
}

// leafValue is the Newton step -G/(H+lambda).
func leafValue(grad, hess []float64, rows []int, lambda float64) float64 {
	var g, h float64
	for _, r := range rows {
		g += grad[r]
		h += hess[r]
	}
	if h+lambda == 0 {
		return 0
	}
	return -g / (h + lambda)
}

func score(g, h, lambda float64) float64 {
	if h+lambda == 0 {
		return 0
	}
	return g * g / (h + lambda)
}

// bestSplit scans the histogram of every feature for the split with the
// largest gain 0.5*(GL^2/(HL+l) + GR^2/(HR+l) - G^2/(H+l)) - gamma.
func bestSplit(bm binnedMatrix, grad, hess []float64, rows []int, p treeParams) (splitCandidate, bool) {
	minLeaf := p.minSamplesLeaf
	if minLeaf < 1 {
		minLeaf = 1
	}
	if len(rows) < 2*minLeaf {
		return splitCandidate{}, false
	}

	var gTotal, hTotal float64
	for _, r := range rows {
		gTotal += grad[r]
		hTotal += hess[r]
	}
	parent := score(gTotal, hTotal, p.lambda)

	best := splitCandidate{gain: math.Inf(-1)}
	found := false

	for f, b := range bm.binners {
		nb := b.bins()
		if nb < 2 {
			continue
		}
		gHist := make([]float64, nb)
		hHist := make([]float64, nb)
		cHist := make([]int, nb)
		idx := bm.index[f]
		for _, r := range rows {
			gHist[idx[r]] += grad[r]
			hHist[idx[r]] += hess[r]
			cHist[idx[r]]++
		}

		var gl, hl float64
		cl := 0
		for bin := 0; bin < nb-1; bin++ {
			gl += gHist[bin]
			hl += hHist[bin]
			cl += cHist[bin]
			cr := len(rows) - cl
			if cl < minLeaf {
				continue
			}
			if cr < minLeaf {
				break
			}
			hr := hTotal - hl
			if hl < p.minChildWeight || hr < p.minChildWeight {
				continue
			}
			gain := 0.5*(score(gl, hl, p.lambda)+score(gTotal-gl, hr, p.lambda)-parent) - p.gamma
			if gain > best.gain+1e-12 {
				best = splitCandidate{gain: gain, feature: f, bin: bin, threshold: b.edges[bin]}
				found = true
			}
		}
	}

	if !found || best.gain <= 0 {
		return splitCandidate{}, false
	}
	return best, true
}
