package detection

import (
	"math"
	"sort"
)

// stump is a depth-one regression tree on a single feature.
type stump struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      float64 `json:"left"`
	Right     float64 `json:"right"`
}

func (s stump) predict(x []float64) float64 {
	if s.Feature < len(x) && x[s.Feature] <= s.Threshold {
		return s.Left
	}
	return s.Right
}

// GradientBoosting fits decision stumps to the log-loss gradient.
type GradientBoosting struct {
	Rounds       int     `json:"rounds"`
	LearningRate float64 `json:"learning_rate"`
	Bins         int     `json:"bins"`
	Init         float64 `json:"init"`
	Stumps       []stump `json:"stumps"`
}

func NewGradientBoosting() *GradientBoosting {
	return &GradientBoosting{Rounds: 60, LearningRate: 0.1, Bins: 16}
}

func (m *GradientBoosting) Name() string { return ModelGradientBoosting }

func (m *GradientBoosting) Fit(X [][]float64, y []int) error {
	if err := checkShape(X, y); err != nil {
		return err
	}
	n := len(X)
	var pos float64
	for _, v := range y {
		pos += float64(v)
	}
	p := clamp(pos/float64(n), 1e-6, 1-1e-6)
	m.Init = math.Log(p / (1 - p))
	m.Stumps = m.Stumps[:0]

	thresholds := candidateThresholds(X, m.Bins)
	F := make([]float64, n)
	for i := range F {
		F[i] = m.Init
	}
	grad := make([]float64, n)
	hess := make([]float64, n)

	for round := 0; round < m.Rounds; round++ {
		for i := range X {
			pi := sigmoid(F[i])
			grad[i] = float64(y[i]) - pi
			hess[i] = pi * (1 - pi)
		}
		best, ok := bestStump(X, grad, hess, thresholds)
		if !ok {
			break
		}
		best.Left *= m.LearningRate
		best.Right *= m.LearningRate
		m.Stumps = append(m.Stumps, best)
		for i, row := range X {
			F[i] += best.predict(row)
		}
	}
	return nil
}

func (m *GradientBoosting) PredictProba(x []float64) float64 {
	f := m.Init
	for _, s := range m.Stumps {
		f += s.predict(x)
	}
	return sigmoid(f)
}

// candidateThresholds returns per-feature quantile split points.
func candidateThresholds(X [][]float64, bins int) [][]float64 {
	cols := len(X[0])
	out := make([][]float64, cols)
	col := make([]float64, len(X))
	for j := 0; j < cols; j++ {
		for i, row := range X {
			col[i] = row[j]
		}
		sorted := append([]float64(nil), col...)
		sort.Float64s(sorted)
		var ts []float64
		for b := 1; b < bins; b++ {
			v := sorted[b*len(sorted)/bins]
			if len(ts) == 0 || v != ts[len(ts)-1] {
				ts = append(ts, v)
			}
		}
		out[j] = ts
	}
	return out
}

// bestStump picks the split with the largest Newton gain.
func bestStump(X [][]float64, grad, hess []float64, thresholds [][]float64) (stump, bool) {
	const lambda = 1.0
	var gTotal, hTotal float64
	for i := range grad {
		gTotal += grad[i]
		hTotal += hess[i]
	}
	base := gTotal * gTotal / (hTotal + lambda)

	var best stump
	bestGain := 1e-9
	found := false
	for j, ts := range thresholds {
		for _, t := range ts {
			var gl, hl float64
			for i, row := range X {
				if row[j] <= t {
					gl += grad[i]
					hl += hess[i]
				}
			}
			gr, hr := gTotal-gl, hTotal-hl
			if hl == 0 || hr == 0 {
				continue
			}
			gain := gl*gl/(hl+lambda) + gr*gr/(hr+lambda) - base
			if gain > bestGain {
				bestGain = gain
				best = stump{Feature: j, Threshold: t, Left: gl / (hl + lambda), Right: gr / (hr + lambda)}
				found = true
			}
		}
	}
	return best, found
}
