package detection

import (
	"math"
	"sort"
)

// AnomalyDetector scores distance from the legitimate population. It is fitted
// on label-0 rows only; the score at the contamination quantile maps to 0.5.
type AnomalyDetector struct {
	Contamination float64   `json:"contamination"`
	Mean          []float64 `json:"mean"`
	Std           []float64 `json:"std"`
	Cutoff        float64   `json:"cutoff"`
	Scale         float64   `json:"scale"`
}

func NewAnomalyDetector() *AnomalyDetector {
	return &AnomalyDetector{Contamination: 0.1}
}

func (m *AnomalyDetector) Name() string { return ModelAnomaly }

func (m *AnomalyDetector) Fit(X [][]float64, y []int) error {
	if err := checkShape(X, y); err != nil {
		return err
	}
	var legit [][]float64
	for i, row := range X {
		if y[i] == 0 {
			legit = append(legit, row)
		}
	}
	if len(legit) == 0 {
		return ErrSingleClass
	}
	s := FitScaler(legit)
	m.Mean, m.Std = s.Mean, s.Std

	scores := make([]float64, len(legit))
	for i, row := range legit {
		scores[i] = m.score(row)
	}
	sort.Float64s(scores)
	idx := int(float64(len(scores)) * (1 - m.Contamination))
	if idx >= len(scores) {
		idx = len(scores) - 1
	}
	m.Cutoff = scores[idx]
	m.Scale = math.Max(stddev(scores), 1e-6)
	return nil
}

// score is the root mean squared z-score of x.
func (m *AnomalyDetector) score(x []float64) float64 {
	var sum float64
	var n int
	for j, v := range x {
		if j >= len(m.Mean) {
			break
		}
		z := (v - m.Mean[j]) / m.Std[j]
		sum += z * z
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}

func (m *AnomalyDetector) PredictProba(x []float64) float64 {
	if m.Mean == nil {
		return 0.5
	}
	return sigmoid((m.score(x) - m.Cutoff) / m.Scale)
}

func stddev(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var mean float64
	for _, v := range vs {
		mean += v
	}
	mean /= float64(len(vs))
	var ss float64
	for _, v := range vs {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(len(vs)))
}
