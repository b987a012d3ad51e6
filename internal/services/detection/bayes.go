package detection

import "math"

// NaiveBayes is a Gaussian naive Bayes classifier over two classes.
type NaiveBayes struct {
	Prior    [2]float64   `json:"prior"`
	Mean     [2][]float64 `json:"mean"`
	Variance [2][]float64 `json:"variance"`
}

func NewNaiveBayes() *NaiveBayes { return &NaiveBayes{} }

func (m *NaiveBayes) Name() string { return ModelNaiveBayes }

func (m *NaiveBayes) Fit(X [][]float64, y []int) error {
	if err := checkShape(X, y); err != nil {
		return err
	}
	cols := len(X[0])
	var count [2]float64
	for c := 0; c < 2; c++ {
		m.Mean[c] = make([]float64, cols)
		m.Variance[c] = make([]float64, cols)
	}
	for i, row := range X {
		c := y[i]
		count[c]++
		for j, v := range row {
			m.Mean[c][j] += v
		}
	}
	if count[0] == 0 || count[1] == 0 {
		return ErrSingleClass
	}
	for c := 0; c < 2; c++ {
		for j := range m.Mean[c] {
			m.Mean[c][j] /= count[c]
		}
	}
	for i, row := range X {
		c := y[i]
		for j, v := range row {
			d := v - m.Mean[c][j]
			m.Variance[c][j] += d * d
		}
	}

	// smoothing relative to the largest feature variance
	var maxVar float64
	for c := 0; c < 2; c++ {
		for j := range m.Variance[c] {
			m.Variance[c][j] /= count[c]
			maxVar = math.Max(maxVar, m.Variance[c][j])
		}
	}
	eps := 1e-9 * math.Max(maxVar, 1)
	for c := 0; c < 2; c++ {
		for j := range m.Variance[c] {
			m.Variance[c][j] += eps
		}
		m.Prior[c] = count[c] / float64(len(X))
	}
	return nil
}

func (m *NaiveBayes) PredictProba(x []float64) float64 {
	if m.Mean[0] == nil || m.Mean[1] == nil {
		return 0.5
	}
	var logp [2]float64
	for c := 0; c < 2; c++ {
		logp[c] = math.Log(m.Prior[c])
		for j, v := range x {
			if j >= len(m.Mean[c]) {
				break
			}
			d := v - m.Mean[c][j]
			logp[c] += -0.5*math.Log(2*math.Pi*m.Variance[c][j]) - d*d/(2*m.Variance[c][j])
		}
	}
	return sigmoid(logp[1] - logp[0])
}
