package detection

import "math"

// Model is one ensemble member. X is already scaled.
type Model interface {
	Name() string
	Fit(X [][]float64, y []int) error
	PredictProba(x []float64) float64
}

const (
	ModelGradientBoosting   = "gradient_boosting"
	ModelLogisticRegression = "logistic_regression"
	ModelNaiveBayes         = "naive_bayes"
	ModelAnomaly            = "anomaly"
)

// DefaultWeights are the ensemble weights per model.
var DefaultWeights = map[string]float64{
	ModelGradientBoosting:   0.35,
	ModelLogisticRegression: 0.30,
	ModelNaiveBayes:         0.20,
	ModelAnomaly:            0.15,
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func checkShape(X [][]float64, y []int) error {
	if len(X) != len(y) {
		return ErrShapeMismatch
	}
	if len(X) == 0 {
		return ErrInsufficientData
	}
	return nil
}
