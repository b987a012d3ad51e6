package detection

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// Options configures a Detector.
type Options struct {
	Threshold float64
	Version   string
	Weights   map[string]float64
}

// TrainOptions controls a training run.
type TrainOptions struct {
	Seed      int64
	TestSplit float64
}

// Result is the outcome of scoring one sample.
type Result struct {
	IsFraud          bool               `json:"isFraud"`
	FraudProbability float64            `json:"fraudProbability"`
	RiskScore        int                `json:"riskScore"`
	Confidence       float64            `json:"confidence"`
	Predictions      map[string]float64 `json:"modelPredictions"`
	Indicators       []string           `json:"fraudIndicators"`
	ModelVersion     string             `json:"modelVersion"`
	Heuristic        bool               `json:"heuristic"`
	ProcessingTime   time.Duration      `json:"-"`
}

// TrainingReport is returned by Train.
type TrainingReport struct {
	Version      string             `json:"version"`
	Samples      int                `json:"samples"`
	FraudSamples int                `json:"fraudSamples"`
	Ensemble     Metrics            `json:"ensemble"`
	Models       map[string]Metrics `json:"models"`
	Duration     time.Duration      `json:"duration"`
	TrainedAt    time.Time          `json:"trainedAt"`
}

// Status is a read-only view of the detector state.
type Status struct {
	Trained   bool               `json:"trained"`
	Version   string             `json:"version"`
	Threshold float64            `json:"threshold"`
	Models    []string           `json:"models"`
	Weights   map[string]float64 `json:"weights"`
	Metrics   *Metrics           `json:"metrics,omitempty"`
	TrainedAt *time.Time         `json:"trainedAt,omitempty"`
}

// Detector is safe for concurrent use. Predict takes a read lock; Train builds
// new models off-lock and swaps them in.
type Detector struct {
	mu        sync.RWMutex
	threshold float64
	version   string
	weights   map[string]float64
	encoders  map[string]*LabelEncoder
	scaler    *StandardScaler
	models    map[string]Model
	metrics   *Metrics
	trainedAt *time.Time
}

func NewDetector(opts Options) *Detector {
	weights := opts.Weights
	if weights == nil {
		weights = DefaultWeights
	}
	threshold := opts.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = 0.7
	}
	version := opts.Version
	if version == "" {
		version = "1.0.0"
	}
	return &Detector{
		threshold: threshold,
		version:   version,
		weights:   weights,
		encoders:  emptyEncoders(),
	}
}

func emptyEncoders() map[string]*LabelEncoder {
	return map[string]*LabelEncoder{
		encMerchantCategory: NewLabelEncoder(nil),
		encPaymentMethod:    NewLabelEncoder(nil),
		encCountry:          NewLabelEncoder(nil),
	}
}

func newModels() map[string]Model {
	return map[string]Model{
		ModelGradientBoosting:   NewGradientBoosting(),
		ModelLogisticRegression: NewLogisticRegression(),
		ModelNaiveBayes:         NewNaiveBayes(),
		ModelAnomaly:            NewAnomalyDetector(),
	}
}

func (d *Detector) Trained() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.models) > 0
}

func (d *Detector) Threshold() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.threshold
}

func (d *Detector) Version() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// UpdateThreshold changes the decision threshold for subsequent predictions.
func (d *Detector) UpdateThreshold(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return ErrInvalidThreshold
	}
	d.mu.Lock()
	d.threshold = t
	d.mu.Unlock()
	return nil
}

func (d *Detector) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	st := Status{
		Trained:   len(d.models) > 0,
		Version:   d.version,
		Threshold: d.threshold,
		Weights:   d.weights,
		Metrics:   d.metrics,
		TrainedAt: d.trainedAt,
	}
	for name := range d.models {
		st.Models = append(st.Models, name)
	}
	sort.Strings(st.Models)
	return st
}

// Predict scores s. It never fails; an untrained detector uses the heuristic.
func (d *Detector) Predict(s Sample) Result {
	start := time.Now()
	indicators := Indicators(s)

	d.mu.RLock()
	defer d.mu.RUnlock()

	res := Result{
		Indicators:   indicators,
		ModelVersion: d.version,
		Predictions:  map[string]float64{},
	}
	if len(d.models) == 0 {
		res.FraudProbability = heuristicProbability(indicators)
		res.Confidence = heuristicConfidence
		res.Heuristic = true
		res.ModelVersion = "heuristic"
	} else {
		x := d.scaler.Transform(extract(s, d.encoders))
		res.FraudProbability, res.Confidence = d.combine(x, res.Predictions)
	}

	res.IsFraud = res.FraudProbability > d.threshold
	res.RiskScore = int(res.FraudProbability * 100)
	res.ProcessingTime = time.Since(start)
	return res
}

// combine fills preds and returns the weighted probability and confidence.
// Models are summed in name order so equal inputs give bit-identical output.
func (d *Detector) combine(x []float64, preds map[string]float64) (float64, float64) {
	var prob, totalWeight float64
	values := make([]float64, 0, len(d.weights))
	for _, name := range sortedNames(d.weights) {
		w := d.weights[name]
		p := 0.5
		if m, ok := d.models[name]; ok {
			p = m.PredictProba(x)
		}
		preds[name] = p
		values = append(values, p)
		prob += w * p
		totalWeight += w
	}
	if totalWeight > 0 {
		prob /= totalWeight
	}
	return clamp(prob, 0, 1), clamp(1-stddev(values), 0, 1)
}

func sortedNames(weights map[string]float64) []string {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Train fits every model on samples. The current models keep serving until
// the new set is ready.
func (d *Detector) Train(ctx context.Context, samples []Sample, opts TrainOptions) (*TrainingReport, error) {
	start := time.Now()
	if len(samples) < 10 {
		return nil, ErrInsufficientData
	}
	if opts.TestSplit <= 0 || opts.TestSplit >= 1 {
		opts.TestSplit = 0.2
	}

	var fraud int
	for _, s := range samples {
		if s.Label == 1 {
			fraud++
		}
	}
	if fraud == 0 || fraud == len(samples) {
		return nil, ErrSingleClass
	}

	encoders := fitEncoders(samples)
	X := make([][]float64, len(samples))
	y := make([]int, len(samples))
	for i, s := range samples {
		X[i] = extract(s, encoders)
		y[i] = s.Label
	}

	trainIdx, testIdx := stratifiedSplit(y, opts.TestSplit, opts.Seed)
	Xtr, ytr := pick(X, y, trainIdx)
	Xte, yte := pick(X, y, testIdx)

	scaler := FitScaler(Xtr)
	Xtr = scaler.TransformAll(Xtr)
	Xte = scaler.TransformAll(Xte)

	d.mu.RLock()
	weights := d.weights
	threshold := d.threshold
	version := d.version
	d.mu.RUnlock()

	models := newModels()
	report := &TrainingReport{
		Version:      version,
		Samples:      len(samples),
		FraudSamples: fraud,
		Models:       map[string]Metrics{},
	}
	for name, m := range models {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := m.Fit(Xtr, ytr); err != nil {
			log.Printf("⚠️ %s training failed: %v", name, err)
			delete(models, name)
			continue
		}
		probs := make([]float64, len(Xte))
		for i, row := range Xte {
			probs[i] = m.PredictProba(row)
		}
		report.Models[name] = evaluate(probs, yte, threshold)
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("no model could be trained")
	}

	candidate := &Detector{weights: weights, models: models, scaler: scaler}
	probs := make([]float64, len(Xte))
	for i, row := range Xte {
		probs[i], _ = candidate.combine(row, map[string]float64{})
	}
	report.Ensemble = evaluate(probs, yte, threshold)
	report.TrainedAt = time.Now().UTC()
	report.Duration = time.Since(start)

	d.mu.Lock()
	d.encoders = encoders
	d.scaler = scaler
	d.models = models
	metrics := report.Ensemble
	d.metrics = &metrics
	trainedAt := report.TrainedAt
	d.trainedAt = &trainedAt
	d.mu.Unlock()

	log.Printf("✅ Fraud models trained on %d samples (auc=%.3f f1=%.3f) in %s",
		len(samples), report.Ensemble.AUC, report.Ensemble.F1, report.Duration.Round(time.Millisecond))
	return report, nil
}

func fitEncoders(samples []Sample) map[string]*LabelEncoder {
	cats := make([]string, len(samples))
	methods := make([]string, len(samples))
	countries := make([]string, len(samples))
	for i, s := range samples {
		cats[i] = s.MerchantCategory
		methods[i] = s.PaymentMethod
		countries[i] = s.Country
	}
	return map[string]*LabelEncoder{
		encMerchantCategory: NewLabelEncoder(cats),
		encPaymentMethod:    NewLabelEncoder(methods),
		encCountry:          NewLabelEncoder(countries),
	}
}

// stratifiedSplit keeps the class ratio in both halves.
func stratifiedSplit(y []int, testFraction float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))
	byClass := map[int][]int{}
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}
	for _, label := range []int{0, 1} {
		idx := byClass[label]
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		n := int(math.Round(float64(len(idx)) * testFraction))
		if n == 0 && len(idx) > 1 {
			n = 1
		}
		test = append(test, idx[:n]...)
		train = append(train, idx[n:]...)
	}
	return train, test
}

func pick(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		xs[i] = X[j]
		ys[i] = y[j]
	}
	return xs, ys
}
