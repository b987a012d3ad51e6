package detection

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const snapshotFile = "fraud_detector.json"

type snapshot struct {
	Version            string                   `json:"version"`
	Threshold          float64                  `json:"threshold"`
	Weights            map[string]float64       `json:"weights"`
	Encoders           map[string]*LabelEncoder `json:"encoders"`
	Scaler             *StandardScaler          `json:"scaler"`
	GradientBoosting   *GradientBoosting        `json:"gradient_boosting,omitempty"`
	LogisticRegression *LogisticRegression      `json:"logistic_regression,omitempty"`
	NaiveBayes         *NaiveBayes              `json:"naive_bayes,omitempty"`
	Anomaly            *AnomalyDetector         `json:"anomaly,omitempty"`
	Metrics            *Metrics                 `json:"metrics,omitempty"`
	TrainedAt          *time.Time               `json:"trained_at,omitempty"`
}

// SnapshotPath returns the file Save writes inside dir.
func SnapshotPath(dir string) string {
	return filepath.Join(dir, snapshotFile)
}

// Save writes the trained state to dir atomically.
func (d *Detector) Save(dir string) error {
	d.mu.RLock()
	if len(d.models) == 0 {
		d.mu.RUnlock()
		return fmt.Errorf("save detector: %w", ErrInsufficientData)
	}
	snap := snapshot{
		Version:   d.version,
		Threshold: d.threshold,
		Weights:   d.weights,
		Encoders:  d.encoders,
		Scaler:    d.scaler,
		Metrics:   d.metrics,
		TrainedAt: d.trainedAt,
	}
	if m, ok := d.models[ModelGradientBoosting].(*GradientBoosting); ok {
		snap.GradientBoosting = m
	}
	if m, ok := d.models[ModelLogisticRegression].(*LogisticRegression); ok {
		snap.LogisticRegression = m
	}
	if m, ok := d.models[ModelNaiveBayes].(*NaiveBayes); ok {
		snap.NaiveBayes = m
	}
	if m, ok := d.models[ModelAnomaly].(*AnomalyDetector); ok {
		snap.Anomaly = m
	}
	data, err := json.Marshal(snap)
	d.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode detector: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, snapshotFile+".*")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), SnapshotPath(dir))
}

// Load replaces the detector state with the snapshot in dir. The configured
// threshold is kept.
func (d *Detector) Load(dir string) error {
	data, err := os.ReadFile(SnapshotPath(dir))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNoSnapshot
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Scaler == nil {
		return fmt.Errorf("decode snapshot: missing scaler")
	}

	models := map[string]Model{}
	if snap.GradientBoosting != nil {
		models[ModelGradientBoosting] = snap.GradientBoosting
	}
	if snap.LogisticRegression != nil {
		models[ModelLogisticRegression] = snap.LogisticRegression
	}
	if snap.NaiveBayes != nil {
		models[ModelNaiveBayes] = snap.NaiveBayes
	}
	if snap.Anomaly != nil {
		models[ModelAnomaly] = snap.Anomaly
	}
	if len(models) == 0 {
		return ErrNoSnapshot
	}
	encoders := emptyEncoders()
	for k, e := range snap.Encoders {
		if e != nil {
			encoders[k] = e
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.models = models
	d.encoders = encoders
	d.scaler = snap.Scaler
	d.metrics = snap.Metrics
	d.trainedAt = snap.TrainedAt
	if snap.Version != "" {
		d.version = snap.Version
	}
	if snap.Weights != nil {
		d.weights = snap.Weights
	}
	return nil
}
