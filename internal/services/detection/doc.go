/*
Package detection scores transactions for fraud.

A Detector turns a Sample into a 23-value feature vector, scales it, and
averages the probabilities of four models with fixed weights:

	gradient_boosting    0.35  boosted decision stumps, log loss
	logistic_regression  0.30  L2 regularised, batch gradient descent
	naive_bayes          0.20  Gaussian
	anomaly              0.15  z-score distance, fitted on legitimate rows only

A model that is missing contributes 0.5. The ensemble reports the fraud
probability, a 0..100 risk score, and a confidence of one minus the spread of
the individual model outputs.

Until Train succeeds (or a snapshot is loaded) the Detector scores with a
deterministic indicator heuristic and reports Result.Heuristic.

Usage:

	d := detection.NewDetector(detection.Options{Threshold: 0.7, Version: "1.0.0"})
	report, err := d.Train(ctx, detection.GenerateSynthetic(5000, 42, time.Now()), detection.TrainOptions{Seed: 42})
	res := d.Predict(sample)
	err = d.Save("models")
*/
package detection
