package detection

import "errors"

var (
	ErrInsufficientData = errors.New("insufficient training data")
	ErrSingleClass      = errors.New("training data must contain both classes")
	ErrInvalidThreshold = errors.New("threshold must be between 0 and 1")
	ErrNoSnapshot       = errors.New("no saved model snapshot")
	ErrShapeMismatch    = errors.New("feature matrix and labels differ in length")
)
