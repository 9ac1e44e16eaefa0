package ml

import (
	"errors"
	"math"
	"math/rand"
)

// Metrics summarises a regressor on a held-out set.
type Metrics struct {
	MSE     float64 `json:"mse"`
	MAE     float64 `json:"mae"`
	R2      float64 `json:"r2"`
	Samples int     `json:"samples"`
}

// SplitDataset shuffles rows with a seeded source and holds out testRatio
// of them. An out-of-range ratio falls back to 0.2. At least one row is
// kept for training.
func SplitDataset(features [][]float64, targets []float64, testRatio float64, seed int64) (trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(len(features))

	split := int(math.Round(float64(len(features)) * (1 - testRatio)))
	if split < 1 {
		split = 1
	}
	for i, idx := range indices {
		if i < split {
			trainX = append(trainX, features[idx])
			trainY = append(trainY, targets[idx])
		} else {
			testX = append(testX, features[idx])
			testY = append(testY, targets[idx])
		}
	}
	return trainX, trainY, testX, testY
}

// Evaluate scores model against features and targets.
func Evaluate(model Regressor, features [][]float64, targets []float64) (Metrics, error) {
	if len(features) == 0 {
		return Metrics{}, errors.New("no samples to evaluate")
	}
	if len(features) != len(targets) {
		return Metrics{}, errors.New("features and targets size mismatch")
	}

	var sqErr, absErr float64
	for i, row := range features {
		predicted, err := model.Predict(row)
		if err != nil {
			return Metrics{}, err
		}
		diff := targets[i] - predicted
		sqErr += diff * diff
		absErr += math.Abs(diff)
	}

	n := float64(len(features))
	metrics := Metrics{
		MSE:     sqErr / n,
		MAE:     absErr / n,
		Samples: len(features),
	}
	if total := variance(targets) * n; total > 0 {
		metrics.R2 = 1 - sqErr/total
	}
	return metrics, nil
}
