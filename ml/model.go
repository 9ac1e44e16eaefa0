package ml

import "fmt"

// FeatureNames is the fixed column order of every feature vector fed to a
// regressor, at training and at prediction time.
var FeatureNames = []string{"year", "income"}

// Regressor is a trained model mapping a feature vector to a value.
type Regressor interface {
	Fit(features [][]float64, targets []float64) error
	Predict(features []float64) (float64, error)
	Save(path string) error
	Load(path string) error
}

// FeatureVector orders income and year as [year, income].
func FeatureVector(income float64, year int) []float64 {
	return []float64{float64(year), income}
}

// checkFeatures rejects an artifact trained on a different column order.
func checkFeatures(features []string) error {
	if len(features) != len(FeatureNames) {
		return fmt.Errorf("artifact features %v, want %v", features, FeatureNames)
	}
	for i, name := range FeatureNames {
		if features[i] != name {
			return fmt.Errorf("artifact features %v, want %v", features, FeatureNames)
		}
	}
	return nil
}
