package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// LinearRegression is an ordinary least squares model with intercept.
type LinearRegression struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

type linearArtifact struct {
	Type         string    `json:"type"`
	Features     []string  `json:"features"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// Fit solves the normal equations on mean-centred columns.
func (lr *LinearRegression) Fit(features [][]float64, targets []float64) error {
	if len(features) == 0 || len(targets) == 0 {
		return errors.New("features or targets empty")
	}
	if len(features) != len(targets) {
		return errors.New("features and targets size mismatch")
	}
	width := len(features[0])
	for _, row := range features {
		if len(row) != width {
			return errors.New("ragged feature matrix")
		}
	}

	n := float64(len(features))
	xMean := make([]float64, width)
	yMean := 0.0
	for i, row := range features {
		for j, v := range row {
			xMean[j] += v / n
		}
		yMean += targets[i] / n
	}

	// gram is X'X, rhs is X'y, both on centred data
	gram := make([][]float64, width)
	for j := range gram {
		gram[j] = make([]float64, width)
	}
	rhs := make([]float64, width)
	for i, row := range features {
		dy := targets[i] - yMean
		for j := 0; j < width; j++ {
			dj := row[j] - xMean[j]
			rhs[j] += dj * dy
			for k := 0; k < width; k++ {
				gram[j][k] += dj * (row[k] - xMean[k])
			}
		}
	}

	coef, err := solve(gram, rhs)
	if err != nil {
		return err
	}
	intercept := yMean
	for j := range coef {
		intercept -= coef[j] * xMean[j]
	}
	lr.Coefficients = coef
	lr.Intercept = intercept
	return nil
}

func (lr *LinearRegression) Predict(features []float64) (float64, error) {
	if len(lr.Coefficients) == 0 {
		return 0, errors.New("model not trained")
	}
	if len(features) != len(lr.Coefficients) {
		return 0, fmt.Errorf("expected %d features, got %d", len(lr.Coefficients), len(features))
	}
	y := lr.Intercept
	for i, v := range features {
		y += lr.Coefficients[i] * v
	}
	return y, nil
}

func (lr *LinearRegression) Save(path string) error {
	if len(lr.Coefficients) == 0 {
		return errors.New("model not trained")
	}
	payload, err := json.MarshalIndent(linearArtifact{
		Type:         TypeLinearRegression,
		Features:     FeatureNames,
		Coefficients: lr.Coefficients,
		Intercept:    lr.Intercept,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (lr *LinearRegression) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var artifact linearArtifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return err
	}
	if artifact.Type != TypeLinearRegression {
		return fmt.Errorf("artifact type %q is not %s", artifact.Type, TypeLinearRegression)
	}
	if err := checkFeatures(artifact.Features); err != nil {
		return err
	}
	if len(artifact.Coefficients) != len(FeatureNames) {
		return fmt.Errorf("artifact has %d coefficients, want %d", len(artifact.Coefficients), len(FeatureNames))
	}
	lr.Coefficients = artifact.Coefficients
	lr.Intercept = artifact.Intercept
	return nil
}

// solve runs Gaussian elimination with partial pivoting on a copy of a.
func solve(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	m := make([][]float64, n)
	scale := 0.0
	for i := range a {
		m[i] = append(append([]float64(nil), a[i]...), b[i])
		scale = math.Max(scale, math.Abs(a[i][i]))
	}
	tolerance := scale * 1e-12

	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot][col]) <= tolerance {
			return nil, errors.New("singular feature matrix")
		}
		m[col], m[pivot] = m[pivot], m[col]
		for row := col + 1; row < n; row++ {
			factor := m[row][col] / m[col][col]
			for k := col; k <= n; k++ {
				m[row][k] -= factor * m[col][k]
			}
		}
	}

	x := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		sum := m[row][n]
		for k := row + 1; k < n; k++ {
			sum -= m[row][k] * x[k]
		}
		x[row] = sum / m[row][row]
	}
	return x, nil
}
