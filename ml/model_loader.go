package ml

import (
	"fmt"
)

// Model types understood by LoadModel and NewModel.
const (
	TypeLinearRegression = "linear_regression"
	TypeRegressionTree   = "regression_tree"
)

// NewModel returns an untrained regressor of the given type.
func NewModel(modelType string, maxDepth int) (Regressor, error) {
	switch modelType {
	case TypeLinearRegression, "":
		return &LinearRegression{}, nil
	case TypeRegressionTree:
		return NewRegressionTree(maxDepth), nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", modelType)
	}
}

// LoadModel reads a saved regressor from path.
func LoadModel(modelType, path string) (Regressor, error) {
	if path == "" {
		return nil, fmt.Errorf("model path is empty")
	}
	model, err := NewModel(modelType, 0)
	if err != nil {
		return nil, err
	}
	if err := model.Load(path); err != nil {
		return nil, err
	}
	return model, nil
}
