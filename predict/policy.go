package predict

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"taxanalyzer/ml"
)

// Policy names accepted in configuration.
const (
	PolicyFormula = "formula"
	PolicyModel   = "model"
)

// FlatRate is the share of income used by the formula policy.
const FlatRate = 0.2

// Policy computes a predicted tax for a validated request.
type Policy interface {
	Name() string
	Predict(ctx context.Context, req Request) (float64, error)
}

// FormulaPolicy predicts round(income * 0.2, 2).
type FormulaPolicy struct{}

func (FormulaPolicy) Name() string { return PolicyFormula }

func (FormulaPolicy) Predict(_ context.Context, req Request) (float64, error) {
	return Round2(req.Income * FlatRate), nil
}

// Round2 rounds to two decimals using the exact binary value of x, so ties
// such as 0.125 resolve half to even.
func Round2(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	r, _ := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 2, 64), 64)
	return r
}

// ModelPolicy delegates to a regressor loaded once at startup. The
// regressor is never written after construction and is shared by all
// requests without locking.
type ModelPolicy struct {
	model   ml.Regressor
	loadErr error
}

// NewModelPolicy wraps model. A nil model or a non-nil loadErr puts the
// policy in the unavailable state for the life of the process.
func NewModelPolicy(model ml.Regressor, loadErr error) *ModelPolicy {
	if model == nil && loadErr == nil {
		loadErr = fmt.Errorf("no model configured")
	}
	if loadErr != nil {
		model = nil
	}
	return &ModelPolicy{model: model, loadErr: loadErr}
}

func (p *ModelPolicy) Name() string { return PolicyModel }

// Available reports whether a model was loaded.
func (p *ModelPolicy) Available() bool { return p.model != nil }

// Err returns the unavailable error, or nil when a model is loaded.
func (p *ModelPolicy) Err() error {
	if p.model == nil {
		return &UnavailableError{Cause: p.loadErr}
	}
	return nil
}

func (p *ModelPolicy) Predict(_ context.Context, req Request) (float64, error) {
	if err := p.Err(); err != nil {
		return 0, err
	}
	v, err := p.model.Predict(ml.FeatureVector(req.Income, req.Year))
	if err != nil {
		return 0, &ModelError{Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ModelError{Err: fmt.Errorf("non-finite prediction %v", v)}
	}
	return v, nil
}

// NewPolicy builds the policy named by name. For the model policy the
// artifact at modelPath is loaded here; a load failure is returned
// alongside a usable, permanently unavailable policy.
func NewPolicy(name, modelType, modelPath string) (Policy, error) {
	switch name {
	case "", PolicyFormula:
		return FormulaPolicy{}, nil
	case PolicyModel:
		model, err := ml.LoadModel(modelType, modelPath)
		if err != nil {
			err = fmt.Errorf("load model %s from %s: %w", modelType, modelPath, err)
		}
		return NewModelPolicy(model, err), err
	default:
		return nil, fmt.Errorf("unknown prediction policy %q", name)
	}
}

// Service answers prediction requests with a fixed policy.
type Service struct {
	policy Policy
}

func NewService(policy Policy) *Service {
	return &Service{policy: policy}
}

// Policy returns the configured policy.
func (s *Service) Policy() Policy { return s.policy }

// Ready reports a policy that fails every request regardless of input.
func (s *Service) Ready() error {
	if r, ok := s.policy.(interface{ Err() error }); ok {
		return r.Err()
	}
	return nil
}

func (s *Service) Predict(ctx context.Context, req Request) (float64, error) {
	return s.policy.Predict(ctx, req)
}
