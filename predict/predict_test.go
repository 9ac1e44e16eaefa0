package predict

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"taxanalyzer/ml"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    Request
		wantErr error
	}{
		{name: "numbers", body: `{"income": 50000, "year": 2020}`, want: Request{Income: 50000, Year: 2020}},
		{name: "strings", body: `{"income": "1234.5", "year": "2019"}`, want: Request{Income: 1234.5, Year: 2019}},
		{name: "padded strings", body: `{"income": " 10 ", "year": " 2018 "}`, want: Request{Income: 10, Year: 2018}},
		{name: "fractional year truncates", body: `{"income": 1, "year": 2020.9}`, want: Request{Income: 1, Year: 2020}},
		{name: "missing income", body: `{"year": 2020}`, wantErr: ErrMissingFields},
		{name: "missing year", body: `{"income": 50000}`, wantErr: ErrMissingFields},
		{name: "null year", body: `{"income": 50000, "year": null}`, wantErr: ErrMissingFields},
		{name: "missing wins over invalid", body: `{"income": "abc"}`, wantErr: ErrMissingFields},
		{name: "invalid both", body: `{"income": "abc", "year": "xyz"}`, wantErr: ErrInvalidType},
		{name: "invalid year", body: `{"income": 100, "year": "2020.5"}`, wantErr: ErrInvalidType},
		{name: "boolean income", body: `{"income": true, "year": 2020}`, wantErr: ErrInvalidType},
		{name: "nan income", body: `{"income": "NaN", "year": 2020}`, wantErr: ErrInvalidType},
		{name: "array year", body: `{"income": 1, "year": [2020]}`, wantErr: ErrInvalidType},
		{name: "not an object", body: `[1, 2]`, wantErr: ErrMalformedBody},
		{name: "empty body", body: ``, wantErr: ErrMalformedBody},
		{name: "broken json", body: `{"income":`, wantErr: ErrMalformedBody},
		{name: "trailing garbage", body: `{"income":1,"year":2}garbage`, wantErr: ErrMalformedBody},
		{name: "second object", body: `{"income":1,"year":2}{"income":3,"year":4}`, wantErr: ErrMalformedBody},
		{name: "trailing whitespace", body: "{\"income\":1,\"year\":2}\n ", want: Request{Income: 1, Year: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(strings.NewReader(tt.body))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Decode() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestErrorMessagesAreExact(t *testing.T) {
	if ErrMissingFields.Error() != "Missing required fields: income and year" {
		t.Fatalf("unexpected message %q", ErrMissingFields)
	}
	if ErrInvalidType.Error() != "Invalid input type — income must be numeric, year must be integer" {
		t.Fatalf("unexpected message %q", ErrInvalidType)
	}
}

func TestFormulaPolicy(t *testing.T) {
	policy := FormulaPolicy{}
	tests := []struct {
		income float64
		want   float64
	}{
		{0, 0},
		{1, 0.2},
		{0.05, 0.01},
		{12.345, 2.47},
		{50000, 10000},
		{123456.78, 24691.36},
		{999999.99, 200000},
	}
	for _, tt := range tests {
		got, err := policy.Predict(context.Background(), Request{Income: tt.income, Year: 2020})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.want {
			t.Errorf("income %v: got %v, want %v", tt.income, got, tt.want)
		}
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{10000, 10000},
		{2.469, 2.47},
		{0.125, 0.12},
		{0.375, 0.38},
		{-1.234, -1.23},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

type stubRegressor struct {
	value float64
	err   error
	seen  []float64
}

func (s *stubRegressor) Fit([][]float64, []float64) error { return nil }
func (s *stubRegressor) Save(string) error                { return nil }
func (s *stubRegressor) Load(string) error                { return nil }
func (s *stubRegressor) Predict(features []float64) (float64, error) {
	s.seen = features
	return s.value, s.err
}

func TestModelPolicy(t *testing.T) {
	stub := &stubRegressor{value: 42.5}
	policy := NewModelPolicy(stub, nil)
	if !policy.Available() {
		t.Fatal("expected policy to be available")
	}

	got, err := policy.Predict(context.Background(), Request{Income: 50000, Year: 2020})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42.5 {
		t.Fatalf("expected 42.5, got %v", got)
	}
	if stub.seen[0] != 2020 || stub.seen[1] != 50000 {
		t.Fatalf("features passed in wrong order: %v", stub.seen)
	}

	stub.err = errors.New("boom")
	_, err = policy.Predict(context.Background(), Request{Income: 1, Year: 1})
	var modelErr *ModelError
	if !errors.As(err, &modelErr) {
		t.Fatalf("expected ModelError, got %v", err)
	}
	if StatusFor(err) != http.StatusInternalServerError {
		t.Fatalf("expected 500 for model failure")
	}
}

func TestModelPolicyUnavailable(t *testing.T) {
	policy, err := NewPolicy(PolicyModel, ml.TypeLinearRegression, filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("expected load error")
	}
	if policy == nil {
		t.Fatal("expected an unavailable policy, got nil")
	}

	for _, req := range []Request{{Income: 50000, Year: 2020}, {Income: -1, Year: 0}} {
		_, err := policy.Predict(context.Background(), req)
		if !errors.Is(err, ErrModelUnavailable) {
			t.Fatalf("expected ErrModelUnavailable, got %v", err)
		}
		if StatusFor(err) != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", StatusFor(err))
		}
	}
}

func TestNewPolicy(t *testing.T) {
	for _, name := range []string{"", PolicyFormula} {
		policy, err := NewPolicy(name, "", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if policy.Name() != PolicyFormula {
			t.Fatalf("expected formula policy, got %s", policy.Name())
		}
	}
	if _, err := NewPolicy("oracle", "", ""); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestServiceIdempotent(t *testing.T) {
	svc := NewService(FormulaPolicy{})
	req := Request{Income: 73512.37, Year: 2021}
	first, err := svc.Predict(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := svc.Predict(context.Background(), req)
	if first != second {
		t.Fatalf("expected identical results, got %v and %v", first, second)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{ErrMissingFields, http.StatusBadRequest},
		{ErrInvalidType, http.StatusBadRequest},
		{ErrMalformedBody, http.StatusBadRequest},
		{&UnavailableError{}, http.StatusInternalServerError},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
