package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"taxanalyzer/ml"
	"taxanalyzer/monitoring"
	"taxanalyzer/predict"
)

func newTestRouter(t *testing.T, policy predict.Policy) http.Handler {
	t.Helper()
	return NewRouter(DefaultServerConfig(), predict.NewService(policy), monitoring.NewMetrics(), zap.NewNop())
}

func postPredict(t *testing.T, handler http.Handler, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var payload map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json %q: %v", w.Body.String(), err)
	}
	return w, payload
}

func TestHandlePredict(t *testing.T) {
	router := newTestRouter(t, predict.FormulaPolicy{})

	w, payload := postPredict(t, router, `{"income": 50000, "year": 2020}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	tax, ok := payload["predicted_tax"].(float64)
	if !ok {
		t.Fatalf("predicted_tax is not a number: %#v", payload["predicted_tax"])
	}
	if tax != 10000.0 {
		t.Fatalf("expected 10000, got %v", tax)
	}
	if _, ok := payload["error"]; ok {
		t.Fatalf("success response carries an error: %v", payload)
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected content type %q", w.Header().Get("Content-Type"))
	}
}

func TestHandlePredictStringFields(t *testing.T) {
	router := newTestRouter(t, predict.FormulaPolicy{})

	w, payload := postPredict(t, router, `{"income": "1234.56", "year": "2019"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if payload["predicted_tax"].(float64) != 246.91 {
		t.Fatalf("expected 246.91, got %v", payload["predicted_tax"])
	}
}

func TestHandlePredictValidation(t *testing.T) {
	router := newTestRouter(t, predict.FormulaPolicy{})

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{
			name:    "missing year",
			body:    `{"income": 50000}`,
			message: "Missing required fields: income and year",
		},
		{
			name:    "missing income",
			body:    `{"year": 2020}`,
			message: "Missing required fields: income and year",
		},
		{
			name:    "invalid types",
			body:    `{"income": "abc", "year": "xyz"}`,
			message: "Invalid input type — income must be numeric, year must be integer",
		},
		{
			name:    "not json",
			body:    `income=1&year=2`,
			message: "Request body must be a JSON object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, payload := postPredict(t, router, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if payload["error"] != tt.message {
				t.Fatalf("expected %q, got %q", tt.message, payload["error"])
			}
			if _, ok := payload["predicted_tax"]; ok {
				t.Fatalf("error response carries a value: %v", payload)
			}
		})
	}
}

func TestHandlePredictIdempotent(t *testing.T) {
	router := newTestRouter(t, predict.FormulaPolicy{})

	_, first := postPredict(t, router, `{"income": 87654.32, "year": 2021}`)
	_, second := postPredict(t, router, `{"income": 87654.32, "year": 2021}`)
	if first["predicted_tax"] != second["predicted_tax"] {
		t.Fatalf("expected identical predictions, got %v and %v", first["predicted_tax"], second["predicted_tax"])
	}
}

func TestHandlePredictModelUnavailable(t *testing.T) {
	policy, err := predict.NewPolicy(predict.PolicyModel, ml.TypeLinearRegression, filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("expected load error")
	}
	router := newTestRouter(t, policy)

	for _, body := range []string{`{"income": 50000, "year": 2020}`, `{"income": "abc"}`, `[]`} {
		w, payload := postPredict(t, router, body)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("body %s: expected 500, got %d", body, w.Code)
		}
		if payload["error"] != predict.ErrModelUnavailable.Error() {
			t.Fatalf("body %s: unexpected error %q", body, payload["error"])
		}
	}
}

func TestHandlePredictModelPolicy(t *testing.T) {
	model := &ml.LinearRegression{Coefficients: []float64{0, 0.2}, Intercept: 0}
	router := newTestRouter(t, predict.NewModelPolicy(model, nil))

	w, payload := postPredict(t, router, `{"income": 50000, "year": 2020}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if payload["predicted_tax"].(float64) != 10000 {
		t.Fatalf("expected 10000, got %v", payload["predicted_tax"])
	}
}

func TestPredictMethodNotAllowed(t *testing.T) {
	router := newTestRouter(t, predict.FormulaPolicy{})
	req := httptest.NewRequest(http.MethodGet, "/predict", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	router := newTestRouter(t, predict.FormulaPolicy{})
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload["status"] != "ok" || payload["policy"] != "formula" {
		t.Fatalf("unexpected health payload: %v", payload)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected request id header")
	}
}

func TestHomeHandler(t *testing.T) {
	router := newTestRouter(t, predict.FormulaPolicy{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/predict") {
		t.Fatalf("unexpected home response %d %q", w.Code, w.Body.String())
	}
}

func TestMetricsHandler(t *testing.T) {
	metrics := monitoring.NewMetrics()
	router := NewRouter(DefaultServerConfig(), predict.NewService(predict.FormulaPolicy{}), metrics, zap.NewNop())

	postPredict(t, router, `{"income": 50000, "year": 2020}`)
	postPredict(t, router, `{"income": 50000}`)

	req := httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var snap monitoring.MetricsSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if snap.Predictions[monitoring.OutcomeOK] != 1 || snap.Predictions[monitoring.OutcomeClientError] != 1 {
		t.Fatalf("unexpected counters %v", snap.Predictions)
	}
}

func TestWriteErrorPayload(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusBadRequest, predict.ErrMissingFields)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var payload predict.Response
	if err := json.NewDecoder(w.Body).Decode(&payload); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if payload.PredictedTax != nil {
		t.Fatalf("unexpected predicted_tax %v", *payload.PredictedTax)
	}
	if payload.Error != predict.ErrMissingFields.Error() {
		t.Fatalf("unexpected error %q", payload.Error)
	}
}
