package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"taxanalyzer/monitoring"
	"taxanalyzer/predict"
)

// Handler serves the prediction exchange.
type Handler struct {
	svc     *predict.Service
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

func NewHandler(svc *predict.Service, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	return &Handler{svc: svc, metrics: metrics, logger: logger}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleHome)
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/metrics", h.handleMetrics)
	mux.HandleFunc("POST /predict", h.handlePredict)
}

func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Prediction service is running. Use the /predict endpoint with a POST request.\n"))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
		"policy": h.svc.Policy().Name(),
	}
	if mp, ok := h.svc.Policy().(*predict.ModelPolicy); ok {
		status["model_available"] = mp.Available()
	}
	respondJSON(w, http.StatusOK, status)
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.metrics.Snapshot())
}

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		h.metrics.RecordPrediction(monitoring.OutcomeFor(status), time.Since(start))
	}()

	if err := h.svc.Ready(); err != nil {
		status = h.fail(w, r, err)
		return
	}

	req, err := predict.Decode(r.Body)
	if err != nil {
		status = h.fail(w, r, err)
		return
	}

	tax, err := h.svc.Predict(r.Context(), req)
	if err != nil {
		status = h.fail(w, r, err)
		return
	}

	h.logger.Debug("prediction",
		zap.String("request_id", GetRequestID(r.Context())),
		zap.Float64("income", req.Income),
		zap.Int("year", req.Year),
		zap.Float64("predicted_tax", tax),
	)
	respondJSON(w, http.StatusOK, predict.Success(tax))
}

// fail writes err as an error payload and returns the status used.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) int {
	status := predict.StatusFor(err)
	fields := []zap.Field{
		zap.String("request_id", GetRequestID(r.Context())),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("prediction failed", fields...)
	} else {
		h.logger.Debug("prediction rejected", fields...)
	}

	// the unavailable sentinel hides the load cause from clients
	if errors.Is(err, predict.ErrModelUnavailable) {
		err = predict.ErrModelUnavailable
	}
	writeError(w, status, err)
	return status
}

// respondJSON 统一JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, predict.Failure(err))
}
