package web

import (
	"errors"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"taxanalyzer/ml"
	"taxanalyzer/pipeline"
)

var errNoModel = errors.New("no trained model is loaded")

// TrendPoint is the bracket rates of one year.
type TrendPoint struct {
	Year       int     `json:"year"`
	BottomRate float64 `json:"bottom_rate"`
	TopRate    float64 `json:"top_rate"`
}

// Residual compares the model with one dataset row.
type Residual struct {
	Year      int     `json:"year"`
	Actual    float64 `json:"actual"`
	Predicted float64 `json:"predicted"`
	Error     float64 `json:"error"`
}

type evaluationReply struct {
	Model     string     `json:"model,omitempty"`
	Metrics   ml.Metrics `json:"metrics"`
	Residuals []Residual `json:"residuals,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// trendPoints lists the rates by year, oldest first.
func trendPoints(records []pipeline.Record) []TrendPoint {
	points := make([]TrendPoint, 0, len(records))
	for _, rec := range records {
		points = append(points, TrendPoint{Year: rec.Year, BottomRate: rec.BottomRate, TopRate: rec.TopRate})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Year < points[j].Year })
	return points
}

// evaluate scores the loaded model against every row of the current dataset.
func (s *Server) evaluate() (evaluationReply, error) {
	if s.model == nil {
		return evaluationReply{}, errNoModel
	}
	records := s.store.View(pipeline.AllYears).Records
	features, targets := pipeline.Features(records)
	metrics, err := ml.Evaluate(s.model, features, targets)
	if err != nil {
		return evaluationReply{}, err
	}

	residuals := make([]Residual, 0, len(records))
	for i, rec := range records {
		predicted, err := s.model.Predict(features[i])
		if err != nil {
			return evaluationReply{}, err
		}
		residuals = append(residuals, Residual{
			Year:      rec.Year,
			Actual:    targets[i],
			Predicted: predicted,
			Error:     targets[i] - predicted,
		})
	}
	return evaluationReply{Model: s.modelType, Metrics: metrics, Residuals: residuals}, nil
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, trendPoints(s.store.View(pipeline.AllYears).Records))
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	reply, err := s.evaluate()
	switch {
	case errors.Is(err, errNoModel):
		respondJSON(w, http.StatusServiceUnavailable, evaluationReply{Error: err.Error()})
	case err != nil:
		s.logger.Warn("model evaluation failed", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, evaluationReply{Error: err.Error()})
	default:
		respondJSON(w, http.StatusOK, reply)
	}
}
