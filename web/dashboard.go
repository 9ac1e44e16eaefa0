package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"taxanalyzer/client"
	"taxanalyzer/db"
	"taxanalyzer/monitoring"
	"taxanalyzer/pipeline"
)

// Slider bounds for the dashboard income input.
const (
	SliderMin     = 0
	SliderMax     = 1000000
	SliderDefault = 50000
)

type dashboardPage struct {
	Years     []int
	Selected  int
	View      pipeline.View
	Issues    []pipeline.QualityIssue
	Runs      []db.TrainingLog
	Trends    []TrendPoint
	Cleaning  pipeline.CleaningStats
	HasModel  bool
	Source    string
	Error     string
	SliderMin int
	SliderMax int
	Income    int
}

// ChartPoint is one marker of the prediction chart.
type ChartPoint struct {
	Kind   string  `json:"kind"` // history, prediction
	Year   int     `json:"year"`
	Income float64 `json:"income"`
	Value  float64 `json:"value"`
}

type dashboardReply struct {
	PredictedTax *float64     `json:"predicted_tax,omitempty"`
	Formatted    string       `json:"formatted,omitempty"`
	Message      string       `json:"message,omitempty"`
	Points       []ChartPoint `json:"points,omitempty"`
	Error        string       `json:"error,omitempty"`
}

// parseYear reads the year filter. Empty and "all" select every year.
func parseYear(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "all") {
		return pipeline.AllYears, nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid year %q", raw)
	}
	return year, nil
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	page := dashboardPage{
		Years:     s.store.Years(),
		Issues:    snap.Issues,
		Source:    snap.Source,
		SliderMin: SliderMin,
		SliderMax: SliderMax,
		Income:    SliderDefault,
	}
	status := http.StatusOK

	year, err := parseYear(r.URL.Query().Get("year"))
	if err != nil {
		page.Error = err.Error()
		status = http.StatusBadRequest
		year = pipeline.AllYears
	}
	page.Selected = year
	page.View = s.store.View(year)
	page.Runs = s.trainingRuns()
	page.Trends = trendPoints(s.store.View(pipeline.AllYears).Records)
	page.Cleaning = s.store.Stats()
	page.HasModel = s.model != nil

	s.render(w, status, "dashboard.html", page)
}

func (s *Server) handleDashboardData(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r.URL.Query().Get("year"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, dashboardReply{Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, s.store.View(year))
}

func (s *Server) handleDashboardPredict(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil {
		respondJSON(w, http.StatusBadRequest, dashboardReply{Error: client.ErrInvalidInput.Error()})
		return
	}

	req, err := client.ParseForm(rawField(fields["income"]), rawField(fields["year"]))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, dashboardReply{Error: s.client.Message(err)})
		return
	}

	tax, err := s.client.Predict(r.Context(), req)
	outcome := s.client.Describe(tax, err)
	if err != nil {
		s.logger.Warn("dashboard prediction failed", zap.Error(err))
		respondJSON(w, statusFor(err), dashboardReply{Error: outcome.Message})
		return
	}

	s.record(req.Income, req.Year, tax)
	s.publish(monitoring.PredictionEvent, predictionEvent{Source: "dashboard", Income: req.Income, Year: req.Year, PredictedTax: tax})

	points := s.historyPoints()
	points = append(points, ChartPoint{Kind: "prediction", Year: req.Year, Income: req.Income, Value: tax})
	respondJSON(w, http.StatusOK, dashboardReply{
		PredictedTax: &tax,
		Formatted:    outcome.Formatted,
		Message:      outcome.Message,
		Points:       points,
	})
}

// historyPoints plots, per year, the tax owed at the top of the bottom
// bracket so that history and prediction share the dollar axis.
func (s *Server) historyPoints() []ChartPoint {
	view := s.store.View(pipeline.AllYears)
	points := make([]ChartPoint, 0, len(view.Records)+1)
	for _, rec := range view.Records {
		points = append(points, ChartPoint{
			Kind:   "history",
			Year:   rec.Year,
			Income: rec.BottomIncome,
			Value:  rec.BottomIncome * rec.BottomRate / 100,
		})
	}
	return points
}

func (s *Server) trainingRuns() []db.TrainingLog {
	if s.db == nil {
		return nil
	}
	runs, err := s.db.RecentTrainingRuns(5)
	if err != nil {
		s.logger.Warn("load training runs", zap.Error(err))
		return nil
	}
	return runs
}

// rawField turns a decoded JSON value back into form text. Missing and
// non-scalar values become empty and fail local parsing.
func rawField(v interface{}) string {
	switch value := v.(type) {
	case json.Number:
		return value.String()
	case string:
		return value
	default:
		return ""
	}
}

// statusFor maps a client error to the status of the surface reply.
func statusFor(err error) int {
	var serviceErr *client.ServiceError
	switch {
	case errors.Is(err, client.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.As(err, &serviceErr) && serviceErr.Status >= 400 && serviceErr.Status < 500:
		return serviceErr.Status
	default:
		return http.StatusBadGateway
	}
}
