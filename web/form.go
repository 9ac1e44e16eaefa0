package web

import (
	"net/http"

	"go.uber.org/zap"

	"taxanalyzer/client"
	"taxanalyzer/db"
	"taxanalyzer/monitoring"
)

type formPage struct {
	Income  string
	Year    string
	Result  string
	Error   string
	History []db.TaxQuery
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "form.html", formPage{History: s.history()})
}

func (s *Server) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, "form.html", formPage{Error: client.ErrInvalidInput.Error(), History: s.history()})
		return
	}
	page := formPage{
		Income: r.PostForm.Get("income"),
		Year:   r.PostForm.Get("year"),
	}

	req, err := client.ParseForm(page.Income, page.Year)
	if err != nil {
		page.Error = s.client.Message(err)
		page.History = s.history()
		s.render(w, http.StatusBadRequest, "form.html", page)
		return
	}

	tax, err := s.client.Predict(r.Context(), req)
	outcome := s.client.Describe(tax, err)
	if err != nil {
		s.logger.Warn("form prediction failed", zap.Error(err))
		page.Error = outcome.Message
		page.History = s.history()
		s.render(w, statusFor(err), "form.html", page)
		return
	}

	s.record(req.Income, req.Year, tax)
	s.publish(monitoring.PredictionEvent, predictionEvent{Source: "form", Income: req.Income, Year: req.Year, PredictedTax: tax})
	page.Result = outcome.Formatted
	page.History = s.history()
	s.render(w, http.StatusOK, "form.html", page)
}

// record stores a successful prediction when history is configured.
func (s *Server) record(income float64, year int, tax float64) {
	if s.db == nil {
		return
	}
	if _, err := s.db.SaveQuery(db.TaxQuery{Income: income, Year: year, PredictedTax: tax}); err != nil {
		s.logger.Warn("save query", zap.Error(err))
	}
}

func (s *Server) history() []db.TaxQuery {
	if s.db == nil || s.config.HistoryLimit <= 0 {
		return nil
	}
	queries, err := s.db.RecentQueries(s.config.HistoryLimit)
	if err != nil {
		s.logger.Warn("load query history", zap.Error(err))
		return nil
	}
	return queries
}
