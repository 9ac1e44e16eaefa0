// Package web serves the form and dashboard surfaces that call the
// prediction service through the client package.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"

	"taxanalyzer/client"
	"taxanalyzer/db"
	svchttp "taxanalyzer/http"
	"taxanalyzer/ml"
	"taxanalyzer/monitoring"
	"taxanalyzer/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

// Config 前端服务配置
type Config struct {
	Port         int
	HistoryLimit int
}

// Deps are the collaborators of the web surfaces. DB, Hub and Model are
// optional; without a Model the dashboard cannot evaluate.
type Deps struct {
	Client    *client.Client
	Store     *pipeline.Store
	DB        *db.DB
	Hub       *monitoring.Hub
	Model     ml.Regressor
	ModelType string
	Logger    *zap.Logger
}

// Server 表单与仪表盘服务器
type Server struct {
	config    Config
	client    *client.Client
	store     *pipeline.Store
	db        *db.DB
	hub       *monitoring.Hub
	model     ml.Regressor
	modelType string
	logger    *zap.Logger
	templates *template.Template
	server    *http.Server
}

// New 创建前端服务器
func New(config Config, deps Deps) (*Server, error) {
	if deps.Client == nil || deps.Store == nil {
		return nil, fmt.Errorf("web server needs a client and a dataset store")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"currency": client.FormatCurrency,
		"yearLabel": func(year int) string {
			if year == pipeline.AllYears {
				return "All years"
			}
			return fmt.Sprint(year)
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		config:    config,
		client:    deps.Client,
		store:     deps.Store,
		db:        deps.DB,
		hub:       deps.Hub,
		model:     deps.Model,
		modelType: deps.ModelType,
		logger:    deps.Logger,
		templates: tmpl,
	}
	if s.hub != nil {
		s.store.OnReload(s.publishReload)
	}
	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", config.Port),
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	return s, nil
}

// Handler 注册路由并包装中间件链
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleForm)
	mux.HandleFunc("POST /{$}", s.handleFormSubmit)
	mux.HandleFunc("GET /dashboard", s.handleDashboard)
	mux.HandleFunc("GET /dashboard/data", s.handleDashboardData)
	mux.HandleFunc("POST /dashboard/predict", s.handleDashboardPredict)
	mux.HandleFunc("GET /dashboard/trends", s.handleTrends)
	mux.HandleFunc("GET /dashboard/evaluate", s.handleEvaluate)
	if s.hub != nil {
		mux.Handle("GET /ws/dashboard", s.hub)
	}

	chain := svchttp.Chain(
		svchttp.RecoveryMiddleware(s.logger),
		svchttp.LoggerMiddleware(s.logger),
		svchttp.SecurityHeadersMiddleware,
		svchttp.RequestSizeMiddleware(64<<10),
	)
	return chain(mux)
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("starting web client",
		zap.String("addr", s.server.Addr),
		zap.String("service_url", s.client.BaseURL()),
	)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop 停止服务器
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.logger.Info("shutting down web client")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Addr 返回服务器地址
func (s *Server) Addr() string {
	return s.server.Addr
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("render template", zap.String("template", name), zap.Error(err))
	}
}

// respondJSON 统一JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// predictionEvent is pushed to dashboard clients after each success.
type predictionEvent struct {
	Source       string  `json:"source"`
	Income       float64 `json:"income"`
	Year         int     `json:"year"`
	PredictedTax float64 `json:"predicted_tax"`
}

func (s *Server) publish(topic monitoring.MessageType, payload interface{}) {
	if s.hub == nil {
		return
	}
	if err := s.hub.Publish(topic, payload); err != nil {
		s.logger.Warn("publish event", zap.String("type", string(topic)), zap.Error(err))
	}
}

func (s *Server) publishReload(snap *pipeline.Snapshot) {
	s.publish(monitoring.DatasetReloaded, map[string]interface{}{
		"source":    snap.Source,
		"rows":      len(snap.Records),
		"rejected":  len(snap.Issues),
		"loaded_at": snap.LoadedAt,
	})
}
