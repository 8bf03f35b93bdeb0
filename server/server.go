// Package server exposes a trained income model over HTTP.
//
// Routes:
//
//	POST /predict        predict MonthlyIncome for one employee
//	GET  /metrics        held-out evaluation report of the loaded model
//	GET  /static/*path   diagnostic plots
//	GET  /health         liveness
//	GET  /debug/metrics  Prometheus exposition
//
// All model state is loaded once by NewPredictor and is read-only afterwards.
package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/wagewizard/metrics"
	"github.com/YuminosukeSato/wagewizard/pkg/errors"
	"github.com/YuminosukeSato/wagewizard/pkg/log"
	"github.com/YuminosukeSato/wagewizard/preprocessing"
	"github.com/YuminosukeSato/wagewizard/training"
)

// Predictor serves predictions from a loaded artifact bundle.
type Predictor struct {
	bundle *training.Bundle
}

// NewPredictor loads the model, scaler and encoding table from
// artifactsDir. It fails when any artifact is missing or their feature
// widths disagree.
func NewPredictor(artifactsDir string) (*Predictor, error) {
	b, err := training.LoadBundle(artifactsDir)
	if err != nil {
		return nil, err
	}
	return &Predictor{bundle: b}, nil
}

// Unknown returns the categorical attributes of e whose values were not
// seen in training and will be encoded with the fallback code.
func (p *Predictor) Unknown(e preprocessing.Employee) []string {
	var unknown []string
	for _, name := range p.bundle.Table.Features {
		value, ok := e.CategoricalValue(name)
		if !ok {
			continue
		}
		if _, known := p.bundle.Table.Code(name, value); !known {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// Predict returns the predicted MonthlyIncome. A non-finite result is an error.
func (p *Predictor) Predict(ctx context.Context, e preprocessing.Employee) (salary float64, err error) {
	defer errors.Recover(&err, "Predictor.Predict")

	salary, err = p.bundle.PredictOne(ctx, e)
	if err != nil {
		return 0, err
	}
	if err := errors.CheckScalar("prediction", salary, 0); err != nil {
		return 0, err
	}
	return salary, nil
}

// Options configures a Server.
type Options struct {
	// ArtifactsDir holds metrics.json.
	ArtifactsDir string
	// StaticDir is served under /static.
	StaticDir string
	Logger    log.Logger
}

// Server is the HTTP inference service.
type Server struct {
	engine      *gin.Engine
	predictor   *Predictor
	metricsPath string
	logger      log.Logger
	telemetry   *telemetry
}

// New builds the router. The predictor must already be loaded.
func New(predictor *Predictor, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.GetLoggerWithName("server")
	}
	s := &Server{
		engine:      gin.New(),
		predictor:   predictor,
		metricsPath: filepath.Join(opts.ArtifactsDir, metrics.MetricsFile),
		logger:      logger,
		telemetry:   newTelemetry(),
	}

	s.engine.Use(
		Recovery(logger),
		RequestID(),
		CORS(),
		AccessLog(logger),
		s.telemetry.middleware(),
	)

	s.engine.POST("/predict", s.handlePredict)
	s.engine.GET("/metrics", s.handleMetrics)
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/debug/metrics", s.telemetry.handler())
	if opts.StaticDir != "" {
		s.engine.Static("/static", opts.StaticDir)
	}
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is canceled, then shuts down gracefully,
// waiting at most shutdownTimeout for in-flight requests.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "http.addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrapf(err, "listen on %s", addr)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return <-errCh
}

func (s *Server) handlePredict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.telemetry.predictions.WithLabelValues("invalid").Inc()
		_ = c.Error(err)
		c.JSON(http.StatusUnprocessableEntity, ValidationResponse{Detail: describeBindError(err)})
		return
	}

	emp := req.Employee()
	for _, attr := range s.predictor.Unknown(emp) {
		s.telemetry.fallbacks.WithLabelValues(attr).Inc()
		s.logger.Debug("Unknown category encoded with fallback",
			log.RequestIDKey, GetRequestID(c),
			"attribute", attr,
		)
	}

	start := time.Now()
	salary, err := s.predictor.Predict(c.Request.Context(), emp)
	s.telemetry.predictionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		s.telemetry.predictions.WithLabelValues("error").Inc()
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "prediction failed"})
		return
	}

	s.telemetry.predictions.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, PredictResponse{PredictedSalary: salary})
}

// handleMetrics returns metrics.json as stored. A missing file is reported
// in the body with status 200.
func (s *Server) handleMetrics(c *gin.Context) {
	raw, err := os.ReadFile(s.metricsPath)
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusOK, ErrorResponse{Error: "Metrics file not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "metrics unavailable"})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
