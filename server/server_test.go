package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/wagewizard/config"
	"github.com/YuminosukeSato/wagewizard/internal/fixture"
	"github.com/YuminosukeSato/wagewizard/metrics"
	"github.com/YuminosukeSato/wagewizard/pkg/errors"
	"github.com/YuminosukeSato/wagewizard/pkg/log"
	"github.com/YuminosukeSato/wagewizard/plots"
	"github.com/YuminosukeSato/wagewizard/preprocessing"
	"github.com/YuminosukeSato/wagewizard/training"
)

// artifactsDir holds one trained artifact set shared by every test.
var artifactsDir string

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	root, err := os.MkdirTemp("", "wagewizard-server-")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	code := func() int {
		defer os.RemoveAll(root)
		if err := trainFixture(root); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return m.Run()
	}()
	os.Exit(code)
}

func trainFixture(root string) error {
	data, err := fixture.WriteCSV(root, fixture.Employees(80, 3))
	if err != nil {
		return err
	}
	artifactsDir = filepath.Join(root, "artifacts")
	logger, _ := log.NewTestLogger(log.LevelWarn)
	p := &training.Pipeline{
		DataPath:     data,
		ArtifactsDir: artifactsDir,
		Training: config.TrainingConfig{
			Seed: 42, TestSize: 0.2, ValidationSplit: 0.1,
			Epochs: 3, BatchSize: 16, LearningRate: 0.001, Patience: 10,
			MinWorkingYears: 0, MaxWorkingYears: 30,
			Scaler: preprocessing.ScalerRobust,
		},
		Schema: preprocessing.DefaultSchema(),
		Logger: logger,
	}
	_, err = p.Run(context.Background())
	return err
}

func newTestServer(t *testing.T, dir string) (*Server, *log.TestLogger) {
	t.Helper()
	p, err := NewPredictor(artifactsDir)
	require.NoError(t, err)
	logger, _ := log.NewTestLogger(log.LevelDebug)
	return New(p, Options{
		ArtifactsDir: dir,
		StaticDir:    filepath.Join(dir, training.PlotsDir),
		Logger:       logger,
	}), logger
}

func validBody() map[string]any {
	return map[string]any{
		"Age": 41, "Attrition": "Yes", "BusinessTravel": "Travel_Rarely",
		"Department": "Sales", "Education": 2, "EducationField": "Life Sciences",
		"Gender": "Female", "JobInvolvement": 3, "JobLevel": 2,
		"JobRole": "Sales Executive", "JobSatisfaction": 4, "MaritalStatus": "Single",
		"NumCompaniesWorked": 8, "OverTime": "Yes", "PercentSalaryHike": 11,
		"PerformanceRating": 3, "RelationshipSatisfaction": 1, "StandardHours": 80,
		"TotalWorkingYears": 8, "TrainingTimesLastYear": 0, "WorkLifeBalance": 1,
		"YearsAtCompany": 6, "YearsInCurrentRole": 4, "YearsSinceLastPromotion": 0,
		"YearsWithCurrManager": 5,
	}
}

func do(s *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, artifactsDir)

	w := do(s, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestPredict(t *testing.T) {
	s, logger := newTestServer(t, artifactsDir)

	w := do(s, http.MethodPost, "/predict", validBody(), map[string]string{RequestIDHeader: "req-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))

	var resp PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, math.IsNaN(resp.PredictedSalary) || math.IsInf(resp.PredictedSalary, 0))

	// matches the bundle's own scaled prediction path
	b, err := training.LoadBundle(artifactsDir)
	require.NoError(t, err)
	var req PredictRequest
	raw, _ := json.Marshal(validBody())
	require.NoError(t, json.Unmarshal(raw, &req))
	want, err := b.PredictOne(context.Background(), req.Employee())
	require.NoError(t, err)
	assert.InDelta(t, want, resp.PredictedSalary, 1e-9)

	assert.True(t, logger.ContainsField("http.request_id", "req-1"))
}

func TestPredictUnknownCategory(t *testing.T) {
	s, _ := newTestServer(t, artifactsDir)
	body := validBody()
	body["BusinessTravel"] = "Teleport"
	body["EducationField"] = "Astrology"

	w := do(s, http.MethodPost, "/predict", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// same as sending the fallback values themselves
	body["BusinessTravel"] = "Non-Travel"
	body["EducationField"] = "Other"
	w2 := do(s, http.MethodPost, "/predict", body, nil)
	require.Equal(t, http.StatusOK, w2.Code)
	assert.JSONEq(t, w2.Body.String(), w.Body.String())

	m := do(s, http.MethodGet, "/debug/metrics", nil, nil)
	assert.Contains(t, m.Body.String(), `wagewizard_model_category_fallbacks_total{attribute="BusinessTravel"} 1`)
	assert.Contains(t, m.Body.String(), `wagewizard_model_category_fallbacks_total{attribute="EducationField"} 1`)
}

func TestPredictValidation(t *testing.T) {
	s, _ := newTestServer(t, artifactsDir)

	missing := validBody()
	delete(missing, "Age")
	wrongType := validBody()
	wrongType["JobLevel"] = "two"
	fractional := validBody()
	fractional["Education"] = 2.5
	emptyCat := validBody()
	emptyCat["Gender"] = ""

	tests := []struct {
		name    string
		body    any
		wantLoc []string
	}{
		{"missing numeric", missing, []string{"body", "Age"}},
		{"string for integer", wrongType, []string{"body", "JobLevel"}},
		{"fractional integer", fractional, []string{"body", "Education"}},
		{"empty categorical", emptyCat, []string{"body", "Gender"}},
		{"malformed json", `{"Age": `, []string{"body"}},
		{"empty body", "", []string{"body"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(s, http.MethodPost, "/predict", tt.body, nil)
			require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

			var resp ValidationResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotEmpty(t, resp.Detail)
			assert.Equal(t, tt.wantLoc, resp.Detail[0].Loc)
		})
	}
}

func TestPredictAcceptsZeroValues(t *testing.T) {
	s, _ := newTestServer(t, artifactsDir)
	body := validBody()
	for _, k := range []string{"NumCompaniesWorked", "TotalWorkingYears", "YearsAtCompany", "YearsInCurrentRole", "YearsWithCurrManager"} {
		body[k] = 0
	}

	w := do(s, http.MethodPost, "/predict", body, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, artifactsDir)

	w := do(s, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	raw, err := os.ReadFile(filepath.Join(artifactsDir, metrics.MetricsFile))
	require.NoError(t, err)
	assert.Equal(t, string(raw), w.Body.String())

	var r metrics.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
}

func TestMetricsEndpointMissingFile(t *testing.T) {
	s, _ := newTestServer(t, t.TempDir())

	w := do(s, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"error":"Metrics file not found"}`, w.Body.String())
}

func TestStaticPlots(t *testing.T) {
	s, _ := newTestServer(t, artifactsDir)

	for _, name := range plots.Files() {
		w := do(s, http.MethodGet, "/static/"+name, nil, nil)
		assert.Equal(t, http.StatusOK, w.Code, name)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"), name)
	}

	w := do(s, http.MethodGet, "/static/absent.png", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, artifactsDir)

	pre := do(s, http.MethodOptions, "/predict", nil, map[string]string{
		"Origin":                         "http://localhost:5173",
		"Access-Control-Request-Method":  "POST",
		"Access-Control-Request-Headers": "content-type",
	})
	assert.Equal(t, http.StatusNoContent, pre.Code)
	assert.Equal(t, "http://localhost:5173", pre.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, pre.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Equal(t, "content-type", pre.Header().Get("Access-Control-Allow-Headers"))

	get := do(s, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, "*", get.Header().Get("Access-Control-Allow-Origin"))

	plain := do(s, http.MethodOptions, "/predict", nil, map[string]string{
		"Origin": "http://localhost:5173",
	})
	assert.Equal(t, http.StatusNotFound, plain.Code)
	assert.Equal(t, "http://localhost:5173", plain.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, plain.Header().Get("Access-Control-Allow-Methods"))
}

func TestDebugMetrics(t *testing.T) {
	s, _ := newTestServer(t, artifactsDir)
	do(s, http.MethodGet, "/health", nil, nil)
	do(s, http.MethodPost, "/predict", validBody(), nil)
	do(s, http.MethodPost, "/predict", `{}`, nil)

	w := do(s, http.MethodGet, "/debug/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `wagewizard_http_requests_total{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, body, `wagewizard_model_predictions_total{outcome="ok"} 1`)
	assert.Contains(t, body, `wagewizard_model_predictions_total{outcome="invalid"} 1`)
	assert.True(t, strings.Contains(body, "wagewizard_model_prediction_latency_seconds_count 1"))
}

func TestNewPredictorMissingArtifacts(t *testing.T) {
	_, err := NewPredictor(t.TempDir())
	assert.True(t, errors.Is(err, errors.ErrArtifactNotFound))
}

func TestRunGracefulShutdown(t *testing.T) {
	s, _ := newTestServer(t, artifactsDir)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0", time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
