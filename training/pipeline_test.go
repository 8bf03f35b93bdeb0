package training

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/wagewizard/config"
	"github.com/YuminosukeSato/wagewizard/internal/fixture"
	"github.com/YuminosukeSato/wagewizard/metrics"
	"github.com/YuminosukeSato/wagewizard/neural"
	"github.com/YuminosukeSato/wagewizard/pkg/errors"
	"github.com/YuminosukeSato/wagewizard/pkg/log"
	"github.com/YuminosukeSato/wagewizard/plots"
	"github.com/YuminosukeSato/wagewizard/preprocessing"
)

func testPipeline(t *testing.T, rows int) (*Pipeline, *log.TestLogger) {
	t.Helper()
	dir := t.TempDir()
	logger, _ := log.NewTestLogger(log.LevelDebug)

	return &Pipeline{
		DataPath:     fixture.WriteDataset(t, dir, rows, 7),
		ArtifactsDir: filepath.Join(dir, "artifacts"),
		Training: config.TrainingConfig{
			Seed:            42,
			TestSize:        0.2,
			ValidationSplit: 0.1,
			Epochs:          3,
			BatchSize:       16,
			LearningRate:    0.001,
			Patience:        10,
			MinWorkingYears: 0,
			MaxWorkingYears: 30,
			Scaler:          preprocessing.ScalerRobust,
		},
		Schema: preprocessing.DefaultSchema(),
		Logger: logger,
	}, logger
}

func kept(rows []preprocessing.Row) int {
	n := 0
	for _, r := range rows {
		if r.TotalWorkingYears <= 30 {
			n++
		}
	}
	return n
}

func TestRunPublishesArtifacts(t *testing.T) {
	p, logger := testPipeline(t, 120)

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	want := kept(fixture.Employees(120, 7))
	assert.Equal(t, want, res.Samples)
	assert.Equal(t, 120-want, res.Dropped)
	assert.Equal(t, int(math.Ceil(float64(want)*0.2)), res.TestSamples)
	assert.Equal(t, want-res.TestSamples, res.TrainSamples)
	assert.Len(t, res.History.Loss, 3)

	for _, v := range []float64{res.Report.MAE, res.Report.RMSE, res.Report.R2} {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}

	for _, name := range []string{
		neural.ModelFile, preprocessing.ScalerFile, preprocessing.EncodingFile,
		metrics.MetricsFile, HistoryFile,
	} {
		assert.FileExists(t, filepath.Join(p.ArtifactsDir, name))
	}
	for _, name := range plots.Files() {
		assert.FileExists(t, filepath.Join(p.ArtifactsDir, PlotsDir, name))
	}
	assert.Len(t, res.Artifacts, 5+len(plots.Files()))

	saved, err := metrics.LoadReport(filepath.Join(p.ArtifactsDir, metrics.MetricsFile))
	require.NoError(t, err)
	assert.Equal(t, res.Report, saved)

	assert.True(t, logger.ContainsMessage("Training started"))
	assert.True(t, logger.ContainsMessage("Artifacts published"))

	// no staging directories are left behind
	entries, err := os.ReadDir(filepath.Dir(p.ArtifactsDir))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "staging")
		assert.NotContains(t, e.Name(), "previous")
	}
}

func TestRunIsReproducible(t *testing.T) {
	p, _ := testPipeline(t, 80)

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	second, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Report, second.Report)
	assert.Equal(t, first.History.Loss, second.History.Loss)
}

func TestEvaluateMatchesRun(t *testing.T) {
	p, _ := testPipeline(t, 100)

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	report, err := p.Evaluate(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, res.Report.MAE, report.MAE, 1e-9)
	assert.InDelta(t, res.Report.RMSE, report.RMSE, 1e-9)
	assert.InDelta(t, res.Report.R2, report.R2, 1e-12)
}

func TestEvaluateWithoutArtifacts(t *testing.T) {
	p, _ := testPipeline(t, 40)

	_, err := p.Evaluate(context.Background())
	assert.True(t, errors.Is(err, errors.ErrArtifactNotFound))
}

func TestRunFailureKeepsPreviousArtifacts(t *testing.T) {
	p, logger := testPipeline(t, 80)
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	metricsPath := filepath.Join(p.ArtifactsDir, metrics.MetricsFile)
	before, err := os.ReadFile(metricsPath)
	require.NoError(t, err)

	p.DataPath = filepath.Join(t.TempDir(), "absent.csv")
	_, err = p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, logger.ContainsMessage("Training failed"))

	after, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRunCanceled(t *testing.T) {
	p, _ := testPipeline(t, 60)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, p.ArtifactsDir)
}

func TestRunStopsOnCallback(t *testing.T) {
	p, _ := testPipeline(t, 60)
	p.Training.Epochs = 50
	p.Callbacks = []neural.Callback{func(env *neural.EpochEnv) error {
		if env.Epoch == 2 {
			env.StopTraining = true
		}
		return nil
	}}

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.History.Loss, 2)
}

func TestRunTrailingSlashArtifactsDir(t *testing.T) {
	p, _ := testPipeline(t, 60)
	p.ArtifactsDir += string(filepath.Separator)

	for i := 0; i < 2; i++ {
		_, err := p.Run(context.Background())
		require.NoError(t, err, "run %d", i+1)
	}
	assert.FileExists(t, filepath.Join(p.ArtifactsDir, neural.ModelFile))

	entries, err := os.ReadDir(filepath.Dir(filepath.Clean(p.ArtifactsDir)))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "staging")
		assert.NotContains(t, e.Name(), "previous")
	}
}

func TestRunWithoutValidationSplit(t *testing.T) {
	p, _ := testPipeline(t, 60)
	p.Training.ValidationSplit = 0

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.History.Loss, 3)
	assert.Empty(t, res.History.ValLoss)
	assert.Empty(t, res.History.ValMAE)

	raw, err := os.ReadFile(filepath.Join(p.ArtifactsDir, HistoryFile))
	require.NoError(t, err)
	var hist neural.History
	require.NoError(t, json.Unmarshal(raw, &hist))
	assert.Len(t, hist.Loss, 3)
	assert.FileExists(t, filepath.Join(p.ArtifactsDir, PlotsDir, plots.LossPlotFile))
}

func TestRunTimeLimit(t *testing.T) {
	p, _ := testPipeline(t, 60)
	p.Training.Epochs = 50
	p.Training.MaxDuration = time.Nanosecond

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.History.Loss, 1)
	assert.True(t, res.History.EarlyStopped)
}

func TestRunLogsHeldOutExtras(t *testing.T) {
	p, logger := testPipeline(t, 80)

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	var evaluated map[string]interface{}
	for _, e := range entries {
		if e["message"] == "Model evaluated" {
			evaluated = e
		}
	}
	require.NotNil(t, evaluated)
	mape, ok := evaluated[log.MAPEKey].(float64)
	require.True(t, ok, "missing %s in %v", log.MAPEKey, evaluated)
	assert.Greater(t, mape, 0.0)
	assert.Contains(t, evaluated, log.ExplainedVarKey)
}

func TestRunEmptyAfterFilter(t *testing.T) {
	p, _ := testPipeline(t, 30)
	p.Training.MinWorkingYears = 100
	p.Training.MaxWorkingYears = 200

	_, err := p.Run(context.Background())
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestLoadBundleAppliesScaler(t *testing.T) {
	p, _ := testPipeline(t, 80)
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	b, err := LoadBundle(p.ArtifactsDir)
	require.NoError(t, err)

	emp := fixture.Employees(1, 99)[0].Employee
	got, err := b.PredictOne(context.Background(), emp)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(got) || math.IsInf(got, 0))

	raw := b.Encoder.EncodeEmployee(emp)
	scaled, err := b.Scaler.Transform(mat.NewDense(1, len(raw), raw))
	require.NoError(t, err)
	manual, err := b.Network.PredictOne(mat.Row(nil, 0, scaled))
	require.NoError(t, err)
	assert.InDelta(t, manual, got, 1e-9)

	unscaled, err := b.Network.PredictOne(raw)
	require.NoError(t, err)
	assert.NotEqual(t, got, unscaled)
}

func TestLoadBundleWidthMismatch(t *testing.T) {
	p, _ := testPipeline(t, 60)
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	path := filepath.Join(p.ArtifactsDir, preprocessing.ScalerFile)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var params preprocessing.ScalerParams
	require.NoError(t, json.Unmarshal(raw, &params))
	params.NFeatures = 3
	params.Center = params.Center[:3]
	params.Scale = params.Scale[:3]
	raw, err = json.Marshal(params)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, err = LoadBundle(p.ArtifactsDir)
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}
