// Package training runs the end-to-end MonthlyIncome regression pipeline:
// load, filter, encode, scale, split, fit, evaluate, and publish artifacts.
package training

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/wagewizard/config"
	"github.com/YuminosukeSato/wagewizard/core/model"
	"github.com/YuminosukeSato/wagewizard/dataset"
	"github.com/YuminosukeSato/wagewizard/metrics"
	"github.com/YuminosukeSato/wagewizard/neural"
	"github.com/YuminosukeSato/wagewizard/pkg/errors"
	"github.com/YuminosukeSato/wagewizard/pkg/log"
	"github.com/YuminosukeSato/wagewizard/plots"
	"github.com/YuminosukeSato/wagewizard/preprocessing"
)

// Artifact layout under the artifacts directory.
const (
	HistoryFile = "history.json"
	PlotsDir    = "plots"
)

// Pipeline trains and evaluates the income model.
type Pipeline struct {
	DataPath     string
	ArtifactsDir string
	Training     config.TrainingConfig
	Schema       preprocessing.Schema

	// Callbacks run after every epoch in addition to the pipeline's own
	// epoch logging.
	Callbacks []neural.Callback

	Logger log.Logger
}

// New returns a Pipeline configured from cfg with the default schema.
func New(cfg *config.Config) *Pipeline {
	return &Pipeline{
		DataPath:     cfg.Data.Path,
		ArtifactsDir: filepath.Clean(cfg.Artifacts.Dir),
		Training:     cfg.Training,
		Schema:       preprocessing.DefaultSchema(),
		Logger:       log.GetLoggerWithName("training"),
	}
}

// Result summarizes a completed run.
type Result struct {
	Report       metrics.Report
	History      *neural.History
	Samples      int // rows after filtering
	Dropped      int // rows removed by the working-years filter
	TrainSamples int
	TestSamples  int
	Artifacts    []string // published paths
	Duration     time.Duration
}

// prepared is the encoded, scaled and split dataset shared by Run and Evaluate.
type prepared struct {
	table   *preprocessing.EncodingTable
	scaler  preprocessing.Scaler
	xTrain  *mat.Dense
	yTrain  *mat.VecDense
	xTest   *mat.Dense
	yTest   *mat.VecDense
	samples int
	dropped int
}

func (p *Pipeline) logger() log.Logger {
	if p.Logger == nil {
		return log.GetLoggerWithName("training")
	}
	return p.Logger
}

// load reads the dataset and applies the working-years filter.
func (p *Pipeline) load(ctx context.Context) ([]preprocessing.Row, int, error) {
	rows, err := dataset.LoadCSV(p.DataPath, p.Schema)
	if err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	kept, dropped := preprocessing.FilterWorkingYears(rows, p.Training.MinWorkingYears, p.Training.MaxWorkingYears)
	if len(kept) == 0 {
		return nil, 0, errors.NewModelError("training.load", "empty data",
			errors.Wrapf(errors.ErrEmptyData, "no rows with TotalWorkingYears in [%d, %d]",
				p.Training.MinWorkingYears, p.Training.MaxWorkingYears))
	}
	p.logger().Info("Rows filtered",
		log.PhaseKey, log.PhasePreprocessing,
		log.SamplesKey, len(kept),
		log.DroppedKey, dropped,
	)
	return kept, dropped, nil
}

// split encodes rows with table, applies a fitted scaler (fitting one when
// scaler is nil) and performs the seeded train/test split.
func (p *Pipeline) split(rows []preprocessing.Row, table *preprocessing.EncodingTable, scaler preprocessing.Scaler) (*prepared, error) {
	enc, err := preprocessing.NewEncoder(table)
	if err != nil {
		return nil, err
	}
	X, y, err := enc.EncodeRows(rows)
	if err != nil {
		return nil, err
	}

	var scaled mat.Matrix
	if scaler == nil {
		if scaler, err = preprocessing.NewScaler(p.Training.Scaler); err != nil {
			return nil, err
		}
		scaled, err = scaler.FitTransform(X)
	} else {
		scaled, err = scaler.Transform(X)
	}
	if err != nil {
		return nil, errors.Wrap(err, "scale features")
	}

	trainIdx, testIdx, err := preprocessing.TrainTestSplit(len(rows), p.Training.TestSize, p.Training.Seed)
	if err != nil {
		return nil, err
	}
	d := &prepared{table: table, scaler: scaler, samples: len(rows)}
	d.xTrain, d.yTrain = preprocessing.SelectRows(scaled, y, trainIdx)
	d.xTest, d.yTest = preprocessing.SelectRows(scaled, y, testIdx)
	return d, nil
}

// Run executes the full pipeline. Every artifact is written to a staging
// directory first and moved into ArtifactsDir only once all of them exist,
// so a failed or canceled run leaves a previous artifact set untouched.
func (p *Pipeline) Run(ctx context.Context) (res *Result, err error) {
	start := time.Now()
	logger := p.logger().With(log.OperationKey, log.OperationFit, log.ModelNameKey, neural.ModelType)
	defer func() {
		if err != nil {
			logger.Error("Training failed", err)
		}
	}()

	rows, dropped, err := p.load(ctx)
	if err != nil {
		return nil, err
	}

	table, err := preprocessing.FitEncodingTable(p.Schema, rows)
	if err != nil {
		return nil, err
	}
	data, err := p.split(rows, table, nil)
	if err != nil {
		return nil, err
	}
	data.dropped = dropped
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := neural.DefaultConfig()
	cfg.LearningRate = p.Training.LearningRate
	cfg.Seed = p.Training.Seed
	net, err := neural.NewMLP(len(table.Features), cfg)
	if err != nil {
		return nil, err
	}

	fc := neural.FitConfig{
		Epochs:          p.Training.Epochs,
		BatchSize:       p.Training.BatchSize,
		ValidationSplit: p.Training.ValidationSplit,
		Patience:        p.Training.Patience,
		Callbacks:       []neural.Callback{neural.LogEpochs(logger, 10)},
	}
	if p.Training.MaxDuration > 0 {
		fc.Callbacks = append(fc.Callbacks, neural.TimeLimit(p.Training.MaxDuration))
	}
	fc.Callbacks = append(fc.Callbacks, p.Callbacks...)
	logger.Info("Training started",
		log.SamplesKey, data.xTrain.RawMatrix().Rows,
		log.FeaturesKey, len(table.Features),
		log.BatchSizeKey, fc.BatchSize,
		log.LearningRateKey, cfg.LearningRate,
		log.RandomSeedKey, cfg.Seed,
	)
	hist, err := net.Fit(ctx, data.xTrain, data.yTrain, fc)
	if err != nil {
		return nil, err
	}

	pred, err := net.PredictContext(ctx, data.xTest)
	if err != nil {
		return nil, err
	}
	report, err := metrics.Evaluate(data.yTest, pred)
	if err != nil {
		return nil, err
	}
	logger.Info("Model evaluated",
		append(evaluationFields(report, data.yTest, pred), log.BestEpochKey, hist.BestEpoch)...)

	staging, err := p.stage(ctx, net, data, hist, report, pred)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(staging)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	paths, err := publish(staging, p.ArtifactsDir)
	if err != nil {
		return nil, err
	}

	res = &Result{
		Report:       report,
		History:      hist,
		Samples:      data.samples,
		Dropped:      data.dropped,
		TrainSamples: data.yTrain.Len(),
		TestSamples:  data.yTest.Len(),
		Artifacts:    paths,
		Duration:     time.Since(start),
	}
	logger.Info("Artifacts published",
		log.PathKey, p.ArtifactsDir,
		log.DurationMsKey, res.Duration.Milliseconds(),
	)
	return res, nil
}

// stage writes every artifact into a fresh sibling directory of
// ArtifactsDir and returns its path. On error the directory is removed.
func (p *Pipeline) stage(ctx context.Context, net *neural.Network, data *prepared, hist *neural.History,
	report metrics.Report, pred *mat.VecDense) (dir string, err error) {
	parent := filepath.Dir(filepath.Clean(p.ArtifactsDir))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", errors.Wrapf(err, "create %s", parent)
	}
	dir = filepath.Join(parent, "."+filepath.Base(p.ArtifactsDir)+"-staging-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create staging directory %s", dir)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(dir)
		}
	}()

	writes := []struct {
		name  string
		write func(path string) error
	}{
		{neural.ModelFile, net.SaveFile},
		{preprocessing.ScalerFile, func(path string) error { return preprocessing.SaveScaler(path, data.scaler) }},
		{preprocessing.EncodingFile, func(path string) error { return preprocessing.SaveEncodingTable(path, data.table) }},
		{metrics.MetricsFile, report.Save},
		{HistoryFile, func(path string) error { return model.SaveJSON(path, hist) }},
	}
	for _, w := range writes {
		if err := w.write(filepath.Join(dir, w.name)); err != nil {
			return "", errors.Wrapf(err, "stage %s", w.name)
		}
	}

	_, err = plots.RenderAll(ctx, filepath.Join(dir, PlotsDir), plots.Data{
		Loss:      hist.Loss,
		ValLoss:   hist.ValLoss,
		Actual:    data.yTest.RawVector().Data,
		Predicted: pred.RawVector().Data,
	})
	if err != nil {
		return "", errors.Wrap(err, "render plots")
	}
	return dir, nil
}

// publish replaces dst with the contents of staging and returns the
// published file paths. A previous dst is moved aside first and restored
// if the final rename fails.
func publish(staging, dst string) ([]string, error) {
	dst = filepath.Clean(dst)
	var backup string
	if _, err := os.Stat(dst); err == nil {
		backup = dst + ".previous-" + uuid.NewString()
		if err := os.Rename(dst, backup); err != nil {
			return nil, errors.Wrapf(err, "move aside %s", dst)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", dst)
	}

	if err := os.Rename(staging, dst); err != nil {
		if backup != "" {
			_ = os.Rename(backup, dst)
		}
		return nil, errors.Wrapf(err, "publish %s", dst)
	}
	if backup != "" {
		_ = os.RemoveAll(backup)
	}

	var paths []string
	err := filepath.WalkDir(dst, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dst)
	}
	return paths, nil
}
