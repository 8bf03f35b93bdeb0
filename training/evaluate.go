package training

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/wagewizard/metrics"
	"github.com/YuminosukeSato/wagewizard/pkg/log"
)

// Evaluate reloads the published artifacts, rebuilds the seeded test split
// from the dataset and recomputes the held-out metrics. With unchanged data
// and settings the result equals the report written by Run.
func (p *Pipeline) Evaluate(ctx context.Context) (metrics.Report, error) {
	logger := p.logger().With(log.OperationKey, log.OperationEvaluate)

	bundle, err := LoadBundle(p.ArtifactsDir)
	if err != nil {
		return metrics.Report{}, err
	}
	rows, _, err := p.load(ctx)
	if err != nil {
		return metrics.Report{}, err
	}
	data, err := p.split(rows, bundle.Table, bundle.Scaler)
	if err != nil {
		return metrics.Report{}, err
	}

	pred, err := bundle.Network.PredictContext(ctx, data.xTest)
	if err != nil {
		return metrics.Report{}, err
	}
	report, err := metrics.Evaluate(data.yTest, pred)
	if err != nil {
		return metrics.Report{}, err
	}
	logger.Info("Model evaluated", evaluationFields(report, data.yTest, pred)...)
	return report, nil
}

// evaluationFields returns the log attributes of a held-out evaluation.
// MAPE and explained variance are logged only; metrics.json keeps the
// report fields. Either is left out when undefined for the split.
func evaluationFields(report metrics.Report, yTrue, yPred mat.Vector) []any {
	fields := []any{
		log.PhaseKey, log.PhaseTesting,
		log.SamplesKey, yTrue.Len(),
		log.MAEKey, report.MAE,
		log.RMSEKey, report.RMSE,
		log.R2ScoreKey, report.R2,
	}
	if v, err := metrics.MAPE(yTrue, yPred); err == nil {
		fields = append(fields, log.MAPEKey, v)
	}
	if v, err := metrics.ExplainedVarianceScore(yTrue, yPred); err == nil {
		fields = append(fields, log.ExplainedVarKey, v)
	}
	return fields
}
