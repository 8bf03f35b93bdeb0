// Package plots renders the diagnostic charts written next to a trained model.
//
// Six PNG files are produced from the training history and the held-out
// predictions. They are served unchanged under /static by the inference
// server.
package plots

import (
	"context"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/wagewizard/pkg/errors"
	"github.com/YuminosukeSato/wagewizard/pkg/log"
)

// Artifact file names.
const (
	LossPlotFile          = "loss_plot.png"
	PredictedVsActualFile = "predicted_vs_actual.png"
	ResidualHistogramFile = "residuals_histogram.png"
	ResidualsVsPredFile   = "residuals_vs_predicted.png"
	AbsErrorBoxPlotFile   = "boxplot_absolute_errors.png"
	DistributionFile      = "distribution_actual_vs_predicted.png"
)

const (
	width  = 6.4 * vg.Inch
	height = 4.8 * vg.Inch

	histogramBins = 30
	kdeSamples    = 200
)

var (
	blue   = color.NRGBA{R: 31, G: 119, B: 180, A: 255}
	orange = color.NRGBA{R: 255, G: 127, B: 14, A: 255}
	red    = color.NRGBA{R: 214, G: 39, B: 40, A: 255}
	dashed = []vg.Length{vg.Points(5), vg.Points(3)}
)

// Files lists every chart RenderAll writes, in a stable order.
func Files() []string {
	return []string{
		LossPlotFile,
		PredictedVsActualFile,
		ResidualHistogramFile,
		ResidualsVsPredFile,
		AbsErrorBoxPlotFile,
		DistributionFile,
	}
}

// Data is the input to every chart.
type Data struct {
	// Loss and ValLoss are per-epoch training and validation losses.
	// ValLoss may be empty when training ran without a validation slice.
	Loss    []float64
	ValLoss []float64

	// Actual and Predicted are aligned held-out targets and predictions.
	Actual    []float64
	Predicted []float64
}

// Validate checks that Data can be charted.
func (d Data) Validate() error {
	if len(d.Loss) == 0 {
		return errors.NewValueError("plots.Validate", "loss history is empty")
	}
	if len(d.Actual) == 0 {
		return errors.NewValueError("plots.Validate", "no held-out predictions")
	}
	if len(d.Predicted) != len(d.Actual) {
		return errors.NewDimensionError("plots.Validate", len(d.Actual), len(d.Predicted), 0)
	}
	for _, s := range [][]float64{d.Loss, d.ValLoss, d.Actual, d.Predicted} {
		if err := errors.CheckNumericalStability("plots.Validate", s, 0); err != nil {
			return err
		}
	}
	return nil
}

// Residuals returns actual minus predicted.
func (d Data) Residuals() []float64 {
	r := make([]float64, len(d.Actual))
	floats.SubTo(r, d.Actual, d.Predicted)
	return r
}

// AbsoluteErrors returns |actual - predicted|.
func (d Data) AbsoluteErrors() []float64 {
	r := d.Residuals()
	for i, v := range r {
		r[i] = math.Abs(v)
	}
	return r
}

type chart struct {
	file  string
	build func(Data) (*plot.Plot, error)
}

func charts() []chart {
	return []chart{
		{LossPlotFile, LossCurve},
		{PredictedVsActualFile, PredictedVsActual},
		{ResidualHistogramFile, ResidualHistogram},
		{ResidualsVsPredFile, ResidualsVsPredicted},
		{AbsErrorBoxPlotFile, AbsoluteErrorBoxPlot},
		{DistributionFile, Distribution},
	}
}

// RenderAll writes the six charts into dir, creating it if needed, and
// returns the written paths in Files order. Charts are rendered concurrently.
func RenderAll(ctx context.Context, dir string, d Data) ([]string, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create plot directory %s", dir)
	}

	logger := log.GetLoggerWithName("plots")
	list := charts()
	paths := make([]string, len(list))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, c := range list {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			path := filepath.Join(dir, c.file)
			err := errors.SafeExecute("plots."+c.file, func() error {
				p, err := c.build(d)
				if err != nil {
					return errors.Wrapf(err, "build %s", c.file)
				}
				return errors.Wrapf(p.Save(width, height, path), "save %s", c.file)
			})
			if err != nil {
				return err
			}
			paths[i] = path
			logger.Debug("Plot rendered",
				log.PathKey, path,
				log.DurationMsKey, time.Since(start).Milliseconds(),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	return p
}

func series(values []float64) plotter.XYs {
	xys := make(plotter.XYs, len(values))
	for i, v := range values {
		xys[i] = plotter.XY{X: float64(i), Y: v}
	}
	return xys
}

func pairs(xs, ys []float64) plotter.XYs {
	xys := make(plotter.XYs, len(xs))
	for i := range xs {
		xys[i] = plotter.XY{X: xs[i], Y: ys[i]}
	}
	return xys
}

func scatter(xys plotter.XYs) (*plotter.Scatter, error) {
	s, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, err
	}
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Radius = vg.Points(2)
	s.GlyphStyle.Color = color.NRGBA{R: blue.R, G: blue.G, B: blue.B, A: 128}
	return s, nil
}

// kdeCurve samples the density of values. scale multiplies the density,
// which turns it into expected counts when overlaid on a histogram.
func kdeCurve(values []float64, scale float64) (plotter.XYs, bool) {
	k, ok := NewKDE(values)
	if !ok {
		return nil, false
	}
	lo, hi := k.Support()
	step := (hi - lo) / float64(kdeSamples-1)
	xys := make(plotter.XYs, kdeSamples)
	for i := range xys {
		x := lo + float64(i)*step
		xys[i] = plotter.XY{X: x, Y: scale * k.Density(x)}
	}
	return xys, true
}

// LossCurve plots training and validation loss per epoch.
func LossCurve(d Data) (*plot.Plot, error) {
	p := newPlot("Loss over Epochs", "Epochs", "Loss")

	train, err := plotter.NewLine(series(d.Loss))
	if err != nil {
		return nil, err
	}
	train.Color = blue
	p.Add(train)
	p.Legend.Add("Train Loss", train)

	if len(d.ValLoss) > 0 {
		val, err := plotter.NewLine(series(d.ValLoss))
		if err != nil {
			return nil, err
		}
		val.Color = orange
		p.Add(val)
		p.Legend.Add("Validation Loss", val)
	}
	p.Legend.Top = true
	return p, nil
}

// PredictedVsActual scatters predictions against targets with the identity line.
func PredictedVsActual(d Data) (*plot.Plot, error) {
	p := newPlot("Predicted vs Actual Monthly Income", "Actual Salary", "Predicted Salary")

	s, err := scatter(pairs(d.Actual, d.Predicted))
	if err != nil {
		return nil, err
	}
	lo, hi := floats.Min(d.Actual), floats.Max(d.Actual)
	ident, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return nil, err
	}
	ident.Color = red
	ident.Dashes = dashed

	p.Add(s, ident)
	return p, nil
}

// ResidualHistogram plots the residual distribution with a KDE overlay.
func ResidualHistogram(d Data) (*plot.Plot, error) {
	p := newPlot("Residuals Distribution", "Residual (Actual - Predicted)", "Count")
	res := d.Residuals()

	h, err := plotter.NewHist(plotter.Values(res), histogramBins)
	if err != nil {
		return nil, err
	}
	h.FillColor = color.NRGBA{R: blue.R, G: blue.G, B: blue.B, A: 140}
	p.Add(h)

	if xys, ok := kdeCurve(res, float64(len(res))*h.Width); ok {
		curve, err := plotter.NewLine(xys)
		if err != nil {
			return nil, err
		}
		curve.Color = blue
		curve.Width = vg.Points(1.5)
		p.Add(curve)
	}
	return p, nil
}

// ResidualsVsPredicted scatters residuals against predictions with a zero line.
func ResidualsVsPredicted(d Data) (*plot.Plot, error) {
	p := newPlot("Residuals vs Predicted", "Predicted Salary", "Residuals")

	s, err := scatter(pairs(d.Predicted, d.Residuals()))
	if err != nil {
		return nil, err
	}
	zero := plotter.NewFunction(func(float64) float64 { return 0 })
	zero.Color = red
	zero.Dashes = dashed

	p.Add(s, zero)
	return p, nil
}

// AbsoluteErrorBoxPlot summarizes |actual - predicted| as a box plot.
func AbsoluteErrorBoxPlot(d Data) (*plot.Plot, error) {
	p := newPlot("Boxplot of Absolute Prediction Errors", "", "Absolute Error")

	b, err := plotter.NewBoxPlot(vg.Points(60), 0, plotter.Values(d.AbsoluteErrors()))
	if err != nil {
		return nil, err
	}
	b.FillColor = color.NRGBA{R: blue.R, G: blue.G, B: blue.B, A: 160}
	p.Add(b)
	p.HideX()
	return p, nil
}

// Distribution overlays filled density estimates of targets and predictions.
func Distribution(d Data) (*plot.Plot, error) {
	p := newPlot("Distribution: Actual vs Predicted Income", "Monthly Income", "Density")

	for _, c := range []struct {
		name   string
		values []float64
		color  color.NRGBA
	}{
		{"Actual", d.Actual, blue},
		{"Predicted", d.Predicted, orange},
	} {
		xys, ok := kdeCurve(c.values, 1)
		if !ok {
			continue
		}
		l, err := plotter.NewLine(xys)
		if err != nil {
			return nil, err
		}
		l.Color = c.color
		l.FillColor = color.NRGBA{R: c.color.R, G: c.color.G, B: c.color.B, A: 64}
		p.Add(l)
		p.Legend.Add(c.name, l)
	}
	p.Legend.Top = true
	return p, nil
}
