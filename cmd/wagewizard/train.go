package main

import (
	"fmt"
	"io"
	"math"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/wagewizard/metrics"
	"github.com/YuminosukeSato/wagewizard/neural"
	"github.com/YuminosukeSato/wagewizard/training"
)

func (c *cli) trainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the model and write artifacts",
		Long: `Load the dataset, train the network with early stopping, evaluate it on the
held-out split and publish the model, scaler, encoding table, metrics and plots
into the artifacts directory.`,
		Args: cobra.NoArgs,
		RunE: c.runTrain,
	}

	f := cmd.Flags()
	f.Int("epochs", 0, "maximum number of epochs")
	f.Int("batch-size", 0, "mini-batch size")
	f.Uint64("seed", 0, "random seed for the split, initialization and shuffling")
	f.String("scaler", "", "feature scaler (robust, standard, minmax)")
	f.Bool("no-progress", false, "disable the progress bar")
	_ = c.v.BindPFlag("training.epochs", f.Lookup("epochs"))
	_ = c.v.BindPFlag("training.batch_size", f.Lookup("batch-size"))
	_ = c.v.BindPFlag("training.seed", f.Lookup("seed"))
	_ = c.v.BindPFlag("training.scaler", f.Lookup("scaler"))
	return cmd
}

func (c *cli) runTrain(cmd *cobra.Command, _ []string) error {
	p := training.New(c.cfg)

	noProgress, _ := cmd.Flags().GetBool("no-progress")
	var bar *progressbar.ProgressBar
	if !noProgress {
		bar = newEpochBar(cmd.ErrOrStderr(), c.cfg.Training.Epochs)
		p.Callbacks = append(p.Callbacks, progressCallback(bar))
	}

	res, err := p.Run(cmd.Context())
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "trained %d epochs (best %d) on %d rows, %d dropped\n",
		res.History.Epochs, res.History.BestEpoch, res.Samples, res.Dropped)
	printReport(out, res.Report)
	fmt.Fprintf(out, "artifacts written to %s\n", c.cfg.Artifacts.Dir)
	return nil
}

func newEpochBar(w io.Writer, epochs int) *progressbar.ProgressBar {
	return progressbar.NewOptions(epochs,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Training...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}

// progressCallback advances bar once per epoch and shows the latest losses.
func progressCallback(bar *progressbar.ProgressBar) neural.Callback {
	return func(env *neural.EpochEnv) error {
		if math.IsNaN(env.ValLoss) {
			bar.Describe(fmt.Sprintf("[cyan]loss %.4g[reset]", env.Loss))
		} else {
			bar.Describe(fmt.Sprintf("[cyan]loss %.4g val_loss %.4g[reset]", env.Loss, env.ValLoss))
		}
		return bar.Add(1)
	}
}

func printReport(w io.Writer, r metrics.Report) {
	fmt.Fprintf(w, "MAE:  %.2f\n", r.MAE)
	fmt.Fprintf(w, "RMSE: %.2f\n", r.RMSE)
	fmt.Fprintf(w, "R²:   %.4f\n", r.R2)
}
