package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/wagewizard/config"
	"github.com/YuminosukeSato/wagewizard/pkg/log"
)

const app = "wagewizard"

// cli carries state shared by the subcommands of one invocation.
type cli struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  log.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   app,
		Short: "Predict employee monthly income with a neural network",
		Long: `wagewizard trains a multilayer perceptron on the IBM HR attrition dataset
to predict MonthlyIncome, and serves the trained model over HTTP.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "config file (default is ./wagewizard.yaml if present)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", log.FormatJSON, "log format (json, console)")
	pf.String("artifacts", "artifacts", "directory holding the trained artifacts")
	pf.String("data", "", "path to the HR attrition CSV")
	_ = c.v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = c.v.BindPFlag("log.format", pf.Lookup("log-format"))
	_ = c.v.BindPFlag("artifacts.dir", pf.Lookup("artifacts"))
	_ = c.v.BindPFlag("data.path", pf.Lookup("data"))

	root.AddCommand(
		c.trainCmd(),
		c.evaluateCmd(),
		c.serveCmd(),
		versionCmd(),
	)
	return root
}

// setup loads configuration and installs the logger before any subcommand runs.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	cfg, err := config.Load(c.v, c.cfgFile)
	if err != nil {
		return err
	}
	logger, err := log.SetupLogger(log.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger
	return nil
}
