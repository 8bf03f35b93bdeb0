// Package config loads wagewizard settings from defaults, an optional
// wagewizard.yaml file, WAGEWIZARD_* environment variables and CLI flags,
// in increasing order of precedence.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/YuminosukeSato/wagewizard/pkg/errors"
	"github.com/YuminosukeSato/wagewizard/pkg/log"
	"github.com/YuminosukeSato/wagewizard/preprocessing"
)

const (
	// EnvPrefix is prepended to every environment override,
	// e.g. WAGEWIZARD_TRAINING_EPOCHS.
	EnvPrefix = "WAGEWIZARD"

	// FileName is the config file searched for in the working directory.
	FileName = "wagewizard"
)

// Config is the complete application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Data      DataConfig      `mapstructure:"data"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Server    ServerConfig    `mapstructure:"server"`
	Training  TrainingConfig  `mapstructure:"training"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DataConfig struct {
	Path string `mapstructure:"path"`
}

type ArtifactsConfig struct {
	Dir string `mapstructure:"dir"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	StaticDir       string        `mapstructure:"static_dir"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TrainingConfig holds the hyperparameters of a training run.
type TrainingConfig struct {
	Seed            uint64  `mapstructure:"seed"`
	TestSize        float64 `mapstructure:"test_size"`
	ValidationSplit float64 `mapstructure:"validation_split"`
	Epochs          int     `mapstructure:"epochs"`
	BatchSize       int     `mapstructure:"batch_size"`
	LearningRate    float64 `mapstructure:"learning_rate"`
	Patience        int     `mapstructure:"patience"`
	MinWorkingYears int     `mapstructure:"min_working_years"`
	MaxWorkingYears int     `mapstructure:"max_working_years"`
	Scaler          string  `mapstructure:"scaler"`

	// MaxDuration ends training after the first epoch that finishes past
	// it. Zero means no limit.
	MaxDuration time.Duration `mapstructure:"max_duration"`
}

// SetDefaults registers every default on v. Keys must be registered for
// AutomaticEnv to pick up their environment overrides during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", log.FormatJSON)

	v.SetDefault("data.path", "WA_Fn-UseC_-HR-Employee-Attrition.csv")
	v.SetDefault("artifacts.dir", "artifacts")

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("training.seed", 42)
	v.SetDefault("training.test_size", 0.2)
	v.SetDefault("training.validation_split", 0.1)
	v.SetDefault("training.epochs", 200)
	v.SetDefault("training.batch_size", 32)
	v.SetDefault("training.learning_rate", 0.001)
	v.SetDefault("training.patience", 10)
	v.SetDefault("training.min_working_years", 0)
	v.SetDefault("training.max_working_years", 30)
	v.SetDefault("training.scaler", preprocessing.ScalerRobust)
	v.SetDefault("training.max_duration", time.Duration(0))
}

// Load reads configuration into a Config. When file is empty,
// wagewizard.yaml is looked up in the working directory and its absence
// is not an error. An explicitly named file must exist.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no run could use.
func (c *Config) Validate() error {
	t := c.Training
	switch {
	case c.Data.Path == "":
		return errors.NewValidationError("data.path", "must not be empty", c.Data.Path)
	case c.Artifacts.Dir == "":
		return errors.NewValidationError("artifacts.dir", "must not be empty", c.Artifacts.Dir)
	case c.Server.Addr == "":
		return errors.NewValidationError("server.addr", "must not be empty", c.Server.Addr)
	case c.Server.ShutdownTimeout < 0:
		return errors.NewValidationError("server.shutdown_timeout", "must not be negative", c.Server.ShutdownTimeout)
	case t.TestSize <= 0 || t.TestSize >= 1:
		return errors.NewValidationError("training.test_size", "must be in (0, 1)", t.TestSize)
	case t.ValidationSplit < 0 || t.ValidationSplit >= 1:
		return errors.NewValidationError("training.validation_split", "must be in [0, 1)", t.ValidationSplit)
	case t.Epochs <= 0:
		return errors.NewValidationError("training.epochs", "must be positive", t.Epochs)
	case t.BatchSize <= 0:
		return errors.NewValidationError("training.batch_size", "must be positive", t.BatchSize)
	case t.LearningRate <= 0:
		return errors.NewValidationError("training.learning_rate", "must be positive", t.LearningRate)
	case t.Patience < 0:
		return errors.NewValidationError("training.patience", "must not be negative", t.Patience)
	case t.MaxDuration < 0:
		return errors.NewValidationError("training.max_duration", "must not be negative", t.MaxDuration)
	case t.MinWorkingYears > t.MaxWorkingYears:
		return errors.NewValidationError("training.min_working_years", "must not exceed training.max_working_years", t.MinWorkingYears)
	}
	if _, err := preprocessing.NewScaler(t.Scaler); err != nil {
		return errors.NewValidationError("training.scaler", "must be robust, standard or minmax", t.Scaler)
	}
	if _, err := log.ToLogLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != log.FormatJSON && c.Log.Format != log.FormatConsole {
		return errors.NewValidationError("log.format", "must be json or console", c.Log.Format)
	}
	return nil
}

// PlotsDir is where training writes the diagnostic charts.
func (c *Config) PlotsDir() string {
	return filepath.Join(c.Artifacts.Dir, "plots")
}

// StaticDir is the directory served under /static. It defaults to PlotsDir.
func (c *Config) StaticDir() string {
	if c.Server.StaticDir != "" {
		return c.Server.StaticDir
	}
	return c.PlotsDir()
}
