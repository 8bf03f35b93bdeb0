package neural

import (
	"math"
	"time"

	"github.com/YuminosukeSato/wagewizard/pkg/log"
)

// EpochEnv is passed to callbacks after every epoch.
type EpochEnv struct {
	Epoch     int // 1-based
	Epochs    int // configured maximum
	Loss      float64
	ValLoss   float64 // NaN without a validation slice
	MAE       float64
	ValMAE    float64
	Improved  bool
	BestEpoch int
	Elapsed   time.Duration

	// StopTraining may be set by a callback to end training after this epoch.
	StopTraining bool
}

// Callback is called after each epoch. A returned error aborts Fit.
type Callback func(env *EpochEnv) error

// LogEpochs logs every period-th epoch, and every improvement, at debug level.
func LogEpochs(logger log.Logger, period int) Callback {
	if period <= 0 {
		period = 1
	}
	return func(env *EpochEnv) error {
		if env.Epoch%period != 0 && !env.Improved {
			return nil
		}
		args := []any{
			log.EpochKey, env.Epoch,
			log.LossKey, env.Loss,
			log.MAEKey, env.MAE,
			log.BestEpochKey, env.BestEpoch,
		}
		if !math.IsNaN(env.ValLoss) {
			args = append(args, log.ValLossKey, env.ValLoss, "metrics.val_mae", env.ValMAE)
		}
		logger.Debug("Epoch finished", args...)
		return nil
	}
}

// TimeLimit stops training once maxDuration has passed since Fit started.
func TimeLimit(maxDuration time.Duration) Callback {
	return func(env *EpochEnv) error {
		if env.Elapsed > maxDuration {
			env.StopTraining = true
		}
		return nil
	}
}
