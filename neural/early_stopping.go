package neural

import "math"

// EarlyStopping tracks a minimized validation score and signals a stop
// after Patience epochs without improvement.
type EarlyStopping struct {
	Patience        int     // Epochs without improvement before stopping
	BestScore       float64 // Best validation score so far
	BestEpoch       int     // Epoch (1-based) with the best score
	EpochsNoImprove int     // Current epochs without improvement
	Enabled         bool
}

// NewEarlyStopping creates a tracker. A non-positive patience disables stopping
// but the best epoch is still tracked.
func NewEarlyStopping(patience int) *EarlyStopping {
	return &EarlyStopping{
		Patience:  patience,
		BestScore: math.Inf(1),
		Enabled:   patience > 0,
	}
}

// Update records the score of epoch and reports whether it improved on the
// best score and whether training should stop.
func (es *EarlyStopping) Update(epoch int, score float64) (improved, stop bool) {
	if score < es.BestScore {
		es.BestScore = score
		es.BestEpoch = epoch
		es.EpochsNoImprove = 0
		return true, false
	}
	es.EpochsNoImprove++
	return false, es.ShouldStop()
}

// ShouldStop returns whether training should stop.
func (es *EarlyStopping) ShouldStop() bool {
	return es.Enabled && es.EpochsNoImprove >= es.Patience
}
