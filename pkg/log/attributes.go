// Standard attribute keys for training and serving logs.
//
// Keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples") so that records from the training run and the HTTP server
// can be filtered the same way.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator or transformer.
	// Examples: "MLPRegressor", "RobustScaler", "Encoder"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	// Examples: "training", "server", "dataset"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the model lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	SamplesKey   = "data.samples"
	FeaturesKey  = "data.features"
	BatchSizeKey = "data.batch_size"
	DroppedKey   = "data.dropped"
	PathKey      = "data.path"
)

// Training progress and evaluation metrics
const (
	DurationMsKey   = "perf.duration_ms"
	LossKey         = "metrics.loss"
	ValLossKey      = "metrics.val_loss"
	MAEKey          = "metrics.mae"
	RMSEKey         = "metrics.rmse"
	R2ScoreKey      = "metrics.r2_score"
	MAPEKey         = "metrics.mape"
	ExplainedVarKey = "metrics.explained_variance"
	EpochKey        = "training.epoch"
	BestEpochKey    = "training.best_epoch"
	LearningRateKey = "hyperparams.learning_rate"
	RandomSeedKey   = "config.random_seed"
)

// Serving context
const (
	PredsKey     = "preds.count"
	RequestIDKey = "http.request_id"
	RouteKey     = "http.route"
	StatusKey    = "http.status"
)

// Error and Warning Context
const (
	ErrorTypeKey = "error.type"
	WarningKey   = "warning"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationEvaluate  = "evaluate"
	OperationLoad      = "load"
	OperationSave      = "save"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
)
