// Package wagewizard predicts an employee's MonthlyIncome from the IBM HR
// attrition dataset with a small multilayer perceptron, and serves the
// trained model over HTTP.
//
// The work is split into an offline training run and an online service
// that share one artifacts directory:
//
//	artifacts/
//	    model.json      network weights and architecture
//	    scaler.json     fitted feature scaler (robust by default)
//	    encoding.json   categorical code table
//	    metrics.json    MAE, RMSE and R² on the held-out split
//	    history.json    per-epoch loss and val_loss
//	    plots/*.png     training curves and residual diagnostics
//
// A training run publishes the directory as a whole, so the service never
// observes a model paired with a scaler from another run.
//
// # Quick Start
//
// Train on the CSV and start the service:
//
//	wagewizard train --data WA_Fn-UseC_-HR-Employee-Attrition.csv
//	wagewizard serve --addr :8000
//
// Then request a prediction:
//
//	curl -s localhost:8000/predict -d @employee.json
//	{"predicted_salary":6123.4}
//
// Settings can also come from ./wagewizard.yaml or WAGEWIZARD_* environment
// variables, for example WAGEWIZARD_TRAINING_EPOCHS=200.
//
// # Packages
//
//   - preprocessing: feature schema, categorical encoding, scalers and the seeded split
//   - dataset: CSV loading and working-years filtering
//   - neural: the MLP, Adam, early stopping and training callbacks
//   - metrics: regression metrics and the persisted evaluation report
//   - plots: the diagnostic charts written next to the model
//   - training: the end-to-end pipeline and the loaded artifact bundle
//   - server: the gin inference service
//   - config: viper-backed configuration
//   - core/model, core/parallel: shared model state, JSON persistence and worker helpers
//   - pkg/errors, pkg/log: error types and structured logging
package wagewizard
