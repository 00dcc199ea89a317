// Package bench evaluates a whole task suite and aggregates the results.
//
// A Runner fans tasks out over a bounded worker pool, runs one evaluation
// loop per task, and persists every outcome with its attempt ledger under a
// timestamped run directory (with a "latest" symlink for convenience). The
// aggregation computes solve rates, the error-kind distribution and observed
// repair success per kind, and reports render as an aligned table, markdown
// or JSON.
package bench
