// Package harness orchestrates a suite run.
//
// For every selected input the harness drives a small state machine:
//
//	Pending -> ChainBuilt -> VariantsRun -> Verified -> Passed
//	    \          \              \             \
//	     +----------+--------------+-------------+--> Failed
//
// Recompress suites have no compared stage and go straight from
// ChainBuilt to Passed.
//
// The optional build command runs once before any input. Inputs run in
// table order; the first failure marks its input Failed and stops the
// run. With Jobs > 1 distinct inputs run concurrently and the first
// failure cancels the others, killing their in-flight processes.
//
// Every transition and every produced artifact is reported to an optional
// Recorder (the run ledger in production).
package harness
