// Package preflight runs the environment checks behind "amanlex doctor"
// and the first start of "amanlex serve".
//
// The package validates:
//   - Configuration validity
//   - Corpus file presence and shape
//   - Write permissions and free space in the data directory
//   - File descriptor limits (minimum 256)
//   - Reachability of the configured embedding and generation models
//
// Model checks are warnings only: search falls back to lexical retrieval
// and answers fall back to extractive text.
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, preflight.Target{DataDir: dir, Config: cfg})
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
