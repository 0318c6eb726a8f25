// Package preflight validates that ragcontext can serve queries before a
// long-running command starts.
//
// The checks cover the corpus file, the data directory (write access and
// free disk space), the embedding cache and the embedding provider. Corpus
// and data directory failures are critical; cache and provider problems
// only degrade retrieval to lexical ranking.
//
//	checker := preflight.New(preflight.WithOutput(os.Stdout))
//	results := checker.RunAll(ctx, target)
//	if checker.HasCriticalFailures(results) {
//	    // refuse to start
//	}
package preflight
