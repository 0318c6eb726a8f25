package preflight

import (
	"context"
	"fmt"
	"time"

	"github.com/Aman-CERP/ragcontext/internal/chunk"
	"github.com/Aman-CERP/ragcontext/internal/corpus"
	"github.com/Aman-CERP/ragcontext/internal/embed"
	ragerrors "github.com/Aman-CERP/ragcontext/internal/errors"
	"github.com/Aman-CERP/ragcontext/internal/store"
)

// ProviderProbe is embedded to check that the provider answers.
const ProviderProbe = "justicia social"

// providerTimeout bounds the provider probe.
const providerTimeout = 15 * time.Second

// CheckCorpus checks that the corpus file parses. A missing or malformed
// corpus still serves, but every query returns nothing.
func (c *Checker) CheckCorpus(path string, defaults chunk.Metadata) CheckResult {
	result := CheckResult{
		Name:     "corpus",
		Required: true,
		Details:  path,
	}

	docs, err := corpus.Load(path, defaults)
	if err != nil {
		result.Status = StatusFail
		result.Message, result.Fix = explain(err)
		return result
	}
	if len(docs) == 0 {
		result.Status = StatusWarn
		result.Message = "corpus is empty"
		result.Fix = "run 'ragcontext ingest <dir>' to build it from text files"
		return result
	}

	lines := 0
	for _, d := range docs {
		lines += len(d.Lines)
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d documents, %d lines", len(docs), lines)
	return result
}

// CheckEmbeddingCache checks that the cache file matches the model and the
// current corpus revision. A stale or missing cache is refilled lazily, so
// this is never critical.
func (c *Checker) CheckEmbeddingCache(path, model, corpusPath string) CheckResult {
	result := CheckResult{
		Name:    "embedding_cache",
		Details: path,
	}
	if path == "" {
		result.Status = StatusWarn
		result.Message = "no cache path configured; embeddings are kept in memory"
		result.Fix = "set embeddings.cache_path"
		return result
	}

	cache := store.NewEmbeddingCache(path, model, corpus.Fingerprint(corpusPath))
	if err := cache.Load(); err != nil {
		result.Status = StatusWarn
		msg, _ := explain(err)
		result.Message = msg + "; it will be rebuilt"
		result.Fix = "run 'ragcontext warm'"
		return result
	}
	if cache.Len() == 0 {
		result.Status = StatusWarn
		result.Message = "cache is empty; queries embed chunks on demand"
		result.Fix = "run 'ragcontext warm'"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d vectors for %s", cache.Len(), model)
	return result
}

// CheckProvider embeds a probe text. Without a provider retrieval is
// lexical-only, which is reported as a warning.
func (c *Checker) CheckProvider(ctx context.Context, e embed.Embedder) CheckResult {
	result := CheckResult{Name: "embedding_provider"}
	if e == nil {
		result.Status = StatusWarn
		result.Message = "no provider; retrieval is lexical-only"
		result.Fix = "set OPENAI_API_KEY, or choose a provider with --embedder"
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()

	start := time.Now()
	vec, err := e.Embed(ctx, ProviderProbe)
	if err != nil {
		result.Status = StatusFail
		result.Message, result.Fix = explain(err)
		return result
	}
	if len(vec) == 0 {
		result.Status = StatusFail
		result.Message = "provider returned an empty vector"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s, %d dims, %s", e.ModelName(), len(vec), time.Since(start).Round(time.Millisecond))
	return result
}

// explain splits an error into its user message and suggestion.
func explain(err error) (msg, fix string) {
	if re, ok := ragerrors.As(err); ok {
		return re.Message, re.Suggestion
	}
	return err.Error(), ""
}
