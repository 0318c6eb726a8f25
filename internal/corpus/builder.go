package corpus

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/ragcontext/internal/chunk"
)

// Builder turns documents into chunks.
type Builder struct {
	cleaner     *chunk.Cleaner
	splitter    *chunk.Splitter
	tokenizer   *chunk.Tokenizer
	concurrency int
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithConcurrency bounds how many documents are processed at once.
func WithConcurrency(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBuilder creates a builder. Nil components fall back to defaults.
func NewBuilder(cleaner *chunk.Cleaner, splitter *chunk.Splitter, tokenizer *chunk.Tokenizer, opts ...BuilderOption) *Builder {
	if cleaner == nil {
		cleaner = chunk.MustNewCleaner(nil)
	}
	if splitter == nil {
		splitter = chunk.NewSplitter()
	}
	if tokenizer == nil {
		tokenizer = chunk.NewTokenizer(nil)
	}
	b := &Builder{
		cleaner:     cleaner,
		splitter:    splitter,
		tokenizer:   tokenizer,
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Tokenizer returns the tokenizer chunks are built with. Queries must use
// the same one.
func (b *Builder) Tokenizer() *chunk.Tokenizer {
	return b.tokenizer
}

// Build cleans, splits and tokenizes every document. Documents are processed
// in parallel; ids are assigned afterwards in document order, so they are
// dense from 0 and stable for identical input.
func (b *Builder) Build(ctx context.Context, docs []Document) ([]*chunk.Chunk, error) {
	perDoc := make([][]*chunk.Chunk, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc := docs[i]
			meta := doc.Meta()
			pieces := b.splitter.ChunkLines(b.cleaner.CleanLines(doc.Lines))
			out := make([]*chunk.Chunk, 0, len(pieces))
			for _, text := range pieces {
				out = append(out, chunk.NewChunk(0, text, meta, b.tokenizer))
			}
			perDoc[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var chunks []*chunk.Chunk
	for _, cs := range perDoc {
		for _, c := range cs {
			c.ID = len(chunks)
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}
