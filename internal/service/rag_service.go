// Package service composes chunking, the session store, embeddings, the
// vector index and answer generation into the operations the HTTP API, CLI
// and TUI call.
package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"docqa/internal/chunker"
	"docqa/internal/domain"
	"docqa/internal/embedding"
	"docqa/internal/extract"
	"docqa/internal/generation"
	"docqa/internal/lexical"
	"docqa/internal/logging"
	"docqa/internal/vectorstore"
)

const (
	DefaultExtractTimeout   = 20 * time.Second
	DefaultEmbedBatchSize   = 32
	DefaultSummarySentences = 3
)

// NoRelevantContent is the answer text used when retrieval finds nothing
// worth passing to the generator.
const NoRelevantContent = "I couldn't find content relevant to your question in this document."

// Summarizer produces a short overview of a document.
type Summarizer interface {
	Summarize(text string, maxSentences int) string
}

// Extractor turns uploaded bytes into text. *extract.Extractor is the
// production implementation.
type Extractor interface {
	Extract(ctx context.Context, name string, data []byte, progress extract.Progress) (extract.Result, error)
}

// Options tunes the orchestrator. Zero values select defaults.
type Options struct {
	ChunkSize int
	Overlap   int
	TopK      int
	// MinScore is the vector similarity a match must exceed to be used as
	// answer context.
	MinScore         float64
	ExtractTimeout   time.Duration
	EmbedBatchSize   int
	EmbedRPS         float64
	SummarySentences int
	Retry            RetryPolicy
	Summarizer       Summarizer
	// Extractor defaults to extract.New.
	Extractor Extractor
	Logger    *slog.Logger
}

// Service is the retrieval orchestrator. It is safe for concurrent use.
type Service struct {
	chunker    *chunker.WindowChunker
	sessions   *lexical.Store
	index      vectorstore.Index
	embedder   embedding.Embedder
	generator  generation.Generator
	extractor  Extractor
	summarizer Summarizer
	limiter    *rate.Limiter
	retry      RetryPolicy
	log        *slog.Logger

	topK             int
	minScore         float64
	extractTimeout   time.Duration
	batchSize        int
	summarySentences int
}

// New wires a Service. index and embedder may be nil, in which case every
// namespace operation fails with a configuration error.
func New(sessions *lexical.Store, index vectorstore.Index, embedder embedding.Embedder, generator generation.Generator, opts Options) (*Service, error) {
	if sessions == nil {
		return nil, domain.InvalidParametersf("session store is required")
	}
	if generator == nil {
		return nil, domain.InvalidParametersf("generator is required")
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = chunker.DefaultChunkSize
		if opts.Overlap == 0 {
			opts.Overlap = chunker.DefaultOverlap
		}
	}
	ch, err := chunker.NewWindowChunker(opts.ChunkSize, opts.Overlap)
	if err != nil {
		return nil, err
	}
	if opts.TopK <= 0 {
		opts.TopK = lexical.DefaultTopK
	}
	if opts.ExtractTimeout <= 0 {
		opts.ExtractTimeout = DefaultExtractTimeout
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = DefaultEmbedBatchSize
	}
	if opts.SummarySentences <= 0 {
		opts.SummarySentences = DefaultSummarySentences
	}
	limit := rate.Inf
	burst := 0
	if opts.EmbedRPS > 0 {
		limit = rate.Limit(opts.EmbedRPS)
		burst = 1
	}
	log := logging.OrDiscard(opts.Logger)
	if opts.Extractor == nil {
		opts.Extractor = extract.New(log)
	}
	return &Service{
		chunker:          ch,
		sessions:         sessions,
		index:            index,
		embedder:         embedder,
		generator:        generator,
		extractor:        opts.Extractor,
		summarizer:       opts.Summarizer,
		limiter:          rate.NewLimiter(limit, burst),
		retry:            opts.Retry.withDefaults(),
		log:              log,
		topK:             opts.TopK,
		minScore:         opts.MinScore,
		extractTimeout:   opts.ExtractTimeout,
		batchSize:        opts.EmbedBatchSize,
		summarySentences: opts.SummarySentences,
	}, nil
}

// Sessions exposes the underlying store, mainly for the janitor loop.
func (s *Service) Sessions() *lexical.Store { return s.sessions }

func (s *Service) vectorDeps() error {
	if s.index == nil {
		return domain.Configurationf("no vector store configured")
	}
	if s.embedder == nil {
		return domain.Configurationf("no embedder configured")
	}
	return nil
}
