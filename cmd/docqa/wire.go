package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/embedding"
	"docqa/internal/embedding/hashing"
	embopenai "docqa/internal/embedding/openai"
	"docqa/internal/generation"
	"docqa/internal/generation/extractive"
	genopenai "docqa/internal/generation/openai"
	"docqa/internal/lexical"
	"docqa/internal/logging"
	"docqa/internal/service"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/memory"
	"docqa/internal/vectorstore/pinecone"
	"docqa/internal/vectorstore/qdrant"
	"docqa/internal/vectorstore/sqlite"
)

// app holds the assembled components of one process.
type app struct {
	cfg      *config.AppConfig
	log      *slog.Logger
	svc      *service.Service
	sessions *lexical.Store
	closers  []io.Closer
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn("close failed", "err", err)
		}
	}
}

// buildApp assembles components. Vector store credentials are not checked
// here; a missing key surfaces as a configuration error on first use.
func buildApp(cfg *config.AppConfig, logOut io.Writer) (*app, error) {
	log := logging.New(cfg.Log.Level, cfg.Log.Format, logOut)

	emb, err := buildEmbedder(cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	gen, err := buildGenerator(cfg.Generator)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	index, closer, err := buildIndex(cfg.VectorStore, log)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}

	sessions := lexical.NewStore(lexical.StoreConfig{
		TTL:         cfg.Sessions.TTL(),
		MaxSessions: cfg.Sessions.MaxSessions,
		Logger:      log,
	})
	svc, err := service.New(sessions, index, emb, gen, service.Options{
		ChunkSize:        cfg.Chunker.ChunkSize,
		Overlap:          cfg.Chunker.Overlap,
		TopK:             cfg.Retrieval.TopK,
		MinScore:         cfg.Retrieval.MinScore,
		ExtractTimeout:   cfg.Extraction.Timeout(),
		EmbedBatchSize:   cfg.Embedder.BatchSize,
		EmbedRPS:         cfg.Embedder.RequestsPerSecond,
		SummarySentences: cfg.Generator.MaxSentences,
		Summarizer:       extractive.New(cfg.Generator.MaxSentences),
		Retry: service.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.Retry.MaxDelayMS) * time.Millisecond,
		},
		Logger: log,
	})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, svc: svc, sessions: sessions}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	log.Debug("components assembled",
		"embedder", emb.Name(), "generator", gen.Name(), "vector_store", cfg.VectorStore.Type)
	return a, nil
}

// requireDurableStore rejects the in-process store for one-shot commands,
// whose vectors would be gone when the command exits.
func requireDurableStore(cfg config.VectorStoreConfig) error {
	if cfg.Type == "memory" || cfg.Type == "" {
		return domain.Configurationf("vector_store.type %q does not persist between commands; use sqlite, qdrant or pinecone", "memory")
	}
	return nil
}

func buildEmbedder(cfg config.EmbedderConfig) (embedding.Embedder, error) {
	switch cfg.Type {
	case "hashing", "":
		return hashing.NewEmbedder(cfg.Dimension)
	case "openai":
		oc := cfg.OpenAI
		if oc == nil {
			oc = &config.OpenAIConfig{}
		}
		return embopenai.NewClient(embopenai.Config{
			BaseURL:   oc.BaseURL,
			APIKeyEnv: oc.APIKeyEnv,
			Model:     oc.Model,
			Timeout:   oc.Timeout(),
		})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func buildGenerator(cfg config.GeneratorConfig) (generation.Generator, error) {
	switch cfg.Type {
	case "extractive", "":
		return extractive.New(cfg.MaxSentences), nil
	case "openai":
		oc := cfg.OpenAI
		if oc == nil {
			oc = &config.OpenAIConfig{}
		}
		return genopenai.NewClient(genopenai.Config{
			BaseURL:   oc.BaseURL,
			APIKeyEnv: oc.APIKeyEnv,
			Model:     oc.Model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   oc.Timeout(),
		})
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Type)
	}
}

func buildIndex(cfg config.VectorStoreConfig, log *slog.Logger) (vectorstore.Index, io.Closer, error) {
	var factory vectorstore.Factory
	switch cfg.Type {
	case "memory", "":
		return memory.NewStorage(), nil, nil
	case "sqlite":
		path := ""
		if cfg.SQLite != nil {
			path = cfg.SQLite.Path
		}
		factory = func(context.Context) (vectorstore.Index, error) {
			return sqlite.Open(path)
		}
	case "qdrant":
		qc := cfg.Qdrant
		if qc == nil {
			qc = &config.QdrantConfig{}
		}
		factory = func(context.Context) (vectorstore.Index, error) {
			return qdrant.NewStorage(qdrant.Config{
				URL:        qc.URL,
				APIKey:     os.Getenv(qc.APIKeyEnv),
				Collection: qc.Collection,
				Distance:   qc.Distance,
				Timeout:    qc.Timeout(),
			})
		}
	case "pinecone":
		pc := cfg.Pinecone
		if pc == nil {
			pc = &config.PineconeConfig{APIKeyEnv: "PINECONE_API_KEY", IndexEnv: "PINECONE_INDEX"}
		}
		factory = func(ctx context.Context) (vectorstore.Index, error) {
			return pinecone.NewStorage(ctx, pinecone.Config{
				APIKey:    os.Getenv(pc.APIKeyEnv),
				IndexName: os.Getenv(pc.IndexEnv),
				Host:      pc.Host,
				Timeout:   pc.Timeout(),
			})
		}
	default:
		return nil, nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
	lazy := vectorstore.NewLazy(func(ctx context.Context) (vectorstore.Index, error) {
		idx, err := factory(ctx)
		if err != nil {
			log.Error("vector store unavailable", "type", cfg.Type, "err", err)
			return nil, err
		}
		log.Info("vector store ready", "type", cfg.Type)
		return idx, nil
	})
	return lazy, lazy, nil
}
