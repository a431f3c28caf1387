package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/chunk"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/combine"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/config"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/embed"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/generate"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/index"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/ingest"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/retrieve"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/search"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/store"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/terms"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/websearch"
)

// On-disk layout under Stores.DataDir.
const (
	chunkStoreFile  = "chunks.db"
	lexicalIndexDir = "lexical.bleve"
	vectorStoreFile = "vectors.hnsw"
	ingestLockFile  = "ingest.lock"
)

// app holds every wired component for one CLI invocation.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	chunks   *store.SQLiteChunkStore
	lexical  *store.BleveLexicalIndex
	vectors  store.VectorStore
	embedder embed.Embedder
	terms    *terms.Index
	pipeline *ingest.Pipeline
	checker  *index.ConsistencyChecker

	// generator and web are nil when their backends are not configured.
	generator *generate.OllamaGenerator
	web       websearch.Searcher
}

// loadConfig resolves configuration for the current working directory,
// honoring the --config flag.
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.Load(cwd, configPath)
}

// openApp loads config and wires the stores, embedder, pipeline, and
// retrieval path. The caller must Close the returned app.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openAppWithConfig(ctx, cfg)
}

func openAppWithConfig(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := slog.Default()

	if err := os.MkdirAll(cfg.Stores.DataDir, 0o755); err != nil {
		return nil, err
	}

	chunks, err := store.NewSQLiteChunkStore(filepath.Join(cfg.Stores.DataDir, chunkStoreFile))
	if err != nil {
		return nil, err
	}

	lexical, err := store.NewBleveLexicalIndex(filepath.Join(cfg.Stores.DataDir, lexicalIndexDir))
	if err != nil {
		_ = chunks.Close()
		return nil, err
	}

	vectors, err := openVectorStore(ctx, cfg, logger)
	if err != nil {
		_ = lexical.Close()
		_ = chunks.Close()
		return nil, err
	}

	ollama := embed.NewOllamaEmbedder(embed.OllamaConfig{
		Host:       cfg.Embeddings.OllamaHost,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		BatchSize:  cfg.Embeddings.BatchSize,
	}, logger)
	embedder, err := embed.NewCachedEmbedder(ollama, cfg.Embeddings.CacheSize)
	if err != nil {
		_ = vectors.Close()
		_ = lexical.Close()
		_ = chunks.Close()
		return nil, err
	}

	var generator *generate.OllamaGenerator
	if cfg.Generation.Model != "" {
		generator = generate.NewOllamaGenerator(generate.Config{
			Host:    cfg.Generation.OllamaHost,
			Model:   cfg.Generation.Model,
			Timeout: cfg.Generation.Timeout,
		}, logger)
	}

	var extractor terms.Extractor
	if cfg.Terms.UseLLM && generator != nil {
		extractor = generator
	}
	termIndex := terms.NewIndex(terms.Config{
		MaxTerms:   cfg.Terms.MaxTerms,
		MinDocFreq: cfg.Terms.MinDocFreq,
		UseLLM:     cfg.Terms.UseLLM,
	}, extractor, logger)

	splitter, err := chunk.NewSplitter(chunk.Options{
		MaxSize: cfg.Chunking.MaxSize,
		MinSize: cfg.Chunking.MinSize,
		Overlap: cfg.Chunking.Overlap,
		Enabled: cfg.Chunking.Enabled,
	})
	if err != nil {
		_ = embedder.Close()
		_ = vectors.Close()
		_ = lexical.Close()
		_ = chunks.Close()
		return nil, err
	}

	pipeline := ingest.NewPipeline(splitter, embedder, vectors, lexical, chunks, termIndex,
		filepath.Join(cfg.Stores.DataDir, ingestLockFile), logger)

	var web websearch.Searcher
	if cfg.WebSearchAvailable() {
		client, err := websearch.NewSerperClient(websearch.Config{
			APIKey:   cfg.WebSearch.APIKey,
			Endpoint: cfg.WebSearch.Endpoint,
		}, logger)
		if err != nil {
			_ = embedder.Close()
			_ = vectors.Close()
			_ = lexical.Close()
			_ = chunks.Close()
			return nil, err
		}
		web = client
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		chunks:    chunks,
		lexical:   lexical,
		vectors:   vectors,
		embedder:  embedder,
		terms:     termIndex,
		pipeline:  pipeline,
		checker:   index.NewConsistencyChecker(chunks, lexical, vectors, logger),
		generator: generator,
		web:       web,
	}, nil
}

// openVectorStore selects the vector backend from config.
func openVectorStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.VectorStore, error) {
	switch cfg.Stores.VectorBackend {
	case "chroma":
		return store.NewChromaVectorStore(ctx, store.ChromaConfig{
			URL:        cfg.Stores.ChromaURL,
			Collection: cfg.Stores.ChromaCollection,
			Dimensions: cfg.Embeddings.Dimensions,
		}, logger)
	default:
		path := filepath.Join(cfg.Stores.DataDir, vectorStoreFile)
		return store.NewHNSWStore(path, cfg.Embeddings.Dimensions)
	}
}

// orchestrator builds the retrieval path over the app's components. The
// domain vocabulary is rebuilt from the stored corpus first so routing
// reflects what is actually indexed.
func (a *app) orchestrator(ctx context.Context) (*retrieve.Orchestrator, error) {
	if err := a.pipeline.RefreshTerms(ctx); err != nil {
		a.logger.Warn("vocabulary refresh failed, routing may be stale",
			slog.String("error", err.Error()))
	}

	webEnabled := a.web != nil
	classifier := search.NewClassifier(a.terms, webEnabled)
	fusion := search.NewRRFFusionWithK(a.cfg.Retrieval.RRFConstant)
	combiner := combine.NewCombiner(a.chunks, a.logger)

	opts := retrieve.Options{
		NResults:      a.cfg.Retrieval.NResults,
		CombineChunks: a.cfg.Retrieval.CombineChunks,
		Weights: search.Weights{
			Vector:  a.cfg.Retrieval.VectorWeight,
			Lexical: a.cfg.Retrieval.LexicalWeight,
		},
		WebResultsCount: a.cfg.WebSearch.ResultsCount,
		Timeout:         a.cfg.Retrieval.Timeout,
	}

	return retrieve.NewOrchestrator(classifier, fusion, combiner,
		a.embedder, a.vectors, a.lexical, a.web, opts, a.logger), nil
}

// Close releases every store. Safe to call once.
func (a *app) Close() {
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.vectors != nil {
		_ = a.vectors.Close()
	}
	if a.lexical != nil {
		_ = a.lexical.Close()
	}
	if a.chunks != nil {
		_ = a.chunks.Close()
	}
}
