package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/hybrid-doc-qa/internal/config"
	"github.com/kirillkom/hybrid-doc-qa/internal/core/ports"
	"github.com/kirillkom/hybrid-doc-qa/internal/core/usecase"
	"github.com/kirillkom/hybrid-doc-qa/internal/infrastructure/chunking"
	"github.com/kirillkom/hybrid-doc-qa/internal/infrastructure/extractor"
	kg "github.com/kirillkom/hybrid-doc-qa/internal/infrastructure/graph/neo4j"
	"github.com/kirillkom/hybrid-doc-qa/internal/infrastructure/index/bm25"
	"github.com/kirillkom/hybrid-doc-qa/internal/infrastructure/index/tfidf"
	"github.com/kirillkom/hybrid-doc-qa/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/hybrid-doc-qa/internal/infrastructure/repository/memory"
	"github.com/kirillkom/hybrid-doc-qa/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/hybrid-doc-qa/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Metrics *metrics.ServerMetrics

	IngestUC  ports.DocumentIngestor
	QueryUC   ports.DocumentQueryService
	ChatUC    ports.ChatService
	Reader    ports.DocumentReader
	Retrieval ports.RetrievalFacade

	closeFn func(context.Context)
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	serverMetrics := metrics.NewServerMetrics("docqa-api")

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	store := memory.NewChunkStore()
	denseIndex := tfidf.New(logger)
	sparseIndex := bm25.New(logger)

	retrieval := usecase.NewRetrievalService(
		store,
		denseIndex,
		sparseIndex,
		usecase.RetrievalOptions{
			TopK:         cfg.TopK,
			SparseWeight: cfg.SparseWeight,
			DenseWeight:  cfg.DenseWeight,
		},
		logger,
		serverMetrics,
	)

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaModel, ollama.Options{
		Temperature: cfg.OllamaTemperature,
		TopP:        cfg.OllamaTopP,
		NumCtx:      cfg.OllamaNumCtx,
	})
	generator := ollama.NewGenerator(ollamaClient)

	// The knowledge graph is an optional capability: absent unless configured.
	var knowledgeGraph ports.KnowledgeGraph
	var kgLookup *kg.Lookup
	if cfg.Neo4jURI != "" {
		kgLookup, err = kg.New(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, logger)
		if err != nil {
			return nil, fmt.Errorf("init knowledge graph: %w", err)
		}
		knowledgeGraph = kgLookup
		logger.Info("knowledge graph lookup enabled", "uri", cfg.Neo4jURI)
	}

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	textExtractor := extractor.New(storage)

	ingestUC := usecase.NewIngestDocumentUseCase(
		store, storage, textExtractor, chunker, retrieval, logger, serverMetrics)
	queryUC := usecase.NewQueryUseCase(retrieval, generator)
	chatUC := usecase.NewChatUseCase(
		retrieval, generator, store, knowledgeGraph,
		cfg.FallbackTerms, cfg.MaxExchanges, logger)

	return &App{
		Config:  cfg,
		Metrics: serverMetrics,

		IngestUC:  ingestUC,
		QueryUC:   queryUC,
		ChatUC:    chatUC,
		Reader:    store,
		Retrieval: retrieval,

		closeFn: func(ctx context.Context) {
			if kgLookup != nil {
				if err := kgLookup.Close(ctx); err != nil {
					logger.Warn("close knowledge graph driver", "error", err)
				}
			}
		},
	}, nil
}

func (a *App) Close(ctx context.Context) {
	if a.closeFn != nil {
		a.closeFn(ctx)
	}
}
