package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/pipeline"
	"github.com/ternarybob/scriptor/internal/services/documents"
	"github.com/ternarybob/scriptor/internal/services/embeddings"
	"github.com/ternarybob/scriptor/internal/services/mcp"
	"github.com/ternarybob/scriptor/internal/services/scraper"
	"github.com/ternarybob/scriptor/internal/services/search"
	"github.com/ternarybob/scriptor/internal/services/splitter"
	"github.com/ternarybob/scriptor/internal/storage"
)

func main() {
	// Load configuration
	configPath := os.Getenv("SCRIPTOR_CONFIG")
	if configPath == "" {
		configPath = "scriptor.toml"
	}

	config, err := common.LoadFromFiles(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Minimal logger for the MCP server (console only, warn level) to avoid
	// cluttering the stdio transport.
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	// Initialize storage with the embedding and splitting services
	embedder, err := embeddings.NewProvider(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize embeddings")
	}
	splitterService := splitter.NewService(config.Splitter, logger)

	store, err := storage.NewDocumentStorage(logger, config, embedder, splitterService)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer store.Close()

	// Pipeline: in-process manager, or a remote client when a server URL is
	// configured so indexing runs on the long-lived daemon instead.
	pipe := pipeline.NewPipeline(logger, config, store, scraper.NewLocalScraper(logger))
	if err := pipe.Start(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start pipeline")
	}
	defer pipe.Stop()

	// Document services
	retriever := search.NewRetriever(logger, config, store)
	docs := documents.NewService(logger, store, retriever)

	// Create MCP server with the documentation tools registered
	mcpServer := mcp.NewServer(logger, docs, pipe)

	// Start server (blocks on stdio)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
