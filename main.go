package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/claimsight/claimsight/api"
	"github.com/claimsight/claimsight/chunker"
	"github.com/claimsight/claimsight/config"
	"github.com/claimsight/claimsight/database"
	"github.com/claimsight/claimsight/embeddings"
	"github.com/claimsight/claimsight/index"
	"github.com/claimsight/claimsight/ingestion"
	"github.com/claimsight/claimsight/llm"
	"github.com/claimsight/claimsight/query"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	switch os.Args[1] {
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	case "ingest":
		ingestCmd(cfg, logger, os.Args[2:])
	case "query":
		queryCmd(cfg, logger, os.Args[2:])
	case "stats":
		statsCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// openStore builds the configured vector backend. The returned cleanup
// persists the flat index (when that backend is active) and releases the
// Postgres pool.
func openStore(ctx context.Context, cfg config.Config, logger *log.Logger) (index.Store, func(), error) {
	switch cfg.VectorBackend {
	case config.BackendFlat:
		store, err := index.NewFlat(cfg.Embeddings.Dimension, cfg.IndexPath, cfg.MetadataPath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open flat index: %w", err)
		}
		cleanup := func() {
			if err := store.Save(context.Background()); err != nil {
				logger.Printf("save index: %v", err)
			}
		}
		return store, cleanup, nil
	case config.BackendPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connection: %w", err)
		}
		if err := database.EnsureSchema(ctx, pool, cfg.Embeddings.Dimension); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return index.NewPostgres(pool, cfg.Embeddings.Dimension, logger), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

func serveCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", cfg.HTTPAddr, "address to listen on")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("vector store setup: %v", err)
	}
	defer cleanup()

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}
	llmClient := llm.NewClient(cfg)

	engine := query.NewEngine(store, embedder, llmClient, logger)
	svc := ingestion.NewService(store, embedder, chunker.New(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap, cfg.Chunking.MinChunkSize), logger)
	server := api.New(cfg, store, engine, svc, logger)

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("http shutdown: %v", err)
		}
	}()

	logger.Printf("listening on %s (backend: %s)", *addr, cfg.VectorBackend)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("http server: %v", err)
	}
}

func ingestCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	file := flags.String("file", "", "path to a .txt or .pdf document")
	dir := flags.String("dir", "", "directory of documents to ingest")
	docType := flags.String("type", "other", "document type (claim, policy, bill, discharge)")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ingest flags: %v", err)
	}
	if strings.TrimSpace(*file) == "" && strings.TrimSpace(*dir) == "" {
		logger.Fatal("ingest requires -file or -dir")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("vector store setup: %v", err)
	}
	defer cleanup()

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}

	svc := ingestion.NewService(store, embedder, chunker.New(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap, cfg.Chunking.MinChunkSize), logger)

	paths := []string{}
	if strings.TrimSpace(*file) != "" {
		paths = append(paths, *file)
	}
	if strings.TrimSpace(*dir) != "" {
		entries, err := os.ReadDir(*dir)
		if err != nil {
			logger.Fatalf("read directory: %v", err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(*dir, entry.Name())
			if ingestion.DetectFormat(path) == ingestion.FormatUnknown {
				continue
			}
			paths = append(paths, path)
		}
	}

	for _, path := range paths {
		doc, err := svc.IngestFile(ctx, path, ingestion.NormalizeDocType(*docType))
		if err != nil {
			logger.Fatalf("ingestion failed for %s: %v", path, err)
		}
		fmt.Printf("Indexed %s as %s (%d chunks)\n", doc.Filename, doc.DocID, doc.ChunkCount)
	}
}

func queryCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("query", flag.ExitOnError)
	question := flags.String("question", "", "question to ask about the indexed documents")
	topK := flags.Int("top", cfg.TopK, "number of chunks to retrieve")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse query flags: %v", err)
	}
	if strings.TrimSpace(*question) == "" {
		logger.Fatal("query requires -question")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("vector store setup: %v", err)
	}
	defer cleanup()

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}
	llmClient := llm.NewClient(cfg)

	engine := query.NewEngine(store, embedder, llmClient, logger)

	result, err := engine.Answer(ctx, *question, nil, *topK)
	if err != nil {
		logger.Fatalf("query failed: %v", err)
	}

	fmt.Println(result.Answer)
	fmt.Printf("\nConfidence: %.2f\n", result.Confidence)
	if result.Degraded {
		fmt.Println("(answer produced by extraction fallback)")
	}
	if len(result.Sources) > 0 {
		fmt.Println("\nSources:")
		for idx, source := range result.Sources {
			location := source.Filename
			if source.PageNumber != nil {
				location = fmt.Sprintf("%s, page %d", source.Filename, *source.PageNumber)
			}
			fmt.Printf("%d. %s (%s, similarity %.3f)\n", idx+1, location, source.DocType, source.SimilarityScore)
		}
	}
}

func statsCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("stats", flag.ExitOnError)
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse stats flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("vector store setup: %v", err)
	}
	defer cleanup()

	stats, err := store.Stats(ctx)
	if err != nil {
		logger.Fatalf("index stats: %v", err)
	}

	fmt.Printf("Chunks:    %d\n", stats.TotalChunks)
	fmt.Printf("Documents: %d\n", stats.TotalDocuments)
	fmt.Printf("Dimension: %d\n", stats.EmbeddingDim)
	fmt.Printf("Size:      %d bytes\n", stats.IndexSizeBytes)
}

func printUsage() {
	fmt.Println("Usage: claimsight <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  serve    Run the HTTP API")
	fmt.Println("  ingest   Index claim documents (use -file or -dir, and -type)")
	fmt.Println("  query    Ask a question about indexed documents (use -question)")
	fmt.Println("  stats    Show vector index statistics")
}
