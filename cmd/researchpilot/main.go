// Package main is the ResearchPilot CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/researchpilot/internal/assistant"
	"github.com/hyperjump/researchpilot/internal/cli"
	"github.com/hyperjump/researchpilot/internal/collection"
	"github.com/hyperjump/researchpilot/internal/config"
	"github.com/hyperjump/researchpilot/internal/embedding"
	"github.com/hyperjump/researchpilot/internal/extract"
	"github.com/hyperjump/researchpilot/internal/indexer"
	"github.com/hyperjump/researchpilot/internal/llm"
	"github.com/hyperjump/researchpilot/internal/metrics"
	"github.com/hyperjump/researchpilot/internal/models"
	"github.com/hyperjump/researchpilot/internal/search"
	"github.com/hyperjump/researchpilot/internal/server"
	"github.com/hyperjump/researchpilot/internal/storage"
	"github.com/hyperjump/researchpilot/internal/watcher"
	"github.com/hyperjump/researchpilot/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/researchpilot/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}
	command, args := os.Args[1], os.Args[2:]
	var err error
	switch command {
	case "server":
		err = runServer(args)
	case "ingest":
		err = runIngest(args, os.Stdout)
	case "search":
		err = runSearch(args, os.Stdout)
	case "analyze":
		err = runAnalyze(args, os.Stdout)
	case "stats":
		err = runStats(args, os.Stdout)
	case "clear":
		err = runClear(args, os.Stdout)
	case "version", "--version", "-v":
		fmt.Printf("researchpilot version %s\n", version)
	case "help", "--help", "-h":
		printUsage(os.Stdout)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage(os.Stdout)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Components is the pipeline built once at startup and shared by every handler.
type Components struct {
	Embedder   embedding.Embedder
	Collection *collection.Collection
	Retriever  *search.Retriever
	Assistant  *assistant.Assistant
	Indexer    *indexer.Indexer
}

// Close releases the embedder and the collection's database.
func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Collection != nil {
		_ = c.Collection.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	logger.Info("paths resolved",
		zap.String("vector_db", cfg.Storage.DBPath),
		zap.String("data_dir", cfg.Storage.DataDir),
		zap.String("collection", cfg.Storage.CollectionName))

	embedder, err := embedding.New(&cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabaseFile())
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	coll, err := collection.Open(ctx, store, cfg.Storage.CollectionName, embedder.Dimensions(),
		collection.WithLogger(logger),
		collection.WithDBPath(cfg.Storage.DBPath))
	if err != nil {
		_ = store.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}

	chunker, err := indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		_ = coll.Close()
		_ = embedder.Close()
		return nil, err
	}
	idx := indexer.NewIndexer(coll, embedder, chunker, extract.NewExtractor(), cfg.Storage.DataDir,
		indexer.WithLogger(logger),
		indexer.WithExtensions(cfg.Chunking.Extensions))

	retriever := search.NewRetriever(embedder, coll,
		search.WithLogger(logger),
		search.WithMaxTopK(cfg.Search.MaxTopK))

	// The completer stays a nil interface when no key is configured.
	var completer assistant.Completer
	if cfg.LLM.Enabled() {
		logger.Info("LLM API key found", zap.String("key", config.MaskKey(cfg.LLM.APIKey)))
		completer = llm.NewClient(&cfg.LLM, llm.WithLogger(logger))
	} else {
		logger.Warn("GROQ_API_KEY not found in environment. AI responses will be disabled.")
	}
	asst := assistant.New(retriever, completer,
		assistant.WithLogger(logger),
		assistant.WithMaxTopK(cfg.Search.MaxTopK))

	return &Components{
		Embedder:   embedder,
		Collection: coll,
		Retriever:  retriever,
		Assistant:  asst,
		Indexer:    idx,
	}, nil
}

// setup loads config, builds the logger, and initializes components.
func setup(ctx context.Context, configPath string, debug bool) (*Components, *config.Config, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode, cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, err
	}
	return components, cfg, logger, nil
}

func runServer(args []string) error {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, cfg, logger, err := setup(ctx, *configPath, *debug)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer components.Close()

	metrics.Register()

	if cfg.Watch.Enabled {
		w := watcher.NewWatcher(cfg.Storage.DataDir, cfg.Chunking.Extensions, components.Indexer,
			watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer w.Stop()
	}

	srv := server.NewServer(server.Dependencies{
		Retriever:      components.Retriever,
		Assistant:      components.Assistant,
		Indexer:        components.Indexer,
		Collection:     components.Collection,
		EmbeddingModel: components.Embedder.Model(),
	}, cfg, logger, server.WithVersion(version))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	logger.Info("Server is ready to accept requests", zap.Int("documents", components.Collection.Count()))

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func runIngest(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(searchArgsReorder(args))

	ctx := context.Background()
	components, _, logger, err := setup(ctx, *configPath, false)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer components.Close()

	var result *models.IngestResult
	if fs.NArg() == 0 {
		result, err = components.Indexer.IngestDirectory(ctx)
	} else {
		result, err = ingestFiles(ctx, components.Indexer, fs.Args())
	}
	if err != nil {
		return err
	}
	return cli.WriteIngestResult(out, result, cli.ParseFormat(*output))
}

// ingestFiles ingests each named file, skipping (and reporting) the ones that fail.
func ingestFiles(ctx context.Context, idx *indexer.Indexer, paths []string) (*models.IngestResult, error) {
	result := &models.IngestResult{Status: models.IngestStatusSuccess}
	for _, p := range paths {
		n, err := idx.IndexFile(ctx, p)
		if err != nil {
			if errors.Is(err, models.ErrEmbedding) || errors.Is(err, models.ErrIndex) {
				return nil, err
			}
			result.FilesFailed = append(result.FilesFailed, fmt.Sprintf("%s (%v)", p, err))
			continue
		}
		result.DocumentsIngested += n
		result.FilesProcessed++
	}
	if result.FilesProcessed == 0 {
		result.Status = models.IngestStatusWarning
	}
	result.Message = fmt.Sprintf("Ingested %d document chunks", result.DocumentsIngested)
	return result, nil
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: researchpilot %s [flags] <query>\n\n", fs.Name())
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	topK := fs.Int("top-k", 0, "number of results (default from config, max 20)")
	output := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(args))

	query := buildSearchQuery(fs.Args())
	if query == "" {
		fs.Usage()
		return fmt.Errorf("query cannot be empty: %w", models.ErrValidation)
	}

	ctx := context.Background()
	components, cfg, logger, err := setup(ctx, *configPath, false)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer components.Close()

	k := *topK
	if k == 0 {
		k = cfg.Search.DefaultTopK
	}
	results, err := components.Retriever.Search(ctx, query, k)
	if err != nil {
		return err
	}
	return cli.WriteSearchResults(out, &models.SearchResponse{
		Status:       "success",
		Query:        query,
		ResultsCount: len(results),
		Results:      results,
	}, cli.ParseFormat(*output))
}

func runAnalyze(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	topK := fs.Int("top-k", 0, "number of context passages (default from config, max 20)")
	noContext := fs.Bool("no-context", false, "skip retrieval and ask without document context")
	output := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(args))

	query := buildSearchQuery(fs.Args())
	if query == "" {
		fs.Usage()
		return fmt.Errorf("query cannot be empty: %w", models.ErrValidation)
	}

	ctx := context.Background()
	components, cfg, logger, err := setup(ctx, *configPath, false)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer components.Close()

	k := *topK
	if k == 0 {
		k = cfg.Search.DefaultTopK
	}
	useContext := !*noContext
	analysis, err := components.Assistant.Analyze(ctx, &models.AnalysisRequest{
		Query:      query,
		TopK:       search.ClampTopK(k, cfg.Search.MaxTopK),
		UseContext: &useContext,
	})
	if err != nil {
		return err
	}
	return cli.WriteAnalysis(out, analysis, cli.ParseFormat(*output))
}

func runStats(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	components, _, logger, err := setup(context.Background(), *configPath, false)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer components.Close()
	return cli.WriteStats(out, components.Collection.Stats(), cli.ParseFormat(*output))
}

func runClear(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	yes := fs.Bool("yes", false, "confirm deleting every record in the collection")
	_ = fs.Parse(args)

	if !*yes {
		return fmt.Errorf("clear is irreversible; pass -yes to confirm: %w", models.ErrValidation)
	}
	ctx := context.Background()
	components, _, logger, err := setup(ctx, *configPath, false)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer components.Close()

	if err := components.Collection.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Collection cleared successfully")
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `researchpilot - Research paper ingestion, semantic search, and AI analysis

Usage:
  researchpilot server [flags]            Start the HTTP server
  researchpilot ingest [flags] [file...]  Ingest the data directory, or the given files
  researchpilot search [flags] <query>    Semantic search over ingested papers
  researchpilot analyze [flags] <query>   Structured research analysis of a topic
  researchpilot stats [flags]             Show collection statistics
  researchpilot clear -yes                Delete every record in the collection
  researchpilot version                   Show version
  researchpilot help                      Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/researchpilot/config.yaml,
                     or ./config.yaml when present)
  --output string    Output format: text or json (default: text)

Server Flags:
  --debug            Enable debug logging

Search/Analyze Flags:
  --top-k int        Number of passages (clamped to 1..20)
  --no-context       (analyze) Skip retrieval

Examples:
  researchpilot server
  researchpilot ingest
  researchpilot ingest ./papers/attention.pdf
  researchpilot search "graph neural networks"
  researchpilot search --top-k 10 --output json transformers
  researchpilot analyze "retrieval augmented generation"
  researchpilot clear -yes`)
}
