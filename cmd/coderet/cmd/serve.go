package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/coderet/coderet/internal/chunk"
	"github.com/coderet/coderet/internal/config"
	"github.com/coderet/coderet/internal/embed"
	"github.com/coderet/coderet/internal/graph"
	"github.com/coderet/coderet/internal/index"
	"github.com/coderet/coderet/internal/logging"
	"github.com/coderet/coderet/internal/mcp"
	"github.com/coderet/coderet/internal/search"
	"github.com/coderet/coderet/internal/store"
	"github.com/coderet/coderet/internal/watcher"
)

// defaultWatcherStartupTimeout bounds how long serve waits for the
// background file watcher before giving up and serving without one.
// The MCP handshake must complete well within this window regardless.
const defaultWatcherStartupTimeout = 2 * time.Second

func newServeCmd() *cobra.Command {
	var (
		transport string
		port      int
		debugLog  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP (Model Context Protocol) server so AI coding
assistants can query the indexed codebase over stdio or SSE.

The current branch's index (see 'coderet index') must already exist;
serve never indexes on its own.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if debugLog {
				if logger, cleanup, err := logging.Setup(logging.DebugConfig()); err == nil {
					slog.SetDefault(logger)
					defer cleanup()
				}
			}
			return runServe(cmd.Context(), transport, port)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type (stdio|sse)")
	cmd.Flags().IntVar(&port, "port", 8765, "Port for SSE transport")
	cmd.Flags().BoolVar(&debugLog, "debug", false, "Enable verbose debug logging")

	return cmd
}

// verifyStdinForMCP reports an error when stdin is an interactive terminal
// rather than a pipe: stdio-transport MCP clients always connect via pipe,
// so a terminal almost certainly means the user ran 'coderet serve'
// directly instead of letting their agent host launch it.
func verifyStdinForMCP() error {
	if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return fmt.Errorf("stdin is a terminal, not a pipe: the MCP stdio transport expects to be launched by an agent host, not run interactively")
	}
	return nil
}

// runServe wires up the engine, graph, and retriever for the project
// rooted at the current directory's current branch and serves the MCP
// protocol over transport until ctx is canceled.
func runServe(ctx context.Context, transport string, port int) error {
	cleanup, err := logging.SetupMCPMode()
	if err == nil {
		defer cleanup()
	}

	if transport == "stdio" {
		if err := verifyStdinForMCP(); err != nil {
			slog.Warn("stdin_check_failed", slog.String("error", err.Error()))
		}
	}

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}
	dataDir := index.CurrentBranchDataDir(root, ".coderet")

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}

	engine, metadata, embedder, codeGraph, err := buildServeEngine(ctx, root, dataDir, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = metadata.Close() }()
	if embedder != nil {
		defer func() { _ = embedder.Close() }()
	}

	srv, err := mcp.NewServer(engine, metadata, embedder, cfg, root)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	srv.SetRetriever(search.NewRetriever(engine.(*search.Engine), codeGraph))

	startFileWatcherInBackground(ctx, root, cfg, engine.(*search.Engine), metadata, dataDir)

	addr := fmt.Sprintf(":%d", port)
	return srv.Serve(ctx, transport, addr)
}

// buildServeEngine loads the branch's persisted indices and constructs
// the hybrid engine and graph the MCP server queries against.
func buildServeEngine(ctx context.Context, root, dataDir string, cfg *config.Config) (search.SearchEngine, store.MetadataStore, embed.Embedder, *graph.Graph, error) {
	metadataPath := joinDataPath(dataDir, "store.db")
	if _, err := os.Stat(metadataPath); os.IsNotExist(err) {
		return nil, nil, nil, nil, fmt.Errorf("no index found for this branch. Run 'coderet index' first")
	}

	metadata, err := store.NewSQLiteStore(metadataPath)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to open metadata: %w", err)
	}

	bm25BasePath := joinDataPath(dataDir, "bm25")
	bm25, err := store.NewBM25IndexWithBackend(bm25BasePath, store.DefaultBM25Config(), cfg.Search.BM25Backend)
	if err != nil {
		_ = metadata.Close()
		return nil, nil, nil, nil, fmt.Errorf("failed to open BM25 index: %w", err)
	}

	var embedder embed.Embedder
	dimensions := 0
	if os.Getenv("CODERET_EMBEDDER") == "static" {
		embedder = embed.NewStaticEmbedder768()
		dimensions = embedder.Dimensions()
	} else {
		embed.SetMLXConfig(embed.MLXServerConfig{
			Endpoint: cfg.Embeddings.MLXEndpoint,
			Model:    cfg.Embeddings.MLXModel,
		})
		provider := embed.ParseProvider(cfg.Embeddings.Provider)
		embedder, err = embed.NewEmbedder(ctx, provider, cfg.Embeddings.Model)
		if err != nil {
			slog.Warn("embedder_unavailable", slog.String("error", err.Error()))
			embedder = embed.NewStaticEmbedder768()
		}
		dimensions = embedder.Dimensions()
	}

	vectorConfig := store.DefaultVectorStoreConfig(dimensions)
	vector, err := store.NewHNSWStore(vectorConfig)
	if err != nil {
		_ = metadata.Close()
		_ = bm25.Close()
		return nil, nil, nil, nil, fmt.Errorf("failed to create vector store: %w", err)
	}
	vectorPath := joinDataPath(dataDir, "vectors.hnsw")
	if _, err := os.Stat(vectorPath); err == nil {
		if loadErr := vector.Load(vectorPath); loadErr != nil {
			slog.Debug("vector_load_failed", slog.String("error", loadErr.Error()))
		}
	}

	codeGraph, graphErr := graph.Load(joinDataPath(dataDir, "graph.bin"))
	if graphErr != nil {
		codeGraph = graph.New()
	}

	engineConfig := search.DefaultConfig()
	engine, err := search.NewEngine(bm25, vector, embedder, metadata, engineConfig,
		search.WithClassifier(search.NewPatternClassifier()),
		search.WithQueryExpander(search.NewQueryExpander()),
		search.WithReranker(search.NewRerankerForBackend(ctx, cfg.Search.Reranker)),
		search.WithGraphBoost(search.NewGraphBooster(codeGraph, search.DefaultGraphBoostConfig()), search.DefaultFusionWeights()))
	if err != nil {
		_ = metadata.Close()
		_ = bm25.Close()
		return nil, nil, nil, nil, fmt.Errorf("failed to build search engine: %w", err)
	}

	return engine, metadata, embedder, codeGraph, nil
}

// startFileWatcherInBackground starts the hybrid file watcher without
// blocking the caller: MCP's handshake must complete promptly, so watcher
// setup (which can take seconds on a cold filesystem cache) runs on its
// own goroutine bounded by CODERET_WATCHER_STARTUP_TIMEOUT (or
// defaultWatcherStartupTimeout). Events drive the incremental
// Coordinator so the served index tracks edits made while the server is
// running.
func startFileWatcherInBackground(ctx context.Context, root string, cfg *config.Config, engine *search.Engine, metadata store.MetadataStore, dataDir string) {
	timeout := defaultWatcherStartupTimeout
	if v := os.Getenv("CODERET_WATCHER_STARTUP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			timeout = d
		}
	}

	var codeChunker chunk.Chunker
	if cfg.Chunking.Strategy == "query" {
		codeChunker = chunk.NewCodeChunker()
	} else {
		codeChunker = chunk.NewCASTChunker(chunk.CASTChunkerOptions{
			MaxTokens:         cfg.Chunking.MaxTokens,
			OverlapTokens:     cfg.Chunking.OverlapTokens,
			TruncateOversized: cfg.Chunking.TruncateOversized,
		})
	}

	coordinator := index.NewCoordinator(index.CoordinatorConfig{
		ProjectID:       index.ProjectID(root),
		RootPath:        root,
		DataDir:         dataDir,
		Engine:          engine,
		Metadata:        metadata,
		CodeChunker:     codeChunker,
		MDChunker:       chunk.NewMarkdownChunker(),
		ExcludePatterns: cfg.Paths.Exclude,
	})

	go func() {
		startCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
		if err != nil {
			slog.Warn("watcher_init_failed", slog.String("error", err.Error()))
			return
		}
		if err := w.Start(startCtx, root); err != nil {
			slog.Warn("watcher_start_failed", slog.String("error", err.Error()))
			return
		}
		slog.Debug("file_watcher_started", slog.String("root", root))

		for {
			select {
			case <-ctx.Done():
				_ = w.Stop()
				return
			case events := <-w.Events():
				if err := coordinator.HandleEvents(ctx, events); err != nil {
					slog.Warn("incremental_reindex_failed", slog.String("error", err.Error()))
				}
			case err := <-w.Errors():
				slog.Debug("watcher_error", slog.String("error", err.Error()))
			}
		}
	}()
}

func joinDataPath(dataDir, name string) string {
	return dataDir + string(os.PathSeparator) + name
}
