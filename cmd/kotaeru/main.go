// Package main is the Kotaeru CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/kotaeru/internal/config"
	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/extract"
	"github.com/hyperjump/kotaeru/internal/ingest"
	"github.com/hyperjump/kotaeru/internal/llm"
	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/rag"
	"github.com/hyperjump/kotaeru/internal/server"
	"github.com/hyperjump/kotaeru/internal/storage"
	"github.com/hyperjump/kotaeru/internal/vector"
	"github.com/hyperjump/kotaeru/internal/watcher"
	"github.com/hyperjump/kotaeru/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotaeru/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
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
	// Credentials (OPENAI_API_KEY, GEMINI_API_KEY, HF_API_TOKEN) may live in a
	// local .env during development.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kotaeru version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (retrieval scores, ingestion events, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if len(cfg.Watch.Directories) > 0 {
		watchOpts := []watcher.WatcherOption{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		ing := components.Ingestor
		watchSvc := watcher.NewWatcher(cfg.Watch.Directories, func(path string) {
			if _, err := ing.IngestFile(context.Background(), path); err != nil {
				logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
			}
		}, watchOpts...)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExistingFiles()
	}

	srv := server.NewServer(components.Pipeline, components.Ingestor, components.Index, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotaeru ingest [flags] <pdf-file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		n, err := components.Ingestor.IngestDirectory(ctx, path)
		if err != nil {
			fmt.Printf("Ingesting directory failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Ingested %d file(s) from %s (index size: %d)\n", n, path, components.Index.Size())
		return
	}
	chunks, err := components.Ingestor.IngestFile(ctx, path)
	if err != nil {
		fmt.Printf("Ingesting failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Ingested %s: %d chunk(s) added (index size: %d)\n", path, chunks, components.Index.Size())
}

// buildQuestion joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = answer directly without a running server)")
	provider := fs.String("provider", "", "generation provider: huggingface, openai, or gemini (default from config)")
	model := fs.String("model", "", "model override for the selected provider")
	apiKey := fs.String("api-key", "", "credential override for the selected provider")
	topK := fs.Int("top-k", 0, "number of passages to retrieve (default from config)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotaeru ask [flags] <question>")
		os.Exit(1)
	}
	question := buildQuestion(fs.Args())
	if question == "" {
		fmt.Println("Usage: kotaeru ask [flags] <question>")
		os.Exit(1)
	}

	req := &models.AskRequest{
		Question: question,
		Provider: *provider,
		Model:    *model,
		APIKey:   *apiKey,
		TopK:     *topK,
	}

	if *serverURL != "" {
		resp, err := askViaHTTP(*serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(resp.Answer)
		return
	}

	// Direct mode (no running server).
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	providerName := req.Provider
	if providerName == "" {
		providerName = cfg.RAG.DefaultProvider
	}
	gen, err := llm.New(providerName, req.APIKey, req.Model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	answer, err := components.Pipeline.Answer(context.Background(), question, gen, req.TopK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(answer)
}

func askViaHTTP(serverURL string, req *models.AskRequest) (*models.AskResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/ask", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out models.AskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var status models.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("passages:           %d\n", status.Passages)
		fmt.Printf("vector_index_size:  %d\n", status.VectorIndexSize)
		if status.Config != nil {
			fmt.Println()
			fmt.Println("# configuration")
			fmt.Printf("embedding:          %s (%s, %d dims)\n",
				status.Config.EmbeddingProvider, status.Config.EmbeddingModel, status.Config.EmbeddingDimensions)
			fmt.Printf("chunk_size:         %d\n", status.Config.ChunkSize)
			fmt.Printf("overlap_paragraphs: %d\n", status.Config.OverlapParagraphs)
			fmt.Printf("top_k:              %d\n", status.Config.TopK)
			fmt.Printf("min_score:          %.2f\n", status.Config.MinScore)
			fmt.Printf("default_provider:   %s\n", status.Config.DefaultProvider)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Embedder embedding.Embedder
	Index    *vector.Index
	Pipeline *rag.Pipeline
	Ingestor *ingest.Ingestor
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	embedder, err := embedding.New(&cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	passages, err := storage.OpenPassageStore(cfg.Storage.PassageDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open passage store: %w", err)
	}
	index, err := vector.Open(context.Background(), cfg.Embedding.Dimensions, cfg.Storage.VectorIndexPath, passages)
	if err != nil {
		_ = passages.Close()
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}
	logger.Info("vector index opened",
		zap.Int("size", index.Size()),
		zap.Int("dimensions", index.Dimensions()))

	pipeOpts := []rag.PipelineOption{}
	ingOpts := []ingest.IngestorOption{ingest.WithDocumentLedger(passages)}
	if debug {
		pipeOpts = append(pipeOpts, rag.WithLogger(logger))
		ingOpts = append(ingOpts, ingest.WithLogger(logger))
	}
	pipeline := rag.NewPipeline(embedder, index, &cfg.RAG, pipeOpts...)
	ingestor := ingest.NewIngestor(embedder, index, extract.NewExtractor(), &cfg.RAG, ingOpts...)

	return &Components{
		Embedder: embedder,
		Index:    index,
		Pipeline: pipeline,
		Ingestor: ingestor,
	}, nil
}

func printUsage() {
	fmt.Println(`kotaeru - question answering over your PDF documents

Usage:
  kotaeru server [flags]            Start the HTTP server
  kotaeru ingest [flags] <path>     Ingest a PDF file or directory
  kotaeru ask [flags] <question>    Ask a question against the indexed corpus
  kotaeru status [flags]            Show index status
  kotaeru version                   Show version
  kotaeru help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotaeru/config.yaml)
  --debug            Enable debug logging (retrieval scores, ingestion events, etc.)

Ask Flags:
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to answer directly.
  --provider string  Generation provider: huggingface, openai, or gemini (default from config)
  --model string     Model override for the selected provider
  --api-key string   Credential override for the selected provider
  --top-k int        Number of passages to retrieve (default from config)

Examples:
  kotaeru server
  kotaeru ingest ./papers
  kotaeru ask "What does chapter 3 say about memory safety?"
  kotaeru ask --provider openai --model gpt-4o-mini "Summarize the findings"
  kotaeru status --output json`)
}
