// Package app wires configuration, storage, and the pipeline service behind
// the newsrag CLI commands.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/DebritB/NewsRAG/internal/config"
	"github.com/DebritB/NewsRAG/internal/db"
	"github.com/DebritB/NewsRAG/internal/embedding"
	"github.com/DebritB/NewsRAG/internal/llm"
	"github.com/DebritB/NewsRAG/internal/logging"
	"github.com/DebritB/NewsRAG/internal/pipeline"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "collect":
		return runCollect(args[1:])
	case "embed":
		return runEmbed(args[1:])
	case "dedup":
		return runDedup(args[1:])
	case "highlight":
		return runHighlight(args[1:])
	case "cleanup":
		return runCleanup(args[1:])
	case "process", "run-once":
		return runProcess(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "newsrag CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  newsrag <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health     Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  collect    Validate, classify, and store adapter records from a JSON file")
	fmt.Fprintln(os.Stderr, "  embed      Generate embeddings for pending articles")
	fmt.Fprintln(os.Stderr, "  dedup      Consolidate semantically duplicate articles")
	fmt.Fprintln(os.Stderr, "  highlight  Rescore highlight flags over the recent window")
	fmt.Fprintln(os.Stderr, "  cleanup    Purge articles published before a cutoff")
	fmt.Fprintln(os.Stderr, "  process    Run collect (with --input) + embed + dedup + highlight in sequence")
	fmt.Fprintln(os.Stderr, "  run-once   Alias for process")
	fmt.Fprintln(os.Stderr, "  serve      Start the Echo read API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"newsrag <command> -h\" for command-specific flags.")
}

// runtime bundles the pieces every command needs after flag parsing.
type runtime struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   *db.Pool
	svc    *pipeline.Service
}

func initRuntime(ctx context.Context, command string) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	logger = logger.With().Str("command", command).Logger()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	embedder := embedding.NewClient(cfg.EmbeddingEndpoint, cfg.EmbeddingAPIKey, cfg.EmbeddingTimeout)
	fallback := llm.NewClient(cfg.LLMEndpoint, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout)

	svc := pipeline.NewService(pool, embedder, fallback, cfg.PrioritySourcesList(), logger, pipeline.Options{
		EmbedCallDelay:  cfg.EmbeddingCallDelay,
		EmbedMaxRetries: cfg.EmbeddingMaxRetries,
	})

	return &runtime{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		svc:    svc,
	}, nil
}

func (r *runtime) close() {
	if r != nil && r.pool != nil {
		_ = r.pool.Close()
	}
}
