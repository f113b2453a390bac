package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/DebritB/NewsRAG/internal/cli"
	"github.com/DebritB/NewsRAG/internal/pipeline"
)

func runEmbed(args []string) int {
	fs := flag.NewFlagSet("embed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	limit := fs.Int("limit", pipeline.DefaultEmbedBatchLimit, "Maximum pending articles to embed")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := initRuntime(ctx, "embed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embed failed: %v\n", err)
		return 1
	}
	defer rt.close()

	result, err := rt.svc.EmbedPending(ctx, *limit)
	if err != nil && !errors.Is(err, pipeline.ErrThrottleBudgetExhausted) {
		rt.logger.Error().Err(err).Int("limit", *limit).Msg("embed failed")
		fmt.Fprintf(os.Stderr, "Embed failed: %v\n", err)
		return 1
	}
	aborted := errors.Is(err, pipeline.ErrThrottleBudgetExhausted)

	rt.logger.Info().
		Int("limit", *limit).
		Int("processed", result.Processed).
		Int("embedded", result.Embedded).
		Int("requeued", result.Requeued).
		Int("failed", result.Failed).
		Bool("aborted", aborted).
		Msg("embed completed")
	fmt.Printf(
		"embed processed=%d embedded=%d requeued=%d failed=%d aborted=%t limit=%d\n",
		result.Processed,
		result.Embedded,
		result.Requeued,
		result.Failed,
		aborted,
		*limit,
	)
	return 0
}

func runDedup(args []string) int {
	fs := flag.NewFlagSet("dedup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := initRuntime(ctx, "dedup")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Dedup failed: %v\n", err)
		return 1
	}
	defer rt.close()

	result, err := rt.svc.DedupComplete(ctx)
	if err != nil {
		rt.logger.Error().Err(err).Msg("dedup failed")
		fmt.Fprintf(os.Stderr, "Dedup failed: %v\n", err)
		return 1
	}

	rt.logger.Info().
		Int("anchors", result.Anchors).
		Int("skipped", result.Skipped).
		Int("consolidated", result.Consolidated).
		Int("deleted", result.Deleted).
		Int("errors", result.Errors).
		Msg("dedup completed")
	fmt.Printf(
		"dedup anchors=%d skipped=%d consolidated=%d deleted=%d errors=%d\n",
		result.Anchors,
		result.Skipped,
		result.Consolidated,
		result.Deleted,
		result.Errors,
	)
	return 0
}

func runHighlight(args []string) int {
	fs := flag.NewFlagSet("highlight", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := initRuntime(ctx, "highlight")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Highlight failed: %v\n", err)
		return 1
	}
	defer rt.close()

	result, err := rt.svc.UpdateHighlights(ctx)
	if err != nil {
		rt.logger.Error().Err(err).Msg("highlight failed")
		fmt.Fprintf(os.Stderr, "Highlight failed: %v\n", err)
		return 1
	}

	rt.logger.Info().
		Int("scored", result.Scored).
		Int64("cleared", result.Cleared).
		Int("highlighted", result.Highlighted).
		Msg("highlight completed")
	fmt.Printf(
		"highlight scored=%d cleared=%d highlighted=%d\n",
		result.Scored,
		result.Cleared,
		result.Highlighted,
	)
	return 0
}

func runCleanup(args []string) int {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	before := fs.String("before", "", "Purge articles published before this RFC3339 time (default: midnight UTC yesterday)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	var cutoff time.Time
	if *before != "" {
		parsed, err := time.Parse(time.RFC3339, *before)
		if err != nil {
			fmt.Fprintln(os.Stderr, "--before must be RFC3339")
			return 2
		}
		cutoff = parsed.UTC()
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := initRuntime(ctx, "cleanup")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cleanup failed: %v\n", err)
		return 1
	}
	defer rt.close()

	purged, err := rt.svc.CleanupBefore(ctx, cutoff)
	if err != nil {
		rt.logger.Error().Err(err).Msg("cleanup failed")
		fmt.Fprintf(os.Stderr, "Cleanup failed: %v\n", err)
		return 1
	}

	rt.logger.Info().Int64("purged", purged).Msg("cleanup completed")
	fmt.Printf("cleanup purged=%d\n", purged)
	return 0
}

func runProcess(args []string) int {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 15*time.Minute, "Command timeout")
	input := fs.String("input", "", "Optional JSON adapter records to collect first (use - for stdin)")
	embedLimit := fs.Int("embed-limit", pipeline.DefaultEmbedBatchLimit, "Maximum articles to embed per cycle")
	untilEmpty := fs.Bool("until-empty", true, "Repeat embed cycles until no work remains")
	maxCycles := fs.Int("max-cycles", 25, "Maximum embed cycles when --until-empty=true")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *embedLimit <= 0 {
		fmt.Fprintln(os.Stderr, "--embed-limit must be > 0")
		return 2
	}
	if *maxCycles <= 0 {
		fmt.Fprintln(os.Stderr, "--max-cycles must be > 0")
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	var payload []byte
	if *input != "" {
		var err error
		payload, err = readInput(*input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read input: %v\n", err)
			return 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := initRuntime(ctx, "process")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Process failed: %v\n", err)
		return 1
	}
	defer rt.close()

	collectResult := pipeline.CollectResult{}
	if payload != nil {
		collectResult, err = rt.svc.CollectPayload(ctx, payload)
		if err != nil {
			rt.logger.Error().Err(err).Str("input", *input).Msg("collect stage failed")
			fmt.Fprintf(os.Stderr, "Process failed during collect: %v\n", err)
			return 1
		}
	}

	totalEmbed := pipeline.EmbedResult{}
	cyclesRun := 0
	drained := false

	for cycle := 1; cycle <= *maxCycles; cycle++ {
		embedResult, err := rt.svc.EmbedPending(ctx, *embedLimit)
		if err != nil {
			if errors.Is(err, pipeline.ErrThrottleBudgetExhausted) {
				rt.logger.Warn().Int("cycle", cycle).Msg("embedding service saturated, stopping early")
				totalEmbed.Processed += embedResult.Processed
				totalEmbed.Embedded += embedResult.Embedded
				totalEmbed.Requeued += embedResult.Requeued
				totalEmbed.Failed += embedResult.Failed
				cyclesRun = cycle
				break
			}
			rt.logger.Error().Err(err).Int("cycle", cycle).Msg("embed stage failed")
			fmt.Fprintf(os.Stderr, "Process failed during embed cycle %d: %v\n", cycle, err)
			return 1
		}

		cyclesRun = cycle
		totalEmbed.Processed += embedResult.Processed
		totalEmbed.Embedded += embedResult.Embedded
		totalEmbed.Requeued += embedResult.Requeued
		totalEmbed.Failed += embedResult.Failed

		noProgress := embedResult.Processed == 0
		if !*untilEmpty || noProgress {
			drained = noProgress
			break
		}
	}

	dedupResult, err := rt.svc.DedupComplete(ctx)
	if err != nil {
		rt.logger.Error().Err(err).Msg("dedup stage failed")
		fmt.Fprintf(os.Stderr, "Process failed during dedup: %v\n", err)
		return 1
	}

	highlightResult, err := rt.svc.UpdateHighlights(ctx)
	if err != nil {
		rt.logger.Error().Err(err).Msg("highlight stage failed")
		fmt.Fprintf(os.Stderr, "Process failed during highlight: %v\n", err)
		return 1
	}

	rt.logger.Info().
		Int("collect_accepted", collectResult.Accepted).
		Int("cycles", cyclesRun).
		Bool("drained", drained).
		Int("embed_processed", totalEmbed.Processed).
		Int("embedded", totalEmbed.Embedded).
		Int("embed_requeued", totalEmbed.Requeued).
		Int("embed_failed", totalEmbed.Failed).
		Int("dedup_anchors", dedupResult.Anchors).
		Int("dedup_deleted", dedupResult.Deleted).
		Int("highlighted", highlightResult.Highlighted).
		Msg("process completed")

	fmt.Printf(
		"process collect_accepted=%d cycles=%d drained=%t embed_processed=%d embedded=%d requeued=%d failed=%d dedup_anchors=%d dedup_deleted=%d highlighted=%d\n",
		collectResult.Accepted,
		cyclesRun,
		drained,
		totalEmbed.Processed,
		totalEmbed.Embedded,
		totalEmbed.Requeued,
		totalEmbed.Failed,
		dedupResult.Anchors,
		dedupResult.Deleted,
		highlightResult.Highlighted,
	)
	return 0
}
