package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/DebritB/NewsRAG/internal/cli"
)

func runCollect(args []string) int {
	fs := flag.NewFlagSet("collect", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	input := fs.String("input", "", "Path to a JSON array of adapter records (use - for stdin)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*input) == "" {
		fmt.Fprintln(os.Stderr, "--input is required")
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	payload, err := readInput(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read input: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := initRuntime(ctx, "collect")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Collect failed: %v\n", err)
		return 1
	}
	defer rt.close()

	result, err := rt.svc.CollectPayload(ctx, payload)
	if err != nil {
		rt.logger.Error().Err(err).Str("input", *input).Msg("collect failed")
		fmt.Fprintf(os.Stderr, "Collect failed: %v\n", err)
		return 1
	}

	rt.logger.Info().
		Int("input", result.Input).
		Int("invalid", result.Invalid).
		Int("accepted", result.Accepted).
		Int("discarded", result.Discarded).
		Int("inserted", result.Inserted).
		Int("updated", result.Updated).
		Msg("collect completed")
	fmt.Printf(
		"collect input=%d invalid=%d exact_dups=%d priority_preferred=%d accepted=%d discarded=%d inserted=%d updated=%d\n",
		result.Input,
		result.Invalid,
		result.ExactDedup.TrueDuplicates+result.ExactDedup.SyndicatedDuplicates,
		result.ExactDedup.PriorityReplacements,
		result.Accepted,
		result.Discarded,
		result.Inserted,
		result.Updated,
	)
	return 0
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return readAllStdin()
	}
	return os.ReadFile(path)
}

func readAllStdin() ([]byte, error) {
	info, err := os.Stdin.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat stdin: %w", err)
	}
	if info.Mode()&os.ModeCharDevice != 0 {
		return nil, fmt.Errorf("stdin is a terminal, pipe records or use --input FILE")
	}

	payload, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return payload, nil
}
