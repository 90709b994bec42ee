// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/maintel"
	"github.com/poiesic/maintel/ai"
	"github.com/poiesic/maintel/ai/openai"
	"github.com/poiesic/maintel/reindex"
	"github.com/poiesic/maintel/storage/badger"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "maintel",
		Usage: "Failure extraction and semantic search for maintenance documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Extract and index maintenance documents",
				Action: ingestCommand,
				Flags: append(serviceFlags(),
					&cli.StringFlag{
						Name:  "file",
						Usage: "Read documents from a file, one per line (stdin if omitted)",
					},
				),
			},
			{
				Name:      "search",
				Usage:     "Find stored records similar to a query",
				Action:    searchCommand,
				ArgsUsage: "QUERY",
				Flags: append(serviceFlags(),
					&cli.IntFlag{
						Name:    "top",
						Aliases: []string{"k"},
						Usage:   "Maximum number of results",
						Value:   5,
					},
				),
			},
			{
				Name:   "costs",
				Usage:  "Summarize provider spend for an ingest run",
				Action: costsCommand,
				Flags: append(serviceFlags(),
					&cli.StringFlag{
						Name:  "file",
						Usage: "Read documents from a file, one per line (stdin if omitted)",
					},
				),
			},
			{
				Name:   "reindex",
				Usage:  "Re-embed all stored records with a new embedding model",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:     "embedding-model",
						Usage:    "Embedding model name",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Number of batches in flight at once",
						Value: 2,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serviceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB database directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "ai-host",
			Usage: "AI service host URL for extraction and embeddings",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "extraction-model",
			Usage: "Chat model used for failure extraction",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
		},
	}
}

func openService(c *cli.Context) (*maintel.Service, error) {
	opts := []ai.ConfigOption{ai.WithHost(c.String("ai-host"))}
	if model := c.String("extraction-model"); model != "" {
		opts = append(opts, ai.WithExtractionModel(model))
	}
	if model := c.String("embedding-model"); model != "" {
		opts = append(opts, ai.WithEmbeddingModel(model))
	}
	aiConfig := ai.NewConfig(opts...)

	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	return maintel.New(c.String("db"), maintel.WithAIConfig(aiConfig))
}

func ingestDocuments(ctx context.Context, c *cli.Context, service *maintel.Service) (int, error) {
	input := os.Stdin
	if path := c.String("file"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return 0, fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		input = f
	}

	count := 0
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		record, err := service.SubmitDocument(ctx, text)
		if err != nil {
			return count, fmt.Errorf("failed to process document: %w", err)
		}

		count++
		fmt.Printf("%s  %-14s  severity=%d  %s\n",
			record.Fingerprint[:12], record.Failure.FailureMode,
			record.Failure.Severity, record.Failure.Summary)
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("failed to read input: %w", err)
	}

	return count, nil
}

func ingestCommand(c *cli.Context) error {
	service, err := openService(c)
	if err != nil {
		return err
	}
	defer service.Close()

	count, err := ingestDocuments(context.Background(), c, service)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Ingested %d documents\n", count)
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("search query is required")
	}

	service, err := openService(c)
	if err != nil {
		return err
	}
	defer service.Close()

	matches, err := service.SearchSimilar(context.Background(), query, c.Int("top"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(matches) == 0 {
		fmt.Println("No similar records found")
		return nil
	}

	for i, match := range matches {
		failure := match.Record.Failure
		fmt.Printf("%d. [%.3f] %s %s (severity %d)\n   %s\n",
			i+1, match.Score, failure.EquipmentID, failure.FailureMode,
			failure.Severity, failure.Summary)
	}
	return nil
}

func costsCommand(c *cli.Context) error {
	service, err := openService(c)
	if err != nil {
		return err
	}
	defer service.Close()

	start := time.Now().UTC()
	count, err := ingestDocuments(context.Background(), c, service)
	if err != nil {
		return err
	}

	summary := service.CostSummary(start)
	fmt.Fprintf(os.Stderr, "\nProcessed %d documents\n", count)
	for callType, agg := range summary.ByCallType {
		fmt.Fprintf(os.Stderr, "  %-18s %6d calls  %8d tokens  $%.6f\n",
			callType, agg.Calls, agg.Units, agg.Cost)
	}
	fmt.Fprintf(os.Stderr, "Total: %d tokens, $%.6f\n", summary.TotalUnits, summary.TotalCost)
	return nil
}

func reindexCommand(c *cli.Context) error {
	ctx := context.Background()

	dbPath := c.String("db")
	backend, err := badger.OpenBackend(dbPath, false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	repo := badger.NewRecordRepository(backend)

	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	embedder, err := openai.NewEmbedder(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	reindexConfig := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		Concurrency:    c.Int("concurrency"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reindexConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reindexConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reindexConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	reindexer, err := reindex.NewReindexer(repo, embedder, reindexConfig, os.Stderr)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	if err := reindexer.Run(ctx); err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
