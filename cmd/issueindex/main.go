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
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/issueindex"
	"github.com/poiesic/issueindex/ai"
	"github.com/poiesic/issueindex/config"
	"github.com/poiesic/issueindex/pipeline"
	"github.com/poiesic/issueindex/transport"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := loadDotEnv(".env"); err != nil {
		log.Fatal(err)
	}
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadDotEnv loads path into the environment when it exists. Variables that
// are already set win.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func newApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:      "issueindex",
		Usage:     "Copy tracker issues into a search index with embeddings",
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"ETL_LOG_LEVEL"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Fetch every issue, embed it and load it into the index",
				Action: runCommand,
				Flags: append(configFlags(),
					&cli.IntFlag{
						Name:    "batch-size",
						Aliases: []string{"b"},
						Usage:   "Issues per page and per bulk request",
						Value:   pipeline.DefaultBatchSize,
						EnvVars: []string{"ETL_BATCH_SIZE"},
					},
					&cli.DurationFlag{
						Name:    "page-delay",
						Usage:   "Minimum pause between page fetches",
						Value:   pipeline.DefaultPageDelay,
						EnvVars: []string{"ETL_PAGE_DELAY"},
					},
					&cli.IntFlag{
						Name:    "workers",
						Usage:   "Issues transformed concurrently (0 = half the CPUs)",
						EnvVars: []string{"ETL_WORKERS"},
					},
					&cli.BoolFlag{
						Name:    "include-relations",
						Usage:   "Ask the tracker for relations, attachments, journals and custom fields",
						Value:   true,
						EnvVars: []string{"ETL_INCLUDE_RELATIONS"},
					},
					&cli.BoolFlag{
						Name:    "include-embeddings",
						Usage:   "Store the embedding vector on each document",
						Value:   true,
						EnvVars: []string{"ETL_INCLUDE_EMBEDDINGS"},
					},
					&cli.BoolFlag{
						Name:    "create-index",
						Usage:   "Create the index with its mapping before loading",
						EnvVars: []string{"ETL_CREATE_INDEX"},
					},
					&cli.BoolFlag{
						Name:    "resume",
						Usage:   "Continue from the last checkpoint of an unfinished run",
						EnvVars: []string{"ETL_RESUME"},
					},
				),
			},
			{
				Name:   "ping",
				Usage:  "Check that the tracker and the index are reachable",
				Action: pingCommand,
				Flags:  configFlags(),
			},
			{
				Name:   "create-index",
				Usage:  "Create the index with its mapping",
				Action: createIndexCommand,
				Flags: append(configFlags(),
					&cli.BoolFlag{
						Name:    "include-embeddings",
						Usage:   "Add the knn_vector embedding field to the mapping",
						Value:   true,
						EnvVars: []string{"ETL_INCLUDE_EMBEDDINGS"},
					},
				),
			},
			{
				Name:   "reset-checkpoint",
				Usage:  "Forget the saved progress of the index",
				Action: resetCheckpointCommand,
				Flags:  configFlags(),
			},
		},
	}
}

// configFlags are the connection and storage flags every command accepts.
func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "redmine-url",
			Usage:   "Tracker base URL",
			Value:   config.DefaultSourceURL,
			EnvVars: []string{"REDMINE_API_URL"},
		},
		&cli.StringFlag{
			Name:    "redmine-key",
			Usage:   "Tracker API key",
			EnvVars: []string{"REDMINE_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "index-backend",
			Usage:   "Where documents are loaded (opensearch, bleve)",
			Value:   string(config.BackendOpenSearch),
			EnvVars: []string{"ETL_INDEX_BACKEND"},
		},
		&cli.StringFlag{
			Name:    "opensearch-host",
			Usage:   "OpenSearch base URL",
			Value:   config.DefaultOpenSearchHost,
			EnvVars: []string{"OPENSEARCH_HOST"},
		},
		&cli.StringFlag{
			Name:    "opensearch-user",
			Usage:   "OpenSearch basic auth user",
			EnvVars: []string{"OPENSEARCH_USER"},
		},
		&cli.StringFlag{
			Name:    "opensearch-pass",
			Usage:   "OpenSearch basic auth password",
			EnvVars: []string{"OPENSEARCH_PASS"},
		},
		&cli.StringFlag{
			Name:    "bleve-dir",
			Usage:   "Directory for bleve indexes (empty keeps them in memory)",
			EnvVars: []string{"ETL_BLEVE_DIR"},
		},
		&cli.BoolFlag{
			Name:    "insecure-skip-verify",
			Usage:   "Skip TLS certificate verification for the tracker and OpenSearch",
			EnvVars: []string{"ETL_INSECURE_SKIP_VERIFY"},
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Usage:   "Timeout for each tracker and index request",
			Value:   transport.DefaultTimeout,
			EnvVars: []string{"ETL_HTTP_TIMEOUT"},
		},
		&cli.StringFlag{
			Name:    "embedding-provider",
			Usage:   "Embedding backend (auto, remote, openai, hashed)",
			Value:   string(ai.ProviderAuto),
			EnvVars: []string{"EMBEDDING_PROVIDER"},
		},
		&cli.StringFlag{
			Name:    "embedding-url",
			Usage:   "Embedding service base URL",
			EnvVars: []string{"EMBEDDING_SERVICE_URL"},
		},
		&cli.StringFlag{
			Name:    "embedding-key",
			Usage:   "Embedding service API key",
			EnvVars: []string{"EMBEDDING_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "embedding-model",
			Usage:   "Embedding model name (openai provider)",
			Value:   ai.DefaultConfig().Model,
			EnvVars: []string{"EMBEDDING_MODEL"},
		},
		&cli.IntFlag{
			Name:    "embedding-dimension",
			Usage:   "Embedding vector length",
			Value:   ai.DefaultConfig().Dimension,
			EnvVars: []string{"EMBEDDING_DIMENSION"},
		},
		&cli.DurationFlag{
			Name:    "embedding-cache-ttl",
			Usage:   "How long remote embeddings are cached (0 disables the cache)",
			Value:   ai.DefaultConfig().CacheTTL,
			EnvVars: []string{"EMBEDDING_CACHE_TTL"},
		},
		&cli.StringFlag{
			Name:    "index",
			Aliases: []string{"i"},
			Usage:   "Target index name",
			Value:   pipeline.DefaultIndexName,
			EnvVars: []string{"ETL_INDEX"},
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Aliases: []string{"d"},
			Usage:   "Path to the BadgerDB directory for checkpoints and the embedding cache",
			Value:   config.DefaultDataDir,
			EnvVars: []string{"ETL_DATA_DIR"},
		},
		&cli.BoolFlag{
			Name:    "in-memory",
			Usage:   "Keep checkpoints and the embedding cache in memory",
			EnvVars: []string{"ETL_IN_MEMORY"},
		},
	}
}

// buildConfig assembles a config.Config from the flags of c. Flags a command
// does not define keep their defaults.
func buildConfig(c *cli.Context) (*config.Config, error) {
	backend, err := config.ParseBackend(c.String("index-backend"))
	if err != nil {
		return nil, err
	}

	cfg := config.DefaultConfig()

	cfg.Source.BaseURL = c.String("redmine-url")
	cfg.Source.APIKey = c.String("redmine-key")
	cfg.Source.Timeout = c.Duration("timeout")
	cfg.Source.InsecureSkipVerify = c.Bool("insecure-skip-verify")

	cfg.Index.Backend = backend
	cfg.Index.BleveDir = c.String("bleve-dir")
	cfg.Index.OpenSearch.Host = c.String("opensearch-host")
	cfg.Index.OpenSearch.User = c.String("opensearch-user")
	cfg.Index.OpenSearch.Password = c.String("opensearch-pass")
	cfg.Index.OpenSearch.Timeout = c.Duration("timeout")
	cfg.Index.OpenSearch.InsecureSkipVerify = c.Bool("insecure-skip-verify")

	cfg.Embedding = ai.NewConfig(
		ai.WithProvider(ai.Provider(c.String("embedding-provider"))),
		ai.WithServiceURL(c.String("embedding-url")),
		ai.WithAPIKey(c.String("embedding-key")),
		ai.WithModel(c.String("embedding-model")),
		ai.WithDimension(c.Int("embedding-dimension")),
		ai.WithCacheTTL(c.Duration("embedding-cache-ttl")),
	)

	cfg.Pipeline.IndexName = c.String("index")
	if hasFlag(c, "batch-size") {
		cfg.Pipeline.BatchSize = c.Int("batch-size")
	}
	if hasFlag(c, "page-delay") {
		cfg.Pipeline.PageDelay = c.Duration("page-delay")
	}
	if c.Int("workers") > 0 {
		cfg.Pipeline.Workers = c.Int("workers")
	}
	if hasFlag(c, "include-relations") {
		cfg.Pipeline.IncludeRelations = c.Bool("include-relations")
	}
	if hasFlag(c, "include-embeddings") {
		cfg.Pipeline.IncludeEmbeddings = c.Bool("include-embeddings")
	}
	cfg.Pipeline.CreateIndex = c.Bool("create-index")
	cfg.Pipeline.Resume = c.Bool("resume")

	cfg.Storage.Path = c.String("data-dir")
	cfg.Storage.InMemory = c.Bool("in-memory")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slog.Debug("configuration", "config", fmt.Sprintf("%+v", cfg.Redacted()))
	return cfg, nil
}

func hasFlag(c *cli.Context, name string) bool {
	for _, f := range c.Command.Flags {
		for _, n := range f.Names() {
			if n == name {
				return true
			}
		}
	}
	return false
}

func openService(c *cli.Context) (*issueindex.Service, *config.Config, error) {
	cfg, err := buildConfig(c)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	svc, err := issueindex.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}

func runCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, cfg, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	driver, err := svc.NewPipeline(pipeline.WithMonitor(pipeline.NewProgressMonitor(c.App.ErrWriter)))
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer driver.Release()

	fmt.Fprintf(c.App.ErrWriter, "Tracker: %s\n", cfg.Source.BaseURL)
	fmt.Fprintf(c.App.ErrWriter, "Index: %s (%s)\n", cfg.Pipeline.IndexName, cfg.Index.Backend)
	fmt.Fprintf(c.App.ErrWriter, "Embeddings: %s, dimension %d\n", cfg.Embedding.Resolve(), cfg.Embedding.Dimension)
	fmt.Fprintln(c.App.ErrWriter)

	summary := driver.Run(ctx)
	fmt.Fprintln(c.App.Writer, summary.String())
	if fallbacks := svc.Embedder().Fallbacks(); fallbacks > 0 {
		slog.Warn("some embeddings were generated locally", "count", fallbacks)
	}

	if summary.State == pipeline.StateAborted {
		return fmt.Errorf("run aborted: %w", summary.Err)
	}
	return nil
}

func pingCommand(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
	defer cancel()

	svc, cfg, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	page, err := svc.Source().FetchPage(ctx, 1, 0, false)
	if err != nil {
		return fmt.Errorf("tracker unreachable: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "tracker %s: ok (%d issues)\n", cfg.Source.BaseURL, page.TotalCount)

	if err := svc.Index().Ping(ctx); err != nil {
		return fmt.Errorf("index unreachable: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "index %s: ok\n", cfg.Index.Backend)
	return nil
}

func createIndexCommand(c *cli.Context) error {
	svc, cfg, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Index().EnsureSchema(c.Context, cfg.Pipeline.IndexName); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "index %s ready\n", cfg.Pipeline.IndexName)
	return nil
}

func resetCheckpointCommand(c *cli.Context) error {
	svc, cfg, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.CheckpointRepository().DeleteCheckpoint(c.Context, cfg.Pipeline.IndexName); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "checkpoint for %s removed\n", cfg.Pipeline.IndexName)
	return nil
}

func setupLogger(c *cli.Context) error {
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
