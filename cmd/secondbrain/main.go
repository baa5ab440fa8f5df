package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	secondbrain "github.com/DhruvTemura/second-brain-ai"
	"github.com/DhruvTemura/second-brain-ai/config"
	"github.com/urfave/cli/v2"
)

// openBrain opens the store described by cfg. Tests replace it to inject a
// mock provider.
var openBrain = func(cfg *config.Config) (*secondbrain.Brain, error) {
	return secondbrain.FromConfig(cfg)
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "secondbrain",
		Usage: "Personal memory: ingest notes and files, then ask questions about them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				Value:   "secondbrain.yaml",
				EnvVars: []string{"SECONDBRAIN_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Dotenv file loaded before reading configuration",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides config)",
			},
			&cli.StringFlag{
				Name:  "blob-dir",
				Usage: "Directory for uploaded files (overrides config)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides config)",
					},
					&cli.BoolFlag{
						Name:  "worker",
						Usage: "Also run the ingestion worker in this process",
						Value: true,
					},
				},
			},
			{
				Name:   "worker",
				Usage:  "Poll for queued jobs and ingest them",
				Action: workerCommand,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "Poll interval (overrides config)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Jobs fetched per poll (overrides config)",
					},
					&cli.BoolFlag{
						Name:  "once",
						Usage: "Process one batch and exit",
					},
				},
			},
			{
				Name:      "ingest-text",
				Usage:     "Submit a text note; use - to read it from stdin",
				ArgsUsage: "<text>",
				Action:    ingestTextCommand,
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:    "title",
						Aliases: []string{"t"},
						Usage:   "Note title",
					},
					&cli.TimestampFlag{
						Name:   "timestamp",
						Usage:  "When the note was written (RFC 3339)",
						Layout: "2006-01-02T15:04:05Z07:00",
					},
				},
			},
			{
				Name:      "ingest-file",
				Usage:     "Upload a file (pdf, txt, md, html, xlsx, mp3, m4a, wav)",
				ArgsUsage: "<path>",
				Action:    ingestFileCommand,
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:    "title",
						Aliases: []string{"t"},
						Usage:   "Source title (defaults to the file name)",
					},
					&cli.StringFlag{
						Name:  "mime",
						Usage: "Declared mimetype (defaults to the extension's)",
					},
				},
			},
			{
				Name:      "job",
				Usage:     "Show the status of a job",
				ArgsUsage: "<id>",
				Action:    jobCommand,
			},
			{
				Name:   "jobs",
				Usage:  "List recent jobs",
				Action: jobsCommand,
				Flags: []cli.Flag{
					userFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum jobs to list",
						Value: secondbrain.DefaultJobListLimit,
					},
				},
			},
			{
				Name:      "chat",
				Usage:     "Ask a question about your memories",
				ArgsUsage: "<question>",
				Action:    chatCommand,
				Flags: []cli.Flag{
					userFlag(),
					&cli.BoolFlag{
						Name:  "sources",
						Usage: "Print the cited sources",
						Value: true,
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Regenerate every chunk embedding offline, e.g. after changing embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL (overrides config)",
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name (overrides config)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per batch",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: defaultRetryDelay,
					},
				},
			},
			{
				Name:   "seed",
				Usage:  "Queue sample notes, or the lines of a file, as text notes",
				Action: seedCommand,
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:  "src",
						Usage: "File of seed data, one line per entry",
					},
					&cli.IntFlag{
						Name:  "lines-per-note",
						Usage: "Lines grouped into each note",
						Value: 1,
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Title for every seeded note",
					},
				},
			},
			{
				Name:      "init-config",
				Usage:     "Write the default configuration to a file",
				ArgsUsage: "[path]",
				Action:    initConfigCommand,
			},
		},
	}
}

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "User ID (defaults to server.default_user)",
	}
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

	return config.LoadDotEnv(c.String("env-file"))
}

// loadConfig reads the configuration file and applies global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if db := c.String("db"); db != "" {
		cfg.Database.Path = db
	}
	if dir := c.String("blob-dir"); dir != "" {
		cfg.Blobs.Dir = dir
	}
	return cfg, nil
}

// withBrain opens the store for the duration of fn.
func withBrain(c *cli.Context, fn func(cfg *config.Config, b *secondbrain.Brain) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	b, err := openBrain(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			slog.Error("error closing store", "err", err)
		}
	}()
	return fn(cfg, b)
}

func userOf(c *cli.Context, cfg *config.Config) string {
	if user := c.String("user"); user != "" {
		return user
	}
	return cfg.Server.DefaultUser
}
