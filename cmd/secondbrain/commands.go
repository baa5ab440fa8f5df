package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	secondbrain "github.com/DhruvTemura/second-brain-ai"
	"github.com/DhruvTemura/second-brain-ai/config"
	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/DhruvTemura/second-brain-ai/reembed"
	"github.com/DhruvTemura/second-brain-ai/server"
	"github.com/DhruvTemura/second-brain-ai/worker"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const defaultRetryDelay = time.Second

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func serveCommand(c *cli.Context) error {
	return withBrain(c, func(cfg *config.Config, b *secondbrain.Brain) error {
		ctx, stop := signalContext(c)
		defer stop()

		addr := cfg.Server.Addr
		if a := c.String("addr"); a != "" {
			addr = a
		}

		srv, err := server.New(b,
			server.WithDefaultUser(cfg.Server.DefaultUser),
			server.WithMaxUploadBytes(cfg.Ingestion.MaxUploadBytes),
		)
		if err != nil {
			return err
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.Run(ctx, addr) })
		if c.Bool("worker") {
			w, err := newWorker(b, cfg)
			if err != nil {
				return err
			}
			g.Go(func() error { return w.Run(ctx) })
		}
		return g.Wait()
	})
}

func workerCommand(c *cli.Context) error {
	return withBrain(c, func(cfg *config.Config, b *secondbrain.Brain) error {
		if d := c.Duration("interval"); d > 0 {
			cfg.Worker.Interval = d
		}
		if n := c.Int("batch-size"); n > 0 {
			cfg.Worker.BatchSize = n
		}

		w, err := newWorker(b, cfg)
		if err != nil {
			return err
		}

		ctx, stop := signalContext(c)
		defer stop()

		if c.Bool("once") {
			report, err := w.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Processed %d jobs: %d done, %d failed, %d skipped, %d chunks\n",
				report.Processed(), report.Succeeded, report.Failed, report.Skipped, report.Chunks)
			return nil
		}
		return w.Run(ctx)
	})
}

func newWorker(b *secondbrain.Brain, cfg *config.Config) (*worker.Worker, error) {
	return b.NewWorker(
		worker.WithInterval(cfg.Worker.Interval),
		worker.WithBatchSize(cfg.Worker.BatchSize),
	)
}

func ingestTextCommand(c *cli.Context) error {
	text := strings.Join(c.Args().Slice(), " ")
	if text == "-" {
		data, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return err
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("text is required")
	}

	return withBrain(c, func(cfg *config.Config, b *secondbrain.Brain) error {
		note := secondbrain.TextNote{Text: text, Title: c.String("title")}
		if ts := c.Timestamp("timestamp"); ts != nil {
			note.Timestamp = *ts
		}

		sub, err := b.SubmitText(c.Context, userOf(c, cfg), note)
		if err != nil {
			return err
		}
		printSubmission(c.App.Writer, sub)
		return nil
	})
}

func ingestFileCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("file path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return withBrain(c, func(cfg *config.Config, b *secondbrain.Brain) error {
		sub, err := b.SubmitFile(c.Context, userOf(c, cfg), secondbrain.FileUpload{
			Filename: filepath.Base(path),
			MimeType: c.String("mime"),
			Data:     data,
			Title:    c.String("title"),
		})
		if err != nil {
			return err
		}
		printSubmission(c.App.Writer, sub)
		return nil
	})
}

func printSubmission(w io.Writer, sub *secondbrain.Submission) {
	fmt.Fprintf(w, "Queued job %d for %s source %d (%q)\n",
		sub.Job.Id, sub.Source.Type, sub.Source.Id, sub.Source.Title)
}

func jobCommand(c *cli.Context) error {
	id, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid job id %q", c.Args().First())
	}

	return withBrain(c, func(cfg *config.Config, b *secondbrain.Brain) error {
		job, err := b.GetJob(c.Context, core.ID(id))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Job %d: %s (source %d, updated %s)\n",
			job.Id, job.Status, job.SourceID, job.UpdatedAt.Local().Format(time.DateTime))
		if job.Error != "" {
			fmt.Fprintf(c.App.Writer, "Error: %s\n", job.Error)
		}
		return nil
	})
}

func jobsCommand(c *cli.Context) error {
	return withBrain(c, func(cfg *config.Config, b *secondbrain.Brain) error {
		jobs, err := b.ListJobs(c.Context, userOf(c, cfg), c.Int("limit"))
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Fprintln(c.App.Writer, "No jobs")
			return nil
		}
		for _, s := range jobs {
			fmt.Fprintf(c.App.Writer, "%d\t%s\t%s\t%s\t%s\n",
				s.Job.Id, s.Job.Status, s.SourceType, s.Job.CreatedAt.Local().Format(time.DateTime), s.SourceTitle)
		}
		return nil
	})
}

func chatCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("question is required")
	}

	return withBrain(c, func(cfg *config.Config, b *secondbrain.Brain) error {
		answer, err := b.Chat(c.Context, query, userOf(c, cfg))
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, answer.Answer)

		if c.Bool("sources") && len(answer.Sources) > 0 {
			fmt.Fprintln(c.App.Writer, "\nSources:")
			for i, s := range answer.Sources {
				title := s.Title
				if title == "" {
					title = fmt.Sprintf("source %d", s.SourceID)
				}
				fmt.Fprintf(c.App.Writer, "[%d] %s (%.2f, %s): %s\n",
					i+1, title, s.Similarity, s.Timestamp.Local().Format(time.DateTime), s.Text)
			}
		}
		return nil
	})
}

func reembedCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if host := c.String("embedding-host"); host != "" {
		cfg.AI.EmbeddingHost = host
	}
	if model := c.String("embedding-model"); model != "" {
		cfg.AI.EmbeddingModel = model
	}

	b, err := openBrain(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer b.Close()

	slog.Info("re-embedding", "host", cfg.AI.EmbeddingHost, "model", cfg.AI.EmbeddingModel)

	r, err := b.NewReembedder(&reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		Retry: reembed.RetryPolicy{
			MaxAttempts: c.Int("max-retries"),
			BaseDelay:   c.Duration("retry-delay"),
			MaxDelay:    30 * c.Duration("retry-delay"),
		},
	}, reembed.WithProgress(c.App.ErrWriter))
	if err != nil {
		return err
	}

	ctx, stop := signalContext(c)
	defer stop()

	result, err := r.Run(ctx)
	if err != nil {
		return fmt.Errorf("re-embedding failed after %d chunks: %w", result.Embedded, err)
	}
	fmt.Fprintf(c.App.Writer, "Re-embedded %d of %d chunks\n", result.Embedded, result.Total)
	return nil
}

func initConfigCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		path = c.String("config")
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	if err := config.Save(path, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Wrote default configuration to %s\n", path)
	return nil
}
