package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	secondbrain "github.com/DhruvTemura/second-brain-ai"
	"github.com/DhruvTemura/second-brain-ai/ai/mock"
	"github.com/DhruvTemura/second-brain-ai/config"
	"github.com/DhruvTemura/second-brain-ai/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

type cliEnv struct {
	dir      string
	provider *mock.MockProvider
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	env := &cliEnv{dir: t.TempDir(), provider: mock.NewMockProvider()}

	original := openBrain
	openBrain = func(cfg *config.Config) (*secondbrain.Brain, error) {
		return secondbrain.FromConfig(cfg,
			secondbrain.WithProvider(env.provider),
			secondbrain.WithIngestionOptions(ingestion.WithEmbedDelay(0)),
		)
	}
	t.Cleanup(func() { openBrain = original })
	return env
}

// run executes the CLI against the env's store and returns stdout.
func (env *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out

	full := append([]string{
		"secondbrain",
		"--log-level", "error",
		"--config", filepath.Join(env.dir, "missing.yaml"),
		"--env-file", filepath.Join(env.dir, "missing.env"),
		"--db", filepath.Join(env.dir, "db"),
		"--blob-dir", filepath.Join(env.dir, "blobs"),
	}, args...)
	err := app.Run(full)
	return out.String(), err
}

func TestSetupLogger(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	for _, level := range []string{"debug", "INFO", "warn", "error"} {
		app := &cli.App{
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "log-level"},
				&cli.StringFlag{Name: "env-file", Value: filepath.Join(t.TempDir(), "none")},
			},
			Before: setupLogger,
			Action: func(*cli.Context) error { return nil },
		}
		require.NoError(t, app.Run([]string{"app", "--log-level", level}), level)
	}

	app := &cli.App{
		Flags:  []cli.Flag{&cli.StringFlag{Name: "log-level"}, &cli.StringFlag{Name: "env-file"}},
		Before: setupLogger,
		Action: func(*cli.Context) error { return nil },
	}
	err := app.Run([]string{"app", "--log-level", "verbose"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestCLI_IngestProcessChat(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "ingest-text", "--title", "Roadmap", "roadmap planning")
	require.NoError(t, err)
	assert.Contains(t, out, "Queued job")
	assert.Contains(t, out, `"Roadmap"`)
	jobID := regexp.MustCompile(`Queued job (\d+)`).FindStringSubmatch(out)[1]

	out, err = env.run(t, "job", jobID)
	require.NoError(t, err)
	assert.Contains(t, out, "queued")

	out, err = env.run(t, "worker", "--once")
	require.NoError(t, err)
	assert.Contains(t, out, "Processed 1 jobs: 1 done, 0 failed")

	out, err = env.run(t, "job", jobID)
	require.NoError(t, err)
	assert.Contains(t, out, "done")

	out, err = env.run(t, "chat", "roadmap", "planning")
	require.NoError(t, err)
	assert.Contains(t, out, "mock answer")
	assert.Contains(t, out, "[1] Roadmap")
}

func TestCLI_IngestFileAndList(t *testing.T) {
	env := newCLIEnv(t)

	path := filepath.Join(env.dir, "groceries.md")
	require.NoError(t, os.WriteFile(path, []byte("# Groceries\n\nEggs, flour and butter."), 0o644))

	out, err := env.run(t, "ingest-file", "--user", "carol", path)
	require.NoError(t, err)
	assert.Contains(t, out, "document source")

	out, err = env.run(t, "jobs", "--user", "carol")
	require.NoError(t, err)
	assert.Contains(t, out, "groceries.md")
	assert.Contains(t, out, "queued")

	out, err = env.run(t, "jobs")
	require.NoError(t, err)
	assert.Contains(t, out, "No jobs")
}

func TestCLI_ChatWithoutMemories(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "chat", "What did I upload today?")
	require.NoError(t, err)
	assert.Contains(t, out, "I don't have any information")
	assert.Zero(t, env.provider.GetMockGenerator().CallCount())
}

func TestCLI_Reembed(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "ingest-text", "first memory")
	require.NoError(t, err)
	_, err = env.run(t, "ingest-text", "second memory")
	require.NoError(t, err)
	_, err = env.run(t, "worker", "--once")
	require.NoError(t, err)

	out, err := env.run(t, "reembed", "--batch-size", "1", "--retry-delay", "1ms")
	require.NoError(t, err)
	assert.Contains(t, out, "Re-embedded 2 of 2 chunks")
}

func TestCLI_ArgumentErrors(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "ingest-text")
	assert.Error(t, err)

	_, err = env.run(t, "ingest-file")
	assert.Error(t, err)

	_, err = env.run(t, "job", "not-a-number")
	assert.Error(t, err)

	_, err = env.run(t, "job", "999")
	assert.Error(t, err)

	_, err = env.run(t, "chat")
	assert.Error(t, err)
}

func TestCLI_InitConfig(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(env.dir, "conf", "secondbrain.yaml")

	out, err := env.run(t, "init-config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote default configuration")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "database:"))

	_, err = env.run(t, "init-config", path)
	assert.Error(t, err, "existing files are not overwritten")
}

func TestCLI_Seed(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "Queued 12 notes")

	src := filepath.Join(env.dir, "seed.txt")
	require.NoError(t, os.WriteFile(src, []byte("one\ntwo\n\nthree\nfour\nfive\n"), 0o644))

	out, err = env.run(t, "seed", "--src", src, "--lines-per-note", "2", "--user", "dave")
	require.NoError(t, err)
	assert.Contains(t, out, "Queued 3 notes")

	out, err = env.run(t, "worker", "--once", "--batch-size", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "15 done")

	_, err = env.run(t, "seed", "--lines-per-note", "0")
	assert.Error(t, err)
}
