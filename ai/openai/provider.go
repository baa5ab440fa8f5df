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


package openai

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/DhruvTemura/second-brain-ai/ai"
	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/tmc/langchaingo/llms/openai"
)

// requestTimeout bounds a single embedding or completion round trip.
const requestTimeout = 2 * time.Minute

// Provider serves embeddings and answers from OpenAI-compatible endpoints.
// The embedding and chat endpoints may live on different hosts.
type Provider struct {
	embedder  *Embedder
	generator *Generator
	logger    *slog.Logger
}

var _ ai.AIProvider = (*Provider)(nil)

// NewProvider builds both clients from config. The caller's config is
// copied, so later mutation does not affect the provider.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: nil ai config", core.ErrValidation)
	}
	cfg := *config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "openai")
	httpClient := &http.Client{Timeout: requestTimeout}

	embedClient, err := openai.New(clientOptions(&cfg, cfg.EmbeddingHost, httpClient,
		openai.WithEmbeddingModel(cfg.EmbeddingModel))...)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding client: %w", core.ErrProvider, err)
	}
	embedder, err := newEmbedder(embedClient, logger)
	if err != nil {
		return nil, err
	}

	chatClient, err := openai.New(clientOptions(&cfg, cfg.ChatHost, httpClient,
		openai.WithModel(cfg.ChatModel))...)
	if err != nil {
		return nil, fmt.Errorf("%w: chat client: %w", core.ErrProvider, err)
	}

	logger.Debug("provider ready",
		"embeddingHost", cfg.EmbeddingHost, "embeddingModel", cfg.EmbeddingModel,
		"chatHost", cfg.ChatHost, "chatModel", cfg.ChatModel)

	return &Provider{
		embedder:  embedder,
		generator: newGenerator(chatClient, logger),
		logger:    logger,
	}, nil
}

// clientOptions assembles the options shared by the embedding and chat clients.
func clientOptions(cfg *ai.Config, host string, httpClient *http.Client, extra ...openai.Option) []openai.Option {
	token := cfg.APIKey
	if token == "" {
		// Local servers such as Ollama ignore the key but the client insists on one.
		token = "none"
	}
	opts := []openai.Option{
		openai.WithBaseURL(host),
		openai.WithToken(token),
		openai.WithHTTPClient(httpClient),
	}
	return append(opts, extra...)
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) Generator() ai.Generator {
	return p.generator
}

// Close is a no-op; the HTTP clients hold no resources beyond pooled connections.
func (p *Provider) Close() error {
	p.logger.Debug("provider closed")
	return nil
}
