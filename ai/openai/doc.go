// Package openai talks to OpenAI-compatible embedding and chat endpoints
// through langchaingo.
//
// The same code path serves api.openai.com and local servers such as Ollama:
// hosts without a /v1 suffix get one appended, and an empty API key is sent
// as a placeholder token.
//
//	provider, err := openai.NewProvider(ai.NewConfig(
//	    ai.WithHost("http://localhost:11434"),
//	    ai.WithEmbeddingModel("nomic-embed-text"),
//	    ai.WithChatModel("llama3.1"),
//	))
//
// Every transport or API failure is wrapped in core.ErrProvider. Requests are
// never retried here; callers that want retries wrap the embedder themselves.
package openai
