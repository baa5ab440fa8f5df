// Package mock holds in-process stand-ins for the AI provider.
//
// MockEmbedder hashes text into a unit vector, so the same text always embeds
// to the same point and similarity search stays deterministic. MockGenerator
// records every prompt and echoes a canned answer. Both accept override
// functions when a test needs failures or specific vectors:
//
//	embedder := mock.NewMockEmbedder().WithEmbedTextsFunc(failAfter(2))
//	provider := mock.NewMockProvider()
//	prompt := provider.GetMockGenerator().LastPrompt()
package mock
