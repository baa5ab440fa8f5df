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


// Package ai defines the interfaces second-brain uses to reach model providers.
//
// Two services are involved: an Embedder that turns text into vectors for
// similarity search, and a Generator that answers a grounded prompt. Both are
// reached through an AIProvider so they share configuration and lifecycle.
//
// openai.NewProvider returns the interface; the mock package returns concrete
// types so tests can inject behavior and count calls.
//
//	provider, err := openai.NewProvider(ai.NewConfig(ai.WithHost("http://localhost:11434")))
//	vector, err := provider.Embedder().EmbedText(ctx, "standup notes")
//	answer, err := provider.Generator().Generate(ctx, prompt)
//
// # Errors
//
// Implementations wrap every transport, quota or decoding failure with
// core.ErrProvider. Callers perform no retries of their own.
package ai
