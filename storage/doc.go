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


// Package storage provides the storage abstraction layer for second-brain.
//
// This package defines repository interfaces that decouple storage implementation
// from the ingestion and retrieval pipeline:
//
//   - SourceRepository: user-submitted sources (text, documents, audio)
//   - JobRepository: ingestion jobs and their lifecycle, including atomic claiming
//   - ChunkRepository: the vector store holding embedded chunks
//
// # Usage
//
// Open a BadgerDB backend and its repositories:
//
//	repos, err := badger.OpenRepositories("/path/to/db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repos.Close()
//
// Use in tests with in-memory storage:
//
//	repos, err := badger.NewMemoryRepositories()
//
// # Errors
//
// ErrNotFound and ErrPersistence alias the core taxonomy so callers can
// test with errors.Is against either package. Raw engine failures are
// always wrapped with ErrPersistence.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
