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


package core

import "errors"

// Error taxonomy shared by every layer. Callers classify failures with errors.Is.
var (
	// ErrValidation indicates missing or malformed required input (query, text, file).
	ErrValidation = errors.New("validation failed")

	// ErrExtraction indicates text could not be obtained from a source.
	ErrExtraction = errors.New("extraction failed")

	// ErrUnsupportedFormat indicates the document extractor does not handle a mimetype.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrUnsupportedType indicates an unknown source type.
	ErrUnsupportedType = errors.New("unsupported source type")

	// ErrProvider indicates an embedding or LLM provider call failed.
	ErrProvider = errors.New("provider error")

	// ErrNotFound indicates a job or source does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPersistence indicates a storage operation failed.
	ErrPersistence = errors.New("persistence error")

	// ErrInvalidTransition indicates a job status change not permitted by the job lifecycle.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// Field-level validation errors, wrapped together with ErrValidation.
var (
	// ErrEmptyContent indicates inline text content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyUser indicates the owning user is missing.
	ErrEmptyUser = errors.New("user id cannot be empty")

	// ErrEmptyQuery indicates a chat or retrieval query is empty.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrInvalidSourceType indicates a SourceType outside text, document or audio.
	ErrInvalidSourceType = errors.New("invalid source type")

	// ErrInvalidJobStatus indicates a JobStatus outside the lifecycle states.
	ErrInvalidJobStatus = errors.New("invalid job status")

	// ErrEmptyVector indicates a chunk without an embedding.
	ErrEmptyVector = errors.New("embedding vector cannot be empty")
)
