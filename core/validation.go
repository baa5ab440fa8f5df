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

import (
	"fmt"
	"strings"
)

// ValidateSource validates a Source according to domain rules.
//
// Validation rules:
//   - UserID must not be empty
//   - Type must be text, document or audio
//   - Text sources must carry non-blank inline content
//   - Document and audio sources must carry a blob location
//
// NOT validated:
//   - ID (0 is valid before a sequence assigns one)
//   - Timestamp (zero means "use creation time")
func ValidateSource(source *Source) error {
	if source == nil {
		return fmt.Errorf("%w: source is nil", ErrValidation)
	}

	if source.UserID == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyUser)
	}

	if err := ValidateSourceType(source.Type); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	switch source.Type {
	case SourceTypeText:
		if strings.TrimSpace(source.Content) == "" {
			return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyContent)
		}
	default:
		if source.Location == "" {
			return fmt.Errorf("%w: %s source has no location", ErrValidation, source.Type)
		}
	}

	return nil
}

// ValidateSourceType validates that a SourceType has a known value.
func ValidateSourceType(t SourceType) error {
	switch t {
	case SourceTypeText, SourceTypeDocument, SourceTypeAudio:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidSourceType, t)
}

// ValidateJobStatus validates that a JobStatus is a lifecycle state.
func ValidateJobStatus(s JobStatus) error {
	switch s {
	case JobStatusQueued, JobStatusProcessing, JobStatusDone, JobStatusFailed:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidJobStatus, s)
}

// ValidateTransition returns ErrInvalidTransition when the lifecycle forbids from -> to.
func ValidateTransition(from, to JobStatus) error {
	if err := ValidateJobStatus(to); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// ValidateChunk validates a Chunk before it is persisted.
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrValidation)
	}
	if chunk.UserID == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyUser)
	}
	if chunk.Text == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyContent)
	}
	if len(chunk.Vector) == 0 {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyVector)
	}
	if chunk.Index < 0 {
		return fmt.Errorf("%w: negative chunk index %d", ErrValidation, chunk.Index)
	}
	return nil
}
