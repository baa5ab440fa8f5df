package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Sources and jobs take theirs from database sequences; chunks derive theirs from content.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ChunkID returns the identity of the chunk at index within a source.
// Re-ingesting the same source yields the same chunk identities.
func ChunkID(sourceID ID, index int) ID {
	return IDFromContent(strconv.FormatUint(uint64(sourceID), 10) + ":" + strconv.Itoa(index))
}

// SourceType identifies how text is obtained from a source.
type SourceType string

const (
	// SourceTypeText is free text submitted inline.
	SourceTypeText SourceType = "text"
	// SourceTypeDocument is an uploaded file handed to the document extractor.
	SourceTypeDocument SourceType = "document"
	// SourceTypeAudio is an uploaded recording. Transcription is a stub.
	SourceTypeAudio SourceType = "audio"
)

// Source is a unit of user-submitted content awaiting or having undergone ingestion.
type Source struct {
	Id        ID
	UserID    string
	Type      SourceType
	Title     string
	Location  string    // Blob name for uploaded files, empty for text
	MimeType  string    // Declared mimetype for uploaded files
	Content   string    // Inline content, text sources only
	Timestamp time.Time // Explicit source timestamp; zero when absent
	CreatedAt time.Time
}

// EffectiveTimestamp returns the source timestamp, falling back to creation time.
func (s *Source) EffectiveTimestamp() time.Time {
	if s.Timestamp.IsZero() {
		return s.CreatedAt
	}
	return s.Timestamp
}

// JobStatus is a state in the job lifecycle.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition leaves this status.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// CanTransitionTo reports whether the lifecycle permits moving from s to next.
// Transitions are one-directional: queued -> processing -> done|failed.
// A queued job may also fail directly when it cannot be claimed for processing.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return next == JobStatusProcessing || next == JobStatusFailed
	case JobStatusProcessing:
		return next == JobStatusDone || next == JobStatusFailed
	default:
		return false
	}
}

// Job is a unit of asynchronous work turning one Source into persisted Chunks.
type Job struct {
	Id        ID
	UserID    string
	SourceID  ID
	Status    JobStatus
	Error     string // Failure message, set only when Status is failed
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobSummary is a job joined with the title and type of its source, for listings.
type JobSummary struct {
	Job         *Job
	SourceTitle string
	SourceType  SourceType
}

// Chunk is a bounded span of source text with its own embedding and ordering index.
// Chunks are immutable once written.
type Chunk struct {
	Id        ID
	SourceID  ID
	UserID    string
	Index     int // Zero-based, unique within the source
	Text      string
	Vector    []float32
	Timestamp time.Time // Inherited from the source
	CreatedAt time.Time
}

// RetrievedChunk is a chunk returned for a single query, with its similarity score.
// Similarity is 1.0 when the chunk was selected by time range alone.
type RetrievedChunk struct {
	Chunk       *Chunk
	Similarity  float32
	SourceTitle string
}

// TimeRange is a closed interval [Start, End].
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within the range, bounds included.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}
