package badger

import (
	"encoding/binary"
	"time"

	"github.com/DhruvTemura/second-brain-ai/core"
)

// Key prefixes for different data types
const (
	sourcePrefix      = "src:"
	sourceIDSeq       = "srcseq"
	jobPrefix         = "job:"
	jobQueuePrefix    = "jobq:"
	jobUserPrefix     = "jobu:"
	jobIDSeq          = "jobseq"
	chunkPrefix       = "chk:"
	chunkTimePrefix   = "chkt:"
	chunkSourcePrefix = "chks:"
)

// userSep terminates the user component of composite keys so that one user's
// keys never share a prefix with another user whose ID extends it.
const userSep = 0x00

// appendUint64 writes v in BigEndian order so lexicographic sort matches numeric sort.
func appendUint64(buf []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(buf, v)
}

func makeIDKey(prefix string, id core.ID) []byte {
	buf := make([]byte, 0, len(prefix)+8)
	buf = append(buf, prefix...)
	return appendUint64(buf, uint64(id))
}

// makeSourceKey generates a key for a source by ID.
func makeSourceKey(id core.ID) []byte {
	return makeIDKey(sourcePrefix, id)
}

// makeJobKey generates a key for a job by ID.
func makeJobKey(id core.ID) []byte {
	return makeIDKey(jobPrefix, id)
}

// makeChunkKey generates a key for a chunk by ID.
func makeChunkKey(id core.ID) []byte {
	return makeIDKey(chunkPrefix, id)
}

// makeJobQueueKey generates a key for the pending-job index.
// Format: prefix:createdAt:id
func makeJobQueueKey(createdAt time.Time, id core.ID) []byte {
	buf := make([]byte, 0, len(jobQueuePrefix)+16)
	buf = append(buf, jobQueuePrefix...)
	buf = appendUint64(buf, uint64(createdAt.UnixMicro()))
	return appendUint64(buf, uint64(id))
}

// makeUserPrefix generates the per-user prefix of a composite index.
// Format: prefix:user\x00
func makeUserPrefix(prefix, userID string) []byte {
	buf := make([]byte, 0, len(prefix)+len(userID)+1+16)
	buf = append(buf, prefix...)
	buf = append(buf, userID...)
	return append(buf, userSep)
}

// makeUserTimeKey generates a key for a per-user time index.
// Format: prefix:user\x00:timestamp:id
func makeUserTimeKey(prefix, userID string, ts time.Time, id core.ID) []byte {
	buf := makeUserPrefix(prefix, userID)
	buf = appendUint64(buf, uint64(ts.UnixMicro()))
	return appendUint64(buf, uint64(id))
}

// makePartialUserTimeKey generates a partial key for per-user time range scans.
// Format: prefix:user\x00:timestamp
func makePartialUserTimeKey(prefix, userID string, ts time.Time) []byte {
	buf := makeUserPrefix(prefix, userID)
	return appendUint64(buf, uint64(ts.UnixMicro()))
}

// makeChunkSourceKey generates a key for the source-to-chunk index.
// Format: prefix:sourceID:index
func makeChunkSourceKey(sourceID core.ID, index int) []byte {
	buf := make([]byte, 0, len(chunkSourcePrefix)+16)
	buf = append(buf, chunkSourcePrefix...)
	buf = appendUint64(buf, uint64(sourceID))
	return appendUint64(buf, uint64(index))
}

// makePartialChunkSourceKey generates a partial key for listing a source's chunks.
func makePartialChunkSourceKey(sourceID core.ID) []byte {
	return makeIDKey(chunkSourcePrefix, sourceID)
}
