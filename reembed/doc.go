// Package reembed regenerates the embeddings of every stored chunk, typically
// after switching embedding model.
//
// Chunks are scanned in ID order in batches. Each batch is embedded with
// retry and exponential backoff, normalized to unit length and written back
// with ChunkRepository.ReplaceVectors, which changes nothing but the vector.
// Progress is reported to a writer as the run advances.
//
// This is the one place a stored chunk changes after ingestion, and only its
// vector does. It is an offline maintenance step: the secondbrain reembed
// command opens the database directly, and Badger's directory lock refuses
// that while a server or worker process holds the same store.
package reembed
