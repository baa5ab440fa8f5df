// Package ingestion turns one queued job into persisted, embedded chunks.
//
// Pipeline.Ingest claims the job, reads the text of its source (inline
// content, an extracted document or the audio placeholder), cleans and
// chunks it, embeds every chunk and writes all chunks in one batch. The job
// ends in done, or in failed with the error message; it is never left queued
// once claimed.
//
// Embeddings are generated by an ants worker pool gated by a rate limiter so
// the provider sees at most one request per configured interval. Results keep
// chunk order regardless of pool size.
package ingestion
