// Package server exposes a Brain over HTTP.
//
// Routes:
//
//	POST /api/ingest/text   JSON {text, title?, timestamp?}
//	POST /api/ingest/file   multipart form, field "file", optional "title"
//	GET  /api/jobs/:id      job status
//	GET  /api/jobs          the caller's jobs, newest first (?limit=n)
//	POST /api/chat          JSON {query} or {message}
//	GET  /health            liveness
//
// Successful responses are wrapped as {"success": true, "data": ...}.
// Errors are {"error": ..., "message": ...} with a status derived from the
// error kind. The caller is identified by the X-User-ID header, falling back
// to a configured default user.
package server
