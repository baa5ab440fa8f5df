// Package extract turns stored source bytes into plain text.
//
// DocumentExtractor dispatches on the declared mimetype: PDF and plain text
// go through langchaingo document loaders, HTML through goquery and XLSX
// spreadsheets through excelize. Unrecognized mimetypes fail with
// core.ErrUnsupportedFormat.
//
// Audio sources are not transcribed. Transcribe returns a fixed placeholder
// so that audio uploads still produce a searchable chunk.
package extract
