package extract

import (
	"mime"
	"path/filepath"
	"strings"
)

// Supported mimetypes.
const (
	MimePDF      = "application/pdf"
	MimeText     = "text/plain"
	MimeMarkdown = "text/markdown"
	MimeHTML     = "text/html"
	MimeXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimeMP3      = "audio/mpeg"
	MimeM4A      = "audio/mp4"
	MimeWAV      = "audio/wav"
)

var extensionTypes = map[string]string{
	".pdf":  MimePDF,
	".txt":  MimeText,
	".md":   MimeMarkdown,
	".html": MimeHTML,
	".htm":  MimeHTML,
	".xlsx": MimeXLSX,
	".mp3":  MimeMP3,
	".m4a":  MimeM4A,
	".wav":  MimeWAV,
}

// acceptedTypes lists the declared upload types accepted regardless of extension.
var acceptedTypes = map[string]bool{
	MimePDF:           true,
	MimeText:          true,
	MimeMarkdown:      true,
	MimeHTML:          true,
	MimeXLSX:          true,
	MimeMP3:           true,
	MimeM4A:           true,
	MimeWAV:           true,
	"audio/x-m4a":     true,
	"audio/x-wav":     true,
	"audio/wave":      true,
	"audio/mp3":       true,
	"text/x-markdown": true,
}

// Accepted reports whether a declared mimetype may be uploaded.
func Accepted(mimeType string) bool {
	return acceptedTypes[BaseType(mimeType)]
}

// MimeTypeFor returns the mimetype for a filename's extension and whether
// the extension is accepted for upload.
func MimeTypeFor(filename string) (string, bool) {
	mt, ok := extensionTypes[strings.ToLower(filepath.Ext(filename))]
	return mt, ok
}

// IsAudio reports whether an upload is audio, by mimetype or extension.
func IsAudio(mimeType, filename string) bool {
	if strings.HasPrefix(BaseType(mimeType), "audio/") {
		return true
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp3", ".m4a", ".wav":
		return true
	}
	return false
}

// BaseType strips parameters such as charset and lowercases the mimetype.
func BaseType(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mt
}
