package ingest

import "strings"

// extensionForMimeType derives a file extension from a Content-Type value.
// Unknown or empty types fall back to a generic binary extension.
func extensionForMimeType(mimeType string) string {
	// Strip parameters like "; charset=utf-8"
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = mimeType[:idx]
	}
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))

	if ext, ok := mimeExtensions[mimeType]; ok {
		return ext
	}
	return "bin"
}

var mimeExtensions = map[string]string{
	"text/html":              "html",
	"text/plain":             "txt",
	"text/markdown":          "md",
	"text/css":               "css",
	"text/csv":               "csv",
	"text/xml":               "xml",
	"application/xml":        "xml",
	"application/json":       "json",
	"application/pdf":        "pdf",
	"application/zip":        "zip",
	"application/gzip":       "gz",
	"application/javascript": "js",
	"application/xhtml+xml":  "xhtml",
	"application/rss+xml":    "rss",
	"application/atom+xml":   "atom",
	"image/png":              "png",
	"image/jpeg":             "jpg",
	"image/gif":              "gif",
	"image/webp":             "webp",
	"image/svg+xml":          "svg",
	"image/x-icon":           "ico",
	"video/mp4":              "mp4",
	"video/webm":             "webm",
	"audio/mpeg":             "mp3",
	"audio/ogg":              "ogg",
	"font/woff":              "woff",
	"font/woff2":             "woff2",
}
