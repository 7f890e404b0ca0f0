package artifact

import (
	"path"
	"strings"
)

// Content types used for uploads.
const (
	ContentTypeZip    = "application/zip"
	ContentTypeBinary = "application/octet-stream"
)

// compressionSuffixes maps pre-compressed file suffixes to their
// Content-Encoding. The suffix is stripped before the type lookup.
var compressionSuffixes = map[string]string{
	".br": "br",
	".gz": "gzip",
}

// contentTypes is the extension table for tree uploads.
var contentTypes = map[string]string{
	".html":     "text/html",
	".htm":      "text/html",
	".js":       "application/javascript",
	".mjs":      "application/javascript",
	".css":      "text/css",
	".json":     "application/json",
	".wasm":     "application/wasm",
	".data":     ContentTypeBinary,
	".unityweb": ContentTypeBinary,
	".mem":      ContentTypeBinary,
	".symbols":  ContentTypeBinary,
	".png":      "image/png",
	".jpg":      "image/jpeg",
	".jpeg":     "image/jpeg",
	".gif":      "image/gif",
	".svg":      "image/svg+xml",
	".ico":      "image/x-icon",
	".webp":     "image/webp",
	".txt":      "text/plain",
	".xml":      "application/xml",
}

// ContentTypeFor returns the content type and content encoding for a file in
// a tree upload. bundle.js.br yields ("application/javascript", "br");
// data.wasm yields ("application/wasm", "").
func ContentTypeFor(name string) (contentType, contentEncoding string) {
	base := strings.ToLower(path.Base(strings.ReplaceAll(name, "\\", "/")))
	if ext := path.Ext(base); ext != "" {
		if enc, ok := compressionSuffixes[ext]; ok {
			contentEncoding = enc
			base = strings.TrimSuffix(base, ext)
		}
	}
	if ct, ok := contentTypes[path.Ext(base)]; ok {
		return ct, contentEncoding
	}
	return ContentTypeBinary, contentEncoding
}

// SingleFileContentType returns the content type for a single-file upload.
func SingleFileContentType(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ArchiveSuffix) {
		return ContentTypeZip
	}
	return ContentTypeBinary
}
