// Package mime names the media types the connector deals with on its own: request bodies
// decoded as JSON and files transmitted by sendfile.
package mime

import (
	"path/filepath"
	"strings"

	"github.com/indigo-web/utils/strcomp"
)

type MIME = string

const (
	OctetStream MIME = "application/octet-stream"
	Plain       MIME = "text/plain"
	HTML        MIME = "text/html"
	CSS         MIME = "text/css"
	JS          MIME = "text/javascript"
	XML         MIME = "text/xml"
	JSON        MIME = "application/json"
	PDF         MIME = "application/pdf"
	WASM        MIME = "application/wasm"
	ZIP         MIME = "application/zip"
	GZIP        MIME = "application/gzip"
	AVIF        MIME = "image/avif"
	GIF         MIME = "image/gif"
	JPEG        MIME = "image/jpeg"
	PNG         MIME = "image/png"
	SVG         MIME = "image/svg+xml"
	ICO         MIME = "image/vnd.microsoft.icon"
	WEBP        MIME = "image/webp"
)

var extensions = map[string]MIME{
	".txt":  Plain,
	".htm":  HTML,
	".html": HTML,
	".css":  CSS,
	".js":   JS,
	".mjs":  JS,
	".xml":  XML,
	".json": JSON,
	".pdf":  PDF,
	".wasm": WASM,
	".zip":  ZIP,
	".gz":   GZIP,
	".avif": AVIF,
	".gif":  GIF,
	".jpeg": JPEG,
	".jpg":  JPEG,
	".png":  PNG,
	".svg":  SVG,
	".ico":  ICO,
	".webp": WEBP,
}

// Essence strips parameters off the Content-Type value.
func Essence(value string) string {
	value, _, _ = strings.Cut(value, ";")
	return strings.TrimSpace(value)
}

// Complies tells whether the Content-Type value denotes the media type. Media types are
// case-insensitive. Empty value complies with anything.
func Complies(mime MIME, value string) bool {
	value = Essence(value)
	return len(value) == 0 || strcomp.EqualFold(value, mime)
}

// ByExtension guesses the media type by the extension, the leading dot included.
func ByExtension(ext string) MIME {
	if mime, found := extensions[strings.ToLower(ext)]; found {
		return mime
	}

	return OctetStream
}

// ByFilename is ByExtension over the extension of the file name.
func ByFilename(name string) MIME {
	return ByExtension(filepath.Ext(name))
}

// WithCharset appends the UTF-8 charset parameter to textual media types.
func WithCharset(mime MIME) string {
	switch mime {
	case Plain, HTML, CSS, JS, XML:
		return mime + ";charset=utf-8"
	default:
		return mime
	}
}
