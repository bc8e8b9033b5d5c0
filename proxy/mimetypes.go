package proxy

import "strings"

// BinaryMimeTypes is an ordered list of mime type patterns. A pattern is
// either an exact type ("image/png") or a wildcard subtype ("image/*").
type BinaryMimeTypes []string

var defaultBinaryMimeTypes = BinaryMimeTypes{
	"application/javascript",
	"application/json",
	"application/octet-stream",
	"application/xml",
	"font/eot",
	"font/opentype",
	"font/otf",
	"image/jpeg",
	"image/png",
	"image/svg+xml",
	"text/comma-separated-values",
	"text/css",
	"text/html",
	"text/javascript",
	"text/plain",
	"text/text",
	"text/xml",
}

// DefaultBinaryMimeTypes returns a copy of the mime types a proxy treats as
// binary when none are configured.
func DefaultBinaryMimeTypes() BinaryMimeTypes {
	return append(BinaryMimeTypes(nil), defaultBinaryMimeTypes...)
}

// MediaType extracts the lower cased primary type from a content-type header
// value, dropping any parameters.
func MediaType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}

	return strings.ToLower(strings.TrimSpace(contentType))
}

// Match returns true if the media type of contentType matches one of the
// patterns.
func (types BinaryMimeTypes) Match(contentType string) bool {
	mediaType := MediaType(contentType)
	if mediaType == "" {
		return false
	}

	for _, pattern := range types {
		if matchMimePattern(strings.ToLower(pattern), mediaType) {
			return true
		}
	}

	return false
}

func matchMimePattern(pattern, mediaType string) bool {
	if pattern == "*/*" || pattern == mediaType {
		return true
	}

	prefix, ok := strings.CutSuffix(pattern, "/*")
	if !ok {
		return false
	}

	major, _, found := strings.Cut(mediaType, "/")
	return found && major == prefix
}
