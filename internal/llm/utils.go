package llm

import (
	"encoding/base64"
)

// Base64 encodes image bytes the way both providers expect them.
func Base64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DataURL packs an image into a data: URL for providers that take image URLs.
func DataURL(mediaType string, data []byte) string {
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return "data:" + mediaType + ";base64," + Base64(data)
}

// EncodedLen is the base64 length of n raw bytes, the figure provider limits apply to.
func EncodedLen(n int) int {
	return base64.StdEncoding.EncodedLen(n)
}
