package constants

import "strings"

// Media types accepted for score screenshots.
const (
	MediaTypePNG  = "image/png"
	MediaTypeJPEG = "image/jpeg"
)

// AllowedMediaTypes holds the declared upload types we are willing to read.
var AllowedMediaTypes = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/jpg":  {},
}

// AllowedExtensions holds the allowed screenshot file extensions (no dot, lower case).
var AllowedExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
}

// Upload and transport ceilings.
const (
	// MaxUploadBytes is the largest file we will even attempt to read.
	MaxUploadBytes = 10 << 20
	// MaxVisionBase64Bytes is the vision service's limit on the base64 image payload.
	MaxVisionBase64Bytes = 5 << 20
	// VisionSafetyMarginBytes is kept free below the derived raw ceiling.
	VisionSafetyMarginBytes = 100 << 10
)

// MaxVisionRawBytes is the raw byte ceiling that still fits MaxVisionBase64Bytes once encoded.
const MaxVisionRawBytes = MaxVisionBase64Bytes*3/4 - VisionSafetyMarginBytes

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsImageExt reports whether ext (with or without dot) is an allowed screenshot extension.
func IsImageExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
