package imageprep

import (
	"bytes"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/wingspan-tracker/constants"
	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
)

var (
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
)

// validate rejects the upload unless its declared type, extension, size and leading
// bytes all agree on one allowed format. It returns the signature-derived media type.
func validate(u RawUpload, maxUploadBytes int) (string, error) {
	declared := normalizeMediaType(u.MediaType)
	if _, ok := constants.AllowedMediaTypes[declared]; !ok {
		return "", common.NewValidationError("media_type", u.MediaType, "Invalid file type. Only PNG and JPEG images are allowed.")
	}

	ext := constants.NormalizeExt(filepath.Ext(u.Filename))
	if !constants.IsImageExt(ext) {
		return "", common.NewValidationError("filename", u.Filename, "Invalid file extension.")
	}

	if len(u.Data) == 0 {
		return "", common.NewValidationError("image", 0, "File is empty.")
	}
	if len(u.Data) > maxUploadBytes {
		return "", common.NewValidationError("image", len(u.Data),
			fmt.Sprintf("File size exceeds %dMB limit.", maxUploadBytes>>20))
	}

	sniffed := sniff(u.Data)
	if sniffed == "" {
		return "", common.NewValidationError("image", len(u.Data), "File header does not match image format.")
	}
	if sniffed != declared || sniffed != extMediaType(ext) {
		return "", common.NewValidationError("image", sniffed,
			fmt.Sprintf("File header (%s) does not match declared type %s.", sniffed, u.MediaType))
	}
	return sniffed, nil
}

// sniff returns the media type implied by the leading bytes, or "".
func sniff(data []byte) string {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return constants.MediaTypePNG
	case bytes.HasPrefix(data, jpegMagic):
		return constants.MediaTypeJPEG
	}
	return ""
}

// normalizeMediaType lowercases, drops parameters and folds image/jpg into image/jpeg.
func normalizeMediaType(mt string) string {
	mt = strings.ToLower(strings.TrimSpace(mt))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	if mt == "image/jpg" {
		return constants.MediaTypeJPEG
	}
	return mt
}

func extMediaType(ext string) string {
	switch ext {
	case "png":
		return constants.MediaTypePNG
	case "jpg", "jpeg":
		return constants.MediaTypeJPEG
	}
	return ""
}
