// Package ingest finds score screenshots on the local filesystem and loads them as uploads.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/wingspan-tracker/constants"
	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
	"github.com/joseph-ayodele/wingspan-tracker/internal/imageprep"
)

type DirStats struct {
	Scanned uint32
	Matched uint32
	Failed  uint32
}

// File is a screenshot read from disk.
type File struct {
	Path    string
	HashHex string
	Upload  imageprep.RawUpload
}

// ListImages walks root and returns every file with an allowed image extension, in
// lexical order. Unreadable entries are counted as failures and skipped.
func ListImages(root string, skipHidden bool) ([]string, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var paths []string
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !constants.IsImageExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return paths, stats, fmt.Errorf("walk: %w", err)
	}
	return paths, stats, nil
}

// ReadFile loads path as an upload. The media type comes from the extension, so a
// misnamed file still fails the signature check downstream.
func ReadFile(path string, maxBytes int64) (File, error) {
	if !constants.IsImageExt(filepath.Ext(path)) {
		return File{}, common.NewValidationError("file", filepath.Base(path), "Invalid file extension.")
	}
	f, err := os.Open(path)
	if err != nil {
		return File{}, err
	}
	defer f.Close()

	if maxBytes > 0 {
		st, err := f.Stat()
		if err != nil {
			return File{}, err
		}
		if st.Size() > maxBytes {
			return File{}, common.NewValidationError("file", filepath.Base(path),
				fmt.Sprintf("File size exceeds %dMB limit.", maxBytes>>20))
		}
	}

	h := sha256.New()
	data, err := io.ReadAll(io.TeeReader(f, h))
	if err != nil {
		return File{}, err
	}
	return File{
		Path:    path,
		HashHex: hex.EncodeToString(h.Sum(nil)),
		Upload: imageprep.RawUpload{
			Data:      data,
			MediaType: MediaTypeForPath(path),
			Filename:  filepath.Base(path),
		},
	}, nil
}

// MediaTypeForPath guesses the declared media type from the file extension.
func MediaTypeForPath(path string) string {
	switch constants.NormalizeExt(filepath.Ext(path)) {
	case "png":
		return constants.MediaTypePNG
	case "jpg", "jpeg":
		return constants.MediaTypeJPEG
	}
	return mime.TypeByExtension(filepath.Ext(path))
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}
