// Package upload validates incoming video uploads before anything touches disk.
package upload

import (
	"io"
	"path/filepath"
	"slices"
	"strings"

	"vidisnap/internal/failure"
)

var allowedExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".wmv", ".flv", ".webm"}

// Video is an uploaded file for the lifetime of a single request.
type Video struct {
	Filename string
	Body     io.Reader
	Size     int64
}

// Extension returns the lowercase extension of the original filename.
func (v Video) Extension() string {
	return Extension(v.Filename)
}

// AllowedExtensions returns the accepted container extensions.
func AllowedExtensions() []string {
	return slices.Clone(allowedExtensions)
}

// Extension returns the lowercase extension of name, including the dot.
func Extension(name string) string {
	return strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
}

// Validate checks filename against the extension allow-list and returns the
// normalized extension. It has no side effects.
func Validate(filename string) (string, error) {
	ext := Extension(filename)
	if slices.Contains(allowedExtensions, ext) {
		return ext, nil
	}
	return "", failure.Wrap(
		failure.KindInvalidFormat,
		"validate",
		"check extension",
		"Invalid video file format. Accepted formats: "+strings.Join(allowedExtensions, ", "),
		nil,
	)
}
