package storage

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type Uploader interface {
	UploadFile(ctx context.Context, localPath, objectName string) (remoteRef string, err error)
}

var extTypes = map[string]string{
	".webm": "video/webm",
	".wav":  "audio/wav",
	".mp4":  "video/mp4",
}

// contentType sniffs the file, falling back to its extension when the
// content is not recognized.
func contentType(path string) string {
	if m, err := mimetype.DetectFile(path); err == nil && !m.Is("application/octet-stream") {
		return m.String()
	}
	if t, ok := extTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return "application/octet-stream"
}
