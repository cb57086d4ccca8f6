package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/apperr"
	"github.com/swing-coach/backend/internal/config"
)

// Storage owns media bytes. Rows only ever hold the locator returned by Put.
//
// Locators are slash-separated keys; putting the same name twice overwrites.
type Storage interface {
	Put(ctx context.Context, data []byte, name string) (string, error)
	Get(ctx context.Context, locator string) ([]byte, error)
	Delete(ctx context.Context, locator string) error
	// ResolveAccessURL returns a URL granting read access to one object.
	// Backends without expiry ignore ttl.
	ResolveAccessURL(ctx context.Context, locator string, ttl time.Duration) (string, error)
	Kind() string
}

// New selects the backend named in cfg.
func New(ctx context.Context, cfg config.StorageConfig, publicBaseURL string, log *zap.Logger) (Storage, error) {
	switch cfg.Backend {
	case "local":
		return NewLocal(cfg.LocalPath, publicBaseURL, cfg.PutRetries, log)
	case "gcs":
		return NewGCS(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// CleanKey turns a suggested name into a storage key, rejecting traversal.
func CleanKey(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return "", apperr.New(apperr.KindValidation, "storage.CleanKey", "empty object name")
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "", apperr.Newf(apperr.KindValidation, "storage.CleanKey", "invalid object name %q", name)
		}
	}
	key := strings.TrimPrefix(path.Clean("/"+name), "/")
	if key == "" || key == "." {
		return "", apperr.Newf(apperr.KindValidation, "storage.CleanKey", "invalid object name %q", name)
	}
	return key, nil
}

// SafeFileName strips directories and characters that do not belong in a key segment.
func SafeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '?' || r == '#' || r == '%' || r < 0x20:
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" || out == "." || out == ".." {
		return "file"
	}
	return out
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".m4v": true, ".webm": true,
	".avi": true, ".mkv": true, ".mpg": true, ".mpeg": true,
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true,
}

var audioExtensions = map[string]bool{
	".webm": true, ".wav": true, ".mp3": true, ".m4a": true,
	".ogg": true, ".oga": true, ".flac": true, ".mp4": true,
}

func IsVideoFile(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

func IsAudioFile(name string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(name))]
}

// ContentTypeFor guesses a MIME type from the key suffix.
func ContentTypeFor(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch path.Ext(s) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
