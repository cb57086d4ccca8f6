package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/apperr"
)

// Local keeps objects as files under a root directory. Access URLs point at
// the API's own /media/ route and never expire.
type Local struct {
	root    string
	baseURL string
	retries int
	log     *zap.Logger
	files   http.Handler
}

func NewLocal(root, publicBaseURL string, retries int, log *zap.Logger) (*Local, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &Local{
		root:    absRoot,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		retries: retries,
		log:     log.Named("storage.local"),
		files:   http.FileServer(objectsOnly{http.Dir(absRoot)}),
	}, nil
}

func (l *Local) Kind() string { return "local" }

// fullPath resolves key under root, refusing anything that escapes it.
func (l *Local) fullPath(locator string) (string, string, error) {
	key, err := CleanKey(locator)
	if err != nil {
		return "", "", err
	}
	full := filepath.Join(l.root, filepath.FromSlash(key))
	if full != l.root && !strings.HasPrefix(full, l.root+string(os.PathSeparator)) {
		return "", "", apperr.Newf(apperr.KindValidation, "storage.local", "invalid object name %q", locator)
	}
	return key, full, nil
}

func (l *Local) Put(ctx context.Context, data []byte, name string) (string, error) {
	key, full, err := l.fullPath(name)
	if err != nil {
		return "", err
	}
	err = withPutRetry(ctx, l.retries, l.log, key, func() error {
		if err := writeFileAtomic(full, data); err != nil {
			if errors.Is(err, os.ErrPermission) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	l.log.Debug("stored object", zap.String("key", key), zap.Int("bytes", len(data)))
	return key, nil
}

// writeFileAtomic writes to a sibling temp file and renames it over the
// target so readers never observe a half-written capture.
func writeFileAtomic(full string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".put-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (l *Local) Get(ctx context.Context, locator string) ([]byte, error) {
	_, full, err := l.fullPath(locator)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.Newf(apperr.KindNotFound, "storage.Get", "object %q not found", locator)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "storage.Get", err)
	}
	return data, nil
}

func (l *Local) Delete(ctx context.Context, locator string) error {
	_, full, err := l.fullPath(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperr.Wrap(apperr.KindStorageUnavailable, "storage.Delete", err)
	}
	return nil
}

func (l *Local) ResolveAccessURL(ctx context.Context, locator string, ttl time.Duration) (string, error) {
	key, full, err := l.fullPath(locator)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return "", apperr.Newf(apperr.KindNotFound, "storage.ResolveAccessURL", "object %q not found", locator)
	}
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return l.baseURL + "/media/" + strings.Join(segs, "/"), nil
}

// ServeHTTP serves stored objects; mount it with the /media prefix stripped.
func (l *Local) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.URL.Path, "/.put-") {
		http.NotFound(w, r)
		return
	}
	l.files.ServeHTTP(w, r)
}

// objectsOnly hides directories so /media/ never renders an index.
type objectsOnly struct {
	http.FileSystem
}

func (fs objectsOnly) Open(name string) (http.File, error) {
	f, err := fs.FileSystem.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}
