package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/swing-coach/backend/internal/apperr"
	"github.com/swing-coach/backend/internal/config"
)

var errObjectNotExist = errors.New("object does not exist")

// objectClient is the slice of a bucket the GCS backend needs.
type objectClient interface {
	Write(ctx context.Context, key string, data []byte, contentType string) error
	Read(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	SignedURL(key string, expires time.Time) (string, error)
}

// GCS stores objects in a Cloud Storage bucket and hands out V4 signed URLs.
type GCS struct {
	objects    objectClient
	bucket     string
	defaultTTL time.Duration
	retries    int
	log        *zap.Logger
	now        func() time.Time
}

func NewGCS(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (*GCS, error) {
	var opts []option.ClientOption
	if host := strings.TrimRight(strings.TrimSpace(cfg.GCSEmulatorHost), "/"); host != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", host)
		opts = append(opts, option.WithoutAuthentication())
	} else {
		if cfg.GCSCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
		}
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	objects := &bucketObjects{client: client, bucket: cfg.GCSBucket}
	if cfg.GCSSignerEmail != "" && cfg.GCSPrivateKeyFile != "" {
		key, err := os.ReadFile(cfg.GCSPrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read signing key: %w", err)
		}
		objects.signerEmail = cfg.GCSSignerEmail
		objects.privateKey = key
	}

	g := newGCSWithObjects(objects, cfg.GCSBucket, cfg.URLTTL, cfg.PutRetries, log)
	g.log.Info("object storage initialized",
		zap.String("bucket", cfg.GCSBucket),
		zap.Bool("emulator", cfg.GCSEmulatorHost != ""),
		zap.Duration("url_ttl", cfg.URLTTL))
	return g, nil
}

func newGCSWithObjects(objects objectClient, bucket string, defaultTTL time.Duration, retries int, log *zap.Logger) *GCS {
	if defaultTTL <= 0 {
		defaultTTL = 15 * time.Minute
	}
	return &GCS{
		objects:    objects,
		bucket:     bucket,
		defaultTTL: defaultTTL,
		retries:    retries,
		log:        log.Named("storage.gcs"),
		now:        time.Now,
	}
}

func (g *GCS) Kind() string { return "gcs" }

// Close releases the underlying client when it owns one.
func (g *GCS) Close() error {
	if c, ok := g.objects.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (g *GCS) Put(ctx context.Context, data []byte, name string) (string, error) {
	key, err := CleanKey(name)
	if err != nil {
		return "", err
	}
	ct := ContentTypeFor(key)
	err = withPutRetry(ctx, g.retries, g.log, key, func() error {
		opCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if err := g.objects.Write(opCtx, key, data, ct); err != nil {
			if isPermissionError(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func (g *GCS) Get(ctx context.Context, locator string) ([]byte, error) {
	key, err := CleanKey(locator)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	data, err := g.objects.Read(ctx, key)
	if errors.Is(err, errObjectNotExist) {
		return nil, apperr.Newf(apperr.KindNotFound, "storage.Get", "object %q not found", locator)
	}
	if err != nil {
		return nil, apperr.FromContext(ctx, apperr.KindStorageUnavailable, "storage.Get", err)
	}
	return data, nil
}

func (g *GCS) Delete(ctx context.Context, locator string) error {
	key, err := CleanKey(locator)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := g.objects.Delete(ctx, key); err != nil && !errors.Is(err, errObjectNotExist) {
		return apperr.FromContext(ctx, apperr.KindStorageUnavailable, "storage.Delete", err)
	}
	return nil
}

// ResolveAccessURL signs a GET URL valid for ttl (the configured default when
// ttl is zero). Callers renew by asking again.
func (g *GCS) ResolveAccessURL(ctx context.Context, locator string, ttl time.Duration) (string, error) {
	key, err := CleanKey(locator)
	if err != nil {
		return "", err
	}
	if ttl <= 0 || ttl > g.defaultTTL {
		ttl = g.defaultTTL
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	ok, err := g.objects.Exists(ctx, key)
	if err != nil {
		return "", apperr.FromContext(ctx, apperr.KindStorageUnavailable, "storage.ResolveAccessURL", err)
	}
	if !ok {
		return "", apperr.Newf(apperr.KindNotFound, "storage.ResolveAccessURL", "object %q not found", locator)
	}
	u, err := g.objects.SignedURL(key, g.now().Add(ttl))
	if err != nil {
		return "", apperr.Wrap(apperr.KindStorageUnavailable, "storage.ResolveAccessURL", err)
	}
	return u, nil
}

func isPermissionError(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden
	}
	return false
}

// bucketObjects adapts a *storage.Client bucket to objectClient.
type bucketObjects struct {
	client      *storage.Client
	bucket      string
	signerEmail string
	privateKey  []byte
}

func (b *bucketObjects) Close() error {
	return b.client.Close()
}

func (b *bucketObjects) Write(ctx context.Context, key string, data []byte, contentType string) error {
	w := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close object writer: %w", err)
	}
	return nil
}

func (b *bucketObjects) Read(ctx context.Context, key string) ([]byte, error) {
	r, err := b.client.Bucket(b.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, errObjectNotExist
	}
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (b *bucketObjects) Delete(ctx context.Context, key string) error {
	err := b.client.Bucket(b.bucket).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return errObjectNotExist
	}
	return err
}

func (b *bucketObjects) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.Bucket(b.bucket).Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *bucketObjects) SignedURL(key string, expires time.Time) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: expires,
	}
	if b.signerEmail != "" && len(b.privateKey) > 0 {
		opts.GoogleAccessID = b.signerEmail
		opts.PrivateKey = b.privateKey
		return storage.SignedURL(b.bucket, key, opts)
	}
	// Without explicit keys the client derives the signer from its credentials.
	return b.client.Bucket(b.bucket).SignedURL(key, opts)
}
