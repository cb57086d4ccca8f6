// Package coaching is the annotation workflow: videos, section groups,
// sections and their comments, tying storage, frame capture, transcription
// and summarization together.
package coaching

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/db"
	"github.com/swing-coach/backend/internal/ffmpeg"
	"github.com/swing-coach/backend/internal/storage"
	"github.com/swing-coach/backend/internal/summarize"
	"github.com/swing-coach/backend/internal/transcribe"
)

// Capturer extracts still frames from a video path or URL.
type Capturer interface {
	Probe(ctx context.Context, input string) (*ffmpeg.MediaInfo, error)
	Thumbnail(ctx context.Context, input string) ([]byte, error)
	CaptureFrame(ctx context.Context, input string, ts float64) ([]byte, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, req transcribe.Request, purpose transcribe.Purpose) (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, kind summarize.Kind, text string) (string, error)
	SuggestTags(ctx context.Context, req summarize.TagRequest) (*summarize.TagSuggestion, error)
}

type Options struct {
	ThumbnailTimeout time.Duration
	ThumbnailWait    time.Duration
	URLTTL           time.Duration
}

type Service struct {
	db          *db.Database
	store       storage.Storage
	capture     Capturer
	transcriber Transcriber
	summarizer  Summarizer
	opts        Options
	log         *zap.Logger

	thumbs sync.WaitGroup
}

func New(database *db.Database, store storage.Storage, capture Capturer, transcriber Transcriber, summarizer Summarizer, opts Options, log *zap.Logger) *Service {
	if opts.ThumbnailTimeout <= 0 {
		opts.ThumbnailTimeout = time.Minute
	}
	return &Service{
		db:          database,
		store:       store,
		capture:     capture,
		transcriber: transcriber,
		summarizer:  summarizer,
		opts:        opts,
		log:         log.Named("coaching"),
	}
}

// Wait blocks until background thumbnail generations finish or ctx ends.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.thumbs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// spool writes r to a temp file so ffmpeg can seek in it. The caller must
// call the returned cleanup.
func spool(r io.Reader, name string) (string, func(), error) {
	f, err := os.CreateTemp("", "swing-*"+filepath.Ext(name))
	if err != nil {
		return "", func() {}, err
	}
	cleanup := func() { os.Remove(f.Name()) }
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		cleanup()
		return "", func() {}, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", func() {}, err
	}
	return f.Name(), cleanup, nil
}
