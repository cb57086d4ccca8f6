package coaching

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/swing-coach/backend/internal/apperr"
	"github.com/swing-coach/backend/internal/db/models"
	"github.com/swing-coach/backend/internal/storage"
)

type VideoUpload struct {
	UserID    string
	FileName  string
	Body      io.Reader
	ClubType  string
	SwingForm string
	SwingNote string
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// CreateVideo stores the upload, records the video row and starts thumbnail
// generation in the background. The call returns once the thumbnail is
// stored or ThumbnailWait elapses, whichever comes first.
func (s *Service) CreateVideo(ctx context.Context, in VideoUpload) (*models.Video, error) {
	const op = "coaching.CreateVideo"
	name := storage.SafeFileName(in.FileName)
	if !storage.IsVideoFile(name) {
		return nil, apperr.Newf(apperr.KindValidation, op, "%q is not a supported video file", in.FileName)
	}
	if strings.TrimSpace(in.UserID) == "" {
		return nil, apperr.New(apperr.KindValidation, op, "user_id is required")
	}

	path, cleanup, err := spool(in.Body, name)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		cleanup()
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}
	if len(data) == 0 {
		cleanup()
		return nil, apperr.New(apperr.KindValidation, op, "video file is empty")
	}

	v := &models.Video{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		FileName:  name,
		ClubType:  optional(in.ClubType),
		SwingForm: optional(in.SwingForm),
		SwingNote: optional(in.SwingNote),
	}
	if info, err := s.capture.Probe(ctx, path); err != nil {
		s.log.Warn("probe failed, duration unknown", zap.String("video_id", v.ID), zap.Error(err))
	} else {
		v.DurationSec = info.DurationSec
	}

	v.VideoLocator, err = s.store.Put(ctx, data, "videos/"+v.ID+"/"+name)
	if err != nil {
		cleanup()
		return nil, err
	}
	if err := s.db.CreateVideo(ctx, v); err != nil {
		cleanup()
		if derr := s.store.Delete(context.WithoutCancel(ctx), v.VideoLocator); derr != nil {
			s.log.Warn("orphaned upload", zap.String("locator", v.VideoLocator), zap.Error(derr))
		}
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}
	s.log.Info("video uploaded",
		zap.String("video_id", v.ID),
		zap.String("file", name),
		zap.Int("bytes", len(data)),
		zap.Float64("duration_sec", v.DurationSec))

	done := make(chan struct{})
	s.thumbs.Add(1)
	go func() {
		defer s.thumbs.Done()
		defer close(done)
		defer cleanup()
		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ThumbnailTimeout)
		defer cancel()
		if _, err := s.generateThumbnail(tctx, v, path); err != nil {
			s.log.Warn("thumbnail generation failed", zap.String("video_id", v.ID), zap.Error(err))
		}
	}()

	if s.opts.ThumbnailWait > 0 {
		select {
		case <-done:
			if fresh, err := s.db.GetVideo(ctx, v.ID); err == nil {
				return fresh, nil
			}
		case <-time.After(s.opts.ThumbnailWait):
		case <-ctx.Done():
		}
	}
	return v, nil
}

func (s *Service) generateThumbnail(ctx context.Context, v *models.Video, input string) (string, error) {
	img, err := s.capture.Thumbnail(ctx, input)
	if err != nil {
		return "", err
	}
	loc, err := s.store.Put(ctx, img, thumbKey(v.ID))
	if err != nil {
		return "", err
	}
	if err := s.db.SetVideoThumbnail(ctx, v.ID, loc); err != nil {
		// The video was deleted while the frame was being extracted.
		if apperr.KindOf(err) == apperr.KindNotFound {
			if derr := s.store.Delete(context.WithoutCancel(ctx), loc); derr != nil {
				s.log.Warn("orphaned thumbnail", zap.String("locator", loc), zap.Error(derr))
			}
		}
		return "", err
	}
	return loc, nil
}

func thumbKey(videoID string) string {
	return "videos/" + videoID + "/thumb.jpg"
}

// RegenerateThumbnail retries thumbnail generation synchronously.
func (s *Service) RegenerateThumbnail(ctx context.Context, videoID string) (*models.Video, error) {
	v, err := s.db.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	path, cleanup, err := s.materialize(ctx, v.VideoLocator)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	tctx, cancel := context.WithTimeout(ctx, s.opts.ThumbnailTimeout)
	defer cancel()
	if _, err := s.generateThumbnail(tctx, v, path); err != nil {
		return nil, err
	}
	return s.db.GetVideo(ctx, videoID)
}

// AttachThumbnail stores a client-provided thumbnail, replacing any existing one.
func (s *Service) AttachThumbnail(ctx context.Context, videoID, fileName string, data []byte) (*models.Video, error) {
	const op = "coaching.AttachThumbnail"
	if len(data) == 0 {
		return nil, apperr.New(apperr.KindValidation, op, "thumbnail is empty")
	}
	if fileName != "" && !storage.IsImageFile(fileName) {
		return nil, apperr.Newf(apperr.KindValidation, op, "%q is not an image", fileName)
	}
	v, err := s.db.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	loc, err := s.store.Put(ctx, data, thumbKey(v.ID))
	if err != nil {
		return nil, err
	}
	if err := s.db.SetVideoThumbnail(ctx, v.ID, loc); err != nil {
		return nil, err
	}
	return s.db.GetVideo(ctx, videoID)
}

func (s *Service) GetVideo(ctx context.Context, id string) (*models.Video, error) {
	return s.db.GetVideo(ctx, id)
}

func (s *Service) ListVideos(ctx context.Context, userID string) ([]models.Video, error) {
	return s.db.ListVideos(ctx, userID)
}

// DeleteVideo removes the video with its group, sections and advices, then
// deletes every media object they referenced. Storage failures after the
// rows are gone are logged as orphans.
func (s *Service) DeleteVideo(ctx context.Context, id string) error {
	media, err := s.db.VideoMedia(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.DeleteVideo(ctx, id); err != nil {
		return err
	}

	// A thumbnail still being generated has no row yet but may already be
	// stored under its fixed key.
	locators := []string{media.Video, thumbKey(id)}
	if media.Thumbnail != "" && media.Thumbnail != thumbKey(id) {
		locators = append(locators, media.Thumbnail)
	}
	locators = append(locators, media.SectionImages...)
	locators = append(locators, media.AdviceAudio...)

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(4)
	for _, loc := range locators {
		loc := loc
		g.Go(func() error {
			if err := s.store.Delete(gctx, loc); err != nil {
				s.log.Warn("orphaned media", zap.String("video_id", id), zap.String("locator", loc), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	s.log.Info("video deleted", zap.String("video_id", id), zap.Int("media", len(locators)))
	return nil
}

// materialize copies a stored object to a temp file for ffmpeg.
func (s *Service) materialize(ctx context.Context, locator string) (string, func(), error) {
	data, err := s.store.Get(ctx, locator)
	if err != nil {
		return "", func() {}, err
	}
	path, cleanup, err := spool(bytes.NewReader(data), locator)
	if err != nil {
		return "", func() {}, apperr.Wrap(apperr.KindInternal, "coaching.materialize", err)
	}
	return path, cleanup, nil
}
