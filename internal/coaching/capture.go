package coaching

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/apperr"
	"github.com/swing-coach/backend/internal/db/models"
	"github.com/swing-coach/backend/internal/ffmpeg"
)

type CaptureInput struct {
	VideoID   string
	AccessURL string
	Timestamp float64
	FileName  string
	Phase     string
	SectionID string
}

type CaptureResult struct {
	Locator   string  `json:"image_locator"`
	URL       string  `json:"image_url"`
	FileName  string  `json:"file_name"`
	Timestamp float64 `json:"timestamp"`
	SectionID string  `json:"section_id,omitempty"`
}

// remoteInput accepts only http(s) URLs so a caller cannot point ffmpeg at
// local files or other protocols.
func remoteInput(op, raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", apperr.New(apperr.KindValidation, op, "access_url must be an http(s) URL")
	}
	return u.String(), nil
}

// remoteScope names the folder for captures of a URL-only video. The query
// is left out so re-signed URLs of one object share a folder.
func remoteScope(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "unknown"
	}
	sum := sha256.Sum256([]byte(u.Host + u.Path))
	return hex.EncodeToString(sum[:8])
}

// CaptureFrame grabs one frame at the timestamp and stores it as
// {video-base}_{PHASE}.jpg, so a repeated capture for the same phase replaces
// the previous image. With a section id the frame also becomes the
// section's image.
func (s *Service) CaptureFrame(ctx context.Context, in CaptureInput) (*CaptureResult, error) {
	const op = "coaching.CaptureFrame"
	if in.Timestamp < 0 || math.IsNaN(in.Timestamp) || math.IsInf(in.Timestamp, 0) {
		return nil, apperr.Newf(apperr.KindValidation, op, "timestamp must be >= 0, got %v", in.Timestamp)
	}
	var phase models.Phase
	if in.Phase != "" {
		var err error
		if phase, err = models.ParsePhase(in.Phase); err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, op, err)
		}
	}

	var (
		video   *models.Video
		input   string
		cleanup = func() {}
		err     error
	)
	if in.VideoID != "" {
		if video, err = s.db.GetVideo(ctx, in.VideoID); err != nil {
			return nil, err
		}
		if video.DurationSec > 0 && in.Timestamp > video.DurationSec {
			return nil, apperr.Newf(apperr.KindValidation, op, "timestamp %.3f is past the end of the video (%.3f)", in.Timestamp, video.DurationSec)
		}
	}
	switch {
	case in.AccessURL != "":
		if input, err = remoteInput(op, in.AccessURL); err != nil {
			return nil, err
		}
	case video != nil:
		if input, cleanup, err = s.materialize(ctx, video.VideoLocator); err != nil {
			return nil, err
		}
	default:
		return nil, apperr.New(apperr.KindValidation, op, "video_id or access_url is required")
	}
	defer cleanup()

	var sec *models.SwingSection
	if in.SectionID != "" {
		if sec, err = s.db.GetSection(ctx, in.SectionID); err != nil {
			return nil, err
		}
		if video != nil {
			g, err := s.db.GetSectionGroup(ctx, sec.GroupID)
			if err != nil {
				return nil, err
			}
			if g.VideoID != video.ID {
				return nil, apperr.Newf(apperr.KindValidation, op, "section %s does not belong to video %s", sec.ID, video.ID)
			}
		}
	}

	baseName := in.FileName
	var scope string
	switch {
	case video != nil:
		baseName = video.FileName
		scope = video.ID
	case sec != nil:
		scope = "sections/" + sec.ID
	default:
		scope = "remote/" + remoteScope(input)
	}
	if strings.TrimSpace(baseName) == "" {
		return nil, apperr.New(apperr.KindValidation, op, "filename is required without a video_id")
	}
	name := ffmpeg.CaptureName(baseName, phase.Code())
	key := "captures/" + scope + "/" + name

	img, err := s.capture.CaptureFrame(ctx, input, in.Timestamp)
	if err != nil {
		return nil, err
	}
	loc, err := s.store.Put(ctx, img, key)
	if err != nil {
		return nil, err
	}
	access, err := s.store.ResolveAccessURL(ctx, loc, s.opts.URLTTL)
	if err != nil {
		return nil, err
	}

	res := &CaptureResult{Locator: loc, URL: access, FileName: name, Timestamp: in.Timestamp}
	if sec != nil {
		replaced := sec.ImageLocator
		sec.ImageLocator = &loc
		if err := s.db.UpdateSection(ctx, sec); err != nil {
			return nil, err
		}
		if !sameText(replaced, sec.ImageLocator) {
			s.releaseImage(ctx, sec.ID, replaced)
		}
		res.SectionID = sec.ID
	}
	s.log.Info("frame captured",
		zap.String("locator", loc),
		zap.Float64("ts", in.Timestamp),
		zap.String("phase", string(phase)))
	return res, nil
}
