package coaching

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/apperr"
	"github.com/swing-coach/backend/internal/db/models"
	"github.com/swing-coach/backend/internal/summarize"
	"github.com/swing-coach/backend/internal/transcribe"
)

// EnsureGroup returns the video's section group, creating it on first use.
func (s *Service) EnsureGroup(ctx context.Context, videoID string) (*models.SectionGroup, error) {
	g, created, err := s.db.EnsureSectionGroup(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Info("section group created", zap.String("video_id", videoID), zap.String("group_id", g.ID))
	}
	return g, nil
}

func (s *Service) GetGroup(ctx context.Context, id string) (*models.SectionGroup, error) {
	return s.db.GetSectionGroup(ctx, id)
}

type SectionInput struct {
	StartSec     float64
	EndSec       float64
	Tags         []string
	Markup       json.RawMessage
	ImageLocator string
	Comment      string
}

// SectionPatch carries the fields to change; nil means unchanged.
type SectionPatch struct {
	StartSec     *float64
	EndSec       *float64
	Tags         *[]string
	Markup       *json.RawMessage
	ImageLocator *string
	Comment      *string
}

func roundOffset(v float64) float64 {
	return math.Round(v*100) / 100
}

// checkBounds enforces 0 <= start < end <= duration. An unknown duration
// (zero) disables the upper bound.
func checkBounds(op string, start, end, duration float64) error {
	if math.IsNaN(start) || math.IsNaN(end) || math.IsInf(start, 0) || math.IsInf(end, 0) {
		return apperr.New(apperr.KindValidation, op, "offsets must be finite numbers")
	}
	if start < 0 {
		return apperr.Newf(apperr.KindValidation, op, "start_sec must be >= 0, got %.2f", start)
	}
	if end <= start {
		return apperr.Newf(apperr.KindValidation, op, "end_sec (%.2f) must be greater than start_sec (%.2f)", end, start)
	}
	if duration > 0 && end > roundOffset(duration)+0.005 {
		return apperr.Newf(apperr.KindValidation, op, "end_sec (%.2f) exceeds video duration (%.2f)", end, duration)
	}
	return nil
}

func validMarkup(op string, m json.RawMessage) error {
	if len(m) == 0 {
		return nil
	}
	if !json.Valid(m) {
		return apperr.New(apperr.KindValidation, op, "markup_json is not valid JSON")
	}
	return nil
}

func (s *Service) groupDuration(ctx context.Context, g *models.SectionGroup) float64 {
	v, err := s.db.GetVideo(ctx, g.VideoID)
	if err != nil {
		return 0
	}
	return v.DurationSec
}

// CreateSection adds a section to a group. A comment given at creation is
// summarized on the spot; a summarization failure leaves the summary empty.
func (s *Service) CreateSection(ctx context.Context, groupID string, in SectionInput) (*models.SwingSection, error) {
	const op = "coaching.CreateSection"
	g, err := s.db.GetSectionGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	start, end := roundOffset(in.StartSec), roundOffset(in.EndSec)
	if err := checkBounds(op, start, end, s.groupDuration(ctx, g)); err != nil {
		return nil, err
	}
	tags, err := models.NewPhaseSet(in.Tags)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, op, err)
	}
	if err := validMarkup(op, in.Markup); err != nil {
		return nil, err
	}

	sec := &models.SwingSection{
		GroupID:      g.ID,
		StartSec:     start,
		EndSec:       end,
		Tags:         tags,
		Markup:       in.Markup,
		ImageLocator: optional(in.ImageLocator),
		CoachComment: optional(in.Comment),
	}
	if err := s.db.CreateSection(ctx, sec); err != nil {
		return nil, err
	}
	s.log.Info("section created",
		zap.String("group_id", g.ID),
		zap.String("section_id", sec.ID),
		zap.Float64("start_sec", start),
		zap.Float64("end_sec", end))

	if sec.CoachComment != nil {
		s.trySummarizeSection(ctx, sec)
	}
	return s.db.GetSection(ctx, sec.ID)
}

func (s *Service) GetSection(ctx context.Context, id string) (*models.SwingSection, error) {
	return s.db.GetSection(ctx, id)
}

func (s *Service) ListSections(ctx context.Context, groupID string) ([]models.SwingSection, error) {
	if _, err := s.db.GetSectionGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.db.ListSections(ctx, groupID)
}

// UpdateSection applies a partial update. Changing the comment or the tags
// clears the stale summary until analysis runs again.
func (s *Service) UpdateSection(ctx context.Context, id string, p SectionPatch) (*models.SwingSection, error) {
	const op = "coaching.UpdateSection"
	sec, err := s.db.GetSection(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.StartSec != nil {
		sec.StartSec = roundOffset(*p.StartSec)
	}
	if p.EndSec != nil {
		sec.EndSec = roundOffset(*p.EndSec)
	}
	if p.StartSec != nil || p.EndSec != nil {
		g, err := s.db.GetSectionGroup(ctx, sec.GroupID)
		if err != nil {
			return nil, err
		}
		if err := checkBounds(op, sec.StartSec, sec.EndSec, s.groupDuration(ctx, g)); err != nil {
			return nil, err
		}
	}
	if p.Tags != nil {
		tags, err := models.NewPhaseSet(*p.Tags)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, op, err)
		}
		if tags.String() != sec.Tags.String() {
			sec.CommentSummary = nil
		}
		sec.Tags = tags
	}
	if p.Markup != nil {
		if err := validMarkup(op, *p.Markup); err != nil {
			return nil, err
		}
		sec.Markup = *p.Markup
	}
	replaced := sec.ImageLocator
	if p.ImageLocator != nil {
		sec.ImageLocator = optional(*p.ImageLocator)
	}
	if p.Comment != nil {
		next := optional(*p.Comment)
		if !sameText(sec.CoachComment, next) {
			sec.CoachComment = next
			sec.CommentSummary = nil
		}
	}

	if err := s.db.UpdateSection(ctx, sec); err != nil {
		return nil, err
	}
	if !sameText(replaced, sec.ImageLocator) {
		s.releaseImage(ctx, sec.ID, replaced)
	}
	return sec, nil
}

// releaseImage deletes a section image that no section refers to any more.
// Only objects this service stored for sections are touched.
func (s *Service) releaseImage(ctx context.Context, sectionID string, locator *string) {
	if locator == nil || !(strings.HasPrefix(*locator, "captures/") || strings.HasPrefix(*locator, "section-images/")) {
		return
	}
	inUse, err := s.db.SectionImageInUse(ctx, *locator)
	if err != nil {
		s.log.Warn("image reference check failed", zap.String("section_id", sectionID), zap.String("locator", *locator), zap.Error(err))
		return
	}
	if inUse {
		return
	}
	if err := s.store.Delete(context.WithoutCancel(ctx), *locator); err != nil {
		s.log.Warn("failed to delete section media", zap.String("section_id", sectionID), zap.String("locator", *locator), zap.Error(err))
	}
}

func sameText(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// DeleteSection removes a section, its advices and its captured frame.
func (s *Service) DeleteSection(ctx context.Context, id string) error {
	sec, err := s.db.GetSection(ctx, id)
	if err != nil {
		return err
	}
	advices, err := s.db.ListAdvices(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.DeleteSection(ctx, id); err != nil {
		return err
	}

	s.releaseImage(ctx, id, sec.ImageLocator)
	var media []string
	for _, a := range advices {
		if a.AudioURL != nil {
			media = append(media, *a.AudioURL)
		}
	}
	for _, loc := range media {
		if err := s.store.Delete(ctx, loc); err != nil {
			s.log.Warn("failed to delete section media", zap.String("section_id", id), zap.String("locator", loc), zap.Error(err))
		}
	}
	return nil
}

type CommentInput struct {
	Text  string
	Audio AudioClip
}

// SetComment stores the coach comment of a section, transcribing audio when
// given, and then tries to summarize it. Transcription errors fail the call;
// summarization errors only leave the summary empty.
func (s *Service) SetComment(ctx context.Context, sectionID string, in CommentInput) (*models.SwingSection, error) {
	const op = "coaching.SetComment"
	sec, err := s.db.GetSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(in.Text)
	if !in.Audio.Empty() {
		text, err = s.transcribeClip(ctx, in.Audio, transcribe.PurposeSectionComment)
		if err != nil {
			return nil, err
		}
	}
	if text == "" {
		return nil, apperr.New(apperr.KindValidation, op, "comment text or audio is required")
	}

	sec.CoachComment = &text
	sec.CommentSummary = nil
	if err := s.db.UpdateSection(ctx, sec); err != nil {
		return nil, err
	}
	s.trySummarizeSection(ctx, sec)
	return s.db.GetSection(ctx, sec.ID)
}

// trySummarizeSection summarizes the section comment and stores it if the
// comment did not change meanwhile. Errors are logged only.
func (s *Service) trySummarizeSection(ctx context.Context, sec *models.SwingSection) {
	if sec.CoachComment == nil {
		return
	}
	summary, err := s.summarizer.Summarize(ctx, summarize.KindSectionComment, *sec.CoachComment)
	if err != nil {
		s.log.Warn("section summary deferred", zap.String("section_id", sec.ID), zap.Error(err))
		return
	}
	if summary == "" {
		return
	}
	if _, err := s.db.SetSectionSummary(ctx, sec.ID, *sec.CoachComment, summary); err != nil {
		s.log.Warn("store section summary", zap.String("section_id", sec.ID), zap.Error(err))
	}
}
