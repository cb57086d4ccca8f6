package coaching

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/apperr"
	"github.com/swing-coach/backend/internal/db/models"
	"github.com/swing-coach/backend/internal/summarize"
	"github.com/swing-coach/backend/internal/transcribe"
)

type FeedbackType string

const (
	FeedbackOverall      FeedbackType = "overall"
	FeedbackNextTraining FeedbackType = "next_training"
)

func ParseFeedbackType(s string) (FeedbackType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "overall", "overall_feedback", "advice":
		return FeedbackOverall, nil
	case "next_training", "practice", "practice_menu":
		return FeedbackNextTraining, nil
	}
	return "", apperr.Newf(apperr.KindValidation, "coaching.ParseFeedbackType", "unknown feedback type %q", s)
}

type FeedbackInput struct {
	Type  FeedbackType
	Text  string
	Audio AudioClip
}

// SaveFeedback stores the coach's overall feedback or the next training menu
// of a group and refreshes the matching summary. The text is saved even
// when summarization fails; the summary then stays empty.
func (s *Service) SaveFeedback(ctx context.Context, groupID string, in FeedbackInput) (*models.SectionGroup, error) {
	const op = "coaching.SaveFeedback"
	g, err := s.db.GetSectionGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	purpose := transcribe.PurposeOverall
	switch in.Type {
	case FeedbackOverall:
	case FeedbackNextTraining:
		purpose = transcribe.PurposePracticeMenu
	default:
		return nil, apperr.Newf(apperr.KindValidation, op, "unknown feedback type %q", in.Type)
	}

	text := strings.TrimSpace(in.Text)
	if !in.Audio.Empty() {
		if text, err = s.transcribeClip(ctx, in.Audio, purpose); err != nil {
			return nil, err
		}
	}
	if text == "" {
		return nil, apperr.New(apperr.KindValidation, op, "feedback text or audio is required")
	}

	if in.Type == FeedbackOverall {
		g.OverallFeedback = &text
		g.OverallFeedbackSummary = nil
	} else {
		g.NextTrainingMenu = &text
		g.NextTrainingMenuSummary = nil
		summary, err := s.summarizer.Summarize(ctx, summarize.KindPracticeMenu, text)
		if err != nil {
			s.log.Warn("practice menu summary deferred", zap.String("group_id", g.ID), zap.Error(err))
		} else {
			g.NextTrainingMenuSummary = optional(summary)
		}
	}
	if err := s.db.SaveGroupFeedback(ctx, g); err != nil {
		return nil, err
	}

	if in.Type == FeedbackOverall {
		sections, err := s.db.ListSections(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		if err := s.rollup(ctx, g, sections); err != nil {
			s.log.Warn("overall summary deferred", zap.String("group_id", g.ID), zap.Error(err))
		}
	}
	s.log.Info("feedback saved",
		zap.String("group_id", g.ID),
		zap.String("type", string(in.Type)),
		zap.String("state", string(g.State())))
	return g, nil
}

func (s *Service) GetFeedback(ctx context.Context, groupID string) (*models.SectionGroup, error) {
	return s.db.GetSectionGroup(ctx, groupID)
}
