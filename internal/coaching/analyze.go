package coaching

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/db/models"
	"github.com/swing-coach/backend/internal/summarize"
)

type AnalyzeResult struct {
	Section  *models.SwingSection `json:"section"`
	Group    *models.SectionGroup `json:"section_group,omitempty"`
	RolledUp bool                 `json:"rolled_up"`

	// Suggestions are advisory and never stored.
	SuggestedTags models.PhaseSet `json:"suggested_tags"`
	Reasoning     string          `json:"reasoning,omitempty"`
}

// AnalyzeSection summarizes the section comment and suggests phase tags for
// it. When no other section of the group is still waiting for a summary, the
// group's overall summary is recomputed from all comments in swing order. A
// section without a comment is returned unchanged.
func (s *Service) AnalyzeSection(ctx context.Context, sectionID string) (*AnalyzeResult, error) {
	sec, err := s.db.GetSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if sec.CoachComment == nil || strings.TrimSpace(*sec.CoachComment) == "" {
		return &AnalyzeResult{Section: sec}, nil
	}

	summary, err := s.summarizer.Summarize(ctx, summarize.KindSectionComment, *sec.CoachComment)
	if err != nil {
		return nil, err
	}
	if summary != "" {
		stored, err := s.db.SetSectionSummary(ctx, sec.ID, *sec.CoachComment, summary)
		if err != nil {
			return nil, err
		}
		if !stored {
			s.log.Info("comment changed during analysis, summary dropped", zap.String("section_id", sec.ID))
		}
	}
	if sec, err = s.db.GetSection(ctx, sectionID); err != nil {
		return nil, err
	}
	res := &AnalyzeResult{Section: sec}
	s.suggestTags(ctx, sec, res)

	sections, err := s.db.ListSections(ctx, sec.GroupID)
	if err != nil {
		return nil, err
	}
	for i := range sections {
		if sections[i].ID != sec.ID && awaitingSummary(&sections[i]) {
			return res, nil
		}
	}

	g, err := s.db.GetSectionGroup(ctx, sec.GroupID)
	if err != nil {
		return nil, err
	}
	if err := s.rollup(ctx, g, sections); err != nil {
		s.log.Warn("overall summary deferred", zap.String("group_id", g.ID), zap.Error(err))
	} else {
		res.RolledUp = true
	}
	res.Group = g
	return res, nil
}

func (s *Service) suggestTags(ctx context.Context, sec *models.SwingSection, res *AnalyzeResult) {
	if sec.CoachComment == nil {
		return
	}
	sug, err := s.summarizer.SuggestTags(ctx, summarize.TagRequest{
		StartSec: sec.StartSec,
		EndSec:   sec.EndSec,
		Comment:  *sec.CoachComment,
		Current:  sec.Tags,
	})
	if err != nil {
		s.log.Warn("tag suggestion failed", zap.String("section_id", sec.ID), zap.Error(err))
		return
	}
	if sug != nil {
		res.SuggestedTags = sug.Tags
		res.Reasoning = sug.Reasoning
	}
}

// rollup recomputes g's overall summary in place. With no section comments
// the overall feedback alone is summarized.
func (s *Service) rollup(ctx context.Context, g *models.SectionGroup, sections []models.SwingSection) error {
	overall := ""
	if g.OverallFeedback != nil {
		overall = *g.OverallFeedback
	}
	kind := summarize.KindSessionRollup
	source := RollupSource(sections, overall)
	if !hasComments(sections) {
		kind = summarize.KindOverallFeedback
		source = strings.TrimSpace(overall)
	}
	if source == "" {
		return nil
	}

	summary, err := s.summarizer.Summarize(ctx, kind, source)
	if err != nil {
		return err
	}
	fresh, err := s.db.SetOverallSummary(ctx, g.ID, optional(summary))
	if err != nil {
		return err
	}
	*g = *fresh
	return nil
}

// awaitingSummary ignores comments too short to ever get a summary.
func awaitingSummary(sec *models.SwingSection) bool {
	return sec.NeedsSummary() && !summarize.IsTrivial(*sec.CoachComment)
}

func hasComments(sections []models.SwingSection) bool {
	for i := range sections {
		if sections[i].CoachComment != nil && strings.TrimSpace(*sections[i].CoachComment) != "" {
			return true
		}
	}
	return false
}

// RollupSource joins the section comments in ascending start offset, ties
// broken by creation time, and appends the overall feedback last.
func RollupSource(sections []models.SwingSection, overall string) string {
	ordered := slices.Clone(sections)
	slices.SortStableFunc(ordered, func(a, b models.SwingSection) int {
		switch {
		case a.StartSec < b.StartSec:
			return -1
		case a.StartSec > b.StartSec:
			return 1
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	var b strings.Builder
	for _, sec := range ordered {
		if sec.CoachComment == nil {
			continue
		}
		comment := strings.TrimSpace(*sec.CoachComment)
		if comment == "" {
			continue
		}
		fmt.Fprintf(&b, "[%.2f-%.2fs", sec.StartSec, sec.EndSec)
		if len(sec.Tags) > 0 {
			b.WriteString(" " + sec.Tags.String())
		}
		b.WriteString("] " + comment + "\n")
	}
	if overall = strings.TrimSpace(overall); overall != "" {
		b.WriteString("[overall] " + overall + "\n")
	}
	return strings.TrimSpace(b.String())
}
