package models

import (
	"encoding/json"
	"time"
)

// SectionGroup is the single aggregate feedback record of a video.
type SectionGroup struct {
	ID                      string     `json:"section_group_id"`
	VideoID                 string     `json:"video_id"`
	OverallFeedback         *string    `json:"overall_feedback"`
	OverallFeedbackSummary  *string    `json:"overall_feedback_summary"`
	NextTrainingMenu        *string    `json:"next_training_menu"`
	NextTrainingMenuSummary *string    `json:"next_training_menu_summary"`
	FeedbackCreatedAt       *time.Time `json:"feedback_created_at"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

type GroupState string

const (
	GroupEmpty             GroupState = "empty"
	GroupHasOverallComment GroupState = "has_overall_comment"
	GroupFinalized         GroupState = "finalized"
)

// Finalized reports whether both session summaries are present.
func (g *SectionGroup) Finalized() bool {
	return nonEmpty(g.OverallFeedbackSummary) && nonEmpty(g.NextTrainingMenuSummary)
}

func (g *SectionGroup) State() GroupState {
	switch {
	case g.Finalized():
		return GroupFinalized
	case nonEmpty(g.OverallFeedback) || nonEmpty(g.NextTrainingMenu):
		return GroupHasOverallComment
	default:
		return GroupEmpty
	}
}

type SectionState string

const (
	SectionCreated    SectionState = "created"
	SectionTagged     SectionState = "tagged"
	SectionCommented  SectionState = "commented"
	SectionSummarized SectionState = "summarized"
)

type SwingSection struct {
	ID             string          `json:"section_id"`
	GroupID        string          `json:"section_group_id"`
	StartSec       float64         `json:"start_sec"`
	EndSec         float64         `json:"end_sec"`
	ImageLocator   *string         `json:"image_url"`
	Tags           PhaseSet        `json:"tags"`
	Markup         json.RawMessage `json:"markup_json,omitempty"`
	CoachComment   *string         `json:"coach_comment"`
	CommentSummary *string         `json:"coach_comment_summary"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// State is derived from which fields are populated.
func (s *SwingSection) State() SectionState {
	switch {
	case nonEmpty(s.CommentSummary):
		return SectionSummarized
	case nonEmpty(s.CoachComment):
		return SectionCommented
	case len(s.Tags) > 0:
		return SectionTagged
	default:
		return SectionCreated
	}
}

// NeedsSummary is true for a commented section whose summary is missing.
func (s *SwingSection) NeedsSummary() bool {
	return nonEmpty(s.CoachComment) && !nonEmpty(s.CommentSummary)
}

// SectionAdvice is one entry of a section's advice list.
type SectionAdvice struct {
	ID        string    `json:"advice_id"`
	SectionID string    `json:"section_id"`
	Phase     *Phase    `json:"phase,omitempty"`
	Text      string    `json:"text"`
	AudioURL  *string   `json:"audio_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}

func StringPtr(s string) *string {
	return &s
}
