package summarize

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/apperr"
	"github.com/swing-coach/backend/internal/db/models"
)

const maxSuggestedTags = 3

type TagRequest struct {
	StartSec float64
	EndSec   float64
	Comment  string
	Current  models.PhaseSet
}

type TagSuggestion struct {
	Tags      models.PhaseSet `json:"tags"`
	Reasoning string          `json:"reasoning,omitempty"`
}

// SuggestTags asks the engine which swing phases a section comment is about.
// Answers naming a phase outside the fixed list are rejected. A trivial
// comment yields nil without calling the engine.
func (s *Service) SuggestTags(ctx context.Context, req TagRequest) (*TagSuggestion, error) {
	const op = "summarize.SuggestTags"
	comment := strings.TrimSpace(req.Comment)
	if IsTrivial(comment) {
		return nil, nil
	}

	prompt := fmt.Sprintf("Section: %.2f-%.2fs\nCurrent tags: %s\nComment: %s",
		req.StartSec, req.EndSec, req.Current.String(), comment)
	out, err := s.complete(ctx, op, "suggest_tags", tagPrompt(s.language), prompt, 256)
	if err != nil {
		return nil, err
	}
	sug, err := parseTagAnswer(out)
	if err != nil {
		s.log.Warn("unusable tag answer", zap.String("engine", s.engine.Name()), zap.String("answer", out), zap.Error(err))
		return nil, &apperr.Error{Kind: apperr.KindSummarizationFailed, Op: op, Msg: "engine returned unusable tags", Detail: err.Error(), Err: err}
	}
	return sug, nil
}

func tagPrompt(language string) string {
	names := make([]string, len(models.Phases))
	for i, p := range models.Phases {
		names[i] = string(p)
	}
	var b strings.Builder
	b.WriteString("You tag a section of a golf swing video with the swing phases the coach's comment is about.\n\n")
	fmt.Fprintf(&b, "Allowed phases: %s\n\n", strings.Join(names, ", "))
	b.WriteString("Answer with exactly two lines:\n")
	fmt.Fprintf(&b, "TAGS: up to %d allowed phases, comma-separated, most relevant first\n", maxSuggestedTags)
	fmt.Fprintf(&b, "REASON: one sentence in %s explaining the choice\n", language)
	b.WriteString("Use only the allowed phase names. Output nothing else.")
	return b.String()
}

func parseTagAnswer(out string) (*TagSuggestion, error) {
	var (
		sug   TagSuggestion
		found bool
	)
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "TAGS":
			tags, err := models.ParsePhaseSet(strings.Trim(strings.TrimSpace(value), "[]"))
			if err != nil {
				return nil, err
			}
			if len(tags) > maxSuggestedTags {
				tags = tags[:maxSuggestedTags]
			}
			sug.Tags = tags
			found = true
		case "REASON":
			sug.Reasoning = strings.TrimSpace(value)
		}
	}
	if !found {
		return nil, fmt.Errorf("no TAGS line in answer")
	}
	return &sug, nil
}
