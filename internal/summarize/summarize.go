package summarize

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// Kind selects the instruction prompt used for a summary.
type Kind string

const (
	KindSectionComment  Kind = "section_comment"
	KindOverallFeedback Kind = "overall_feedback"
	KindPracticeMenu    Kind = "practice_menu"
	KindSessionRollup   Kind = "session_rollup"
)

// Engine is the common interface for text-generation backends.
type Engine interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error)
	Name() string
}

var kindInstructions = map[Kind]string{
	KindSectionComment: "You summarize a golf coach's spoken comment about one phase of a student's swing. " +
		"Keep the concrete observation and the correction the coach asked for.",
	KindOverallFeedback: "You summarize a golf coach's overall feedback on a student's swing session. " +
		"Keep the main strengths, the main faults and the priority for improvement.",
	KindPracticeMenu: "You summarize a golf coach's recommended practice menu for the next training. " +
		"Keep each drill, its purpose and any repetition counts.",
	KindSessionRollup: "You write the overall summary of a golf swing lesson from the coach's per-section comments, " +
		"given in swing order, followed by the coach's overall remarks. Keep the swing chronology.",
}

func (k Kind) Valid() bool {
	_, ok := kindInstructions[k]
	return ok
}

// systemPrompt builds the instruction for kind. inputLen is the input length
// in runes; inputs shorter than the band floor must not be padded.
func systemPrompt(kind Kind, language string, minChars, maxChars, inputLen int) string {
	var b strings.Builder
	b.WriteString(kindInstructions[kind])
	b.WriteString("\n\nRules:\n")
	fmt.Fprintf(&b, "- Write in %s.\n", language)
	if inputLen < minChars {
		fmt.Fprintf(&b, "- Be no longer than the input and never more than %d characters.\n", maxChars)
	} else {
		fmt.Fprintf(&b, "- Use between %d and %d characters.\n", minChars, maxChars)
	}
	b.WriteString("- Plain prose only: no headings, no bullet lists, no markdown.\n")
	b.WriteString("- Do not invent advice the coach did not give.\n")
	b.WriteString("- Output only the summary.")
	return b.String()
}

// IsTrivial reports whether text has fewer than two non-space runes.
func IsTrivial(text string) bool {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
			if n >= 2 {
				return false
			}
		}
	}
	return true
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '。', '．', '！', '？', '.', '!', '?', '\n':
		return true
	}
	return false
}

// Truncate cuts text to at most max runes, preferring the last sentence
// boundary inside the limit and falling back to a hard cut.
func Truncate(text string, max int) string {
	runes := []rune(strings.TrimSpace(text))
	if max <= 0 || len(runes) <= max {
		return string(runes)
	}
	cut := runes[:max]
	for i := len(cut) - 1; i > 0; i-- {
		if isSentenceEnd(cut[i]) {
			return strings.TrimSpace(string(cut[:i+1]))
		}
	}
	return strings.TrimSpace(string(cut))
}
