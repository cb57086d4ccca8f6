package transcribe

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Purpose tags which text field a transcription will populate.
type Purpose string

const (
	PurposeSectionComment Purpose = "section_comment"
	PurposeOverall        Purpose = "overall_feedback"
	PurposePracticeMenu   Purpose = "practice_menu"
	PurposePhaseAdvice    Purpose = "phase_advice"
	PurposeGeneral        Purpose = "general"
)

// ParsePurpose accepts the canonical names plus the short aliases used by
// older clients (advice, practice, next_training).
func ParsePurpose(s string) (Purpose, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "general":
		return PurposeGeneral, nil
	case "section_comment", "comment":
		return PurposeSectionComment, nil
	case "overall_feedback", "overall", "advice":
		return PurposeOverall, nil
	case "practice_menu", "practice", "next_training":
		return PurposePracticeMenu, nil
	case "phase_advice":
		return PurposePhaseAdvice, nil
	}
	return "", fmt.Errorf("unknown transcription type %q", s)
}

// Request is one audio clip to transcribe.
type Request struct {
	Audio    []byte
	FileName string // used for format detection by the engine
	MimeType string
	Language string // "ja", "en", "auto"
}

// Transcriber is the common interface for all speech-to-text engines.
type Transcriber interface {
	Transcribe(ctx context.Context, req Request) (string, error)
	Name() string
}

// Normalize trims the text, collapses whitespace runs inside each line and
// drops blank lines.
func Normalize(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// AudioName builds the storage key for a transcribed clip:
// audio/{video-base}_{purpose}[_{PHASE}].{ext}
func AudioName(videoName string, purpose Purpose, phaseCode, fileName string) string {
	base := path.Base(strings.ReplaceAll(videoName, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = "audio"
	}
	ext := strings.ToLower(path.Ext(fileName))
	if ext == "" {
		ext = ".webm"
	}
	name := base + "_" + string(purpose)
	if purpose == PurposePhaseAdvice && phaseCode != "" {
		name += "_" + strings.ToUpper(phaseCode)
	}
	return "audio/" + name + ext
}
