package coaching

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/apperr"
	"github.com/swing-coach/backend/internal/db/models"
	"github.com/swing-coach/backend/internal/transcribe"
)

// AudioClip is one recorded voice memo as uploaded by the client.
type AudioClip struct {
	Data     []byte
	FileName string
	MimeType string
}

func (c AudioClip) Empty() bool {
	return len(c.Data) == 0
}

func (s *Service) transcribeClip(ctx context.Context, clip AudioClip, purpose transcribe.Purpose) (string, error) {
	text, err := s.transcriber.Transcribe(ctx, transcribe.Request{
		Audio:    clip.Data,
		FileName: clip.FileName,
		MimeType: clip.MimeType,
	}, purpose)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperr.New(apperr.KindTranscriptionFailed, "coaching.transcribe", "no speech recognized")
	}
	return text, nil
}

type TranscribeInput struct {
	Audio   AudioClip
	Purpose string
	VideoID string
	Phase   string
}

type TranscribeResult struct {
	Text         string             `json:"text"`
	Purpose      transcribe.Purpose `json:"type"`
	AudioLocator *string            `json:"audio_url,omitempty"`
}

// TranscribeAudio turns a clip into text and keeps the clip in storage next
// to the video it belongs to. The text is returned to the caller, which
// decides where it goes.
func (s *Service) TranscribeAudio(ctx context.Context, in TranscribeInput) (*TranscribeResult, error) {
	const op = "coaching.TranscribeAudio"
	purpose, err := transcribe.ParsePurpose(in.Purpose)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, op, err)
	}
	var phase models.Phase
	if in.Phase != "" {
		if phase, err = models.ParsePhase(in.Phase); err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, op, err)
		}
	}
	videoName := ""
	if in.VideoID != "" {
		v, err := s.db.GetVideo(ctx, in.VideoID)
		if err != nil {
			return nil, err
		}
		videoName = v.FileName
	}

	text, err := s.transcribeClip(ctx, in.Audio, purpose)
	if err != nil {
		return nil, err
	}
	res := &TranscribeResult{Text: text, Purpose: purpose}

	name := transcribe.AudioName(videoName, purpose, phase.Code(), in.Audio.FileName)
	loc, err := s.store.Put(ctx, in.Audio.Data, name)
	if err != nil {
		s.log.Warn("audio clip not stored", zap.String("name", name), zap.Error(err))
		return res, nil
	}
	res.AudioLocator = &loc
	return res, nil
}
