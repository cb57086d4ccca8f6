package coaching

import (
	"context"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/apperr"
	"github.com/swing-coach/backend/internal/db/models"
	"github.com/swing-coach/backend/internal/storage"
	"github.com/swing-coach/backend/internal/transcribe"
)

type AdviceInput struct {
	Phase string
	Text  string
	Audio AudioClip
}

// AddAdvice appends an advice entry to a section. Voice advice is
// transcribed and its clip kept in storage.
func (s *Service) AddAdvice(ctx context.Context, sectionID string, in AdviceInput) (*models.SectionAdvice, error) {
	const op = "coaching.AddAdvice"
	if _, err := s.db.GetSection(ctx, sectionID); err != nil {
		return nil, err
	}
	a := &models.SectionAdvice{ID: uuid.NewString(), SectionID: sectionID}
	if in.Phase != "" {
		p, err := models.ParsePhase(in.Phase)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, op, err)
		}
		a.Phase = &p
	}

	a.Text = strings.TrimSpace(in.Text)
	if !in.Audio.Empty() {
		text, err := s.transcribeClip(ctx, in.Audio, transcribe.PurposePhaseAdvice)
		if err != nil {
			return nil, err
		}
		a.Text = text

		ext := ".webm"
		if storage.IsAudioFile(in.Audio.FileName) {
			ext = strings.ToLower(path.Ext(in.Audio.FileName))
		}
		loc, err := s.store.Put(ctx, in.Audio.Data, "advices/"+sectionID+"/"+a.ID+ext)
		if err != nil {
			s.log.Warn("advice audio not stored", zap.String("section_id", sectionID), zap.Error(err))
		} else {
			a.AudioURL = &loc
		}
	}
	if a.Text == "" {
		return nil, apperr.New(apperr.KindValidation, op, "advice text or audio is required")
	}

	if err := s.db.CreateAdvice(ctx, a); err != nil {
		if a.AudioURL != nil {
			if derr := s.store.Delete(context.WithoutCancel(ctx), *a.AudioURL); derr != nil {
				s.log.Warn("orphaned advice audio", zap.String("locator", *a.AudioURL), zap.Error(derr))
			}
		}
		return nil, err
	}
	return a, nil
}

func (s *Service) ListAdvices(ctx context.Context, sectionID string) ([]models.SectionAdvice, error) {
	if _, err := s.db.GetSection(ctx, sectionID); err != nil {
		return nil, err
	}
	return s.db.ListAdvices(ctx, sectionID)
}

func (s *Service) DeleteAdvice(ctx context.Context, id string) error {
	audio, err := s.db.DeleteAdvice(ctx, id)
	if err != nil {
		return err
	}
	if audio != "" {
		if err := s.store.Delete(ctx, audio); err != nil {
			s.log.Warn("orphaned advice audio", zap.String("advice_id", id), zap.String("locator", audio), zap.Error(err))
		}
	}
	return nil
}
