package coaching

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/swing-coach/backend/internal/apperr"
	"github.com/swing-coach/backend/internal/storage"
)

// ResolveMediaURL returns a temporary access URL for a stored object.
func (s *Service) ResolveMediaURL(ctx context.Context, locator string) (string, error) {
	if strings.TrimSpace(locator) == "" {
		return "", apperr.New(apperr.KindValidation, "coaching.ResolveMediaURL", "locator is required")
	}
	return s.store.ResolveAccessURL(ctx, locator, s.opts.URLTTL)
}

type StoredMedia struct {
	Locator string `json:"image_locator"`
	URL     string `json:"image_url"`
}

// UploadSectionImage stores an annotated frame exported by the client.
func (s *Service) UploadSectionImage(ctx context.Context, fileName string, data []byte) (*StoredMedia, error) {
	const op = "coaching.UploadSectionImage"
	if len(data) == 0 {
		return nil, apperr.New(apperr.KindValidation, op, "image is empty")
	}
	name := storage.SafeFileName(fileName)
	if !storage.IsImageFile(name) {
		return nil, apperr.Newf(apperr.KindValidation, op, "%q is not an image", fileName)
	}
	loc, err := s.store.Put(ctx, data, "section-images/"+uuid.NewString()+"_"+name)
	if err != nil {
		return nil, err
	}
	access, err := s.store.ResolveAccessURL(ctx, loc, s.opts.URLTTL)
	if err != nil {
		return nil, err
	}
	return &StoredMedia{Locator: loc, URL: access}, nil
}
