package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/apperr"
	"github.com/swing-coach/backend/internal/coaching"
)

type VideoHandler struct {
	svc       *coaching.Service
	maxUpload int64
	log       *zap.Logger
}

func NewVideoHandler(svc *coaching.Service, maxUpload int64, log *zap.Logger) *VideoHandler {
	return &VideoHandler{svc: svc, maxUpload: maxUpload, log: log}
}

// Upload accepts a multipart form with a "video" file and optional
// user_id, club_type, swing_form and swing_note fields.
func (h *VideoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.Upload"
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, h.log, apperr.Newf(apperr.KindValidation, op, "upload exceeds %d bytes", h.maxUpload))
			return
		}
		jsonError(w, h.log, apperr.Wrap(apperr.KindValidation, op, err))
		return
	}
	file, header, err := r.FormFile("video")
	if err != nil {
		jsonError(w, h.log, badRequest(op, `multipart field "video" is required`))
		return
	}
	defer file.Close()

	v, err := h.svc.CreateVideo(r.Context(), coaching.VideoUpload{
		UserID:    r.FormValue("user_id"),
		FileName:  header.Filename,
		Body:      file,
		ClubType:  r.FormValue("club_type"),
		SwingForm: r.FormValue("swing_form"),
		SwingNote: r.FormValue("swing_note"),
	})
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, v, http.StatusCreated)
}

func (h *VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		jsonError(w, h.log, badRequest("handlers.ListVideos", "query parameter 'user_id' is required"))
		return
	}
	videos, err := h.svc.ListVideos(r.Context(), userID)
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, map[string]interface{}{"videos": videos}, http.StatusOK)
}

func (h *VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.GetVideo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, v, http.StatusOK)
}

func (h *VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteVideo(r.Context(), chi.URLParam(r, "id")); err != nil {
		jsonError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AttachThumbnail stores a client-side thumbnail ("thumbnail" or "file" part).
func (h *VideoHandler) AttachThumbnail(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	data, name, err := readFilePart(r, "thumbnail", "file")
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	v, err := h.svc.AttachThumbnail(r.Context(), chi.URLParam(r, "id"), name, data)
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, v, http.StatusOK)
}

func (h *VideoHandler) RegenerateThumbnail(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.RegenerateThumbnail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, v, http.StatusOK)
}

// EnsureGroup is idempotent: repeated calls return the same group.
func (h *VideoHandler) EnsureGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.EnsureGroup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, g, http.StatusOK)
}
