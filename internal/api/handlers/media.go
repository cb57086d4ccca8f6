package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/coaching"
)

type MediaHandler struct {
	svc       *coaching.Service
	maxUpload int64
	log       *zap.Logger
}

func NewMediaHandler(svc *coaching.Service, maxUpload int64, log *zap.Logger) *MediaHandler {
	return &MediaHandler{svc: svc, maxUpload: maxUpload, log: log}
}

type captureRequest struct {
	VideoID   string   `json:"video_id"`
	AccessURL string   `json:"access_url"`
	Timestamp *float64 `json:"timestamp"`
	FileName  string   `json:"filename"`
	Phase     string   `json:"phase"`
	SectionID string   `json:"section_id"`
}

func (h *MediaHandler) CaptureFrame(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, h.log, err)
		return
	}
	if req.Timestamp == nil {
		jsonError(w, h.log, badRequest("handlers.CaptureFrame", "timestamp is required"))
		return
	}
	res, err := h.svc.CaptureFrame(r.Context(), coaching.CaptureInput{
		VideoID:   req.VideoID,
		AccessURL: req.AccessURL,
		Timestamp: *req.Timestamp,
		FileName:  req.FileName,
		Phase:     req.Phase,
		SectionID: req.SectionID,
	})
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, res, http.StatusCreated)
}

func (h *MediaHandler) ResolveURL(w http.ResponseWriter, r *http.Request) {
	locator := r.URL.Query().Get("locator")
	u, err := h.svc.ResolveMediaURL(r.Context(), locator)
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, map[string]string{"locator": locator, "url": u}, http.StatusOK)
}

func (h *MediaHandler) UploadSectionImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	data, name, err := readFilePart(r, "image", "file")
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	res, err := h.svc.UploadSectionImage(r.Context(), name, data)
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, res, http.StatusCreated)
}

// Transcribe takes a multipart form with "audio", "type" and optional
// "video_id" and "phase" fields.
func (h *MediaHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	fields, clip, err := readTextOrAudio(r)
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	if clip.Empty() {
		jsonError(w, h.log, badRequest("handlers.Transcribe", `multipart field "audio" is required`))
		return
	}
	res, err := h.svc.TranscribeAudio(r.Context(), coaching.TranscribeInput{
		Audio:   clip,
		Purpose: fields["type"],
		VideoID: fields["video_id"],
		Phase:   fields["phase"],
	})
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, res, http.StatusOK)
}
