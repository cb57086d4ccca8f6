package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/coaching"
)

type SectionHandler struct {
	svc *coaching.Service
	log *zap.Logger
}

func NewSectionHandler(svc *coaching.Service, log *zap.Logger) *SectionHandler {
	return &SectionHandler{svc: svc, log: log}
}

type createSectionRequest struct {
	StartSec     float64         `json:"start_sec"`
	EndSec       float64         `json:"end_sec"`
	Tags         []string        `json:"tags"`
	Markup       json.RawMessage `json:"markup_json"`
	ImageURL     string          `json:"image_url"`
	CoachComment string          `json:"coach_comment"`
}

type updateSectionRequest struct {
	StartSec     *float64         `json:"start_sec"`
	EndSec       *float64         `json:"end_sec"`
	Tags         *[]string        `json:"tags"`
	Markup       *json.RawMessage `json:"markup_json"`
	ImageURL     *string          `json:"image_url"`
	CoachComment *string          `json:"coach_comment"`
}

func (h *SectionHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.GetGroup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, g, http.StatusOK)
}

func (h *SectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSectionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, h.log, err)
		return
	}
	sec, err := h.svc.CreateSection(r.Context(), chi.URLParam(r, "id"), coaching.SectionInput{
		StartSec:     req.StartSec,
		EndSec:       req.EndSec,
		Tags:         req.Tags,
		Markup:       req.Markup,
		ImageLocator: req.ImageURL,
		Comment:      req.CoachComment,
	})
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, sec, http.StatusCreated)
}

// List returns the group's sections in chronological order.
func (h *SectionHandler) List(w http.ResponseWriter, r *http.Request) {
	sections, err := h.svc.ListSections(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, map[string]interface{}{"sections": sections}, http.StatusOK)
}

func (h *SectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sec, err := h.svc.GetSection(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, sec, http.StatusOK)
}

func (h *SectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateSectionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, h.log, err)
		return
	}
	sec, err := h.svc.UpdateSection(r.Context(), chi.URLParam(r, "id"), coaching.SectionPatch{
		StartSec:     req.StartSec,
		EndSec:       req.EndSec,
		Tags:         req.Tags,
		Markup:       req.Markup,
		ImageLocator: req.ImageURL,
		Comment:      req.CoachComment,
	})
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, sec, http.StatusOK)
}

func (h *SectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteSection(r.Context(), chi.URLParam(r, "id")); err != nil {
		jsonError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Comment takes {"text": ...} as JSON, or a multipart form with an "audio"
// part to transcribe.
func (h *SectionHandler) Comment(w http.ResponseWriter, r *http.Request) {
	fields, clip, err := readTextOrAudio(r)
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	text := fields["text"]
	if text == "" {
		text = fields["coach_comment"]
	}
	sec, err := h.svc.SetComment(r.Context(), chi.URLParam(r, "id"), coaching.CommentInput{Text: text, Audio: clip})
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, sec, http.StatusOK)
}

func (h *SectionHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.AnalyzeSection(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, res, http.StatusOK)
}

func (h *SectionHandler) SaveFeedback(w http.ResponseWriter, r *http.Request) {
	fields, clip, err := readTextOrAudio(r)
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	kind, err := coaching.ParseFeedbackType(fields["type"])
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	g, err := h.svc.SaveFeedback(r.Context(), chi.URLParam(r, "id"), coaching.FeedbackInput{
		Type:  kind,
		Text:  fields["text"],
		Audio: clip,
	})
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, g, http.StatusOK)
}

func (h *SectionHandler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.GetFeedback(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, g, http.StatusOK)
}

func (h *SectionHandler) AddAdvice(w http.ResponseWriter, r *http.Request) {
	fields, clip, err := readTextOrAudio(r)
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	a, err := h.svc.AddAdvice(r.Context(), chi.URLParam(r, "id"), coaching.AdviceInput{
		Phase: fields["phase"],
		Text:  fields["text"],
		Audio: clip,
	})
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, a, http.StatusCreated)
}

func (h *SectionHandler) ListAdvices(w http.ResponseWriter, r *http.Request) {
	advices, err := h.svc.ListAdvices(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, map[string]interface{}{"advices": advices}, http.StatusOK)
}

func (h *SectionHandler) DeleteAdvice(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAdvice(r.Context(), chi.URLParam(r, "id")); err != nil {
		jsonError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
