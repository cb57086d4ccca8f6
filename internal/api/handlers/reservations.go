package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/coaching"
)

type ReservationHandler struct {
	svc *coaching.Service
	log *zap.Logger
}

func NewReservationHandler(svc *coaching.Service, log *zap.Logger) *ReservationHandler {
	return &ReservationHandler{svc: svc, log: log}
}

type createReservationRequest struct {
	UserID       string    `json:"user_id"`
	CoachID      string    `json:"coach_id"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	LocationType string    `json:"location_type"`
	Price        int64     `json:"price"`
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, h.log, err)
		return
	}
	res, err := h.svc.CreateReservation(r.Context(), coaching.ReservationInput{
		UserID:      req.UserID,
		CoachID:     req.CoachID,
		ScheduledAt: req.ScheduledAt,
		Venue:       req.LocationType,
		Price:       req.Price,
	})
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, res, http.StatusCreated)
}

func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetReservation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, res, http.StatusOK)
}

func (h *ReservationHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, h.log, err)
		return
	}
	res, err := h.svc.TransitionReservation(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		jsonError(w, h.log, err)
		return
	}
	jsonResponse(w, res, http.StatusOK)
}
