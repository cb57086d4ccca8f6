package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db      Pinger
	storage string
	log     *zap.Logger
}

func NewHealthHandler(db Pinger, storageKind string, log *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, storage: storageKind, log: log}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		h.log.Warn("health check: database unreachable", zap.Error(err))
		jsonResponse(w, map[string]string{"status": "degraded", "database": "unreachable", "storage": h.storage}, http.StatusServiceUnavailable)
		return
	}
	jsonResponse(w, map[string]string{"status": "ok", "database": "ok", "storage": h.storage}, http.StatusOK)
}
