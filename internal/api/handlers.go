package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"filing-processor/internal/domain"
)

// EventService is the pipeline surface the HTTP layer drives.
type EventService interface {
	ProcessFiles(ctx context.Context) error
	SubmitToFes(ctx context.Context) error
	UpdateConversionFileStatus(ctx context.Context, submissionID, fileID string, result domain.ConversionResult) error
	HandleDelayedSubmissions(ctx context.Context, level domain.ServiceLevel) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	svc   EventService
	store pinger
}

func NewHandler(svc EventService, store pinger) *Handler {
	return &Handler{svc: svc, store: store}
}

// ConversionStatus records the converter's result for one attachment.
func (h *Handler) ConversionStatus(w http.ResponseWriter, r *http.Request, submissionID, fileID string) {
	var result domain.ConversionResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	switch result.Status {
	case domain.ConversionConverted, domain.ConversionFailed:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "conversion_status must be CONVERTED or FAILED"})
		return
	}

	err := h.svc.UpdateConversionFileStatus(r.Context(), submissionID, fileID, result)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
	case errors.Is(err, domain.ErrIncorrectState):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to record conversion status"})
	default:
		writeJSON(w, http.StatusNoContent, nil)
	}
}

// RunProcessFiles triggers one decision/execution pass, for support tooling.
func (h *Handler) RunProcessFiles(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ProcessFiles(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "completed"})
}

func (h *Handler) RunSubmitToFes(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SubmitToFes(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "completed"})
}

func (h *Handler) RunDelayed(w http.ResponseWriter, r *http.Request, level string) {
	serviceLevel := domain.ServiceLevel(level)
	switch serviceLevel {
	case domain.ServiceLevelStandard, domain.ServiceLevelSameDay:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown service level"})
		return
	}
	if err := h.svc.HandleDelayedSubmissions(r.Context(), serviceLevel); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "completed"})
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}
