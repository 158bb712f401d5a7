package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/logging"
	"github.com/dmitrijs2005/saltkeeper/internal/server/models"
)

// SaltService is the custodian behaviour the handlers call.
type SaltService interface {
	Store(ctx context.Context, salt []byte, purpose string, expiresInDays *int) (*models.Salt, error)
	Fetch(ctx context.Context, id string) (*models.Salt, error)
	Delete(ctx context.Context, id string) error
	CleanupExpired(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (map[string]int64, error)
	Ping(ctx context.Context) error
}

type handlers struct {
	svc    SaltService
	logger logging.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status. The body only ever carries the kind.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	kind := common.KindOf(err)
	switch kind {
	case common.KindValidation:
		status = http.StatusBadRequest
	case common.KindUnauthorized:
		status = http.StatusUnauthorized
	case common.KindNotFound:
		status = http.StatusNotFound
	default:
		status = http.StatusInternalServerError
		kind = common.KindInternal
		h.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: kind.String()})
}

func (h *handlers) store(w http.ResponseWriter, r *http.Request) {
	var req storeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "too_large"})
			return
		}
		h.writeError(w, r, common.ErrorValidation)
		return
	}

	s, err := h.svc.Store(r.Context(), req.Salt, req.Purpose, req.ExpiresInDays)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, storeResponse{SaltID: s.ID, ExpiresAt: s.ExpiresAt})
}

func (h *handlers) fetch(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Fetch(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, fetchResponse{
		Salt:        s.Value,
		Purpose:     s.Purpose,
		CreatedAt:   s.CreatedAt,
		AccessCount: s.AccessCount,
	})
}

func (h *handlers) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: true})
}

func (h *handlers) cleanup(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.CleanupExpired(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cleanupResponse{DeletedCount: n})
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Purposes: counts})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		h.logger.Warn(r.Context(), "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
