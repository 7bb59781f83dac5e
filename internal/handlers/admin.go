package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/backpackr/backpackr-server/internal/models"
	"github.com/backpackr/backpackr-server/internal/repository"
)

// AgencyDirectory is the slice of the principal store the admin endpoints
// need: listing agencies by approval status and flipping that status.
type AgencyDirectory interface {
	ListAgencies(ctx context.Context, approved bool) ([]models.Principal, error)
	SetApproval(ctx context.Context, id string, approved bool) error
	DeleteAgency(ctx context.Context, id string) error
}

// AdminHandler exposes the agency approval queue.
type AdminHandler struct {
	agencies AgencyDirectory
}

func NewAdminHandler(agencies AgencyDirectory) *AdminHandler {
	return &AdminHandler{agencies: agencies}
}

// PendingAgencies lists agencies waiting for approval.
func (h *AdminHandler) PendingAgencies(w http.ResponseWriter, r *http.Request) {
	h.listAgencies(w, r, false)
}

// ApprovedAgencies lists agencies already approved.
func (h *AdminHandler) ApprovedAgencies(w http.ResponseWriter, r *http.Request) {
	h.listAgencies(w, r, true)
}

func (h *AdminHandler) listAgencies(w http.ResponseWriter, r *http.Request, approved bool) {
	list, err := h.agencies.ListAgencies(r.Context(), approved)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch agencies")
		return
	}

	out := make([]map[string]interface{}, 0, len(list))
	for i := range list {
		out = append(out, list[i].Public())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"count":    len(out),
		"agencies": out,
	})
}

// Approve marks the agency identified by the id query parameter as approved,
// unblocking its login.
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Agency id is required")
		return
	}

	if err := h.agencies.SetApproval(r.Context(), id, true); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Agency not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to approve agency")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Success: true, Message: "Agency approved successfully"})
}

// Reject removes a pending agency account entirely.
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Agency id is required")
		return
	}

	if err := h.agencies.DeleteAgency(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Agency not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to reject agency")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Success: true, Message: "Agency rejected and removed"})
}
