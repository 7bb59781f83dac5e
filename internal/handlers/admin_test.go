package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/backpackr/backpackr-server/internal/models"
	"github.com/backpackr/backpackr-server/internal/repository"
)

func adminRouter(h *AdminHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/admin/agencies/pending", h.PendingAgencies)
	r.Get("/api/admin/agencies/approved", h.ApprovedAgencies)
	r.Put("/api/admin/agencies/approve", h.Approve)
	r.Delete("/api/admin/agencies/reject", h.Reject)
	return r
}

// fakeDirectory is an in-memory AgencyDirectory.
type fakeDirectory struct {
	agencies map[string]*models.Principal
}

func newFakeDirectory(agencies ...*models.Principal) *fakeDirectory {
	d := &fakeDirectory{agencies: map[string]*models.Principal{}}
	for _, a := range agencies {
		d.agencies[a.ID.Hex()] = a
	}
	return d
}

func (d *fakeDirectory) ListAgencies(ctx context.Context, approved bool) ([]models.Principal, error) {
	var out []models.Principal
	for _, a := range d.agencies {
		if a.IsApproved == approved {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (d *fakeDirectory) SetApproval(ctx context.Context, id string, approved bool) error {
	a, ok := d.agencies[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.IsApproved = approved
	return nil
}

func (d *fakeDirectory) DeleteAgency(ctx context.Context, id string) error {
	if _, ok := d.agencies[id]; !ok {
		return repository.ErrNotFound
	}
	delete(d.agencies, id)
	return nil
}

func newAgency(name string, approved bool) *models.Principal {
	return &models.Principal{
		ID:         primitive.NewObjectID(),
		Email:      name + "@example.com",
		Role:       models.KindAgency,
		AgencyName: name,
		IsApproved: approved,
	}
}

func TestAdminApprovalQueue(t *testing.T) {
	pending := newAgency("trek", false)
	approved := newAgency("hike", true)
	dir := newFakeDirectory(pending, approved)
	h := NewAdminHandler(dir)

	r := adminRouter(h)

	rec, body := doJSON(t, r, http.MethodGet, "/api/admin/agencies/pending", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])

	rec, body = doJSON(t, r, http.MethodGet, "/api/admin/agencies/approved", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])

	// Approve the pending one; both lists shift.
	rec, _ = doJSON(t, r, http.MethodPut, "/api/admin/agencies/approve?id="+pending.ID.Hex(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, pending.IsApproved)

	rec, body = doJSON(t, r, http.MethodGet, "/api/admin/agencies/pending", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["count"])
}

func TestAdminRejectRemovesAgency(t *testing.T) {
	pending := newAgency("trek", false)
	dir := newFakeDirectory(pending)
	h := NewAdminHandler(dir)
	r := adminRouter(h)

	rec, _ := doJSON(t, r, http.MethodDelete, "/api/admin/agencies/reject?id="+pending.ID.Hex(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, dir.agencies)

	// Gone now.
	rec, _ = doJSON(t, r, http.MethodDelete, "/api/admin/agencies/reject?id="+pending.ID.Hex(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminApproveValidation(t *testing.T) {
	h := NewAdminHandler(newFakeDirectory())
	r := adminRouter(h)

	rec, _ := doJSON(t, r, http.MethodPut, "/api/admin/agencies/approve", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, r, http.MethodPut, "/api/admin/agencies/approve?id="+primitive.NewObjectID().Hex(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
