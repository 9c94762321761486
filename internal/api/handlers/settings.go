package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/ragdesk/internal/api"
	"github.com/cloo-solutions/ragdesk/internal/domain"
)

type SettingsService interface {
	Resolve(ctx context.Context) (domain.EffectiveSettings, error)
	Apply(ctx context.Context, patch domain.SettingsPatch) (domain.EffectiveSettings, error)
}

type SettingsHandler struct {
	svc SettingsService
}

func NewSettingsHandler(svc SettingsService) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.Resolve(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, settings)
}

// Update applies the fields present in the body. Bounds are checked here;
// the resulting chunk window is checked against the merged settings so a
// patch cannot leave overlap >= size.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch domain.SettingsPatch
	if !api.DecodeJSON(w, r, &patch) {
		return
	}
	if patch.IsEmpty() {
		api.Error(w, http.StatusBadRequest, "no settings to update")
		return
	}

	if patch.ChunkSize != nil || patch.ChunkOverlap != nil {
		current, err := h.svc.Resolve(r.Context())
		if err != nil {
			api.HandleError(w, err)
			return
		}
		merged := current.Merge(patch)
		if merged.ChunkOverlap >= merged.ChunkSize {
			api.Error(w, http.StatusBadRequest, "chunk_overlap must be smaller than chunk_size")
			return
		}
	}

	settings, err := h.svc.Apply(r.Context(), patch)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, settings)
}
