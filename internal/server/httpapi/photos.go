package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/marinelog/internal/api"
)

func (h *handler) photoSlot(w http.ResponseWriter, r *http.Request) {
	var req api.PhotoUploadRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	slot, err := h.Photos.UploadSlot(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}
