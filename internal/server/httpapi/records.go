package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/marinelog/internal/api"
	"github.com/dmitrijs2005/marinelog/internal/common"
	"github.com/dmitrijs2005/marinelog/internal/server/models"
)

// ownerMatches rejects requests naming a user other than the caller. An
// absent user_id means the caller.
func ownerMatches(r *http.Request, claimed string) bool {
	return claimed == "" || claimed == UserID(r.Context())
}

func (h *handler) listRecords(w http.ResponseWriter, r *http.Request) {
	if !ownerMatches(r, r.URL.Query().Get("user_id")) {
		h.fail(w, r, common.ErrorForbidden)
		return
	}

	recs, err := h.Records.List(r.Context(), UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]api.Record, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toAPI(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) putRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body api.Record
	if err := decode(w, r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	if body.ID != "" && body.ID != id {
		h.fail(w, r, fmt.Errorf("%w: body id %q does not match path id %q", common.ErrorValidation, body.ID, id))
		return
	}
	if !ownerMatches(r, body.UserID) {
		h.fail(w, r, common.ErrorForbidden)
		return
	}
	body.ID = id

	stored, err := h.Records.Upsert(r.Context(), UserID(r.Context()), fromAPI(body))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPI(stored))
}

func (h *handler) deleteRecord(w http.ResponseWriter, r *http.Request) {
	if !ownerMatches(r, r.URL.Query().Get("user_id")) {
		h.fail(w, r, common.ErrorForbidden)
		return
	}

	if err := h.Records.Delete(r.Context(), UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toAPI(rec *models.Record) api.Record {
	urls := rec.PhotoURLs
	if urls == nil {
		urls = []string{}
	}
	return api.Record{
		ID:            rec.ID,
		ClientName:    rec.ClientName,
		VesselName:    rec.VesselName,
		StartDateTime: rec.StartDateTime.UTC(),
		Details:       rec.Details,
		PhotoURL:      rec.PhotoURL,
		PhotoURLs:     urls,
		CreatedAt:     rec.CreatedAt.UTC(),
		UpdatedAt:     rec.UpdatedAt.UTC(),
		UserID:        rec.UserID,
	}
}

func fromAPI(a api.Record) *models.Record {
	return &models.Record{
		ID:            a.ID,
		UserID:        a.UserID,
		ClientName:    a.ClientName,
		VesselName:    a.VesselName,
		StartDateTime: a.StartDateTime,
		Details:       a.Details,
		PhotoURL:      a.PhotoURL,
		PhotoURLs:     a.PhotoURLs,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}
