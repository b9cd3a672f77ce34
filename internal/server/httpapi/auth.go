package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/marinelog/internal/api"
	"github.com/dmitrijs2005/marinelog/internal/server/services"
)

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := h.Users.Register(r.Context(), req.Username, req.Salt, req.Verifier)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Logger.Info(r.Context(), "user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, api.RegisterResponse{UserID: user.ID})
}

func (h *handler) salt(w http.ResponseWriter, r *http.Request) {
	var req api.SaltRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	salt, err := h.Users.GetSalt(r.Context(), req.Username)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.SaltResponse{Salt: salt})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	pair, err := h.Users.Login(r.Context(), req.Username, req.Verifier)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse(pair))
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req api.RefreshRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	pair, err := h.Users.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse(pair))
}

func tokenResponse(p *services.TokenPair) api.TokenResponse {
	return api.TokenResponse{UserID: p.UserID, AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
}
