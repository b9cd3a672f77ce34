// Package httpapi exposes the marinelog services over JSON/HTTP and the
// realtime change channel over websocket.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/marinelog/internal/api"
	"github.com/dmitrijs2005/marinelog/internal/logging"
	"github.com/dmitrijs2005/marinelog/internal/server/metrics"
	"github.com/dmitrijs2005/marinelog/internal/server/models"
	"github.com/dmitrijs2005/marinelog/internal/server/notifier"
	"github.com/dmitrijs2005/marinelog/internal/server/services"
)

type Users interface {
	Register(ctx context.Context, username string, salt, verifier []byte) (*models.User, error)
	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, verifier []byte) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Authenticate(accessToken string) (string, error)
}

type Records interface {
	List(ctx context.Context, userID string) ([]*models.Record, error)
	Upsert(ctx context.Context, userID string, rec *models.Record) (*models.Record, error)
	Delete(ctx context.Context, userID, id string) error
}

type Photos interface {
	UploadSlot(ctx context.Context, req api.PhotoUploadRequest) (*api.PhotoUploadResponse, error)
}

// Pinger reports whether a backing dependency is usable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the collaborators served by the router.
type Deps struct {
	Users    Users
	Records  Records
	Photos   Photos
	Notifier notifier.Notifier
	Health   Pinger
	Logger   logging.Logger

	// OriginPatterns are accepted for websocket upgrades from browsers.
	OriginPatterns []string
}

type handler struct {
	Deps
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = logging.Nop{}
	}
	h := &handler{Deps: d}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(d.Logger))
	r.Use(instrument)
	r.Use(chimiddleware.Recoverer)

	r.Get(api.PathHealth, h.health)
	r.Method(http.MethodGet, api.PathMetrics, promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	r.Post(api.PathRegister, h.register)
	r.Post(api.PathSalt, h.salt)
	r.Post(api.PathLogin, h.login)
	r.Post(api.PathRefresh, h.refresh)

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)

		r.Get(api.PathRecords, h.listRecords)
		r.Get(api.PathChanges, h.changes)
		r.Put(api.PathRecord, h.putRecord)
		r.Delete(api.PathRecord, h.deleteRecord)
		r.Post(api.PathPhotos, h.photoSlot)
	})

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health.PingContext(r.Context()); err != nil {
			h.Logger.Warn(r.Context(), "health check failed", "error", err.Error())
			writeJSON(w, http.StatusServiceUnavailable, api.PingResponse{Status: "DOWN"})
			return
		}
	}
	writeJSON(w, http.StatusOK, api.PingResponse{Status: "OK"})
}
