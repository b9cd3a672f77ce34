package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/dmitrijs2005/marinelog/internal/server/metrics"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

// changes streams the caller's change events over a websocket until either
// side goes away. Incoming messages are discarded.
func (h *handler) changes(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.OriginPatterns})
	if err != nil {
		h.Logger.Warn(r.Context(), "websocket upgrade failed", "user_id", userID, "error", err.Error())
		return
	}
	defer conn.CloseNow()

	events, unsubscribe := h.Notifier.Subscribe(userID)
	defer unsubscribe()

	metrics.RealtimeSubscribers.Inc()
	defer metrics.RealtimeSubscribers.Dec()

	ctx := conn.CloseRead(r.Context())
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
