// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/fieldtrack/internal/authz"
	"github.com/tomtom215/fieldtrack/internal/logging"
	ws "github.com/tomtom215/fieldtrack/internal/websocket"
)

// LiveLocations upgrades to a websocket that streams locationUpdate events.
// Principals allowed to watch everyone receive all users' fixes; everyone
// else receives only their own. userId narrows the stream to one user.
//
// @Summary Live location stream
// @Tags Live
// @Param userId query string false "Only stream this user's fixes"
// @Success 101 "Switching protocols"
// @Failure 403 {object} APIResponse "Not allowed to watch this user"
// @Router /ws/locations [get]
func (h *Handler) LiveLocations(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Live updates unavailable", nil)
		return
	}
	p, ok := principal(w, r)
	if !ok {
		return
	}

	scope := ws.Scope{
		AllUsers: h.enforcer.CanViewAll(p),
		UserID:   r.URL.Query().Get("userId"),
	}
	if scope.UserID != "" && scope.UserID != p.ID && !scope.AllUsers {
		RespondError(w, r, authz.ErrForbidden)
		return
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn, p, scope)
	select {
	case h.hub.Register <- client:
	case <-r.Context().Done():
		_ = conn.Close()
		return
	}
	client.Start()

	logging.Ctx(r.Context()).Debug().
		Uint64("client_id", client.ID()).
		Bool("all_users", scope.AllUsers).
		Msg("Live viewer connected")
}

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkWebSocketOrigin,
	}
}

// checkWebSocketOrigin admits browsers from the configured origins. Device
// and CLI clients send no Origin header; they still need a valid token.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.WebSocket.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
