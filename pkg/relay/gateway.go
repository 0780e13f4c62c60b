// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const notifyTimeout = 10 * time.Second

// Gateway owns the client-facing WebSocket endpoint. It authenticates each
// connection before upgrading, binds the session to a channel, and runs the
// session's read loop until disconnect.
type Gateway struct {
	verifier   TokenVerifier
	platform   PlatformClient
	router     *ChannelRouter
	registry   *Registry
	normalizer *Normalizer

	adminChannel string
	teamID       string
	upgrader     websocket.Upgrader
	log          zerolog.Logger
}

// NewGateway wires the gateway's collaborators. adminChannel may be empty,
// which disables connect/disconnect notifications. teamID is included in
// the ready frame so clients can build permalinks.
func NewGateway(verifier TokenVerifier, platform PlatformClient, router *ChannelRouter, registry *Registry, normalizer *Normalizer, adminChannel, teamID string, log zerolog.Logger) *Gateway {
	return &Gateway{
		verifier:     verifier,
		platform:     platform,
		router:       router,
		registry:     registry,
		normalizer:   normalizer,
		adminChannel: adminChannel,
		teamID:       teamID,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients connect from arbitrary embedding pages.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log.With().Str("component", "gateway").Logger(),
	}
}

// HandleWS authenticates and serves one client connection. Token
// verification happens before the upgrade, so a bad token costs a plain 401
// and never a socket.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		authFailures.Inc()
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	identity, err := g.verifier.Verify(r.Context(), token)
	if err != nil {
		authFailures.Inc()
		g.log.Warn().Err(err).Msg("Token verification failed")
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	channelID := g.router.Resolve(emailDomain(identity.Email))

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	session := newSession(conn, identity.Email, channelID, g.log)
	g.registry.Add(session)
	go session.writeLoop()

	g.log.Info().
		Str("session_id", session.ID).
		Str("email", session.Email).
		Str("channel_id", session.ChannelID).
		Msg("Client connected")
	go g.notifyAdmin("Client " + session.Email + " connected ⚡️")

	session.Deliver(g.readyFrame(r.Context(), session))

	g.readLoop(session)
	g.disconnect(session)
}

// readyFrame builds the first frame a client receives. The channel name is
// cosmetic; when the lookup fails the frame still goes out with a
// placeholder so the client is never left waiting.
func (g *Gateway) readyFrame(ctx context.Context, session *Session) serverFrame {
	channelName := "unknown"
	if info, err := g.platform.ChannelInfo(ctx, session.ChannelID); err != nil {
		g.log.Warn().Err(err).Str("channel_id", session.ChannelID).Msg("Channel info lookup failed")
	} else if info.Name != "" {
		channelName = info.Name
	}
	return serverFrame{
		Type:        "ready",
		Email:       session.Email,
		ChannelID:   session.ChannelID,
		ChannelName: channelName,
		TeamID:      g.teamID,
	}
}

// readLoop decodes client frames until the socket errors or closes.
// Requests are handled on their own goroutines so a slow history fetch
// never blocks the next incoming frame.
func (g *Gateway) readLoop(session *Session) {
	for {
		var frame clientFrame
		if err := session.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				session.log.Warn().Err(err).Msg("Session read failed")
			}
			return
		}
		go g.handleClientFrame(session, frame)
	}
}

// disconnect tears the session down exactly once. The registry removal
// gates the admin notification, so a session that races close paths only
// ever announces one goodbye.
func (g *Gateway) disconnect(session *Session) {
	session.Close()
	if g.registry.Remove(session.ID) {
		g.log.Info().
			Str("session_id", session.ID).
			Str("email", session.Email).
			Msg("Client disconnected")
		go g.notifyAdmin("Client " + session.Email + " disconnected 🖐")
	}
}

// notifyAdmin posts a line to the admin channel. Failures are logged and
// swallowed; notifications never affect the session they describe.
func (g *Gateway) notifyAdmin(text string) {
	if g.adminChannel == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if _, err := g.platform.PostMessage(ctx, PostRequest{ChannelID: g.adminChannel, Text: text}); err != nil {
		g.log.Warn().Err(err).Msg("Admin notification failed")
	}
}

// emailDomain extracts the domain part of an email address, case preserved:
// mapping rows match exactly as stored. An address with no @ maps to an
// empty domain, which resolves to the default channel.
func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return email[at+1:]
}
