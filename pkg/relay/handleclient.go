// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"context"
	"time"
)

const (
	historyLimit = 20
	repliesLimit = 1000

	requestTimeout = 30 * time.Second
)

// handleClientFrame dispatches one decoded request from a session. Each
// request runs on its own goroutine with its own deadline; errors are
// reported back on the same correlation ID and never close the session.
func (g *Gateway) handleClientFrame(session *Session, frame clientFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	switch frame.Type {
	case "message":
		g.handleSend(ctx, session, frame)
	case "history":
		g.handleHistory(ctx, session, frame)
	case "replies":
		g.handleReplies(ctx, session, frame)
	default:
		session.Deliver(serverFrame{Type: "error", ID: frame.ID, Error: "unknown request type"})
	}
}

// handleSend posts the session's text to its bound channel under the
// client-supplied display identity (falling back to the session email),
// then echoes the accepted copy to every connected session.
//
// The echo is deliberately unfiltered: relay-originated posts are visible
// to all clients regardless of channel, matching how the platform's own
// members see cross-channel activity from the relay bot.
func (g *Gateway) handleSend(ctx context.Context, session *Session, frame clientFrame) {
	if frame.Text == "" {
		session.Deliver(serverFrame{Type: "error", ID: frame.ID, Error: "empty message text"})
		return
	}

	username := session.Email
	iconURL := ""
	if frame.User != nil && frame.User.Name != "" {
		username = frame.User.Name
		iconURL = frame.User.Icon
	}

	raw, err := g.platform.PostMessage(ctx, PostRequest{
		ChannelID: session.ChannelID,
		Text:      frame.Text,
		Username:  username,
		IconURL:   iconURL,
		ThreadTS:  frame.ThreadID,
	})
	if err != nil {
		session.log.Error().Err(err).Msg("Message post failed")
		session.Deliver(serverFrame{Type: "error", ID: frame.ID, Error: "failed to send message"})
		return
	}
	outboundMessages.Inc()

	msg := g.normalizer.Normalize(ctx, raw)
	echo := serverFrame{Type: "message", ID: frame.ID, Message: &msg}
	for _, s := range g.registry.All() {
		s.Deliver(echo)
	}
}

// handleHistory returns the most recent messages of the session's channel,
// newest first. Latest is an opaque pagination cursor; empty means "from
// now".
func (g *Gateway) handleHistory(ctx context.Context, session *Session, frame clientFrame) {
	raws, err := g.platform.History(ctx, session.ChannelID, historyLimit, frame.Latest)
	if err != nil {
		session.log.Error().Err(err).Msg("History fetch failed")
		session.Deliver(serverFrame{Type: "error", ID: frame.ID, Error: "failed to fetch history"})
		return
	}
	session.Deliver(serverFrame{
		Type:     "history",
		ID:       frame.ID,
		Messages: g.normalizer.NormalizeAll(ctx, raws),
	})
}

// handleReplies returns a thread's messages, root first. A root with no
// replies yields just the root, never an error.
func (g *Gateway) handleReplies(ctx context.Context, session *Session, frame clientFrame) {
	if frame.TS == "" {
		session.Deliver(serverFrame{Type: "error", ID: frame.ID, Error: "missing ts"})
		return
	}
	raws, err := g.platform.Replies(ctx, session.ChannelID, frame.TS, repliesLimit)
	if err != nil {
		session.log.Error().Err(err).Msg("Replies fetch failed")
		session.Deliver(serverFrame{Type: "error", ID: frame.ID, Error: "failed to fetch replies"})
		return
	}
	session.Deliver(serverFrame{
		Type:     "replies",
		ID:       frame.ID,
		Messages: g.normalizer.NormalizeAll(ctx, raws),
	})
}
