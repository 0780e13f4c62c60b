// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import "context"

// HandlePlatformMessage fans one live platform message out to the sessions
// bound to its channel. It is the handler registered with the platform
// event stream.
//
// Subtyped events (edits, joins, bot housekeeping) and events without text
// are dropped here; only plain channel messages reach clients.
func (g *Gateway) HandlePlatformMessage(ctx context.Context, raw RawMessage) {
	if raw.SubType != "" {
		droppedEvents.WithLabelValues("subtype").Inc()
		g.log.Debug().
			Str("subtype", raw.SubType).
			Str("channel_id", raw.Channel).
			Msg("Dropping subtyped event")
		return
	}
	if raw.Text == "" || raw.TS == "" {
		droppedEvents.WithLabelValues("empty").Inc()
		return
	}

	targets := g.registry.Matching(raw.Channel)
	if len(targets) == 0 {
		return
	}

	msg := g.normalizer.Normalize(ctx, raw)
	frame := serverFrame{Type: "message", Message: &msg}
	for _, session := range targets {
		session.Deliver(frame)
	}
	inboundMessages.Inc()
}
