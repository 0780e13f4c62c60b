// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// sendBuffer bounds the per-session outbound queue. A client that
	// stops reading loses frames instead of stalling fan-out.
	sendBuffer = 64

	writeTimeout = 10 * time.Second
)

// clientFrame is the envelope for every request a client sends over its
// socket. Type selects the operation; the other fields are per-type.
type clientFrame struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`       // request correlation ID, echoed back
	Text     string `json:"text,omitempty"`     // message
	ThreadID string `json:"threadId,omitempty"` // message: parent thread
	User     *User  `json:"user,omitempty"`     // message: sender display identity
	TS       string `json:"ts,omitempty"`       // replies: thread root
	Latest   string `json:"latest,omitempty"`   // history cursor
}

// serverFrame is the envelope for everything the relay sends to a client.
type serverFrame struct {
	Type        string    `json:"type"`
	ID          string    `json:"id,omitempty"`
	Email       string    `json:"email,omitempty"`
	ChannelID   string    `json:"channelId,omitempty"`
	ChannelName string    `json:"channelName,omitempty"`
	TeamID      string    `json:"teamId,omitempty"`
	Message     *Message  `json:"message,omitempty"`
	// omitzero, not omitempty: history/replies acks always set a non-nil
	// slice so an empty result serializes as [] instead of vanishing.
	Messages []Message `json:"messages,omitzero"`
	Error    string    `json:"error,omitempty"`
}

// Session is one authenticated client connection, bound to a single channel
// for its whole lifetime. All writes to the socket go through the send
// queue and a single writer goroutine, so concurrent fan-out never
// interleaves frames on the wire.
type Session struct {
	ID        string
	Email     string
	ChannelID string

	conn *websocket.Conn
	send chan serverFrame
	log  zerolog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func newSession(conn *websocket.Conn, email, channelID string, log zerolog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		ID:        id,
		Email:     email,
		ChannelID: channelID,
		conn:      conn,
		send:      make(chan serverFrame, sendBuffer),
		log: log.With().
			Str("session_id", id).
			Str("email", email).
			Str("channel_id", channelID).
			Logger(),
		done: make(chan struct{}),
	}
}

// writeLoop drains the send queue onto the socket. It is the only goroutine
// that writes to conn. It exits when the session is closed or a write
// fails.
func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteJSON(frame); err != nil {
				s.log.Warn().Err(err).Msg("Session write failed")
				s.Close()
				return
			}
		}
	}
}

// Deliver queues a frame for the client without blocking. If the queue is
// full the frame is dropped and counted; a stuck client must never slow
// delivery to the others. A closed session accepts nothing: done is
// checked on its own first, because a combined select would pick between
// a ready done and a ready send at random.
func (s *Session) Deliver(frame serverFrame) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case <-s.done:
	case s.send <- frame:
	default:
		droppedEvents.WithLabelValues("slow_client").Inc()
		s.log.Warn().Str("frame_type", frame.Type).Msg("Send queue full, dropping frame")
	}
}

// Close tears down the socket. Safe to call from any goroutine, any number
// of times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// Done is closed when the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
