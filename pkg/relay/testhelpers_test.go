// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// fakePlatform is an in-memory PlatformClient. It records posts and serves
// canned responses so handlers can be tested without a workspace.
type fakePlatform struct {
	mu    sync.Mutex
	posts []PostRequest

	postErr     error
	historyMsgs []RawMessage
	historyErr  error
	replyMsgs   []RawMessage
	repliesErr  error

	// profiles maps user ID to display profile for UserProfile lookups.
	profiles map[string]Profile
	// channels maps channel ID to metadata for ChannelInfo lookups.
	channels map[string]ChannelInfo
}

var _ PlatformClient = (*fakePlatform)(nil)

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		profiles: make(map[string]Profile),
		channels: make(map[string]ChannelInfo),
	}
}

func (f *fakePlatform) PostMessage(_ context.Context, req PostRequest) (RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return RawMessage{}, f.postErr
	}
	f.posts = append(f.posts, req)
	return RawMessage{
		TS:       fmt.Sprintf("1700000000.%06d", len(f.posts)),
		Channel:  req.ChannelID,
		Username: req.Username,
		IconURL:  req.IconURL,
		Text:     req.Text,
		ThreadTS: req.ThreadTS,
	}, nil
}

func (f *fakePlatform) History(_ context.Context, _ string, _ int, _ string) ([]RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.historyMsgs, f.historyErr
}

func (f *fakePlatform) Replies(_ context.Context, _, _ string, _ int) ([]RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.replyMsgs, f.repliesErr
}

func (f *fakePlatform) UserProfile(_ context.Context, userID string) (Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	profile, ok := f.profiles[userID]
	if !ok {
		return Profile{}, fmt.Errorf("no such user %s", userID)
	}
	return profile, nil
}

func (f *fakePlatform) ChannelInfo(_ context.Context, channelID string) (ChannelInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.channels[channelID]
	if !ok {
		return ChannelInfo{}, fmt.Errorf("no such channel %s", channelID)
	}
	return info, nil
}

func (f *fakePlatform) Posts() []PostRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]PostRequest, len(f.posts))
	copy(cp, f.posts)
	return cp
}

// fakeVerifier resolves tokens from a static map. Unknown tokens fail with
// ErrAuthFailure.
type fakeVerifier struct {
	tokens map[string]string
}

var _ TokenVerifier = (*fakeVerifier)(nil)

func (v *fakeVerifier) Verify(_ context.Context, token string) (Identity, error) {
	email, ok := v.tokens[token]
	if !ok {
		return Identity{}, fmt.Errorf("%w: unknown token", ErrAuthFailure)
	}
	return Identity{Email: email}, nil
}

// fakeSource serves a fixed set of mapping rows and counts fetches.
type fakeSource struct {
	mu      sync.Mutex
	rows    []MappingRow
	err     error
	fetches int
}

var _ MappingSource = (*fakeSource)(nil)

func (s *fakeSource) Fetch(_ context.Context) ([]MappingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.err != nil {
		return nil, s.err
	}
	return s.rows, nil
}

func (s *fakeSource) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

// testSession builds a detached session whose frames can be read straight
// off the send queue. The write loop is never started, so no socket is
// needed.
func testSession(email, channelID string) *Session {
	return newSession(nil, email, channelID, zerolog.Nop())
}

// receiveFrame pops the next queued frame from a detached session.
func receiveFrame(s *Session, timeout time.Duration) (serverFrame, bool) {
	select {
	case frame := <-s.send:
		return frame, true
	case <-time.After(timeout):
		return serverFrame{}, false
	}
}
