// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aiku/franklin-relay/pkg/relay/slackfmt"
)

// fallbackAuthorName is used when no author identity can be resolved at all.
const fallbackAuthorName = "Unknown"

// Profile is the resolved display profile of a platform user.
type Profile struct {
	RealName string
	Image48  string
}

// ProfileLookup resolves a platform user ID to a display profile.
type ProfileLookup interface {
	UserProfile(ctx context.Context, userID string) (Profile, error)
}

// Normalizer converts raw platform messages into the internal Message
// schema: it resolves the author identity, rewrites inline mention tokens
// to display names, and extracts attachment metadata.
type Normalizer struct {
	profiles ProfileLookup
	log      zerolog.Logger
}

// NewNormalizer creates a normalizer using the given profile lookup.
func NewNormalizer(profiles ProfileLookup, log zerolog.Logger) *Normalizer {
	return &Normalizer{
		profiles: profiles,
		log:      log.With().Str("component", "normalizer").Logger(),
	}
}

// Normalize converts one raw message. It never fails: unresolvable authors
// degrade to "Unknown" and unresolvable mentions keep their raw token.
func (n *Normalizer) Normalize(ctx context.Context, raw RawMessage) Message {
	return Message{
		TS:         raw.TS,
		User:       n.resolveAuthor(ctx, raw),
		Text:       n.resolveMentions(ctx, raw.Text),
		ThreadID:   raw.ThreadTS,
		ReplyCount: raw.ReplyCount,
		Files:      convertFiles(raw.Files),
	}
}

// NormalizeAll filters and converts a batch of raw messages, preserving
// order. Messages without a timestamp and channel-join notices are dropped
// before normalization. The result is never nil.
func (n *Normalizer) NormalizeAll(ctx context.Context, raws []RawMessage) []Message {
	out := make([]Message, 0, len(raws))
	for _, raw := range raws {
		if raw.TS == "" || raw.SubType == "channel_join" {
			continue
		}
		out = append(out, n.Normalize(ctx, raw))
	}
	return out
}

// resolveAuthor picks the message author's display identity. Precedence: an
// explicit display name already on the message (set on bot posts and on the
// relay's own echoes), then a live profile lookup by user ID, then a profile
// snapshot embedded in the message, then the fallback literal.
func (n *Normalizer) resolveAuthor(ctx context.Context, raw RawMessage) User {
	if raw.Username != "" {
		return User{Name: raw.Username, Icon: raw.IconURL}
	}

	if raw.UserID != "" {
		profile, err := n.profiles.UserProfile(ctx, raw.UserID)
		if err == nil && profile.RealName != "" {
			return User{Name: profile.RealName, Icon: profile.Image48}
		}
		if err != nil {
			n.log.Warn().Err(err).Str("user_id", raw.UserID).Msg("Profile lookup failed")
		}
	}

	if raw.Profile != nil && raw.Profile.RealName != "" {
		return User{Name: raw.Profile.RealName, Icon: raw.Profile.Image48}
	}

	return User{Name: fallbackAuthorName}
}

// resolveMentions rewrites every <@ID> token in text to <@ID|Name>.
// Lookups for distinct IDs run concurrently; substitution happens only
// after all of them have settled, applied in source order so the Nth token
// in the output corresponds to the Nth token in the input regardless of
// lookup completion order. A failed lookup leaves its token untouched.
func (n *Normalizer) resolveMentions(ctx context.Context, text string) string {
	ids := slackfmt.UniqueMentions(text)
	if len(ids) == 0 {
		return text
	}

	var mu sync.Mutex
	names := make(map[string]string, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			profile, err := n.profiles.UserProfile(gctx, id)
			if err != nil || profile.RealName == "" {
				if err != nil {
					n.log.Warn().Err(err).Str("user_id", id).Msg("Mention lookup failed, keeping raw token")
				}
				return nil
			}
			mu.Lock()
			names[id] = profile.RealName
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return slackfmt.Rewrite(text, func(id string) (string, bool) {
		name, ok := names[id]
		return name, ok
	})
}

// convertFiles maps raw attachment records to the internal files shape,
// preserving order. Absent attachments yield nil, which serializes to an
// absent field rather than null.
func convertFiles(raw []RawFile) []File {
	if len(raw) == 0 {
		return nil
	}
	files := make([]File, 0, len(raw))
	for _, f := range raw {
		files = append(files, File{
			ID:       f.ID,
			Name:     f.Name,
			URL:      f.URLPrivate,
			ThumbURL: f.Thumb360,
		})
	}
	return files
}
