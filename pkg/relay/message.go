// Copyright 2024-2026 Aiku AI

package relay

// User is the resolved display identity attached to a message. Name is
// always a human-readable display name, never a raw platform user ID.
type User struct {
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// File is the attachment metadata shape delivered to clients.
type File struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	ThumbURL string `json:"thumbUrl,omitempty"`
}

// Message is the normalized unit exchanged with clients. TS is the
// upstream-assigned identifier, kept as a string to preserve precision.
type Message struct {
	TS         string `json:"ts"`
	User       User   `json:"user"`
	Text       string `json:"text"`
	ThreadID   string `json:"threadId,omitempty"`
	ReplyCount int    `json:"replyCount,omitempty"`
	Files      []File `json:"files,omitempty"`
}

// ProfileSnapshot is a profile embedded directly on a raw platform message.
// Some event payloads carry the author's profile inline; it is used as a
// fallback when the profile lookup collaborator fails.
type ProfileSnapshot struct {
	RealName string
	Image48  string
}

// RawFile is an attachment record as received from the upstream platform.
type RawFile struct {
	ID         string
	Name       string
	URLPrivate string
	Thumb360   string
}

// RawMessage is the decoded form of an upstream platform message. The
// platform delivers loosely-shaped payloads; decoding into this struct at
// the client boundary keeps the rest of the relay free of duck typing.
// Unrecognized shapes are dropped at the boundary, not propagated.
type RawMessage struct {
	TS         string
	Channel    string
	UserID     string
	Username   string // explicit display name, set on bot posts and relay echoes
	IconURL    string
	Text       string
	ThreadTS   string
	ReplyCount int
	SubType    string
	Profile    *ProfileSnapshot
	Files      []RawFile
}
