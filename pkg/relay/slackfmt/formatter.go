// Copyright 2024-2026 Aiku AI

// Package slackfmt handles the inline user-mention token syntax used by the
// upstream platform. Message bodies reference users as <@U123ABC>; clients
// need the display form <@U123ABC|Jane Doe> so they can render a name
// without a second lookup.
package slackfmt

import (
	"regexp"
	"strings"
)

var mentionRe = regexp.MustCompile(`<@([A-Z0-9]+)>`)

// Mentions returns the user IDs referenced by mention tokens in text, in
// source order, including duplicates.
func Mentions(text string) []string {
	matches := mentionRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return ids
}

// UniqueMentions returns the distinct user IDs referenced in text, in order
// of first occurrence.
func UniqueMentions(text string) []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, id := range Mentions(text) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// Rewrite replaces every mention token in text with its display form using
// resolve. Tokens are rewritten strictly left to right, so the Nth
// occurrence in the output always corresponds to the Nth occurrence in the
// input. When resolve reports no name for an ID the original token is kept
// untouched.
func Rewrite(text string, resolve func(id string) (string, bool)) string {
	if !strings.Contains(text, "<@") {
		return text
	}
	return mentionRe.ReplaceAllStringFunc(text, func(token string) string {
		id := token[2 : len(token)-1]
		name, ok := resolve(id)
		if !ok || name == "" {
			return token
		}
		return "<@" + id + "|" + name + ">"
	})
}
