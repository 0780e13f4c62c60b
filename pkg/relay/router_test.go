// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestRouter(source MappingSource) *ChannelRouter {
	return NewChannelRouter(source, "C-DEFAULT", time.Minute, zerolog.Nop())
}

func TestChannelRouterResolve(t *testing.T) {
	t.Parallel()
	source := &fakeSource{rows: []MappingRow{
		{Domain: "acme.com", ChannelID: "C-ACME"},
		{Domain: "*", ChannelID: "C-WILDCARD"},
	}}
	router := newTestRouter(source)
	if err := router.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if got := router.Resolve("acme.com"); got != "C-ACME" {
		t.Errorf("exact match: got %q, want %q", got, "C-ACME")
	}
	if got := router.Resolve("other.org"); got != "C-WILDCARD" {
		t.Errorf("wildcard match: got %q, want %q", got, "C-WILDCARD")
	}
	if got := router.Resolve("ACME.com"); got != "C-WILDCARD" {
		t.Errorf("matching is case-sensitive as stored: got %q, want %q", got, "C-WILDCARD")
	}
}

func TestChannelRouterResolve_DefaultWithoutWildcard(t *testing.T) {
	t.Parallel()
	source := &fakeSource{rows: []MappingRow{
		{Domain: "acme.com", ChannelID: "C-ACME"},
	}}
	router := newTestRouter(source)
	if err := router.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if got := router.Resolve("other.org"); got != "C-DEFAULT" {
		t.Errorf("unmapped domain: got %q, want %q", got, "C-DEFAULT")
	}
}

func TestChannelRouterResolve_EmptyTable(t *testing.T) {
	t.Parallel()
	router := newTestRouter(&fakeSource{})
	if got := router.Resolve("anything.com"); got != "C-DEFAULT" {
		t.Errorf("empty table: got %q, want %q", got, "C-DEFAULT")
	}
}

func TestChannelRouterRefresh_ReplacesTable(t *testing.T) {
	t.Parallel()
	source := &fakeSource{rows: []MappingRow{{Domain: "old.com", ChannelID: "C-OLD"}}}
	router := newTestRouter(source)
	if err := router.Refresh(context.Background()); err != nil {
		t.Fatalf("first Refresh failed: %v", err)
	}

	source.mu.Lock()
	source.rows = []MappingRow{{Domain: "new.com", ChannelID: "C-NEW"}}
	source.mu.Unlock()
	if err := router.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh failed: %v", err)
	}

	if got := router.Resolve("old.com"); got != "C-DEFAULT" {
		t.Errorf("removed domain should fall through: got %q", got)
	}
	if got := router.Resolve("new.com"); got != "C-NEW" {
		t.Errorf("added domain: got %q, want %q", got, "C-NEW")
	}
}

func TestChannelRouterRefresh_FailureKeepsTable(t *testing.T) {
	t.Parallel()
	source := &fakeSource{rows: []MappingRow{{Domain: "acme.com", ChannelID: "C-ACME"}}}
	router := newTestRouter(source)
	if err := router.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	source.mu.Lock()
	source.err = errors.New("mapping endpoint down")
	source.mu.Unlock()
	if err := router.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh should fail when the source fails")
	}

	if got := router.Resolve("acme.com"); got != "C-ACME" {
		t.Errorf("failed refresh must keep the previous table: got %q", got)
	}
}

func TestChannelRouterRefresh_SkipsInvalidRows(t *testing.T) {
	t.Parallel()
	source := &fakeSource{rows: []MappingRow{
		{Domain: "", ChannelID: "C-NODOMAIN"},
		{Domain: "nochannel.com", ChannelID: ""},
		{Domain: "ok.com", ChannelID: "C-OK"},
	}}
	router := newTestRouter(source)
	if err := router.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if got := router.Size(); got != 1 {
		t.Errorf("table size: got %d, want 1", got)
	}
	if got := router.Resolve("ok.com"); got != "C-OK" {
		t.Errorf("valid row: got %q, want %q", got, "C-OK")
	}
}

func TestChannelRouterRefresh_NilSource(t *testing.T) {
	t.Parallel()
	router := NewChannelRouter(nil, "C-DEFAULT", time.Minute, zerolog.Nop())
	if err := router.Refresh(context.Background()); err != nil {
		t.Errorf("Refresh with nil source should be a no-op, got %v", err)
	}
	if got := router.Resolve("anything.com"); got != "C-DEFAULT" {
		t.Errorf("nil source resolve: got %q, want default", got)
	}
}

func TestChannelRouterSnapshot_IsCopy(t *testing.T) {
	t.Parallel()
	source := &fakeSource{rows: []MappingRow{{Domain: "acme.com", ChannelID: "C-ACME"}}}
	router := newTestRouter(source)
	if err := router.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	snap := router.Snapshot()
	snap["acme.com"] = "C-TAMPERED"
	if got := router.Resolve("acme.com"); got != "C-ACME" {
		t.Errorf("mutating a snapshot must not affect the router: got %q", got)
	}
}
