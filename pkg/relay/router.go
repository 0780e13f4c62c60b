// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// wildcardDomain is the reserved mapping key matched when no exact domain
// entry exists.
const wildcardDomain = "*"

// MappingRow is one (domain, channel) pair from the mapping data source.
type MappingRow struct {
	Domain    string
	ChannelID string
}

// MappingSource fetches the full domain-to-channel mapping. An empty result
// is valid and yields an empty table, not an error.
type MappingSource interface {
	Fetch(ctx context.Context) ([]MappingRow, error)
}

// ChannelRouter resolves a session's email domain to a destination channel.
// The mapping table is rebuilt wholesale on each refresh and swapped in
// atomically, so concurrent resolutions always see either the old table or
// the new one, never a partial mix.
type ChannelRouter struct {
	source         MappingSource
	defaultChannel string
	interval       time.Duration
	log            zerolog.Logger

	mu    sync.RWMutex
	table map[string]string
}

// NewChannelRouter creates a router with an empty mapping table. The
// defaultChannel is the hard fallback used when neither an exact domain
// entry nor a wildcard entry matches.
func NewChannelRouter(source MappingSource, defaultChannel string, interval time.Duration, log zerolog.Logger) *ChannelRouter {
	return &ChannelRouter{
		source:         source,
		defaultChannel: defaultChannel,
		interval:       interval,
		log:            log.With().Str("component", "channel_router").Logger(),
		table:          make(map[string]string),
	}
}

// Resolve maps an email domain to a channel ID. It is a total function:
// exact domain match, then the wildcard entry, then the configured default.
func (cr *ChannelRouter) Resolve(emailDomain string) string {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	if ch, ok := cr.table[emailDomain]; ok {
		return ch
	}
	if ch, ok := cr.table[wildcardDomain]; ok {
		return ch
	}
	return cr.defaultChannel
}

// Refresh fetches the mapping rows and replaces the table. On failure the
// previous table remains in effect: stale-but-available beats unavailable.
// Safe to call concurrently with Resolve.
func (cr *ChannelRouter) Refresh(ctx context.Context) error {
	if cr.source == nil {
		// No mapping source configured; the default channel serves
		// every domain.
		return nil
	}
	rows, err := cr.source.Fetch(ctx)
	if err != nil {
		mappingRefreshFailures.Inc()
		return fmt.Errorf("failed to fetch channel mapping: %w", err)
	}

	fresh := make(map[string]string, len(rows))
	for _, row := range rows {
		if row.Domain == "" || row.ChannelID == "" {
			continue
		}
		fresh[row.Domain] = row.ChannelID
	}

	cr.mu.Lock()
	cr.table = fresh
	cr.mu.Unlock()

	mappingDomains.Set(float64(len(fresh)))
	cr.log.Info().Int("domains", len(fresh)).Msg("Channel mapping refreshed")
	return nil
}

// Run refreshes immediately and then on every interval tick until the
// context is canceled. Refresh failures are logged and retried on the next
// tick.
func (cr *ChannelRouter) Run(ctx context.Context) {
	if err := cr.Refresh(ctx); err != nil {
		cr.log.Error().Err(err).Msg("Initial channel mapping refresh failed")
	}

	ticker := time.NewTicker(cr.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cr.log.Info().Msg("Channel mapping refresh loop stopped")
			return
		case <-ticker.C:
			if err := cr.Refresh(ctx); err != nil {
				cr.log.Error().Err(err).Msg("Channel mapping refresh failed, keeping previous table")
			}
		}
	}
}

// Snapshot returns a copy of the current mapping table for display surfaces.
func (cr *ChannelRouter) Snapshot() map[string]string {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	out := make(map[string]string, len(cr.table))
	for k, v := range cr.table {
		out[k] = v
	}
	return out
}

// Size returns the number of mapped domains.
func (cr *ChannelRouter) Size() int {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	return len(cr.table)
}
