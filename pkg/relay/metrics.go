// Copyright 2024-2026 Aiku AI

package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_sessions_active",
		Help: "Number of connected client sessions.",
	})

	mappingDomains = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_mapping_domains",
		Help: "Number of email domains in the current channel mapping table.",
	})

	mappingRefreshFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_mapping_refresh_failures_total",
		Help: "Number of failed channel mapping refresh attempts.",
	})

	inboundMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_inbound_messages_total",
		Help: "Platform messages fanned out to client sessions.",
	})

	outboundMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_outbound_messages_total",
		Help: "Client messages posted to the platform.",
	})

	droppedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_dropped_events_total",
		Help: "Events dropped before delivery, by reason.",
	}, []string{"reason"})

	authFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_auth_failures_total",
		Help: "Connection attempts rejected during token verification.",
	})
)
