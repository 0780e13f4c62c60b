// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command franklin-relay bridges a Slack workspace and browser chat
// clients. Clients connect over a WebSocket, are routed to a Slack channel
// by their email domain, and exchange messages with the channel in both
// directions.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/aiku/franklin-relay/pkg/relay"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	// Local deployments keep secrets in a .env file; absence is fine.
	_ = godotenv.Load()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := relay.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	verifier, err := cfg.Verifier()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build token verifier")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slackClient := relay.NewSlackClient(cfg.SlackBotToken, cfg.SlackAppToken, log)
	teamID, err := slackClient.TeamID(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Slack authentication check failed")
	}

	var source relay.MappingSource
	if cfg.MappingURL != "" {
		source = relay.NewHTTPMappingSource(cfg.MappingURL, log)
	}
	router := relay.NewChannelRouter(source, cfg.DefaultChannelID, cfg.MappingRefreshInterval(), log)

	registry := relay.NewRegistry()
	normalizer := relay.NewNormalizer(slackClient, log)
	gateway := relay.NewGateway(verifier, slackClient, router, registry, normalizer, cfg.AdminChannelID, teamID, log)

	api := relay.NewAPI(gateway, router, registry, relay.BuildInfo{
		Tag:       Tag,
		Commit:    Commit,
		BuildTime: BuildTime,
	}, log)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go router.Run(ctx)
	go func() {
		if err := slackClient.Run(ctx, func(raw relay.RawMessage) {
			gateway.HandlePlatformMessage(ctx, raw)
		}); err != nil {
			log.Error().Err(err).Msg("Slack event stream stopped")
			stop()
		}
	}()

	go func() {
		log.Info().
			Str("addr", cfg.ListenAddr).
			Str("version", Tag).
			Str("commit", Commit).
			Msg("Relay listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	api.Shutdown(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown did not complete cleanly")
	}
}
