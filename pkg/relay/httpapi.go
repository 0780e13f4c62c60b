// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// BuildInfo identifies the running binary. Populated via ldflags at build
// time.
type BuildInfo struct {
	Tag       string `json:"tag"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
}

// API is the relay's HTTP surface: the WebSocket endpoint plus the
// operational routes (health, metrics, mapping refresh, admin dashboard,
// debug snapshot).
type API struct {
	gateway  *Gateway
	router   *ChannelRouter
	registry *Registry
	build    BuildInfo
	log      zerolog.Logger

	// updateLimiter throttles external mapping refresh triggers so a
	// misbehaving webhook cannot hammer the mapping source.
	updateLimiter *rate.Limiter
}

// NewAPI wires the HTTP surface.
func NewAPI(gateway *Gateway, router *ChannelRouter, registry *Registry, build BuildInfo, log zerolog.Logger) *API {
	return &API{
		gateway:       gateway,
		router:        router,
		registry:      registry,
		build:         build,
		log:           log.With().Str("component", "http_api").Logger(),
		updateLimiter: rate.NewLimiter(rate.Limit(1), 3),
	}
}

// Routes returns the relay's router, ready to serve.
func (a *API) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", a.gateway.HandleWS)
	r.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/update", a.handleUpdate).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/admin", a.handleAdmin).Methods(http.MethodGet)
	r.HandleFunc("/debug", a.handleDebug).Methods(http.MethodGet)
	return r
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("X-Relay-Version", a.build.Tag)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Franklin Chat relay is running!\n"))
}

// handleUpdate forces an immediate channel mapping refresh. The mapping
// sheet calls this on edit so changes apply without waiting for the next
// periodic refresh.
func (a *API) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if !a.updateLimiter.Allow() {
		http.Error(w, "too many refresh requests", http.StatusTooManyRequests)
		return
	}
	if err := a.router.Refresh(r.Context()); err != nil {
		a.log.Error().Err(err).Msg("Triggered mapping refresh failed")
		http.Error(w, "mapping refresh failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"domains": a.router.Size(),
	})
}

type debugSnapshot struct {
	Build    BuildInfo         `json:"build"`
	Sessions []debugSession    `json:"sessions"`
	Mapping  map[string]string `json:"mapping"`
}

type debugSession struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	ChannelID string `json:"channelId"`
}

func (a *API) snapshot() debugSnapshot {
	sessions := a.registry.All()
	snap := debugSnapshot{
		Build:    a.build,
		Sessions: make([]debugSession, 0, len(sessions)),
		Mapping:  a.router.Snapshot(),
	}
	for _, s := range sessions {
		snap.Sessions = append(snap.Sessions, debugSession{
			ID:        s.ID,
			Email:     s.Email,
			ChannelID: s.ChannelID,
		})
	}
	return snap
}

func (a *API) handleDebug(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.snapshot())
}

var adminTemplate = template.Must(template.New("admin").Parse(`<!DOCTYPE html>
<html>
<head><title>Relay Admin</title></head>
<body>
<h1>Relay Admin</h1>
<p>Version {{.Build.Tag}} ({{.Build.Commit}}) built {{.Build.BuildTime}}</p>
{{if .Notice}}<p><em>{{.Notice}}</em></p>{{end}}
<h2>Sessions ({{len .Sessions}})</h2>
<table border="1">
<tr><th>ID</th><th>Email</th><th>Channel</th></tr>
{{range .Sessions}}<tr><td>{{.ID}}</td><td>{{.Email}}</td><td>{{.ChannelID}}</td></tr>{{end}}
</table>
<h2>Channel mapping ({{len .Mapping}} domains)</h2>
<table border="1">
<tr><th>Domain</th><th>Channel</th></tr>
{{range $domain, $channel := .Mapping}}<tr><td>{{$domain}}</td><td>{{$channel}}</td></tr>{{end}}
</table>
<p><a href="/admin?command=updateChannelMapping">Refresh channel mapping</a></p>
</body>
</html>
`))

type adminPage struct {
	debugSnapshot
	Notice string
}

// handleAdmin renders the operator dashboard. The single supported command,
// updateChannelMapping, refreshes the mapping and re-renders the page.
func (a *API) handleAdmin(w http.ResponseWriter, r *http.Request) {
	page := adminPage{}
	if r.URL.Query().Get("command") == "updateChannelMapping" {
		if err := a.router.Refresh(r.Context()); err != nil {
			a.log.Error().Err(err).Msg("Admin mapping refresh failed")
			page.Notice = "Channel mapping refresh failed: " + err.Error()
		} else {
			page.Notice = "Channel mapping refreshed."
		}
	}
	page.debugSnapshot = a.snapshot()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := adminTemplate.Execute(w, page); err != nil {
		a.log.Error().Err(err).Msg("Admin template render failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Shutdown closes every live session so the HTTP server's graceful
// shutdown is not held open by idle sockets.
func (a *API) Shutdown(_ context.Context) {
	for _, s := range a.registry.All() {
		s.Close()
	}
}
