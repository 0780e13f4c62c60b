// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package relay bridges a Slack workspace and browser chat clients.
//
// Each client authenticates with an opaque token, gets bound to exactly one
// Slack channel based on its email domain, and then exchanges JSON frames
// over a WebSocket: live messages fan out from Slack to the bound sessions,
// and client messages are posted back into the channel under the client's
// own identity. The package also carries the operational surface around
// that core: the channel mapping refresh loop, Prometheus metrics, and the
// admin/debug HTTP routes.
package relay
