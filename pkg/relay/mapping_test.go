// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func TestHTTPMappingSourceFetch(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":[
			{"Email domain":"acme.com","Slack channel ID":"C-ACME"},
			{"Email domain":"*","Slack channel ID":"C-WILDCARD"}
		]}`))
	}))
	defer srv.Close()

	source := NewHTTPMappingSource(srv.URL, zerolog.Nop())
	rows, err := source.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	want := []MappingRow{
		{Domain: "acme.com", ChannelID: "C-ACME"},
		{Domain: "*", ChannelID: "C-WILDCARD"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows: got %v, want %v", rows, want)
	}
}

func TestHTTPMappingSourceFetch_EmptyData(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	rows, err := NewHTTPMappingSource(srv.URL, zerolog.Nop()).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch of empty mapping should succeed: %v", err)
	}
	if rows != nil {
		t.Errorf("rows: got %v, want nil", rows)
	}
}

func TestHTTPMappingSourceFetch_ServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := NewHTTPMappingSource(srv.URL, zerolog.Nop()).Fetch(context.Background()); err == nil {
		t.Error("Fetch should fail on a non-200 response")
	}
}

func TestHTTPMappingSourceFetch_BadPayload(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	if _, err := NewHTTPMappingSource(srv.URL, zerolog.Nop()).Fetch(context.Background()); err == nil {
		t.Error("Fetch should fail on a malformed payload")
	}
}
