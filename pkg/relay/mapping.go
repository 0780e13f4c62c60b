// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPMappingSource fetches the domain-to-channel mapping from a JSON
// endpoint. The expected payload mirrors the sheet-export service the
// mapping is maintained in:
//
//	{"data": [{"Email domain": "foo.com", "Slack channel ID": "C1"}, ...]}
type HTTPMappingSource struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

// NewHTTPMappingSource creates a mapping source backed by the given URL.
func NewHTTPMappingSource(url string, log zerolog.Logger) *HTTPMappingSource {
	return &HTTPMappingSource{
		url: url,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("component", "mapping_source").Logger(),
	}
}

type mappingPayload struct {
	Data []mappingPayloadRow `json:"data"`
}

type mappingPayloadRow struct {
	Domain    string `json:"Email domain"`
	ChannelID string `json:"Slack channel ID"`
}

// Fetch implements MappingSource. An empty data array is a valid, empty
// mapping.
func (s *HTTPMappingSource) Fetch(ctx context.Context) ([]MappingRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build mapping request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch channel mapping: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mapping endpoint returned status %s", resp.Status)
	}

	var payload mappingPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode mapping payload: %w", err)
	}

	if len(payload.Data) == 0 {
		s.log.Warn().Msg("Mapping endpoint returned no rows")
		return nil, nil
	}

	rows := make([]MappingRow, 0, len(payload.Data))
	for _, row := range payload.Data {
		rows = append(rows, MappingRow{Domain: row.Domain, ChannelID: row.ChannelID})
	}
	return rows, nil
}
