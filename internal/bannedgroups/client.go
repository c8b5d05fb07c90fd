// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package bannedgroups

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/cross-pollinator/internal/buildinfo"
)

const (
	perPage        = 100
	requestTimeout = 30 * time.Second
)

// defaultEndpoints are the known banned-group APIs for trackers that publish
// one. Config can override the URL or add endpoints for other trackers.
var defaultEndpoints = map[string]string{
	"AITHER": "https://aither.cc/api/blacklists/releasegroups",
	"LST":    "https://lst.gg/api/bannedReleaseGroups",
}

// Endpoint is one tracker's banned-group API.
type Endpoint struct {
	URL    string
	APIKey string
}

// Client fetches per-tracker banned release-group lists. Every request has
// its own timeout so one hanging tracker API cannot stall the others.
type Client struct {
	httpClient *http.Client
	endpoints  map[string]Endpoint
}

// NewClient builds a client for the given tracker endpoints (code -> endpoint).
// Endpoints with an empty URL fall back to the compiled-in default when one
// exists; entries with no URL at all are dropped.
func NewClient(endpoints map[string]Endpoint) *Client {
	resolved := make(map[string]Endpoint, len(endpoints))
	for code, endpoint := range endpoints {
		code = strings.ToUpper(strings.TrimSpace(code))
		if endpoint.URL == "" {
			endpoint.URL = defaultEndpoints[code]
		}
		if endpoint.URL == "" || endpoint.APIKey == "" {
			continue
		}
		resolved[code] = endpoint
	}

	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		endpoints:  resolved,
	}
}

// Trackers returns the codes this client can fetch lists for.
func (c *Client) Trackers() []string {
	codes := make([]string, 0, len(c.endpoints))
	for code := range c.endpoints {
		codes = append(codes, code)
	}
	return codes
}

// pagedResponse is the cursor-paginated body shape; some endpoints instead
// return a bare array of items.
type pagedResponse struct {
	Data []bannedItem `json:"data"`
	Meta struct {
		NextCursor string `json:"next_cursor"`
	} `json:"meta"`
}

type bannedItem struct {
	Name string `json:"name"`
}

// Fetch collects all pages of a tracker's banned-group list. A non-success
// status stops pagination and is reported as a warning by the caller; pages
// collected so far are still returned.
func (c *Client) Fetch(ctx context.Context, trackerCode string) ([]string, error) {
	endpoint, ok := c.endpoints[strings.ToUpper(trackerCode)]
	if !ok {
		return nil, fmt.Errorf("no banned-groups endpoint configured for tracker %s", trackerCode)
	}

	var groups []string
	cursor := ""

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("build banned-groups request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+endpoint.APIKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", buildinfo.UserAgent)

		query := req.URL.Query()
		query.Set("per_page", fmt.Sprintf("%d", perPage))
		if cursor != "" {
			query.Set("cursor", cursor)
		}
		req.URL.RawQuery = query.Encode()

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("banned-groups request failed: %w", err)
		}

		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			log.Warn().Str("tracker", trackerCode).Msg("Tracker returned 404 for banned-groups API")
			return groups, nil
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			log.Warn().Str("tracker", trackerCode).Int("status", resp.StatusCode).Msg("Unexpected status from banned-groups API")
			return groups, nil
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read banned-groups response: %w", err)
		}

		page, nextCursor, err := parsePage(body)
		if err != nil {
			return nil, fmt.Errorf("parse banned-groups response for %s: %w", trackerCode, err)
		}
		groups = append(groups, page...)

		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}

	return groups, nil
}

// parsePage handles both response shapes: a bare array (single page) or a
// {data, meta.next_cursor} envelope.
func parsePage(body []byte) ([]string, string, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var items []bannedItem
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, "", err
		}
		return itemNames(items), "", nil
	}

	var page pagedResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, "", err
	}
	return itemNames(page.Data), page.Meta.NextCursor, nil
}

func itemNames(items []bannedItem) []string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		if item.Name != "" {
			names = append(names, item.Name)
		}
	}
	return names
}
