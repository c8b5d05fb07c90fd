// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package bannedgroups

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	cacheTTL           = 24 * time.Hour
	cacheDateFormat    = "2006-01-02"
	maxConcurrentFetch = 4
)

// cacheFile is the persisted per-tracker format. banned_groups keeps the
// legacy comma-joined field alongside raw_data for compatibility with other
// tooling reading these files.
type cacheFile struct {
	LastUpdated  string       `json:"last_updated"`
	BannedGroups string       `json:"banned_groups"`
	RawData      []bannedItem `json:"raw_data"`
}

type cacheEntry struct {
	groups    []string
	fetchedAt time.Time
}

// Cache provides per-tracker banned-group lists with a 24 hour staleness
// policy: memory first, then the persisted file, then a fresh fetch. Every
// failure path fails open with an empty list so a broken remote API never
// blocks the analyzer. Construct one per run; no hidden process-wide state.
type Cache struct {
	dir    string
	client *Client

	mu  sync.Mutex
	mem map[string]cacheEntry

	// now is swappable for staleness tests.
	now func() time.Time
}

func NewCache(dir string, client *Client) *Cache {
	return &Cache{
		dir:    dir,
		client: client,
		mem:    make(map[string]cacheEntry),
		now:    time.Now,
	}
}

// Load returns the banned-group list for a tracker, refreshing it when stale.
// Never returns an error: a failed refresh yields an empty list.
func (c *Cache) Load(ctx context.Context, trackerCode string) []string {
	trackerCode = strings.ToUpper(strings.TrimSpace(trackerCode))
	if trackerCode == "" {
		return nil
	}

	c.mu.Lock()
	entry, ok := c.mem[trackerCode]
	c.mu.Unlock()
	if ok && c.now().Sub(entry.fetchedAt) < cacheTTL {
		return entry.groups
	}

	if groups, ok := c.loadFile(trackerCode); ok {
		c.store(trackerCode, groups)
		return groups
	}

	groups, err := c.client.Fetch(ctx, trackerCode)
	if err != nil {
		log.Warn().Err(err).Str("tracker", trackerCode).Msg("Could not fetch banned groups; proceeding without filtering for this tracker")
		return nil
	}

	if len(groups) > 0 {
		if err := c.saveFile(trackerCode, groups); err != nil {
			log.Warn().Err(err).Str("tracker", trackerCode).Msg("Could not persist banned groups cache")
		}
	}
	c.store(trackerCode, groups)
	return groups
}

// Prefetch warms the cache for several trackers concurrently. Fetches are
// independent; a slow or failing tracker does not hold up the others.
func (c *Cache) Prefetch(ctx context.Context, trackerCodes []string) {
	sem := make(chan struct{}, maxConcurrentFetch)
	var wg sync.WaitGroup

	for _, code := range trackerCodes {
		wg.Add(1)
		go func(trackerCode string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			c.Load(ctx, trackerCode)
		}(code)
	}

	wg.Wait()
}

func (c *Cache) store(trackerCode string, groups []string) {
	c.mu.Lock()
	c.mem[trackerCode] = cacheEntry{groups: groups, fetchedAt: c.now()}
	c.mu.Unlock()
}

func (c *Cache) filePath(trackerCode string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s_banned_groups.json", trackerCode))
}

// loadFile reads the persisted list if present and under 24 hours old.
func (c *Cache) loadFile(trackerCode string) ([]string, bool) {
	data, err := os.ReadFile(c.filePath(trackerCode))
	if err != nil {
		return nil, false
	}

	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		log.Warn().Err(err).Str("tracker", trackerCode).Msg("Could not parse banned groups cache file")
		return nil, false
	}

	lastUpdated, err := time.Parse(cacheDateFormat, file.LastUpdated)
	if err != nil {
		log.Warn().Err(err).Str("tracker", trackerCode).Msg("Banned groups cache file has invalid last_updated date")
		return nil, false
	}
	if c.now().Sub(lastUpdated) >= cacheTTL {
		return nil, false
	}

	var groups []string
	if file.BannedGroups != "" {
		for _, group := range strings.Split(file.BannedGroups, ",") {
			if group = strings.TrimSpace(group); group != "" {
				groups = append(groups, group)
			}
		}
	}
	return groups, true
}

func (c *Cache) saveFile(trackerCode string, groups []string) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("failed to create banned groups cache directory: %w", err)
	}

	items := make([]bannedItem, 0, len(groups))
	for _, group := range groups {
		items = append(items, bannedItem{Name: group})
	}

	file := cacheFile{
		LastUpdated:  c.now().Format(cacheDateFormat),
		BannedGroups: strings.Join(groups, ", "),
		RawData:      items,
	}

	data, err := json.MarshalIndent(file, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal banned groups cache: %w", err)
	}

	if err := os.WriteFile(c.filePath(trackerCode), data, 0644); err != nil {
		return fmt.Errorf("failed to write banned groups cache file: %w", err)
	}
	return nil
}
