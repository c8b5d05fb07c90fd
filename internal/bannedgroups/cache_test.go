// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package bannedgroups

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newCountingServer serves a single-page banned list and counts requests.
// The counter is atomic because Prefetch fetches concurrently.
func newCountingServer(t *testing.T, groups ...string) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var calls atomic.Int64
	items := make([]map[string]string, 0, len(groups))
	for _, group := range groups {
		items = append(items, map[string]string{"name": group})
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": items,
			"meta": map[string]string{"next_cursor": ""},
		})
	}))
	t.Cleanup(server.Close)

	return server, &calls
}

func newTestCache(t *testing.T, serverURL string) *Cache {
	t.Helper()

	client := NewClient(map[string]Endpoint{
		"AITHER": {URL: serverURL, APIKey: "secret"},
	})
	return NewCache(t.TempDir(), client)
}

func writeCacheFile(t *testing.T, dir, trackerCode, lastUpdated string, groups string) {
	t.Helper()

	data, err := json.Marshal(cacheFile{
		LastUpdated:  lastUpdated,
		BannedGroups: groups,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, trackerCode+"_banned_groups.json"), data, 0644))
}

func TestLoadFetchesAndPersists(t *testing.T) {
	server, calls := newCountingServer(t, "BadGroup", "WorseGroup")
	cache := newTestCache(t, server.URL)

	groups := cache.Load(context.Background(), "AITHER")
	assert.Equal(t, []string{"BadGroup", "WorseGroup"}, groups)
	assert.EqualValues(t, 1, calls.Load())

	// Memoized: a second Load must not hit the network.
	groups = cache.Load(context.Background(), "AITHER")
	assert.Equal(t, []string{"BadGroup", "WorseGroup"}, groups)
	assert.EqualValues(t, 1, calls.Load())

	// Persisted for the next run.
	data, err := os.ReadFile(cache.filePath("AITHER"))
	require.NoError(t, err)

	var file cacheFile
	require.NoError(t, json.Unmarshal(data, &file))
	assert.Equal(t, time.Now().Format(cacheDateFormat), file.LastUpdated)
	assert.Equal(t, "BadGroup, WorseGroup", file.BannedGroups)
}

func TestLoadUsesFreshFileWithoutNetwork(t *testing.T) {
	server, calls := newCountingServer(t, "ShouldNotBeFetched")
	cache := newTestCache(t, server.URL)

	writeCacheFile(t, cache.dir, "AITHER", time.Now().Format(cacheDateFormat), "CachedGroup, OtherGroup")

	groups := cache.Load(context.Background(), "AITHER")
	assert.Equal(t, []string{"CachedGroup", "OtherGroup"}, groups)
	assert.EqualValues(t, 0, calls.Load(), "a fresh cache file must short-circuit the fetch")
}

func TestLoadRefetchesStaleFile(t *testing.T) {
	server, calls := newCountingServer(t, "FreshGroup")
	cache := newTestCache(t, server.URL)

	yesterday := time.Now().Add(-48 * time.Hour).Format(cacheDateFormat)
	writeCacheFile(t, cache.dir, "AITHER", yesterday, "StaleGroup")

	groups := cache.Load(context.Background(), "AITHER")
	assert.Equal(t, []string{"FreshGroup"}, groups)
	assert.EqualValues(t, 1, calls.Load(), "a stale cache file must trigger a refetch")
}

func TestLoadMemoryEntryExpires(t *testing.T) {
	server, calls := newCountingServer(t, "SomeGroup")
	cache := newTestCache(t, server.URL)

	cache.Load(context.Background(), "AITHER")
	require.EqualValues(t, 1, calls.Load())

	// Jump the clock past the TTL; both the memory entry and the persisted
	// file are now stale.
	cache.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

	cache.Load(context.Background(), "AITHER")
	assert.EqualValues(t, 2, calls.Load())
}

func TestLoadFailsOpenOnFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("connection torn down")
	}))
	server.Close() // refuse all connections

	cache := newTestCache(t, server.URL)

	groups := cache.Load(context.Background(), "AITHER")
	assert.Empty(t, groups, "network failure must yield an empty list, not an error")
}

func TestLoadIgnoresCorruptCacheFile(t *testing.T) {
	server, calls := newCountingServer(t, "RealGroup")
	cache := newTestCache(t, server.URL)

	require.NoError(t, os.WriteFile(cache.filePath("AITHER"), []byte("{broken"), 0644))

	groups := cache.Load(context.Background(), "AITHER")
	assert.Equal(t, []string{"RealGroup"}, groups)
	assert.EqualValues(t, 1, calls.Load())
}

func TestLoadUnknownTrackerIsEmpty(t *testing.T) {
	cache := NewCache(t.TempDir(), NewClient(nil))

	assert.Empty(t, cache.Load(context.Background(), "AITHER"))
	assert.Empty(t, cache.Load(context.Background(), ""))
}

func TestPrefetchWarmsAllTrackers(t *testing.T) {
	server, calls := newCountingServer(t, "SharedGroup")

	client := NewClient(map[string]Endpoint{
		"AITHER": {URL: server.URL, APIKey: "secret"},
		"LST":    {URL: server.URL, APIKey: "secret"},
	})
	cache := NewCache(t.TempDir(), client)

	cache.Prefetch(context.Background(), []string{"AITHER", "LST"})
	assert.EqualValues(t, 2, calls.Load())

	// Loads after the warm-up are memory hits.
	cache.Load(context.Background(), "AITHER")
	cache.Load(context.Background(), "LST")
	assert.EqualValues(t, 2, calls.Load())
}
