// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package bannedgroups

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/cross-pollinator/internal/analyzer"
	"github.com/autobrr/cross-pollinator/internal/releases"
)

// BanReason records why a release was rejected for one tracker.
type BanReason struct {
	Tracker string
	Group   string
	Reason  string
}

// BannedResult is an analyzer result removed by the banned-group filter,
// with the reasons retained for audit output.
type BannedResult struct {
	analyzer.Result
	Reasons []BanReason
}

// Stats summarises one filter pass.
type Stats struct {
	TotalChecked int
	PassedCount  int
	BannedCount  int
	ByTracker    map[string]int
	ByGroup      map[string]int
}

// Summary renders a one-line human summary of the pass.
func (s Stats) Summary() string {
	if s.TotalChecked == 0 {
		return "No torrents to filter"
	}

	percentage := float64(s.BannedCount) / float64(s.TotalChecked) * 100
	summary := fmt.Sprintf("Filtered %d/%d torrents (%.1f%%) with banned release groups",
		s.BannedCount, s.TotalChecked, percentage)

	var topGroup string
	var topCount int
	for group, count := range s.ByGroup {
		if count > topCount || (count == topCount && group < topGroup) {
			topGroup, topCount = group, count
		}
	}
	if topGroup != "" {
		summary += fmt.Sprintf(". Most common: %s (%d torrents)", topGroup, topCount)
	}
	return summary
}

// Checker cross-checks extracted release groups against per-tracker banned
// lists loaded through the cache.
type Checker struct {
	cache *Cache
}

func NewChecker(cache *Cache) *Checker {
	return &Checker{cache: cache}
}

// IsBanned reports whether the release name carries a group banned on the
// given tracker. The group match is an exact case-insensitive string compare.
func (c *Checker) IsBanned(ctx context.Context, name, trackerCode string) (bool, string, string) {
	if name == "" || trackerCode == "" {
		return false, "", ""
	}

	group, ok := releases.ExtractGroup(name)
	if !ok {
		return false, "", "No release group found"
	}

	banned := c.cache.Load(ctx, trackerCode)
	if len(banned) == 0 {
		return false, group, "No banned groups data available"
	}

	for _, bannedGroup := range banned {
		if strings.EqualFold(bannedGroup, group) {
			return true, group, fmt.Sprintf("Group '%s' is banned on %s", group, trackerCode)
		}
	}

	return false, group, ""
}

// FilterBanned partitions results into those safe to upload and those banned
// on at least one tracker they are missing from. Banned-list refreshes for
// every involved tracker are warmed concurrently up front.
func (c *Checker) FilterBanned(ctx context.Context, results []analyzer.Result) ([]analyzer.Result, []BannedResult, Stats) {
	stats := Stats{
		TotalChecked: len(results),
		ByTracker:    make(map[string]int),
		ByGroup:      make(map[string]int),
	}

	if len(results) == 0 {
		return results, nil, stats
	}

	trackerSet := make(map[string]struct{})
	for _, result := range results {
		for _, code := range result.MissingTrackers {
			trackerSet[code] = struct{}{}
		}
	}
	codes := make([]string, 0, len(trackerSet))
	for code := range trackerSet {
		codes = append(codes, code)
		// Zero entries distinguish "checked, clean" from "never checked"
		// in audit output.
		stats.ByTracker[code] = 0
	}
	c.cache.Prefetch(ctx, codes)

	var passed []analyzer.Result
	var banned []BannedResult

	for _, result := range results {
		var reasons []BanReason

		for _, code := range result.MissingTrackers {
			isBanned, group, reason := c.IsBanned(ctx, result.Name, code)
			if !isBanned {
				continue
			}

			reasons = append(reasons, BanReason{Tracker: code, Group: group, Reason: reason})
			stats.ByTracker[code]++
			stats.ByGroup[group]++
		}

		if len(reasons) > 0 {
			stats.BannedCount++
			banned = append(banned, BannedResult{Result: result, Reasons: reasons})
			log.Debug().Str("name", result.Name).Int("trackers", len(reasons)).Msg("Release group banned; removed from upload set")
			continue
		}

		stats.PassedCount++
		passed = append(passed, result)
	}

	return passed, banned, stats
}
