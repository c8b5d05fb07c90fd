// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package analyzer

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/moistari/rls"
)

var videoExtensions = map[string]struct{}{
	".mkv":  {},
	".mp4":  {},
	".avi":  {},
	".m2ts": {},
	".ts":   {},
	".wmv":  {},
	".mov":  {},
	".flv":  {},
	".webm": {},
	".mpg":  {},
	".mpeg": {},
	".m4v":  {},
	".vob":  {},
}

var (
	seasonEpisodePattern = regexp.MustCompile(`(?i)\bS\d{1,2}E\d{1,4}\b`)
	episodeOnlyPattern   = regexp.MustCompile(`(?i)\b(?:EP?\.?\s?\d{1,4}|Episode[ ._]\d{1,4})\b`)
	dateStampPattern     = regexp.MustCompile(`\b\d{4}[ ._-]\d{2}[ ._-]\d{2}\b`)
)

func qualifies(record Record, opts Options) bool {
	if opts.VideoOnly && !isVideoContent(record) {
		return false
	}

	if opts.ExcludeSingleEpisodes && isSingleEpisode(record.Name) {
		return false
	}

	if opts.ExcludeFolders && isFolderRelease(record) {
		return false
	}

	if len(opts.Categories) > 0 && !categoryAllowed(record.Category, opts.Categories) {
		return false
	}

	return matchesPersonalFilters(record.Name, opts.IncludeFilters, opts.ExcludeFilters)
}

// isVideoContent accepts records with a recognized video extension on the
// name or any member file, or with structural evidence of a multi-episode
// season bundle (more than one SxxExx file inside the release).
func isVideoContent(record Record) bool {
	if hasVideoExtension(record.Name) {
		return true
	}

	episodes := 0
	for _, file := range record.Files {
		if hasVideoExtension(file) {
			return true
		}
		if seasonEpisodePattern.MatchString(file) {
			episodes++
			if episodes > 1 {
				return true
			}
		}
	}

	return false
}

func hasVideoExtension(name string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// isSingleEpisode detects individual-episode releases: SxxExx / EPn /
// "Episode n" markers or bare date stamps. Season packs (a season with no
// episode number) do not count.
func isSingleEpisode(name string) bool {
	r := rls.ParseString(name)
	if r.Episode > 0 {
		return true
	}
	if r.Month > 0 && r.Day > 0 {
		return true
	}

	return seasonEpisodePattern.MatchString(name) ||
		episodeOnlyPattern.MatchString(name) ||
		dateStampPattern.MatchString(name)
}

// isFolderRelease reports whether the record looks like a directory-style
// release: no recognized file extension on the name itself. Dots inside
// release names are separators, so filepath.Ext alone is not enough.
func isFolderRelease(record Record) bool {
	return stripExtension(record.Name) == record.Name
}

func categoryAllowed(category string, allowed []string) bool {
	for _, c := range allowed {
		if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(category)) {
			return true
		}
	}
	return false
}

// matchesPersonalFilters applies the user's substring filters against the
// release name: every include filter must be present, no exclude filter may be.
func matchesPersonalFilters(name string, includes, excludes []string) bool {
	lower := strings.ToLower(name)

	for _, inc := range includes {
		inc = strings.ToLower(strings.TrimSpace(inc))
		if inc == "" {
			continue
		}
		if !strings.Contains(lower, inc) {
			return false
		}
	}

	for _, exc := range excludes {
		exc = strings.ToLower(strings.TrimSpace(exc))
		if exc == "" {
			continue
		}
		if strings.Contains(lower, exc) {
			return false
		}
	}

	return true
}

func stripExtension(name string) string {
	ext := filepath.Ext(name)
	if _, ok := videoExtensions[strings.ToLower(ext)]; ok {
		return strings.TrimSuffix(name, ext)
	}
	// Unknown extensions stay: dots inside release names are separators, not
	// extensions.
	switch strings.ToLower(ext) {
	case ".rar", ".zip", ".iso", ".img", ".nfo", ".srt", ".sub", ".torrent":
		return strings.TrimSuffix(name, ext)
	}
	return name
}
