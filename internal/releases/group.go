// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package releases extracts a probable release-group tag from a release name.
// This is a best-effort heuristic; false positives and negatives are expected
// and acceptable downstream.
package releases

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/moistari/rls"
)

// groupPatterns is the ordered ladder of candidate extractors, most specific
// first. The first candidate surviving the false-positive filter wins.
var groupPatterns = []*regexp.Regexp{
	// Bracketed token at the end: [GroupName]
	regexp.MustCompile(`\[([^\]]+)\]$`),
	// Bracketed token anywhere: [GroupName]
	regexp.MustCompile(`\[([^\]]+)\]`),
	// Token after a trailing dash: -GroupName
	regexp.MustCompile(`-([A-Za-z0-9]+)$`),
	// Parenthesized token at the end: (GroupName)
	regexp.MustCompile(`\(([^)]+)\)$`),
	// Token after the final dot: .GroupName
	regexp.MustCompile(`\.([A-Za-z0-9]+)$`),
	// Trailing 2-15 character token after any separator (covers space-separated names).
	regexp.MustCompile(`[.\-\s]([A-Za-z0-9]{2,15})$`),
}

// falsePositives reject candidates that are metadata tokens, not group names.
// Precompiled once; matched against the lowercased candidate.
var falsePositives = []*regexp.Regexp{
	// Years
	regexp.MustCompile(`^\d{4}$`),
	// Resolutions
	regexp.MustCompile(`^(720p|1080p|2160p|4k)$`),
	// Video codecs
	regexp.MustCompile(`^(x264|x265|h264|h265|hevc|avc|xvid|divx)$`),
	// Audio codecs
	regexp.MustCompile(`^(aac|ac3|eac3|dts|dtshd|truehd|atmos|flac|mp3|opus)$`),
	// Sources
	regexp.MustCompile(`^(bluray|blu|bdrip|brrip|dvdrip|webrip|webdl|web|hdtv|pdtv|remux)$`),
	// Stopwords
	regexp.MustCompile(`^(the|and|of|in|to|for|with|by)$`),
	// Season/episode markers
	regexp.MustCompile(`^(s\d+|e\d+|ep\d+|season|episode|complete)$`),
	// Quality abbreviations
	regexp.MustCompile(`^(hd|sd|uhd|hdr|hdr10|sdr|dv|dovi|repack|proper|internal)$`),
}

var validCharset = regexp.MustCompile(`^[A-Za-z0-9\-_.]+$`)

// ExtractGroup returns the probable release-group tag embedded in name.
// rls parsing is tried first; the regex ladder covers names rls cannot make
// sense of. Returns ("", false) when no candidate survives the filter.
func ExtractGroup(name string) (string, bool) {
	if strings.TrimSpace(name) == "" {
		return "", false
	}

	if r := rls.ParseString(name); r.Group != "" && isLikelyGroup(r.Group) {
		return r.Group, true
	}

	stem := stripExtension(name)

	for _, pattern := range groupPatterns {
		match := pattern.FindStringSubmatch(stem)
		if match == nil {
			continue
		}
		candidate := strings.TrimSpace(match[1])
		if isLikelyGroup(candidate) {
			return candidate, true
		}
	}

	return "", false
}

// isLikelyGroup filters out obvious non-groups: metadata tokens, odd
// charsets, and very short tags that aren't all-uppercase.
func isLikelyGroup(candidate string) bool {
	if len(candidate) < 2 {
		return false
	}

	lower := strings.ToLower(candidate)
	for _, pattern := range falsePositives {
		if pattern.MatchString(lower) {
			return false
		}
	}

	if !validCharset.MatchString(candidate) {
		return false
	}

	if len(candidate) < 3 && candidate != strings.ToUpper(candidate) {
		return false
	}

	return true
}

var knownExtensions = map[string]struct{}{
	".mkv": {}, ".mp4": {}, ".avi": {}, ".m2ts": {}, ".ts": {}, ".wmv": {},
	".mov": {}, ".flv": {}, ".webm": {}, ".mpg": {}, ".mpeg": {}, ".m4v": {},
	".rar": {}, ".zip": {}, ".iso": {}, ".nfo": {}, ".srt": {}, ".torrent": {},
}

// stripExtension removes a known file extension. Unknown "extensions" stay:
// the trailing dot-token is often the group itself (Movie.2023.GROUP).
func stripExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := knownExtensions[ext]; ok {
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name
}
