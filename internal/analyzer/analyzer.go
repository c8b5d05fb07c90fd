// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package analyzer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/moistari/rls"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/cross-pollinator/internal/tracker"
)

// Options control which records participate in the analysis. The zero value
// is permissive: everything qualifies.
type Options struct {
	VideoOnly             bool
	ExcludeSingleEpisodes bool
	ExcludeFolders        bool
	Categories            []string
	IncludeFilters        []string
	ExcludeFilters        []string

	// RequireSavePath drops results without a resolvable path. Set when the
	// output feeds upload-command generation.
	RequireSavePath bool
}

// Analyzer computes per-content missing-tracker sets.
type Analyzer struct {
	resolver *tracker.Resolver
}

func New(resolver *tracker.Resolver) *Analyzer {
	return &Analyzer{resolver: resolver}
}

// contentGroup coalesces records believed to represent the same underlying
// release. The found-tracker union only grows as members are added.
type contentGroup struct {
	representative Record
	members        []string
	infoHashes     map[string]struct{}
	foundCodes     map[string]struct{}
}

// ConfiguredCodes resolves raw tracker identifiers into the configured
// canonical-code universe, applying optional allow/deny narrowing.
// Unresolvable identifiers are dropped.
func (a *Analyzer) ConfiguredCodes(raw []string, allow, deny []string) []string {
	allowSet := toUpperSet(allow)
	denySet := toUpperSet(deny)

	seen := make(map[string]struct{})
	for _, identifier := range raw {
		code, ok := a.resolver.Resolve(identifier)
		if !ok {
			log.Debug().Str("tracker", identifier).Msg("Skipping unknown tracker identifier")
			continue
		}
		if len(allowSet) > 0 {
			if _, ok := allowSet[code]; !ok {
				continue
			}
		}
		if _, ok := denySet[code]; ok {
			continue
		}
		seen[code] = struct{}{}
	}

	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Analyze resolves each record's tracker membership, coalesces duplicate
// content, and computes missing/found sets against the configured universe.
// Output is sorted case-insensitively by name; running twice over unchanged
// input yields identical results.
func (a *Analyzer) Analyze(records []Record, configured []string, opts Options) ([]Result, []Skipped) {
	var skipped []Skipped

	configuredSet := make(map[string]struct{}, len(configured))
	for _, code := range configured {
		configuredSet[code] = struct{}{}
	}

	groups := make(map[string]*contentGroup)

	for _, record := range records {
		if record.Name == "" {
			skipped = append(skipped, Skipped{Reason: "record has no name"})
			continue
		}

		if !qualifies(record, opts) {
			continue
		}

		foundCodes := make(map[string]struct{})
		for _, raw := range record.RawTrackers {
			if code, ok := a.resolver.Resolve(raw); ok {
				foundCodes[code] = struct{}{}
			}
		}

		key := contentKey(record.Name)
		group, ok := groups[key]
		if !ok {
			group = &contentGroup{
				representative: record,
				infoHashes:     make(map[string]struct{}),
				foundCodes:     make(map[string]struct{}),
			}
			groups[key] = group
		}

		// Deterministic representative regardless of record order. The
		// outgoing representative's path and category survive the swap so a
		// later member with a smaller name cannot lose them.
		if ok && strings.ToLower(record.Name) < strings.ToLower(group.representative.Name) {
			previous := group.representative
			group.members = append(group.members, previous.Name)
			group.representative = record
			if group.representative.SavePath == "" {
				group.representative.SavePath = previous.SavePath
			}
			if group.representative.Category == "" {
				group.representative.Category = previous.Category
			}
		} else if ok {
			group.members = append(group.members, record.Name)
		}

		if group.representative.SavePath == "" && record.SavePath != "" {
			group.representative.SavePath = record.SavePath
		}
		if group.representative.Category == "" && record.Category != "" {
			group.representative.Category = record.Category
		}

		for _, hash := range record.InfoHashes {
			group.infoHashes[hash] = struct{}{}
		}
		for code := range foundCodes {
			group.foundCodes[code] = struct{}{}
		}
	}

	var results []Result
	for _, group := range groups {
		missing := subtract(configuredSet, group.foundCodes)
		if len(missing) == 0 {
			continue
		}

		if opts.RequireSavePath && group.representative.SavePath == "" {
			skipped = append(skipped, Skipped{
				Name:   group.representative.Name,
				Reason: "no resolvable save path for upload command",
			})
			continue
		}

		results = append(results, Result{
			Name:            group.representative.Name,
			SavePath:        group.representative.SavePath,
			Category:        group.representative.Category,
			InfoHashes:      sortedKeys(group.infoHashes),
			Duplicates:      sortedStrings(group.members),
			FoundTrackers:   intersect(group.foundCodes, configuredSet),
			MissingTrackers: missing,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return strings.ToLower(results[i].Name) < strings.ToLower(results[j].Name)
	})

	return results, skipped
}

// titleNormalizer strips punctuation that differs between space-separated and
// dot-separated release name formats.
var titleNormalizer = strings.NewReplacer(
	"'", "",
	"’", "", // right single quote
	"‘", "", // left single quote
	"`", "",
	":", "",
	"-", " ",
	".", " ",
	"_", " ",
)

func normalizeTitle(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	title = titleNormalizer.Replace(title)
	return strings.Join(strings.Fields(title), " ")
}

// contentKey derives the duplicate-detection key for a release name. Parsed
// metadata (title, year, date, season, episode) identifies the content while
// quality, source, codec and group tags are deliberately excluded so encodes
// of the same release coalesce.
func contentKey(name string) string {
	r := rls.ParseString(name)
	title := normalizeTitle(r.Title)
	if title == "" {
		return fallbackKey(name)
	}
	return fmt.Sprintf("%s|%d|%d|%d|%d|%d", title, r.Year, r.Month, r.Day, r.Series, r.Episode)
}

var (
	qualityTokens = regexp.MustCompile(`(?i)\b(\d{3,4}p|4k|uhd|blu-?ray|bd-?rip|web-?dl|web-?rip|dvd-?rip|hdtv|remux|x264|x265|h\.?264|h\.?265|hevc|avc|xvid|aac|ac3|eac3|dd[p+]?(\d\.\d)?|dts(-?hd)?(-?ma)?|truehd|atmos|flac|\d\.\d|hdr10?(\+)?|dv|dovi|proper|repack|internal|extended|remastered)\b`)
	separators    = regexp.MustCompile(`[._\-\s]+`)
	trailingGroup = regexp.MustCompile(`-[A-Za-z0-9]+$`)
)

// fallbackKey is the manual token-stripping path for names rls cannot parse:
// drop the extension and trailing group, blank known quality tokens, collapse
// separators, lower-case.
func fallbackKey(name string) string {
	base := stripExtension(name)
	base = trailingGroup.ReplaceAllString(base, "")
	base = qualityTokens.ReplaceAllString(base, " ")
	base = separators.ReplaceAllString(base, " ")
	return strings.ToLower(strings.TrimSpace(base))
}

func subtract(universe map[string]struct{}, found map[string]struct{}) []string {
	var out []string
	for code := range universe {
		if _, ok := found[code]; !ok {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out
}

func intersect(found map[string]struct{}, universe map[string]struct{}) []string {
	var out []string
	for code := range found {
		if _, ok := universe[code]; ok {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}

func toUpperSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}
