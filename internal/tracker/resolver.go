// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tracker

import (
	"net/url"
	"sort"
	"strings"
)

// DefaultMinAliasLength is the shortest alias considered during the substring
// pass. Shorter codes ("LT", "PT") collide with unrelated hostnames, so they
// only match exactly.
const DefaultMinAliasLength = 4

// defaultAliases maps each canonical tracker code to its known identifiers:
// display names, bare domains, full hostnames and legacy announce prefixes.
// Compiled in; changes rarely and is small enough not to warrant external config.
var defaultAliases = map[string][]string{
	"ACM":    {"ACM", "eiga", "eiga.moi"},
	"AITHER": {"AITHER", "aither", "aither.cc"},
	"AL":     {"AL", "animelovers", "animelovers.club"},
	"ANT":    {"ANT", "anthelion", "anthelion.me"},
	"AR":     {"AR", "alpharatio", "alpharatio.cc"},
	"BHD":    {"BHD", "beyond-hd", "beyond-hd.me"},
	"BHDTV":  {"BHDTV", "bit-hdtv", "bit-hdtv.com"},
	"BLU":    {"BLU", "blutopia", "blutopia.cc"},
	"CBR":    {"CBR", "capybarabr", "capybarabr.com"},
	"DP":     {"DP", "darkpeers", "darkpeers.org"},
	"FL":     {"FL", "filelist", "FileList", "filelist.io"},
	"FNP":    {"FNP", "fearnopeer", "fearnopeer.com"},
	"FRIKI":  {"FRIKI", "frikibar", "frikibar.com"},
	"HDB":    {"HDB", "hdbits", "hdbits.org"},
	"HDT":    {"HDT", "hdts-announce", "hd-torrents.org"},
	"HHD":    {"HHD", "homiehelpdesk", "homiehelpdesk.net"},
	"HUNO":   {"HUNO", "hawke", "hawke.uno"},
	"ITT":    {"ITT", "itatorrents", "itatorrents.xyz"},
	"LCD":    {"LCD", "locadora", "locadora.cc"},
	"LST":    {"LST", "lst.gg"},
	"LT":     {"LT", "lat-team", "lat-team.com"},
	"MTV":    {"MTV", "morethantv", "morethantv.me"},
	"NBL":    {"NBL", "nebulance", "nebulance.io"},
	"OE":     {"OE", "onlyencodes", "onlyencodes.cc"},
	"OTW":    {"OTW", "oldtoons", "oldtoons.world"},
	"PSS":    {"PSS", "privatesilverscreen", "privatesilverscreen.cc"},
	"PT":     {"PT", "portugas", "portugas.org"},
	"PTER":   {"PTER", "pterclub", "pterclub.com"},
	"PTP":    {"PTP", "passthepopcorn", "passthepopcorn.me"},
	"PTT":    {"PTT", "polishtorrent", "polishtorrent.top"},
	"R4E":    {"R4E", "racing4everyone", "racing4everyone.eu"},
	"RAS":    {"RAS", "rastastugan", "rastastugan.org"},
	"RF":     {"RF", "reelflix", "reelflix.xyz"},
	"RTF":    {"RTF", "retroflix", "retroflix.club"},
	"SAM":    {"SAM", "samaritano", "samaritano.cc"},
	"SN":     {"SN", "swarmazon", "swarmazon.club"},
	"STC":    {"STC", "skipthecommericals", "skipthecommericals.xyz"},
	"THR":    {"THR", "torrenthr", "torrenthr.org"},
	"TIK":    {"TIK", "cinematik", "cinematik.net"},
	"TL":     {"TL", "torrentleech", "torrentleech.org"},
	"TOCA":   {"TOCA", "tocashare", "tocashare.biz"},
	"UHD":    {"UHD", "uhdshare"},
	"ULCX":   {"ULCX", "upload.cx"},
	"UTP":    {"UTP", "utp.to"},
	"YOINK":  {"YOINK", "yoinked", "yoinked.org"},
	"YUS":    {"YUS", "yu-scene", "yu-scene.net"},
}

// aliasEntry pairs a lowercased alias with its canonical code.
type aliasEntry struct {
	alias string
	code  string
}

// Resolver maps raw tracker identifiers (URLs, domains, display labels,
// announce GUID prefixes) to canonical tracker codes. Pure function over the
// static alias table; construct once per run.
type Resolver struct {
	exact map[string]string // lowercased alias -> code
	// substring candidates, sorted by alias length descending so the most
	// specific alias wins ("lat-team" before "team").
	substrings     []aliasEntry
	minAliasLength int
}

// Option customizes resolver construction.
type Option func(*options)

type options struct {
	aliases        map[string][]string
	minAliasLength int
}

// WithAliases replaces the compiled-in alias table.
func WithAliases(aliases map[string][]string) Option {
	return func(o *options) {
		o.aliases = aliases
	}
}

// WithMinAliasLength overrides the substring-match minimum alias length.
func WithMinAliasLength(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.minAliasLength = n
		}
	}
}

// NewResolver builds a resolver from the alias table.
func NewResolver(opts ...Option) *Resolver {
	o := &options{
		aliases:        defaultAliases,
		minAliasLength: DefaultMinAliasLength,
	}
	for _, opt := range opts {
		opt(o)
	}

	r := &Resolver{
		exact:          make(map[string]string),
		minAliasLength: o.minAliasLength,
	}

	for code, aliases := range o.aliases {
		for _, alias := range aliases {
			lower := strings.ToLower(alias)
			r.exact[lower] = code
			if len(lower) >= o.minAliasLength {
				r.substrings = append(r.substrings, aliasEntry{alias: lower, code: code})
			}
		}
	}

	// Longer aliases first to reduce false positives from short-substring
	// collisions; ties break alphabetically for determinism.
	sort.Slice(r.substrings, func(i, j int) bool {
		if len(r.substrings[i].alias) != len(r.substrings[j].alias) {
			return len(r.substrings[i].alias) > len(r.substrings[j].alias)
		}
		return r.substrings[i].alias < r.substrings[j].alias
	})

	return r
}

// Codes returns all canonical codes known to the resolver, sorted.
func (r *Resolver) Codes() []string {
	seen := make(map[string]struct{})
	for _, code := range r.exact {
		seen[code] = struct{}{}
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Resolve maps a raw tracker identifier to its canonical code. Returns
// ("", false) for unknown identifiers; callers must treat that as "unknown
// tracker" and exclude it rather than fail.
func (r *Resolver) Resolve(raw string) (string, bool) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", false
	}

	name = stripScheme(name)
	name = strings.TrimSuffix(name, " (API)")

	// Legacy FileList announce prefix.
	if strings.HasPrefix(name, "FileList-") {
		return "FL", true
	}

	if host := extractHost(name); host != "" {
		name = host
	}
	name = strings.TrimPrefix(name, "www.")

	lower := strings.ToLower(name)

	if code, ok := r.exact[lower]; ok {
		return code, true
	}

	for _, entry := range r.substrings {
		if strings.Contains(lower, entry.alias) {
			return entry.code, true
		}
		// Reverse containment only for inputs long enough to be meaningful.
		if len(lower) >= r.minAliasLength && strings.Contains(entry.alias, lower) {
			return entry.code, true
		}
	}

	return "", false
}

func stripScheme(name string) string {
	for _, scheme := range []string{"https://", "http://", "udp://"} {
		if strings.HasPrefix(name, scheme) {
			return strings.TrimPrefix(name, scheme)
		}
	}
	return name
}

// extractHost pulls the host component out of URL-shaped input
// ("blutopia.cc/announce/abcd" -> "blutopia.cc"). Returns "" when the input
// doesn't look like a URL path.
func extractHost(name string) string {
	if !strings.ContainsAny(name, "/") {
		return ""
	}
	u, err := url.Parse("//" + name)
	if err != nil || u.Host == "" {
		// Fall back to everything before the first slash.
		if idx := strings.IndexByte(name, '/'); idx > 0 {
			return name[:idx]
		}
		return ""
	}
	return u.Hostname()
}

// GUIDLabel extracts the tracker label from a dotted GUID-style identifier
// as logged by the decisions table ("torrentleech.something" -> "torrentleech").
func GUIDLabel(guid string) string {
	if label, _, ok := strings.Cut(guid, "."); ok {
		return label
	}
	return guid
}
