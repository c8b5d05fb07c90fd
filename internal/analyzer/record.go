// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package analyzer

// Record is one torrent as tracked by the cross-seed database. The same
// logical content can appear under multiple info hashes; the store already
// collapses rows sharing a name into one Record.
type Record struct {
	Name        string
	InfoHashes  []string
	SavePath    string
	Category    string
	Files       []string
	RawTrackers []string
}

// Result is the per-content-group outcome of the missing-tracker analysis.
// Computed fresh on every run, never persisted.
type Result struct {
	Name            string
	SavePath        string
	Category        string
	InfoHashes      []string
	Duplicates      []string
	FoundTrackers   []string
	MissingTrackers []string
}

// Skipped is a data-quality diagnostic for a record excluded from the
// analysis. The run continues; callers decide whether to log.
type Skipped struct {
	Name   string
	Reason string
}
