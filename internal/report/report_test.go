// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Hellseher/go-shellquote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/cross-pollinator/internal/analyzer"
	"github.com/autobrr/cross-pollinator/internal/bannedgroups"
)

func sampleResults() []analyzer.Result {
	return []analyzer.Result{
		{
			Name:            "Alpha.Movie.2020.1080p.BluRay.x264-AAA",
			SavePath:        "/downloads/movies",
			FoundTrackers:   []string{"AITHER"},
			MissingTrackers: []string{"BLU", "PTP"},
			Duplicates:      []string{"Alpha Movie 2020 2160p WEB-DL-BBB"},
		},
		{
			Name:            "Beta.Show.S01.1080p.WEB-DL-CCC",
			SavePath:        "/downloads/tv",
			FoundTrackers:   []string{"BLU"},
			MissingTrackers: []string{"PTP"},
		},
	}
}

func TestWriteReport(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb, Options{})

	w.Write(sampleResults(), []string{"AITHER", "BLU", "PTP"}, nil)
	out := sb.String()

	assert.Contains(t, out, "Configured trackers (3): AITHER, BLU, PTP")
	// One row per torrent with the missing codes on the same line.
	assert.Contains(t, out, "Alpha.Movie.2020.1080p.BluRay.x264-AAA | missing from: BLU, PTP")
	assert.Contains(t, out, "Beta.Show.S01.1080p.WEB-DL-CCC | missing from: PTP")
	assert.Contains(t, out, "duplicates: Alpha Movie 2020 2160p WEB-DL-BBB")
	assert.Contains(t, out, "Torrents with missing trackers: 2")
}

func TestWriteReportNoStyle(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb, Options{NoStyle: true})

	w.Write(nil, []string{"AITHER"}, nil)
	out := sb.String()

	assert.NotContains(t, out, "====")
	assert.Contains(t, out, "All torrents are present on every configured tracker.")
}

func TestWriteReportStats(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb, Options{Stats: true})

	w.Write(sampleResults(), []string{"AITHER", "BLU", "PTP"}, nil)
	out := sb.String()

	assert.Contains(t, out, "Upload opportunities per tracker:")
	// PTP is missing from both results, BLU from one.
	assert.Contains(t, out, "PTP")
	assert.Contains(t, out, "100.0%")
	assert.Contains(t, out, "50.0%")
}

func TestWriteReportSkipped(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb, Options{})

	w.Write(nil, []string{"AITHER"}, []analyzer.Skipped{
		{Name: "Broken.Row", Reason: "malformed trackers field"},
	})
	out := sb.String()

	assert.Contains(t, out, "Skipped records: 1")
	assert.Contains(t, out, "Broken.Row: malformed trackers field")
}

func TestWriteBanned(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb, Options{})

	banned := []bannedgroups.BannedResult{
		{
			Result: analyzer.Result{Name: "Dirty.Movie.2022.1080p-SPARKS"},
			Reasons: []bannedgroups.BanReason{
				{Tracker: "AITHER", Group: "SPARKS", Reason: "Group 'SPARKS' is banned on AITHER"},
			},
		},
	}
	stats := bannedgroups.Stats{TotalChecked: 2, PassedCount: 1, BannedCount: 1, ByGroup: map[string]int{"SPARKS": 1}}

	w.WriteBanned(banned, stats)
	out := sb.String()

	assert.Contains(t, out, "Excluded (banned release groups): 1")
	assert.Contains(t, out, "Group 'SPARKS' is banned on AITHER")
	assert.Contains(t, out, stats.Summary())
}

func TestGenerateCommands(t *testing.T) {
	results := []analyzer.Result{
		{
			Name:            "Alpha Movie 2020 1080p BluRay x264-AAA",
			SavePath:        "/downloads/my movies",
			FoundTrackers:   []string{"AITHER"},
			MissingTrackers: []string{"BLU", "PTP"},
		},
	}

	script := GenerateCommands(results, "/app/upload.py")

	assert.True(t, strings.HasPrefix(script, "#!/bin/bash\n"))
	assert.Contains(t, script, "# Alpha Movie 2020 1080p BluRay x264-AAA")
	assert.Contains(t, script, "# found on:   AITHER")
	assert.Contains(t, script, "# missing on: BLU, PTP")
	assert.Contains(t, script, "--trackers BLU,PTP")

	// The content path contains spaces; a shell must see it as one argument.
	var commandLine string
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(line, "python ") {
			commandLine = line
			break
		}
	}
	require.NotEmpty(t, commandLine)

	words, err := shellquote.Split(commandLine)
	require.NoError(t, err)
	require.Len(t, words, 5)
	assert.Equal(t, "/app/upload.py", words[1])
	assert.Equal(t, "/downloads/my movies/Alpha Movie 2020 1080p BluRay x264-AAA", words[2])
	assert.Equal(t, "--trackers", words[3])
	assert.Equal(t, "BLU,PTP", words[4])
}

func TestWriteCommandsFile(t *testing.T) {
	dir := t.TempDir()
	outputDir := filepath.Join(dir, "output")

	path, err := WriteCommandsFile(sampleResults(), "/app/upload.py", outputDir)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2 upload candidates")
}
