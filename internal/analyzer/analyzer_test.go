// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/cross-pollinator/internal/tracker"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	return New(tracker.NewResolver())
}

func TestAnalyzeComputesMissingSet(t *testing.T) {
	a := newTestAnalyzer(t)

	records := []Record{
		{
			Name:        "The.Expanse.S01.1080p.BluRay.x264-DEMAND",
			InfoHashes:  []string{"hash1"},
			RawTrackers: []string{"aither.cc", "passthepopcorn.me"},
		},
	}

	results, skipped := a.Analyze(records, []string{"AITHER", "BLU", "MTV", "PTP"}, Options{})
	require.Empty(t, skipped)
	require.Len(t, results, 1)

	assert.Equal(t, []string{"BLU", "MTV"}, results[0].MissingTrackers)
	assert.Equal(t, []string{"AITHER", "PTP"}, results[0].FoundTrackers)
}

func TestAnalyzeOmitsFullyCoveredContent(t *testing.T) {
	a := newTestAnalyzer(t)

	records := []Record{
		{
			Name:        "Dune.Part.Two.2024.2160p.WEB-DL.DDP5.1.Atmos.DV.HDR.H.265-FLUX",
			InfoHashes:  []string{"hash1"},
			RawTrackers: []string{"aither.cc", "blutopia.cc"},
		},
	}

	results, skipped := a.Analyze(records, []string{"AITHER", "BLU"}, Options{})
	assert.Empty(t, results)
	assert.Empty(t, skipped)
}

func TestAnalyzeMergesDuplicateContent(t *testing.T) {
	a := newTestAnalyzer(t)

	records := []Record{
		{
			Name:        "The.Matrix.1999.1080p.BluRay.x264-SPARKS",
			InfoHashes:  []string{"hash1"},
			RawTrackers: []string{"aither.cc"},
		},
		{
			Name:        "The Matrix 1999 2160p WEB-DL DDP5.1-FLUX",
			InfoHashes:  []string{"hash2"},
			RawTrackers: []string{"blutopia.cc"},
		},
	}

	results, _ := a.Analyze(records, []string{"AITHER", "BLU", "PTP"}, Options{})
	require.Len(t, results, 1, "encodes of the same content should coalesce")

	result := results[0]
	// Union of both members' membership: only PTP remains missing.
	assert.Equal(t, []string{"PTP"}, result.MissingTrackers)
	assert.ElementsMatch(t, []string{"AITHER", "BLU"}, result.FoundTrackers)
	assert.ElementsMatch(t, []string{"hash1", "hash2"}, result.InfoHashes)
	require.Len(t, result.Duplicates, 1)
}

func TestAnalyzeIsOrderIndependent(t *testing.T) {
	a := newTestAnalyzer(t)

	records := []Record{
		{Name: "Alpha.Movie.2020.1080p.BluRay.x264-AAA", InfoHashes: []string{"h1"}, RawTrackers: []string{"aither.cc"}},
		{Name: "Alpha Movie 2020 2160p WEB-DL-BBB", InfoHashes: []string{"h2"}, RawTrackers: []string{"blutopia.cc"}},
		{Name: "Beta.Show.S02.1080p.WEB-DL-CCC", InfoHashes: []string{"h3"}, RawTrackers: []string{"lst.gg"}},
	}

	reversed := []Record{records[2], records[1], records[0]}
	configured := []string{"AITHER", "BLU", "LST", "PTP"}

	forward, _ := a.Analyze(records, configured, Options{})
	backward, _ := a.Analyze(reversed, configured, Options{})

	assert.Equal(t, forward, backward)
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	a := newTestAnalyzer(t)

	records := []Record{
		{Name: "Gamma.Film.2021.1080p.BluRay.x264-DDD", InfoHashes: []string{"h1"}, RawTrackers: []string{"aither.cc"}},
	}
	configured := []string{"AITHER", "BLU"}

	first, _ := a.Analyze(records, configured, Options{})
	second, _ := a.Analyze(records, configured, Options{})

	assert.Equal(t, first, second)
}

func TestAnalyzeDropsUnresolvableTrackers(t *testing.T) {
	a := newTestAnalyzer(t)

	records := []Record{
		{
			Name:        "Delta.Doc.2019.1080p.WEB-DL-EEE",
			InfoHashes:  []string{"h1"},
			RawTrackers: []string{"completely-unknown-tracker.xyz", "aither.cc"},
		},
	}

	results, _ := a.Analyze(records, []string{"AITHER", "BLU"}, Options{})
	require.Len(t, results, 1)
	assert.Equal(t, []string{"AITHER"}, results[0].FoundTrackers)
	assert.Equal(t, []string{"BLU"}, results[0].MissingTrackers)
}

func TestAnalyzeKeepsGroupFieldsAcrossRepresentativeSwap(t *testing.T) {
	a := newTestAnalyzer(t)

	// The first record carries the path; the second becomes the
	// representative because its name sorts lower.
	records := []Record{
		{
			Name:       "Some.Movie.2023.1080p.BluRay.x264-ZZZ",
			InfoHashes: []string{"h1"},
			SavePath:   "/downloads",
			Category:   "movies",
		},
		{
			Name:       "Some Movie 2023 2160p WEB-DL-AAA",
			InfoHashes: []string{"h2"},
		},
	}

	for _, order := range [][]Record{records, {records[1], records[0]}} {
		results, skipped := a.Analyze(order, []string{"AITHER"}, Options{RequireSavePath: true})
		require.Empty(t, skipped)
		require.Len(t, results, 1)

		assert.Equal(t, "Some Movie 2023 2160p WEB-DL-AAA", results[0].Name)
		assert.Equal(t, "/downloads", results[0].SavePath)
		assert.Equal(t, "movies", results[0].Category)
	}
}

func TestAnalyzeRequireSavePath(t *testing.T) {
	a := newTestAnalyzer(t)

	records := []Record{
		{Name: "Epsilon.2022.1080p.BluRay.x264-FFF", InfoHashes: []string{"h1"}, RawTrackers: []string{"aither.cc"}},
	}

	results, skipped := a.Analyze(records, []string{"AITHER", "BLU"}, Options{RequireSavePath: true})
	assert.Empty(t, results)
	require.Len(t, skipped, 1)
	assert.Contains(t, skipped[0].Reason, "save path")
}

func TestAnalyzeSortedByNameCaseInsensitive(t *testing.T) {
	a := newTestAnalyzer(t)

	records := []Record{
		{Name: "zebra.film.2020.1080p.BluRay-AAA", InfoHashes: []string{"h1"}},
		{Name: "Apple.Film.2021.1080p.BluRay-BBB", InfoHashes: []string{"h2"}},
		{Name: "mango.film.2022.1080p.BluRay-CCC", InfoHashes: []string{"h3"}},
	}

	results, _ := a.Analyze(records, []string{"AITHER"}, Options{})
	require.Len(t, results, 3)
	assert.Equal(t, "Apple.Film.2021.1080p.BluRay-BBB", results[0].Name)
	assert.Equal(t, "mango.film.2022.1080p.BluRay-CCC", results[1].Name)
	assert.Equal(t, "zebra.film.2020.1080p.BluRay-AAA", results[2].Name)
}

func TestAnalyzeSkipsNamelessRecords(t *testing.T) {
	a := newTestAnalyzer(t)

	results, skipped := a.Analyze([]Record{{InfoHashes: []string{"h1"}}}, []string{"AITHER"}, Options{})
	assert.Empty(t, results)
	require.Len(t, skipped, 1)
}

func TestConfiguredCodes(t *testing.T) {
	a := newTestAnalyzer(t)

	tests := []struct {
		name     string
		raw      []string
		allow    []string
		deny     []string
		expected []string
	}{
		{
			name:     "resolves and sorts",
			raw:      []string{"blutopia.cc", "aither.cc", "passthepopcorn.me"},
			expected: []string{"AITHER", "BLU", "PTP"},
		},
		{
			name:     "drops unresolvable",
			raw:      []string{"aither.cc", "nobody-knows-this.example"},
			expected: []string{"AITHER"},
		},
		{
			name:     "allow list narrows",
			raw:      []string{"aither.cc", "blutopia.cc", "lst.gg"},
			allow:    []string{"blu", "LST"},
			expected: []string{"BLU", "LST"},
		},
		{
			name:     "deny list removes",
			raw:      []string{"aither.cc", "blutopia.cc"},
			deny:     []string{"AITHER"},
			expected: []string{"BLU"},
		},
		{
			name:     "deduplicates identifiers of the same tracker",
			raw:      []string{"aither.cc", "AITHER", "https://aither.cc/announce"},
			expected: []string{"AITHER"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, a.ConfiguredCodes(tt.raw, tt.allow, tt.deny))
		})
	}
}

func TestContentKeyNormalization(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		same bool
	}{
		{
			name: "separator style is irrelevant",
			a:    "Some.Movie.2023.1080p.BluRay.x264-GROUP",
			b:    "Some Movie 2023 2160p WEB-DL-OTHER",
			same: true,
		},
		{
			name: "apostrophes are irrelevant",
			a:    "The.Kings.Speech.2010.1080p.BluRay.x264-AAA",
			b:    "The King's Speech 2010 720p WEB-DL-BBB",
			same: true,
		},
		{
			name: "different year is different content",
			a:    "Remake.Film.1978.1080p.BluRay-AAA",
			b:    "Remake.Film.2019.1080p.BluRay-AAA",
			same: false,
		},
		{
			name: "different episode is different content",
			a:    "Serial.Show.S01E01.1080p.WEB-DL-AAA",
			b:    "Serial.Show.S01E02.1080p.WEB-DL-AAA",
			same: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.same {
				assert.Equal(t, contentKey(tt.a), contentKey(tt.b))
			} else {
				assert.NotEqual(t, contentKey(tt.a), contentKey(tt.b))
			}
		})
	}
}
