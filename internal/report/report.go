// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package report renders analyzer output as a human-readable report and as an
// executable upload-command script.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Hellseher/go-shellquote"
	"github.com/pkg/errors"

	"github.com/autobrr/cross-pollinator/internal/analyzer"
	"github.com/autobrr/cross-pollinator/internal/bannedgroups"
)

// Options control report rendering.
type Options struct {
	// NoStyle suppresses the decorative banner and separators for
	// machine-friendly output.
	NoStyle bool

	// Stats appends per-tracker upload counts with percentages.
	Stats bool
}

// Writer renders analysis results to an io.Writer.
type Writer struct {
	out  io.Writer
	opts Options
}

func NewWriter(out io.Writer, opts Options) *Writer {
	return &Writer{out: out, opts: opts}
}

const bannerWidth = 72

func (w *Writer) banner(title string) {
	if w.opts.NoStyle {
		fmt.Fprintf(w.out, "%s\n", title)
		return
	}
	line := strings.Repeat("=", bannerWidth)
	fmt.Fprintf(w.out, "%s\n%s\n%s\n", line, center(title, bannerWidth), line)
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	pad := (width - len(s)) / 2
	return strings.Repeat(" ", pad) + s
}

// Write renders the full report: configured trackers, one line per torrent
// with the trackers it is missing from, then totals.
func (w *Writer) Write(results []analyzer.Result, configured []string, skipped []analyzer.Skipped) {
	w.banner("CROSS-POLLINATOR MISSING TRACKER REPORT")

	fmt.Fprintf(w.out, "\nConfigured trackers (%d): %s\n\n", len(configured), strings.Join(configured, ", "))

	if len(results) == 0 {
		fmt.Fprintln(w.out, "All torrents are present on every configured tracker.")
	}

	for _, result := range results {
		fmt.Fprintf(w.out, "%s | missing from: %s\n", result.Name, strings.Join(result.MissingTrackers, ", "))
		if len(result.Duplicates) > 0 {
			fmt.Fprintf(w.out, "    duplicates: %s\n", strings.Join(result.Duplicates, ", "))
		}
	}

	fmt.Fprintf(w.out, "\nTorrents with missing trackers: %d\n", len(results))
	if len(skipped) > 0 {
		fmt.Fprintf(w.out, "Skipped records: %d\n", len(skipped))
		for _, s := range skipped {
			name := s.Name
			if name == "" {
				name = "(unnamed)"
			}
			fmt.Fprintf(w.out, "    %s: %s\n", name, s.Reason)
		}
	}

	if w.opts.Stats {
		w.writeTrackerStats(results)
	}
}

// writeTrackerStats renders per-tracker upload opportunity counts, largest
// first, each with its share of the result set.
func (w *Writer) writeTrackerStats(results []analyzer.Result) {
	counts := make(map[string]int)
	for _, result := range results {
		for _, code := range result.MissingTrackers {
			counts[code]++
		}
	}
	if len(counts) == 0 {
		return
	}

	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		if counts[codes[i]] != counts[codes[j]] {
			return counts[codes[i]] > counts[codes[j]]
		}
		return codes[i] < codes[j]
	})

	fmt.Fprintf(w.out, "\nUpload opportunities per tracker:\n")
	total := len(results)
	for _, code := range codes {
		percentage := float64(counts[code]) / float64(total) * 100
		fmt.Fprintf(w.out, "    %-8s %4d (%5.1f%%)\n", code, counts[code], percentage)
	}
}

// WriteBanned renders the banned-group section: which results were dropped,
// why, and the filter summary.
func (w *Writer) WriteBanned(banned []bannedgroups.BannedResult, stats bannedgroups.Stats) {
	if len(banned) == 0 {
		return
	}

	fmt.Fprintf(w.out, "\nExcluded (banned release groups): %d\n", len(banned))
	for _, b := range banned {
		fmt.Fprintf(w.out, "%s\n", b.Name)
		for _, reason := range b.Reasons {
			fmt.Fprintf(w.out, "    %s\n", reason.Reason)
		}
	}
	fmt.Fprintf(w.out, "\n%s\n", stats.Summary())
}

// GenerateCommands renders one uploader invocation per result, each preceded
// by comment lines identifying the torrent and its tracker sets. The content
// path is shell-quoted; tracker codes join with commas.
func GenerateCommands(results []analyzer.Result, uploaderPath string) string {
	var sb strings.Builder

	sb.WriteString("#!/bin/bash\n")
	sb.WriteString(fmt.Sprintf("# Generated by cross-pollinator on %s\n", time.Now().Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("# %d upload candidates\n\n", len(results)))

	for _, result := range results {
		sb.WriteString(fmt.Sprintf("# %s\n", result.Name))
		if len(result.Duplicates) > 0 {
			sb.WriteString(fmt.Sprintf("# duplicates: %s\n", strings.Join(result.Duplicates, ", ")))
		}
		if len(result.FoundTrackers) > 0 {
			sb.WriteString(fmt.Sprintf("# found on:   %s\n", strings.Join(result.FoundTrackers, ", ")))
		}
		sb.WriteString(fmt.Sprintf("# missing on: %s\n", strings.Join(result.MissingTrackers, ", ")))

		contentPath := result.SavePath
		if contentPath != "" && !strings.HasSuffix(contentPath, result.Name) {
			contentPath = filepath.Join(contentPath, result.Name)
		}

		sb.WriteString(fmt.Sprintf("python %s %s --trackers %s\n\n",
			uploaderPath,
			shellquote.Join(contentPath),
			strings.Join(result.MissingTrackers, ","),
		))
	}

	return sb.String()
}

// WriteCommandsFile writes the upload-command script to outputDir in a single
// open-write-close, so a watching shell never sees a partial file grow.
func WriteCommandsFile(results []analyzer.Result, uploaderPath, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create output directory")
	}

	path := filepath.Join(outputDir, fmt.Sprintf("upload_commands_%s.sh", time.Now().Format("20060102_150405")))
	content := GenerateCommands(results, uploaderPath)

	if err := os.WriteFile(path, []byte(content), 0755); err != nil {
		return "", errors.Wrap(err, "failed to write upload commands file")
	}
	return path, nil
}
