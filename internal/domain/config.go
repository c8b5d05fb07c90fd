// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// Config holds the full runtime configuration for cross-pollinator.
// Populated by viper from config.toml and CROSS_POLLINATOR__ env vars.
type Config struct {
	Version string

	// Path to the cross-seed SQLite database. The database is opened
	// read-only; a missing file is a fatal startup error.
	DatabasePath string `mapstructure:"databasePath"`

	// Directory for generated report and upload-command files.
	OutputDir string `mapstructure:"outputDir"`

	// Data directory for the banned-group cache files.
	DataDir string `mapstructure:"dataDir"`

	// Path to the uploader script referenced by generated commands.
	UploaderPath string `mapstructure:"uploaderPath"`

	LogLevel      string `mapstructure:"logLevel"`
	LogPath       string `mapstructure:"logPath"`
	LogMaxSize    int    `mapstructure:"logMaxSize"`
	LogMaxBackups int    `mapstructure:"logMaxBackups"`

	// Content filtering.
	VideoOnly             bool     `mapstructure:"videoOnly"`
	IncludeSingleEpisodes bool     `mapstructure:"includeSingleEpisodes"`
	IncludeFolders        bool     `mapstructure:"includeFolders"`
	Categories            []string `mapstructure:"categories"`
	IncludeFilters        []string `mapstructure:"includeFilters"`
	ExcludeFilters        []string `mapstructure:"excludeFilters"`

	// Tracker universe narrowing. AllowTrackers, when non-empty, restricts
	// the configured set to the listed codes; DenyTrackers removes codes.
	AllowTrackers []string `mapstructure:"allowTrackers"`
	DenyTrackers  []string `mapstructure:"denyTrackers"`

	// Banned release-group filtering.
	SkipBannedGroups bool                      `mapstructure:"skipBannedGroups"`
	Trackers         map[string]TrackerSettings `mapstructure:"trackers"`
}

// TrackerSettings holds per-tracker API access for banned-group lists.
type TrackerSettings struct {
	APIKey          string `mapstructure:"apiKey"`
	BannedGroupsURL string `mapstructure:"bannedGroupsUrl"`
}
