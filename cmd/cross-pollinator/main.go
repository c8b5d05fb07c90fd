// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/autobrr/cross-pollinator/internal/analyzer"
	"github.com/autobrr/cross-pollinator/internal/bannedgroups"
	"github.com/autobrr/cross-pollinator/internal/buildinfo"
	"github.com/autobrr/cross-pollinator/internal/config"
	"github.com/autobrr/cross-pollinator/internal/database"
	"github.com/autobrr/cross-pollinator/internal/report"
	"github.com/autobrr/cross-pollinator/internal/tracker"
)

func main() {
	config.InitDefaultLogger(buildinfo.Version)

	var rootCmd = &cobra.Command{
		Use:   "cross-pollinator",
		Short: "Find cross-seed upload opportunities across your trackers",
		Long: `cross-pollinator - Analyze a cross-seed database to find torrents
missing from configured trackers and generate upload commands.`,
	}

	rootCmd.Version = buildinfo.Version

	rootCmd.AddCommand(RunAnalyzeCommand())
	rootCmd.AddCommand(RunVersionCommand(buildinfo.Version))
	rootCmd.AddCommand(RunGenerateConfigCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunAnalyzeCommand() *cobra.Command {
	var (
		configDir    string
		dataDir      string
		databasePath string
		logPath      string
		categories   []string
		commandsFlag bool
		statsFlag    bool
		debugFlag    bool
		skipBanned   bool
		noStyle      bool
	)

	var command = &cobra.Command{
		Use:   "run",
		Short: "Analyze the cross-seed database and report missing trackers",
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory path (default is OS-specific: ~/.config/cross-pollinator/ or %APPDATA%\\cross-pollinator\\). Can also be a direct path to a .toml file")
	command.Flags().StringVar(&dataDir, "data-dir", "", "data directory for cache and output files (default is next to config file)")
	command.Flags().StringVar(&databasePath, "database", "", "path to the cross-seed SQLite database (overrides config)")
	command.Flags().StringVar(&logPath, "log-path", "", "log file path (default is stdout)")
	command.Flags().StringSliceVar(&categories, "categories", nil, "restrict analysis to these categories (skips the interactive prompt)")
	command.Flags().BoolVar(&commandsFlag, "commands", false, "write an upload-command script to the output directory")
	command.Flags().BoolVar(&statsFlag, "stats", false, "include per-tracker upload statistics in the report")
	command.Flags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	command.Flags().BoolVar(&skipBanned, "skip-banned", false, "skip banned release-group filtering entirely")
	command.Flags().BoolVar(&noStyle, "no-style", false, "plain output without decorative banners")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New(configDir, buildinfo.Version)
		if err != nil {
			return fmt.Errorf("failed to initialize configuration: %w", err)
		}

		if dataDir != "" {
			cfg.SetDataDir(dataDir)
		}
		if databasePath != "" {
			cfg.Config.DatabasePath = databasePath
		}
		if logPath != "" {
			cfg.Config.LogPath = logPath
		}

		cfg.ApplyLogConfig()
		if debugFlag {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
			log.Logger = log.Logger.Level(zerolog.DebugLevel)
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if err := runAnalysis(ctx, cfg, runOptions{
			categories:  categories,
			commands:    commandsFlag,
			stats:       statsFlag,
			skipBanned:  skipBanned || cfg.Config.SkipBannedGroups,
			noStyle:     noStyle,
			interactive: len(categories) == 0 && term.IsTerminal(int(os.Stdin.Fd())),
		}, os.Stdout); err != nil {
			if errors.Is(err, database.ErrDatabaseNotFound) {
				log.Error().Err(err).Msg("Cross-seed database not found")
				os.Exit(1)
			}
			return err
		}

		return nil
	}

	return command
}

type runOptions struct {
	categories []string
	commands   bool
	stats      bool
	// skipBanned bypasses banned release-group filtering, which otherwise
	// runs on every analysis.
	skipBanned  bool
	noStyle     bool
	interactive bool
}

func runAnalysis(ctx context.Context, cfg *config.AppConfig, opts runOptions, out io.Writer) error {
	db, err := database.OpenReadOnly(cfg.Config.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	log.Info().Str("database", db.Path()).Msg("Opened cross-seed database read-only")

	store := analyzer.NewStore(db)

	records, skippedLoad, err := store.LoadRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to load torrent records: %w", err)
	}
	log.Info().Int("records", len(records)).Int("skipped", len(skippedLoad)).Msg("Loaded torrent records")

	identifiers, err := store.ConfiguredTrackerIdentifiers(ctx)
	if err != nil {
		return fmt.Errorf("failed to determine configured trackers: %w", err)
	}

	resolver := tracker.NewResolver()
	anlz := analyzer.New(resolver)

	configured := anlz.ConfiguredCodes(identifiers, cfg.Config.AllowTrackers, cfg.Config.DenyTrackers)
	if len(configured) == 0 {
		return fmt.Errorf("no recognizable trackers found in database; nothing to analyze")
	}

	selectedCategories := opts.categories
	if len(selectedCategories) == 0 {
		selectedCategories = cfg.Config.Categories
	}
	if len(selectedCategories) == 0 && opts.interactive {
		selectedCategories = promptCategories(records)
	}

	analyzeOpts := analyzer.Options{
		VideoOnly:             cfg.Config.VideoOnly,
		ExcludeSingleEpisodes: !cfg.Config.IncludeSingleEpisodes,
		ExcludeFolders:        !cfg.Config.IncludeFolders,
		Categories:            selectedCategories,
		IncludeFilters:        cfg.Config.IncludeFilters,
		ExcludeFilters:        cfg.Config.ExcludeFilters,
		RequireSavePath:       opts.commands,
	}

	results, skippedAnalyze := anlz.Analyze(records, configured, analyzeOpts)
	skipped := append(skippedLoad, skippedAnalyze...)

	var bannedResults []bannedgroups.BannedResult
	var bannedStats bannedgroups.Stats

	if !opts.skipBanned {
		endpoints := make(map[string]bannedgroups.Endpoint, len(cfg.Config.Trackers))
		for code, settings := range cfg.Config.Trackers {
			endpoints[code] = bannedgroups.Endpoint{
				URL:    settings.BannedGroupsURL,
				APIKey: settings.APIKey,
			}
		}

		client := bannedgroups.NewClient(endpoints)
		cache := bannedgroups.NewCache(cfg.GetBannedGroupsDir(), client)
		checker := bannedgroups.NewChecker(cache)

		results, bannedResults, bannedStats = checker.FilterBanned(ctx, results)
	}

	writer := report.NewWriter(out, report.Options{NoStyle: opts.noStyle, Stats: opts.stats})
	writer.Write(results, configured, skipped)
	writer.WriteBanned(bannedResults, bannedStats)

	if opts.commands {
		path, err := report.WriteCommandsFile(results, cfg.Config.UploaderPath, cfg.GetOutputDir())
		if err != nil {
			return fmt.Errorf("failed to write upload commands: %w", err)
		}
		log.Info().Str("path", path).Int("commands", len(results)).Msg("Wrote upload commands file")
		fmt.Fprintf(out, "\nUpload commands written to: %s\n", path)
	}

	return nil
}

// promptCategories lists the categories present in the database and reads a
// comma-separated selection. Empty input or any read failure means all.
func promptCategories(records []analyzer.Record) []string {
	seen := make(map[string]struct{})
	for _, record := range records {
		if record.Category != "" {
			seen[record.Category] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}

	available := make([]string, 0, len(seen))
	for category := range seen {
		available = append(available, category)
	}
	sort.Strings(available)

	fmt.Println("Categories in database:")
	for i, category := range available {
		fmt.Printf("  %d) %s\n", i+1, category)
	}
	fmt.Print("Select categories (comma-separated numbers or names, empty for all): ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return nil
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var selected []string
	for _, token := range strings.Split(line, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if n, err := strconv.Atoi(token); err == nil && n >= 1 && n <= len(available) {
			selected = append(selected, available[n-1])
			continue
		}
		selected = append(selected, token)
	}
	return selected
}

func RunVersionCommand(version string) *cobra.Command {
	var command = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of cross-pollinator",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	return command
}

func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	command := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a default configuration file",
		Long: `Generate a default configuration file without running an analysis.

If no --config-dir is specified, uses the OS-specific default location:
- Linux/macOS: ~/.config/cross-pollinator/config.toml
- Windows: %APPDATA%\cross-pollinator\config.toml

You can specify either a directory path or a direct file path:
- Directory: cross-pollinator generate-config --config-dir /path/to/config/
- File: cross-pollinator generate-config --config-dir /path/to/myconfig.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var configPath string
			if configDir != "" {
				if strings.HasSuffix(strings.ToLower(configDir), ".toml") {
					configPath = configDir
				} else if info, err := os.Stat(configDir); err == nil && !info.IsDir() {
					configPath = configDir
				} else {
					configPath = filepath.Join(configDir, "config.toml")
				}
			} else {
				defaultDir := config.GetDefaultConfigDir()
				configPath = filepath.Join(defaultDir, "config.toml")
			}

			if _, err := os.Stat(configPath); err == nil {
				cmd.Printf("Configuration file already exists at: %s\n", configPath)
				cmd.Println("Skipping generation to avoid overwriting existing configuration.")
				return nil
			}

			if err := config.WriteDefaultConfig(configPath); err != nil {
				return fmt.Errorf("failed to create configuration file: %w", err)
			}

			cmd.Printf("Configuration file created successfully at: %s\n", configPath)
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "",
		"config directory or file path (defaults to OS-specific location)")

	return command
}
