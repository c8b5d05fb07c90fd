// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package analyzer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/cross-pollinator/internal/database"
	"github.com/autobrr/cross-pollinator/internal/tracker"
)

// DefaultSuccessDecisions are the decision outcomes that mean the torrent was
// found on a tracker. Source revisions disagree on the exact set (some also
// count MATCH_TORRENT), so it is tunable via WithSuccessDecisions.
var DefaultSuccessDecisions = []string{
	"MATCH",
	"MATCH_SIZE_ONLY",
	"MATCH_PARTIAL",
	"INFO_HASH_ALREADY_EXISTS",
}

// Store reads torrent records and tracker membership from the external
// cross-seed database. The schema is owned by the cross-seed tool: membership
// comes either from a JSON trackers column on client_searchee or from the
// decision log, detected at load time.
type Store struct {
	db               *database.DB
	successDecisions map[string]struct{}
}

type StoreOption func(*Store)

// WithSuccessDecisions overrides the decision outcomes counted as "found".
func WithSuccessDecisions(decisions []string) StoreOption {
	return func(s *Store) {
		s.successDecisions = make(map[string]struct{}, len(decisions))
		for _, d := range decisions {
			s.successDecisions[strings.ToUpper(strings.TrimSpace(d))] = struct{}{}
		}
	}
}

func NewStore(db *database.DB, opts ...StoreOption) *Store {
	s := &Store{db: db}
	WithSuccessDecisions(DefaultSuccessDecisions)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// searcheeColumns captures which optional columns the client_searchee table
// carries in this database revision.
type searcheeColumns struct {
	savePath bool
	category bool
	files    bool
	trackers bool
}

func (s *Store) probeSearcheeColumns(ctx context.Context) (searcheeColumns, error) {
	var cols searcheeColumns
	for _, probe := range []struct {
		name string
		dst  *bool
	}{
		{"save_path", &cols.savePath},
		{"category", &cols.category},
		{"files", &cols.files},
		{"trackers", &cols.trackers},
	} {
		ok, err := s.db.HasColumn(ctx, "client_searchee", probe.name)
		if err != nil {
			return cols, err
		}
		*probe.dst = ok
	}
	return cols, nil
}

// LoadRecords reads all torrents, collapsing rows that share a name into one
// Record with the union of their info hashes, and resolves raw tracker
// membership from whichever source the schema provides. Rows with malformed
// structured fields are skipped with a diagnostic; the rest of the run
// continues.
func (s *Store) LoadRecords(ctx context.Context) ([]Record, []Skipped, error) {
	cols, err := s.probeSearcheeColumns(ctx)
	if err != nil {
		return nil, nil, err
	}

	records, byHash, skipped, err := s.loadSearchees(ctx, cols)
	if err != nil {
		return nil, nil, err
	}

	// The trackers column, when present, is authoritative; otherwise derive
	// membership from the decision log.
	if !cols.trackers {
		hasDecisions, err := s.db.HasTable(ctx, "decision")
		if err != nil {
			return nil, nil, err
		}
		if hasDecisions {
			if err := s.applyDecisions(ctx, records, byHash); err != nil {
				return nil, nil, err
			}
		} else {
			log.Warn().Msg("Database has neither a trackers column nor a decision table; no membership data available")
		}
	}

	out := make([]Record, 0, len(records))
	for _, record := range records {
		out = append(out, *record)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})

	return out, skipped, nil
}

func (s *Store) loadSearchees(ctx context.Context, cols searcheeColumns) (map[string]*Record, map[string]*Record, []Skipped, error) {
	query := buildSearcheeQuery(cols)

	rows, err := s.db.Conn().QueryContext(ctx, query)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "failed to query client_searchee")
	}
	defer rows.Close()

	records := make(map[string]*Record)
	byHash := make(map[string]*Record)
	var skipped []Skipped

	for rows.Next() {
		var (
			name        string
			infoHash    string
			savePath    sql.NullString
			category    sql.NullString
			filesJSON   sql.NullString
			trackerJSON sql.NullString
		)

		if err := rows.Scan(&name, &infoHash, &savePath, &category, &filesJSON, &trackerJSON); err != nil {
			return nil, nil, nil, errors.Wrap(err, "failed to scan client_searchee row")
		}

		var rawTrackers []string
		if cols.trackers && trackerJSON.Valid && trackerJSON.String != "" {
			if err := json.Unmarshal([]byte(trackerJSON.String), &rawTrackers); err != nil {
				skipped = append(skipped, Skipped{
					Name:   name,
					Reason: fmt.Sprintf("malformed trackers field: %v", err),
				})
				continue
			}
		}

		var files []string
		if cols.files && filesJSON.Valid && filesJSON.String != "" {
			if err := json.Unmarshal([]byte(filesJSON.String), &files); err != nil {
				// Files are only used for content filtering; a malformed list
				// degrades the filter but doesn't invalidate the record.
				log.Warn().Str("name", name).Err(err).Msg("Ignoring malformed files field")
				files = nil
			}
		}

		record, ok := records[name]
		if !ok {
			record = &Record{Name: name}
			records[name] = record
		}

		record.InfoHashes = appendUnique(record.InfoHashes, infoHash)
		if record.SavePath == "" && savePath.Valid {
			record.SavePath = savePath.String
		}
		if record.Category == "" && category.Valid {
			record.Category = category.String
		}
		for _, f := range files {
			record.Files = appendUnique(record.Files, f)
		}
		for _, t := range rawTrackers {
			record.RawTrackers = appendUnique(record.RawTrackers, t)
		}

		if infoHash != "" {
			byHash[infoHash] = record
		}
	}

	if err := rows.Err(); err != nil {
		return nil, nil, nil, errors.Wrap(err, "error iterating client_searchee rows")
	}

	return records, byHash, skipped, nil
}

func buildSearcheeQuery(cols searcheeColumns) string {
	column := func(present bool, name string) string {
		if present {
			return name
		}
		return "NULL"
	}
	return fmt.Sprintf(`
		SELECT name, info_hash, %s, %s, %s, %s
		FROM client_searchee
		ORDER BY name
	`,
		column(cols.savePath, "save_path"),
		column(cols.category, "category"),
		column(cols.files, "files"),
		column(cols.trackers, "trackers"),
	)
}

// applyDecisions marks membership from the decision log. Only the most recent
// decision per (info_hash, guid) pair governs; it counts as found when its
// outcome is in the success set.
func (s *Store) applyDecisions(ctx context.Context, records map[string]*Record, byHash map[string]*Record) error {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT d.info_hash, d.guid, d.decision
		FROM decision d
		WHERE d.guid IS NOT NULL
		  AND d.last_seen = (
			SELECT MAX(d2.last_seen)
			FROM decision d2
			WHERE d2.info_hash = d.info_hash
			  AND d2.guid = d.guid
		  )
	`)
	if err != nil {
		return errors.Wrap(err, "failed to query decision table")
	}
	defer rows.Close()

	for rows.Next() {
		var infoHash, guid, decision string
		if err := rows.Scan(&infoHash, &guid, &decision); err != nil {
			return errors.Wrap(err, "failed to scan decision row")
		}

		record, ok := byHash[infoHash]
		if !ok {
			continue
		}

		if _, ok := s.successDecisions[strings.ToUpper(decision)]; !ok {
			continue
		}

		record.RawTrackers = appendUnique(record.RawTrackers, tracker.GUIDLabel(guid))
	}

	return errors.Wrap(rows.Err(), "error iterating decision rows")
}

// ConfiguredTrackerIdentifiers returns the raw tracker identifiers the
// database knows about: distinct decision GUID labels when the decision table
// exists, otherwise the union of trackers-column values.
func (s *Store) ConfiguredTrackerIdentifiers(ctx context.Context) ([]string, error) {
	hasDecisions, err := s.db.HasTable(ctx, "decision")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})

	if hasDecisions {
		rows, err := s.db.Conn().QueryContext(ctx, "SELECT DISTINCT guid FROM decision WHERE guid IS NOT NULL")
		if err != nil {
			return nil, errors.Wrap(err, "failed to query decision guids")
		}
		defer rows.Close()

		for rows.Next() {
			var guid string
			if err := rows.Scan(&guid); err != nil {
				return nil, errors.Wrap(err, "failed to scan decision guid")
			}
			seen[tracker.GUIDLabel(guid)] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			return nil, errors.Wrap(err, "error iterating decision guids")
		}
	} else {
		hasTrackers, err := s.db.HasColumn(ctx, "client_searchee", "trackers")
		if err != nil {
			return nil, err
		}
		if hasTrackers {
			rows, err := s.db.Conn().QueryContext(ctx, "SELECT trackers FROM client_searchee WHERE trackers IS NOT NULL")
			if err != nil {
				return nil, errors.Wrap(err, "failed to query searchee trackers")
			}
			defer rows.Close()

			for rows.Next() {
				var trackersJSON string
				if err := rows.Scan(&trackersJSON); err != nil {
					return nil, errors.Wrap(err, "failed to scan searchee trackers")
				}
				var raw []string
				if err := json.Unmarshal([]byte(trackersJSON), &raw); err != nil {
					continue
				}
				for _, t := range raw {
					seen[t] = struct{}{}
				}
			}
			if err := rows.Err(); err != nil {
				return nil, errors.Wrap(err, "error iterating searchee trackers")
			}
		}
	}

	identifiers := make([]string, 0, len(seen))
	for id := range seen {
		identifiers = append(identifiers, id)
	}
	sort.Strings(identifiers)
	return identifiers, nil
}

func appendUnique(values []string, value string) []string {
	if value == "" {
		return values
	}
	for _, v := range values {
		if v == value {
			return values
		}
	}
	return append(values, value)
}
