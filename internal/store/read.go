package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/encounterlab/internal/actor"
	"github.com/roach88/encounterlab/internal/encounter"
	"github.com/roach88/encounterlab/internal/ir"
)

// EncounterSummary is the metadata row of a stored encounter.
type EncounterSummary struct {
	ID             string   `json:"id"`
	Digest         string   `json:"digest"`
	ZoneID         string   `json:"zone_id"`
	ZoneName       string   `json:"zone_name"`
	StartTimestamp int64    `json:"start_timestamp"`
	LineCount      int      `json:"line_count"`
	Party          []string `json:"party"`
}

// ReportSummary is the metadata row of a stored report.
type ReportSummary struct {
	RunID         string `json:"run_id"`
	EncounterID   string `json:"encounter_id"`
	Digest        string `json:"digest"`
	RuleSetID     string `json:"rule_set_id"`
	RuleSetDigest string `json:"rule_set_digest"`
	EngineVersion string `json:"engine_version"`
	ReportVersion string `json:"report_version"`
}

// StoredReport is a report read back from the store. Body is the canonical
// report tree as written.
type StoredReport struct {
	ReportSummary
	Body ir.IRObject
}

// ReadEncounter rebuilds a stored encounter.
// Returns an error wrapping ErrNotFound if no encounter has that id.
func (s *Store) ReadEncounter(ctx context.Context, id string) (*encounter.Encounter, error) {
	var (
		sum       EncounterSummary
		partyJSON string
		payload   []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, digest, zone_id, zone_name, start_timestamp, line_count, party, payload
		FROM encounters
		WHERE id = ?
	`, id).Scan(&sum.ID, &sum.Digest, &sum.ZoneID, &sum.ZoneName, &sum.StartTimestamp, &sum.LineCount, &partyJSON, &payload)
	if err != nil {
		return nil, notFound(err, "encounter", id)
	}

	if err := json.Unmarshal([]byte(partyJSON), &sum.Party); err != nil {
		return nil, fmt.Errorf("encounter %s: party: %w", id, err)
	}
	p, err := unmarshalEncounter(payload)
	if err != nil {
		return nil, fmt.Errorf("encounter %s: %w", id, err)
	}

	tracker := actor.NewTracker()
	for actorID, series := range p.Actors {
		for _, snap := range series {
			tracker.RecordState(actorID, snap.Timestamp, snap.State)
		}
	}

	return encounter.New(encounter.Params{
		ID:             sum.ID,
		StartTimestamp: sum.StartTimestamp,
		ZoneID:         sum.ZoneID,
		ZoneName:       sum.ZoneName,
		Lines:          p.Lines,
		PartyMembers:   sum.Party,
		Tracker:        tracker,
	})
}

// ListEncounters returns every stored encounter in import order.
// Returns an empty slice (not nil) when the store is empty.
func (s *Store) ListEncounters(ctx context.Context) ([]EncounterSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, digest, zone_id, zone_name, start_timestamp, line_count, party
		FROM encounters
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query encounters: %w", err)
	}
	defer rows.Close()

	out := []EncounterSummary{}
	for rows.Next() {
		var sum EncounterSummary
		var partyJSON string
		if err := rows.Scan(&sum.ID, &sum.Digest, &sum.ZoneID, &sum.ZoneName, &sum.StartTimestamp, &sum.LineCount, &partyJSON); err != nil {
			return nil, fmt.Errorf("scan encounter: %w", err)
		}
		if err := json.Unmarshal([]byte(partyJSON), &sum.Party); err != nil {
			return nil, fmt.Errorf("encounter %s: party: %w", sum.ID, err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate encounters: %w", err)
	}
	return out, nil
}

// ReadReport retrieves a stored report by run id.
// Returns an error wrapping ErrNotFound if no report has that id.
func (s *Store) ReadReport(ctx context.Context, runID string) (*StoredReport, error) {
	var r StoredReport
	var body []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, encounter_id, digest, rule_set_id, rule_set_digest, engine_version, report_version, body
		FROM reports
		WHERE run_id = ?
	`, runID).Scan(&r.RunID, &r.EncounterID, &r.Digest, &r.RuleSetID, &r.RuleSetDigest, &r.EngineVersion, &r.ReportVersion, &body)
	if err != nil {
		return nil, notFound(err, "report", runID)
	}

	if r.Body, err = unmarshalObject(body); err != nil {
		return nil, fmt.Errorf("report %s: %w", runID, err)
	}
	return &r, nil
}

// ListReports returns the reports for an encounter in run order.
// An empty encounterID lists every report.
func (s *Store) ListReports(ctx context.Context, encounterID string) ([]ReportSummary, error) {
	var (
		rows *sql.Rows
		err  error
	)
	const cols = `run_id, encounter_id, digest, rule_set_id, rule_set_digest, engine_version, report_version`
	if encounterID == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+cols+` FROM reports ORDER BY seq ASC`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+cols+` FROM reports WHERE encounter_id = ? ORDER BY seq ASC`, encounterID)
	}
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	out := []ReportSummary{}
	for rows.Next() {
		var r ReportSummary
		if err := rows.Scan(&r.RunID, &r.EncounterID, &r.Digest, &r.RuleSetID, &r.RuleSetDigest, &r.EngineVersion, &r.ReportVersion); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}
