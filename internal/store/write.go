package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/encounterlab/internal/analysis"
	"github.com/roach88/encounterlab/internal/encounter"
	"github.com/roach88/encounterlab/internal/ir"
)

// WriteEncounter stores an imported encounter.
// Returns the stored id and whether a new row was inserted.
//
// Encounters are deduplicated by content digest: importing the same capture
// twice returns the id of the first import and inserted=false.
func (s *Store) WriteEncounter(ctx context.Context, enc *encounter.Encounter) (id string, inserted bool, err error) {
	if enc.ID() == "" {
		return "", false, errors.New("write encounter: empty id")
	}

	digest, err := EncounterDigest(enc)
	if err != nil {
		return "", false, fmt.Errorf("write encounter: %w", err)
	}
	payload, err := marshalEncounter(enc)
	if err != nil {
		return "", false, fmt.Errorf("write encounter: %w", err)
	}

	party := ir.IRArray{}
	for _, m := range enc.PartyMembers() {
		party = append(party, ir.IRString(m))
	}
	partyJSON, err := ir.MarshalCanonical(party)
	if err != nil {
		return "", false, fmt.Errorf("write encounter: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("write encounter: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO encounters
		(id, digest, zone_id, zone_name, start_timestamp, line_count, party, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(digest) DO NOTHING
	`,
		enc.ID(),
		digest,
		enc.ZoneID(),
		enc.ZoneName(),
		enc.StartTimestamp(),
		enc.Len(),
		string(partyJSON),
		payload,
	)
	if err != nil {
		return "", false, fmt.Errorf("write encounter: insert: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("write encounter: rows affected: %w", err)
	}

	if rows == 1 {
		id, inserted = enc.ID(), true
	} else {
		err = tx.QueryRowContext(ctx, `SELECT id FROM encounters WHERE digest = ?`, digest).Scan(&id)
		if err != nil {
			return "", false, fmt.Errorf("write encounter: select existing: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("write encounter: commit: %w", err)
	}
	return id, inserted, nil
}

// WriteReport stores an analysis report. The referenced encounter must
// already be stored (foreign key constraint).
func (s *Store) WriteReport(ctx context.Context, r *analysis.Report) error {
	if r.RunID == "" {
		return errors.New("write report: empty run id")
	}

	body, err := marshalObject(r.Object())
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports
		(run_id, encounter_id, digest, rule_set_id, rule_set_digest, engine_version, report_version, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.RunID,
		r.EncounterID,
		r.Digest,
		r.RuleSetID,
		r.RuleSetDigest,
		ir.EngineVersion,
		ir.ReportVersion,
		body,
	)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// notFound maps sql.ErrNoRows to ErrNotFound.
func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("read %s %s: %w", what, id, err)
}
