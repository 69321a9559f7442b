// Package testutil builds deterministic encounters for tests.
package testutil

import (
	"testing"

	"github.com/roach88/encounterlab/internal/actor"
	"github.com/roach88/encounterlab/internal/encounter"
	"github.com/roach88/encounterlab/internal/ir"
)

// EncounterBuilder assembles an encounter line by line.
//
//	enc := testutil.NewEncounter(1000).
//		Member("10FF0001", "Tini Poutini", 24).
//		Line(1000, ir.LineGameLog, ir.IRObject{"line": ir.IRString("engage")}).
//		Build(t)
type EncounterBuilder struct {
	params  encounter.Params
	tracker *actor.Tracker
}

// NewEncounter starts a builder with the given start timestamp.
func NewEncounter(start int64) *EncounterBuilder {
	tracker := actor.NewTracker()
	return &EncounterBuilder{
		params: encounter.Params{
			ID:             "test-encounter",
			StartTimestamp: start,
			Tracker:        tracker,
		},
		tracker: tracker,
	}
}

// ID sets the encounter id.
func (b *EncounterBuilder) ID(id string) *EncounterBuilder {
	b.params.ID = id
	return b
}

// Zone sets the captured zone.
func (b *EncounterBuilder) Zone(hexID, name string) *EncounterBuilder {
	b.params.ZoneID = hexID
	b.params.ZoneName = name
	return b
}

// Member adds a party member whose first state is recorded at the
// encounter start. A job of 0 adds a member with no state at all.
func (b *EncounterBuilder) Member(id, name string, job int) *EncounterBuilder {
	b.params.PartyMembers = append(b.params.PartyMembers, id)
	if job != 0 {
		b.tracker.RecordState(id, b.params.StartTimestamp, ir.ActorState{
			ID:    id,
			Name:  name,
			Job:   job,
			Level: 100,
		})
	}
	return b
}

// State records an actor state at ts.
func (b *EncounterBuilder) State(id string, ts int64, s ir.ActorState) *EncounterBuilder {
	b.tracker.RecordState(id, ts, s)
	return b
}

// Line appends a log line.
func (b *EncounterBuilder) Line(ts int64, typ string, fields ir.IRObject) *EncounterBuilder {
	b.params.Lines = append(b.params.Lines, ir.LogLine{
		Timestamp: ts,
		Type:      typ,
		Fields:    fields,
	})
	return b
}

// Build freezes the encounter, failing the test on error.
func (b *EncounterBuilder) Build(t testing.TB) *encounter.Encounter {
	t.Helper()
	enc, err := encounter.New(b.params)
	if err != nil {
		t.Fatalf("build encounter: %v", err)
	}
	return enc
}

// StaticRules is a rules.Provider returning the same rule set for
// every zone.
type StaticRules ir.RuleSet

// RuleSet implements rules.Provider.
func (s StaticRules) RuleSet(int64) ir.RuleSet {
	return ir.RuleSet(s)
}
