// Package actor tracks per-actor state over encounter time.
//
// Each actor owns an append-only series of (timestamp, state) snapshots.
// Queries return the latest snapshot at or before the requested time and
// never mutate the series.
package actor

import (
	"slices"
	"sort"

	"github.com/roach88/encounterlab/internal/ir"
)

// Snapshot is one recorded state of an actor.
type Snapshot struct {
	Timestamp int64         `json:"timestamp"`
	State     ir.ActorState `json:"state"`
}

// Tracker stores the time-indexed state series of every tracked actor.
//
// A Tracker is written while an encounter is being built and is read-only
// during analysis. It is not safe for concurrent writes.
type Tracker struct {
	series map[string][]Snapshot
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{series: make(map[string][]Snapshot)}
}

// RecordState appends a snapshot to the actor's series.
//
// Callers guarantee non-decreasing timestamps per actor. A snapshot at the
// same timestamp as the last one replaces it, so a line carrying several
// updates for one actor collapses to its final state.
func (t *Tracker) RecordState(actorID string, timestamp int64, state ir.ActorState) {
	s := t.series[actorID]
	if n := len(s); n > 0 && s[n-1].Timestamp == timestamp {
		s[n-1].State = state
		return
	}
	t.series[actorID] = append(s, Snapshot{Timestamp: timestamp, State: state})
}

// StateAt returns the snapshot with the greatest timestamp <= timestamp,
// or the zero state when the actor has nothing recorded yet.
func (t *Tracker) StateAt(actorID string, timestamp int64) ir.ActorState {
	s := t.series[actorID]
	// First index whose timestamp is strictly after the query.
	i := sort.Search(len(s), func(i int) bool { return s[i].Timestamp > timestamp })
	if i == 0 {
		return ir.ActorState{}
	}
	return s[i-1].State
}

// HasStateChangeAt reports whether a snapshot exists exactly at timestamp.
func (t *Tracker) HasStateChangeAt(actorID string, timestamp int64) bool {
	s := t.series[actorID]
	i := sort.Search(len(s), func(i int) bool { return s[i].Timestamp >= timestamp })
	return i < len(s) && s[i].Timestamp == timestamp
}

// FirstState returns the earliest recorded snapshot, or the zero state.
// This is the actor's "state at 0": the first thing the capture knew.
func (t *Tracker) FirstState(actorID string) ir.ActorState {
	s := t.series[actorID]
	if len(s) == 0 {
		return ir.ActorState{}
	}
	return s[0].State
}

// Has reports whether the actor has any recorded snapshot.
func (t *Tracker) Has(actorID string) bool {
	return len(t.series[actorID]) > 0
}

// Actors returns all tracked actor ids in sorted order.
func (t *Tracker) Actors() []string {
	ids := make([]string, 0, len(t.series))
	for id := range t.series {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Series returns a copy of the actor's snapshots.
func (t *Tracker) Series(actorID string) []Snapshot {
	return slices.Clone(t.series[actorID])
}
