// Package encounter holds one finished, immutable encounter capture.
//
// An Encounter is constructed once from an ordered line sequence plus
// metadata and is never mutated afterwards. Reading a line outside the
// stored range is an invariant violation (UnreachableError), not a
// recoverable condition.
package encounter

import (
	"slices"

	"github.com/roach88/encounterlab/internal/actor"
	"github.com/roach88/encounterlab/internal/ir"
)

// Params carries everything needed to construct an Encounter.
type Params struct {
	ID             string
	StartTimestamp int64
	ZoneID         string // hex, as captured
	ZoneName       string
	Lines          []ir.LogLine
	PartyMembers   []string
	Tracker        *actor.Tracker
}

// Encounter is an immutable encounter capture.
type Encounter struct {
	id       string
	start    int64
	zoneID   string
	zoneName string
	lines    []ir.LogLine
	party    []string
	tracker  *actor.Tracker
}

// New validates and freezes an encounter.
//
// Lines must be in non-decreasing timestamp order. Line indexes are
// reassigned to their position so Index is always the replay cursor.
// If StartTimestamp is zero it defaults to the first line's timestamp.
func New(p Params) (*Encounter, error) {
	lines := make([]ir.LogLine, len(p.Lines))
	for i, l := range p.Lines {
		if i > 0 && l.Timestamp < p.Lines[i-1].Timestamp {
			return nil, &UnreachableError{
				Code:    ErrCodeUnorderedLines,
				Message: "log lines are not in timestamp order",
				Index:   i,
			}
		}
		l.Index = i
		l.Fields = l.Fields.Clone()
		lines[i] = l
	}

	start := p.StartTimestamp
	if start == 0 && len(lines) > 0 {
		start = lines[0].Timestamp
	}

	tracker := p.Tracker
	if tracker == nil {
		tracker = actor.NewTracker()
	}

	return &Encounter{
		id:       p.ID,
		start:    start,
		zoneID:   p.ZoneID,
		zoneName: p.ZoneName,
		lines:    lines,
		party:    slices.Clone(p.PartyMembers),
		tracker:  tracker,
	}, nil
}

// ID returns the encounter identifier (may be empty for ad-hoc encounters).
func (e *Encounter) ID() string { return e.id }

// StartTimestamp returns the encounter start in unix milliseconds.
func (e *Encounter) StartTimestamp() int64 { return e.start }

// ZoneID returns the captured hex zone id.
func (e *Encounter) ZoneID() string { return e.zoneID }

// ZoneName returns the zone name.
func (e *Encounter) ZoneName() string { return e.zoneName }

// Len returns the number of log lines.
func (e *Encounter) Len() int { return len(e.lines) }

// Line returns the line at index i.
// An index outside the stored range returns an UnreachableError.
func (e *Encounter) Line(i int) (ir.LogLine, error) {
	if i < 0 || i >= len(e.lines) {
		return ir.LogLine{}, NewLineOutOfRange(i, len(e.lines))
	}
	return e.lines[i], nil
}

// PartyMembers returns a copy of the party member ids in capture order.
func (e *Encounter) PartyMembers() []string {
	return slices.Clone(e.party)
}

// Tracker exposes the actor state tracker for read-only queries.
func (e *Encounter) Tracker() *actor.Tracker { return e.tracker }

// StateAt delegates to the tracker.
func (e *Encounter) StateAt(actorID string, timestamp int64) ir.ActorState {
	return e.tracker.StateAt(actorID, timestamp)
}

// HasStateChangeAt delegates to the tracker.
func (e *Encounter) HasStateChangeAt(actorID string, timestamp int64) bool {
	return e.tracker.HasStateChangeAt(actorID, timestamp)
}

// Duration returns the span between the first and last line.
func (e *Encounter) Duration() int64 {
	if len(e.lines) == 0 {
		return 0
	}
	return e.lines[len(e.lines)-1].Timestamp - e.lines[0].Timestamp
}
