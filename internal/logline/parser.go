// Package logline imports pipe-delimited network log captures into
// immutable encounters.
//
// Each capture line has the shape
//
//	TYPE|TIMESTAMP|field|field|...|HASH
//
// where TYPE is a two or three digit code and TIMESTAMP is RFC 3339 with
// fractional seconds. Lines of unknown type are skipped. Combatant lines
// feed the actor tracker, the last party list line names the party and the
// first zone change names the zone.
package logline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/encounterlab/internal/actor"
	"github.com/roach88/encounterlab/internal/encounter"
	"github.com/roach88/encounterlab/internal/gamedata"
	"github.com/roach88/encounterlab/internal/ir"
)

// maxLineBytes bounds one capture line; ability lines are long.
const maxLineBytes = 1 << 20

// Options controls how a capture becomes an encounter.
type Options struct {
	// ID is stamped on the encounter. Empty leaves it unset.
	ID string

	// StartTimestamp overrides the encounter start (unix ms).
	// Zero uses the first imported line.
	StartTimestamp int64
}

// Stats summarizes one import.
type Stats struct {
	Lines   int `json:"lines"`
	Skipped int `json:"skipped"`
	Actors  int `json:"actors"`
}

// ParseLine parses one capture line.
// ok is false for well-formed lines of a type the importer does not keep.
func ParseLine(raw string) (line ir.LogLine, ok bool, err error) {
	parts := strings.Split(strings.TrimRight(raw, "\r\n"), "|")
	if len(parts) < 2 {
		return ir.LogLine{}, false, fmt.Errorf("malformed line: %q", raw)
	}

	ts, err := time.Parse(time.RFC3339Nano, parts[1])
	if err != nil {
		return ir.LogLine{}, false, fmt.Errorf("parse timestamp %q: %w", parts[1], err)
	}

	lay, known := layouts[parts[0]]
	if !known {
		return ir.LogLine{}, false, nil
	}

	// Drop the trailing integrity hash.
	values := parts[2:]
	if len(values) > 0 {
		values = values[:len(values)-1]
	}

	fields := make(ir.IRObject, len(lay.fields)+1)
	for i, name := range lay.fields {
		if name == "" || i >= len(values) {
			continue
		}
		v := values[i]
		if idFields[name] {
			v = strings.ToUpper(v)
		}
		fields[name] = ir.IRString(v)
	}

	if lay.typ == ir.LinePartyList && len(values) > 1 {
		ids := make(ir.IRArray, 0, len(values)-1)
		for _, id := range values[1:] {
			if id != "" {
				ids = append(ids, ir.IRString(strings.ToUpper(id)))
			}
		}
		fields["ids"] = ids
	}

	return ir.LogLine{
		Timestamp: ts.UnixMilli(),
		Type:      lay.typ,
		Fields:    fields,
		Raw:       raw,
	}, true, nil
}

// Import reads a whole capture and builds an encounter from it.
func Import(ctx context.Context, r io.Reader, opts Options) (*encounter.Encounter, Stats, error) {
	var stats Stats
	b := newBuilder()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		raw := scanner.Text()
		if strings.TrimSpace(raw) == "" {
			continue
		}

		line, ok, err := ParseLine(raw)
		if err != nil {
			return nil, stats, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if !ok {
			stats.Skipped++
			continue
		}
		if err := b.add(line); err != nil {
			return nil, stats, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("read capture: %w", err)
	}

	enc, err := b.build(opts)
	if err != nil {
		return nil, stats, err
	}
	stats.Lines = enc.Len()
	stats.Actors = len(enc.Tracker().Actors())

	slog.Debug("capture imported",
		"lines", stats.Lines,
		"skipped", stats.Skipped,
		"actors", stats.Actors,
		"zone", enc.ZoneName(),
	)
	return enc, stats, nil
}

// builder accumulates lines and derived metadata during an import.
type builder struct {
	lines   []ir.LogLine
	tracker *actor.Tracker
	party   []string
	primary string
	zoneID  string
	zone    string
}

func newBuilder() *builder {
	return &builder{tracker: actor.NewTracker()}
}

func (b *builder) add(line ir.LogLine) error {
	f := line.Fields
	switch line.Type {
	case ir.LineChangeZone:
		if b.zoneID == "" {
			if _, err := gamedata.ParseZoneID(f.String("id")); err != nil {
				return err
			}
			b.zoneID = strings.ToUpper(f.String("id"))
			b.zone = f.String("name")
		}
	case ir.LineChangePrimaryPlayer:
		b.primary = f.String("id")
	case ir.LinePartyList:
		ids, _ := f["ids"].(ir.IRArray)
		party := make([]string, 0, len(ids))
		for _, id := range ids {
			party = append(party, ir.Text(id))
		}
		b.party = party
	case ir.LineAddedCombatant:
		state, err := combatantState(f)
		if err != nil {
			return err
		}
		b.tracker.RecordState(state.ID, line.Timestamp, state)
	case ir.LineUpdateHP:
		id := f.String("id")
		prev := b.tracker.StateAt(id, line.Timestamp)
		state, err := vitalsState(prev, f)
		if err != nil {
			return err
		}
		b.tracker.RecordState(id, line.Timestamp, state)
	}
	b.lines = append(b.lines, line)
	return nil
}

func (b *builder) build(opts Options) (*encounter.Encounter, error) {
	party := b.party
	if len(party) == 0 && b.primary != "" {
		party = []string{b.primary}
	}
	return encounter.New(encounter.Params{
		ID:             opts.ID,
		StartTimestamp: opts.StartTimestamp,
		ZoneID:         b.zoneID,
		ZoneName:       b.zone,
		Lines:          b.lines,
		PartyMembers:   party,
		Tracker:        b.tracker,
	})
}

func combatantState(f ir.IRObject) (ir.ActorState, error) {
	var p numParser
	s := ir.ActorState{
		ID:        f.String("id"),
		Name:      f.String("name"),
		Job:       int(p.hex(f, "job")),
		Level:     int(p.hex(f, "level")),
		CurrentHP: p.dec(f, "currentHp"),
		MaxHP:     p.dec(f, "hp"),
		CurrentMP: p.dec(f, "currentMp"),
		MaxMP:     p.dec(f, "mp"),
		PosX:      p.float(f, "x"),
		PosY:      p.float(f, "y"),
		PosZ:      p.float(f, "z"),
		Heading:   p.float(f, "heading"),
	}
	if p.err != nil {
		return ir.ActorState{}, fmt.Errorf("combatant %s: %w", s.ID, p.err)
	}
	return s, nil
}

func vitalsState(prev ir.ActorState, f ir.IRObject) (ir.ActorState, error) {
	var p numParser
	s := prev
	s.ID = f.String("id")
	if name := f.String("name"); name != "" {
		s.Name = name
	}
	s.CurrentHP = p.dec(f, "currentHp")
	s.MaxHP = p.dec(f, "hp")
	s.CurrentMP = p.dec(f, "currentMp")
	s.MaxMP = p.dec(f, "mp")
	s.PosX = p.float(f, "x")
	s.PosY = p.float(f, "y")
	s.PosZ = p.float(f, "z")
	s.Heading = p.float(f, "heading")
	if p.err != nil {
		return ir.ActorState{}, fmt.Errorf("update hp %s: %w", s.ID, p.err)
	}
	return s, nil
}

// numParser keeps the first conversion error so field extraction reads
// as a flat list. Missing fields parse as zero.
type numParser struct {
	err error
}

func (p *numParser) hex(f ir.IRObject, key string) int64 {
	return p.parse(f, key, func(s string) (int64, error) { return strconv.ParseInt(s, 16, 64) })
}

func (p *numParser) dec(f ir.IRObject, key string) int64 {
	return p.parse(f, key, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
}

func (p *numParser) parse(f ir.IRObject, key string, conv func(string) (int64, error)) int64 {
	s := f.String(key)
	if s == "" || p.err != nil {
		return 0
	}
	n, err := conv(s)
	if err != nil {
		p.err = fmt.Errorf("field %s: %w", key, err)
		return 0
	}
	return n
}

func (p *numParser) float(f ir.IRObject, key string) float64 {
	s := f.String(key)
	if s == "" || p.err != nil {
		return 0
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.err = fmt.Errorf("field %s: %w", key, err)
		return 0
	}
	return n
}
