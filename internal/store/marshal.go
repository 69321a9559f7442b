package store

import (
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"

	"github.com/roach88/encounterlab/internal/actor"
	"github.com/roach88/encounterlab/internal/encounter"
	"github.com/roach88/encounterlab/internal/ir"
)

// encounterPayload is the compressed part of an encounter row.
// Actor states carry float positions, so the payload uses encoding/json
// rather than canonical JSON.
type encounterPayload struct {
	Lines  []ir.LogLine                `json:"lines"`
	Actors map[string][]actor.Snapshot `json:"actors"`
}

func marshalEncounter(enc *encounter.Encounter) ([]byte, error) {
	p := encounterPayload{
		Lines:  make([]ir.LogLine, 0, enc.Len()),
		Actors: make(map[string][]actor.Snapshot),
	}
	for i := range enc.Len() {
		line, err := enc.Line(i)
		if err != nil {
			return nil, err
		}
		p.Lines = append(p.Lines, line)
	}
	tracker := enc.Tracker()
	for _, id := range tracker.Actors() {
		p.Actors[id] = tracker.Series(id)
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal encounter payload: %w", err)
	}
	return snappy.Encode(nil, raw), nil
}

func unmarshalEncounter(blob []byte) (encounterPayload, error) {
	var p encounterPayload
	raw, err := snappy.Decode(nil, blob)
	if err != nil {
		return p, fmt.Errorf("decompress encounter payload: %w", err)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("unmarshal encounter payload: %w", err)
	}
	return p, nil
}

// marshalObject converts an IRObject to compressed canonical JSON.
func marshalObject(obj ir.IRObject) ([]byte, error) {
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return nil, fmt.Errorf("marshal object: %w", err)
	}
	return snappy.Encode(nil, data), nil
}

// unmarshalObject reverses marshalObject.
func unmarshalObject(blob []byte) (ir.IRObject, error) {
	data, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, fmt.Errorf("decompress object: %w", err)
	}
	var obj ir.IRObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("unmarshal object: %w", err)
	}
	return obj, nil
}

// EncounterDigest returns the content digest of an encounter: its
// metadata, every line and every actor snapshot. Positions are digested
// as integer hundredths.
func EncounterDigest(enc *encounter.Encounter) (string, error) {
	lines := make(ir.IRArray, 0, enc.Len())
	for i := range enc.Len() {
		line, err := enc.Line(i)
		if err != nil {
			return "", err
		}
		lines = append(lines, line.Object())
	}

	actors := ir.IRObject{}
	tracker := enc.Tracker()
	for _, id := range tracker.Actors() {
		var series ir.IRArray
		for _, snap := range tracker.Series(id) {
			series = append(series, ir.IRObject{
				"timestamp": ir.IRInt(snap.Timestamp),
				"state":     stateObject(snap.State),
			})
		}
		actors[id] = series
	}

	party := ir.IRArray{}
	for _, id := range enc.PartyMembers() {
		party = append(party, ir.IRString(id))
	}

	return ir.Digest(ir.DomainEncounter, ir.IRObject{
		"start_timestamp": ir.IRInt(enc.StartTimestamp()),
		"zone_id":         ir.IRString(enc.ZoneID()),
		"zone_name":       ir.IRString(enc.ZoneName()),
		"party":           party,
		"lines":           lines,
		"actors":          actors,
	})
}

func stateObject(s ir.ActorState) ir.IRObject {
	return ir.IRObject{
		"id":         ir.IRString(s.ID),
		"name":       ir.IRString(s.Name),
		"job":        ir.IRInt(s.Job),
		"level":      ir.IRInt(s.Level),
		"current_hp": ir.IRInt(s.CurrentHP),
		"max_hp":     ir.IRInt(s.MaxHP),
		"current_mp": ir.IRInt(s.CurrentMP),
		"max_mp":     ir.IRInt(s.MaxMP),
		"x":          ir.Centi(s.PosX),
		"y":          ir.Centi(s.PosY),
		"z":          ir.Centi(s.PosZ),
		"heading":    ir.Centi(s.Heading),
	}
}
