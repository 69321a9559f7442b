package engine

import (
	"github.com/roach88/encounterlab/internal/gamedata"
	"github.com/roach88/encounterlab/internal/ir"
)

// PartyMember is one roster entry pushed with SetParty.
type PartyMember struct {
	ID   string
	Name string
	Job  int
}

// defaultData builds the data an engine starts with: the seeded keys plus
// the rule set's init data. Init data never overrides seeded keys.
func defaultData(init ir.IRObject) ir.IRObject {
	data := init.Clone()
	if data == nil {
		data = ir.IRObject{}
	}
	data["me"] = ir.IRString("")
	data["job"] = ir.IRString(gamedata.JobByID(0))
	data["role"] = ir.IRString(string(gamedata.RoleNone))
	data["party"] = ir.IRArray{}
	data["zone_id"] = ir.IRInt(0)
	data["zone_name"] = ir.IRString("")
	data["player"] = ir.IRObject{}
	return data
}

// playerObject renders an actor state for engine data.
// Positions are stored as integer hundredths.
func playerObject(s ir.ActorState) ir.IRObject {
	return ir.IRObject{
		"id":         ir.IRString(s.ID),
		"name":       ir.IRString(s.Name),
		"job":        ir.IRString(gamedata.JobByID(s.Job)),
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

// SetPlayer pushes the tracked player's state into engine data.
func (e *Engine) SetPlayer(s ir.ActorState) {
	e.player = s
	e.data["me"] = ir.IRString(s.Name)
	e.data["job"] = ir.IRString(gamedata.JobByID(s.Job))
	e.data["role"] = ir.IRString(string(gamedata.RoleOf(s.Job)))
	e.data["player"] = playerObject(s)
}

// Player returns the last state pushed with SetPlayer.
func (e *Engine) Player() ir.ActorState {
	return e.player
}

// SetParty replaces the party roster in engine data.
func (e *Engine) SetParty(members []PartyMember) {
	party := make(ir.IRArray, 0, len(members))
	for _, m := range members {
		party = append(party, ir.IRObject{
			"id":   ir.IRString(m.ID),
			"name": ir.IRString(m.Name),
			"job":  ir.IRString(gamedata.JobByID(m.Job)),
			"role": ir.IRString(string(gamedata.RoleOf(m.Job))),
		})
	}
	e.data["party"] = party
}

// SetZone records the current zone in engine data.
func (e *Engine) SetZone(id int64, name string) {
	e.data["zone_id"] = ir.IRInt(id)
	e.data["zone_name"] = ir.IRString(name)
}
