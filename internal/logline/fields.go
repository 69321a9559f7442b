package logline

import "github.com/roach88/encounterlab/internal/ir"

// layout names the pipe-separated fields of one network line type.
// Fields past the end of the layout are ignored.
type layout struct {
	typ    string
	fields []string
}

// layouts is keyed by the numeric type code at the start of every line.
var layouts = map[string]layout{
	"00": {ir.LineGameLog, []string{"code", "name", "line"}},
	"01": {ir.LineChangeZone, []string{"id", "name"}},
	"02": {ir.LineChangePrimaryPlayer, []string{"id", "name"}},
	"03": {ir.LineAddedCombatant, []string{
		"id", "name", "job", "level", "ownerId", "worldId", "world",
		"npcNameId", "npcBaseId", "currentHp", "hp", "currentMp", "mp",
		"", "", "x", "y", "z", "heading",
	}},
	"04": {ir.LineRemovedCombatant, []string{
		"id", "name", "job", "level", "owner", "", "world",
		"npcNameId", "npcBaseId", "currentHp", "hp", "currentMp", "mp",
		"", "", "x", "y", "z", "heading",
	}},
	"11": {ir.LinePartyList, []string{"count"}},
	"20": {ir.LineStartsUsing, []string{
		"sourceId", "source", "id", "ability", "targetId", "target",
		"castTime", "x", "y", "z", "heading",
	}},
	"21": {ir.LineAbility, []string{
		"sourceId", "source", "id", "ability", "targetId", "target",
		"flags", "damage",
	}},
	"22": {ir.LineAbility, []string{
		"sourceId", "source", "id", "ability", "targetId", "target",
		"flags", "damage",
	}},
	"26": {ir.LineGainsEffect, []string{
		"effectId", "effect", "duration", "sourceId", "source",
		"targetId", "target", "count", "targetMaxHp", "sourceMaxHp",
	}},
	"27": {ir.LineHeadMarker, []string{"targetId", "target", "", "", "id"}},
	"30": {ir.LineLosesEffect, []string{
		"effectId", "effect", "", "sourceId", "source",
		"targetId", "target", "count",
	}},
	"33": {ir.LineActorControl, []string{"instance", "command", "data0", "data1", "data2", "data3"}},
	"39": {ir.LineUpdateHP, []string{
		"id", "name", "currentHp", "hp", "currentMp", "mp",
		"", "", "x", "y", "z", "heading",
	}},
}

// idFields hold actor ids and are normalized to upper-case hex.
var idFields = map[string]bool{
	"id": true, "sourceId": true, "targetId": true, "ownerId": true,
}
