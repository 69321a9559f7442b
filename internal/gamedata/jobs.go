// Package gamedata provides the actor and zone metadata lookups used when
// building player-state payloads. Everything here is a pure lookup.
package gamedata

import (
	"fmt"
	"strconv"
	"strings"
)

// Role groups jobs by party function.
type Role string

const (
	RoleNone     Role = "none"
	RoleTank     Role = "tank"
	RoleHealer   Role = "healer"
	RoleDPS      Role = "dps"
	RoleCrafter  Role = "crafter"
	RoleGatherer Role = "gatherer"
)

type jobInfo struct {
	abbr string
	role Role
}

// jobs is indexed by the job enum carried in combatant lines.
var jobs = []jobInfo{
	{"NONE", RoleNone},
	{"GLA", RoleTank}, {"PGL", RoleDPS}, {"MRD", RoleTank}, {"LNC", RoleDPS},
	{"ARC", RoleDPS}, {"CNJ", RoleHealer}, {"THM", RoleDPS},
	{"CRP", RoleCrafter}, {"BSM", RoleCrafter}, {"ARM", RoleCrafter}, {"GSM", RoleCrafter},
	{"LTW", RoleCrafter}, {"WVR", RoleCrafter}, {"ALC", RoleCrafter}, {"CUL", RoleCrafter},
	{"MIN", RoleGatherer}, {"BTN", RoleGatherer}, {"FSH", RoleGatherer},
	{"PLD", RoleTank}, {"MNK", RoleDPS}, {"WAR", RoleTank}, {"DRG", RoleDPS},
	{"BRD", RoleDPS}, {"WHM", RoleHealer}, {"BLM", RoleDPS}, {"ACN", RoleDPS},
	{"SMN", RoleDPS}, {"SCH", RoleHealer}, {"ROG", RoleDPS}, {"NIN", RoleDPS},
	{"MCH", RoleDPS}, {"DRK", RoleTank}, {"AST", RoleHealer}, {"SAM", RoleDPS},
	{"RDM", RoleDPS}, {"BLU", RoleDPS}, {"GNB", RoleTank}, {"DNC", RoleDPS},
	{"RPR", RoleDPS}, {"SGE", RoleHealer}, {"VPR", RoleDPS}, {"PCT", RoleDPS},
}

// JobByID maps a job enum to its abbreviation. Unknown ids map to "NONE".
func JobByID(id int) string {
	if id < 0 || id >= len(jobs) {
		return jobs[0].abbr
	}
	return jobs[id].abbr
}

// JobID maps an abbreviation (case-insensitive) back to its enum.
func JobID(abbr string) (int, bool) {
	abbr = strings.ToUpper(abbr)
	for i, j := range jobs {
		if j.abbr == abbr {
			return i, true
		}
	}
	return 0, false
}

// RoleOf returns the role for a job enum.
func RoleOf(id int) Role {
	if id < 0 || id >= len(jobs) {
		return RoleNone
	}
	return jobs[id].role
}

// ParseZoneID parses a captured hex zone id such as "4A1" or "0x4A1".
func ParseZoneID(hex string) (int64, error) {
	s := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(hex), "0x"), "0X")
	if s == "" {
		return 0, fmt.Errorf("empty zone id")
	}
	id, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse zone id %q: %w", hex, err)
	}
	return id, nil
}

// FormatZoneID renders a zone id in the capture's upper-case hex form.
func FormatZoneID(id int64) string {
	return strings.ToUpper(strconv.FormatInt(id, 16))
}

// Zones maps zone ids to display names, usually collected from the
// ChangeZone lines of a capture.
type Zones map[int64]string

// Name returns the zone name for id, or a placeholder built from the hex id.
func (z Zones) Name(id int64) string {
	if name, ok := z[id]; ok && name != "" {
		return name
	}
	return "Zone " + FormatZoneID(id)
}
