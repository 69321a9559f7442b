package ir

// Log line types produced by the capture parser.
const (
	LineGameLog             = "GameLog"
	LineChangeZone          = "ChangeZone"
	LineChangePrimaryPlayer = "ChangePrimaryPlayer"
	LineAddedCombatant      = "AddedCombatant"
	LineRemovedCombatant    = "RemovedCombatant"
	LinePartyList           = "PartyList"
	LineStartsUsing         = "StartsUsing"
	LineAbility             = "Ability"
	LineGainsEffect         = "GainsEffect"
	LineLosesEffect         = "LosesEffect"
	LineHeadMarker          = "HeadMarker"
	LineActorControl        = "ActorControl"
	LineUpdateHP            = "UpdateHP"
)

// LineTypes lists every line type a trigger may match.
var LineTypes = []string{
	LineGameLog, LineChangeZone, LineChangePrimaryPlayer, LineAddedCombatant,
	LineRemovedCombatant, LinePartyList, LineStartsUsing, LineAbility,
	LineGainsEffect, LineLosesEffect, LineHeadMarker, LineActorControl,
	LineUpdateHP,
}

// LogLine is one immutable record of a captured encounter.
// Index is the position inside the encounter and the sole replay cursor.
type LogLine struct {
	Index     int      `json:"index"`
	Timestamp int64    `json:"timestamp"` // unix milliseconds
	Type      string   `json:"type"`
	Fields    IRObject `json:"fields"`
	Raw       string   `json:"raw,omitempty"`
}

// Object renders the line as an IR tree for reports and digests.
// Fields are cloned; the result shares nothing with the line.
func (l LogLine) Object() IRObject {
	fields := l.Fields.Clone()
	if fields == nil {
		fields = IRObject{}
	}
	return IRObject{
		"index":     IRInt(l.Index),
		"timestamp": IRInt(l.Timestamp),
		"type":      IRString(l.Type),
		"fields":    fields,
	}
}

// ActorState is one snapshot of a tracked actor.
// The zero value is the "unknown" state returned before the first snapshot.
type ActorState struct {
	ID        string  `json:"id" yaml:"id"`
	Name      string  `json:"name" yaml:"name"`
	Job       int     `json:"job" yaml:"job"`
	Level     int     `json:"level" yaml:"level"`
	CurrentHP int64   `json:"current_hp" yaml:"current_hp"`
	MaxHP     int64   `json:"max_hp" yaml:"max_hp"`
	CurrentMP int64   `json:"current_mp" yaml:"current_mp"`
	MaxMP     int64   `json:"max_mp" yaml:"max_mp"`
	PosX      float64 `json:"pos_x" yaml:"pos_x"`
	PosY      float64 `json:"pos_y" yaml:"pos_y"`
	PosZ      float64 `json:"pos_z" yaml:"pos_z"`
	Heading   float64 `json:"heading" yaml:"heading"`
}

// IsZero reports whether s is the unknown state.
func (s ActorState) IsZero() bool {
	return s == ActorState{}
}

// Output severities, in increasing urgency.
const (
	SeverityInfo  = "info"
	SeverityAlert = "alert"
	SeverityAlarm = "alarm"
)

// Trigger conditions. The empty condition always holds.
const (
	ConditionTargetIsYou  = "target_is_you"
	ConditionSourceIsYou  = "source_is_you"
	ConditionRoleIsTank   = "role_is_tank"
	ConditionRoleIsHealer = "role_is_healer"
	ConditionRoleIsDPS    = "role_is_dps"
)

// Data operation kinds for TriggerRule.Run.
const (
	OpSet    = "set"
	OpIncr   = "incr"
	OpAppend = "append"
	OpDelete = "delete"
)

// TriggerOutput is the callout produced by an executed trigger.
type TriggerOutput struct {
	Severity string `json:"severity"`
	Text     string `json:"text"` // template: ${matches.x}, ${data.x}
}

// DataOp mutates perspective data when a trigger executes.
type DataOp struct {
	Op    string `json:"op"`
	Key   string `json:"key"`
	Value string `json:"value,omitempty"` // template
}

// TriggerRule is one compiled trigger definition.
//
// Exactly one of Type or Timeline is set: Type matches log lines of that
// type whose Fields satisfy Match; Timeline matches timeline callout labels.
// Match values are anchored regular expressions.
type TriggerRule struct {
	ID         string            `json:"id"`
	Type       string            `json:"type,omitempty"`
	Match      map[string]string `json:"match,omitempty"`
	Timeline   string            `json:"timeline,omitempty"`
	Condition  string            `json:"condition,omitempty"`
	SuppressMs int64             `json:"suppress_ms,omitempty"`
	DelayMs    int64             `json:"delay_ms,omitempty"`
	Output     *TriggerOutput    `json:"output,omitempty"`
	Run        []DataOp          `json:"run,omitempty"`
	Script     string            `json:"script,omitempty"` // Lua source
}

// TimelineEntry is one scheduled timeline event.
// If SyncType is set, a matching line re-synchronizes the timeline to Time
// when it arrives within WindowMs of the expected position.
type TimelineEntry struct {
	TimeMs    int64             `json:"time_ms"`
	Label     string            `json:"label"`
	SyncType  string            `json:"sync_type,omitempty"`
	SyncMatch map[string]string `json:"sync_match,omitempty"`
	WindowMs  int64             `json:"window_ms,omitempty"`
}

// RuleSet is the ordered trigger list and timeline for one zone.
// Trigger order is declaration order and determines evaluation order.
type RuleSet struct {
	ID       string          `json:"id"`
	ZoneIDs  []int64         `json:"zone_ids"`
	InitData IRObject        `json:"init_data,omitempty"`
	Triggers []TriggerRule   `json:"triggers"`
	Timeline []TimelineEntry `json:"timeline,omitempty"`
}
