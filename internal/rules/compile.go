package rules

import (
	"fmt"
	"math"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/encounterlab/internal/ir"
)

// CompileRuleSet parses a CUE value into a RuleSet.
// Uses CUE SDK's Go API directly.
//
// The CUE value should be the rule set struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`ruleset: windward: { zones: [0x4A1], triggers: [...] }`)
//	rs, err := CompileRuleSet(v.LookupPath(cue.ParsePath("ruleset.windward")))
func CompileRuleSet(v cue.Value) (*ir.RuleSet, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	rs := &ir.RuleSet{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		rs.ID = labels[len(labels)-1].String()
	}

	zones, err := parseZones(v)
	if err != nil {
		return nil, err
	}
	rs.ZoneIDs = zones

	if initVal := v.LookupPath(cue.ParsePath("init_data")); initVal.Exists() {
		data, err := decodeObject(initVal, "init_data")
		if err != nil {
			return nil, err
		}
		rs.InitData = data
	}

	rs.Triggers, err = parseTriggers(v)
	if err != nil {
		return nil, err
	}

	rs.Timeline, err = parseTimeline(v)
	if err != nil {
		return nil, err
	}

	if len(rs.Triggers) == 0 && len(rs.Timeline) == 0 {
		return nil, &CompileError{
			Field:   "triggers",
			Message: "a rule set needs at least one trigger or timeline entry",
			Pos:     v.Pos(),
		}
	}

	return rs, nil
}

// parseZones reads the zone list. Hex literals (0x4A1) are plain CUE ints.
func parseZones(v cue.Value) ([]int64, error) {
	zonesVal := v.LookupPath(cue.ParsePath("zones"))
	if !zonesVal.Exists() {
		return nil, &CompileError{
			Field:   "zones",
			Message: "zones is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := zonesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var zones []int64
	for iter.Next() {
		id, err := iter.Value().Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		zones = append(zones, id)
	}
	return zones, nil
}

// parseTriggers reads triggers in declaration order.
func parseTriggers(v cue.Value) ([]ir.TriggerRule, error) {
	trigVal := v.LookupPath(cue.ParsePath("triggers"))
	if !trigVal.Exists() {
		return nil, nil
	}

	iter, err := trigVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var triggers []ir.TriggerRule
	for i := 0; iter.Next(); i++ {
		rule, err := parseTrigger(iter.Value(), fmt.Sprintf("triggers[%d]", i))
		if err != nil {
			return nil, err
		}
		triggers = append(triggers, rule)
	}
	return triggers, nil
}

func parseTrigger(v cue.Value, field string) (ir.TriggerRule, error) {
	var rule ir.TriggerRule
	var err error

	if rule.ID, err = requiredString(v, "id", field); err != nil {
		return rule, err
	}
	if rule.Type, err = optionalString(v, "type"); err != nil {
		return rule, err
	}
	if rule.Timeline, err = optionalString(v, "timeline"); err != nil {
		return rule, err
	}
	if rule.Condition, err = optionalString(v, "condition"); err != nil {
		return rule, err
	}
	if rule.Script, err = optionalString(v, "script"); err != nil {
		return rule, err
	}

	if rule.Match, err = parseMatch(v, "match"); err != nil {
		return rule, err
	}

	if rule.SuppressMs, err = optionalSeconds(v, "suppress_seconds", field); err != nil {
		return rule, err
	}
	if rule.DelayMs, err = optionalSeconds(v, "delay_seconds", field); err != nil {
		return rule, err
	}

	if outVal := v.LookupPath(cue.ParsePath("output")); outVal.Exists() {
		out := &ir.TriggerOutput{Severity: ir.SeverityInfo}
		if sev, err := optionalString(outVal, "severity"); err != nil {
			return rule, err
		} else if sev != "" {
			out.Severity = sev
		}
		if out.Text, err = requiredString(outVal, "text", field+".output"); err != nil {
			return rule, err
		}
		rule.Output = out
	}

	if runVal := v.LookupPath(cue.ParsePath("run")); runVal.Exists() {
		runIter, err := runVal.List()
		if err != nil {
			return rule, formatCUEError(err)
		}
		for j := 0; runIter.Next(); j++ {
			opVal := runIter.Value()
			opField := fmt.Sprintf("%s.run[%d]", field, j)
			var op ir.DataOp
			if op.Op, err = requiredString(opVal, "op", opField); err != nil {
				return rule, err
			}
			if op.Key, err = requiredString(opVal, "key", opField); err != nil {
				return rule, err
			}
			if op.Value, err = optionalString(opVal, "value"); err != nil {
				return rule, err
			}
			rule.Run = append(rule.Run, op)
		}
	}

	return rule, nil
}

// parseTimeline reads timeline entries in declaration order.
func parseTimeline(v cue.Value) ([]ir.TimelineEntry, error) {
	tlVal := v.LookupPath(cue.ParsePath("timeline"))
	if !tlVal.Exists() {
		return nil, nil
	}

	iter, err := tlVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var entries []ir.TimelineEntry
	for i := 0; iter.Next(); i++ {
		ev := iter.Value()
		field := fmt.Sprintf("timeline[%d]", i)

		var entry ir.TimelineEntry
		timeVal := ev.LookupPath(cue.ParsePath("time"))
		if !timeVal.Exists() {
			return nil, &CompileError{Field: field + ".time", Message: "time is required", Pos: ev.Pos()}
		}
		if entry.TimeMs, err = secondsToMs(timeVal, field+".time"); err != nil {
			return nil, err
		}
		if entry.Label, err = requiredString(ev, "label", field); err != nil {
			return nil, err
		}
		if entry.WindowMs, err = optionalSeconds(ev, "window", field); err != nil {
			return nil, err
		}

		if syncVal := ev.LookupPath(cue.ParsePath("sync")); syncVal.Exists() {
			if entry.SyncType, err = requiredString(syncVal, "type", field+".sync"); err != nil {
				return nil, err
			}
			if entry.SyncMatch, err = parseMatch(syncVal, "match"); err != nil {
				return nil, err
			}
		}

		entries = append(entries, entry)
	}
	return entries, nil
}

// parseMatch reads a field-name to regexp map.
func parseMatch(v cue.Value, name string) (map[string]string, error) {
	matchVal := v.LookupPath(cue.ParsePath(name))
	if !matchVal.Exists() {
		return nil, nil
	}

	iter, err := matchVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	match := make(map[string]string)
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		match[iter.Label()] = s
	}
	return match, nil
}

// decodeObject converts a CUE struct into an IR object. Floats are rejected.
func decodeObject(v cue.Value, field string) (ir.IRObject, error) {
	var raw any
	if err := v.Decode(&raw); err != nil {
		return nil, formatCUEError(err)
	}
	val, err := ir.FromGo(raw)
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	obj, ok := val.(ir.IRObject)
	if !ok {
		return nil, &CompileError{Field: field, Message: "must be a struct", Pos: v.Pos()}
	}
	return obj, nil
}

func requiredString(v cue.Value, name, field string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(name))
	if !sv.Exists() {
		return "", &CompileError{
			Field:   field + "." + name,
			Message: name + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, name string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(name))
	if !sv.Exists() {
		return "", nil
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalSeconds(v cue.Value, name, field string) (int64, error) {
	sv := v.LookupPath(cue.ParsePath(name))
	if !sv.Exists() {
		return 0, nil
	}
	return secondsToMs(sv, field+"."+name)
}

// secondsToMs converts a CUE number of seconds into whole milliseconds.
// Durations are the one place fractional numbers are accepted; they never
// reach the IR as floats.
func secondsToMs(v cue.Value, field string) (int64, error) {
	f, err := v.Float64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	if f < 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("must be a non-negative number of seconds, got %v", f),
			Pos:     v.Pos(),
		}
	}
	ms := math.Round(f * 1000)
	if ms >= math.MaxInt64 {
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("must be at most %d seconds, got %v", int64(maxSeconds), f),
			Pos:     v.Pos(),
		}
	}
	return int64(ms), nil
}

// maxSeconds is the longest duration whose milliseconds fit in int64.
const maxSeconds = math.MaxInt64 / 1000

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
