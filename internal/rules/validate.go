package rules

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/encounterlab/internal/engine"
	"github.com/roach88/encounterlab/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Rule set errors (E100-E109)
	ErrNoZones       = "E100" // rule set applies to no zone
	ErrDuplicateZone = "E101" // zone listed twice

	// Trigger errors (E110-E129)
	ErrTriggerIDEmpty     = "E110" // id is required
	ErrDuplicateTriggerID = "E111" // id used twice in one rule set
	ErrTriggerSource      = "E112" // exactly one of type/timeline
	ErrUnknownLineType    = "E113" // type is not a known line type
	ErrInvalidPattern     = "E114" // match or timeline regexp does not compile
	ErrUnknownCondition   = "E115" // condition is not recognized
	ErrInvalidSeverity    = "E116" // output severity is not recognized
	ErrInvalidDataOp      = "E117" // run entry has an unknown op or empty key
	ErrInvalidScript      = "E118" // script does not parse
	ErrInvalidTemplate    = "E119" // placeholder does not start with matches. or data.

	// Timeline errors (E130-E139)
	ErrTimelineLabelEmpty = "E130" // label is required
	ErrInvalidSync        = "E131" // sync type unknown or pattern invalid
)

// ValidationError represents a rule set validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

var (
	conditions = []string{
		ir.ConditionTargetIsYou,
		ir.ConditionSourceIsYou,
		ir.ConditionRoleIsTank,
		ir.ConditionRoleIsHealer,
		ir.ConditionRoleIsDPS,
	}
	severities = []string{ir.SeverityInfo, ir.SeverityAlert, ir.SeverityAlarm}
	dataOps    = []string{ir.OpSet, ir.OpIncr, ir.OpAppend, ir.OpDelete}
)

// Validate checks a compiled rule set.
// Returns all errors found (does not fail-fast).
func Validate(rs *ir.RuleSet) []ValidationError {
	var errs []ValidationError

	if len(rs.ZoneIDs) == 0 {
		errs = append(errs, ValidationError{
			Field:   "zones",
			Message: "at least one zone is required",
			Code:    ErrNoZones,
		})
	}
	seenZones := make(map[int64]bool)
	for i, z := range rs.ZoneIDs {
		if seenZones[z] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("zones[%d]", i),
				Message: fmt.Sprintf("duplicate zone 0x%X", z),
				Code:    ErrDuplicateZone,
			})
		}
		seenZones[z] = true
	}

	ids := make(map[string]bool)
	for i, rule := range rs.Triggers {
		field := fmt.Sprintf("triggers[%d]", i)
		errs = append(errs, validateTrigger(rule, field)...)

		if rule.ID != "" {
			if ids[rule.ID] {
				errs = append(errs, ValidationError{
					Field:   field + ".id",
					Message: fmt.Sprintf("duplicate trigger id: %q", rule.ID),
					Code:    ErrDuplicateTriggerID,
				})
			}
			ids[rule.ID] = true
		}
	}

	for i, entry := range rs.Timeline {
		errs = append(errs, validateTimelineEntry(entry, fmt.Sprintf("timeline[%d]", i))...)
	}

	return errs
}

func validateTrigger(rule ir.TriggerRule, field string) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(rule.ID) == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".id",
			Message: "id is required and must be non-empty",
			Code:    ErrTriggerIDEmpty,
		})
	}

	switch {
	case rule.Type == "" && rule.Timeline == "":
		errs = append(errs, ValidationError{
			Field:   field,
			Message: "one of type or timeline is required",
			Code:    ErrTriggerSource,
		})
	case rule.Type != "" && rule.Timeline != "":
		errs = append(errs, ValidationError{
			Field:   field,
			Message: "type and timeline are mutually exclusive",
			Code:    ErrTriggerSource,
		})
	case rule.Timeline != "":
		errs = append(errs, checkPattern(rule.Timeline, field+".timeline")...)
		if len(rule.Match) > 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".match",
				Message: "timeline triggers match labels, not fields",
				Code:    ErrTriggerSource,
			})
		}
	}

	if rule.Type != "" && !slices.Contains(ir.LineTypes, rule.Type) {
		errs = append(errs, ValidationError{
			Field:   field + ".type",
			Message: fmt.Sprintf("unknown line type %q", rule.Type),
			Code:    ErrUnknownLineType,
		})
	}

	for _, k := range sortedKeys(rule.Match) {
		errs = append(errs, checkPattern(rule.Match[k], field+".match."+k)...)
	}

	if rule.Condition != "" && !slices.Contains(conditions, rule.Condition) {
		errs = append(errs, ValidationError{
			Field:   field + ".condition",
			Message: fmt.Sprintf("unknown condition %q (want one of %s)", rule.Condition, strings.Join(conditions, ", ")),
			Code:    ErrUnknownCondition,
		})
	}

	if rule.Output != nil {
		if !slices.Contains(severities, rule.Output.Severity) {
			errs = append(errs, ValidationError{
				Field:   field + ".output.severity",
				Message: fmt.Sprintf("unknown severity %q", rule.Output.Severity),
				Code:    ErrInvalidSeverity,
			})
		}
		errs = append(errs, checkTemplate(rule.Output.Text, field+".output.text")...)
	}

	for j, op := range rule.Run {
		opField := fmt.Sprintf("%s.run[%d]", field, j)
		if !slices.Contains(dataOps, op.Op) {
			errs = append(errs, ValidationError{
				Field:   opField + ".op",
				Message: fmt.Sprintf("unknown op %q", op.Op),
				Code:    ErrInvalidDataOp,
			})
		}
		if op.Key == "" {
			errs = append(errs, ValidationError{
				Field:   opField + ".key",
				Message: "key is required",
				Code:    ErrInvalidDataOp,
			})
		}
		errs = append(errs, checkTemplate(op.Value, opField+".value")...)
	}

	if rule.Script != "" {
		if err := engine.CheckScript(rule.Script); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".script",
				Message: err.Error(),
				Code:    ErrInvalidScript,
			})
		}
	}

	return errs
}

func validateTimelineEntry(entry ir.TimelineEntry, field string) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(entry.Label) == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".label",
			Message: "label is required and must be non-empty",
			Code:    ErrTimelineLabelEmpty,
		})
	}

	if entry.SyncType == "" {
		if len(entry.SyncMatch) > 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".sync",
				Message: "sync match without a sync type",
				Code:    ErrInvalidSync,
			})
		}
		return errs
	}

	if !slices.Contains(ir.LineTypes, entry.SyncType) {
		errs = append(errs, ValidationError{
			Field:   field + ".sync.type",
			Message: fmt.Sprintf("unknown line type %q", entry.SyncType),
			Code:    ErrInvalidSync,
		})
	}
	for _, k := range sortedKeys(entry.SyncMatch) {
		for _, e := range checkPattern(entry.SyncMatch[k], field+".sync.match."+k) {
			e.Code = ErrInvalidSync
			errs = append(errs, e)
		}
	}
	return errs
}

func checkPattern(pattern, field string) []ValidationError {
	if _, err := regexp.Compile(`^(?:` + pattern + `)$`); err != nil {
		return []ValidationError{{
			Field:   field,
			Message: err.Error(),
			Code:    ErrInvalidPattern,
		}}
	}
	return nil
}

func checkTemplate(tmpl, field string) []ValidationError {
	var errs []ValidationError
	for _, path := range engine.Placeholders(tmpl) {
		if !strings.HasPrefix(path, "matches.") && !strings.HasPrefix(path, "data.") {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("placeholder ${%s} must start with matches. or data.", path),
				Code:    ErrInvalidTemplate,
			})
		}
	}
	return errs
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
