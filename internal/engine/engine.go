package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/roach88/encounterlab/internal/gamedata"
	"github.com/roach88/encounterlab/internal/ir"
)

// Engine evaluates one rule set for one tracked player.
//
// INVARIANTS:
//   - rules slice order NEVER changes after construction
//   - every match produces exactly one BeforeTrigger call and, at most
//     once, one ResolveFunc call
//   - deferred actions run in (due, seq) order, before the rules of the
//     line that makes them due
//
// An Engine is not safe for concurrent use. Perspectives each own one.
type Engine struct {
	rules    []ir.TriggerRule // declaration order
	data     ir.IRObject
	player   ir.ActorState
	clock    *Clock
	queue    *deferredQueue
	suppress *Suppressor
	regexps  *RegexCache
	hooks    []Hook
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegexCache shares a compiled-pattern cache between engines.
func WithRegexCache(c *RegexCache) Option {
	return func(e *Engine) {
		e.regexps = c
	}
}

// WithHook registers a firing observer. Hooks run in registration order.
func WithHook(h Hook) Option {
	return func(e *Engine) {
		e.hooks = append(e.hooks, h)
	}
}

// New creates an Engine with default data for rs.
//
// The trigger slice is copied so later changes to rs cannot reorder
// evaluation.
func New(rs ir.RuleSet, opts ...Option) *Engine {
	rules := make([]ir.TriggerRule, len(rs.Triggers))
	copy(rules, rs.Triggers)

	e := &Engine{
		rules:    rules,
		data:     defaultData(rs.InitData),
		clock:    NewClock(),
		queue:    newDeferredQueue(),
		suppress: NewSuppressor(),
	}

	for _, opt := range opts {
		opt(e)
	}
	if e.regexps == nil {
		e.regexps = NewRegexCache()
	}

	return e
}

// Data returns the live engine data. Callers must Clone before keeping it.
func (e *Engine) Data() ir.IRObject {
	return e.data
}

// Snapshot returns a deep copy of the engine data.
func (e *Engine) Snapshot() ir.IRObject {
	return e.data.Clone()
}

// Pending returns the number of deferred actions not yet run.
func (e *Engine) Pending() int {
	return e.queue.Len()
}

// Advance runs every deferred action due at or before now.
func (e *Engine) Advance(now int64) error {
	for {
		t, ok := e.queue.PopDue(now)
		if !ok {
			return nil
		}
		slog.Debug("running deferred trigger",
			"rule_id", t.ruleID,
			"seq", t.seq,
			"due", t.due,
			"now", now,
		)
		if err := t.run(); err != nil {
			return fmt.Errorf("deferred trigger %s: %w", t.ruleID, err)
		}
	}
}

// EvaluateLine checks every line-typed rule against line in declaration
// order and fires each match.
func (e *Engine) EvaluateLine(ctx context.Context, line ir.LogLine) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, rule := range e.rules {
		matches, ok, err := e.matchRule(rule, line)
		if err != nil {
			logPatternError(rule.ID, err)
			continue
		}
		if !ok {
			continue
		}
		if err := e.fire(rule, matches, line); err != nil {
			return err
		}
	}
	return nil
}

// EvaluateCallout checks every timeline rule against a callout raised
// while line was current.
func (e *Engine) EvaluateCallout(ctx context.Context, c Callout, line ir.LogLine) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, rule := range e.rules {
		matches, ok, err := e.matchCallout(rule, c)
		if err != nil {
			logPatternError(rule.ID, err)
			continue
		}
		if !ok {
			continue
		}
		if err := e.fire(rule, matches, line); err != nil {
			return err
		}
	}
	return nil
}

// fire runs one firing through hooks, suppression, condition and action.
func (e *Engine) fire(rule ir.TriggerRule, matches ir.IRObject, line ir.LogLine) error {
	seq := e.clock.Next()
	resolve := e.beforeTrigger(Firing{
		Seq:     seq,
		RuleID:  rule.ID,
		Matches: matches,
		Line:    line,
	})

	if e.suppress.Suppressed(rule.ID, line.Timestamp) {
		slog.Debug("trigger suppressed", "rule_id", rule.ID, "seq", seq, "player", e.player.ID)
		return resolve(Outcome{Suppressed: true})
	}

	if !e.condition(rule, matches) {
		return resolve(Outcome{})
	}

	e.suppress.Arm(rule.ID, line.Timestamp, rule.SuppressMs)

	action := func() error {
		return resolve(e.execute(rule, matches))
	}

	if rule.DelayMs <= 0 {
		return action()
	}

	e.queue.Push(task{
		due:    line.Timestamp + rule.DelayMs,
		seq:    seq,
		ruleID: rule.ID,
		run:    action,
	})
	return nil
}

// beforeTrigger notifies every hook and combines their callbacks.
func (e *Engine) beforeTrigger(f Firing) ResolveFunc {
	var resolvers []ResolveFunc
	for _, h := range e.hooks {
		if r := h.BeforeTrigger(f); r != nil {
			resolvers = append(resolvers, r)
		}
	}
	return func(o Outcome) error {
		for _, r := range resolvers {
			if err := r(o); err != nil {
				return err
			}
		}
		return nil
	}
}

// condition evaluates the rule's condition for the tracked player.
func (e *Engine) condition(rule ir.TriggerRule, matches ir.IRObject) bool {
	switch rule.Condition {
	case "":
		return true
	case ir.ConditionTargetIsYou:
		return e.player.ID != "" && matches.String("targetId") == e.player.ID
	case ir.ConditionSourceIsYou:
		return e.player.ID != "" && matches.String("sourceId") == e.player.ID
	case ir.ConditionRoleIsTank:
		return gamedata.RoleOf(e.player.Job) == gamedata.RoleTank
	case ir.ConditionRoleIsHealer:
		return gamedata.RoleOf(e.player.Job) == gamedata.RoleHealer
	case ir.ConditionRoleIsDPS:
		return gamedata.RoleOf(e.player.Job) == gamedata.RoleDPS
	default:
		return false
	}
}

// execute applies the rule's run operations and script against a working
// copy of data and commits it only if everything succeeds.
//
// ERROR HANDLING: failures are logged and the firing resolves as not
// executed. Replay continues; retrying would fail the same way.
func (e *Engine) execute(rule ir.TriggerRule, matches ir.IRObject) Outcome {
	next := e.data.Clone()

	scope := ir.IRObject{"matches": matches, "data": next}
	if err := applyOps(rule.ID, rule.Run, next, scope); err != nil {
		slog.Warn("trigger data operation failed",
			"rule_id", rule.ID,
			"player", e.player.ID,
			"error", err,
		)
		return Outcome{}
	}

	var text string
	if rule.Script != "" {
		res, err := runScript(rule.Script, next, matches)
		if err != nil {
			slog.Warn("trigger script failed",
				"rule_id", rule.ID,
				"player", e.player.ID,
				"error", NewScriptError(rule.ID, err),
			)
			return Outcome{}
		}
		if res.skip {
			return Outcome{}
		}
		next = res.data
		text = res.text
	}

	clear(e.data)
	maps.Copy(e.data, next)

	var out *ir.TriggerOutput
	switch {
	case rule.Output != nil:
		if text == "" {
			text = render(rule.Output.Text, ir.IRObject{"matches": matches, "data": e.data})
		}
		out = &ir.TriggerOutput{Severity: rule.Output.Severity, Text: text}
	case text != "":
		out = &ir.TriggerOutput{Severity: ir.SeverityInfo, Text: text}
	}

	slog.Debug("trigger executed", "rule_id", rule.ID, "player", e.player.ID)
	return Outcome{Executed: true, Output: out}
}

func logPatternError(ruleID string, err error) {
	slog.Warn("trigger pattern failed",
		"rule_id", ruleID,
		"error", &RuntimeError{Code: ErrCodeInvalidPattern, Message: err.Error(), RuleID: ruleID},
	)
}
