package engine

import "github.com/roach88/encounterlab/internal/ir"

// Firing describes one trigger match at the moment it is evaluated.
type Firing struct {
	Seq     int64
	RuleID  string
	Matches ir.IRObject
	Line    ir.LogLine // line that caused the firing
}

// Outcome is how a firing resolved.
type Outcome struct {
	Suppressed bool
	Executed   bool
	Output     *ir.TriggerOutput // rendered; nil when nothing was emitted
}

// ResolveFunc is called exactly once when a firing resolves, which may be
// many lines after the firing was created. A returned error aborts replay.
type ResolveFunc func(Outcome) error

// Hook observes trigger firings.
//
// BeforeTrigger runs before the engine checks suppression, condition or
// action, while engine data is still untouched by the firing. The returned
// ResolveFunc, if non-nil, is the completion callback for that firing.
type Hook interface {
	BeforeTrigger(f Firing) ResolveFunc
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(f Firing) ResolveFunc

// BeforeTrigger calls fn(f).
func (fn HookFunc) BeforeTrigger(f Firing) ResolveFunc {
	return fn(f)
}

// Callout is one timeline event delivered to timeline-matched triggers.
type Callout struct {
	Label  string
	TimeMs int64 // timeline position of the entry
}
