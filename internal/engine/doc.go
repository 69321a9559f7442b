// Package engine implements the reference trigger rule engine.
//
// One Engine evaluates one compiled rule set on behalf of one tracked
// player. It owns that player's rule data, a suppression table and a
// queue of deferred actions.
//
// Evaluation Flow:
//  1. Advance(ts) runs deferred actions that are due at ts.
//  2. EvaluateLine checks line-typed rules in declaration order.
//  3. EvaluateCallout checks timeline rules against timeline callouts.
//
// For each match the engine stamps a seq from its Clock, calls every
// Hook's BeforeTrigger, then decides the outcome:
//   - inside a suppression window: resolved suppressed, nothing runs
//   - condition false: resolved not executed
//   - otherwise the action (run operations, Lua script, output) runs now,
//     or is queued for delay_seconds and runs when the replay reaches it
//
// The ResolveFunc returned by a hook is called when the outcome is known.
// For delayed actions that is during a later Advance, so observers see
// the line that was current when the action ran, not the line that caused
// the firing.
//
// Evaluation is strictly single-threaded. No randomness, no wall clock:
// the same lines always produce the same firings and data.
package engine
