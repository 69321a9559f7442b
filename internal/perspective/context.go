// Package perspective binds one rule engine to one party member and
// records every trigger firing it produces.
//
// A Context is the only owner of its engine data. Every value that leaves
// a Context (initial data, record snapshots, final data) is a deep copy,
// so nothing one perspective does can be observed through another.
package perspective

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/encounterlab/internal/encounter"
	"github.com/roach88/encounterlab/internal/engine"
	"github.com/roach88/encounterlab/internal/ir"
	"github.com/roach88/encounterlab/internal/timeline"
)

// Cursor exposes the line the replay is currently processing.
// It is resolved when a firing completes, not when it is created.
type Cursor interface {
	Current() (ir.LogLine, error)
}

// Option configures a Context.
type Option func(*options)

type options struct {
	start   int64
	regexps *engine.RegexCache
}

// WithStartTimestamp sets the encounter start used for resolved offsets.
func WithStartTimestamp(ts int64) Option {
	return func(o *options) { o.start = ts }
}

// WithRegexCache shares compiled patterns across perspectives.
func WithRegexCache(c *engine.RegexCache) Option {
	return func(o *options) { o.regexps = c }
}

// Context is one isolated rule engine bound to one actor.
// Not safe for concurrent use.
type Context struct {
	actorID   string
	engine    *engine.Engine
	timeline  *timeline.Timeline
	cursor    Cursor
	start     int64
	records   []*Record
	completed []*Record
}

// New builds a fresh engine for actorID with default data and installs
// the recording hook. tl may be nil when the rule set has no timeline.
func New(actorID string, rs ir.RuleSet, tl *timeline.Timeline, cursor Cursor, opts ...Option) *Context {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.regexps == nil {
		o.regexps = engine.NewRegexCache()
	}
	if tl == nil {
		tl = timeline.New(nil, o.regexps)
	}

	c := &Context{
		actorID:  actorID,
		timeline: tl,
		cursor:   cursor,
		start:    o.start,
	}
	c.engine = engine.New(rs,
		engine.WithRegexCache(o.regexps),
		engine.WithHook(engine.HookFunc(c.beforeTrigger)),
	)
	return c
}

// ActorID returns the bound actor.
func (c *Context) ActorID() string { return c.actorID }

// Data returns the live engine data. Callers must Clone before keeping it.
func (c *Context) Data() ir.IRObject { return c.engine.Data() }

// Snapshot returns a deep copy of the engine data.
func (c *Context) Snapshot() ir.IRObject { return c.engine.Snapshot() }

// OnPlayerStateChanged pushes the bound actor's state into the engine.
// A state without a job is an invariant violation for an analyzed member.
func (c *Context) OnPlayerStateChanged(s ir.ActorState) error {
	if s.Job == 0 {
		return encounter.NewMissingJob(c.actorID, c.currentIndex())
	}
	c.engine.SetPlayer(s)
	return nil
}

// OnPartyChanged replaces the party roster.
func (c *Context) OnPartyChanged(members []engine.PartyMember) {
	c.engine.SetParty(members)
}

// OnZoneChanged records the current zone.
func (c *Context) OnZoneChanged(zoneID int64, name string) {
	c.engine.SetZone(zoneID, name)
}

// OnLogLine feeds one line through the perspective.
//
// Deferred actions due at the line run first, then the timeline sees the
// line exactly once, then line rules are evaluated, then timeline rules
// for any callouts the line produced.
func (c *Context) OnLogLine(ctx context.Context, line ir.LogLine) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.engine.Advance(line.Timestamp); err != nil {
		return err
	}

	callouts, err := c.timeline.OnLogLine(line)
	if err != nil {
		return fmt.Errorf("timeline: %w", err)
	}

	if err := c.engine.EvaluateLine(ctx, line); err != nil {
		return err
	}
	for _, co := range callouts {
		if err := c.engine.EvaluateCallout(ctx, co, line); err != nil {
			return err
		}
	}
	return nil
}

// Records returns every record in creation order.
func (c *Context) Records() []*Record {
	out := make([]*Record, len(c.records))
	copy(out, c.records)
	return out
}

// Completed returns resolved records in the order they resolved.
func (c *Context) Completed() []*Record {
	out := make([]*Record, len(c.completed))
	copy(out, c.completed)
	return out
}

// Pending returns records that have not resolved, in creation order.
func (c *Context) Pending() []*Record {
	var out []*Record
	for _, r := range c.records {
		if r.Pending() {
			out = append(out, r)
		}
	}
	return out
}

// beforeTrigger is the engine hook. It snapshots data before the firing
// is processed and returns the completion callback.
func (c *Context) beforeTrigger(f engine.Firing) engine.ResolveFunc {
	rec := newRecord(f, c.engine.Snapshot())
	c.records = append(c.records, rec)

	return func(o engine.Outcome) error {
		current, err := c.cursor.Current()
		if err != nil {
			return err
		}
		if c.engine.Player().Job == 0 {
			return encounter.NewMissingJob(c.actorID, current.Index)
		}

		rec.resolve(o, current, c.start, c.engine.Snapshot())
		c.completed = append(c.completed, rec)

		slog.Debug("trigger resolved",
			"actor", c.actorID,
			"rule_id", rec.RuleID,
			"seq", rec.Seq,
			"suppressed", rec.Suppressed,
			"executed", rec.Executed,
			"resolved_offset", rec.ResolvedOffset,
		)
		return nil
	}
}

func (c *Context) currentIndex() int {
	if line, err := c.cursor.Current(); err == nil {
		return line.Index
	}
	return -1
}
