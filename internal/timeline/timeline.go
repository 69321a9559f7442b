// Package timeline drives scheduled callouts from replayed log lines.
//
// A timeline is an ordered list of entries at fixed offsets from the
// start of a fight. It starts on the first line that matches any sync
// entry (or on the first line at all when no entry syncs) and from then
// on emits every entry whose time has been reached. Later syncs re-anchor
// the timeline when the matching line arrives within the entry's window.
package timeline

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/encounterlab/internal/engine"
	"github.com/roach88/encounterlab/internal/ir"
)

// DefaultWindowMs is the sync window used when an entry sets none.
const DefaultWindowMs = 2500

// Timeline is one perspective's timeline position. Not safe for
// concurrent use.
type Timeline struct {
	entries []ir.TimelineEntry // sorted by TimeMs, stable
	emitted []bool
	regexps *engine.RegexCache
	syncs   bool

	started bool
	base    int64 // log timestamp of timeline position 0
}

// New creates a timeline over entries. cache may be shared with engines.
func New(entries []ir.TimelineEntry, cache *engine.RegexCache) *Timeline {
	sorted := make([]ir.TimelineEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimeMs < sorted[j].TimeMs
	})

	if cache == nil {
		cache = engine.NewRegexCache()
	}

	t := &Timeline{
		entries: sorted,
		emitted: make([]bool, len(sorted)),
		regexps: cache,
	}
	for _, e := range sorted {
		if e.SyncType != "" {
			t.syncs = true
			break
		}
	}
	return t
}

// Started reports whether the timeline has been anchored.
func (t *Timeline) Started() bool { return t.started }

// Position returns the timeline position at log timestamp ts.
// Before the timeline starts the position is -1.
func (t *Timeline) Position(ts int64) int64 {
	if !t.started {
		return -1
	}
	return ts - t.base
}

// OnLogLine advances the timeline to line and returns the callouts that
// became due, in timeline order. Each entry is emitted at most once.
func (t *Timeline) OnLogLine(line ir.LogLine) ([]engine.Callout, error) {
	if len(t.entries) == 0 {
		return nil, nil
	}

	if err := t.sync(line); err != nil {
		return nil, err
	}

	if !t.started {
		if t.syncs {
			return nil, nil
		}
		t.started = true
		t.base = line.Timestamp
	}

	pos := line.Timestamp - t.base
	var out []engine.Callout
	for i, e := range t.entries {
		if e.TimeMs > pos {
			break
		}
		if t.emitted[i] {
			continue
		}
		t.emitted[i] = true
		out = append(out, engine.Callout{Label: e.Label, TimeMs: e.TimeMs})
	}
	return out, nil
}

// sync re-anchors the timeline on the first sync entry line matches.
// Once started, entries only sync within their window of the current
// position; before that any sync entry starts the timeline.
func (t *Timeline) sync(line ir.LogLine) error {
	for i, e := range t.entries {
		if e.SyncType == "" || e.SyncType != line.Type {
			continue
		}
		if t.started {
			window := e.WindowMs
			if window == 0 {
				window = DefaultWindowMs
			}
			pos := line.Timestamp - t.base
			if pos < e.TimeMs-window || pos > e.TimeMs+window {
				continue
			}
		}
		_, ok, err := engine.MatchFields(t.regexps, e.SyncMatch, line.Fields)
		if err != nil {
			return fmt.Errorf("timeline entry %d (%s): %w", i, e.Label, err)
		}
		if !ok {
			continue
		}

		t.base = line.Timestamp - e.TimeMs
		t.started = true

		// Entries jumped over by a forward sync are never emitted.
		for j := 0; j < len(t.entries) && t.entries[j].TimeMs < e.TimeMs; j++ {
			t.emitted[j] = true
		}

		slog.Debug("timeline synced", "label", e.Label, "time_ms", e.TimeMs, "line", line.Index)
		return nil
	}
	return nil
}
