package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/encounterlab/internal/engine"
	"github.com/roach88/encounterlab/internal/ir"
)

func gameLog(ts int64) ir.LogLine {
	return ir.LogLine{Timestamp: ts, Type: ir.LineGameLog, Fields: ir.IRObject{}}
}

func cast(ts int64, id string) ir.LogLine {
	return ir.LogLine{Timestamp: ts, Type: ir.LineStartsUsing, Fields: ir.IRObject{"id": ir.IRString(id)}}
}

func labels(t *testing.T, tl *Timeline, line ir.LogLine) []string {
	t.Helper()
	callouts, err := tl.OnLogLine(line)
	require.NoError(t, err)
	var out []string
	for _, c := range callouts {
		out = append(out, c.Label)
	}
	return out
}

func TestTimeline_Empty(t *testing.T) {
	tl := New(nil, nil)
	callouts, err := tl.OnLogLine(gameLog(1000))
	require.NoError(t, err)
	assert.Nil(t, callouts)
	assert.False(t, tl.Started())
}

func TestTimeline_StartsOnFirstLineWithoutSyncs(t *testing.T) {
	tl := New([]ir.TimelineEntry{
		{TimeMs: 1200, Label: "B"},
		{TimeMs: 0, Label: "Start"},
		{TimeMs: 500, Label: "A"},
	}, nil)

	assert.Equal(t, int64(-1), tl.Position(1000))
	assert.Equal(t, []string{"Start"}, labels(t, tl, gameLog(1000)))
	assert.Equal(t, int64(500), tl.Position(1500))
	assert.Equal(t, []string{"A"}, labels(t, tl, gameLog(1500)))
	assert.Equal(t, []string{"B"}, labels(t, tl, gameLog(3000)))
	assert.Nil(t, labels(t, tl, gameLog(4000)), "entries are emitted once")
}

func TestTimeline_SyncAndResync(t *testing.T) {
	cache := engine.NewRegexCache()
	tl := New([]ir.TimelineEntry{
		{TimeMs: 0, Label: "Engage", SyncType: ir.LineStartsUsing, SyncMatch: map[string]string{"id": "A3D5"}},
		{TimeMs: 5000, Label: "Raidwide"},
		{TimeMs: 10000, Label: "Wild Charge", SyncType: ir.LineStartsUsing, SyncMatch: map[string]string{"id": "A3D6"}, WindowMs: 2000},
		{TimeMs: 12000, Label: "Enrage"},
	}, cache)

	assert.Nil(t, labels(t, tl, gameLog(500)), "waits for a sync before starting")
	assert.False(t, tl.Started())

	assert.Equal(t, []string{"Engage"}, labels(t, tl, cast(1000, "A3D5")))
	assert.True(t, tl.Started())
	assert.Equal(t, []string{"Raidwide"}, labels(t, tl, gameLog(6000)))

	// Arrives 1s early at position 9000; re-anchors to 10000.
	assert.Equal(t, []string{"Wild Charge"}, labels(t, tl, cast(10000, "A3D6")))
	assert.Equal(t, int64(10000), tl.Position(10000))
	assert.Equal(t, []string{"Enrage"}, labels(t, tl, gameLog(12000)))
}

func TestTimeline_ForwardSyncSkipsEntries(t *testing.T) {
	tl := New([]ir.TimelineEntry{
		{TimeMs: 0, Label: "Engage", SyncType: ir.LineStartsUsing, SyncMatch: map[string]string{"id": "A3D5"}},
		{TimeMs: 3000, Label: "Mid"},
		{TimeMs: 20000, Label: "Phase 2", SyncType: ir.LineStartsUsing, SyncMatch: map[string]string{"id": "A3D7"}, WindowMs: 30000},
	}, nil)

	assert.Equal(t, []string{"Engage"}, labels(t, tl, cast(1000, "A3D5")))
	assert.Equal(t, []string{"Phase 2"}, labels(t, tl, cast(2000, "A3D7")))
	assert.Nil(t, labels(t, tl, gameLog(60000)), "Mid was jumped over")
}

func TestTimeline_SyncOutsideWindowIgnored(t *testing.T) {
	tl := New([]ir.TimelineEntry{
		{TimeMs: 0, Label: "Engage", SyncType: ir.LineStartsUsing, SyncMatch: map[string]string{"id": "A3D5"}},
		{TimeMs: 30000, Label: "Late", SyncType: ir.LineStartsUsing, SyncMatch: map[string]string{"id": "A3D9"}},
	}, nil)

	labels(t, tl, cast(1000, "A3D5"))
	assert.Nil(t, labels(t, tl, cast(2000, "A3D9")), "position 1000 is far outside the default window")
	assert.Equal(t, int64(1000), tl.Position(2000))
}

func TestTimeline_InvalidSyncPattern(t *testing.T) {
	tl := New([]ir.TimelineEntry{
		{TimeMs: 0, Label: "Broken", SyncType: ir.LineStartsUsing, SyncMatch: map[string]string{"id": "("}},
	}, nil)

	_, err := tl.OnLogLine(cast(1000, "A3D5"))
	assert.ErrorContains(t, err, "Broken")
}

func TestTimeline_EntriesCopied(t *testing.T) {
	entries := []ir.TimelineEntry{{TimeMs: 0, Label: "Start"}}
	tl := New(entries, nil)
	entries[0].Label = "mutated"
	assert.Equal(t, []string{"Start"}, labels(t, tl, gameLog(0)))
}
