package rules

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/encounterlab/internal/ir"
)

func compile(t *testing.T, src, path string) (*ir.RuleSet, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	return CompileRuleSet(v.LookupPath(cue.ParsePath(path)))
}

func TestCompileRuleSetBasic(t *testing.T) {
	rs, err := compile(t, `
		ruleset: windward: {
			zones: [0x4A1, 1186]
			init_data: { charges: 0, seen: [] }
			triggers: [{
				id: "wild-charge"
				type: "StartsUsing"
				match: { id: "A3D5", source: "(?P<boss>.*)" }
				condition: "target_is_you"
				suppress_seconds: 2.5
				delay_seconds: 1
				output: { severity: "alarm", text: "Charge from ${matches.boss}" }
				run: [{ op: "incr", key: "charges" }, { op: "append", key: "seen", value: "${matches.id}" }]
			}, {
				id: "tl-charge"
				timeline: "Wild Charge"
				output: { text: "soon" }
			}]
			timeline: [{
				time: 12.3
				label: "Wild Charge"
				window: 5
				sync: { type: "StartsUsing", match: { id: "A3D5" } }
			}]
		}
	`, "ruleset.windward")
	require.NoError(t, err)

	assert.Equal(t, "windward", rs.ID)
	assert.Equal(t, []int64{0x4A1, 1186}, rs.ZoneIDs)
	assert.Equal(t, ir.IRInt(0), rs.InitData["charges"])
	assert.Equal(t, ir.IRArray{}, rs.InitData["seen"])

	require.Len(t, rs.Triggers, 2)
	first := rs.Triggers[0]
	assert.Equal(t, "wild-charge", first.ID)
	assert.Equal(t, ir.LineStartsUsing, first.Type)
	assert.Equal(t, map[string]string{"id": "A3D5", "source": "(?P<boss>.*)"}, first.Match)
	assert.Equal(t, ir.ConditionTargetIsYou, first.Condition)
	assert.Equal(t, int64(2500), first.SuppressMs)
	assert.Equal(t, int64(1000), first.DelayMs)
	assert.Equal(t, &ir.TriggerOutput{Severity: ir.SeverityAlarm, Text: "Charge from ${matches.boss}"}, first.Output)
	assert.Equal(t, []ir.DataOp{
		{Op: ir.OpIncr, Key: "charges"},
		{Op: ir.OpAppend, Key: "seen", Value: "${matches.id}"},
	}, first.Run)

	second := rs.Triggers[1]
	assert.Equal(t, "tl-charge", second.ID)
	assert.Equal(t, "Wild Charge", second.Timeline)
	assert.Equal(t, ir.SeverityInfo, second.Output.Severity, "severity defaults to info")

	require.Len(t, rs.Timeline, 1)
	assert.Equal(t, ir.TimelineEntry{
		TimeMs:    12300,
		Label:     "Wild Charge",
		SyncType:  ir.LineStartsUsing,
		SyncMatch: map[string]string{"id": "A3D5"},
		WindowMs:  5000,
	}, rs.Timeline[0])
}

func TestCompileRuleSetPreservesDeclarationOrder(t *testing.T) {
	rs, err := compile(t, `
		ruleset: order: {
			zones: [1]
			triggers: [
				{ id: "zeta", type: "GameLog" },
				{ id: "alpha", type: "GameLog" },
				{ id: "mu", type: "GameLog" },
			]
		}
	`, "ruleset.order")
	require.NoError(t, err)

	var ids []string
	for _, r := range rs.Triggers {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mu"}, ids)
}

func TestCompileRuleSetScript(t *testing.T) {
	rs, err := compile(t, `
		ruleset: s: {
			zones: [1]
			triggers: [{
				id: "count"
				type: "Ability"
				script: """
					data.hits = (data.hits or 0) + 1
					return "hit " .. data.hits
					"""
			}]
		}
	`, "ruleset.s")
	require.NoError(t, err)
	assert.Contains(t, rs.Triggers[0].Script, "data.hits")
}

func TestCompileRuleSetErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "missing zones",
			src:  `ruleset: x: { triggers: [{ id: "a", type: "GameLog" }] }`,
			want: "zones is required",
		},
		{
			name: "empty",
			src:  `ruleset: x: { zones: [1] }`,
			want: "at least one trigger or timeline entry",
		},
		{
			name: "missing id",
			src:  `ruleset: x: { zones: [1], triggers: [{ type: "GameLog" }] }`,
			want: "triggers[0].id",
		},
		{
			name: "negative delay",
			src:  `ruleset: x: { zones: [1], triggers: [{ id: "a", type: "GameLog", delay_seconds: -1 }] }`,
			want: "non-negative",
		},
		{
			name: "huge delay",
			src:  `ruleset: x: { zones: [1], triggers: [{ id: "a", type: "GameLog", delay_seconds: 1e18 }] }`,
			want: "must be at most 9223372036854775 seconds",
		},
		{
			name: "huge suppress",
			src:  `ruleset: x: { zones: [1], triggers: [{ id: "a", type: "GameLog", suppress_seconds: 9223372036854776 }] }`,
			want: "suppress_seconds",
		},
		{
			name: "fractional init data",
			src:  `ruleset: x: { zones: [1], init_data: { ratio: 0.5 }, triggers: [{ id: "a", type: "GameLog" }] }`,
			want: "fractional",
		},
		{
			name: "output without text",
			src:  `ruleset: x: { zones: [1], triggers: [{ id: "a", type: "GameLog", output: { severity: "info" } }] }`,
			want: "triggers[0].output.text",
		},
		{
			name: "timeline without time",
			src:  `ruleset: x: { zones: [1], timeline: [{ label: "x" }] }`,
			want: "timeline[0].time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compile(t, tt.src, "ruleset.x")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCompileErrorCarriesPosition(t *testing.T) {
	v := cuecontext.New().CompileString(`ruleset: x: {
	zones: [1]
	triggers: [{ type: "GameLog" }]
}`, cue.Filename("rules.cue"))
	require.NoError(t, v.Err())

	_, err := CompileRuleSet(v.LookupPath(cue.ParsePath("ruleset.x")))
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, err.Error(), "rules.cue")
}
