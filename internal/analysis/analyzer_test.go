package analysis

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/encounterlab/internal/encounter"
	"github.com/roach88/encounterlab/internal/gamedata"
	"github.com/roach88/encounterlab/internal/ir"
	"github.com/roach88/encounterlab/internal/perspective"
	"github.com/roach88/encounterlab/internal/testutil"
)

const (
	tini   = "10FF0001"
	potato = "10FF0002"
	ghost  = "10FF0003"
)

// scenario is the three-line encounter: start 1000, lines at 1000, 1500
// and 2000, one eligible member with a job at 1000.
func scenario(t *testing.T) *encounter.Encounter {
	return testutil.NewEncounter(1000).
		Zone("4A1", "The Windward Wilds").
		Member(tini, "Tini Poutini", 24).
		Line(1000, ir.LineGameLog, ir.IRObject{"line": ir.IRString("engage")}).
		Line(1500, ir.LineStartsUsing, ir.IRObject{"id": ir.IRString("A3D5"), "targetId": ir.IRString(tini)}).
		Line(2000, ir.LineGameLog, ir.IRObject{"line": ir.IRString("end")}).
		Build(t)
}

func chargeRule(delayMs int64) ir.RuleSet {
	return ir.RuleSet{
		ID:      "windward",
		ZoneIDs: []int64{0x4A1},
		Triggers: []ir.TriggerRule{{
			ID:      "wild-charge",
			Type:    ir.LineStartsUsing,
			Match:   map[string]string{"id": "A3D5"},
			DelayMs: delayMs,
			Run:     []ir.DataOp{{Op: ir.OpIncr, Key: "charges"}},
			Output:  &ir.TriggerOutput{Severity: ir.SeverityAlert, Text: "Charge"},
		}},
	}
}

func analyze(t *testing.T, enc *encounter.Encounter, rs ir.RuleSet, opts ...Option) *Report {
	t.Helper()
	opts = append([]Option{WithRunIDGenerator(NewFixedGenerator("run-1"))}, opts...)
	report, err := New(testutil.StaticRules(rs), opts...).Analyze(context.Background(), enc)
	require.NoError(t, err)
	return report
}

func TestAnalyze_SynchronousScenario(t *testing.T) {
	report := analyze(t, scenario(t), chargeRule(0))

	p := report.Perspectives[tini]
	require.NotNil(t, p)
	require.Len(t, p.Triggers, 1)

	r := p.Triggers[0]
	assert.Equal(t, int64(1500), r.Line.Timestamp)
	assert.Equal(t, int64(500), r.ResolvedOffset)
	assert.True(t, r.Executed)
	assert.Equal(t, ir.IRInt(1), p.FinalData["charges"])
}

func TestAnalyze_DeferredScenario(t *testing.T) {
	report := analyze(t, scenario(t), chargeRule(400))

	r := report.Perspectives[tini].Triggers[0]
	assert.Equal(t, int64(1500), r.Line.Timestamp)
	assert.Equal(t, int64(1000), r.ResolvedOffset, "resolved while the 2000 line was current")
	assert.Equal(t, perspective.StatusResolved, r.Status)
}

func TestAnalyze_PendingFiringIsReported(t *testing.T) {
	report := analyze(t, scenario(t), chargeRule(10000))

	p := report.Perspectives[tini]
	require.Len(t, p.Triggers, 1)
	assert.Len(t, p.Pending(), 1)
	assert.NotContains(t, p.FinalData, "charges", "the deferred action never ran")

	obj := p.Object()["triggers"].(ir.IRArray)[0].(ir.IRObject)
	assert.Equal(t, ir.IRString("pending"), obj["status"])
	assert.NotContains(t, obj, "final_data")
}

func TestAnalyze_InitialData(t *testing.T) {
	report := analyze(t, scenario(t), chargeRule(0))

	initial := report.Perspectives[tini].InitialData
	assert.Equal(t, ir.IRString("Tini Poutini"), initial["me"])
	assert.Equal(t, ir.IRString("WHM"), initial["job"])
	assert.Equal(t, ir.IRString("healer"), initial["role"])
	assert.Equal(t, ir.IRInt(0x4A1), initial["zone_id"])
	assert.Equal(t, ir.IRString("The Windward Wilds"), initial["zone_name"])
	assert.Len(t, initial["party"], 1)
	assert.NotContains(t, initial, "charges")

	assert.Equal(t, "windward", report.RuleSetID)
	assert.Len(t, report.RuleSetDigest, 64)
	assert.Equal(t, Zone{ID: 0x4A1, Name: "The Windward Wilds"}, report.Zone)
}

func TestAnalyze_Determinism(t *testing.T) {
	enc := scenario(t)
	a := New(testutil.StaticRules(chargeRule(400)), WithRunIDGenerator(NewFixedGenerator("run-1", "run-2")))

	first, err := a.Analyze(context.Background(), enc)
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), enc)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Digest, second.Digest)

	first.RunID, second.RunID = "", ""
	b1, err := first.MarshalJSON()
	require.NoError(t, err)
	b2, err := second.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, string(b1), string(b2))
}

func TestAnalyze_Isolation(t *testing.T) {
	enc := testutil.NewEncounter(1000).
		Member(tini, "Tini Poutini", 24).
		Member(potato, "Potato Chippy", 19).
		Line(1000, ir.LineStartsUsing, ir.IRObject{"id": ir.IRString("A3D5"), "targetId": ir.IRString(tini)}).
		Line(1500, ir.LineStartsUsing, ir.IRObject{"id": ir.IRString("A3D5"), "targetId": ir.IRString(potato)}).
		Build(t)

	rs := chargeRule(0)
	rs.Triggers[0].Condition = ir.ConditionTargetIsYou
	rs.Triggers[0].Run = []ir.DataOp{{Op: ir.OpAppend, Key: "hits", Value: "${matches.targetId}"}}
	report := analyze(t, enc, rs)

	a, b := report.Perspectives[tini], report.Perspectives[potato]
	require.Len(t, a.Triggers, 2)
	require.Len(t, b.Triggers, 2)

	assert.True(t, a.Triggers[0].Executed)
	assert.False(t, a.Triggers[1].Executed)
	assert.False(t, b.Triggers[0].Executed)
	assert.True(t, b.Triggers[1].Executed)
	assert.Equal(t, ir.IRArray{ir.IRString(tini)}, a.FinalData["hits"])
	assert.Equal(t, ir.IRArray{ir.IRString(potato)}, b.FinalData["hits"])

	before, err := b.Object().MarshalJSON()
	require.NoError(t, err)

	a.FinalData["hits"].(ir.IRArray)[0] = ir.IRString("mutated")
	a.FinalData["party"].(ir.IRArray)[1].(ir.IRObject)["name"] = ir.IRString("mutated")
	a.InitialData["player"].(ir.IRObject)["name"] = ir.IRString("mutated")
	a.Triggers[0].FinalData["party"] = ir.IRNull{}

	after, err := b.Object().MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestAnalyze_CausingLineIndexNonDecreasing(t *testing.T) {
	b := testutil.NewEncounter(1000).Member(tini, "Tini Poutini", 24)
	for i := range 10 {
		b.Line(1000+int64(i)*100, ir.LineAbility, ir.IRObject{"id": ir.IRString(fmt.Sprintf("%04X", i))})
	}
	rs := ir.RuleSet{Triggers: []ir.TriggerRule{
		{ID: "slow", Type: ir.LineAbility, DelayMs: 350},
		{ID: "fast", Type: ir.LineAbility},
	}}
	report := analyze(t, b.Build(t), rs)

	recs := report.Perspectives[tini].Triggers
	require.Len(t, recs, 20)
	for i := 1; i < len(recs); i++ {
		assert.LessOrEqual(t, recs[i-1].Line.Index, recs[i].Line.Index)
	}
	assert.Equal(t, "slow", recs[0].RuleID)
	assert.Greater(t, recs[0].ResolvedOffset, recs[1].ResolvedOffset, "completion may reorder")
}

func TestAnalyze_EmptyJobExclusion(t *testing.T) {
	enc := testutil.NewEncounter(1000).
		Member(tini, "Tini Poutini", 24).
		Member(ghost, "", 0).
		Line(1000, ir.LineStartsUsing, ir.IRObject{"id": ir.IRString("A3D5")}).
		Build(t)

	report := analyze(t, enc, chargeRule(0))

	p := report.Perspectives[ghost]
	require.NotNil(t, p)
	assert.True(t, p.Excluded)
	assert.Empty(t, p.Triggers)
	assert.Nil(t, p.FinalData)
	assert.Equal(t, ir.IRObject{
		"initial_data": ir.IRObject{},
		"triggers":     ir.IRArray{},
	}, p.Object())

	assert.Len(t, report.Perspectives[tini].Triggers, 1)
	assert.Equal(t, []string{tini, ghost}, report.Members())
}

func TestAnalyze_DuplicatePartyMember(t *testing.T) {
	enc := testutil.NewEncounter(1000).
		Member(tini, "Tini Poutini", 24).
		Member(potato, "Potato Chippy", 19).
		Member(tini, "Tini Poutini", 24).
		Line(1500, ir.LineStartsUsing, ir.IRObject{"id": ir.IRString("A3D5")}).
		Build(t)

	for _, size := range []int{1, 24} {
		report := analyze(t, enc, chargeRule(0), WithBatchSize(size))

		assert.Equal(t, []string{tini, potato}, report.Members())
		p := report.Perspectives[tini]
		require.NotNil(t, p)
		assert.Len(t, p.Triggers, 1)
		assert.Len(t, p.InitialData["party"], 2, "roster lists each member once")
	}
}

func TestAnalyze_PlayerStatePushedOnChange(t *testing.T) {
	enc := testutil.NewEncounter(1000).
		Member(tini, "Tini Poutini", 24).
		State(tini, 1500, ir.ActorState{ID: tini, Name: "Tini Poutini", Job: 24, Level: 100, CurrentHP: 1200, MaxHP: 90000}).
		Line(1000, ir.LineGameLog, ir.IRObject{"line": ir.IRString("engage")}).
		Line(1500, ir.LineUpdateHP, ir.IRObject{"id": ir.IRString(tini)}).
		Build(t)

	rs := ir.RuleSet{Triggers: []ir.TriggerRule{{
		ID:   "low-hp",
		Type: ir.LineUpdateHP,
		Run:  []ir.DataOp{{Op: ir.OpSet, Key: "seen_hp", Value: "${data.player.current_hp}"}},
	}}}
	report := analyze(t, enc, rs)

	p := report.Perspectives[tini]
	assert.Equal(t, ir.IRInt(0), p.InitialData["player"].(ir.IRObject)["current_hp"])
	assert.Equal(t, ir.IRInt(1200), p.FinalData["seen_hp"], "state pushed before the line's rules ran")
}

func TestAnalyze_MissingJobAborts(t *testing.T) {
	enc := testutil.NewEncounter(1000).
		Member(tini, "Tini Poutini", 24).
		State(tini, 1500, ir.ActorState{ID: tini}).
		Line(1000, ir.LineGameLog, nil).
		Line(1500, ir.LineGameLog, nil).
		Build(t)

	report, err := New(testutil.StaticRules(chargeRule(0))).Analyze(context.Background(), enc)
	assert.Nil(t, report)
	var ue *encounter.UnreachableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, encounter.ErrCodeMissingJob, ue.Code)
	assert.Equal(t, tini, ue.ActorID)
}

func TestAnalyze_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(testutil.StaticRules(chargeRule(0))).Analyze(ctx, scenario(t))
	assert.Nil(t, report)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyze_ZoneNameFallback(t *testing.T) {
	enc := testutil.NewEncounter(1000).
		Zone("0x4A1", "").
		Member(tini, "Tini Poutini", 24).
		Line(1000, ir.LineGameLog, nil).
		Build(t)

	report := analyze(t, enc, ir.RuleSet{}, WithZones(gamedata.Zones{0x4A1: "The Windward Wilds"}))
	assert.Equal(t, "The Windward Wilds", report.Zone.Name)

	report = analyze(t, enc, ir.RuleSet{})
	assert.Equal(t, "Zone 4A1", report.Zone.Name)
}

func TestAnalyze_BadZoneID(t *testing.T) {
	enc := testutil.NewEncounter(1000).Zone("zz", "").Build(t)
	_, err := New(testutil.StaticRules(ir.RuleSet{})).Analyze(context.Background(), enc)
	assert.Error(t, err)
}

func TestAnalyze_BatchSizes(t *testing.T) {
	b := testutil.NewEncounter(1000)
	for i := range 5 {
		b.Member(fmt.Sprintf("10FF%04X", i+1), fmt.Sprintf("Member %d", i), 19+i)
	}
	b.Line(1000, ir.LineStartsUsing, ir.IRObject{"id": ir.IRString("A3D5"), "targetId": ir.IRString("10FF0002")})
	b.Line(1600, ir.LineStartsUsing, ir.IRObject{"id": ir.IRString("A3D5"), "targetId": ir.IRString("10FF0004")})
	enc := b.Build(t)

	rs := chargeRule(300)
	rs.Triggers[0].Condition = ir.ConditionTargetIsYou

	var digests []string
	for _, size := range []int{1, 2, 24, 1000} {
		a := New(testutil.StaticRules(rs), WithBatchSize(size))
		assert.Equal(t, size, a.BatchSize())
		report, err := a.Analyze(context.Background(), enc)
		require.NoError(t, err)
		digests = append(digests, report.Digest)
	}
	for _, d := range digests[1:] {
		assert.Equal(t, digests[0], d)
	}
}

func TestWithBatchSizeIgnoresInvalid(t *testing.T) {
	assert.Equal(t, DefaultBatchSize, New(nil, WithBatchSize(0)).BatchSize())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
