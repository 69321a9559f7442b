package analysis

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/roach88/encounterlab/internal/encounter"
	"github.com/roach88/encounterlab/internal/ir"
	"github.com/roach88/encounterlab/internal/testutil"
)

// propertyEncounter builds an encounter with members party members (every
// third one job-less) and one StartsUsing line per 250ms targeting members
// round-robin.
func propertyEncounter(t *testing.T, members, lines int) *encounter.Encounter {
	b := testutil.NewEncounter(1000)
	for i := range members {
		job := 19 + i%20
		if i%3 == 2 {
			job = 0
		}
		b.Member(fmt.Sprintf("10FF%04X", i+1), fmt.Sprintf("Member %d", i+1), job)
	}
	for i := range lines {
		target := fmt.Sprintf("10FF%04X", i%members+1)
		b.Line(1000+int64(i)*250, ir.LineStartsUsing, ir.IRObject{
			"id":       ir.IRString("A3D5"),
			"targetId": ir.IRString(target),
		})
	}
	return b.Build(t)
}

var propertyRules = ir.RuleSet{
	ID: "property",
	Triggers: []ir.TriggerRule{
		{
			ID:         "on-you",
			Type:       ir.LineStartsUsing,
			Condition:  ir.ConditionTargetIsYou,
			SuppressMs: 500,
			Run:        []ir.DataOp{{Op: ir.OpIncr, Key: "hits"}},
		},
		{
			ID:      "later",
			Type:    ir.LineStartsUsing,
			DelayMs: 600,
			Run:     []ir.DataOp{{Op: ir.OpAppend, Key: "targets", Value: "${matches.targetId}"}},
		},
	},
}

// TestProperty_BatchInvariance: for any party size and batch size, the
// report digest equals the single-batch digest.
func TestProperty_BatchInvariance(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("batch size never changes the report", prop.ForAll(
		func(members, lines, batch int) bool {
			enc := propertyEncounter(t, members, lines)

			ref, err := New(testutil.StaticRules(propertyRules), WithBatchSize(1000)).Analyze(context.Background(), enc)
			if err != nil {
				return false
			}
			got, err := New(testutil.StaticRules(propertyRules), WithBatchSize(batch)).Analyze(context.Background(), enc)
			if err != nil {
				return false
			}
			return ref.Digest == got.Digest
		},
		gen.IntRange(1, 30),
		gen.IntRange(0, 20),
		gen.IntRange(1, 40),
	))

	properties.TestingRun(t)
}

// TestProperty_Isolation: mutating every snapshot of one perspective
// leaves the canonical form of every other perspective unchanged.
func TestProperty_Isolation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("perspectives share no mutable data", prop.ForAll(
		func(members, lines int) bool {
			enc := propertyEncounter(t, members, lines)
			report, err := New(testutil.StaticRules(propertyRules)).Analyze(context.Background(), enc)
			if err != nil {
				return false
			}

			victim := report.Members()[0]
			before := map[string]string{}
			for _, id := range report.Members() {
				if id == victim {
					continue
				}
				b, err := report.Perspectives[id].Object().MarshalJSON()
				if err != nil {
					return false
				}
				before[id] = string(b)
			}

			p := report.Perspectives[victim]
			scribble(p.InitialData)
			scribble(p.FinalData)
			for _, r := range p.Triggers {
				scribble(r.InitialData)
				scribble(r.FinalData)
				scribble(r.Matches)
			}

			for id, want := range before {
				b, err := report.Perspectives[id].Object().MarshalJSON()
				if err != nil || string(b) != want {
					return false
				}
			}
			return true
		},
		gen.IntRange(2, 12),
		gen.IntRange(1, 12),
	))

	properties.TestingRun(t)
}

// scribble overwrites every leaf reachable from obj.
func scribble(obj ir.IRObject) {
	for k, v := range obj {
		switch val := v.(type) {
		case ir.IRObject:
			scribble(val)
		case ir.IRArray:
			for i, elem := range val {
				if o, ok := elem.(ir.IRObject); ok {
					scribble(o)
				} else {
					val[i] = ir.IRString("scribbled")
				}
			}
		default:
			obj[k] = ir.IRString("scribbled")
		}
	}
}
