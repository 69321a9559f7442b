package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/encounterlab/internal/analysis"
	"github.com/roach88/encounterlab/internal/ir"
	"github.com/roach88/encounterlab/internal/perspective"
)

// Snapshot renders the firing timeline of a report for golden comparison.
//
// Data snapshots and digests are left out so a golden file only changes
// when a firing is added, removed, reordered or resolved differently.
func Snapshot(name string, report *analysis.Report) ir.IRObject {
	perspectives := make(ir.IRObject, len(report.Perspectives))
	for id, p := range report.Perspectives {
		firings := make(ir.IRArray, 0, len(p.Triggers))
		for _, r := range p.Triggers {
			firings = append(firings, snapshotRecord(r))
		}
		perspectives[id] = ir.IRObject{
			"excluded": ir.IRBool(p.Excluded),
			"firings":  firings,
		}
	}
	return ir.IRObject{
		"scenario":     ir.IRString(name),
		"rule_set":     ir.IRString(report.RuleSetID),
		"perspectives": perspectives,
	}
}

func snapshotRecord(r *perspective.Record) ir.IRObject {
	obj := ir.IRObject{
		"seq":             ir.IRInt(r.Seq),
		"rule_id":         ir.IRString(r.RuleID),
		"line_index":      ir.IRInt(r.Line.Index),
		"status":          ir.IRString(string(r.Status)),
		"executed":        ir.IRBool(r.Executed),
		"suppressed":      ir.IRBool(r.Suppressed),
		"resolved_offset": ir.IRInt(r.ResolvedOffset),
		"resolved_index":  ir.IRInt(r.ResolvedIndex),
	}
	if r.Output != nil {
		obj["output"] = ir.IRString(r.Output.Text)
	}
	return obj
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := ir.MarshalIndent(Snapshot(name, result.Report))
	if err != nil {
		return err
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
