package harness

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/encounterlab/internal/actor"
	"github.com/roach88/encounterlab/internal/analysis"
	"github.com/roach88/encounterlab/internal/encounter"
	"github.com/roach88/encounterlab/internal/ir"
	"github.com/roach88/encounterlab/internal/logline"
	"github.com/roach88/encounterlab/internal/rules"
)

// DefaultRunID is stamped on reports of scenarios without a run_id.
const DefaultRunID = "harness-run"

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Build the encounter (inline or from a capture)
//  2. Compile the rule sets
//  3. Analyze once per batch size with a fixed run id
//  4. Compare digests across batch sizes
//  5. Evaluate assertions against the first report
//
// A returned error means the scenario could not run; assertion failures
// are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	enc, err := buildEncounter(ctx, scenario)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: encounter: %w", scenario.Name, err)
	}

	catalog, err := loadRules(scenario)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: rules: %w", scenario.Name, err)
	}

	sizes := scenario.BatchSizes
	if len(sizes) == 0 {
		sizes = []int{analysis.DefaultBatchSize}
	}
	runID := scenario.RunID
	if runID == "" {
		runID = DefaultRunID
	}

	result := NewResult()
	for _, size := range sizes {
		a := analysis.New(catalog,
			analysis.WithBatchSize(size),
			analysis.WithRunIDGenerator(analysis.NewFixedGenerator(runID)),
		)
		report, err := a.Analyze(ctx, enc)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: batch size %d: %w", scenario.Name, size, err)
		}
		result.Digests[size] = report.Digest
		if result.Report == nil {
			result.Report = report
			continue
		}
		if report.Digest != result.Report.Digest {
			result.AddError(fmt.Sprintf("batch size %d digest %s differs from batch size %d digest %s",
				size, report.Digest, sizes[0], result.Report.Digest))
		}
	}

	for i, assertion := range scenario.Assertions {
		if err := checkAssertion(result.Report, assertion); err != nil {
			result.AddError(fmt.Sprintf("assertion %d (%s): %v", i, assertion.Type, err))
		}
	}
	return result, nil
}

func buildEncounter(ctx context.Context, s *Scenario) (*encounter.Encounter, error) {
	if s.Capture != "" {
		f, err := os.Open(s.Capture)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		enc, _, err := logline.Import(ctx, f, logline.Options{ID: s.Name})
		return enc, err
	}

	spec := s.Encounter
	tracker := actor.NewTracker()
	params := encounter.Params{
		ID:             spec.ID,
		StartTimestamp: spec.Start,
		ZoneID:         spec.Zone.ID,
		ZoneName:       spec.Zone.Name,
		Tracker:        tracker,
	}
	if params.ID == "" {
		params.ID = s.Name
	}

	for _, m := range spec.Members {
		params.PartyMembers = append(params.PartyMembers, m.ID)
		if m.Job != 0 {
			tracker.RecordState(m.ID, spec.Start, ir.ActorState{ID: m.ID, Name: m.Name, Job: m.Job, Level: 100})
		}
	}
	for _, st := range spec.States {
		tracker.RecordState(st.Actor, st.TS, st.State)
	}
	for i, l := range spec.Lines {
		fields, err := ir.FromGo(l.Fields)
		if err != nil {
			return nil, fmt.Errorf("lines[%d].fields: %w", i, err)
		}
		obj, _ := fields.(ir.IRObject)
		params.Lines = append(params.Lines, ir.LogLine{Timestamp: l.TS, Type: l.Type, Fields: obj})
	}
	return encounter.New(params)
}

func loadRules(s *Scenario) (*rules.Catalog, error) {
	if s.Rules != "" {
		return rules.LoadString(s.Rules, s.Name+".cue")
	}
	info, err := os.Stat(s.RulesPath)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return rules.LoadDir(s.RulesPath)
	}
	src, err := os.ReadFile(s.RulesPath)
	if err != nil {
		return nil, err
	}
	return rules.LoadString(string(src), s.RulesPath)
}
