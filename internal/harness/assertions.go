package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/encounterlab/internal/analysis"
	"github.com/roach88/encounterlab/internal/ir"
	"github.com/roach88/encounterlab/internal/perspective"
)

// AssertionError is returned when an assertion fails.
// It includes the actor's firings to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Actor    string
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Firings  []*perspective.Record
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s for %s\n", e.Type, e.Actor)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Firings) > 0 {
		fmt.Fprintf(&buf, "\nFirings:\n")
		for _, r := range e.Firings {
			fmt.Fprintf(&buf, "  [%d] %s line %d %s offset %d\n",
				r.Seq, r.RuleID, r.Line.Index, r.Status, r.ResolvedOffset)
		}
	}
	return buf.String()
}

// checkAssertion evaluates one assertion against a report.
func checkAssertion(report *analysis.Report, a Assertion) error {
	p, ok := report.Perspectives[a.Actor]
	if !ok {
		return &AssertionError{
			Type:     a.Type,
			Actor:    a.Actor,
			Expected: "a party member",
			Actual:   fmt.Sprintf("not in report (members %v)", report.Members()),
		}
	}

	switch a.Type {
	case AssertFiringCount:
		return assertCount(p, a, firingsOf(p, a.Rule))
	case AssertPendingCount:
		var pending []*perspective.Record
		for _, r := range firingsOf(p, a.Rule) {
			if r.Pending() {
				pending = append(pending, r)
			}
		}
		return assertCount(p, a, pending)
	case AssertResolvedOffset:
		return assertResolvedOffset(p, a)
	case AssertOutput:
		return assertOutput(p, a)
	case AssertExcluded:
		if !p.Excluded {
			return &AssertionError{Type: a.Type, Actor: a.Actor, Expected: "excluded", Actual: "replayed", Firings: p.Triggers}
		}
		return nil
	case AssertFinalData:
		return assertFinalData(p, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// firingsOf returns the actor's firings of rule in creation order.
// An empty rule selects every firing.
func firingsOf(p *analysis.Perspective, rule string) []*perspective.Record {
	if rule == "" {
		return p.Triggers
	}
	var out []*perspective.Record
	for _, r := range p.Triggers {
		if r.RuleID == rule {
			out = append(out, r)
		}
	}
	return out
}

func assertCount(p *analysis.Perspective, a Assertion, got []*perspective.Record) error {
	if len(got) == a.Count {
		return nil
	}
	what := "firing(s)"
	if a.Rule != "" {
		what = fmt.Sprintf("firing(s) of %s", a.Rule)
	}
	if a.Type == AssertPendingCount {
		what = "pending " + what
	}
	return &AssertionError{
		Type:     a.Type,
		Actor:    a.Actor,
		Expected: fmt.Sprintf("%d %s", a.Count, what),
		Actual:   fmt.Sprintf("%d", len(got)),
		Firings:  p.Triggers,
	}
}

// nth returns the selected firing of the assertion's rule.
func nth(p *analysis.Perspective, a Assertion) (*perspective.Record, error) {
	firings := firingsOf(p, a.Rule)
	if a.Nth < 0 || a.Nth >= len(firings) {
		return nil, &AssertionError{
			Type:     a.Type,
			Actor:    a.Actor,
			Expected: fmt.Sprintf("firing %d of %s", a.Nth, a.Rule),
			Actual:   fmt.Sprintf("%d firing(s)", len(firings)),
			Firings:  p.Triggers,
		}
	}
	return firings[a.Nth], nil
}

func assertResolvedOffset(p *analysis.Perspective, a Assertion) error {
	r, err := nth(p, a)
	if err != nil {
		return err
	}
	if r.ResolvedOffset != a.Offset {
		return &AssertionError{
			Type:     a.Type,
			Actor:    a.Actor,
			Expected: fmt.Sprintf("%s[%d] resolved at offset %d", a.Rule, a.Nth, a.Offset),
			Actual:   fmt.Sprintf("offset %d (%s)", r.ResolvedOffset, r.Status),
			Firings:  p.Triggers,
		}
	}
	return nil
}

func assertOutput(p *analysis.Perspective, a Assertion) error {
	r, err := nth(p, a)
	if err != nil {
		return err
	}
	actual := "no output"
	if r.Output != nil {
		if r.Output.Text == a.Text {
			return nil
		}
		actual = fmt.Sprintf("%q", r.Output.Text)
	}
	return &AssertionError{
		Type:     a.Type,
		Actor:    a.Actor,
		Expected: fmt.Sprintf("%s[%d] output %q", a.Rule, a.Nth, a.Text),
		Actual:   actual,
		Firings:  p.Triggers,
	}
}

func assertFinalData(p *analysis.Perspective, a Assertion) error {
	want, err := ir.FromGo(a.Expect)
	if err != nil {
		return fmt.Errorf("expect: %w", err)
	}
	got, ok := p.FinalData[a.Key]
	if !ok {
		return &AssertionError{
			Type:     a.Type,
			Actor:    a.Actor,
			Expected: fmt.Sprintf("%s = %s", a.Key, render(want)),
			Actual:   "key absent",
		}
	}
	if render(got) != render(want) {
		return &AssertionError{
			Type:     a.Type,
			Actor:    a.Actor,
			Expected: fmt.Sprintf("%s = %s", a.Key, render(want)),
			Actual:   fmt.Sprintf("%s = %s", a.Key, render(got)),
		}
	}
	return nil
}

// render formats a value as canonical JSON for comparison and messages.
func render(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}
