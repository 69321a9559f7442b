package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/encounterlab/internal/ir"
)

// Scenario defines one replay fixture: an encounter, the rules to replay it
// against and the assertions the resulting report must satisfy.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rules is inline CUE source defining rule sets.
	Rules string `yaml:"rules,omitempty"`

	// RulesPath is a CUE file or package directory, relative to the
	// scenario file. Exactly one of Rules and RulesPath is set.
	RulesPath string `yaml:"rules_path,omitempty"`

	// Encounter is an inline encounter. Exactly one of Encounter and
	// Capture is set.
	Encounter *EncounterSpec `yaml:"encounter,omitempty"`

	// Capture is a network log capture, relative to the scenario file.
	Capture string `yaml:"capture,omitempty"`

	// BatchSizes lists the batch sizes to analyze with. Every size must
	// produce the same report digest. Defaults to the analyzer default.
	BatchSizes []int `yaml:"batch_sizes,omitempty"`

	// RunID is the fixed run id stamped on the report.
	// If empty, defaults to "harness-run".
	RunID string `yaml:"run_id,omitempty"`

	// Assertions validate the report.
	Assertions []Assertion `yaml:"assertions"`
}

// EncounterSpec describes an encounter inline.
type EncounterSpec struct {
	ID      string       `yaml:"id,omitempty"`
	Start   int64        `yaml:"start"`
	Zone    ZoneSpec     `yaml:"zone"`
	Members []MemberSpec `yaml:"members"`
	States  []StateSpec  `yaml:"states,omitempty"`
	Lines   []LineSpec   `yaml:"lines"`
}

// ZoneSpec is the captured zone.
type ZoneSpec struct {
	ID   string `yaml:"id"` // hex
	Name string `yaml:"name"`
}

// MemberSpec is one party member; a job of 0 has no recorded state.
type MemberSpec struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Job  int    `yaml:"job"`
}

// StateSpec records an actor state at a timestamp.
type StateSpec struct {
	Actor string        `yaml:"actor"`
	TS    int64         `yaml:"ts"`
	State ir.ActorState `yaml:"state"`
}

// LineSpec is one log line.
type LineSpec struct {
	TS     int64          `yaml:"ts"`
	Type   string         `yaml:"type"`
	Fields map[string]any `yaml:"fields,omitempty"`
}

// Assertion validates one aspect of the report.
type Assertion struct {
	// Type specifies the assertion type:
	// - "firing_count": Actor has Count firings of Rule (all rules if empty)
	// - "pending_count": Actor has Count unresolved firings of Rule
	// - "resolved_offset": the Nth firing of Rule resolved at Offset
	// - "output": the Nth firing of Rule produced Text
	// - "excluded": Actor was excluded from replay
	// - "final_data": Actor's final data has Expect at Key
	Type string `yaml:"type"`

	// Actor is the party member whose perspective is checked.
	Actor string `yaml:"actor"`

	// Rule is the trigger rule id.
	Rule string `yaml:"rule,omitempty"`

	// Nth selects a firing of Rule in creation order (0-based).
	Nth int `yaml:"nth,omitempty"`

	// Count is the expected number of firings.
	Count int `yaml:"count,omitempty"`

	// Offset is the expected resolved offset in ms; -1 for pending.
	Offset int64 `yaml:"offset,omitempty"`

	// Text is the expected output text.
	Text string `yaml:"text,omitempty"`

	// Key is a top-level data key (used by final_data).
	Key string `yaml:"key,omitempty"`

	// Expect is the expected data value (used by final_data).
	Expect any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertFiringCount    = "firing_count"
	AssertPendingCount   = "pending_count"
	AssertResolvedOffset = "resolved_offset"
	AssertOutput         = "output"
	AssertExcluded       = "excluded"
	AssertFinalData      = "final_data"
)

var assertionTypes = map[string]bool{
	AssertFiringCount:    true,
	AssertPendingCount:   true,
	AssertResolvedOffset: true,
	AssertOutput:         true,
	AssertExcluded:       true,
	AssertFinalData:      true,
}

// LoadScenario reads and parses a scenario YAML file. Relative rules and
// capture paths are resolved against the scenario's directory.
// Unknown fields are rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	if scenario.RulesPath != "" && !filepath.IsAbs(scenario.RulesPath) {
		scenario.RulesPath = filepath.Join(base, scenario.RulesPath)
	}
	if scenario.Capture != "" && !filepath.IsAbs(scenario.Capture) {
		scenario.Capture = filepath.Join(base, scenario.Capture)
	}
	return scenario, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if (s.Rules == "") == (s.RulesPath == "") {
		return errors.New("exactly one of rules and rules_path is required")
	}
	if (s.Encounter == nil) == (s.Capture == "") {
		return errors.New("exactly one of encounter and capture is required")
	}
	for i, n := range s.BatchSizes {
		if n < 1 {
			return fmt.Errorf("batch_sizes[%d]: must be at least 1, got %d", i, n)
		}
	}
	if len(s.Assertions) == 0 {
		return errors.New("assertions list is required and must be non-empty")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	if !assertionTypes[a.Type] {
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	if a.Actor == "" {
		return errors.New("actor is required")
	}
	switch a.Type {
	case AssertResolvedOffset, AssertOutput:
		if a.Rule == "" {
			return fmt.Errorf("%s requires rule", a.Type)
		}
	case AssertFinalData:
		if a.Key == "" {
			return errors.New("final_data requires key")
		}
	}
	return nil
}
