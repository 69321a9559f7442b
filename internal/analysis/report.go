package analysis

import (
	"github.com/roach88/encounterlab/internal/ir"
	"github.com/roach88/encounterlab/internal/perspective"
)

// Perspective is the analysis result for one party member.
//
// Excluded members never replayed: InitialData is empty, Triggers is
// empty and FinalData is nil.
type Perspective struct {
	ActorID     string
	Excluded    bool
	InitialData ir.IRObject
	Triggers    []*perspective.Record // creation order
	FinalData   ir.IRObject
}

// Object renders the perspective as an independent IR tree.
func (p *Perspective) Object() ir.IRObject {
	triggers := make(ir.IRArray, 0, len(p.Triggers))
	for _, r := range p.Triggers {
		triggers = append(triggers, r.Object())
	}
	initial := p.InitialData.Clone()
	if initial == nil {
		initial = ir.IRObject{}
	}
	obj := ir.IRObject{
		"initial_data": initial,
		"triggers":     triggers,
	}
	if !p.Excluded {
		obj["final_data"] = p.FinalData.Clone()
	}
	return obj
}

// Pending returns the records that never resolved.
func (p *Perspective) Pending() []*perspective.Record {
	var out []*perspective.Record
	for _, r := range p.Triggers {
		if r.Pending() {
			out = append(out, r)
		}
	}
	return out
}

// Zone identifies where an encounter took place.
type Zone struct {
	ID   int64
	Name string
}

// Report is the complete result of one analysis run.
//
// Digest covers everything except RunID, so two runs over the same
// encounter and rule set share a digest.
type Report struct {
	RunID          string
	EncounterID    string
	StartTimestamp int64
	Zone           Zone
	RuleSetID      string
	RuleSetDigest  string
	Perspectives   map[string]*Perspective
	Digest         string
}

// Members returns the analyzed member ids, sorted.
func (r *Report) Members() []string {
	obj := make(ir.IRObject, len(r.Perspectives))
	for id := range r.Perspectives {
		obj[id] = ir.IRNull{}
	}
	return obj.SortedKeys()
}

// Body renders the digested part of the report.
func (r *Report) Body() ir.IRObject {
	perspectives := make(ir.IRObject, len(r.Perspectives))
	for id, p := range r.Perspectives {
		perspectives[id] = p.Object()
	}
	return ir.IRObject{
		"encounter_id":    ir.IRString(r.EncounterID),
		"start_timestamp": ir.IRInt(r.StartTimestamp),
		"zone": ir.IRObject{
			"id":   ir.IRInt(r.Zone.ID),
			"name": ir.IRString(r.Zone.Name),
		},
		"rule_set": ir.IRObject{
			"id":     ir.IRString(r.RuleSetID),
			"digest": ir.IRString(r.RuleSetDigest),
		},
		"perspectives": perspectives,
	}
}

// Object renders the full report, run id and digest included.
func (r *Report) Object() ir.IRObject {
	obj := r.Body()
	obj["run_id"] = ir.IRString(r.RunID)
	obj["digest"] = ir.IRString(r.Digest)
	return obj
}

// MarshalJSON renders the report as canonical JSON.
func (r *Report) MarshalJSON() ([]byte, error) {
	return ir.MarshalCanonical(r.Object())
}

// ComputeDigest hashes the report body.
func (r *Report) ComputeDigest() (string, error) {
	return ir.Digest(ir.DomainReport, r.Body())
}
