package perspective

import (
	"github.com/roach88/encounterlab/internal/engine"
	"github.com/roach88/encounterlab/internal/ir"
)

// Status is the lifecycle state of a Record.
type Status string

const (
	// StatusPending means the firing was created but never resolved.
	StatusPending Status = "pending"
	// StatusResolved means the completion callback ran.
	StatusResolved Status = "resolved"
)

// Record is the captured lifecycle of one trigger firing.
//
// InitialData is copied when the firing is created; FinalData is copied
// when it resolves. ResolvedOffset is measured from the encounter start to
// the line that was current at resolution, which for delayed triggers is
// later than Line.
type Record struct {
	Seq            int64
	RuleID         string
	Matches        ir.IRObject
	Line           ir.LogLine // causing line
	InitialData    ir.IRObject
	FinalData      ir.IRObject // nil while pending
	Suppressed     bool
	Executed       bool
	Output         *ir.TriggerOutput
	Status         Status
	ResolvedOffset int64 // -1 while pending
	ResolvedIndex  int   // -1 while pending
}

func newRecord(f engine.Firing, initial ir.IRObject) *Record {
	line := f.Line
	line.Fields = line.Fields.Clone()
	return &Record{
		Seq:            f.Seq,
		RuleID:         f.RuleID,
		Matches:        f.Matches.Clone(),
		Line:           line,
		InitialData:    initial,
		Status:         StatusPending,
		ResolvedOffset: -1,
		ResolvedIndex:  -1,
	}
}

// resolve fills the completion half of the record.
func (r *Record) resolve(o engine.Outcome, current ir.LogLine, start int64, final ir.IRObject) {
	r.Suppressed = o.Suppressed
	r.Executed = o.Executed
	if o.Output != nil {
		out := *o.Output
		r.Output = &out
	}
	r.FinalData = final
	r.Status = StatusResolved
	r.ResolvedOffset = current.Timestamp - start
	r.ResolvedIndex = current.Index
}

// Pending reports whether the record never resolved.
func (r *Record) Pending() bool {
	return r.Status == StatusPending
}

// Object renders the record as an independent IR tree.
// Pending records carry no final_data.
func (r *Record) Object() ir.IRObject {
	obj := ir.IRObject{
		"seq":             ir.IRInt(r.Seq),
		"rule_id":         ir.IRString(r.RuleID),
		"matches":         nonNil(r.Matches.Clone()),
		"line":            r.Line.Object(),
		"initial_data":    nonNil(r.InitialData.Clone()),
		"suppressed":      ir.IRBool(r.Suppressed),
		"executed":        ir.IRBool(r.Executed),
		"status":          ir.IRString(string(r.Status)),
		"resolved_offset": ir.IRInt(r.ResolvedOffset),
		"resolved_index":  ir.IRInt(r.ResolvedIndex),
	}
	if r.Status == StatusResolved {
		obj["final_data"] = nonNil(r.FinalData.Clone())
	}
	if r.Output != nil {
		obj["output"] = ir.IRObject{
			"severity": ir.IRString(r.Output.Severity),
			"text":     ir.IRString(r.Output.Text),
		}
	}
	return obj
}

func nonNil(obj ir.IRObject) ir.IRObject {
	if obj == nil {
		return ir.IRObject{}
	}
	return obj
}
