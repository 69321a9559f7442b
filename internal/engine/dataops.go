package engine

import (
	"fmt"
	"strconv"

	"github.com/roach88/encounterlab/internal/ir"
)

// applyOps runs a rule's data operations against data in order.
// data is modified in place; callers pass a clone when the whole list
// must apply atomically.
func applyOps(ruleID string, ops []ir.DataOp, data, scope ir.IRObject) error {
	for _, op := range ops {
		if err := applyOp(ruleID, op, data, scope); err != nil {
			return err
		}
	}
	return nil
}

func applyOp(ruleID string, op ir.DataOp, data, scope ir.IRObject) error {
	switch op.Op {
	case ir.OpSet:
		data[op.Key] = resolve(op.Value, scope)

	case ir.OpIncr:
		delta := int64(1)
		if op.Value != "" {
			n, err := strconv.ParseInt(ir.Text(resolve(op.Value, scope)), 10, 64)
			if err != nil {
				return NewDataOpError(ruleID, op.Op, op.Key, fmt.Sprintf("increment is not an integer: %v", err))
			}
			delta = n
		}
		var cur int64
		switch v := data[op.Key].(type) {
		case nil, ir.IRNull:
		case ir.IRInt:
			cur = int64(v)
		default:
			return NewDataOpError(ruleID, op.Op, op.Key, fmt.Sprintf("cannot increment %T", v))
		}
		data[op.Key] = ir.IRInt(cur + delta)

	case ir.OpAppend:
		var arr ir.IRArray
		switch v := data[op.Key].(type) {
		case nil, ir.IRNull:
		case ir.IRArray:
			arr = v
		default:
			return NewDataOpError(ruleID, op.Op, op.Key, fmt.Sprintf("cannot append to %T", v))
		}
		data[op.Key] = append(arr, resolve(op.Value, scope))

	case ir.OpDelete:
		delete(data, op.Key)

	default:
		return NewDataOpError(ruleID, op.Op, op.Key, "unknown operation")
	}
	return nil
}
