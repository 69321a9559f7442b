package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/Shopify/go-lua"

	"github.com/roach88/encounterlab/internal/ir"
)

// scriptResult is what a trigger script hands back to the engine.
type scriptResult struct {
	data ir.IRObject
	skip bool   // script returned false
	text string // script returned a string
}

// maxExactInt is the largest integer a Lua number holds exactly.
const maxExactInt = 1 << 53

// nullKey names the registry slot of the null sentinel table.
const nullKey = "encounterlab.null"

// runScript executes a trigger's Lua source in a fresh interpreter.
//
// The script sees three globals: data, matches and null. It may modify
// data freely. IR nulls arrive as the null table, so they survive the
// round trip and can be tested with `v == null`. Returning false cancels
// the trigger: its data changes are discarded and the firing resolves as
// not executed. Returning a string replaces the output text.
//
// Integers outside +/-2^53 cannot cross into Lua exactly, and numbers
// that come back fractional or out of that range are not integers; both
// fail the script instead of altering data.
func runScript(src string, data, matches ir.IRObject) (scriptResult, error) {
	l := lua.NewState()
	openSandbox(l)

	l.NewTable()
	l.PushValue(-1)
	l.SetField(lua.RegistryIndex, nullKey)
	l.SetGlobal("null")

	if err := pushValue(l, data); err != nil {
		return scriptResult{}, fmt.Errorf("data.%w", err)
	}
	l.SetGlobal("data")
	if err := pushValue(l, matches); err != nil {
		return scriptResult{}, fmt.Errorf("matches.%w", err)
	}
	l.SetGlobal("matches")

	if err := lua.LoadString(l, src); err != nil {
		return scriptResult{}, fmt.Errorf("load script: %w", err)
	}
	if err := l.ProtectedCall(0, 1, 0); err != nil {
		return scriptResult{}, fmt.Errorf("run script: %w", err)
	}

	var res scriptResult
	switch l.TypeOf(-1) {
	case lua.TypeBoolean:
		res.skip = !l.ToBoolean(-1)
	case lua.TypeString:
		res.text, _ = l.ToString(-1)
	}
	l.Pop(1)

	l.Global("data")
	raw, err := luaToGo(l, -1)
	l.Pop(1)
	if err != nil {
		return scriptResult{}, fmt.Errorf("convert data: %w", err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return scriptResult{}, errors.New("script replaced data with a non-table value")
	}

	v, err := ir.FromGo(obj)
	if err != nil {
		return scriptResult{}, fmt.Errorf("convert data: %w", err)
	}
	res.data = reshape(v, data).(ir.IRObject)
	return res, nil
}

// CheckScript reports whether src parses as Lua.
func CheckScript(src string) error {
	l := lua.NewState()
	if err := lua.LoadString(l, src); err != nil {
		return err
	}
	l.Pop(1)
	return nil
}

// openSandbox loads the deterministic subset of the standard libraries.
// File access, printing and randomness are removed.
func openSandbox(l *lua.State) {
	libs := []struct {
		name string
		open lua.Function
	}{
		{"_G", lua.BaseOpen},
		{"string", lua.StringOpen},
		{"table", lua.TableOpen},
		{"math", lua.MathOpen},
	}
	for _, lib := range libs {
		lua.Require(l, lib.name, lib.open, true)
		l.Pop(1)
	}

	for _, name := range []string{"dofile", "loadfile", "load", "print"} {
		l.PushNil()
		l.SetGlobal(name)
	}

	l.Global("math")
	l.PushNil()
	l.SetField(-2, "random")
	l.PushNil()
	l.SetField(-2, "randomseed")
	l.Pop(1)
}

func pushValue(l *lua.State, v ir.IRValue) error {
	switch val := v.(type) {
	case ir.IRString:
		l.PushString(string(val))
	case ir.IRInt:
		if val > maxExactInt || val < -maxExactInt {
			return fmt.Errorf("integer %d cannot be represented exactly in a script", int64(val))
		}
		l.PushInteger(int(val))
	case ir.IRBool:
		l.PushBoolean(bool(val))
	case ir.IRArray:
		l.NewTable()
		for i, elem := range val {
			if err := pushValue(l, elem); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
			l.RawSetInt(-2, i+1)
		}
	case ir.IRObject:
		l.NewTable()
		for _, k := range val.SortedKeys() {
			if err := pushValue(l, val[k]); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			l.SetField(-2, k)
		}
	default:
		l.Field(lua.RegistryIndex, nullKey)
	}
	return nil
}

// luaToGo converts the value at index into the shapes ir.FromGo accepts.
// The null sentinel and array holes become nil.
func luaToGo(l *lua.State, index int) (any, error) {
	index = l.AbsIndex(index)
	switch l.TypeOf(index) {
	case lua.TypeNil:
		return nil, nil
	case lua.TypeString:
		value, _ := l.ToString(index)
		return value, nil
	case lua.TypeNumber:
		value, _ := l.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return l.ToBoolean(index), nil
	case lua.TypeTable:
		l.Field(lua.RegistryIndex, nullKey)
		isNull := l.RawEqual(index, -1)
		l.Pop(1)
		if isNull {
			return nil, nil
		}
		return tableToGo(l, index)
	default:
		return nil, fmt.Errorf("unsupported value of type %s", lua.TypeNameOf(l, index))
	}
}

// tableToGo reads a table as an array when every key is a positive
// integer, otherwise as an object with string keys.
func tableToGo(l *lua.State, index int) (any, error) {
	isArray := true
	maxIndex := 0
	count := 0
	l.PushNil()
	for l.Next(index) {
		count++
		if isArray {
			if l.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if n, _ := l.ToNumber(-2); n < 1 || n != math.Trunc(n) || n > maxExactInt {
				isArray = false
			} else if int(n) > maxIndex {
				maxIndex = int(n)
			}
		}
		l.Pop(1)
	}

	if isArray && count > 0 {
		// Holes are kept as nulls; a mostly empty index range is not an array.
		if maxIndex > 2*count {
			return nil, fmt.Errorf("sparse table: %d entries up to index %d", count, maxIndex)
		}
		result := make([]any, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			l.RawGetInt(index, i)
			elem, err := luaToGo(l, -1)
			l.Pop(1)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i-1, err)
			}
			result[i-1] = elem
		}
		return result, nil
	}
	return tableToMap(l, index)
}

func tableToMap(l *lua.State, index int) (map[string]any, error) {
	output := map[string]any{}
	l.PushNil()
	for l.Next(index) {
		if l.TypeOf(-2) != lua.TypeString {
			kind := lua.TypeNameOf(l, -2)
			l.Pop(2)
			return nil, fmt.Errorf("table mixes %s keys with string keys", kind)
		}
		key, _ := l.ToString(-2)
		value, err := luaToGo(l, -1)
		if err != nil {
			l.Pop(2)
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		output[key] = value
		l.Pop(1)
	}
	return output, nil
}

// normalizeNumber accepts only integral numbers Lua holds exactly.
func normalizeNumber(value float64) (int64, error) {
	if value != math.Trunc(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("number %v is not an integer", value)
	}
	if value > maxExactInt || value < -maxExactInt {
		return 0, fmt.Errorf("integer %v is outside +/-2^53", value)
	}
	return int64(value), nil
}

// reshape restores empty arrays that Lua cannot tell apart from empty
// tables, using the pre-script value as the shape reference.
func reshape(v, like ir.IRValue) ir.IRValue {
	switch val := v.(type) {
	case ir.IRObject:
		if len(val) == 0 {
			if _, ok := like.(ir.IRArray); ok {
				return ir.IRArray{}
			}
		}
		ref, _ := like.(ir.IRObject)
		for k, elem := range val {
			val[k] = reshape(elem, ref[k])
		}
		return val
	case ir.IRArray:
		ref, _ := like.(ir.IRArray)
		for i, elem := range val {
			var r ir.IRValue
			if i < len(ref) {
				r = ref[i]
			}
			val[i] = reshape(elem, r)
		}
		return val
	default:
		return v
	}
}
