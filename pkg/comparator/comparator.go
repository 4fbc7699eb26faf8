// Package comparator evaluates a problem's custom comparator expression
// against an actual/expected output pair inside a sandboxed Lua VM, bounded
// by a fixed execution budget. A custom comparator that never returns a
// boolean, errors, or runs past its budget is always treated as a failure —
// it is never allowed to silently pass.
package comparator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	lua "github.com/yuin/gopher-lua"
)

// Budget is the hard execution ceiling for a single comparator evaluation.
const Budget = 2 * time.Second

// Evaluate runs expression as a Lua chunk with `actual` and `expected`
// bound as globals (decoded JSON values converted to Lua tables/values) and
// returns whether the chunk's first return value is boolean true. Any
// error, timeout, or non-boolean result is reported as (false, err) so the
// caller can record the concrete reason as a per-case failure.
func Evaluate(expression string, actual, expected interface{}) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), Budget)
	defer cancel()

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	L.SetContext(ctx)

	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.fn), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			return false, fmt.Errorf("comparator: load stdlib %s: %w", lib.name, err)
		}
	}

	L.SetGlobal("actual", toLuaValue(L, actual))
	L.SetGlobal("expected", toLuaValue(L, expected))

	chunk := fmt.Sprintf("return (%s)", expression)
	fn, err := L.LoadString(chunk)
	if err != nil {
		return false, fmt.Errorf("comparator: parse expression: %w", err)
	}
	L.Push(fn)

	if err := L.PCall(0, 1, nil); err != nil {
		return false, errors.Wrap(err, "comparator: evaluation failed")
	}

	ret := L.Get(-1)
	L.Pop(1)

	b, ok := ret.(lua.LBool)
	if !ok {
		return false, fmt.Errorf("comparator: expression returned non-boolean %s", ret.Type().String())
	}
	return bool(b), nil
}

// toLuaValue converts a JSON-decoded Go value (the only shapes json.Unmarshal
// into interface{} ever produces) into the equivalent Lua value.
func toLuaValue(L *lua.LState, v interface{}) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []interface{}:
		table := L.NewTable()
		for i, elem := range val {
			table.RawSetInt(i+1, toLuaValue(L, elem))
		}
		return table
	case map[string]interface{}:
		table := L.NewTable()
		for k, elem := range val {
			table.RawSetString(k, toLuaValue(L, elem))
		}
		return table
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return lua.LNil
		}
		return lua.LString(string(data))
	}
}
