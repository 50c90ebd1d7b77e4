// Package copier implements the Cross-Interpreter Copier: moving primitive
// values between host and debugger interpreters by value, and moving
// aggregate values either as a zero-cost ValuePath or a registry-anchored
// reference handle (SPEC_FULL.md 4.2).
//
// Because both the host and the debugger are independent *lua.LState values
// inside the same Go process (SPEC_FULL.md 2.1), a primitive gopher-lua
// LValue (LNilType, LBool, LNumber, LString) carries no VM-specific state
// and is already safe to hand from one LState to the other directly -- "copy
// primitive" is therefore the identity function over LValue, not a
// byte-level marshal. Aggregates (table, function, full userdata, thread)
// are VM-coupled and are never copied this way; they are described instead,
// per copy_value's by_ref/placeholder-string branches below.
package copier

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/zot/luadbg-visitor/internal/evaluator"
	"github.com/zot/luadbg-visitor/internal/registry"
	"github.com/zot/luadbg-visitor/internal/valuepath"
)

// IsPrimitive reports whether v is nil/boolean/number/string. gopher-lua has
// no light userdata type, so that branch of the original's primitive set
// never occurs here (hostlua.TypeName notes the same gap).
func IsPrimitive(v lua.LValue) bool {
	switch v.(type) {
	case *lua.LNilType, lua.LBool, lua.LNumber, lua.LString:
		return true
	default:
		return false
	}
}

// CopyPrimitiveHostToDebugger copies v (assumed to be the host value under
// consideration) into a debugger-side LValue, returning ok=false if v is not
// primitive.
func CopyPrimitiveHostToDebugger(v lua.LValue) (lua.LValue, bool) {
	if !IsPrimitive(v) {
		return lua.LNil, false
	}
	return v, true
}

// CopyPrimitiveDebuggerToHost is the symmetric direction. For a debugger
// userdata (a ValuePath-wrapping value produced by this package's own
// visitor layer) it instead evaluates the embedded path against eval and
// returns the resulting host value.
func CopyPrimitiveDebuggerToHost(v lua.LValue, eval *evaluator.Evaluator) (lua.LValue, bool) {
	if IsPrimitive(v) {
		return v, true
	}
	if ud, ok := v.(*lua.LUserData); ok {
		if path, ok := ud.Value.(valuepath.Path); ok {
			return eval.Evaluate(path)
		}
	}
	return lua.LNil, false
}

// CopyResult is the tagged outcome of CopyValue: exactly one of Primitive or
// RefPath is meaningful, selected by IsPrimitive.
type CopyResult struct {
	IsPrimitive bool
	Primitive   lua.LValue
	RefPath     valuepath.Path // set when !IsPrimitive && byRef was true
	Placeholder string         // set when !IsPrimitive && byRef was false
}

// CopyValue implements copy_value(host_value, by_ref): primitives are
// copied; aggregates are either anchored via reg and returned as a
// registry-indirecting ValuePath (byRef true) or rendered as a
// human-readable placeholder string (byRef false), matching the original's
// "<typename>: 0x<address>" shape as closely as Go's lack of raw pointers to
// print allows -- LValue.String() already renders a stable per-value
// identifier for tables/functions/userdata/threads in gopher-lua, so it is
// reused here instead of re-deriving an address.
func CopyValue(hostValue lua.LValue, byRef bool, reg *registry.Registry, typeName string) CopyResult {
	if prim, ok := CopyPrimitiveHostToDebugger(hostValue); ok {
		return CopyResult{IsPrimitive: true, Primitive: prim}
	}
	if byRef {
		handle := reg.AddRef(hostValue)
		return CopyResult{RefPath: valuepath.RefPath(reg.RefAnchorName(), handle)}
	}
	return CopyResult{Placeholder: fmt.Sprintf("<%s>: %s", typeName, hostValue.String())}
}

// EvalCopyArgs recursively deep-copies a debugger-side table argument into
// the host interpreter, for eval/watch calls that pass a literal table
// rather than a path (SPEC_FULL.md scenario S5, 2.2). Only tables and
// primitives are supported; any other debugger-side value is copied via
// CopyPrimitiveDebuggerToHost (path evaluation) or rejected.
func EvalCopyArgs(host *lua.LState, eval *evaluator.Evaluator, v lua.LValue) (lua.LValue, error) {
	if prim, ok := CopyPrimitiveHostToDebugger(v); ok {
		return prim, nil
	}
	if tb, ok := v.(*lua.LTable); ok {
		out := host.NewTable()
		var copyErr error
		tb.ForEach(func(k, val lua.LValue) {
			if copyErr != nil {
				return
			}
			hk, err := EvalCopyArgs(host, eval, k)
			if err != nil {
				copyErr = err
				return
			}
			hv, err := EvalCopyArgs(host, eval, val)
			if err != nil {
				copyErr = err
				return
			}
			out.RawSet(hk, hv)
		})
		if copyErr != nil {
			return lua.LNil, copyErr
		}
		return out, nil
	}
	if hostVal, ok := CopyPrimitiveDebuggerToHost(v, eval); ok {
		return hostVal, nil
	}
	return lua.LNil, fmt.Errorf("copier: cannot copy debugger value of type %s into host", v.Type().String())
}
