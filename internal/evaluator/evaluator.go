// Package evaluator implements the Path Evaluator, the central algorithm
// that materializes the value a ValuePath denotes (SPEC_FULL.md 4.4).
//
// The original's contract is stated as host-stack pushes/pops with a net
// delta of +1 on success, 0 on failure. This implementation represents that
// contract at the Go-value level instead of literal index-based stack
// manipulation: Evaluate returns (value, true) on success and (lua.LNil,
// false) on failure, pushing nothing being equivalent to "no value
// returned". Every Visitor API operation built on top of Evaluate is itself
// an ordinary Go function call, so there is no separate C-style stack to
// balance; DESIGN.md records this as a deliberate, idiomatic-Go adaptation
// of the stack-balancing invariant, not a dropped requirement -- the tests
// in evaluator_test.go check returned values instead of a stack depth.
package evaluator

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/zot/luadbg-visitor/internal/hostlua"
	"github.com/zot/luadbg-visitor/internal/registry"
	"github.com/zot/luadbg-visitor/internal/tableintrospect"
	"github.com/zot/luadbg-visitor/internal/valuepath"
)

// Frames resolves a call-frame descriptor by depth (0 = current). It is
// implemented by internal/session.Session, which is the only component that
// knows how to turn a host *lua.LState plus a depth into a *lua.Debug.
type Frames interface {
	Frame(depth int) (*lua.Debug, bool)
}

// Evaluator resolves ValuePaths against one host interpreter.
type Evaluator struct {
	Host   *lua.LState
	Frames Frames
	Reg    *registry.Registry
}

// New returns an Evaluator bound to a host state.
func New(host *lua.LState, frames Frames, reg *registry.Registry) *Evaluator {
	return &Evaluator{Host: host, Frames: frames, Reg: reg}
}

// Evaluate resolves path to a live host value, or reports ok=false if any
// step along the way fails -- not an error, per SPEC_FULL.md 7.
func (e *Evaluator) Evaluate(path valuepath.Path) (lua.LValue, bool) {
	return e.evaluateDepth(path, 0)
}

func (e *Evaluator) evaluateDepth(path valuepath.Path, depth int) (lua.LValue, bool) {
	if depth > hostlua.MaxPathDepth {
		return lua.LNil, false
	}
	step, err := valuepath.Decode(path)
	if err != nil {
		return lua.LNil, false
	}

	switch step.Kind {
	case valuepath.FrameLocal:
		dbg, ok := e.Frames.Frame(int(step.Frame))
		if !ok {
			return lua.LNil, false
		}
		if step.Slot < 0 {
			// SPEC_FULL.md 9, open question 3: gopher-lua's GetLocal has no
			// negative-index vararg convention. Treated as unresolvable.
			return lua.LNil, false
		}
		name, v := e.Host.GetLocal(dbg, int(step.Slot))
		if name == "" {
			return lua.LNil, false
		}
		return v, true

	case valuepath.FrameFunc:
		dbg, ok := e.Frames.Frame(int(step.Frame))
		if !ok {
			return lua.LNil, false
		}
		fn, err := e.Host.GetInfo("f", dbg, nil)
		if err != nil {
			return lua.LNil, false
		}
		return fn, true

	case valuepath.Global:
		return e.Host.Get(lua.GlobalsIndex), true

	case valuepath.Registry:
		return e.Host.Get(lua.RegistryIndex), true

	case valuepath.Stack:
		v := e.Host.Get(int(step.Stack))
		if v == nil {
			return lua.LNil, false
		}
		return v, true

	case valuepath.IndexInt:
		inner, ok := e.evaluateDepth(step.Inner, depth+1)
		if !ok {
			return lua.LNil, false
		}
		tb, ok := inner.(*lua.LTable)
		if !ok {
			return lua.LNil, false
		}
		return tb.RawGetInt(int(step.Key)), true

	case valuepath.IndexStr:
		inner, ok := e.evaluateDepth(step.Inner, depth+1)
		if !ok {
			return lua.LNil, false
		}
		tb, ok := inner.(*lua.LTable)
		if !ok {
			return lua.LNil, false
		}
		return tb.RawGetString(string(step.Str)), true

	case valuepath.IndexKey, valuepath.IndexVal:
		inner, ok := e.evaluateDepth(step.Inner, depth+1)
		if !ok {
			return lua.LNil, false
		}
		tb, ok := inner.(*lua.LTable)
		if !ok {
			return lua.LNil, false
		}
		snap := tableintrospect.Take(tb)
		if step.Kind == valuepath.IndexKey {
			v, ok := snap.GetK(int(step.Bucket))
			return v, ok
		}
		v, ok := snap.GetV(int(step.Bucket))
		return v, ok

	case valuepath.Upvalue:
		inner, ok := e.evaluateDepth(step.Inner, depth+1)
		if !ok {
			return lua.LNil, false
		}
		fn, ok := inner.(*lua.LFunction)
		if !ok {
			return lua.LNil, false
		}
		name, v := e.Host.GetUpvalue(fn, int(step.Index)+1)
		if name == "" {
			return lua.LNil, false
		}
		return v, true

	case valuepath.Metatable:
		var receiver lua.LValue
		if step.HasInner {
			inner, ok := e.evaluateDepth(step.Inner, depth+1)
			if !ok {
				return lua.LNil, false
			}
			receiver = inner
		} else {
			receiver = primitiveReceiver(valuepath.Kind(step.Base))
		}
		mt := e.Host.GetMetatable(receiver)
		if mt == lua.LNil {
			return lua.LNil, false
		}
		return mt, true

	case valuepath.Uservalue:
		inner, ok := e.evaluateDepth(step.Inner, depth+1)
		if !ok {
			return lua.LNil, false
		}
		ud, ok := inner.(*lua.LUserData)
		if !ok {
			return lua.LNil, false
		}
		hud, ok := hostlua.AsHostUserData(ud)
		if !ok || int(step.Index) >= len(hud.UserValues) {
			return lua.LNil, false
		}
		return hud.UserValues[step.Index], true

	default:
		return lua.LNil, false
	}
}

// primitiveReceiver conjures the dummy value of base_type used when
// METATABLE's inner path is absent (the metatable is a shared per-type
// metatable, not an individual value's), per SPEC_FULL.md 4.4.
func primitiveReceiver(base valuepath.Kind) lua.LValue {
	switch byte(base) {
	case 0:
		return lua.LNil
	case 1:
		return lua.LFalse
	case 2:
		return lua.LNumber(0)
	case 3:
		return lua.LString("")
	default:
		return lua.LNil
	}
}

// ResolveRegistryRef resolves a registry-indirecting path's handle directly
// against reg's named anchor table instead of through the generic
// INDEX_STR/INDEX_INT evaluation, returning an error that names the anchor
// table when the handle is not present.
func ResolveRegistryRef(reg *registry.Registry, anchorName string, handle int64) (lua.LValue, error) {
	v, ok := reg.Resolve(anchorName, handle)
	if !ok {
		return lua.LNil, fmt.Errorf("evaluator: handle %d not present in %s", handle, anchorName)
	}
	return v, nil
}
