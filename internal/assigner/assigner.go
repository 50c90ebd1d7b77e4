// Package assigner implements the Path Assigner: writing a new value at the
// location a ValuePath denotes (SPEC_FULL.md 4.5).
//
// Mirroring evaluator's adaptation of the stack-delta contract to Go return
// values (see evaluator.go's doc comment), Assign takes the value to write
// as a plain argument and returns a bool, rather than consuming a value
// already sitting on a literal host stack. The original's quirk of always
// "consuming its input" regardless of success/failure has no direct
// analogue once there is no stack slot to consume -- what is preserved is
// the *caller-observable* half of that quirk: Assign never has a
// partially-applied side effect on failure (either the whole write happens,
// or nothing does), and always returns a definite bool rather than leaving
// the host in an ambiguous state. DESIGN.md documents this translation
// explicitly so the "inherited quirk" note in SPEC_FULL.md 9 is not
// silently dropped.
package assigner

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/zot/luadbg-visitor/internal/evaluator"
	"github.com/zot/luadbg-visitor/internal/hostlua"
	"github.com/zot/luadbg-visitor/internal/tableintrospect"
	"github.com/zot/luadbg-visitor/internal/valuepath"
)

// Assigner writes values at the location a ValuePath denotes.
type Assigner struct {
	Host *lua.LState
	Eval *evaluator.Evaluator
}

func New(host *lua.LState, eval *evaluator.Evaluator) *Assigner {
	return &Assigner{Host: host, Eval: eval}
}

// Assign writes value at the location path denotes. Returns false for
// unsupported roots (FRAME_FUNC, GLOBAL, REGISTRY, STACK, INDEX_KEY) and for
// any step that fails to resolve, per SPEC_FULL.md 4.5/7.
func (a *Assigner) Assign(path valuepath.Path, value lua.LValue) bool {
	step, err := valuepath.Decode(path)
	if err != nil {
		return false
	}

	switch step.Kind {
	case valuepath.FrameLocal:
		dbg, ok := a.Eval.Frames.Frame(int(step.Frame))
		if !ok || step.Slot < 0 {
			return false
		}
		name := a.Host.SetLocal(dbg, int(step.Slot), value)
		return name != ""

	case valuepath.FrameFunc, valuepath.Global, valuepath.Registry, valuepath.Stack, valuepath.IndexKey:
		return false

	case valuepath.IndexInt:
		inner, ok := a.Eval.Evaluate(step.Inner)
		if !ok {
			return false
		}
		tb, ok := inner.(*lua.LTable)
		if !ok {
			return false
		}
		tb.RawSetInt(int(step.Key), value)
		return true

	case valuepath.IndexStr:
		inner, ok := a.Eval.Evaluate(step.Inner)
		if !ok {
			return false
		}
		tb, ok := inner.(*lua.LTable)
		if !ok {
			return false
		}
		tb.RawSetString(string(step.Str), value)
		return true

	case valuepath.IndexVal:
		inner, ok := a.Eval.Evaluate(step.Inner)
		if !ok {
			return false
		}
		tb, ok := inner.(*lua.LTable)
		if !ok {
			return false
		}
		snap := tableintrospect.Take(tb)
		return snap.SetV(int(step.Bucket), value)

	case valuepath.Upvalue:
		inner, ok := a.Eval.Evaluate(step.Inner)
		if !ok {
			return false
		}
		fn, ok := inner.(*lua.LFunction)
		if !ok {
			return false
		}
		name := a.Host.SetUpvalue(fn, int(step.Index)+1, value)
		return name != ""

	case valuepath.Metatable:
		switch value.(type) {
		case *lua.LNilType, *lua.LTable:
		default:
			return false
		}
		var receiver lua.LValue
		if step.HasInner {
			inner, ok := a.Eval.Evaluate(step.Inner)
			if !ok {
				return false
			}
			receiver = inner
		} else {
			receiver = primitiveReceiver(valuepath.Kind(step.Base))
		}
		a.Host.SetMetatable(receiver, value)
		return true

	case valuepath.Uservalue:
		inner, ok := a.Eval.Evaluate(step.Inner)
		if !ok {
			return false
		}
		ud, ok := inner.(*lua.LUserData)
		if !ok {
			return false
		}
		hud, ok := hostlua.AsHostUserData(ud)
		if !ok || int(step.Index) >= len(hud.UserValues) {
			return false
		}
		hud.UserValues[step.Index] = value
		return true

	default:
		return false
	}
}

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
