// Package hostlua adapts the generic "host interpreter" contract the rest of
// this module is written against onto github.com/yuin/gopher-lua, the one
// concrete host-version family this implementation supports ("gopher-lua
// v1", see SPEC_FULL.md 4.6.1). Every place a real Lua host would expose a
// capability gopher-lua lacks (integer/float tagging, light userdata,
// multi-slot userdata, lua_gc byte counters) gets its adaptation here, not
// scattered through the evaluator/assigner/visitor packages; the luaL_ref
// replacement lives in internal/registry.
package hostlua

import (
	"fmt"
	"runtime"

	lua "github.com/yuin/gopher-lua"
)

// MaxPathDepth bounds recursion over a ValuePath's inner chain. gopher-lua's
// registry grows dynamically so there is no fixed-capacity stack to
// overflow; this guard stands in for "stack overflow" on pathologically
// deep or (if ever possible) cyclic paths, mirroring MaxTableGetLoop in
// gopher-lua's own state.go.
const MaxPathDepth = 250

// HostUserData is the concrete shape stored in an *lua.LUserData.Value by
// this package. Real Lua full userdata carries a raw byte buffer plus N
// user-value slots; gopher-lua's LUserData only has a single `Value any`
// field, so anything wanting byte-buffer + user-value semantics (as
// SPEC_FULL.md 4.7.1 requires) stores one of these instead.
type HostUserData struct {
	Bytes      []byte
	UserValues []lua.LValue
}

// AsHostUserData extracts a *HostUserData from ud, or reports ok=false if ud
// was not created by this package (e.g. a bare lua.NewUserData() from
// elsewhere). A mismatch is treated as "zero bytes, zero user-values", not a
// panic, consistent with the "path unresolvable is not an error" policy.
func AsHostUserData(ud *lua.LUserData) (*HostUserData, bool) {
	if ud == nil {
		return nil, false
	}
	hud, ok := ud.Value.(*HostUserData)
	return hud, ok
}

// IsInteger reports whether v's fractional part is zero and it fits an
// int64, the heuristic this implementation uses to recover the
// integer/float distinction gopher-lua's single float64 LNumber type does
// not carry natively (SPEC_FULL.md 4.2.1).
func IsInteger(v lua.LNumber) (int64, bool) {
	f := float64(v)
	if f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

// TypeName renders the fixed type-name enumeration the Visitor API surface's
// `type` operation must return for a resolved host value. gopher-lua has no
// light userdata, ctype, or cdata concept, so "lightuserdata", "ctype" and
// "cdata" are never returned; any value type not listed below is reported
// as "unknown".
func TypeName(v lua.LValue) string {
	switch lv := v.(type) {
	case *lua.LNilType:
		return "nil"
	case lua.LBool:
		return "boolean"
	case lua.LNumber:
		if _, ok := IsInteger(lv); ok {
			return "integer"
		}
		return "float"
	case lua.LString:
		return "string"
	case *lua.LFunction:
		if lv.IsG {
			return "c function"
		}
		return "function"
	case *lua.LUserData:
		return "userdata"
	case *lua.LTable:
		return "table"
	case *lua.LState:
		return "thread"
	case lua.LChannel:
		return "userdata"
	default:
		return "unknown"
	}
}

// GCCount approximates lua_gc(LUA_GCCOUNT)/(LUA_GCCOUNTB) combined into a
// single byte count, per the corrected (sum, not AND) semantics SPEC_FULL.md
// 9 assumes. gopher-lua is a pure-Go VM sharing the host process's garbage
// collector, so there is no separate interpreter-scoped allocation counter;
// this reads runtime.MemStats.HeapAlloc for the whole process and splits it
// into 1024-byte words (k) and a remainder byte count (b), exactly the units
// the original lua_gc query reports, then combines them with `+`.
func GCCount() int64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	k := int64(stats.HeapAlloc >> 10)
	b := int64(stats.HeapAlloc & 0x3ff)
	return (k << 10) + b
}

// namedFunctions records a human-readable name for a host LGFunction at
// registration time, since gopher-lua (unlike LuaJIT's cdata symbolization
// the original leans on) keeps no reverse map from *lua.LFunction back to a
// source name. cfunctioninfo can only report a name for functions that were
// registered through RegisterNamedFunction.
var namedFunctions = map[*lua.LFunction]string{}

// RegisterNamedFunction records fn's name so a later cfunctioninfo call can
// symbolize it. Host programs that want their C-like functions to be
// nameable from the debugger call this when they register fn.
func RegisterNamedFunction(fn *lua.LFunction, name string) {
	namedFunctions[fn] = name
}

// FunctionName looks up a name recorded via RegisterNamedFunction.
func FunctionName(fn *lua.LFunction) (string, bool) {
	name, ok := namedFunctions[fn]
	return name, ok
}

// CheckDepth is the bookkeeping half of the stack-delta contract (SPEC_FULL
// 4.4): since gopher-lua's registry has no fixed capacity to overflow in the
// original sense, this only asserts the *declared* delta was honored, so the
// invariant in SPEC_FULL 8.1 stays independently verifiable in tests.
func CheckDepth(label string, before, after, wantDelta int) error {
	if after-before != wantDelta {
		return fmt.Errorf("hostlua: %s left stack depth delta %d, want %d", label, after-before, wantDelta)
	}
	return nil
}
