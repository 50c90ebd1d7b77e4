// Package registry implements the Reference Registry: two named tables
// living inside the host's registry, keyed by literal name, that anchor
// live host values by integer handle so they survive past the debugger call
// that produced them (SPEC_FULL.md 4.3, 6).
package registry

import (
	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"
)

// Anchor names as they appear inside the host registry table.
const (
	RefAnchor   = "__debugger_ref"
	WatchAnchor = "__debugger_watch"
)

// Registry manages the ref/watch anchor tables for one attached host state.
type Registry struct {
	host *lua.LState
	// suffix disambiguates concurrent Attach calls against the same host
	// *lua.LState (SPEC_FULL.md 2.1): a second visitor attaching to a host
	// already carrying anchor tables gets its own uuid-suffixed anchor
	// names instead of silently sharing (and corrupting) the first
	// visitor's handles.
	refName   string
	watchName string
}

// New returns a Registry for host. If the host registry already has a table
// under RefAnchor/WatchAnchor from a prior Attach, fresh uuid-suffixed names
// are used instead so the two visitors never collide.
func New(host *lua.LState) *Registry {
	reg := host.Get(lua.RegistryIndex).(*lua.LTable)
	refName, watchName := RefAnchor, WatchAnchor
	if reg.RawGetString(refName) != lua.LNil || reg.RawGetString(watchName) != lua.LNil {
		suffix := uuid.NewString()
		refName = RefAnchor + ":" + suffix
		watchName = WatchAnchor + ":" + suffix
	}
	return &Registry{host: host, refName: refName, watchName: watchName}
}

// RefAnchorName and WatchAnchorName report the actual anchor names in use,
// needed by the valuepath codec when building registry-indirecting paths.
func (r *Registry) RefAnchorName() string   { return r.refName }
func (r *Registry) WatchAnchorName() string { return r.watchName }

func (r *Registry) anchorTable(name string) *lua.LTable {
	hreg := r.host.Get(lua.RegistryIndex).(*lua.LTable)
	v := hreg.RawGetString(name)
	if tb, ok := v.(*lua.LTable); ok {
		return tb
	}
	tb := r.host.NewTable()
	hreg.RawSetString(name, tb)
	return tb
}

// addref implements the standard Lua reference algorithm (as luaL_ref does
// in lauxlib.c) directly against an *lua.LTable, since gopher-lua exposes no
// luaL_ref/luaL_unref built-in: slot 0 holds either 0 (free list empty) or
// the index of the next free slot; a freed slot stores the next free index
// as an LNumber so the free list threads through the table itself.
func addref(tb *lua.LTable, value lua.LValue) int64 {
	free := tb.RawGet(lua.LNumber(0))
	var handle int64
	if n, ok := free.(lua.LNumber); ok && int64(n) != 0 {
		handle = int64(n)
		next := tb.RawGetInt(int(handle))
		tb.RawSetInt(0, next)
	} else {
		handle = int64(tb.Len()) + 1
	}
	tb.RawSetInt(int(handle), value)
	return handle
}

func unref(tb *lua.LTable, handle int64) {
	if handle <= 0 {
		return
	}
	free := tb.RawGet(lua.LNumber(0))
	for next := free; ; {
		n, ok := next.(lua.LNumber)
		if !ok || int64(n) == 0 {
			break
		}
		if int64(n) == handle {
			return
		}
		next = tb.RawGetInt(int(n))
	}
	tb.RawSetInt(int(handle), free)
	tb.RawSetInt(0, lua.LNumber(handle))
}

// AddRef appends value to the ref anchor table and returns its handle.
func (r *Registry) AddRef(value lua.LValue) int64 {
	return addref(r.anchorTable(r.refName), value)
}

// Unref is idempotent: unref-ing a handle that was already freed, or
// calling it before the anchor table was ever created, is silent.
func (r *Registry) Unref(handle int64) {
	hreg := r.host.Get(lua.RegistryIndex).(*lua.LTable)
	if tb, ok := hreg.RawGetString(r.refName).(*lua.LTable); ok {
		unref(tb, handle)
	}
}

// AddWatch appends value to the watch anchor table and returns its handle.
func (r *Registry) AddWatch(value lua.LValue) int64 {
	return addref(r.anchorTable(r.watchName), value)
}

// Resolve looks up a previously issued handle in the named anchor table.
// Returns lua.LNil, false if the anchor table does not exist or the handle
// is empty/out of range -- not an error, per the "path unresolvable" policy.
func (r *Registry) Resolve(anchorName string, handle int64) (lua.LValue, bool) {
	hreg := r.host.Get(lua.RegistryIndex).(*lua.LTable)
	tb, ok := hreg.RawGetString(anchorName).(*lua.LTable)
	if !ok || handle <= 0 {
		return lua.LNil, false
	}
	v := tb.RawGetInt(int(handle))
	if v == lua.LNil {
		return lua.LNil, false
	}
	return v, true
}

// CleanWatch bulk-clears the watch anchor by dropping the table wholesale
// (it is lazily recreated on next AddWatch), matching the original's single
// assignment rather than iterating and nil-ing entries one at a time.
func (r *Registry) CleanWatch() {
	hreg := r.host.Get(lua.RegistryIndex).(*lua.LTable)
	hreg.RawSetString(r.watchName, lua.LNil)
}
