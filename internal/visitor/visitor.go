// Package visitor registers the Visitor API surface (SPEC_FULL.md 4.7) on a
// debugger *lua.LState: the set of Lua-callable functions a debug UI uses to
// navigate and mutate values living in an attached host interpreter.
//
// Registration follows the teacher's module idiom exactly: build a fresh
// *lua.LTable with L.NewTable(), populate it from a name-to-LGFunction map
// with L.SetFuncs(tbl, exports), then attach it as a module global.
package visitor

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/zot/luadbg-visitor/internal/assigner"
	"github.com/zot/luadbg-visitor/internal/copier"
	"github.com/zot/luadbg-visitor/internal/evaluator"
	"github.com/zot/luadbg-visitor/internal/hostlua"
	"github.com/zot/luadbg-visitor/internal/registry"
	"github.com/zot/luadbg-visitor/internal/session"
	"github.com/zot/luadbg-visitor/internal/tableintrospect"
	"github.com/zot/luadbg-visitor/internal/valuepath"
)

// Visitor bundles the components an API surface call dispatches to.
type Visitor struct {
	Sess *session.Session
	Eval *evaluator.Evaluator
	Asgn *assigner.Assigner
	Reg  *registry.Registry
	L    *lua.LState // the debugger state the module is registered into
}

// Attach builds a Visitor for sess and registers its API surface as a fresh
// table on the debugger state, with "_G" and "_REGISTRY" pre-built root
// ValuePaths attached, per SPEC_FULL.md 4.7's module-initialization note.
func Attach(sess *session.Session) *Visitor {
	L := sess.Debugger
	eval := evaluator.New(sess.Host, sess, sess.Reg)
	v := &Visitor{
		Sess: sess,
		Eval: eval,
		Asgn: assigner.New(sess.Host, eval),
		Reg:  sess.Reg,
		L:    L,
	}

	mod := L.NewTable()
	exports := map[string]lua.LGFunction{
		"getlocal":       v.getlocal,
		"getlocalv":      v.getlocalv,
		"getupvalue":     v.getupvalue,
		"getupvaluev":    v.getupvaluev,
		"getmetatable":   v.getmetatable,
		"getmetatablev":  v.getmetatablev,
		"getuservalue":   v.getuservalue,
		"getuservaluev":  v.getuservaluev,
		"index":          v.index,
		"indexv":         v.indexv,
		"field":          v.field,
		"fieldv":         v.fieldv,
		"tablehash":      v.tablehash(false),
		"tablehashv":     v.tablehash(true),
		"tablesize":      v.tablesize,
		"tablekey":       v.tablekey,
		"udread":         v.udread,
		"udwrite":        v.udwrite,
		"value":          v.value,
		"assign":         v.assign,
		"type":           v.typeOf,
		"getinfo":        v.getinfo,
		"load":           v.load,
		"eval":           v.eval,
		"watch":          v.watch,
		"cleanwatch":     v.cleanwatch,
		"costatus":       v.costatus,
		"gccount":        v.gccount,
		"cfunctioninfo":  v.cfunctioninfo,
	}
	L.SetFuncs(mod, exports)
	L.SetField(mod, "_G", v.pushPath(L, valuepath.NewRoot(valuepath.Global, 0, 0, 0)))
	L.SetField(mod, "_REGISTRY", v.pushPath(L, valuepath.NewRoot(valuepath.Registry, 0, 0, 0)))
	L.SetGlobal("visitor", mod)
	return v
}

// --- userdata <-> Path helpers ---

func (v *Visitor) newPathUserData(L *lua.LState, p valuepath.Path) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = p
	return ud
}

func (v *Visitor) pushPath(L *lua.LState, p valuepath.Path) lua.LValue {
	return v.newPathUserData(L, p)
}

func argPath(L *lua.LState, n int) (valuepath.Path, error) {
	ud, ok := L.Get(n).(*lua.LUserData)
	if !ok {
		return nil, fmt.Errorf("argument %d is not a ValuePath", n)
	}
	p, ok := ud.Value.(valuepath.Path)
	if !ok {
		return nil, fmt.Errorf("argument %d is not a ValuePath", n)
	}
	return p, nil
}

// pushValueOrPath implements the Value-variant rule: copy the primitive if
// ok is true and v resolved to a primitive; otherwise return path itself
// wrapped as userdata (zero-cost, since path already denotes the location).
func (v *Visitor) pushValueOrPath(L *lua.LState, resolved lua.LValue, ok bool, path valuepath.Path) lua.LValue {
	if !ok {
		return lua.LNil
	}
	if prim, isPrim := copier.CopyPrimitiveHostToDebugger(resolved); isPrim {
		return prim
	}
	return v.pushPath(L, path)
}

// --- getlocal / getupvalue / getmetatable / getuservalue ---

func (v *Visitor) getlocal(L *lua.LState) int {
	frame := L.CheckInt(1)
	idx := L.CheckInt(2)
	dbg, ok := v.Sess.Frame(frame)
	if !ok {
		return 0
	}
	if idx < 0 {
		L.RaiseError("negative local index (varargs) not supported by this host")
		return 0
	}
	name, _ := v.Sess.Host.GetLocal(dbg, idx)
	if name == "" {
		return 0
	}
	path := valuepath.NewRoot(valuepath.FrameLocal, uint16(frame), int16(idx), 0)
	L.Push(lua.LString(name))
	L.Push(v.pushPath(L, path))
	return 2
}

func (v *Visitor) getlocalv(L *lua.LState) int {
	frame := L.CheckInt(1)
	idx := L.CheckInt(2)
	dbg, ok := v.Sess.Frame(frame)
	if !ok {
		return 0
	}
	if idx < 0 {
		L.RaiseError("negative local index (varargs) not supported by this host")
		return 0
	}
	name, val := v.Sess.Host.GetLocal(dbg, idx)
	if name == "" {
		return 0
	}
	path := valuepath.NewRoot(valuepath.FrameLocal, uint16(frame), int16(idx), 0)
	L.Push(lua.LString(name))
	L.Push(v.pushValueOrPath(L, val, true, path))
	return 2
}

func (v *Visitor) getupvalue(L *lua.LState) int {
	p, err := argPath(L, 1)
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	idx := L.CheckInt(2)
	if idx < 1 {
		L.RaiseError("upvalue index must be >= 1")
		return 0
	}
	path := valuepath.ExtendUpvalue(uint16(idx-1), p)
	if _, ok := v.Eval.Evaluate(path); !ok {
		return 0
	}
	L.Push(v.pushPath(L, path))
	return 1
}

func (v *Visitor) getupvaluev(L *lua.LState) int {
	p, err := argPath(L, 1)
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	idx := L.CheckInt(2)
	if idx < 1 {
		L.RaiseError("upvalue index must be >= 1")
		return 0
	}
	path := valuepath.ExtendUpvalue(uint16(idx-1), p)
	val, ok := v.Eval.Evaluate(path)
	if !ok {
		return 0
	}
	L.Push(v.pushValueOrPath(L, val, true, path))
	return 1
}

func (v *Visitor) getmetatable(L *lua.LState) int {
	return v.getmetatableImpl(L, false)
}

func (v *Visitor) getmetatablev(L *lua.LState) int {
	return v.getmetatableImpl(L, true)
}

func (v *Visitor) getmetatableImpl(L *lua.LState, valueVariant bool) int {
	p, err := argPath(L, 1)
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	resolved, ok := v.Eval.Evaluate(p)
	if !ok {
		return 0
	}
	base := baseTypeOf(resolved)
	path := valuepath.ExtendMetatable(base, p)
	val, ok := v.Eval.Evaluate(path)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	if valueVariant {
		L.Push(v.pushValueOrPath(L, val, true, path))
	} else {
		L.Push(v.pushPath(L, path))
	}
	return 1
}

func baseTypeOf(v lua.LValue) byte {
	switch v.(type) {
	case *lua.LTable:
		return 2
	case *lua.LUserData:
		return 5
	default:
		return 0
	}
}

func (v *Visitor) getuservalue(L *lua.LState) int {
	return v.getuservalueImpl(L, false)
}

func (v *Visitor) getuservaluev(L *lua.LState) int {
	return v.getuservalueImpl(L, true)
}

func (v *Visitor) getuservalueImpl(L *lua.LState, valueVariant bool) int {
	p, err := argPath(L, 1)
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	n := L.OptInt(2, 1)
	path := valuepath.ExtendUservalue(uint16(n-1), p)
	val, ok := v.Eval.Evaluate(path)
	if !ok {
		return 0
	}
	if valueVariant {
		L.Push(v.pushValueOrPath(L, val, true, path))
	} else {
		L.Push(v.pushPath(L, path))
	}
	L.Push(lua.LTrue)
	return 2
}

// --- index / field ---

func (v *Visitor) index(L *lua.LState) int {
	p, err := argPath(L, 1)
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	key := L.CheckInt64(2)
	path := valuepath.ExtendIndexInt(key, p)
	L.Push(v.pushPath(L, path))
	return 1
}

func (v *Visitor) indexv(L *lua.LState) int {
	p, err := argPath(L, 1)
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	key := L.CheckInt64(2)
	path := valuepath.ExtendIndexInt(key, p)
	val, ok := v.Eval.Evaluate(path)
	L.Push(v.pushValueOrPath(L, val, ok, path))
	return 1
}

func (v *Visitor) field(L *lua.LState) int {
	p, err := argPath(L, 1)
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	key := L.CheckString(2)
	path := valuepath.ExtendIndexStr([]byte(key), p)
	L.Push(v.pushPath(L, path))
	return 1
}

func (v *Visitor) fieldv(L *lua.LState) int {
	p, err := argPath(L, 1)
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	key := L.CheckString(2)
	path := valuepath.ExtendIndexStr([]byte(key), p)
	val, ok := v.Eval.Evaluate(path)
	L.Push(v.pushValueOrPath(L, val, ok, path))
	return 1
}

// --- tablehash / tablesize / tablekey ---

func (v *Visitor) resolveTable(L *lua.LState, n int) (*lua.LTable, valuepath.Path, bool) {
	p, err := argPath(L, n)
	if err != nil {
		L.RaiseError("%v", err)
		return nil, nil, false
	}
	val, ok := v.Eval.Evaluate(p)
	if !ok {
		return nil, nil, false
	}
	tb, ok := val.(*lua.LTable)
	if !ok {
		return nil, nil, false
	}
	return tb, p, true
}

func (v *Visitor) tablehash(valueVariant bool) lua.LGFunction {
	return func(L *lua.LState) int {
		tb, tpath, ok := v.resolveTable(L, 1)
		if !ok {
			return 0
		}
		maxN := L.OptInt(2, -1)
		snap := tableintrospect.Take(tb)
		n := snap.HashSize()
		if maxN >= 0 && maxN < n {
			n = maxN
		}
		for i := 0; i < n; i++ {
			keyPath := valuepath.ExtendIndexKey(uint32(i), tpath)
			valPath := valuepath.ExtendIndexVal(uint32(i), tpath)
			k, val, _ := snap.GetKV(i)
			if valueVariant {
				L.Push(v.pushValueOrPath(L, k, true, keyPath))
				L.Push(v.pushValueOrPath(L, val, true, valPath))
			} else {
				L.Push(v.pushPath(L, keyPath))
				L.Push(v.pushPath(L, valPath))
				L.Push(v.pushValueOrPath(L, val, true, valPath))
			}
		}
		if valueVariant {
			return n * 2
		}
		return n * 3
	}
}

func (v *Visitor) tablesize(L *lua.LState) int {
	tb, _, ok := v.resolveTable(L, 1)
	if !ok {
		return 0
	}
	snap := tableintrospect.Take(tb)
	hashLen := snap.HashSize()
	if snap.HasZeroSlot() {
		hashLen++
	}
	L.Push(lua.LNumber(tableintrospect.ArraySize(tb)))
	L.Push(lua.LNumber(hashLen))
	return 2
}

func (v *Visitor) tablekey(L *lua.LState) int {
	tb, _, ok := v.resolveTable(L, 1)
	if !ok {
		return 0
	}
	start := L.OptInt(2, 0)
	snap := tableintrospect.Take(tb)
	key, next, found := snap.TableKey(start)
	if !found {
		return 0
	}
	L.Push(lua.LString(key))
	L.Push(lua.LNumber(next))
	return 2
}

// --- udread / udwrite ---

func (v *Visitor) resolveUserData(L *lua.LState, n int) (*hostlua.HostUserData, bool) {
	p, err := argPath(L, n)
	if err != nil {
		L.RaiseError("%v", err)
		return nil, false
	}
	val, ok := v.Eval.Evaluate(p)
	if !ok {
		return nil, false
	}
	ud, ok := val.(*lua.LUserData)
	if !ok {
		return nil, false
	}
	hud, ok := hostlua.AsHostUserData(ud)
	if !ok {
		return &hostlua.HostUserData{}, true
	}
	return hud, true
}

func (v *Visitor) udread(L *lua.LState) int {
	hud, ok := v.resolveUserData(L, 1)
	if !ok {
		return 0
	}
	offset := L.CheckInt(2)
	count := L.CheckInt(3)
	if offset < 0 || offset+count > len(hud.Bytes) {
		return 0
	}
	L.Push(lua.LString(hud.Bytes[offset : offset+count]))
	return 1
}

func (v *Visitor) udwrite(L *lua.LState) int {
	hud, ok := v.resolveUserData(L, 1)
	if !ok {
		L.Push(lua.LFalse)
		return 1
	}
	offset := L.CheckInt(2)
	data := []byte(L.CheckString(3))
	allowPartial := L.OptBool(4, false)

	if allowPartial {
		n := len(data)
		if offset < 0 || offset > len(hud.Bytes) {
			n = 0
		} else if offset+n > len(hud.Bytes) {
			n = len(hud.Bytes) - offset
		}
		if n < 0 {
			n = 0
		}
		if n > 0 {
			copy(hud.Bytes[offset:offset+n], data[:n])
		}
		L.Push(lua.LNumber(n))
		return 1
	}

	if offset < 0 || offset+len(data) > len(hud.Bytes) {
		L.Push(lua.LFalse)
		return 1
	}
	copy(hud.Bytes[offset:offset+len(data)], data)
	L.Push(lua.LTrue)
	return 1
}

// --- value / assign / type ---

func (v *Visitor) value(L *lua.LState) int {
	p, err := argPath(L, 1)
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	resolved, ok := v.Eval.Evaluate(p)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	if prim, isPrim := copier.CopyPrimitiveHostToDebugger(resolved); isPrim {
		L.Push(prim)
		return 1
	}
	result := copier.CopyValue(resolved, false, v.Reg, hostlua.TypeName(resolved))
	L.Push(lua.LString(result.Placeholder))
	return 1
}

func (v *Visitor) assign(L *lua.LState) int {
	p, err := argPath(L, 1)
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	newValue := L.Get(2)
	hostValue, ok := copier.CopyPrimitiveDebuggerToHost(newValue, v.Eval)
	if !ok {
		L.Push(lua.LFalse)
		return 1
	}
	ok = v.Asgn.Assign(p, hostValue)
	L.Push(lua.LBool(ok))
	return 1
}

func (v *Visitor) typeOf(L *lua.LState) int {
	arg := L.Get(1)
	if ud, ok := arg.(*lua.LUserData); ok {
		if p, ok := ud.Value.(valuepath.Path); ok {
			resolved, ok := v.Eval.Evaluate(p)
			if !ok {
				L.Push(lua.LString("nil"))
				return 1
			}
			L.Push(lua.LString(hostlua.TypeName(resolved)))
			return 1
		}
	}
	L.Push(lua.LString(hostlua.TypeName(arg)))
	return 1
}

// --- getinfo ---

func (v *Visitor) getinfo(L *lua.LState) int {
	options := L.CheckString(2)
	if len(options) > 7 {
		L.RaiseError("getinfo: options length exceeds 7 (%q)", options)
		return 0
	}

	var dbg *lua.Debug
	var fnIsPathArg bool
	var frameDepth int
	switch arg := L.Get(1).(type) {
	case lua.LNumber:
		frameDepth = int(arg)
		d, ok := v.Sess.Frame(frameDepth)
		if !ok {
			return 0
		}
		dbg = d
	case *lua.LUserData:
		p, ok := arg.Value.(valuepath.Path)
		if !ok {
			L.RaiseError("getinfo: argument 1 is not a frame or ValuePath")
			return 0
		}
		if strings.ContainsRune(options, 'f') {
			L.RaiseError("getinfo: option 'f' is invalid when the input is already a function path")
			return 0
		}
		fn, ok := v.Eval.Evaluate(p)
		if !ok {
			return 0
		}
		lfn, ok := fn.(*lua.LFunction)
		if !ok {
			return 0
		}
		dbg = &lua.Debug{}
		_, err := v.Sess.Host.GetInfo(">"+options, dbg, lfn)
		if err != nil {
			L.RaiseError("getinfo: %v", err)
			return 0
		}
		fnIsPathArg = true
	default:
		L.RaiseError("getinfo: argument 1 is not a frame or ValuePath")
		return 0
	}

	out := L.NewTable()
	if !fnIsPathArg {
		fnVal, err := v.Sess.Host.GetInfo(options, dbg, nil)
		if err != nil {
			L.RaiseError("getinfo: %v", err)
			return 0
		}
		if strings.ContainsRune(options, 'f') {
			if _, ok := fnVal.(*lua.LFunction); ok {
				L.SetField(out, "func", v.pushPath(L, valuepath.NewRoot(valuepath.FrameFunc, uint16(frameDepth), 0, 0)))
			}
		}
	}

	L.SetField(out, "source", lua.LString(dbg.Source))
	L.SetField(out, "short_src", lua.LString(dbg.Source))
	L.SetField(out, "linedefined", lua.LNumber(dbg.LineDefined))
	L.SetField(out, "lastlinedefined", lua.LNumber(dbg.LastLineDefined))
	L.SetField(out, "what", lua.LString(dbg.What))
	L.SetField(out, "currentline", lua.LNumber(dbg.CurrentLine))
	L.SetField(out, "name", lua.LString(dbg.Name))
	L.SetField(out, "namewhat", lua.LString(""))
	L.SetField(out, "nparams", lua.LNumber(0))
	L.SetField(out, "istailcall", lua.LFalse)
	L.SetField(out, "ftransfer", lua.LNumber(0))
	L.SetField(out, "ntransfer", lua.LNumber(0))

	L.Push(out)
	return 1
}

// --- load / eval / watch / cleanwatch ---

// load compiles source in the host and runs the resulting chunk once with no
// arguments, anchoring whatever it returns (per SPEC_FULL.md scenario S5,
// "return function(t) ... end" anchors the inner function itself, not the
// outer chunk closure).
func (v *Visitor) load(L *lua.LState) int {
	source := L.CheckString(1)
	host := v.Sess.Host
	fn, err := host.Load(strings.NewReader(source), "=(load)")
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	host.Push(fn)
	if err := v.Sess.DebugPCall(host, 0, 1, nil); err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	result := host.Get(-1)
	host.Pop(1)

	if copier.IsPrimitive(result) {
		prim, _ := copier.CopyPrimitiveHostToDebugger(result)
		L.Push(prim)
		return 1
	}
	handle := v.Reg.AddRef(result)
	L.Push(v.pushPath(L, valuepath.RefPath(v.Reg.RefAnchorName(), handle)))
	return 1
}

func (v *Visitor) resolveCallable(L *lua.LState, n int) (lua.LValue, error) {
	arg := L.Get(n)
	if ud, ok := arg.(*lua.LUserData); ok {
		if p, ok := ud.Value.(valuepath.Path); ok {
			val, ok := v.Eval.Evaluate(p)
			if !ok {
				return nil, fmt.Errorf("path does not resolve to a callable value")
			}
			return val, nil
		}
	}
	val, ok := copier.CopyPrimitiveDebuggerToHost(arg, v.Eval)
	if !ok {
		return nil, fmt.Errorf("value is not copyable to host")
	}
	return val, nil
}

func (v *Visitor) evalOrWatch(L *lua.LState, isWatch bool) int {
	callee, err := v.resolveCallable(L, 1)
	if err != nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	nargs := L.GetTop() - 1
	host := v.Sess.Host
	hostTop := host.GetTop()
	host.Push(callee)
	for i := 2; i <= nargs+1; i++ {
		hostArg, err := copier.EvalCopyArgs(host, v.Eval, L.Get(i))
		if err != nil {
			host.SetTop(hostTop)
			L.Push(lua.LFalse)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		host.Push(hostArg)
	}
	pcallErr := v.Sess.DebugPCall(host, nargs, lua.MultRet, nil)
	if pcallErr != nil {
		host.SetTop(hostTop)
		L.Push(lua.LFalse)
		L.Push(lua.LString(pcallErr.Error()))
		return 2
	}

	results := make([]lua.LValue, 0, host.GetTop()-hostTop)
	for i := hostTop + 1; i <= host.GetTop(); i++ {
		results = append(results, host.Get(i))
	}
	host.SetTop(hostTop)

	L.Push(lua.LTrue)
	n := 1
	for _, r := range results {
		if prim, ok := copier.CopyPrimitiveHostToDebugger(r); ok {
			L.Push(prim)
		} else if isWatch {
			handle := v.Reg.AddWatch(r)
			L.Push(v.pushPath(L, valuepath.RefPath(v.Reg.WatchAnchorName(), handle)))
		} else {
			handle := v.Reg.AddRef(r)
			L.Push(v.pushPath(L, valuepath.RefPath(v.Reg.RefAnchorName(), handle)))
		}
		n++
	}
	return n
}

func (v *Visitor) eval(L *lua.LState) int  { return v.evalOrWatch(L, false) }
func (v *Visitor) watch(L *lua.LState) int { return v.evalOrWatch(L, true) }

func (v *Visitor) cleanwatch(L *lua.LState) int {
	v.Reg.CleanWatch()
	return 0
}

// --- costatus / gccount / cfunctioninfo ---

func (v *Visitor) costatus(L *lua.LState) int {
	p, err := argPath(L, 1)
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	resolved, ok := v.Eval.Evaluate(p)
	if !ok {
		L.Push(lua.LString("invalid"))
		return 1
	}
	th, ok := resolved.(*lua.LState)
	if !ok {
		L.Push(lua.LString("invalid"))
		return 1
	}
	L.Push(lua.LString(v.Sess.Host.Status(th)))
	return 1
}

func (v *Visitor) gccount(L *lua.LState) int {
	L.Push(lua.LNumber(hostlua.GCCount()))
	return 1
}

func (v *Visitor) cfunctioninfo(L *lua.LState) int {
	p, err := argPath(L, 1)
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	resolved, ok := v.Eval.Evaluate(p)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	fn, ok := resolved.(*lua.LFunction)
	if !ok || !fn.IsG {
		L.Push(lua.LNil)
		return 1
	}
	name, ok := hostlua.FunctionName(fn)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(name))
	return 1
}
