// Package session wires one host *lua.LState and one debugger *lua.LState
// together: it is the collaborator layer SPEC_FULL.md 6/6.1 describes
// (get_host/debug_pcall), plus frame resolution by depth, which the
// evaluator needs but gopher-lua's *lua.LState alone does not expose as a
// small "Frames" interface.
package session

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/zot/luadbg-visitor/internal/config"
	"github.com/zot/luadbg-visitor/internal/registry"
)

// Session pairs one host interpreter with the debugger interpreter attached
// to inspect it, per SPEC_FULL.md 6.1's fixed one-to-one collaborator
// pairing (no discovery protocol -- Attach sets this up once).
type Session struct {
	Host     *lua.LState
	Debugger *lua.LState
	Reg      *registry.Registry
	cfg      *config.Config
}

// Attach builds a Session for an already-running host state and a fresh
// debugger state, lazily creating the reference registry's anchor tables on
// first use per SPEC_FULL.md 4.3.
func Attach(host *lua.LState, debugger *lua.LState, cfg *config.Config) *Session {
	s := &Session{
		Host:     host,
		Debugger: debugger,
		Reg:      registry.New(host),
		cfg:      cfg,
	}
	s.logf(1, "session attached: host=%p debugger=%p", host, debugger)
	return s
}

// GetHost implements the get_host(debugger_state) -> host_state
// collaborator symbol SPEC_FULL.md 6 requires. Since this implementation
// only ever attaches one debugger to one host, it is a direct field read;
// a transport layer juggling many simultaneous sessions would look this up
// by debugger state instead, but that bookkeeping belongs to the excluded
// RPC/thread-plumbing layer (SPEC_FULL.md 1).
func (s *Session) GetHost(debuggerState *lua.LState) *lua.LState {
	if debuggerState != s.Debugger {
		return nil
	}
	return s.Host
}

// DebugPCall implements debug_pcall(host_state, nargs, nresults, errfunc),
// a thin wrapper over gopher-lua's own protected call.
func (s *Session) DebugPCall(host *lua.LState, nargs, nresults int, errfunc *lua.LFunction) error {
	return host.PCall(nargs, nresults, errfunc)
}

// Frame resolves a call-frame descriptor by depth from the current frame (0
// = innermost), satisfying the evaluator.Frames interface.
func (s *Session) Frame(depth int) (*lua.Debug, bool) {
	return s.Host.GetStack(depth)
}

func (s *Session) logf(level int, format string, args ...interface{}) {
	if s.cfg != nil {
		s.cfg.Log(level, format, args...)
	}
}
