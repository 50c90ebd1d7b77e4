package session

import (
	"io"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestAttachPairsHostAndDebugger(t *testing.T) {
	host := lua.NewState()
	defer host.Close()
	debugger := lua.NewState()
	defer debugger.Close()

	sess := Attach(host, debugger, nil)
	if sess.Host != host || sess.Debugger != debugger {
		t.Fatal("Attach did not store the given host/debugger states")
	}
	if sess.Reg == nil {
		t.Fatal("Attach did not build a Registry")
	}
}

func TestGetHostMatchesOnlyItsOwnDebugger(t *testing.T) {
	host := lua.NewState()
	defer host.Close()
	debugger := lua.NewState()
	defer debugger.Close()
	other := lua.NewState()
	defer other.Close()

	sess := Attach(host, debugger, nil)

	if got := sess.GetHost(debugger); got != host {
		t.Errorf("GetHost(debugger) = %v, want the attached host", got)
	}
	if got := sess.GetHost(other); got != nil {
		t.Errorf("GetHost(unrelated state) = %v, want nil", got)
	}
}

func TestFrameDelegatesToHostGetStack(t *testing.T) {
	host := lua.NewState()
	defer host.Close()
	debugger := lua.NewState()
	defer debugger.Close()
	sess := Attach(host, debugger, nil)

	if _, ok := sess.Frame(0); ok {
		t.Error("Frame(0) resolved with no active call frame on a fresh state")
	}

	var sawFrame bool
	host.SetGlobal("probe", host.NewFunction(func(L *lua.LState) int {
		_, sawFrame = sess.Frame(1)
		return 0
	}))
	if err := host.DoString(`function run() probe() end; run()`); err != nil {
		t.Fatalf("DoString: %v", err)
	}
	if !sawFrame {
		t.Error("Frame(1) from inside probe should resolve run()'s call frame")
	}
}

func TestDebugPCallRunsAProtectedCall(t *testing.T) {
	host := lua.NewState()
	defer host.Close()
	debugger := lua.NewState()
	defer debugger.Close()
	sess := Attach(host, debugger, nil)

	fn, err := host.Load(newReader("return 1 + 2"), "=(test)")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	top := host.GetTop()
	host.Push(fn)
	if err := sess.DebugPCall(host, 0, 1, nil); err != nil {
		t.Fatalf("DebugPCall: %v", err)
	}
	got := host.Get(-1)
	host.SetTop(top)
	if got != lua.LNumber(3) {
		t.Errorf("result = %v, want 3", got)
	}
}

func newReader(s string) *stringReader { return &stringReader{s: s} }

type stringReader struct {
	s   string
	pos int
}

func (r *stringReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.s) {
		return 0, io.EOF
	}
	n := copy(p, r.s[r.pos:])
	r.pos += n
	return n, nil
}
