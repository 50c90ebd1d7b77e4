package tableintrospect

import (
	"testing"

	lua "github.com/yuin/gopher-lua"
)

// TestTakeExcludesArrayPart verifies the array part (contiguous integer keys
// starting at 1) is not re-enumerated through the hash-part snapshot.
func TestTakeExcludesArrayPart(t *testing.T) {
	host := lua.NewState()
	defer host.Close()

	tb := host.NewTable()
	tb.RawSetInt(1, lua.LString("a"))
	tb.RawSetInt(2, lua.LString("b"))
	tb.RawSetString("x", lua.LNumber(1))

	if got := ArraySize(tb); got != 2 {
		t.Fatalf("ArraySize = %d, want 2", got)
	}

	snap := Take(tb)
	if snap.HashSize() != 1 {
		t.Fatalf("HashSize = %d, want 1 (array part must be excluded)", snap.HashSize())
	}
	key, ok := snap.GetK(0)
	if !ok || key != lua.LString("x") {
		t.Fatalf("GetK(0) = (%v, %v), want (\"x\", true)", key, ok)
	}
}

// TestEnumerationCompleteness mirrors SPEC_FULL scenario S4: a table with
// string, boolean, and table keys in its hash part is fully enumerated, each
// key exactly once.
func TestEnumerationCompleteness(t *testing.T) {
	host := lua.NewState()
	defer host.Close()

	tb := host.NewTable()
	nestedKey := host.NewTable()
	tb.RawSetString("a", lua.LNumber(1))
	tb.RawSetString("b", lua.LNumber(2))
	tb.RawSet(lua.LTrue, lua.LNumber(3))
	tb.RawSet(nestedKey, lua.LNumber(4))

	snap := Take(tb)
	if snap.HashSize() != 4 {
		t.Fatalf("HashSize = %d, want 4", snap.HashSize())
	}

	seen := map[lua.LValue]bool{}
	for i := 0; i < snap.HashSize(); i++ {
		k, v, ok := snap.GetKV(i)
		if !ok {
			t.Fatalf("GetKV(%d) failed", i)
		}
		if seen[k] {
			t.Errorf("key %v enumerated more than once", k)
		}
		seen[k] = true
		_ = v
	}
	if len(seen) != 4 {
		t.Errorf("saw %d distinct keys, want 4", len(seen))
	}
	for _, want := range []lua.LValue{lua.LString("a"), lua.LString("b"), lua.LTrue, lua.LValue(nestedKey)} {
		if !seen[want] {
			t.Errorf("key %v from the original table was never enumerated", want)
		}
	}
}

func TestSetVReplacesInPlace(t *testing.T) {
	host := lua.NewState()
	defer host.Close()

	tb := host.NewTable()
	tb.RawSetString("k", lua.LNumber(1))

	snap := Take(tb)
	if ok := snap.SetV(0, lua.LNumber(99)); !ok {
		t.Fatal("SetV(0, ...) failed")
	}
	if got := tb.RawGetString("k"); got != lua.LNumber(99) {
		t.Errorf("live table was not updated: got %v, want 99", got)
	}
	if v, ok := snap.GetV(0); !ok || v != lua.LNumber(99) {
		t.Errorf("snapshot was not updated: got (%v, %v)", v, ok)
	}

	if snap.SetV(99, lua.LNumber(1)) {
		t.Error("SetV succeeded for an out-of-range bucket")
	}
}

func TestTableKeyScansStringKeysOnly(t *testing.T) {
	host := lua.NewState()
	defer host.Close()

	tb := host.NewTable()
	tb.RawSet(lua.LTrue, lua.LNumber(1))
	tb.RawSetString("first", lua.LNumber(2))
	tb.RawSetString("second", lua.LNumber(3))

	snap := Take(tb)

	var found []string
	start := 0
	for {
		key, next, ok := snap.TableKey(start)
		if !ok {
			break
		}
		found = append(found, key)
		start = next
	}

	if len(found) != 2 {
		t.Fatalf("found %d string keys, want 2: %v", len(found), found)
	}
	want := map[string]bool{"first": true, "second": true}
	for _, k := range found {
		if !want[k] {
			t.Errorf("unexpected key %q scanned", k)
		}
	}
}

func TestHasZeroSlotAlwaysFalseForGopherLua(t *testing.T) {
	host := lua.NewState()
	defer host.Close()

	snap := Take(host.NewTable())
	if snap.HasZeroSlot() {
		t.Error("HasZeroSlot should always be false for the gopher-lua host family")
	}
}
