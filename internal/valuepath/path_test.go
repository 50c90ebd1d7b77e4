package valuepath

import (
	"bytes"
	"testing"
)

func TestNewRootSizes(t *testing.T) {
	cases := []struct {
		name string
		path Path
		want int
	}{
		{"global", NewRoot(Global, 0, 0, 0), 1},
		{"registry", NewRoot(Registry, 0, 0, 0), 1},
		{"frame_local", NewRoot(FrameLocal, 3, -1, 0), 5},
		{"frame_func", NewRoot(FrameFunc, 3, 0, 0), 3},
		{"stack", NewRoot(Stack, 0, 0, -1), 5},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Size(c.path)
			if err != nil {
				t.Fatalf("Size: %v", err)
			}
			if got != c.want {
				t.Errorf("Size(%s) = %d, want %d", c.name, got, c.want)
			}
			if got != len(c.path) {
				t.Errorf("Size(%s) = %d, len(path) = %d, want equal", c.name, got, len(c.path))
			}
		})
	}
}

func TestExtendPreservesInnerBytes(t *testing.T) {
	inner := NewRoot(Global, 0, 0, 0)
	innerCopy := append(Path(nil), inner...)

	p := ExtendIndexStr([]byte("foo"), inner)

	if !bytes.Equal(inner, innerCopy) {
		t.Fatalf("extend mutated its inner path in place: got %v, want %v", []byte(inner), []byte(innerCopy))
	}

	step, err := Decode(p)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if step.Kind != IndexStr {
		t.Fatalf("Kind = %v, want IndexStr", step.Kind)
	}
	if string(step.Str) != "foo" {
		t.Errorf("Str = %q, want %q", step.Str, "foo")
	}
	if !bytes.Equal(step.Inner, inner) {
		t.Errorf("Inner = %v, want %v", []byte(step.Inner), []byte(inner))
	}
}

func TestSizeRecursesThroughComposites(t *testing.T) {
	root := NewRoot(Global, 0, 0, 0)
	p1 := ExtendIndexStr([]byte("foo"), root)
	p2 := ExtendIndexStr([]byte("bar"), p1)
	p3 := ExtendUpvalue(2, p2)

	wantSize := len(p3)
	gotSize, err := Size(p3)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if gotSize != wantSize {
		t.Errorf("Size(p3) = %d, want %d (= len(p3))", gotSize, wantSize)
	}

	innerSize, err := Size(p2)
	if err != nil {
		t.Fatalf("Size(p2): %v", err)
	}
	if innerSize != len(p2) {
		t.Errorf("Size(p2) = %d, want %d", innerSize, len(p2))
	}
}

func TestDecodeToleratesSuffixOfLargerBuffer(t *testing.T) {
	// The evaluator hands Decode a suffix (step.Inner) of a larger backing
	// buffer on every recursive call; Decode must only consume its own
	// step's bytes and stop there.
	root := NewRoot(Registry, 0, 0, 0)
	p1 := ExtendIndexStr([]byte("__debugger_ref"), root)
	p2 := ExtendIndexInt(7, p1)

	step, err := Decode(p2)
	if err != nil {
		t.Fatalf("Decode(p2): %v", err)
	}
	if step.Kind != IndexInt || step.Key != 7 {
		t.Fatalf("unexpected outer step: %+v", step)
	}

	innerStep, err := Decode(step.Inner)
	if err != nil {
		t.Fatalf("Decode(inner): %v", err)
	}
	if innerStep.Kind != IndexStr || string(innerStep.Str) != "__debugger_ref" {
		t.Fatalf("unexpected inner step: %+v", innerStep)
	}

	rootStep, err := Decode(innerStep.Inner)
	if err != nil {
		t.Fatalf("Decode(root): %v", err)
	}
	if rootStep.Kind != Registry {
		t.Fatalf("Kind = %v, want Registry", rootStep.Kind)
	}
}

func TestMetatableStepWithAndWithoutInner(t *testing.T) {
	withInner := ExtendMetatable(2, NewRoot(Global, 0, 0, 0))
	step, err := Decode(withInner)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !step.HasInner || step.Base != 2 {
		t.Fatalf("unexpected step: %+v", step)
	}

	noInner := ExtendMetatable(0, nil)
	step2, err := Decode(noInner)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if step2.HasInner {
		t.Fatalf("expected HasInner=false for primitive metatable step")
	}
	size, err := Size(noInner)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 3 {
		t.Errorf("Size = %d, want 3", size)
	}
}

func TestRefPathShape(t *testing.T) {
	p := RefPath("__debugger_ref", 5)

	outer, err := Decode(p)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if outer.Kind != IndexInt || outer.Key != 5 {
		t.Fatalf("outer step = %+v, want IndexInt(5)", outer)
	}

	mid, err := Decode(outer.Inner)
	if err != nil {
		t.Fatalf("Decode(mid): %v", err)
	}
	if mid.Kind != IndexStr || string(mid.Str) != "__debugger_ref" {
		t.Fatalf("mid step = %+v, want IndexStr(__debugger_ref)", mid)
	}

	root, err := Decode(mid.Inner)
	if err != nil {
		t.Fatalf("Decode(root): %v", err)
	}
	if root.Kind != Registry {
		t.Fatalf("root step = %+v, want Registry", root)
	}
}

func TestDecodeEmptyPathIsError(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Fatal("expected error decoding an empty path")
	}
	if _, err := Size(nil); err == nil {
		t.Fatal("expected error sizing an empty path")
	}
}

func TestKindStringCoversAllVariants(t *testing.T) {
	kinds := []Kind{FrameLocal, FrameFunc, Global, Registry, Stack, Upvalue, Metatable, Uservalue, IndexInt, IndexStr, IndexKey, IndexVal}
	seen := map[string]bool{}
	for _, k := range kinds {
		s := k.String()
		if seen[s] {
			t.Errorf("Kind %d collides with an earlier String() value %q", k, s)
		}
		seen[s] = true
	}
}
