// Package valuepath implements the self-contained binary path encoding used
// to denote a value living inside a host interpreter: a chain of steps
// (indexing, upvalue, metatable, user-value access) terminating in a root
// (frame local, frame function, globals, registry, or raw stack slot).
//
// A Path is a plain []byte. Encoding is front-loaded: the outermost step is
// written first, followed by the bytes of its inner path, recursing down to
// a root step which has no inner path. Evaluating a path therefore means
// recursing to the root first and applying steps back out toward the front
// -- the same order extend used to build the buffer, reversed.
package valuepath

import (
	"encoding/binary"
	"fmt"
)

// Kind tags the variant of the outermost step of a Path.
type Kind byte

const (
	FrameLocal Kind = iota
	FrameFunc
	Global
	Registry
	Stack
	Upvalue
	Metatable
	Uservalue
	IndexInt
	IndexStr
	IndexKey
	IndexVal
)

func (k Kind) String() string {
	switch k {
	case FrameLocal:
		return "FRAME_LOCAL"
	case FrameFunc:
		return "FRAME_FUNC"
	case Global:
		return "GLOBAL"
	case Registry:
		return "REGISTRY"
	case Stack:
		return "STACK"
	case Upvalue:
		return "UPVALUE"
	case Metatable:
		return "METATABLE"
	case Uservalue:
		return "USERVALUE"
	case IndexInt:
		return "INDEX_INT"
	case IndexStr:
		return "INDEX_STR"
	case IndexKey:
		return "INDEX_KEY"
	case IndexVal:
		return "INDEX_VAL"
	default:
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
}

// Path is an opaque, self-contained byte sequence. It never holds a live
// pointer into host memory and is safe to copy by value (Go slice header
// copy aliases the same backing array, which is fine: Paths are never
// mutated in place after extend produces them).
type Path []byte

var byteOrder = binary.LittleEndian

// Step is the decoded header of a Path's outermost step.
type Step struct {
	Kind Kind

	Frame  uint16
	Slot   int16 // FRAME_LOCAL
	Stack  int32 // STACK
	Index  uint16
	Bucket uint32
	Key    int64
	Str    []byte
	Base   byte // METATABLE base_type
	HasInner bool

	Inner Path
}

// headerLen returns the number of bytes this Path's outermost step occupies
// before its inner path begins, not counting the inner path itself.
func headerLen(kind Kind, p Path) (int, error) {
	switch kind {
	case FrameLocal:
		return 5, nil
	case FrameFunc:
		return 3, nil
	case Global, Registry:
		return 1, nil
	case Stack:
		return 5, nil
	case Upvalue:
		return 3, nil
	case Metatable:
		if len(p) < 3 {
			return 0, fmt.Errorf("valuepath: truncated METATABLE step")
		}
		if p[2] == 0 {
			return 3, nil
		}
		return 3, nil
	case Uservalue:
		return 3, nil
	case IndexInt:
		return 9, nil
	case IndexStr:
		if len(p) < 5 {
			return 0, fmt.Errorf("valuepath: truncated INDEX_STR step")
		}
		strLen := byteOrder.Uint32(p[1:5])
		return 5 + int(strLen), nil
	case IndexKey, IndexVal:
		return 5, nil
	default:
		return 0, fmt.Errorf("valuepath: unknown step kind %d", byte(kind))
	}
}

// Decode parses the outermost step of p. p may be longer than one step's
// worth of bytes (the recursion hands the evaluator a suffix of a larger
// buffer); only the prefix belonging to this step is consumed.
func Decode(p Path) (Step, error) {
	if len(p) == 0 {
		return Step{}, fmt.Errorf("valuepath: empty path")
	}
	kind := Kind(p[0])
	hl, err := headerLen(kind, p)
	if err != nil {
		return Step{}, err
	}
	if len(p) < hl {
		return Step{}, fmt.Errorf("valuepath: truncated %v step", kind)
	}
	s := Step{Kind: kind}
	switch kind {
	case FrameLocal:
		s.Frame = byteOrder.Uint16(p[1:3])
		s.Slot = int16(byteOrder.Uint16(p[3:5]))
	case FrameFunc:
		s.Frame = byteOrder.Uint16(p[1:3])
	case Global, Registry:
		// no payload
	case Stack:
		s.Stack = int32(byteOrder.Uint32(p[1:5]))
	case Upvalue:
		s.Index = byteOrder.Uint16(p[1:3])
		s.Inner = p[hl:]
	case Metatable:
		s.Base = p[1]
		s.HasInner = p[2] != 0
		if s.HasInner {
			s.Inner = p[hl:]
		}
	case Uservalue:
		s.Index = byteOrder.Uint16(p[1:3])
		s.Inner = p[hl:]
	case IndexInt:
		s.Key = int64(byteOrder.Uint64(p[1:9]))
		s.Inner = p[hl:]
	case IndexStr:
		strLen := byteOrder.Uint32(p[1:5])
		s.Str = p[5 : 5+strLen]
		s.Inner = p[hl:]
	case IndexKey, IndexVal:
		s.Bucket = byteOrder.Uint32(p[1:5])
		s.Inner = p[hl:]
	}
	return s, nil
}

// Size returns the total number of bytes belonging to p's outermost step and
// everything nested inside it. It is total on any Path produced by this
// package: each composite step's own size is its header plus the recursively
// computed size of its inner path.
func Size(p Path) (int, error) {
	if len(p) == 0 {
		return 0, fmt.Errorf("valuepath: empty path")
	}
	kind := Kind(p[0])
	hl, err := headerLen(kind, p)
	if err != nil {
		return 0, err
	}
	switch kind {
	case FrameLocal, FrameFunc, Global, Registry, Stack:
		return hl, nil
	case Metatable:
		if p[2] == 0 {
			return hl, nil
		}
		inner := p[hl:]
		innerSize, err := Size(inner)
		if err != nil {
			return 0, err
		}
		return hl + innerSize, nil
	default:
		inner := p[hl:]
		innerSize, err := Size(inner)
		if err != nil {
			return 0, err
		}
		return hl + innerSize, nil
	}
}

func writeHeader(kind Kind, payload ...byte) []byte {
	return append([]byte{byte(kind)}, payload...)
}

// NewRoot builds a fresh root step (FRAME_LOCAL, FRAME_FUNC, GLOBAL,
// REGISTRY, or STACK). Root steps never carry an inner path.
func NewRoot(kind Kind, frame uint16, slot int16, stackSlot int32) Path {
	switch kind {
	case FrameLocal:
		buf := make([]byte, 5)
		buf[0] = byte(kind)
		byteOrder.PutUint16(buf[1:3], frame)
		byteOrder.PutUint16(buf[3:5], uint16(slot))
		return buf
	case FrameFunc:
		buf := make([]byte, 3)
		buf[0] = byte(kind)
		byteOrder.PutUint16(buf[1:3], frame)
		return buf
	case Global, Registry:
		return []byte{byte(kind)}
	case Stack:
		buf := make([]byte, 5)
		buf[0] = byte(kind)
		byteOrder.PutUint32(buf[1:5], uint32(stackSlot))
		return buf
	default:
		panic(fmt.Sprintf("valuepath: %v is not a root kind", kind))
	}
}

// ExtendUpvalue, ExtendMetatable, ... build composite steps by allocating a
// fresh buffer and copying inner verbatim, never mutating inner's backing
// array. Each mirrors extend(kind, inner, extra_bytes?) from the design.

func ExtendUpvalue(index uint16, inner Path) Path {
	buf := make([]byte, 3+len(inner))
	buf[0] = byte(Upvalue)
	byteOrder.PutUint16(buf[1:3], index)
	copy(buf[3:], inner)
	return buf
}

// ExtendMetatable builds a METATABLE step. inner may be nil when baseType
// denotes a primitive type that has a shared per-type metatable instead of a
// concrete receiver value.
func ExtendMetatable(baseType byte, inner Path) Path {
	if inner == nil {
		return []byte{byte(Metatable), baseType, 0}
	}
	buf := make([]byte, 3+len(inner))
	buf[0] = byte(Metatable)
	buf[1] = baseType
	buf[2] = 1
	copy(buf[3:], inner)
	return buf
}

func ExtendUservalue(slot uint16, inner Path) Path {
	buf := make([]byte, 3+len(inner))
	buf[0] = byte(Uservalue)
	byteOrder.PutUint16(buf[1:3], slot)
	copy(buf[3:], inner)
	return buf
}

func ExtendIndexInt(key int64, inner Path) Path {
	buf := make([]byte, 9+len(inner))
	buf[0] = byte(IndexInt)
	byteOrder.PutUint64(buf[1:9], uint64(key))
	copy(buf[9:], inner)
	return buf
}

func ExtendIndexStr(key []byte, inner Path) Path {
	buf := make([]byte, 5+len(key)+len(inner))
	buf[0] = byte(IndexStr)
	byteOrder.PutUint32(buf[1:5], uint32(len(key)))
	copy(buf[5:], key)
	copy(buf[5+len(key):], inner)
	return buf
}

func ExtendIndexKey(bucket uint32, inner Path) Path {
	buf := make([]byte, 5+len(inner))
	buf[0] = byte(IndexKey)
	byteOrder.PutUint32(buf[1:5], bucket)
	copy(buf[5:], inner)
	return buf
}

func ExtendIndexVal(bucket uint32, inner Path) Path {
	buf := make([]byte, 5+len(inner))
	buf[0] = byte(IndexVal)
	byteOrder.PutUint32(buf[1:5], bucket)
	copy(buf[5:], inner)
	return buf
}

// RefPath builds the registry-indirecting path for a reference handle inside
// the named registry anchor table (e.g. "__debugger_ref" or
// "__debugger_watch"): INDEX_INT(handle) -> INDEX_STR(name) -> REGISTRY.
func RefPath(anchorName string, handle int64) Path {
	return ExtendIndexInt(handle, ExtendIndexStr([]byte(anchorName), NewRoot(Registry, 0, 0, 0)))
}
