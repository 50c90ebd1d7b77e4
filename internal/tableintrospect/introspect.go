// Package tableintrospect implements the Table Introspector: enumerating a
// live host table's array part, hash part, and (host-version-specific)
// zero-key slot in a stable internal order (SPEC_FULL.md 4.6).
//
// gopher-lua's *lua.LTable exposes Len(), RawGetInt/RawSetInt, and Next(key)
// but no raw bucket-index accessor, so this package builds one
// orderedmap.OrderedMap snapshot per introspection call via repeated Next
// calls, and treats that snapshot's iteration order as the "bucket" address
// space for the lifetime of the call (SPEC_FULL.md 4.6.1).
package tableintrospect

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
	lua "github.com/yuin/gopher-lua"
)

// Snapshot is a single enumeration pass over a table's hash part, excluding
// the integer keys 1..Len() already covered by the array part.
type Snapshot struct {
	table *lua.LTable
	om    *orderedmap.OrderedMap[lua.LValue, lua.LValue]
	order []lua.LValue
}

// Take builds a fresh Snapshot of t's hash part. This host-version family
// has no zero-key slot distinct from ordinary hash entries (gopher-lua
// disallows a nil key exactly as standard Lua does), so HasZeroSlot is
// always false.
func Take(t *lua.LTable) *Snapshot {
	arrayLen := t.Len()
	om := orderedmap.New[lua.LValue, lua.LValue]()
	order := make([]lua.LValue, 0)

	key := lua.LValue(lua.LNil)
	for {
		k, v := t.Next(key)
		if k == lua.LNil {
			break
		}
		if n, ok := k.(lua.LNumber); ok {
			if i, isInt := isArrayIndex(n); isInt && i >= 1 && i <= int64(arrayLen) {
				key = k
				continue
			}
		}
		om.Set(k, v)
		order = append(order, k)
		key = k
	}
	return &Snapshot{table: t, om: om, order: order}
}

func isArrayIndex(n lua.LNumber) (int64, bool) {
	f := float64(n)
	i := int64(f)
	return i, f == float64(i)
}

// ArraySize is the table's array-part length (t.Len()).
func ArraySize(t *lua.LTable) int { return t.Len() }

// HashSize is the number of entries in a fresh hash-part snapshot.
func (s *Snapshot) HashSize() int { return len(s.order) }

// HasZeroSlot is always false for the gopher-lua host-version family.
func (s *Snapshot) HasZeroSlot() bool { return false }

// GetK pushes (returns) the key stored at hash bucket, or ok=false if the
// bucket index is out of range for this snapshot.
func (s *Snapshot) GetK(bucket int) (lua.LValue, bool) {
	if bucket < 0 || bucket >= len(s.order) {
		return lua.LNil, false
	}
	return s.order[bucket], true
}

// GetV pushes the value stored at hash bucket.
func (s *Snapshot) GetV(bucket int) (lua.LValue, bool) {
	k, ok := s.GetK(bucket)
	if !ok {
		return lua.LNil, false
	}
	v, present := s.om.Get(k)
	if !present {
		return lua.LNil, false
	}
	return v, true
}

// GetKV pushes key then value atomically (as a pair; callers push both in
// the order the evaluator's stack contract expects).
func (s *Snapshot) GetKV(bucket int) (k, v lua.LValue, ok bool) {
	k, ok = s.GetK(bucket)
	if !ok {
		return lua.LNil, lua.LNil, false
	}
	v, _ = s.om.Get(k)
	return k, v, true
}

// SetV replaces the value at an existing bucket in place, on both the
// snapshot and the live table (the snapshot's key is still valid since no
// mutation happened between Take and SetV in a single visitor call).
func (s *Snapshot) SetV(bucket int, newValue lua.LValue) bool {
	k, ok := s.GetK(bucket)
	if !ok {
		return false
	}
	s.om.Set(k, newValue)
	s.table.RawSet(k, newValue)
	return true
}

// TableKey performs the string-key-only sequential scan tablekey(path,
// start) needs: returns the next string key at or after the 0-based scan
// position start, plus the bucket index to resume from (bucket+1).
func (s *Snapshot) TableKey(start int) (key string, nextBucket int, ok bool) {
	for i := start; i < len(s.order); i++ {
		if str, isStr := s.order[i].(lua.LString); isStr {
			return string(str), i + 1, true
		}
	}
	return "", 0, false
}
