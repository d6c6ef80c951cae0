package value

import "unicode/utf8"

// NewIterator implements spec.md §4.4 iterator(value): str yields code
// points, tuple/list yield elements, map yields key-value pairs (as
// 2-tuples), range yields integers honoring its step.
func NewIterator(v Value) (Value, error) {
	switch v.Kind {
	case KStr, KTuple, KList, KMap, KRange:
		return Value{Kind: KIterator, Obj: &Object{Kind: KIterator, Iter: Iterator{Over: v}}}, nil
	default:
		return None, &TypeError{Op: "iterator", Expected: "str, tuple, list, map or range", Got: v.Kind}
	}
}

// IterNext advances it in place and returns the next element, or None at
// exhaustion (spec.md §8: "remains none" on every subsequent call once
// exhausted).
func IterNext(it Value) Value {
	obj := it.Obj
	if obj.Iter.done {
		return None
	}
	over := obj.Iter.Over
	switch over.Kind {
	case KStr:
		s := over.StrVal()
		if obj.Iter.idx >= len(s) {
			obj.Iter.done = true
			return None
		}
		r, size := utf8.DecodeRuneInString(s[obj.Iter.idx:])
		obj.Iter.idx += size
		return Str(string(r))
	case KList:
		if obj.Iter.idx >= len(over.Obj.List) {
			obj.Iter.done = true
			return None
		}
		v := over.Obj.List[obj.Iter.idx]
		obj.Iter.idx++
		return v
	case KTuple:
		if obj.Iter.idx >= len(over.Obj.Tuple) {
			obj.Iter.done = true
			return None
		}
		v := over.Obj.Tuple[obj.Iter.idx]
		obj.Iter.idx++
		return v
	case KMap:
		m := over.Obj.Map
		if obj.Iter.idx >= m.Len() {
			obj.Iter.done = true
			return None
		}
		k, val := m.Pair(obj.Iter.idx)
		obj.Iter.idx++
		return NewTuple([]Value{k, val})
	case KRange:
		r := over.Obj.Range
		step := r.EffectiveStep()
		n := r.Start + int64(obj.Iter.idx)*step
		if !rangeContains(r, n) {
			obj.Iter.done = true
			return None
		}
		obj.Iter.idx++
		return Int(n)
	default:
		obj.Iter.done = true
		return None
	}
}
