package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Eql implements spec.md §4.4 structural equality: int==num compares
// numerically, str/tuple/list compare element-wise, map compares
// order-independently over entries, range compares field-wise, otherwise
// tag equality is required.
func Eql(a, b Value) bool {
	if (a.Kind == KInt || a.Kind == KNum) && (b.Kind == KInt || b.Kind == KNum) {
		return numeric(a) == numeric(b)
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KNone:
		return true
	case KBool:
		return a.BoolVal() == b.BoolVal()
	case KStr:
		return a.StrVal() == b.StrVal()
	case KTuple:
		return eqlSlice(a.Obj.Tuple, b.Obj.Tuple)
	case KList:
		return eqlSlice(a.Obj.List, b.Obj.List)
	case KMap:
		return a.Obj.Map.Equal(b.Obj.Map)
	case KRange:
		ra, rb := a.Obj.Range, b.Obj.Range
		return ra.Start == rb.Start && ra.End == rb.End && ra.EffectiveStep() == rb.EffectiveStep()
	case KErr:
		return Eql(a.Obj.Err, b.Obj.Err)
	case KFunc:
		return a.Obj == b.Obj
	case KNative:
		return a.Obj == b.Obj
	case KIterator:
		return a.Obj == b.Obj
	default:
		return false
	}
}

func eqlSlice(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Eql(a[i], b[i]) {
			return false
		}
	}
	return true
}

func numeric(v Value) float64 {
	if v.Kind == KInt {
		return float64(v.IntVal())
	}
	return v.NumVal()
}

// In implements spec.md §4.4 "in": substring for str, element membership
// for tuple/list, key membership for map, integer membership (honoring
// step) for range.
func In(item, container Value) (bool, error) {
	switch container.Kind {
	case KStr:
		if item.Kind != KStr {
			return false, &TypeError{Op: "in", Expected: "str", Got: item.Kind}
		}
		return strings.Contains(container.StrVal(), item.StrVal()), nil
	case KTuple:
		return containsSlice(container.Obj.Tuple, item), nil
	case KList:
		return containsSlice(container.Obj.List, item), nil
	case KMap:
		_, ok := container.Obj.Map.Get(item)
		return ok, nil
	case KRange:
		if item.Kind != KInt {
			return false, nil
		}
		return rangeContains(container.Obj.Range, item.IntVal()), nil
	default:
		return false, &TypeError{Op: "in", Expected: "str, tuple, list, map or range", Got: container.Kind}
	}
}

func containsSlice(s []Value, item Value) bool {
	for _, e := range s {
		if Eql(e, item) {
			return true
		}
	}
	return false
}

func rangeContains(r Range, n int64) bool {
	step := r.EffectiveStep()
	if step > 0 {
		if n < r.Start || n >= r.End {
			return false
		}
	} else {
		if n > r.Start || n <= r.End {
			return false
		}
	}
	return (n-r.Start)%step == 0
}

// Get implements spec.md §4.4 get: list/tuple by integer index (negative =
// from end), map by key, string by integer (1-element substring).
func Get(container, key Value) (Value, error) {
	switch container.Kind {
	case KList:
		return indexSlice(container.Obj.List, key)
	case KTuple:
		return indexSlice(container.Obj.Tuple, key)
	case KStr:
		return indexStr(container.StrVal(), key)
	case KMap:
		v, ok := container.Obj.Map.Get(key)
		if !ok {
			return None, fmt.Errorf("key not found in map")
		}
		return v, nil
	default:
		return None, &TypeError{Op: "get", Expected: "list, tuple, str or map", Got: container.Kind}
	}
}

func resolveIndex(length int, key Value) (int, error) {
	if key.Kind != KInt {
		return 0, &TypeError{Op: "index", Expected: "int", Got: key.Kind}
	}
	idx := key.IntVal()
	if idx < 0 {
		idx += int64(length)
	}
	if idx < 0 || idx >= int64(length) {
		return 0, fmt.Errorf("index %d out of range (length %d)", key.IntVal(), length)
	}
	return int(idx), nil
}

func indexSlice(s []Value, key Value) (Value, error) {
	i, err := resolveIndex(len(s), key)
	if err != nil {
		return None, err
	}
	return s[i], nil
}

func indexStr(s string, key Value) (Value, error) {
	runes := []rune(s)
	i, err := resolveIndex(len(runes), key)
	if err != nil {
		return None, err
	}
	return Str(string(runes[i])), nil
}

// Set implements spec.md §4.4 set: list/map mutation in place; tuples and
// strings are immutable and fail.
func Set(container, key, val Value) error {
	switch container.Kind {
	case KList:
		i, err := resolveIndex(len(container.Obj.List), key)
		if err != nil {
			return err
		}
		container.Obj.List[i] = val
		return nil
	case KMap:
		container.Obj.Map.Set(key, val)
		return nil
	case KTuple:
		return fmt.Errorf("tuple is immutable")
	case KStr:
		return fmt.Errorf("str is immutable")
	default:
		return &TypeError{Op: "set", Expected: "list or map", Got: container.Kind}
	}
}

// Type ids for As/Is, matching the bytecode As/Is operand encoding.
const (
	TNone byte = iota
	TInt
	TNum
	TBool
	TStr
	TTuple
	TMap
	TList
	TErr
	TRange
	TFunc
)

func TypeName(t byte) string {
	switch t {
	case TNone:
		return "none"
	case TInt:
		return "int"
	case TNum:
		return "num"
	case TBool:
		return "bool"
	case TStr:
		return "str"
	case TTuple:
		return "tuple"
	case TMap:
		return "map"
	case TList:
		return "list"
	case TErr:
		return "err"
	case TRange:
		return "range"
	case TFunc:
		return "func"
	default:
		return "unknown"
	}
}

// TypeID maps a type-name keyword (as parsed from an `is`/`as` expression)
// to its operand byte, or ok=false if unknown.
func TypeID(name string) (byte, bool) {
	switch name {
	case "none":
		return TNone, true
	case "int":
		return TInt, true
	case "num":
		return TNum, true
	case "bool":
		return TBool, true
	case "str":
		return TStr, true
	case "tuple":
		return TTuple, true
	case "map":
		return TMap, true
	case "list":
		return TList, true
	case "err":
		return TErr, true
	case "range":
		return TRange, true
	case "func":
		return TFunc, true
	default:
		return 0, false
	}
}

// Is implements spec.md §4.4 tag test.
func Is(v Value, t byte) bool {
	switch t {
	case TNone:
		return v.Kind == KNone
	case TInt:
		return v.Kind == KInt
	case TNum:
		return v.Kind == KNum
	case TBool:
		return v.Kind == KBool
	case TStr:
		return v.Kind == KStr
	case TTuple:
		return v.Kind == KTuple
	case TMap:
		return v.Kind == KMap
	case TList:
		return v.Kind == KList
	case TErr:
		return v.Kind == KErr
	case TRange:
		return v.Kind == KRange
	case TFunc:
		return v.Kind == KFunc
	default:
		return false
	}
}

// As implements spec.md §4.4 coercion among none|int|num|bool|str|tuple|map|list.
func As(v Value, t byte) (Value, error) {
	switch t {
	case TNone:
		return None, nil
	case TBool:
		return Bool(v.IsTruthyVal()), nil
	case TInt:
		switch v.Kind {
		case KInt:
			return v, nil
		case KNum:
			return Int(int64(v.NumVal())), nil
		case KBool:
			if v.BoolVal() {
				return Int(1), nil
			}
			return Int(0), nil
		case KStr:
			i, err := strconv.ParseInt(strings.TrimSpace(v.StrVal()), 10, 64)
			if err != nil {
				return None, fmt.Errorf("cannot parse %q as int", v.StrVal())
			}
			return Int(i), nil
		}
	case TNum:
		switch v.Kind {
		case KNum:
			return v, nil
		case KInt:
			return Num(float64(v.IntVal())), nil
		case KStr:
			f, err := strconv.ParseFloat(strings.TrimSpace(v.StrVal()), 64)
			if err != nil {
				return None, fmt.Errorf("cannot parse %q as num", v.StrVal())
			}
			return Num(f), nil
		}
	case TStr:
		return Str(ToDisplayString(v)), nil
	case TTuple:
		switch v.Kind {
		case KTuple:
			return v, nil
		case KList:
			return NewTuple(append([]Value(nil), v.Obj.List...)), nil
		}
	case TList:
		switch v.Kind {
		case KList:
			return v, nil
		case KTuple:
			return NewList(append([]Value(nil), v.Obj.Tuple...)), nil
		}
	case TMap:
		if v.Kind == KMap {
			return v, nil
		}
	}
	return None, fmt.Errorf("cannot convert %s to %s", v.Kind, TypeName(t))
}

// ToDisplayString renders a Value the way `as str` and error/diagnostic
// messages do.
func ToDisplayString(v Value) string {
	switch v.Kind {
	case KNone:
		return "none"
	case KBool:
		return strconv.FormatBool(v.BoolVal())
	case KInt:
		return strconv.FormatInt(v.IntVal(), 10)
	case KNum:
		return strconv.FormatFloat(v.NumVal(), 'g', -1, 64)
	case KStr:
		return v.StrVal()
	case KTuple:
		return joinDisplay(v.Obj.Tuple, "(", ")")
	case KList:
		return joinDisplay(v.Obj.List, "[", "]")
	case KMap:
		var sb strings.Builder
		sb.WriteByte('{')
		for i, k := range v.Obj.Map.Keys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			val, _ := v.Obj.Map.Get(k)
			sb.WriteString(ToDisplayString(k))
			sb.WriteString(": ")
			sb.WriteString(ToDisplayString(val))
		}
		sb.WriteByte('}')
		return sb.String()
	case KRange:
		r := v.Obj.Range
		if r.Step != 0 {
			return fmt.Sprintf("%d...%d:%d", r.Start, r.End, r.Step)
		}
		return fmt.Sprintf("%d...%d", r.Start, r.End)
	case KErr:
		return "error(" + ToDisplayString(v.Obj.Err) + ")"
	case KFunc:
		return "func"
	case KNative:
		return "native(" + v.Obj.Nat.Name + ")"
	case KIterator:
		return "iterator"
	default:
		return "?"
	}
}

func joinDisplay(vs []Value, open, close string) string {
	var sb strings.Builder
	sb.WriteString(open)
	for i, e := range vs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(ToDisplayString(e))
	}
	sb.WriteString(close)
	return sb.String()
}
