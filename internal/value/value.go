// Package value implements Bog's tagged value model: the runtime
// representation every VM register holds, and the polymorphic operations
// (equality, indexing, membership, coercion, iteration) spec.md §4.4
// describes.
//
// Grounded on the teacher's core/decorator/value.go discriminated
// Value/ResolveResult shape (a small tag plus per-kind payload fields)
// generalized from "decorator resolution result" to "language value", and
// on core/types' preference for explicit Kind enums with a String method
// over Go interface-based sum types.
package value

import "fmt"

// Kind tags the runtime variant of a Value.
type Kind uint8

const (
	KNone Kind = iota
	KBool
	KInt
	KNum
	KStr
	KTuple
	KList
	KMap
	KRange
	KErr
	KFunc
	KNative
	KIterator
)

func (k Kind) String() string {
	switch k {
	case KNone:
		return "none"
	case KBool:
		return "bool"
	case KInt:
		return "int"
	case KNum:
		return "num"
	case KStr:
		return "str"
	case KTuple:
		return "tuple"
	case KList:
		return "list"
	case KMap:
		return "map"
	case KRange:
		return "range"
	case KErr:
		return "err"
	case KFunc:
		return "func"
	case KNative:
		return "native"
	case KIterator:
		return "iterator"
	default:
		return "unknown"
	}
}

// Value is the tagged variant every VM register holds. Composite kinds
// (tuple/list/map/range/err/func/native/iterator) carry their payload
// through a heap-allocated *Object, which is what the garbage collector
// roots and sweeps; none/bool/int/num/str are held inline.
type Value struct {
	Kind Kind
	i    int64
	f    float64
	s    string
	Obj  *Object
}

// Object is a GC-managed heap allocation backing a composite Value.
type Object struct {
	Kind Kind

	Tuple []Value
	List  []Value
	Map   *Map
	Range Range
	Err   Value
	Func  Func
	Nat   Native
	Iter  Iterator

	marked bool
	next   *Object
}

type Range struct {
	Start, End int64
	Step       int64 // 0 means unset; treated as 1 (or -1 if End < Start)
}

func (r Range) EffectiveStep() int64 {
	if r.Step != 0 {
		return r.Step
	}
	if r.End < r.Start {
		return -1
	}
	return 1
}

// Func is a Bog closure value: an entry point into a module plus its
// captured variables. Captures are boxed (*Value) so StoreCapture can fill
// a slot allocated uninitialized by BuildFn before the closure is used.
type Func struct {
	ArgCount int
	Entry    uint32
	Module   ModuleRef
	Captures []*Value
}

// ModuleRef is implemented by *bytecode.Module; kept as an interface here
// to avoid value importing bytecode (bytecode doesn't need value, but
// keeping the dependency one-directional avoids a cycle through compiler).
type ModuleRef interface {
	ModuleName() string
}

// NativeFunc is the ABI a host-registered native function implements:
// (interpreter handle, argument slice) -> (result, error). Interp is a
// minimal interface implemented by *vm.VM, letting a native call back into
// the interpreter (e.g. to invoke a Bog function value) without value
// importing vm.
type NativeFunc func(i Interp, args []Value) (Value, error)

type Interp interface {
	CallValue(fn Value, args []Value) (Value, error)
}

type Native struct {
	Name     string
	Fn       NativeFunc
	ArgCount int
	Variadic bool
}

// Iterator is the mutable state of a live iteration over some container.
type Iterator struct {
	Over Value
	// idx indexes list/tuple elements, code points (by byte offset) for
	// str, or the Map's insertion-ordered keys slice.
	idx  int
	done bool
}

// --- singletons ------------------------------------------------------

var (
	None  = Value{Kind: KNone}
	True  = Value{Kind: KBool, i: 1}
	False = Value{Kind: KBool, i: 0}
)

func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

func Int(i int64) Value    { return Value{Kind: KInt, i: i} }
func Num(f float64) Value  { return Value{Kind: KNum, f: f} }
func Str(s string) Value   { return Value{Kind: KStr, s: s} }
func IsTruthy(b bool) bool { return b }

func (v Value) IntVal() int64    { return v.i }
func (v Value) NumVal() float64  { return v.f }
func (v Value) StrVal() string   { return v.s }
func (v Value) BoolVal() bool    { return v.i != 0 }
func (v Value) IsNone() bool     { return v.Kind == KNone }
func (v Value) IsErr() bool      { return v.Kind == KErr }
func (v Value) IsTruthyVal() bool {
	switch v.Kind {
	case KBool:
		return v.BoolVal()
	case KNone:
		return false
	default:
		return true
	}
}

func NewErr(inner Value) Value {
	return Value{Kind: KErr, Obj: &Object{Kind: KErr, Err: inner}}
}

func (v Value) ErrInner() Value { return v.Obj.Err }

func NewTuple(elems []Value) Value {
	return Value{Kind: KTuple, Obj: &Object{Kind: KTuple, Tuple: elems}}
}

func NewList(elems []Value) Value {
	return Value{Kind: KList, Obj: &Object{Kind: KList, List: elems}}
}

func NewMap(m *Map) Value {
	return Value{Kind: KMap, Obj: &Object{Kind: KMap, Map: m}}
}

func NewRange(r Range) Value {
	return Value{Kind: KRange, Obj: &Object{Kind: KRange, Range: r}}
}

func NewFunc(f Func) Value {
	return Value{Kind: KFunc, Obj: &Object{Kind: KFunc, Func: f}}
}

func NewNative(n Native) Value {
	return Value{Kind: KNative, Obj: &Object{Kind: KNative, Nat: n}}
}

// TypeError is the Go-level error shape the VM converts into a
// RuntimeError diagnostic; it is distinct from a language-level err Value.
type TypeError struct {
	Op       string
	Expected string
	Got      Kind
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Op, e.Expected, e.Got)
}
