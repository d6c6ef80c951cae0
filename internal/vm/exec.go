package vm

import (
	"fmt"

	"github.com/dasimmet/bog/internal/bytecode"
	"github.com/dasimmet/bog/internal/diag"
	"github.com/dasimmet/bog/internal/invariant"
	"github.com/dasimmet/bog/internal/value"
)

// exec runs the interpreter loop starting at the current top frame until it
// (and every frame it calls into) returns, and yields that frame's result.
// Each nested Call pushes a frame onto the same m.frames/m.stack so a native
// calling back via CallValue re-enters this same loop rather than a
// separate one. On every exit, normal or failing, the entry frame and any
// frames above it are popped, so the register stack shrinks back to the
// length it had before the entry frame was pushed.
func (m *VM) exec() (value.Value, error) {
	baseDepth := len(m.frames) - 1
	invariant.Invariant(baseDepth >= 0, "exec: called with empty frame stack")
	defer func() {
		for len(m.frames) > baseDepth {
			m.popFrame()
		}
	}()
	for {
		f := m.curFrame()
		op := f.dec.Op()
		switch op {
		case bytecode.OpConstInt8:
			a := f.dec.U8()
			v := f.dec.I8()
			m.setReg(f, a, value.Int(int64(v)))

		case bytecode.OpConstInt32:
			a := f.dec.U8()
			v := f.dec.I32()
			m.setReg(f, a, value.Int(int64(v)))

		case bytecode.OpConstInt64:
			a := f.dec.U8()
			v := f.dec.I64()
			m.setReg(f, a, value.Int(v))

		case bytecode.OpConstNum:
			a := f.dec.U8()
			v := f.dec.F64()
			m.setReg(f, a, value.Num(v))

		case bytecode.OpConstPrimitive:
			a := f.dec.U8()
			tag := f.dec.U8()
			switch tag {
			case bytecode.ConstNone:
				m.setReg(f, a, value.None)
			case bytecode.ConstFalse:
				m.setReg(f, a, value.False)
			case bytecode.ConstTrue:
				m.setReg(f, a, value.True)
			default:
				return value.None, fail(MalformedByteCode, f.line, "unknown ConstPrimitive tag %d", tag)
			}

		case bytecode.OpConstString:
			a := f.dec.U8()
			ref := f.dec.U32()
			m.setReg(f, a, value.Str(f.module.String(ref)))

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpPow,
			bytecode.OpDivFloor, bytecode.OpDiv, bytecode.OpMod:
			a, l, r := f.dec.U8(), f.dec.U8(), f.dec.U8()
			res, err := arith(op, m.reg(f, l), m.reg(f, r))
			if err != nil {
				return value.None, m.runtimeErr(f, err)
			}
			m.setReg(f, a, res)

		case bytecode.OpBitNot:
			a, c := f.dec.U8(), f.dec.U8()
			v := m.reg(f, c)
			if v.Kind != value.KInt {
				return value.None, m.runtimeErr(f, &value.TypeError{Op: "~", Expected: "int", Got: v.Kind})
			}
			m.setReg(f, a, value.Int(^v.IntVal()))

		case bytecode.OpBitAnd, bytecode.OpBitOr, bytecode.OpBitXor, bytecode.OpLShift, bytecode.OpRShift:
			a, l, r := f.dec.U8(), f.dec.U8(), f.dec.U8()
			res, err := bitwise(op, m.reg(f, l), m.reg(f, r))
			if err != nil {
				return value.None, m.runtimeErr(f, err)
			}
			m.setReg(f, a, res)

		case bytecode.OpBoolNot:
			a, c := f.dec.U8(), f.dec.U8()
			m.setReg(f, a, value.Bool(!m.reg(f, c).IsTruthyVal()))

		case bytecode.OpBoolAnd:
			a, l, r := f.dec.U8(), f.dec.U8(), f.dec.U8()
			m.setReg(f, a, value.Bool(m.reg(f, l).IsTruthyVal() && m.reg(f, r).IsTruthyVal()))

		case bytecode.OpBoolOr:
			a, l, r := f.dec.U8(), f.dec.U8(), f.dec.U8()
			m.setReg(f, a, value.Bool(m.reg(f, l).IsTruthyVal() || m.reg(f, r).IsTruthyVal()))

		case bytecode.OpEqual:
			a, l, r := f.dec.U8(), f.dec.U8(), f.dec.U8()
			m.setReg(f, a, value.Bool(value.Eql(m.reg(f, l), m.reg(f, r))))

		case bytecode.OpNotEqual:
			a, l, r := f.dec.U8(), f.dec.U8(), f.dec.U8()
			m.setReg(f, a, value.Bool(!value.Eql(m.reg(f, l), m.reg(f, r))))

		case bytecode.OpLessThan, bytecode.OpLessThanEqual, bytecode.OpGreaterThan, bytecode.OpGreaterThanEqual:
			a, l, r := f.dec.U8(), f.dec.U8(), f.dec.U8()
			res, err := compare(op, m.reg(f, l), m.reg(f, r))
			if err != nil {
				return value.None, m.runtimeErr(f, err)
			}
			m.setReg(f, a, value.Bool(res))

		case bytecode.OpIn:
			a, l, r := f.dec.U8(), f.dec.U8(), f.dec.U8()
			res, err := value.In(m.reg(f, l), m.reg(f, r))
			if err != nil {
				return value.None, m.runtimeErr(f, err)
			}
			m.setReg(f, a, value.Bool(res))

		case bytecode.OpMove:
			a, c := f.dec.U8(), f.dec.U8()
			m.setReg(f, a, m.reg(f, c))

		case bytecode.OpCopy:
			a, c := f.dec.U8(), f.dec.U8()
			m.setReg(f, a, m.copyValue(m.reg(f, c)))
			m.maybeCollect()

		case bytecode.OpNegate:
			a, c := f.dec.U8(), f.dec.U8()
			v := m.reg(f, c)
			switch v.Kind {
			case value.KInt:
				m.setReg(f, a, value.Int(-v.IntVal()))
			case value.KNum:
				m.setReg(f, a, value.Num(-v.NumVal()))
			default:
				return value.None, m.runtimeErr(f, &value.TypeError{Op: "-", Expected: "int or num", Got: v.Kind})
			}

		case bytecode.OpTry:
			a, c := f.dec.U8(), f.dec.U8()
			v := m.reg(f, c)
			if v.Kind == value.KErr {
				// spec.md §4.5: propagate by popping frames all the way to
				// the module (call-entry) frame, surfacing the error as
				// that frame's own result rather than a per-function early
				// return.
				for len(m.frames) > baseDepth+1 {
					m.popFrame()
				}
				return v, nil
			}
			m.setReg(f, a, v)

		case bytecode.OpJump:
			rel := f.dec.I32()
			f.dec.IP += int(rel)

		case bytecode.OpJumpTrue:
			a := f.dec.U8()
			target := f.dec.U32()
			if m.reg(f, a).IsTruthyVal() {
				f.dec.IP = int(target)
			}

		case bytecode.OpJumpFalse:
			a := f.dec.U8()
			target := f.dec.U32()
			if !m.reg(f, a).IsTruthyVal() {
				f.dec.IP = int(target)
			}

		case bytecode.OpJumpNone:
			a := f.dec.U8()
			target := f.dec.U32()
			if m.reg(f, a).IsNone() {
				f.dec.IP = int(target)
			}

		case bytecode.OpJumpNotError:
			a := f.dec.U8()
			target := f.dec.U32()
			if m.reg(f, a).Kind != value.KErr {
				f.dec.IP = int(target)
			}

		case bytecode.OpIterInit:
			a, c := f.dec.U8(), f.dec.U8()
			it, err := value.NewIterator(m.reg(f, c))
			if err != nil {
				return value.None, m.runtimeErr(f, err)
			}
			m.setReg(f, a, it)

		case bytecode.OpIterNext:
			a, c := f.dec.U8(), f.dec.U8()
			m.setReg(f, a, value.IterNext(m.reg(f, c)))

		case bytecode.OpBuildError:
			a, c := f.dec.U8(), f.dec.U8()
			m.setReg(f, a, value.NewErr(m.reg(f, c)))
			m.maybeCollect()

		case bytecode.OpUnwrapError:
			a, c := f.dec.U8(), f.dec.U8()
			v := m.reg(f, c)
			if v.Kind != value.KErr {
				return value.None, m.runtimeErr(f, &value.TypeError{Op: "unwrap", Expected: "err", Got: v.Kind})
			}
			m.setReg(f, a, v.ErrInner())

		case bytecode.OpImport:
			a := f.dec.U8()
			ref := f.dec.U32()
			id := f.module.String(ref)
			v, err := m.resolveImport(id)
			if err != nil {
				return value.None, m.runtimeErr(f, err)
			}
			m.setReg(f, a, v)

		case bytecode.OpBuildNative:
			a := f.dec.U8()
			ref := f.dec.U32()
			name := f.module.String(ref)
			nat, ok := m.natives[name]
			if !ok {
				if hint := diag.Suggest(name, m.NativeNames()); hint != "" {
					return value.None, m.runtimeErr(f, fmt.Errorf("unknown native %q (did you mean %q?)", name, hint))
				}
				return value.None, m.runtimeErr(f, fmt.Errorf("unknown native %q", name))
			}
			m.setReg(f, a, value.NewNative(nat))
			m.maybeCollect()

		case bytecode.OpBuildTuple:
			a, base, count := f.dec.U8(), f.dec.U8(), f.dec.U16()
			m.setReg(f, a, value.NewTuple(m.regSlice(f, base, count)))
			m.maybeCollect()

		case bytecode.OpBuildList:
			a, base, count := f.dec.U8(), f.dec.U8(), f.dec.U16()
			m.setReg(f, a, value.NewList(m.regSlice(f, base, count)))
			m.maybeCollect()

		case bytecode.OpBuildMap:
			a, base, count := f.dec.U8(), f.dec.U8(), f.dec.U16()
			mp := value.NewEmptyMap()
			for i := 0; i < int(count); i += 2 {
				k := m.reg(f, base+byte(i))
				v := m.reg(f, base+byte(i+1))
				mp.Set(k, v)
			}
			m.setReg(f, a, value.NewMap(mp))
			m.maybeCollect()

		case bytecode.OpBuildRange:
			a, startR, endR := f.dec.U8(), f.dec.U8(), f.dec.U8()
			start := m.reg(f, startR)
			end := m.reg(f, endR)
			if start.Kind != value.KInt || end.Kind != value.KInt {
				return value.None, m.runtimeErr(f, fmt.Errorf("range bounds must be int, got %s...%s", start.Kind, end.Kind))
			}
			m.setReg(f, a, value.NewRange(value.Range{Start: start.IntVal(), End: end.IntVal()}))
			m.maybeCollect()

		case bytecode.OpBuildFn:
			a := f.dec.U8()
			argCount := f.dec.U8()
			captureCount := f.dec.U8()
			entry := f.dec.U32()
			fn := value.Func{
				ArgCount: int(argCount),
				Entry:    entry,
				Module:   f.module,
				Captures: make([]*value.Value, captureCount),
			}
			m.setReg(f, a, value.NewFunc(fn))
			m.maybeCollect()

		case bytecode.OpLoadCapture:
			a, n := f.dec.U8(), f.dec.U8()
			if int(n) >= len(f.captures) || f.captures[n] == nil {
				return value.None, fail(MalformedByteCode, f.line, "capture slot %d not available", n)
			}
			m.setReg(f, a, *f.captures[n])

		case bytecode.OpStoreCapture:
			targetFunc, valueReg, n := f.dec.U8(), f.dec.U8(), f.dec.U8()
			fnVal := m.reg(f, targetFunc)
			if fnVal.Kind != value.KFunc {
				return value.None, fail(MalformedByteCode, f.line, "StoreCapture target is not a func value")
			}
			boxed := m.reg(f, valueReg)
			fnVal.Obj.Func.Captures[n] = &boxed

		case bytecode.OpGet:
			a, c, d := f.dec.U8(), f.dec.U8(), f.dec.U8()
			container := m.reg(f, c)
			key := m.reg(f, d)
			res, err := value.Get(container, key)
			if err != nil {
				return value.None, m.runtimeErr(f, err)
			}
			m.lastGet = container
			m.setReg(f, a, res)

		case bytecode.OpSet:
			a, c, d := f.dec.U8(), f.dec.U8(), f.dec.U8()
			if err := value.Set(m.reg(f, a), m.reg(f, c), m.reg(f, d)); err != nil {
				return value.None, m.runtimeErr(f, err)
			}

		case bytecode.OpAs:
			a, c, typeID := f.dec.U8(), f.dec.U8(), f.dec.U8()
			res, err := value.As(m.reg(f, c), typeID)
			if err != nil {
				return value.None, m.runtimeErr(f, err)
			}
			m.setReg(f, a, res)

		case bytecode.OpIs:
			a, c, typeID := f.dec.U8(), f.dec.U8(), f.dec.U8()
			m.setReg(f, a, value.Bool(value.Is(m.reg(f, c), typeID)))

		case bytecode.OpCall:
			retReg, funcReg, argBase := f.dec.U8(), f.dec.U8(), f.dec.U8()
			argCount := f.dec.U16()
			callee := m.reg(f, funcReg)

			switch callee.Kind {
			case value.KNative:
				args := m.regSlice(f, argBase, argCount)
				res, err := m.callNative(callee.Obj.Nat, args)
				if err != nil {
					return value.None, m.runtimeErr(f, err)
				}
				m.setReg(f, retReg, res)
			case value.KFunc:
				if len(m.frames) >= m.opts.MaxCallDepth {
					return value.None, fail(RuntimeError, f.line, "max call depth %d exceeded", m.opts.MaxCallDepth)
				}
				fn := callee.Obj.Func
				if int(argCount) != fn.ArgCount {
					return value.None, m.runtimeErr(f, fmt.Errorf("function expects %d argument(s), got %d", fn.ArgCount, argCount))
				}
				module, ok := fn.Module.(*bytecode.Module)
				if !ok {
					return value.None, fail(MalformedByteCode, f.line, "func value's module reference is malformed")
				}
				// this is the most recent Get's container (spec.md §4.5:
				// "record B as the this candidate for an immediately
				// following Call"); defaults to none when no Get preceded.
				newSp := f.sp + int(argBase)
				m.pushFrame(module, fn.Entry, newSp, fn.Captures, m.lastGet, true, retReg)
			default:
				return value.None, m.runtimeErr(f, fmt.Errorf("value of kind %s is not callable", callee.Kind))
			}

		case bytecode.OpReturn:
			a := f.dec.U8()
			v := m.reg(f, a)
			if len(m.frames) == baseDepth+1 {
				return v, nil
			}
			ret := f.retReg
			m.popFrame()
			m.setReg(m.curFrame(), ret, v)

		case bytecode.OpReturnNone:
			if len(m.frames) == baseDepth+1 {
				return value.None, nil
			}
			ret := f.retReg
			m.popFrame()
			m.setReg(m.curFrame(), ret, value.None)

		case bytecode.OpLoadThis:
			a := f.dec.U8()
			if !f.hasThis {
				return value.None, m.runtimeErr(f, fmt.Errorf("this is unset in this context"))
			}
			m.setReg(f, a, f.this)

		case bytecode.OpDiscard:
			a := f.dec.U8()
			v := m.reg(f, a)
			if v.Kind == value.KErr {
				return value.None, m.runtimeErr(f, fmt.Errorf("discarded error: %s", value.ToDisplayString(v.ErrInner())))
			}
			if m.opts.Repl && len(m.frames) == baseDepth+1 {
				return v, nil
			}

		case bytecode.OpLineInfo:
			off := f.dec.U32()
			f.line = int(off)

		default:
			return value.None, fail(MalformedByteCode, f.line, "unknown opcode %d", byte(op))
		}
	}
}

// regSlice copies count contiguous registers starting at base out of f's
// window, for call arguments and aggregate construction.
func (m *VM) regSlice(f *frame, base byte, count uint16) []value.Value {
	out := make([]value.Value, count)
	for i := range out {
		out[i] = m.reg(f, base+byte(i))
	}
	return out
}

func (m *VM) runtimeErr(f *frame, err error) error {
	return &Error{Kind: RuntimeError, Line: f.line, Err: err}
}
