package vm

import (
	"fmt"
	"math"

	"github.com/dasimmet/bog/internal/bytecode"
	"github.com/dasimmet/bog/internal/value"
)

func errDivByZero(op bytecode.Op) error {
	return fmt.Errorf("%s: division by zero", opName(op))
}

func errOverflow(op bytecode.Op, li, ri int64) error {
	return fmt.Errorf("%s: int overflow (operands %d, %d)", opName(op), li, ri)
}

// arith implements spec.md §4.4's numeric promotion: int op int stays int
// (except Div and Pow with a negative exponent, which always promote to
// num), any operand being num promotes both to num.
func arith(op bytecode.Op, l, r value.Value) (value.Value, error) {
	if !isNumeric(l) || !isNumeric(r) {
		return value.None, &value.TypeError{Op: opName(op), Expected: "int or num", Got: mismatchKind(l, r)}
	}
	bothInt := l.Kind == value.KInt && r.Kind == value.KInt
	if bothInt && op != bytecode.OpDiv {
		li, ri := l.IntVal(), r.IntVal()
		switch op {
		case bytecode.OpAdd:
			if addOverflows(li, ri) {
				return value.None, errOverflow(op, li, ri)
			}
			return value.Int(li + ri), nil
		case bytecode.OpSub:
			if subOverflows(li, ri) {
				return value.None, errOverflow(op, li, ri)
			}
			return value.Int(li - ri), nil
		case bytecode.OpMul:
			if mulOverflows(li, ri) {
				return value.None, errOverflow(op, li, ri)
			}
			return value.Int(li * ri), nil
		case bytecode.OpMod:
			if ri == 0 {
				return value.None, errDivByZero(op)
			}
			return value.Int(((li % ri) + ri) % ri), nil
		case bytecode.OpDivFloor:
			if ri == 0 {
				return value.None, errDivByZero(op)
			}
			return value.Int(floorDivInt(li, ri)), nil
		case bytecode.OpPow:
			if ri >= 0 {
				p, err := intPow(li, ri)
				if err != nil {
					return value.None, fmt.Errorf("%s: %w", opName(op), err)
				}
				return value.Int(p), nil
			}
			return value.Num(math.Pow(float64(li), float64(ri))), nil
		}
	}
	lf, rf := toFloat(l), toFloat(r)
	switch op {
	case bytecode.OpAdd:
		return value.Num(lf + rf), nil
	case bytecode.OpSub:
		return value.Num(lf - rf), nil
	case bytecode.OpMul:
		return value.Num(lf * rf), nil
	case bytecode.OpDiv:
		if rf == 0 {
			return value.None, errDivByZero(op)
		}
		return value.Num(lf / rf), nil
	case bytecode.OpDivFloor:
		if rf == 0 {
			return value.None, errDivByZero(op)
		}
		return value.Num(math.Floor(lf / rf)), nil
	case bytecode.OpMod:
		if rf == 0 {
			return value.None, errDivByZero(op)
		}
		return value.Num(math.Mod(math.Mod(lf, rf)+rf, rf)), nil
	case bytecode.OpPow:
		return value.Num(math.Pow(lf, rf)), nil
	default:
		return value.None, &value.TypeError{Op: opName(op), Expected: "int or num", Got: mismatchKind(l, r)}
	}
}

func bitwise(op bytecode.Op, l, r value.Value) (value.Value, error) {
	if l.Kind != value.KInt || r.Kind != value.KInt {
		return value.None, &value.TypeError{Op: opName(op), Expected: "int", Got: mismatchKind(l, r)}
	}
	li, ri := l.IntVal(), r.IntVal()
	switch op {
	case bytecode.OpBitAnd:
		return value.Int(li & ri), nil
	case bytecode.OpBitOr:
		return value.Int(li | ri), nil
	case bytecode.OpBitXor:
		return value.Int(li ^ ri), nil
	case bytecode.OpLShift, bytecode.OpRShift:
		if ri < 0 {
			return value.None, fmt.Errorf("%s: negative shift count %d", opName(op), ri)
		}
		if ri >= 64 {
			return value.Int(0), nil
		}
		if op == bytecode.OpLShift {
			return value.Int(li << uint(ri)), nil
		}
		return value.Int(li >> uint(ri)), nil
	default:
		return value.None, &value.TypeError{Op: opName(op), Expected: "int", Got: mismatchKind(l, r)}
	}
}

func compare(op bytecode.Op, l, r value.Value) (bool, error) {
	if l.Kind == value.KStr && r.Kind == value.KStr {
		ls, rs := l.StrVal(), r.StrVal()
		switch op {
		case bytecode.OpLessThan:
			return ls < rs, nil
		case bytecode.OpLessThanEqual:
			return ls <= rs, nil
		case bytecode.OpGreaterThan:
			return ls > rs, nil
		case bytecode.OpGreaterThanEqual:
			return ls >= rs, nil
		}
	}
	if !isNumeric(l) || !isNumeric(r) {
		return false, &value.TypeError{Op: opName(op), Expected: "int, num, or str", Got: mismatchKind(l, r)}
	}
	lf, rf := toFloat(l), toFloat(r)
	switch op {
	case bytecode.OpLessThan:
		return lf < rf, nil
	case bytecode.OpLessThanEqual:
		return lf <= rf, nil
	case bytecode.OpGreaterThan:
		return lf > rf, nil
	case bytecode.OpGreaterThanEqual:
		return lf >= rf, nil
	default:
		return false, &value.TypeError{Op: opName(op), Expected: "int, num, or str", Got: mismatchKind(l, r)}
	}
}

func isNumeric(v value.Value) bool { return v.Kind == value.KInt || v.Kind == value.KNum }

func toFloat(v value.Value) float64 {
	if v.Kind == value.KInt {
		return float64(v.IntVal())
	}
	return v.NumVal()
}

func mismatchKind(l, r value.Value) value.Kind {
	if !isNumeric(l) {
		return l.Kind
	}
	return r.Kind
}

func floorDivInt(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// addOverflows reports whether a+b would overflow int64, checked before the
// addition runs rather than after (spec.md §4.4: "fail loudly rather than
// silently wrap").
func addOverflows(a, b int64) bool {
	if b > 0 && a > math.MaxInt64-b {
		return true
	}
	if b < 0 && a < math.MinInt64-b {
		return true
	}
	return false
}

func subOverflows(a, b int64) bool {
	if b < 0 && a > math.MaxInt64+b {
		return true
	}
	if b > 0 && a < math.MinInt64+b {
		return true
	}
	return false
}

func mulOverflows(a, b int64) bool {
	if a == 0 || b == 0 {
		return false
	}
	if a == -1 && b == math.MinInt64 {
		return true
	}
	if b == -1 && a == math.MinInt64 {
		return true
	}
	return a*b/b != a
}

// intPow computes base**exp by repeated multiplication, failing loudly on
// overflow instead of wrapping (spec.md §4.4: "** reports overflow").
func intPow(base, exp int64) (int64, error) {
	result := int64(1)
	for i := exp; i > 0; i-- {
		if mulOverflows(result, base) {
			return 0, fmt.Errorf("int overflow (base %d, exponent %d)", base, exp)
		}
		result *= base
	}
	return result, nil
}

func opName(op bytecode.Op) string { return op.String() }
