package compiler

import (
	"github.com/dasimmet/bog/internal/ast"
	"github.com/dasimmet/bog/internal/bytecode"
)

var infixOp = map[ast.Op]bytecode.Op{
	ast.OpAdd:      bytecode.OpAdd,
	ast.OpSub:      bytecode.OpSub,
	ast.OpMul:      bytecode.OpMul,
	ast.OpDiv:      bytecode.OpDiv,
	ast.OpFloorDiv: bytecode.OpDivFloor,
	ast.OpMod:      bytecode.OpMod,
	ast.OpPow:      bytecode.OpPow,
	ast.OpBitAnd:   bytecode.OpBitAnd,
	ast.OpBitOr:    bytecode.OpBitOr,
	ast.OpBitXor:   bytecode.OpBitXor,
	ast.OpShl:      bytecode.OpLShift,
	ast.OpShr:      bytecode.OpRShift,
	ast.OpEq:       bytecode.OpEqual,
	ast.OpNeq:      bytecode.OpNotEqual,
	ast.OpLt:       bytecode.OpLessThan,
	ast.OpLte:      bytecode.OpLessThanEqual,
	ast.OpGt:       bytecode.OpGreaterThan,
	ast.OpGte:      bytecode.OpGreaterThanEqual,
	ast.OpIn:       bytecode.OpIn,
}

var typeIDs = map[string]byte{
	"none":  bytecode.TypeNone,
	"int":   bytecode.TypeInt,
	"num":   bytecode.TypeNum,
	"bool":  bytecode.TypeBool,
	"str":   bytecode.TypeStr,
	"tuple": bytecode.TypeTuple,
	"map":   bytecode.TypeMap,
	"list":  bytecode.TypeList,
	"err":   bytecode.TypeErr,
	"range": bytecode.TypeRange,
	"func":  bytecode.TypeFunc,
}

// compileExpr lowers the node at ref, returning the register holding its
// result.
func (c *compiler) compileExpr(fc *funcCtx, ref ast.Ref) byte {
	n := c.node(ref)
	switch n.Kind {
	case ast.KindNumLit:
		r := fc.alloc()
		c.b.ConstNum(r, n.Num)
		return r

	case ast.KindIntLit:
		r := fc.alloc()
		switch {
		case n.Int >= -128 && n.Int <= 127:
			c.b.ConstInt8(r, int8(n.Int))
		case n.Int >= -(1<<31) && n.Int <= (1<<31)-1:
			c.b.ConstInt32(r, int32(n.Int))
		default:
			c.b.ConstInt64(r, n.Int)
		}
		return r

	case ast.KindStrLit:
		r := fc.alloc()
		c.b.ConstString(r, c.b.String(n.Str))
		return r

	case ast.KindTrue:
		r := fc.alloc()
		c.b.ConstPrimitive(r, bytecode.ConstTrue)
		return r

	case ast.KindFalse:
		r := fc.alloc()
		c.b.ConstPrimitive(r, bytecode.ConstFalse)
		return r

	case ast.KindNone:
		r := fc.alloc()
		c.b.ConstPrimitive(r, bytecode.ConstNone)
		return r

	case ast.KindDiscard:
		r := fc.alloc()
		c.b.ConstPrimitive(r, bytecode.ConstNone)
		return r

	case ast.KindIdent:
		return c.loadVar(fc, n.Off, n.Str)

	case ast.KindPrefix:
		return c.compilePrefix(fc, n)

	case ast.KindInfix:
		return c.compileInfix(fc, n)

	case ast.KindTypeInfix:
		operand := c.compileExpr(fc, n.A)
		typeID, ok := typeIDs[n.Str]
		if !ok {
			c.errorf(n.Off, "unknown type name %q", n.Str)
			typeID = bytecode.TypeNone
		}
		r := fc.alloc()
		if n.Op == ast.OpIs {
			c.b.Is(r, operand, typeID)
		} else {
			c.b.As(r, operand, typeID)
		}
		return r

	case ast.KindIndex:
		container := c.compileExpr(fc, n.A)
		key := c.compileExpr(fc, n.B)
		r := fc.alloc()
		c.b.Get(r, container, key)
		return r

	case ast.KindMember:
		container := c.compileExpr(fc, n.A)
		key := c.constString(fc, n.Str)
		r := fc.alloc()
		c.b.Get(r, container, key)
		return r

	case ast.KindCall:
		callee := c.compileExpr(fc, n.A)
		base := fc.reserveContiguous(len(n.Kids))
		c.compileIntoContiguous(fc, base, n.Kids)
		ret := fc.alloc()
		c.b.Call(ret, callee, base, uint16(len(n.Kids)))
		return ret

	case ast.KindGrouped:
		return c.compileExpr(fc, n.A)

	case ast.KindList:
		base := fc.reserveContiguous(len(n.Kids))
		c.compileIntoContiguous(fc, base, n.Kids)
		r := fc.alloc()
		c.b.BuildList(r, base, uint16(len(n.Kids)))
		return r

	case ast.KindTuple:
		base := fc.reserveContiguous(len(n.Kids))
		c.compileIntoContiguous(fc, base, n.Kids)
		r := fc.alloc()
		c.b.BuildTuple(r, base, uint16(len(n.Kids)))
		return r

	case ast.KindMap:
		return c.compileMap(fc, n)

	case ast.KindBlock:
		return c.compileBlock(fc, n.Kids)

	case ast.KindLet:
		val := c.compileExpr(fc, n.B)
		c.bindPattern(fc, n.A, val)
		return val

	case ast.KindFn:
		return c.compileFnLiteral(fc, n)

	case ast.KindIf:
		return c.compileIf(fc, n)

	case ast.KindWhile:
		return c.compileWhile(fc, n)

	case ast.KindFor:
		return c.compileFor(fc, n)

	case ast.KindMatch:
		return c.compileMatch(fc, n)

	case ast.KindCatch:
		return c.compileCatch(fc, n)

	case ast.KindReturn:
		r := c.valueOrNone(fc, n.A)
		c.b.Return(r)
		return r

	case ast.KindBreak:
		return c.compileBreak(fc, n)

	case ast.KindContinue:
		c.compileContinue(fc, n)
		r := fc.alloc()
		c.b.ConstPrimitive(r, bytecode.ConstNone)
		return r

	case ast.KindImport:
		r := fc.alloc()
		c.b.Import(r, c.b.String(n.Str))
		return r

	case ast.KindError:
		inner := c.compileExpr(fc, n.A)
		r := fc.alloc()
		c.b.BuildError(r, inner)
		return r

	default:
		c.errorf(n.Off, "internal: cannot compile node kind %d as an expression", n.Kind)
		r := fc.alloc()
		c.b.ConstPrimitive(r, bytecode.ConstNone)
		return r
	}
}

// valueOrNone compiles ref if present, or materializes none.
func (c *compiler) valueOrNone(fc *funcCtx, ref ast.Ref) byte {
	if ref == ast.NoRef {
		r := fc.alloc()
		c.b.ConstPrimitive(r, bytecode.ConstNone)
		return r
	}
	return c.compileExpr(fc, ref)
}

func (c *compiler) compilePrefix(fc *funcCtx, n *ast.Node) byte {
	rhs := c.compileExpr(fc, n.A)
	r := fc.alloc()
	switch n.Op {
	case ast.OpBoolNot:
		c.b.Op2(bytecode.OpBoolNot, r, rhs)
	case ast.OpNeg:
		c.b.Op2(bytecode.OpNegate, r, rhs)
	case ast.OpPos:
		c.b.Op2(bytecode.OpMove, r, rhs)
	case ast.OpBitNot:
		c.b.Op2(bytecode.OpBitNot, r, rhs)
	case ast.OpTry:
		c.b.Try(r, rhs)
	default:
		c.errorf(n.Off, "internal: unknown prefix operator")
	}
	return r
}

func (c *compiler) compileInfix(fc *funcCtx, n *ast.Node) byte {
	if n.Op.IsAssign() {
		return c.compileAssign(fc, n)
	}
	if n.Op == ast.OpAnd || n.Op == ast.OpOr {
		return c.compileShortCircuit(fc, n)
	}
	if n.Op == ast.OpRange {
		start := c.compileExpr(fc, n.A)
		end := c.compileExpr(fc, n.B)
		r := fc.alloc()
		c.b.BuildRange(r, start, end)
		return r
	}
	op, ok := infixOp[n.Op]
	if !ok {
		c.errorf(n.Off, "internal: unknown infix operator")
		r := fc.alloc()
		c.b.ConstPrimitive(r, bytecode.ConstNone)
		return r
	}
	left := c.compileExpr(fc, n.A)
	right := c.compileExpr(fc, n.B)
	r := fc.alloc()
	c.b.Op3(op, r, left, right)
	return r
}

// compileShortCircuit lowers `and`/`or` without evaluating the right-hand
// side unless necessary.
func (c *compiler) compileShortCircuit(fc *funcCtx, n *ast.Node) byte {
	result := fc.alloc()
	left := c.compileExpr(fc, n.A)
	c.b.Op2(bytecode.OpMove, result, left)

	var skip int
	if n.Op == ast.OpAnd {
		skip = c.b.CondJump(bytecode.OpJumpFalse, result)
	} else {
		skip = c.b.CondJump(bytecode.OpJumpTrue, result)
	}
	right := c.compileExpr(fc, n.B)
	c.b.Op2(bytecode.OpMove, result, right)
	c.b.PatchAddr(skip, c.b.Len())
	return result
}

func (c *compiler) compileMap(fc *funcCtx, n *ast.Node) byte {
	base := fc.reserveContiguous(2 * len(n.Kids))
	for i, itemRef := range n.Kids {
		item := c.node(itemRef)
		var keyReg byte
		if item.A == ast.NoRef {
			ident := c.node(item.B)
			keyReg = c.constString(fc, ident.Str)
		} else {
			keyReg = c.compileExpr(fc, item.A)
		}
		valReg := c.compileExpr(fc, item.B)
		slotK := base + byte(2*i)
		slotV := base + byte(2*i+1)
		if keyReg != slotK {
			c.b.Op2(bytecode.OpMove, slotK, keyReg)
		}
		if valReg != slotV {
			c.b.Op2(bytecode.OpMove, slotV, valReg)
		}
	}
	r := fc.alloc()
	c.b.BuildMap(r, base, uint16(2*len(n.Kids)))
	return r
}

// compileBlock compiles each child in order, discarding every value but the
// last, and returns the register holding the block's result.
func (c *compiler) compileBlock(fc *funcCtx, kids []ast.Ref) byte {
	if len(kids) == 0 {
		r := fc.alloc()
		c.b.ConstPrimitive(r, bytecode.ConstNone)
		return r
	}
	mark := fc.next
	var last byte
	for i, k := range kids {
		c.b.LineInfo(uint32(c.node(k).Off))
		r := c.compileExpr(fc, k)
		if i < len(kids)-1 {
			c.b.Op1(bytecode.OpDiscard, r)
		} else {
			last = r
		}
	}
	result := mark
	if last != result {
		c.b.Op2(bytecode.OpMove, result, last)
	}
	fc.next = mark + 1
	if fc.next > fc.max {
		fc.max = fc.next
	}
	return result
}
