package compiler

import (
	"github.com/dasimmet/bog/internal/ast"
	"github.com/dasimmet/bog/internal/bytecode"
)

// compileFnLiteral emits the function body behind an unconditional jump
// (so it is never executed inline), then a BuildFn referencing the body's
// address, followed by the StoreCapture instructions that fill the
// closure's capture slots from the enclosing function's registers/captures.
func (c *compiler) compileFnLiteral(fc *funcCtx, n *ast.Node) byte {
	skip := c.b.Jump()
	bodyStart := c.b.Len()

	child := newFuncCtx(fc)
	for _, paramRef := range n.Kids {
		reg := child.alloc()
		c.bindPattern(child, paramRef, reg)
	}
	bodyReg := c.compileExpr(child, n.A)
	c.b.Return(bodyReg)
	c.b.PatchJump(skip, c.b.Len())

	dest := fc.alloc()
	fnOperand := c.b.BuildFn(dest, byte(len(n.Kids)), byte(len(child.captureOrder)))
	c.b.PatchAddr(fnOperand, bodyStart)

	for idx, cap := range child.captureOrder {
		if cap.fromLocal {
			c.b.StoreCapture(dest, byte(cap.sourceIdx), byte(idx))
			continue
		}
		tmp := fc.alloc()
		c.b.LoadCapture(tmp, byte(cap.sourceIdx))
		c.b.StoreCapture(dest, tmp, byte(idx))
	}
	return dest
}

// compileAssign lowers both plain `=` and compound (`+=`, `&=`, ...)
// assignment infix nodes.
func (c *compiler) compileAssign(fc *funcCtx, n *ast.Node) byte {
	if n.Op == ast.OpAssign {
		val := c.compileExpr(fc, n.B)
		c.assignTo(fc, n.A, val)
		return val
	}
	cur := c.compileExpr(fc, n.A)
	rhs := c.compileExpr(fc, n.B)
	op, ok := compoundOp[n.Op]
	if !ok {
		c.errorf(n.Off, "internal: unknown compound-assign operator")
		return cur
	}
	result := fc.alloc()
	c.b.Op3(op, result, cur, rhs)
	c.assignTo(fc, n.A, result)
	return result
}

var compoundOp = map[ast.Op]bytecode.Op{
	ast.OpAddAssign:      bytecode.OpAdd,
	ast.OpSubAssign:      bytecode.OpSub,
	ast.OpMulAssign:      bytecode.OpMul,
	ast.OpPowAssign:      bytecode.OpPow,
	ast.OpDivAssign:      bytecode.OpDiv,
	ast.OpFloorDivAssign: bytecode.OpDivFloor,
	ast.OpModAssign:      bytecode.OpMod,
	ast.OpShlAssign:      bytecode.OpLShift,
	ast.OpShrAssign:      bytecode.OpRShift,
	ast.OpBitAndAssign:   bytecode.OpBitAnd,
	ast.OpBitOrAssign:    bytecode.OpBitOr,
	ast.OpBitXorAssign:   bytecode.OpBitXor,
}

// compileIf lowers `if (cond) body [else elseBody]`, and the `if (let pat =
// expr) body` form: pat is bound from expr's value in the then-branch's
// scope only, and the branch is taken based on that same value's
// truthiness.
func (c *compiler) compileIf(fc *funcCtx, n *ast.Node) byte {
	result := fc.alloc()

	condVal := c.compileExpr(fc, n.A)
	if n.B != ast.NoRef {
		fc.pushBlock()
		c.bindPattern(fc, n.B, condVal)
	}

	toElse := c.b.CondJump(bytecode.OpJumpFalse, condVal)
	thenReg := c.compileExpr(fc, n.C)
	if thenReg != result {
		c.b.Op2(bytecode.OpMove, result, thenReg)
	}
	if n.B != ast.NoRef {
		fc.popBlock()
	}
	toEnd := c.b.Jump()

	c.b.PatchAddr(toElse, c.b.Len())
	if n.D != ast.NoRef {
		elseReg := c.compileExpr(fc, n.D)
		if elseReg != result {
			c.b.Op2(bytecode.OpMove, result, elseReg)
		}
	} else {
		c.b.ConstPrimitive(result, bytecode.ConstNone)
	}
	c.b.PatchJump(toEnd, c.b.Len())
	return result
}

// compileWhile lowers `while (cond) body`, re-evaluating cond (and
// rebinding its optional let-pattern) on every iteration.
func (c *compiler) compileWhile(fc *funcCtx, n *ast.Node) byte {
	result := fc.alloc()
	c.b.ConstPrimitive(result, bytecode.ConstNone)

	loopStart := c.b.Len()
	condVal := c.compileExpr(fc, n.A)
	if n.B != ast.NoRef {
		fc.pushBlock()
		c.bindPattern(fc, n.B, condVal)
	}
	exit := c.b.CondJump(bytecode.OpJumpFalse, condVal)

	lc := &loopCtx{continueTarget: loopStart, resultReg: result}
	c.loops = append(c.loops, lc)
	bodyReg := c.compileExpr(fc, n.C)
	c.b.Op1(bytecode.OpDiscard, bodyReg)
	c.loops = c.loops[:len(c.loops)-1]

	if n.B != ast.NoRef {
		fc.popBlock()
	}
	back := c.b.Jump()
	c.b.PatchJump(back, loopStart)
	c.b.PatchAddr(exit, c.b.Len())
	for _, j := range lc.breakJumps {
		c.b.PatchJump(j, c.b.Len())
	}
	return result
}

// compileFor lowers `for (let pat in rangeExpr) body` atop the iterator
// protocol: IterInit once, then IterNext/JumpNone per iteration.
func (c *compiler) compileFor(fc *funcCtx, n *ast.Node) byte {
	result := fc.alloc()
	c.b.ConstPrimitive(result, bytecode.ConstNone)

	rangeVal := c.compileExpr(fc, n.B)
	iter := fc.alloc()
	c.b.IterInit(iter, rangeVal)

	loopStart := c.b.Len()
	elem := fc.alloc()
	c.b.IterNext(elem, iter)
	exit := c.b.CondJump(bytecode.OpJumpNone, elem)

	fc.pushBlock()
	c.bindPattern(fc, n.A, elem)

	lc := &loopCtx{continueTarget: loopStart, resultReg: result}
	c.loops = append(c.loops, lc)
	bodyReg := c.compileExpr(fc, n.C)
	c.b.Op1(bytecode.OpDiscard, bodyReg)
	c.loops = c.loops[:len(c.loops)-1]

	fc.popBlock()
	back := c.b.Jump()
	c.b.PatchJump(back, loopStart)
	c.b.PatchAddr(exit, c.b.Len())
	for _, j := range lc.breakJumps {
		c.b.PatchJump(j, c.b.Len())
	}
	return result
}

func (c *compiler) compileBreak(fc *funcCtx, n *ast.Node) byte {
	if len(c.loops) == 0 {
		c.errorf(n.Off, "break outside of a loop")
		r := fc.alloc()
		c.b.ConstPrimitive(r, bytecode.ConstNone)
		return r
	}
	lc := c.loops[len(c.loops)-1]
	val := c.valueOrNone(fc, n.A)
	if val != lc.resultReg {
		c.b.Op2(bytecode.OpMove, lc.resultReg, val)
	}
	j := c.b.Jump()
	lc.breakJumps = append(lc.breakJumps, j)
	return val
}

func (c *compiler) compileContinue(fc *funcCtx, n *ast.Node) {
	if len(c.loops) == 0 {
		c.errorf(n.Off, "continue outside of a loop")
		return
	}
	lc := c.loops[len(c.loops)-1]
	j := c.b.Jump()
	c.b.PatchJump(j, lc.continueTarget)
}

// compileCatch lowers `left catch [let pat:] rhs`: rhs (with pat bound to
// left's unwrapped error, if given) is used when left is an err, otherwise
// left's own value passes through.
func (c *compiler) compileCatch(fc *funcCtx, n *ast.Node) byte {
	left := c.compileExpr(fc, n.A)
	isErr := fc.alloc()
	c.b.Is(isErr, left, bytecode.TypeErr)
	toUseLeft := c.b.CondJump(bytecode.OpJumpFalse, isErr)

	if n.B != ast.NoRef {
		fc.pushBlock()
		inner := fc.alloc()
		c.b.UnwrapError(inner, left)
		c.bindPattern(fc, n.B, inner)
	}
	rhs := c.compileExpr(fc, n.C)
	if n.B != ast.NoRef {
		fc.popBlock()
	}
	result := fc.alloc()
	c.b.Op2(bytecode.OpMove, result, rhs)
	toEnd := c.b.Jump()

	c.b.PatchAddr(toUseLeft, c.b.Len())
	c.b.Op2(bytecode.OpMove, result, left)
	c.b.PatchJump(toEnd, c.b.Len())
	return result
}

// compileMatch lowers `match scrutinee { ... }` as a sequential chain of
// tests: a MatchCase's comma-separated expressions are tried against the
// scrutinee with structural equality, a MatchLet's pattern always succeeds
// once reached (destructuring failure is a runtime error from the Get/
// UnwrapError it lowers to, not a silent fall-through to the next case),
// and MatchCatchAll always succeeds.
func (c *compiler) compileMatch(fc *funcCtx, n *ast.Node) byte {
	scrutinee := c.compileExpr(fc, n.A)
	result := fc.alloc()
	var ends []int

	for _, caseRef := range n.Kids {
		caseNode := c.node(caseRef)
		switch caseNode.Kind {
		case ast.KindMatchCase:
			var toBody []int
			for _, exprRef := range caseNode.Kids {
				val := c.compileExpr(fc, exprRef)
				eq := fc.alloc()
				c.b.Op3(bytecode.OpEqual, eq, scrutinee, val)
				toBody = append(toBody, c.b.CondJump(bytecode.OpJumpTrue, eq))
			}
			toNext := c.b.Jump()
			bodyStart := c.b.Len()
			for _, j := range toBody {
				c.b.PatchAddr(j, bodyStart)
			}
			fc.pushBlock()
			bodyReg := c.compileExpr(fc, caseNode.A)
			fc.popBlock()
			c.b.Op2(bytecode.OpMove, result, bodyReg)
			ends = append(ends, c.b.Jump())
			c.b.PatchJump(toNext, c.b.Len())

		case ast.KindMatchLet:
			fc.pushBlock()
			c.bindPattern(fc, caseNode.B, scrutinee)
			bodyReg := c.compileExpr(fc, caseNode.A)
			fc.popBlock()
			c.b.Op2(bytecode.OpMove, result, bodyReg)
			ends = append(ends, c.b.Jump())

		case ast.KindMatchCatchAll:
			fc.pushBlock()
			bodyReg := c.compileExpr(fc, caseNode.A)
			fc.popBlock()
			c.b.Op2(bytecode.OpMove, result, bodyReg)
			ends = append(ends, c.b.Jump())

		default:
			c.errorf(caseNode.Off, "internal: unexpected match-case kind %d", caseNode.Kind)
		}
	}

	for _, j := range ends {
		c.b.PatchJump(j, c.b.Len())
	}
	return result
}
