package compiler

import (
	"github.com/dasimmet/bog/internal/ast"
	"github.com/dasimmet/bog/internal/bytecode"
)

// bindPattern destructures the value already held in valueReg according to
// the pattern at ref, declaring any identifiers it introduces in fc's
// innermost block scope.
func (c *compiler) bindPattern(fc *funcCtx, ref ast.Ref, valueReg byte) {
	n := c.node(ref)
	switch n.Kind {
	case ast.KindUnwrapIdent:
		fc.declare(n.Str, valueReg)

	case ast.KindUnwrapDiscard:
		// value intentionally unused

	case ast.KindUnwrapTuple, ast.KindUnwrapList:
		for i, sub := range n.Kids {
			idxReg := fc.alloc()
			c.b.ConstInt8(idxReg, int8(i))
			elemReg := fc.alloc()
			c.b.Get(elemReg, valueReg, idxReg)
			c.bindPattern(fc, sub, elemReg)
		}

	case ast.KindUnwrapMap:
		for _, itemRef := range n.Kids {
			item := c.node(itemRef)
			keyReg := c.constString(fc, item.Str)
			elemReg := fc.alloc()
			c.b.Get(elemReg, valueReg, keyReg)
			c.bindPattern(fc, item.B, elemReg)
		}

	case ast.KindUnwrapError:
		innerReg := fc.alloc()
		c.b.UnwrapError(innerReg, valueReg)
		c.bindPattern(fc, n.A, innerReg)

	default:
		c.errorf(n.Off, "internal: node kind %d is not a pattern", n.Kind)
	}
}

// assignTo stores valueReg into the lvalue at ref: an identifier, an
// index expression, or a member expression. Assigning to a name that
// resolves only as a closure capture is rejected: captures are taken by
// value at closure-creation time and are not a live reference back to the
// enclosing variable.
func (c *compiler) assignTo(fc *funcCtx, ref ast.Ref, valueReg byte) {
	n := c.node(ref)
	switch n.Kind {
	case ast.KindIdent:
		if reg, ok := fc.resolveLocal(n.Str); ok {
			if reg != valueReg {
				c.b.Op2(bytecode.OpMove, reg, valueReg)
			}
			return
		}
		if _, ok := fc.resolveCapture(n.Str); ok {
			c.errorf(n.Off, "cannot assign to %q: captured variables are read-only", n.Str)
			return
		}
		c.errorf(n.Off, "undefined variable %q", n.Str)

	case ast.KindIndex:
		container := c.compileExpr(fc, n.A)
		key := c.compileExpr(fc, n.B)
		c.b.Set(container, key, valueReg)

	case ast.KindMember:
		container := c.compileExpr(fc, n.A)
		key := c.constString(fc, n.Str)
		c.b.Set(container, key, valueReg)

	default:
		c.errorf(n.Off, "invalid assignment target")
	}
}
