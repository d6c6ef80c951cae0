// Package compiler lowers a parsed ast.Tree into a bytecode.Module: a flat,
// register-addressed instruction stream plus an interned string pool.
//
// Grounded on the teacher's runtime/planner/ir_builder.go two-pass shape
// (walk the parsed tree once, emitting a lower-level representation while
// threading a scope structure alongside it) and runtime/planner/scope_graph.go's
// parent-chained scope model, generalized from "resolve a variable's
// security class across session scopes" to "resolve a variable's register
// or closure-capture slot across function scopes".
package compiler

import (
	"fmt"

	"github.com/dasimmet/bog/internal/ast"
	"github.com/dasimmet/bog/internal/bytecode"
	"github.com/dasimmet/bog/internal/diag"
)

// Compile lowers tree into a named Module. Diagnostics (undefined
// variables, invalid assignment targets) are appended to diags; Compile
// returns a non-nil error iff at least one was recorded.
func Compile(tree *ast.Tree, moduleName string, diags *diag.List) (*bytecode.Module, error) {
	c := &compiler{tree: tree, b: bytecode.NewBuilder(), diags: diags}
	root := newFuncCtx(nil)
	bodyReg := c.compileExpr(root, tree.Root)
	c.b.Return(bodyReg)
	if diags.HasErr() {
		return nil, fmt.Errorf("compile error")
	}
	return c.b.Finish(moduleName, 0), nil
}

type compiler struct {
	tree  *ast.Tree
	b     *bytecode.Builder
	diags *diag.List

	loops []*loopCtx
}

// loopCtx tracks the jump targets live-loop control flow needs: where
// `continue` jumps back to, where `break` jumps are patched once the loop's
// end address is known, and which register holds the loop's own value
// (break's optional operand, or none at normal exhaustion).
type loopCtx struct {
	continueTarget int
	breakJumps     []int
	resultReg      byte
}

func (c *compiler) node(r ast.Ref) *ast.Node { return c.tree.Node(r) }

func (c *compiler) errorf(off int32, format string, args ...interface{}) {
	c.diags.Err(int(off), format, args...)
}

// --- register allocation -------------------------------------------------

// funcCtx tracks one function body's (or the module top level's) register
// allocation, lexical scope stack, and closure-capture bookkeeping.
type funcCtx struct {
	parent *funcCtx

	next byte // next free register
	max  byte // high-water mark, informational only (no fixed frame size is encoded on disk)

	blocks []blockScope

	captureOrder []captureDescriptor
	captureIndex map[string]int
}

type blockScope struct {
	names   map[string]byte
	markReg byte
}

// captureDescriptor records how to fill one capture slot of a closure built
// in this funcCtx's own enclosing function: either copy a local register of
// the parent, or chain through one of the parent's own captures.
type captureDescriptor struct {
	name      string
	fromLocal bool
	sourceIdx int // register (if fromLocal) or parent capture index
}

func newFuncCtx(parent *funcCtx) *funcCtx {
	fc := &funcCtx{parent: parent, captureIndex: make(map[string]int)}
	fc.pushBlock()
	return fc
}

func (fc *funcCtx) alloc() byte {
	r := fc.next
	fc.next++
	if fc.next > fc.max {
		fc.max = fc.next
	}
	return r
}

func (fc *funcCtx) pushBlock() {
	fc.blocks = append(fc.blocks, blockScope{names: make(map[string]byte), markReg: fc.next})
}

func (fc *funcCtx) popBlock() {
	top := fc.blocks[len(fc.blocks)-1]
	fc.blocks = fc.blocks[:len(fc.blocks)-1]
	fc.next = top.markReg
}

func (fc *funcCtx) declare(name string, reg byte) {
	fc.blocks[len(fc.blocks)-1].names[name] = reg
}

func (fc *funcCtx) resolveLocal(name string) (byte, bool) {
	for i := len(fc.blocks) - 1; i >= 0; i-- {
		if r, ok := fc.blocks[i].names[name]; ok {
			return r, true
		}
	}
	return 0, false
}

// resolveCapture finds name in an enclosing function, chaining capture
// slots through every intermediate function so a deeply nested closure can
// still reach it, and returns this funcCtx's own capture index for it.
func (fc *funcCtx) resolveCapture(name string) (int, bool) {
	if idx, ok := fc.captureIndex[name]; ok {
		return idx, true
	}
	if fc.parent == nil {
		return 0, false
	}
	var desc captureDescriptor
	if reg, ok := fc.parent.resolveLocal(name); ok {
		desc = captureDescriptor{name: name, fromLocal: true, sourceIdx: int(reg)}
	} else if pidx, ok := fc.parent.resolveCapture(name); ok {
		desc = captureDescriptor{name: name, fromLocal: false, sourceIdx: pidx}
	} else {
		return 0, false
	}
	idx := len(fc.captureOrder)
	fc.captureOrder = append(fc.captureOrder, desc)
	fc.captureIndex[name] = idx
	return idx, true
}

// variable is the result of resolving an identifier: either a register in
// the current function, or a capture slot that must be loaded first.
type variable struct {
	reg       byte
	isCapture bool
	found     bool
}

func (c *compiler) resolveVar(fc *funcCtx, name string) variable {
	if r, ok := fc.resolveLocal(name); ok {
		return variable{reg: r, found: true}
	}
	if idx, ok := fc.resolveCapture(name); ok {
		return variable{reg: byte(idx), isCapture: true, found: true}
	}
	return variable{}
}

// loadVar materializes a variable reference into a register, issuing
// LoadCapture if needed.
func (c *compiler) loadVar(fc *funcCtx, off int32, name string) byte {
	v := c.resolveVar(fc, name)
	if !v.found {
		c.errorf(off, "undefined variable %q", name)
		r := fc.alloc()
		c.b.ConstPrimitive(r, bytecode.ConstNone)
		return r
	}
	if !v.isCapture {
		return v.reg
	}
	r := fc.alloc()
	c.b.LoadCapture(r, v.reg)
	return r
}

// constString interns s and materializes it into a fresh register.
func (c *compiler) constString(fc *funcCtx, s string) byte {
	r := fc.alloc()
	c.b.ConstString(r, c.b.String(s))
	return r
}

// reserveContiguous allocates count fresh, adjacent registers, for
// aggregate-building and call-argument opcodes that require a contiguous
// base register.
func (fc *funcCtx) reserveContiguous(count int) byte {
	base := fc.next
	for i := 0; i < count; i++ {
		fc.alloc()
	}
	return base
}

// compileIntoContiguous compiles each of refs into the slots starting at
// base (as returned by reserveContiguous), moving a value into place if its
// natural compiled register doesn't already land there.
func (c *compiler) compileIntoContiguous(fc *funcCtx, base byte, refs []ast.Ref) {
	for i, ref := range refs {
		r := c.compileExpr(fc, ref)
		slot := base + byte(i)
		if r != slot {
			c.b.Op2(bytecode.OpMove, slot, r)
		}
	}
}
